package app

import (
	"encoding/json"
	"errors"
	"fmt"

	"git.sr.ht/~jakintosh/fbclient/pkg/signedrequest"
	"github.com/spf13/cobra"
)

func newParseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse signed_request",
		Short: "Verify a signed request and print its payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			creds, err := loadCredentials(cmd)
			if err != nil {
				return err
			}

			payload, err := signedrequest.Parse(args[0], creds.APISecret())
			if err != nil {
				var detail interface{ Context() string }
				if errors.As(err, &detail) {
					return fmt.Errorf("invalid signed request: %s", detail.Context())
				}
				return fmt.Errorf("invalid signed request: %v", err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(payload)
		},
	}
}
