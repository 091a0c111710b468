package app

import (
	"fmt"

	"git.sr.ht/~jakintosh/fbclient/pkg/signature"
	"github.com/spf13/cobra"
)

func newSignCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sign key=value...",
		Short: "Print the parameter signature for key=value pairs",
		Long: `Print the hex MD5 parameter signature of the given key=value pairs
using the application secret. This is the "sig" of a legacy session cookie.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			creds, err := loadCredentials(cmd)
			if err != nil {
				return err
			}
			params, err := parsePairs(args)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), signature.Generate(params, creds.APISecret()))
			return nil
		},
	}
}
