package app

import (
	"fmt"
	"net/url"

	"git.sr.ht/~jakintosh/fbclient/pkg/client"
	"git.sr.ht/~jakintosh/fbclient/pkg/session"
	"github.com/spf13/cobra"
)

func newURLCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "url alias path [key=value...]",
		Short: "Print the API URL for a domain alias and path",
		Long: `Print the URL for a domain alias (graph, graph-video, www, api,
api-video or api-read), a path and optional query parameters.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			creds, err := loadCredentials(cmd)
			if err != nil {
				return err
			}
			pairs, err := parsePairs(args[2:])
			if err != nil {
				return err
			}

			c := client.New(creds, session.NewMemoryStore(creds))
			if !c.HasAlias(args[0]) {
				return fmt.Errorf("unknown domain alias %q", args[0])
			}
			params := url.Values{}
			for k, v := range pairs {
				params.Set(k, v)
			}
			fmt.Fprintln(cmd.OutOrStdout(), c.URL(args[0], args[1], params))
			return nil
		},
	}
}
