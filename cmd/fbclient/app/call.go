package app

import (
	"encoding/json"
	"strings"

	"git.sr.ht/~jakintosh/fbclient/pkg/client"
	"git.sr.ht/~jakintosh/fbclient/pkg/session"
	"github.com/spf13/cobra"
)

func newCallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "call path [key=value...]",
		Short: "Make one Graph API call and print the result",
		Long: `Make one Graph API call and print the decoded JSON result. With
--legacy the first argument is a REST method name such as users.getInfo.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runCall,
	}
	cmd.Flags().String("token", "", "Access token for the call")
	cmd.Flags().String("method", "GET", "HTTP method sent to the Graph API")
	cmd.Flags().Bool("legacy", false, "Call the legacy REST API")
	cmd.Flags().String("base-url", "", "Send every domain alias to this base URL")
	return cmd
}

func runCall(cmd *cobra.Command, args []string) error {
	creds, err := loadCredentials(cmd)
	if err != nil {
		return err
	}
	pairs, err := parsePairs(args[1:])
	if err != nil {
		return err
	}
	params := make(map[string]any, len(pairs))
	for k, v := range pairs {
		params[k] = v
	}

	token, _ := cmd.Flags().GetString("token")
	method, _ := cmd.Flags().GetString("method")
	legacy, _ := cmd.Flags().GetBool("legacy")
	baseURL, _ := cmd.Flags().GetString("base-url")

	opts := []client.Option{client.WithLogger(newLogger(cmd))}
	if baseURL != "" {
		opts = append(opts, client.WithDomains(allAliasesTo(baseURL)))
	}
	c := client.New(creds, session.NewMemoryStore(creds), opts...).SetAccessToken(token)

	var result any
	if legacy {
		params["method"] = args[0]
		result, err = c.CallLegacy(cmd.Context(), params)
	} else {
		result, err = c.CallGraph(cmd.Context(), args[0], method, params)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func allAliasesTo(baseURL string) map[string]string {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	domains := make(map[string]string)
	for _, alias := range []string{"graph", "graph-video", "www", "api", "api-video", "api-read"} {
		domains[alias] = baseURL
	}
	return domains
}
