// Package app provides the commands of the fbclient command-line tool.
package app

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"git.sr.ht/~jakintosh/fbclient/pkg/credentials"
	"github.com/spf13/cobra"
)

const (
	envAppID  = "FB_APP_ID"
	envSecret = "FB_APP_SECRET"
)

// NewRootCmd creates the root command with every subcommand attached.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:               "fbclient",
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		Short:             "Work with Graph API credentials, signed requests and calls",
		Long: `fbclient signs parameters, verifies signed requests, builds API URLs,
makes single Graph API calls, and serves a demo web application.

Application credentials come from a YAML file given with --credentials, or
from the FB_APP_ID and FB_APP_SECRET environment variables.`,
	}

	rootCmd.PersistentFlags().String("credentials", "", "Path to a YAML credentials file")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")

	rootCmd.AddCommand(
		newSignCmd(),
		newParseCmd(),
		newURLCmd(),
		newCallCmd(),
		newServeCmd(),
	)
	return rootCmd
}

// loadCredentials reads the credentials file when one is given, and the
// environment otherwise.
func loadCredentials(cmd *cobra.Command) (*credentials.Credentials, error) {
	path, _ := cmd.Flags().GetString("credentials")
	if path != "" {
		return credentials.LoadFile(path)
	}

	appID, secret := os.Getenv(envAppID), os.Getenv(envSecret)
	if appID == "" || secret == "" {
		return nil, fmt.Errorf("no credentials: pass --credentials or set %s and %s", envAppID, envSecret)
	}
	return credentials.New(credentials.Config{AppID: appID, Secret: secret})
}

func newLogger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelInfo
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

// parsePairs reads key=value arguments.
func parsePairs(args []string) (map[string]string, error) {
	pairs := make(map[string]string, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("expected key=value, got %q", arg)
		}
		pairs[key] = value
	}
	return pairs, nil
}
