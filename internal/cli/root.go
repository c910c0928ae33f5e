// Package cli implements the authctl command tree: sign in and out of
// the ERP backend, drive the verification flows, and inspect the
// resulting session from a terminal.
package cli

import (
	"context"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "authctl",
	Short: "Authenticate against the ERP backend and inspect the session",
	Long: `authctl is the command-line client for the ERP authentication API.

It signs in with a password or a one-time code, verifies magic links,
and answers permission questions about the signed-in user. Tokens are
kept in memory unless --remember persists them for later runs.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// ExecuteContext runs the root command with ctx.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (defaults to $ATLAS_CONFIG, then built-in defaults)")
}
