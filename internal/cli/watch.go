package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep the session alive by refreshing the token before expiry",
	Long: `Watch the stored access token and refresh it shortly before it
expires, so a long-running shell session never has to log in again.
Runs until interrupted or until a refresh fails.

Examples:
  authctl watch`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if err := a.bootstrap(cmd.Context()); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		expired := make(chan struct{}, 1)
		a.monitor.Start(
			func(remaining time.Duration) {
				fmt.Fprintf(out, "Token expires in %s\n", remaining.Round(time.Second))
			},
			func() {
				select {
				case expired <- struct{}{}:
				default:
				}
			},
		)
		defer a.monitor.Stop()

		fmt.Fprintln(out, "Watching session; press Ctrl-C to stop.")
		select {
		case <-cmd.Context().Done():
			return nil
		case <-expired:
			return fmt.Errorf("session expired; run \"authctl login\" again")
		}
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
