package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"atlas/internal/flows/magiclink"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <token>",
	Short: "Redeem a magic login link",
	Long: `Redeem the token from an emailed magic login link.

The token is single-use; a link that was already redeemed or has
expired is rejected by the backend.

Examples:
  authctl verify 7c9e6679-7425-40de-944b-e07fc1f90ae7`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		flow, err := magiclink.New(a.client, a.manager,
			magiclink.WithLogger(a.logger), magiclink.WithMetrics(a.metrics))
		if err != nil {
			return err
		}

		result := flow.Verify(cmd.Context(), args[0])
		if result.State != magiclink.StateSuccess {
			return fmt.Errorf("%s", result.Message)
		}

		user, _ := a.manager.User()
		fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", user.Email)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}
