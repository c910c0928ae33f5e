package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var canCmd = &cobra.Command{
	Use:   "can <permission>...",
	Short: "Check whether the signed-in user holds a permission",
	Long: `Check permissions against the signed-in user's grants.

Permissions are written as "resource:action" or
"resource:action:scope". Manage grants, "all" scopes, and the global
wildcard are resolved; superusers pass every check. With several
permissions, all of them must hold.

Examples:
  authctl can invoices:read
  authctl can project:create:all finance:approve`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if err := a.bootstrap(cmd.Context()); err != nil {
			return err
		}

		denied := false
		for _, permission := range args {
			if a.checker.Allows(permission) {
				fmt.Fprintf(cmd.OutOrStdout(), "allowed  %s\n", permission)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "denied   %s\n", permission)
				denied = true
			}
		}
		if denied {
			return fmt.Errorf("permission denied")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(canCmd)
}
