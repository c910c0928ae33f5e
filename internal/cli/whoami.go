package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if err := a.bootstrap(cmd.Context()); err != nil {
			return err
		}

		user, _ := a.manager.User()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s <%s>\n", user.FullName, user.Email)
		if roles := a.manager.Roles(); len(roles) > 0 {
			fmt.Fprintf(out, "Roles: %s\n", strings.Join(roles, ", "))
		}
		if user.IsSuperuser {
			fmt.Fprintln(out, "Superuser")
		}
		if perms := a.manager.Permissions(); len(perms) > 0 {
			fmt.Fprintf(out, "Permissions (%d):\n", len(perms))
			for _, p := range perms {
				fmt.Fprintf(out, "  %s\n", p)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(whoamiCmd)
}
