package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"atlas/internal/auth/models"
)

var menusCmd = &cobra.Command{
	Use:   "menus",
	Short: "Show the navigation tree visible to the signed-in user",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if err := a.bootstrap(cmd.Context()); err != nil {
			return err
		}

		menus := a.manager.FilteredMenus()
		if len(menus) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No menu entries visible.")
			return nil
		}
		printMenus(cmd, menus, 0)
		return nil
	},
}

func printMenus(cmd *cobra.Command, items []models.MenuItem, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, item := range items {
		if item.Path != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "%s%s (%s)\n", indent, item.Label, item.Path)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "%s%s\n", indent, item.Label)
		}
		printMenus(cmd, item.Children, depth+1)
	}
}

func init() {
	rootCmd.AddCommand(menusCmd)
}
