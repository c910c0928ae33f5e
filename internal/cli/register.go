package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"atlas/internal/auth/models"
	dErrors "atlas/pkg/domain-errors"
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create a new account",
	Long: `Create a new account and start email verification.

The backend emails a 6-digit code; confirm it with
"authctl otp verify --kind registration".

Examples:
  authctl register --email user@example.com --password secret --name "Ada Okafor"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		password, _ := cmd.Flags().GetString("password")
		name, _ := cmd.Flags().GetString("name")
		phone, _ := cmd.Flags().GetString("phone")

		if email == "" || password == "" {
			return fmt.Errorf("--email and --password are required")
		}

		a, err := newApp()
		if err != nil {
			return err
		}

		user, err := a.client.Register(cmd.Context(), models.Registration{
			Email:    email,
			Password: password,
			FullName: name,
			Phone:    phone,
		})
		if err != nil {
			return fmt.Errorf("registration failed: %s", dErrors.Message(err, "could not create the account"))
		}

		fmt.Fprintf(cmd.OutOrStdout(),
			"Account created for %s. Check your inbox and run:\n  authctl otp verify --email %s --kind registration --code <code>\n",
			user.Email, user.Email)
		return nil
	},
}

func init() {
	registerCmd.Flags().String("email", "", "account email address")
	registerCmd.Flags().String("password", "", "account password")
	registerCmd.Flags().String("name", "", "full name")
	registerCmd.Flags().String("phone", "", "phone number")
	rootCmd.AddCommand(registerCmd)
}
