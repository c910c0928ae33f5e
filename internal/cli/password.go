package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	dErrors "atlas/pkg/domain-errors"
)

var setPasswordCmd = &cobra.Command{
	Use:   "set-password",
	Short: "Set a new password using a verified reset code",
	Long: `Set a new password with the code from the password reset flow.

Run "authctl otp request --kind password-reset" first, then verify the
emailed code with "authctl otp verify"; the code is consumed here.

Examples:
  authctl set-password --email user@example.com --otp 123456 --password newsecret`,
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		code, _ := cmd.Flags().GetString("otp")
		password, _ := cmd.Flags().GetString("password")

		if email == "" || code == "" || password == "" {
			return fmt.Errorf("--email, --otp, and --password are required")
		}

		a, err := newApp()
		if err != nil {
			return err
		}

		if err := a.client.SetPassword(cmd.Context(), email, code, password); err != nil {
			return fmt.Errorf("password reset failed: %s", dErrors.Message(err, "invalid or expired code"))
		}

		fmt.Fprintln(cmd.OutOrStdout(), "Password updated. You can now log in.")
		return nil
	},
}

var changePasswordCmd = &cobra.Command{
	Use:   "change-password",
	Short: "Rotate the signed-in user's password",
	RunE: func(cmd *cobra.Command, args []string) error {
		current, _ := cmd.Flags().GetString("current")
		replacement, _ := cmd.Flags().GetString("new")
		if current == "" || replacement == "" {
			return fmt.Errorf("--current and --new are required")
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		if err := a.bootstrap(cmd.Context()); err != nil {
			return err
		}

		if err := a.client.ChangePassword(cmd.Context(), current, replacement); err != nil {
			return fmt.Errorf("password change failed: %s", dErrors.Message(err, "incorrect password"))
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Password updated.")
		return nil
	},
}

func init() {
	setPasswordCmd.Flags().String("email", "", "account email address")
	setPasswordCmd.Flags().String("otp", "", "the verified 6-digit reset code")
	setPasswordCmd.Flags().String("password", "", "the new password")
	rootCmd.AddCommand(setPasswordCmd)

	changePasswordCmd.Flags().String("current", "", "the current password")
	changePasswordCmd.Flags().String("new", "", "the new password")
	rootCmd.AddCommand(changePasswordCmd)
}
