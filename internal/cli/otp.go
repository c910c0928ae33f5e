package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"atlas/internal/auth/models"
	"atlas/internal/flows/otp"
)

var otpCmd = &cobra.Command{
	Use:   "otp",
	Short: "Request and verify one-time codes",
	Long: `Request and verify the six-digit codes used by the registration,
passwordless login, and password reset flows.

Subcommands:
  request  Email a fresh code
  verify   Submit a received code

Examples:
  authctl otp request --email user@example.com --kind passwordless
  authctl otp verify --email user@example.com --kind passwordless --code 123456`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var otpRequestCmd = &cobra.Command{
	Use:   "request",
	Short: "Email a fresh one-time code",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, flow, err := otpFlow(cmd)
		if err != nil {
			return err
		}

		if err := flow.Resend(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Code sent. Check your inbox.")
		return nil
	},
}

var otpVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Submit a received one-time code",
	RunE: func(cmd *cobra.Command, args []string) error {
		code, _ := cmd.Flags().GetString("code")
		if !otp.CanSubmit(code) {
			return fmt.Errorf("--code must be exactly 6 digits")
		}

		a, flow, err := otpFlow(cmd)
		if err != nil {
			return err
		}

		result := flow.Submit(cmd.Context(), code)
		switch result.State {
		case otp.StateSuccess:
			if result.Handoff != nil {
				fmt.Fprintf(cmd.OutOrStdout(),
					"Code accepted. Set a new password with:\n  authctl set-password --email %s --otp %s --password <new>\n",
					result.Handoff.Email, result.Handoff.OTP)
				return nil
			}
			if user, ok := a.manager.User(); ok {
				fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", user.Email)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "Account verified. You can now log in.")
			}
			return nil
		default:
			return fmt.Errorf("%s", result.Message)
		}
	},
}

// otpFlow builds the flow shared by the request and verify commands.
func otpFlow(cmd *cobra.Command) (*app, *otp.Flow, error) {
	email, _ := cmd.Flags().GetString("email")
	kind, _ := cmd.Flags().GetString("kind")
	if email == "" {
		return nil, nil, fmt.Errorf("--email is required")
	}

	a, err := newApp()
	if err != nil {
		return nil, nil, err
	}
	flow, err := otp.New(a.client, a.manager, email, models.OTPKind(kind),
		otp.WithLogger(a.logger), otp.WithMetrics(a.metrics))
	if err != nil {
		return nil, nil, err
	}
	return a, flow, nil
}

func init() {
	for _, cmd := range []*cobra.Command{otpRequestCmd, otpVerifyCmd} {
		cmd.Flags().String("email", "", "account email address")
		cmd.Flags().String("kind", "passwordless", "flow kind: registration, passwordless, or password-reset")
	}
	otpVerifyCmd.Flags().String("code", "", "the 6-digit code")

	otpCmd.AddCommand(otpRequestCmd)
	otpCmd.AddCommand(otpVerifyCmd)
	rootCmd.AddCommand(otpCmd)
}
