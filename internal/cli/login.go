package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	dErrors "atlas/pkg/domain-errors"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with email and password",
	Long: `Sign in to the ERP backend with email and password.

Failed attempts are counted locally; after too many the command
refuses to try again until the lockout window passes. When the backend
requires a one-time code, the command prompts for it.

Examples:
  authctl login --email user@example.com --password secret
  authctl login --email user@example.com --password secret --remember`,
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		password, _ := cmd.Flags().GetString("password")
		remember, _ := cmd.Flags().GetBool("remember")

		if email == "" {
			return fmt.Errorf("--email is required")
		}
		if password == "" {
			return fmt.Errorf("--password is required")
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		locked, err := a.limiter.IsLockedOut(ctx)
		if err != nil {
			return err
		}
		if locked {
			seconds, err := a.limiter.RemainingLockout(ctx)
			if err != nil {
				return err
			}
			return fmt.Errorf("too many failed attempts; try again in %ds", seconds)
		}

		err = a.manager.Login(ctx, email, password)
		switch {
		case err == nil:
			// Password alone was enough.
		case dErrors.HasCode(err, dErrors.CodeOTPRequired):
			if err := completeWithOTP(cmd, a, email, remember); err != nil {
				return err
			}
		default:
			if recordErr := a.limiter.RecordFailedAttempt(ctx); recordErr != nil {
				a.logger.WarnContext(ctx, "failed to record login attempt", "error", recordErr)
			}
			if remaining, attemptsErr := a.limiter.RemainingAttempts(ctx); attemptsErr == nil && remaining > 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "%d attempts remaining before lockout\n", remaining)
			}
			return fmt.Errorf("login failed: %s", dErrors.Message(err, "invalid credentials"))
		}

		if err := a.limiter.RecordSuccess(ctx); err != nil {
			a.logger.WarnContext(ctx, "failed to reset login attempts", "error", err)
		}
		if remember {
			if err := a.tokens.Set(a.tokens.Token(), true); err != nil {
				return fmt.Errorf("failed to persist token: %w", err)
			}
		}

		user, _ := a.manager.User()
		fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", user.Email)
		return nil
	},
}

// completeWithOTP prompts for the phase-2 code and finishes the login.
func completeWithOTP(cmd *cobra.Command, a *app, email string, remember bool) error {
	ctx := cmd.Context()
	fmt.Fprintf(cmd.OutOrStdout(), "A one-time code was sent to %s.\nCode: ", email)

	reader := bufio.NewReader(cmd.InOrStdin())
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return fmt.Errorf("read code: %w", err)
	}
	code := strings.TrimSpace(line)

	if _, err := a.client.VerifyLoginOTP(ctx, email, code, remember); err != nil {
		return fmt.Errorf("code rejected: %s", dErrors.Message(err, "invalid or expired code"))
	}
	return a.manager.CompleteLogin(ctx)
}

func init() {
	loginCmd.Flags().String("email", "", "account email address")
	loginCmd.Flags().String("password", "", "account password")
	loginCmd.Flags().Bool("remember", false, "persist the token for later runs")
	rootCmd.AddCommand(loginCmd)
}
