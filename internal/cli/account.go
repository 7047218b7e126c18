package cli

import (
	"errors"
	"fmt"

	"github.com/raphaelgruber/analyst-go/internal/auth"
	"github.com/spf13/cobra"
)

// ErrRejected is returned when login or signup is refused.
var ErrRejected = errors.New("rejected")

func newSignupCmd(a *app) *cobra.Command {
	var name, email string

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create a local account and sign in",
		Long: `Create a local account and sign in with it.

Name and email can be passed as flags; anything missing is prompted for.
The password is always prompted for and must be at least 6 characters.

Examples:
  analyst signup
  analyst signup --name "Ada Lovelace" --email ada@example.com`,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{accessAnnotation: accessPublic},
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.redirect != "" {
				return alreadySignedIn(cmd, a)
			}

			var form auth.SignupForm
			var err error
			if form.Name, err = a.promptLine(cmd, "Name", name); err != nil {
				return err
			}
			if form.Email, err = a.promptLine(cmd, "Email", email); err != nil {
				return err
			}
			if form.Password, err = a.promptPassword(cmd, "Password"); err != nil {
				return err
			}
			if form.ConfirmPassword, err = a.promptPassword(cmd, "Confirm password"); err != nil {
				return err
			}

			if err := auth.ValidateSignup(form); err != nil {
				return err
			}

			if !a.auth.Signup(cmd.Context(), form.Name, form.Email, form.Password) {
				return fmt.Errorf("%w: an account with this email already exists", ErrRejected)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Welcome, %s! You are signed in.\n", form.Name)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	return cmd
}

func newLoginCmd(a *app) *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with a local account",
		Long: `Sign in with an account created by 'analyst signup'.

Email and password must match exactly; both are case-sensitive.

Examples:
  analyst login
  analyst login --email ada@example.com`,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{accessAnnotation: accessPublic},
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.redirect != "" {
				return alreadySignedIn(cmd, a)
			}

			var form auth.LoginForm
			var err error
			if form.Email, err = a.promptLine(cmd, "Email", email); err != nil {
				return err
			}
			if form.Password, err = a.promptPassword(cmd, "Password"); err != nil {
				return err
			}

			if err := auth.ValidateLogin(form); err != nil {
				return err
			}

			if !a.auth.Login(cmd.Context(), form.Email, form.Password) {
				return fmt.Errorf("%w: invalid email or password", ErrRejected)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s.\n", a.auth.Current().Name)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "email address")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:         "logout",
		Short:       "End the current session",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{accessAnnotation: accessAny},
		RunE: func(cmd *cobra.Command, args []string) error {
			a.auth.Logout(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
			return nil
		},
	}
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:         "whoami",
		Short:       "Show the signed-in user",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{accessAnnotation: accessProtected},
		RunE: func(cmd *cobra.Command, args []string) error {
			u := a.auth.Current()
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Name:   %s\n", u.Name)
			fmt.Fprintf(w, "Email:  %s\n", u.Email)
			fmt.Fprintf(w, "ID:     %s\n", u.ID)
			if u.Avatar != "" {
				fmt.Fprintf(w, "Avatar: %s\n", u.Avatar)
			}
			if a.verbose {
				fmt.Fprintf(w, "Server: %s\n", a.client.BaseURL())
			}
			return nil
		},
	}
}

// alreadySignedIn reports the redirect a public-only command takes when a
// session exists.
func alreadySignedIn(cmd *cobra.Command, a *app) error {
	u := a.auth.Current()
	fmt.Fprintf(cmd.OutOrStdout(), "Already signed in as %s. Continue with 'analyst %s'.\n", u.Email, a.redirect)
	return nil
}
