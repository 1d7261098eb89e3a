package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/flammablebunny/nixcraft/auth"
	"github.com/flammablebunny/nixcraft/client"
	"github.com/flammablebunny/nixcraft/pkg/clierr"
)

// loginCmd creates the command that signs in with a Microsoft account via the
// device-code flow and runs the full exchange chain.
func loginCmd() *cobra.Command {
	var profile string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with a Microsoft account",
		Long:  "Sign in with a Microsoft account using a device code and fetch a Minecraft session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkProfileName(profile); err != nil {
				return err
			}
			if !term.IsTerminal(int(os.Stdin.Fd())) {
				return clierr.New(clierr.Validation, "login is interactive and needs a terminal", nil)
			}

			svc, err := newServiceFn()
			if err != nil {
				return err
			}

			if keep, err := confirmReplace(svc, profile); err != nil {
				return err
			} else if keep {
				cmd.Println("Keeping the existing session.")
				return nil
			}

			bar := pollProgressBar()
			opts := auth.DeviceLoginOptions{
				OnCode: func(verificationURI, userCode string, expiresIn time.Duration) {
					cmd.Println("To sign in, open the page below in a browser and enter the code.")
					cmd.Printf("\n    %s\n    Code: %s\n\n", verificationURI, userCode)
					cmd.Printf("The code expires in %s.\n", expiresIn.Round(time.Minute))
				},
				OnPoll: func(time.Duration) {
					_ = bar.Add(1)
				},
			}

			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			rec, err := svc.Login(ctx, profile, opts)
			_ = bar.Finish()
			cmd.Println()
			if err != nil {
				return loginError(err)
			}

			cmd.Printf("Logged in as %s (%s).\n", rec.Profile.Username, rec.Profile.UUID)
			cmd.Printf("Launcher token file: %s\n", svc.Store.LauncherTokenPath(profile))
			return nil
		},
	}

	addProfileFlag(cmd, &profile)
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Give up on the sign-in after this long (0 waits for the code to expire)")
	return cmd
}

// confirmReplace asks before discarding a session that is still valid.
func confirmReplace(svc *auth.Service, profile string) (keep bool, err error) {
	st, err := svc.Status(profile)
	if err != nil || !st.GameValid {
		// A corrupt or missing record is exactly what login replaces.
		return false, nil
	}

	prompt := promptui.Prompt{
		Label:     fmt.Sprintf("Session for %q (%s) is still valid until %s. Log in again", profile, st.Username, st.GameExpiresAt),
		IsConfirm: true,
	}
	if _, err := prompt.Run(); err != nil {
		if errors.Is(err, promptui.ErrInterrupt) {
			return false, clierr.New(clierr.Validation, "login cancelled", err)
		}
		return true, nil
	}
	return false, nil
}

func pollProgressBar() *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription("Waiting for sign-in"),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWriter(os.Stderr),
	)
}

func loginError(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return clierr.New(clierr.AuthFailed, "gave up waiting for sign-in; run 'nixcraft-auth login' again", err)
	case errors.Is(err, client.ErrCodeExpired):
		return clierr.New(clierr.AuthFailed, "the device code expired before sign-in completed; run 'nixcraft-auth login' again", err)
	case errors.Is(err, client.ErrAccessDenied):
		return clierr.New(clierr.AuthFailed, "sign-in was declined", err)
	default:
		return asCliError(err)
	}
}
