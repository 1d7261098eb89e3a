package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// logoutCmd creates the command that removes the cached credentials for a
// profile. It always exits 0; logging out an unknown profile is a no-op.
func logoutCmd() *cobra.Command {
	var profile string

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Remove the cached session for a profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkProfileName(profile); err != nil {
				return err
			}
			svc, err := newServiceFn()
			if err != nil {
				return err
			}

			if err := svc.Logout(profile); err != nil {
				// Logout is best-effort by contract.
				log.Error().Err(err).Str("profile", profile).Msg("Failed to remove credential files")
				cmd.PrintErrf("Warning: could not remove all credential files: %v\n", err)
				return nil
			}

			cmd.Printf("Logged out profile %q.\n", profile)
			return nil
		},
	}

	addProfileFlag(cmd, &profile)
	return cmd
}
