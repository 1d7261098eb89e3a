package cmd

import (
	"github.com/spf13/cobra"
)

// refreshCmd creates the command that ensures a valid game token without
// user interaction. Exit code 2 tells the caller an interactive login is
// needed.
func refreshCmd() *cobra.Command {
	var profile string

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Refresh the Minecraft session if needed",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkProfileName(profile); err != nil {
				return err
			}
			svc, err := newServiceFn()
			if err != nil {
				return err
			}

			game, prof, err := svc.EnsureValid(cmd.Context(), profile, false)
			if err != nil {
				return asCliError(err)
			}

			cmd.Printf("Session for %s is valid until %s.\n", prof.Username, game.ExpiresAt)
			return nil
		},
	}

	addProfileFlag(cmd, &profile)
	return cmd
}
