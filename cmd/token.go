package cmd

import (
	"github.com/spf13/cobra"
)

// tokenCmd creates the launcher-facing command: it prints a currently-valid
// game access token (refreshing non-interactively if needed) so the launcher
// can inject it into the game's launch arguments. With --path it prints the
// launcher token file path instead, without touching the network.
func tokenCmd() *cobra.Command {
	var profile string
	var printPath bool

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a valid Minecraft access token for the launcher",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkProfileName(profile); err != nil {
				return err
			}
			svc, err := newServiceFn()
			if err != nil {
				return err
			}

			if printPath {
				cmd.Println(svc.Store.LauncherTokenPath(profile))
				return nil
			}

			game, _, err := svc.EnsureValid(cmd.Context(), profile, false)
			if err != nil {
				return asCliError(err)
			}
			cmd.Println(game.AccessToken)
			return nil
		},
	}

	addProfileFlag(cmd, &profile)
	cmd.Flags().BoolVar(&printPath, "path", false, "Print the launcher token file path instead of the token")
	return cmd
}
