package cmd

import (
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/flammablebunny/nixcraft/auth"
)

// statusCmd creates the command that reports the cached session without any
// network calls.
func statusCmd() *cobra.Command {
	var profile string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the cached session for a profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkProfileName(profile); err != nil {
				return err
			}
			svc, err := newServiceFn()
			if err != nil {
				return err
			}

			info, err := svc.Status(profile)
			if err != nil {
				return asCliError(err)
			}

			if !info.Present {
				cmd.Printf("Profile %q is not logged in. Run 'nixcraft-auth login'.\n", profile)
				return nil
			}

			renderStatus(cmd, profile, info)
			return nil
		},
	}

	addProfileFlag(cmd, &profile)
	return cmd
}

func renderStatus(cmd *cobra.Command, profile string, info *auth.StatusInfo) {
	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader([]string{"Field", "Value"})
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoWrapText(false)
	table.SetRowLine(false)

	table.Append([]string{"Profile", profile})
	table.Append([]string{"Username", orUnknown(info.Username)})
	table.Append([]string{"UUID", orUnknown(info.UUID)})
	if info.SkinVariant != "" {
		table.Append([]string{"Skin variant", info.SkinVariant})
	}
	table.Append([]string{"Game token", expiryLine(info.GameValid, info.GameExpiresAt)})
	table.Append([]string{"Microsoft token", expiryLine(info.IdentityValid, info.IdentityExpires)})
	table.Append([]string{"Refresh token", presentLine(info.HasRefreshToken)})

	table.Render()
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func expiryLine(valid bool, expiresAt string) string {
	if expiresAt == "" {
		return "absent"
	}
	if valid {
		return "valid until " + expiresAt
	}
	return "expired at " + expiresAt
}

func presentLine(present bool) string {
	if present {
		return "present"
	}
	return "absent"
}
