package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/crmkit/leadmail/internal/google"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the Google account connection state",
		Long: `Show whether the CRM user has a usable Google connection.

Runs the token refresher, so a nearly-expired access token is renewed as
a side effect and a revoked grant is detected and reported.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			cred, err := app.refresher.EnsureValid(ctx, userID)
			if err != nil {
				if errors.Is(err, google.ErrNotConnected) {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: not connected. Run `leadmail connect` first.\n", userID)
					return nil
				}
				var re *google.RefreshError
				if errors.As(err, &re) && re.Terminal {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: disconnected, re-authorization required. Run `leadmail connect` again.\n", userID)
					return nil
				}
				return fmt.Errorf("check connection: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "User:     %s\n", userID)
			fmt.Fprintf(cmd.OutOrStdout(), "Account:  %s\n", cred.ProviderEmail)
			fmt.Fprintf(cmd.OutOrStdout(), "Status:   connected\n")
			fmt.Fprintf(cmd.OutOrStdout(), "Token OK: until %s\n", cred.ExpiresAt.Local().Format(time.RFC3339))
			return nil
		},
	}
}
