package cmd

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/crmkit/leadmail/internal/google"
)

func newConnectCmd() *cobra.Command {
	var authCode string

	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Link a Google account",
		Long: `Link a Google account to a CRM user.

Prints the Google consent URL, then exchanges the authorization code for
tokens and stores them. The code can be passed with --code or entered
interactively.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			if app.cfg.GoogleClientID == "" || app.cfg.GoogleClientSecret == "" {
				return fmt.Errorf("LEADMAIL_GOOGLE_CLIENT_ID and LEADMAIL_GOOGLE_CLIENT_SECRET must be set")
			}

			if authCode == "" {
				state := uuid.NewString()
				fmt.Fprintln(cmd.OutOrStdout(), "Visit the following URL to authorize leadmail:")
				fmt.Fprintln(cmd.OutOrStdout())
				fmt.Fprintln(cmd.OutOrStdout(), "  "+google.AuthURL(app.oauth, state))
				fmt.Fprintln(cmd.OutOrStdout())
				fmt.Fprint(cmd.OutOrStdout(), "Enter the authorization code: ")

				reader := bufio.NewReader(cmd.InOrStdin())
				line, err := reader.ReadString('\n')
				if err != nil {
					return fmt.Errorf("read authorization code: %w", err)
				}
				authCode = strings.TrimSpace(line)
			}
			if authCode == "" {
				return fmt.Errorf("no authorization code provided")
			}

			cred, err := google.Connect(ctx, app.oauth, app.store, app.authMetrics(), userID, authCode)
			if err != nil {
				return fmt.Errorf("connect google account: %w", err)
			}

			if cred.ProviderEmail != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Connected %s as %s\n", userID, cred.ProviderEmail)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Connected %s\n", userID)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&authCode, "code", "", "Authorization code from the consent page")
	return cmd
}
