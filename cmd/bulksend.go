package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/crmkit/leadmail/internal/campaign"
)

func newBulkSendCmd() *cobra.Command {
	var (
		leadIDs []string
		subject string
		body    string
		html    bool
	)

	cmd := &cobra.Command{
		Use:   "bulk-send",
		Short: "Send a personalized email to a list of leads",
		Long: `Send one message to many leads, personalized per recipient.

Subject and body may carry {{first_name}}, {{full_name}}, {{email}},
{{company}}, {{position}} and {{location}} placeholders; missing fields
render as empty strings. Recipients are paced in batches and each
outcome is independent of the others.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(leadIDs) == 0 {
				return fmt.Errorf("at least one --lead is required")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			result, err := app.runner.BulkSend(ctx, &campaign.BulkRequest{
				UserID:  userID,
				Subject: subject,
				Body:    body,
				IsHTML:  html,
				LeadIDs: leadIDs,
			})
			if result != nil {
				printBulkResult(cmd, result)
			}
			if err != nil {
				return fmt.Errorf("bulk send interrupted: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&leadIDs, "lead", nil, "Lead ID to include (repeatable)")
	cmd.Flags().StringVar(&subject, "subject", "", "Message subject template")
	cmd.Flags().StringVar(&body, "body", "", "Message body template")
	cmd.Flags().BoolVar(&html, "html", false, "Treat the body as HTML")
	return cmd
}

func printBulkResult(cmd *cobra.Command, result *campaign.Result) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Sent %d, failed %d of %d recipients\n",
		result.Sent, result.Failed, len(result.Outcomes))
	for _, o := range result.Outcomes {
		if o.Err != nil {
			fmt.Fprintf(out, "  FAIL %s (%s): %v\n", o.Email, o.LeadID, o.Err)
		} else {
			fmt.Fprintf(out, "  sent %s (%s): %s\n", o.Email, o.LeadID, o.MessageID)
		}
	}
}
