package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/crmkit/leadmail/internal/store"
)

func newCampaignCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "campaign",
		Short: "Manage bulk email campaigns",
	}
	cmd.AddCommand(newCampaignCreateCmd())
	cmd.AddCommand(newCampaignRunCmd())
	cmd.AddCommand(newCampaignCancelCmd())
	cmd.AddCommand(newCampaignShowCmd())
	return cmd
}

func newCampaignCreateCmd() *cobra.Command {
	var (
		name    string
		subject string
		content string
		leadIDs []string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a draft campaign",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if name == "" {
				return fmt.Errorf("--name is required")
			}
			if len(leadIDs) == 0 {
				return fmt.Errorf("at least one --lead is required")
			}

			app, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			c := &store.Campaign{
				ID:       uuid.NewString(),
				Name:     name,
				Subject:  subject,
				Content:  content,
				Audience: leadIDs,
				Status:   store.CampaignDraft,
				Sender:   userID,
			}
			if err := app.store.SaveCampaign(ctx, c); err != nil {
				return fmt.Errorf("create campaign: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created campaign %s (%d recipients)\n", c.ID, len(leadIDs))
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Campaign name")
	cmd.Flags().StringVar(&subject, "subject", "", "Message subject template")
	cmd.Flags().StringVar(&content, "content", "", "Message body template")
	cmd.Flags().StringSliceVar(&leadIDs, "lead", nil, "Lead ID in the audience (repeatable)")
	return cmd
}

func newCampaignRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <campaign-id>",
		Short: "Run a draft or scheduled campaign",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			result, err := app.runner.RunCampaign(ctx, args[0])
			if result != nil {
				printBulkResult(cmd, result)
			}
			if err != nil {
				return fmt.Errorf("run campaign: %w", err)
			}
			return nil
		},
	}
}

func newCampaignCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <campaign-id>",
		Short: "Cancel a campaign",
		Long: `Cancel a campaign that has not completed yet.

A campaign that is currently sending stops at its next batch boundary;
messages already handed to the provider are not recalled.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.store.CancelCampaign(ctx, args[0], time.Now()); err != nil {
				return fmt.Errorf("cancel campaign: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cancelled campaign %s\n", args[0])
			return nil
		},
	}
}

func newCampaignShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <campaign-id>",
		Short: "Show a campaign's state and progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			c, err := app.store.Campaign(ctx, args[0])
			if err != nil {
				return fmt.Errorf("load campaign: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Campaign:   %s\n", c.ID)
			fmt.Fprintf(out, "Name:       %s\n", c.Name)
			fmt.Fprintf(out, "Status:     %s\n", c.Status)
			fmt.Fprintf(out, "Sender:     %s\n", c.Sender)
			fmt.Fprintf(out, "Recipients: %d\n", c.TotalRecipients)
			fmt.Fprintf(out, "Sent:       %d\n", c.SentCount)
			fmt.Fprintf(out, "Failed:     %d\n", c.FailedCount)
			fmt.Fprintf(out, "Progress:   %.1f%%\n", c.Progress())
			fmt.Fprintf(out, "Started:    %s\n", formatTime(c.StartedAt))
			fmt.Fprintf(out, "Completed:  %s\n", formatTime(c.CompletedAt))
			fmt.Fprintf(out, "Cancelled:  %s\n", formatTime(c.CancelledAt))
			if c.ErrorMessage != "" {
				fmt.Fprintf(out, "Error:      %s\n", c.ErrorMessage)
			}
			return nil
		},
	}
}
