package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/crmkit/leadmail/internal/gmail"
)

func newEmailsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "emails",
		Short: "List and fetch mailbox messages",
	}
	cmd.AddCommand(newEmailsListCmd())
	cmd.AddCommand(newEmailsGetCmd())
	cmd.AddCommand(newEmailsAttachmentCmd())
	return cmd
}

func newEmailsListCmd() *cobra.Command {
	var (
		search     string
		after      string
		before     string
		maxResults int64
		pageToken  string
		allMail    bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sent messages",
		Long: `List messages from the linked mailbox, newest first.

By default only the sent folder is searched; --all widens the query to
the whole mailbox. Dates are inclusive on --after and exclusive on
--before, at day resolution.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			opts := gmail.ListOptions{
				Sent:       !allMail,
				Search:     search,
				MaxResults: maxResults,
				PageToken:  pageToken,
			}
			var err error
			if opts.After, err = parseDay(after); err != nil {
				return fmt.Errorf("invalid --after: %w", err)
			}
			if opts.Before, err = parseDay(before); err != nil {
				return fmt.Errorf("invalid --before: %w", err)
			}

			app, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			summaries, nextPage, err := app.gateway.ListMessages(ctx, userID, opts)
			if err != nil {
				return fmt.Errorf("list messages: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(summaries) == 0 {
				fmt.Fprintln(out, "No messages found.")
				return nil
			}
			for _, s := range summaries {
				marker := " "
				if s.HasAttachments {
					marker = "+"
				}
				fmt.Fprintf(out, "%s %s  %-30s  %s\n", marker, s.ID, truncate(s.To, 30), s.Subject)
			}
			if nextPage != "" {
				fmt.Fprintf(out, "\nMore results: --page %s\n", nextPage)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&search, "search", "", "Free-text search query")
	cmd.Flags().StringVar(&after, "after", "", "Only messages on or after this day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&before, "before", "", "Only messages before this day (YYYY-MM-DD)")
	cmd.Flags().Int64Var(&maxResults, "max", 20, "Maximum number of messages")
	cmd.Flags().StringVar(&pageToken, "page", "", "Page token from a previous listing")
	cmd.Flags().BoolVar(&allMail, "all", false, "Search the whole mailbox, not just sent")
	return cmd
}

func newEmailsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <message-id>",
		Short: "Fetch and decode one message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			msg, err := app.gateway.GetMessage(ctx, userID, args[0])
			if err != nil {
				return fmt.Errorf("get message: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Message: %s (thread %s)\n", msg.ID, msg.ThreadID)
			fmt.Fprintf(out, "From:    %s\n", msg.Headers["from"])
			fmt.Fprintf(out, "To:      %s\n", msg.Headers["to"])
			fmt.Fprintf(out, "Date:    %s\n", msg.Headers["date"])
			fmt.Fprintf(out, "Subject: %s\n", msg.Headers["subject"])
			if len(msg.Attachments) > 0 {
				fmt.Fprintln(out, "Attachments:")
				for _, a := range msg.Attachments {
					fmt.Fprintf(out, "  %s (%s, %d bytes) id=%s\n", a.Filename, a.MimeType, a.Size, a.ID)
				}
			}
			fmt.Fprintln(out)
			switch {
			case msg.PlainBody != "":
				fmt.Fprintln(out, msg.PlainBody)
			case msg.HTMLBody != "":
				fmt.Fprintln(out, msg.HTMLBody)
			default:
				fmt.Fprintln(out, "(no body)")
			}
			return nil
		},
	}
}

func newEmailsAttachmentCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "attachment <message-id> <attachment-id>",
		Short: "Download one attachment",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if output == "" {
				return fmt.Errorf("--output is required")
			}

			app, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			data, err := app.gateway.GetAttachment(ctx, userID, args[0], args[1])
			if err != nil {
				return fmt.Errorf("get attachment: %w", err)
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d bytes to %s\n", len(data), output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "File to write the attachment to")
	return cmd
}

func parseDay(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
