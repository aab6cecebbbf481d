package cmd

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/crmkit/leadmail/internal/gmail"
)

func newSendCmd() *cobra.Command {
	var (
		to      []string
		cc      []string
		bcc     []string
		subject string
		body    string
		html    bool
		attach  []string
		leadID  string
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a single email",
		Long: `Send one email through the linked Gmail account.

The attempt is recorded in the send log either way. When --lead is
given, the log entry is linked to that lead and its last-contacted time
is stamped on success.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if len(to) == 0 {
				return fmt.Errorf("at least one --to recipient is required")
			}

			app, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			attachments, err := loadAttachments(attach)
			if err != nil {
				return err
			}

			res, err := app.gateway.Send(ctx, &gmail.SendRequest{
				UserID:      userID,
				LeadID:      leadID,
				To:          to,
				Cc:          cc,
				Bcc:         bcc,
				Subject:     subject,
				Body:        body,
				IsHTML:      html,
				Attachments: attachments,
			})
			if err != nil {
				return fmt.Errorf("send email: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Sent. Message ID: %s (thread %s)\n", res.MessageID, res.ThreadID)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&to, "to", nil, "Recipient address (repeatable)")
	cmd.Flags().StringSliceVar(&cc, "cc", nil, "Cc address (repeatable)")
	cmd.Flags().StringSliceVar(&bcc, "bcc", nil, "Bcc address (repeatable)")
	cmd.Flags().StringVar(&subject, "subject", "", "Message subject")
	cmd.Flags().StringVar(&body, "body", "", "Message body")
	cmd.Flags().BoolVar(&html, "html", false, "Treat the body as HTML")
	cmd.Flags().StringSliceVar(&attach, "attach", nil, "File to attach (repeatable)")
	cmd.Flags().StringVar(&leadID, "lead", "", "Lead ID to link the send to")
	return cmd
}

// loadAttachments reads each path into an attachment, guessing the MIME
// type from the file extension.
func loadAttachments(paths []string) ([]gmail.Attachment, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	attachments := make([]gmail.Attachment, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read attachment %s: %w", path, err)
		}
		mimeType := mime.TypeByExtension(filepath.Ext(path))
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}
		attachments = append(attachments, gmail.Attachment{
			Filename: filepath.Base(path),
			MimeType: mimeType,
			Data:     data,
		})
	}
	return attachments, nil
}
