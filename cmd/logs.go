package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/crmkit/leadmail/internal/store"
)

func newLogsCmd() *cobra.Command {
	var (
		leadID    string
		status    string
		search    string
		limit     int
		offset    int
		showStats bool
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Query the send log",
		Long: `List recorded send attempts for the CRM user, newest first.

--stats prints aggregate counts and the success rate instead of
individual entries.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			out := cmd.OutOrStdout()
			if showStats {
				stats, err := app.store.Stats(ctx, userID)
				if err != nil {
					return fmt.Errorf("load send stats: %w", err)
				}
				fmt.Fprintf(out, "Sent:         %d\n", stats.TotalSent)
				fmt.Fprintf(out, "Failed:       %d\n", stats.TotalFailed)
				fmt.Fprintf(out, "Success rate: %.1f%%\n", stats.SuccessRate)
				fmt.Fprintf(out, "Last sent:    %s\n", formatTime(stats.LastSentAt))
				return nil
			}

			entries, err := app.store.Logs(ctx, userID, store.LogFilter{
				LeadID: leadID,
				Status: status,
				Search: search,
				Limit:  limit,
				Offset: offset,
			})
			if err != nil {
				return fmt.Errorf("load send log: %w", err)
			}
			if len(entries) == 0 {
				fmt.Fprintln(out, "No log entries found.")
				return nil
			}
			for _, e := range entries {
				fmt.Fprintf(out, "%s  %-6s  %-30s  %s\n",
					e.SentAt.Local().Format(time.RFC3339), e.Status, truncate(e.ToEmail, 30), e.Subject)
				if e.ErrorMessage != "" {
					fmt.Fprintf(out, "    error: %s\n", e.ErrorMessage)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&leadID, "lead", "", "Only entries for this lead")
	cmd.Flags().StringVar(&status, "status", "", "Only entries with this status (sent|failed)")
	cmd.Flags().StringVar(&search, "search", "", "Substring match on recipient and subject")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of entries")
	cmd.Flags().IntVar(&offset, "offset", 0, "Entries to skip")
	cmd.Flags().BoolVar(&showStats, "stats", false, "Print aggregate statistics instead")
	return cmd
}
