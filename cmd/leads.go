package cmd

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/crmkit/leadmail/internal/store"
)

func newLeadsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leads",
		Short: "Manage CRM lead records",
	}
	cmd.AddCommand(newLeadsAddCmd())
	cmd.AddCommand(newLeadsShowCmd())
	return cmd
}

func newLeadsAddCmd() *cobra.Command {
	var (
		id       string
		fullName string
		email    string
		company  string
		position string
		location string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add or update a lead",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if email == "" {
				return fmt.Errorf("--email is required")
			}
			if id == "" {
				id = uuid.NewString()
			}

			app, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			lead := &store.Lead{
				ID:       id,
				FullName: fullName,
				Email:    email,
				Company:  company,
				Position: position,
				Location: location,
			}
			if err := app.store.SaveLead(ctx, lead); err != nil {
				return fmt.Errorf("save lead: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Saved lead %s (%s)\n", lead.ID, lead.Email)
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Lead ID (generated when omitted)")
	cmd.Flags().StringVar(&fullName, "name", "", "Full name")
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&company, "company", "", "Company")
	cmd.Flags().StringVar(&position, "position", "", "Position")
	cmd.Flags().StringVar(&location, "location", "", "Location")
	return cmd
}

func newLeadsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <lead-id>",
		Short: "Show one lead",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			lead, err := app.store.Lead(ctx, args[0])
			if err != nil {
				return fmt.Errorf("load lead: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Lead:           %s\n", lead.ID)
			fmt.Fprintf(out, "Name:           %s\n", lead.FullName)
			fmt.Fprintf(out, "Email:          %s\n", lead.Email)
			fmt.Fprintf(out, "Company:        %s\n", lead.Company)
			fmt.Fprintf(out, "Position:       %s\n", lead.Position)
			fmt.Fprintf(out, "Location:       %s\n", lead.Location)
			fmt.Fprintf(out, "Last contacted: %s\n", formatTime(lead.LastContactedAt))
			return nil
		},
	}
}
