package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

// userID is shared by every command that acts on behalf of a CRM user.
var userID string

var rootCmd = &cobra.Command{
	Use:          "leadmail",
	Short:        "CRM email integration for Gmail",
	Long:         "leadmail links CRM users to their Google accounts and sends, lists and logs email on their behalf.",
	SilenceUsage: true,
}

// SetVersion sets the version string reported by the version command.
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute runs the root command.
func Execute() {
	rootCmd.SetVersionTemplate("leadmail version {{.Version}}\n")
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&userID, "user", "default", "CRM user ID to act as")

	rootCmd.AddCommand(newConnectCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newSendCmd())
	rootCmd.AddCommand(newBulkSendCmd())
	rootCmd.AddCommand(newCampaignCmd())
	rootCmd.AddCommand(newLeadsCmd())
	rootCmd.AddCommand(newEmailsCmd())
	rootCmd.AddCommand(newLogsCmd())
	rootCmd.AddCommand(newVersionCmd())
}
