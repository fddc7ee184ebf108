package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "subtasker",
	Short: "Subtasker breaks tracker stories into AI-drafted subtasks",
	Long: `Subtasker drafts subtasks for JIRA stories with an AI model and creates them
after you review the draft. It can break down an existing story, create a new
issue together with its subtasks, inspect a project's creation metadata, and
serve the same flow as a local HTTP API for the browser extension.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Add persistent flags that will be available to all commands
	rootCmd.PersistentFlags().String("config", "", "config file (default is $HOME/.subtasker.yaml)")
	rootCmd.PersistentFlags().StringP("project", "p", "", "JIRA project key (e.g., 'KAN')")
}
