package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danielolaszy/subtasker/internal/orchestrator"
	"github.com/danielolaszy/subtasker/pkg/models"
)

// createCmd drafts a new issue with subtasks from a free-text description.
var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new issue with subtasks from a description",
	Long: `Create a new JIRA issue and its subtasks from a free-text description.

A title, description, acceptance criteria and subtasks are generated from the
description and shown for review. On confirmation the issue is created first
and every subtask is created under it.

Example:
  subtasker create -p KAN --type Story --description "Users can export reports as CSV" -n 3`,
	RunE: func(cmd *cobra.Command, args []string) error {
		issueType, err := cmd.Flags().GetString("type")
		if err != nil {
			return err
		}
		description, err := cmd.Flags().GetString("description")
		if err != nil {
			return err
		}
		count, err := cmd.Flags().GetInt("count")
		if err != nil {
			return err
		}

		meta, err := metadataFromFlags(cmd, models.ModeCreate)
		if err != nil {
			return err
		}
		meta.IssueType = issueType

		if meta.ProjectKey == "" {
			return fmt.Errorf("project flag is required")
		}
		if strings.TrimSpace(description) == "" {
			return fmt.Errorf("description flag is required")
		}

		a, err := newApp(cmd, true)
		if err != nil {
			return err
		}

		return runCreation(cmd, a, orchestrator.Draft{
			Metadata:     meta,
			SubtaskCount: count,
			Description:  description,
		})
	},
}

func init() {
	rootCmd.AddCommand(createCmd)
	createCmd.Flags().StringP("type", "t", "Story", "issue type of the new issue")
	createCmd.Flags().StringP("description", "d", "", "what the new issue is about")
	addCreationFlags(createCmd)
}
