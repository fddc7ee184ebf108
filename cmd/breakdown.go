package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danielolaszy/subtasker/internal/orchestrator"
	"github.com/danielolaszy/subtasker/internal/pagecontext"
	"github.com/danielolaszy/subtasker/pkg/models"
)

// breakdownCmd splits an existing story into subtasks.
var breakdownCmd = &cobra.Command{
	Use:   "breakdown",
	Short: "Break an existing story into subtasks",
	Long: `Break an existing JIRA story into AI-drafted subtasks.

The story is read from JIRA, a breakdown is generated and shown for review, and
the subtasks are created under the story once you confirm. The story can be
given by key or by the URL of any JIRA page showing it.

Subtasks are created with their summary, description and acceptance criteria
first. Priority, assignee, due date, labels, status and watchers are applied
afterwards; a failure there is logged and does not undo the subtask.

Example:
  subtasker breakdown --issue KAN-2 --count 4
  subtasker breakdown --url "https://example.atlassian.net/browse/KAN-2" --status "To Do" --watcher alice@example.com`,
	RunE: func(cmd *cobra.Command, args []string) error {
		issueKey, err := cmd.Flags().GetString("issue")
		if err != nil {
			return err
		}
		pageURL, err := cmd.Flags().GetString("url")
		if err != nil {
			return err
		}
		count, err := cmd.Flags().GetInt("count")
		if err != nil {
			return err
		}

		meta, err := metadataFromFlags(cmd, models.ModeBreakdown)
		if err != nil {
			return err
		}

		issueKey = strings.ToUpper(strings.TrimSpace(issueKey))
		if issueKey == "" && pageURL != "" {
			page := pagecontext.Parse(pageURL)
			issueKey = page.IssueKey
			if meta.ProjectKey == "" {
				meta.ProjectKey = page.ProjectKey
			}
		}
		if issueKey == "" {
			return fmt.Errorf("an issue key is required: use --issue or a --url pointing at an issue")
		}
		meta.ParentKey = issueKey

		a, err := newApp(cmd, true)
		if err != nil {
			return err
		}

		return runCreation(cmd, a, orchestrator.Draft{
			Metadata:     meta,
			SubtaskCount: count,
		})
	},
}

func init() {
	rootCmd.AddCommand(breakdownCmd)
	breakdownCmd.Flags().StringP("issue", "i", "", "key of the story to break down (e.g., 'KAN-2')")
	breakdownCmd.Flags().String("url", "", "URL of a JIRA page showing the story")
	addCreationFlags(breakdownCmd)
}
