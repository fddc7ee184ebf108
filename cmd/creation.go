package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danielolaszy/subtasker/internal/logging"
	"github.com/danielolaszy/subtasker/internal/orchestrator"
	"github.com/danielolaszy/subtasker/internal/report"
	"github.com/danielolaszy/subtasker/pkg/models"
)

// addCreationFlags registers the flags shared by every command that creates issues.
func addCreationFlags(cmd *cobra.Command) {
	cmd.Flags().IntP("count", "n", 3, fmt.Sprintf("number of subtasks to generate (1-%d)", models.MaxSubtaskCount))
	cmd.Flags().String("status", "", "transition the created issues to this status")
	cmd.Flags().String("priority", "", "priority name for every subtask")
	cmd.Flags().String("assignee", "", "account id assigned to every subtask")
	cmd.Flags().String("due", "", "due date for every subtask (YYYY-MM-DD)")
	cmd.Flags().StringArray("label", []string{}, "label added to every subtask (can be specified multiple times)")
	cmd.Flags().String("story-points", "", "story points, recorded as an 'sp:<value>' label")
	cmd.Flags().StringArray("watcher", []string{}, "email or account id added as watcher (can be specified multiple times)")
	cmd.Flags().String("subtask-type", "", "subtask issue type name (detected when empty)")
	cmd.Flags().BoolP("yes", "y", false, "create without asking for confirmation")
}

// metadataFromFlags reads the creation flags into metadata for mode.
func metadataFromFlags(cmd *cobra.Command, mode models.Mode) (models.CreationMetadata, error) {
	meta := models.CreationMetadata{Mode: mode}
	flags := cmd.Flags()

	var err error
	if meta.ProjectKey, err = flags.GetString("project"); err != nil {
		return meta, err
	}
	meta.ProjectKey = strings.ToUpper(meta.ProjectKey)

	stringFlags := map[string]*string{
		"status":       &meta.Status,
		"priority":     &meta.Priority,
		"assignee":     &meta.AssigneeID,
		"due":          &meta.DueDate,
		"story-points": &meta.StoryPoints,
		"subtask-type": &meta.SubtaskIssueType,
	}
	for name, target := range stringFlags {
		if *target, err = flags.GetString(name); err != nil {
			return meta, err
		}
	}

	if meta.Labels, err = flags.GetStringArray("label"); err != nil {
		return meta, err
	}
	if meta.Watchers, err = flags.GetStringArray("watcher"); err != nil {
		return meta, err
	}

	return meta, nil
}

// runCreation generates a draft, shows it, asks for confirmation and creates it.
func runCreation(cmd *cobra.Command, a *app, draft orchestrator.Draft) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()

	yes, err := cmd.Flags().GetBool("yes")
	if err != nil {
		return err
	}

	logging.Info("generating subtasks",
		"mode", draft.Metadata.Mode,
		"project", draft.Metadata.ProjectKey,
		"parent", draft.Metadata.ParentKey,
		"count", draft.SubtaskCount)

	pending, err := orchestrator.Prepare(ctx, a.client, a.generator, draft)
	if err != nil {
		return err
	}

	report.RenderPreview(out, pending.Result)
	fmt.Fprintln(out)

	if !yes && !confirm(cmd.InOrStdin(), out, createPrompt(pending)) {
		fmt.Fprintln(out, "Nothing was created.")
		return nil
	}

	outcome, runErr := a.orchestrator.Execute(ctx, *pending)
	summary := report.Summarize(outcome, runErr, a.client.BrowseURL)

	fmt.Fprintln(out)
	report.PrintHeadline(out, summary)
	report.RenderTable(out, summary)

	if runErr != nil {
		return fmt.Errorf("creation stopped after %d issue(s): %w", len(summary.Entries), runErr)
	}
	return nil
}

func createPrompt(pending *models.PendingCreation) string {
	n := len(pending.Result.Subtasks)
	if pending.Metadata.Mode == models.ModeCreate {
		return fmt.Sprintf("Create %s %q with %d subtasks in %s?", pending.Metadata.IssueType, pending.Result.Title, n, pending.Metadata.ProjectKey)
	}
	return fmt.Sprintf("Create %d subtasks under %s?", n, pending.Metadata.ParentKey)
}

// confirm asks a yes/no question and defaults to no.
func confirm(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s [y/N]: ", question)
	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && answer == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
