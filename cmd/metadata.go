package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/danielolaszy/subtasker/internal/schema"
)

// metadataCmd shows what a project offers for issue creation.
var metadataCmd = &cobra.Command{
	Use:   "metadata",
	Short: "Show a project's issue types, statuses, users and priorities",
	Long: `Discover the creation metadata of a JIRA project.

The four lookups run concurrently and independently; a lookup that fails is
reported as unavailable while the others are still shown. The default subtask
issue type from the discovered metadata is printed last. Nothing is created in
the tracker.

Example:
  subtasker metadata -p KAN`,
	RunE: func(cmd *cobra.Command, args []string) error {
		projectKey, err := cmd.Flags().GetString("project")
		if err != nil {
			return err
		}
		projectKey = strings.ToUpper(strings.TrimSpace(projectKey))
		if projectKey == "" {
			return fmt.Errorf("project flag is required")
		}

		a, err := newApp(cmd, false)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		d := a.resolver.Discover(ctx, projectKey)
		printDiscovery(cmd.OutOrStdout(), d)

		fmt.Fprintf(cmd.OutOrStdout(), "\nDefault subtask issue type: %s\n", d.Schema.DefaultSubtaskTypeName)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(metadataCmd)
}

// printDiscovery writes one table per discovered field, or the reason it is missing.
func printDiscovery(w io.Writer, d *schema.Discovery) {
	s := d.Schema

	section(w, "Issue types", d.IssueTypesErr, func(tw table.Writer) {
		tw.AppendHeader(table.Row{"ID", "Name", "Subtask"})
		for _, t := range s.ParentIssueTypes {
			tw.AppendRow(table.Row{t.ID, t.Name, "no"})
		}
		for _, t := range s.SubtaskIssueTypes {
			tw.AppendRow(table.Row{t.ID, t.Name, "yes"})
		}
	})

	section(w, "Statuses", d.StatusesErr, func(tw table.Writer) {
		tw.AppendHeader(table.Row{"ID", "Name"})
		for _, st := range s.Statuses {
			tw.AppendRow(table.Row{st.ID, st.Name})
		}
	})

	section(w, "Assignable users", d.UsersErr, func(tw table.Writer) {
		tw.AppendHeader(table.Row{"Account ID", "Name", "Email"})
		for _, u := range s.AssignableUsers {
			tw.AppendRow(table.Row{u.AccountID, u.DisplayName, u.EmailAddress})
		}
	})

	section(w, "Priorities", d.PrioritiesErr, func(tw table.Writer) {
		tw.AppendHeader(table.Row{"ID", "Name"})
		for _, p := range s.Priorities {
			tw.AppendRow(table.Row{p.ID, p.Name})
		}
	})
}

func section(w io.Writer, title string, err error, fill func(tw table.Writer)) {
	fmt.Fprintf(w, "\n%s\n", title)
	if err != nil {
		fmt.Fprintf(w, "  unavailable: %v\n", err)
		return
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	fill(tw)
	tw.Render()
}
