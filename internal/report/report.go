// Package report formats creation outcomes and generated previews for display.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/danielolaszy/subtasker/pkg/models"
)

// Roles of a created issue.
const (
	RoleParent  = "parent"
	RoleSubtask = "subtask"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	partialColor = color.New(color.FgYellow, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	titleColor   = color.New(color.FgCyan, color.Bold)
)

// Entry is one created issue.
type Entry struct {
	Key  string `json:"key"`
	Role string `json:"role"`
	URL  string `json:"url"`
}

// Summary is a display-ready view of a creation outcome.
type Summary struct {
	RunID     string      `json:"runId"`
	Mode      models.Mode `json:"mode"`
	ParentKey string      `json:"parentKey,omitempty"`
	ParentURL string      `json:"parentUrl,omitempty"`
	Entries   []Entry     `json:"entries"`
	Headline  string      `json:"headline"`
	Failed    bool        `json:"failed"`
	Error     string      `json:"error,omitempty"`
}

// Subtasks counts the created subtasks.
func (s Summary) Subtasks() int {
	n := 0
	for _, e := range s.Entries {
		if e.Role == RoleSubtask {
			n++
		}
	}
	return n
}

// Summarize builds a summary of outcome. runErr is the error the run ended with,
// if any; browse turns an issue key into a link.
func Summarize(outcome *models.CreationOutcome, runErr error, browse func(string) string) Summary {
	s := Summary{Entries: []Entry{}}
	if outcome == nil {
		outcome = &models.CreationOutcome{}
	}

	s.RunID = outcome.RunID
	s.Mode = outcome.Mode
	s.ParentKey = outcome.ParentKey
	if s.ParentKey != "" {
		s.ParentURL = browse(s.ParentKey)
	}

	for _, key := range outcome.CreatedKeys {
		role := RoleSubtask
		if outcome.Mode == models.ModeCreate && key == outcome.ParentKey {
			role = RoleParent
		}
		s.Entries = append(s.Entries, Entry{Key: key, Role: role, URL: browse(key)})
	}

	if runErr != nil {
		s.Failed = true
		s.Error = runErr.Error()
	}
	s.Headline = headline(s)
	return s
}

func headline(s Summary) string {
	subtasks := plural(s.Subtasks(), "subtask")

	if !s.Failed {
		if s.Mode == models.ModeCreate {
			return fmt.Sprintf("Created %s with %s", s.ParentKey, subtasks)
		}
		return fmt.Sprintf("Created %s under %s", subtasks, s.ParentKey)
	}

	if len(s.Entries) == 0 {
		return fmt.Sprintf("Nothing was created: %s", s.Error)
	}
	if s.Mode == models.ModeCreate {
		return fmt.Sprintf("Created %s with %s before failing: %s", s.ParentKey, subtasks, s.Error)
	}
	return fmt.Sprintf("Created %s under %s before failing: %s", subtasks, s.ParentKey, s.Error)
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

// PrintHeadline writes the headline in green on success, yellow when some
// issues were created before a failure and red when nothing was.
func PrintHeadline(w io.Writer, s Summary) {
	c := successColor
	switch {
	case s.Failed && len(s.Entries) > 0:
		c = partialColor
	case s.Failed:
		c = errorColor
	}
	c.Fprintln(w, s.Headline)
}

// RenderTable writes the created issues as a table.
func RenderTable(w io.Writer, s Summary) {
	if len(s.Entries) == 0 {
		return
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"#", "Key", "Role", "Link"})
	for i, e := range s.Entries {
		tw.AppendRow(table.Row{i + 1, e.Key, e.Role, e.URL})
	}
	tw.Render()
}

// RenderPreview writes a generated breakdown for review before anything is created.
func RenderPreview(w io.Writer, result models.GenerationResult) {
	titleColor.Fprintln(w, result.Title)
	if result.Description != "" {
		fmt.Fprintln(w, result.Description)
	}
	if len(result.AcceptanceCriteria) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Acceptance criteria:")
		for _, c := range result.AcceptanceCriteria {
			fmt.Fprintf(w, "  - %s\n", c)
		}
	}
	fmt.Fprintln(w)

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"#", "Subtask", "Acceptance criteria"})
	for i, st := range result.Subtasks {
		tw.AppendRow(table.Row{i + 1, st.Title, strings.Join(st.AcceptanceCriteria, "\n")})
	}
	tw.Render()
}
