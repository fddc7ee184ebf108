// Package pagecontext extracts the issue and project a tracker page URL points at.
package pagecontext

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	issueKeyPattern   = regexp.MustCompile(`^[A-Z][A-Z0-9_]+-[0-9]+$`)
	projectKeyPattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]+$`)
)

// Context is what a page URL tells us. Either field may be empty.
type Context struct {
	IssueKey   string `json:"issueKey,omitempty"`
	ProjectKey string `json:"projectKey,omitempty"`
}

// Parse reads a tracker URL. It understands issue pages (/browse/KAN-2), boards
// and backlogs with a selectedIssue query parameter, and project paths
// (/jira/software/projects/KAN/boards/1). Unrecognized URLs yield an empty Context.
func Parse(rawURL string) Context {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return Context{}
	}

	var ctx Context

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, segment := range segments {
		if i+1 >= len(segments) {
			break
		}
		next := strings.ToUpper(segments[i+1])
		switch segment {
		case "browse":
			if ctx.IssueKey == "" && issueKeyPattern.MatchString(next) {
				ctx.IssueKey = next
			}
		case "projects":
			if ctx.ProjectKey == "" && projectKeyPattern.MatchString(next) {
				ctx.ProjectKey = next
			}
		}
	}

	if ctx.IssueKey == "" {
		selected := strings.ToUpper(u.Query().Get("selectedIssue"))
		if issueKeyPattern.MatchString(selected) {
			ctx.IssueKey = selected
		}
	}

	if ctx.ProjectKey == "" && ctx.IssueKey != "" {
		ctx.ProjectKey = ProjectOf(ctx.IssueKey)
	}

	return ctx
}

// ProjectOf returns the project part of an issue key, or "" if key is not one.
func ProjectOf(issueKey string) string {
	key := strings.ToUpper(strings.TrimSpace(issueKey))
	if !issueKeyPattern.MatchString(key) {
		return ""
	}
	return key[:strings.LastIndex(key, "-")]
}
