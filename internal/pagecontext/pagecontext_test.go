package pagecontext

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	testCases := []struct {
		name string
		url  string
		want Context
	}{
		{
			name: "Issue page",
			url:  "https://example.atlassian.net/browse/KAN-2",
			want: Context{IssueKey: "KAN-2", ProjectKey: "KAN"},
		},
		{
			name: "Issue page with trailing slash and query",
			url:  "https://example.atlassian.net/browse/kan-12/?focusedCommentId=1",
			want: Context{IssueKey: "KAN-12", ProjectKey: "KAN"},
		},
		{
			name: "Board with selected issue",
			url:  "https://example.atlassian.net/jira/software/projects/WEB/boards/3?selectedIssue=WEB-44",
			want: Context{IssueKey: "WEB-44", ProjectKey: "WEB"},
		},
		{
			name: "Board without selection",
			url:  "https://example.atlassian.net/jira/software/projects/WEB/boards/3",
			want: Context{ProjectKey: "WEB"},
		},
		{
			name: "Project key with digits and underscore",
			url:  "https://example.atlassian.net/browse/AB_2-7",
			want: Context{IssueKey: "AB_2-7", ProjectKey: "AB_2"},
		},
		{
			name: "Dashboard",
			url:  "https://example.atlassian.net/jira/dashboards",
			want: Context{},
		},
		{
			name: "Not an issue key",
			url:  "https://example.atlassian.net/browse/settings",
			want: Context{},
		},
		{
			name: "Unparseable URL",
			url:  "://bad url",
			want: Context{},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Parse(tc.url))
		})
	}
}

func TestProjectOf(t *testing.T) {
	assert.Equal(t, "KAN", ProjectOf("KAN-2"))
	assert.Equal(t, "KAN", ProjectOf(" kan-2 "))
	assert.Equal(t, "", ProjectOf("KAN"))
	assert.Equal(t, "", ProjectOf(""))
}
