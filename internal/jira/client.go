package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	jira "github.com/andygrunwald/go-jira"

	"github.com/danielolaszy/subtasker/internal/adf"
	"github.com/danielolaszy/subtasker/pkg/models"
)

// Fields is the "fields" object of an issue create or edit payload.
type Fields map[string]any

// Client handles interactions with the JIRA API.
type Client struct {
	gateway *Gateway
}

// NewClient creates a new JIRA client on top of a gateway.
func NewClient(gateway *Gateway) *Client {
	return &Client{gateway: gateway}
}

// Gateway returns the underlying gateway.
func (c *Client) Gateway() *Gateway {
	return c.gateway
}

// BrowseURL returns the human-facing link to an issue.
func (c *Client) BrowseURL(key string) string {
	return c.gateway.BrowseURL(key)
}

// CreateMetaIssueType is an issue type as reported by the creation metadata endpoint.
type CreateMetaIssueType struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Subtask bool   `json:"subtask"`
}

type createMetaResponse struct {
	Projects []struct {
		Key        string                `json:"key"`
		IssueTypes []CreateMetaIssueType `json:"issuetypes"`
	} `json:"projects"`
}

type issueResponse struct {
	Key    string `json:"key"`
	Fields struct {
		Summary     string          `json:"summary"`
		Description json.RawMessage `json:"description"`
		Project     struct {
			Key string `json:"key"`
		} `json:"project"`
		IssueType jira.IssueType `json:"issuetype"`
	} `json:"fields"`
}

type createdIssue struct {
	ID  string `json:"id"`
	Key string `json:"key"`
}

type projectStatusesEntry struct {
	Name     string        `json:"name"`
	Subtask  bool          `json:"subtask"`
	Statuses []jira.Status `json:"statuses"`
}

type transitionsResponse struct {
	Transitions []jira.Transition `json:"transitions"`
}

// GetIssue reads the summary, description, project and type of an issue. The
// description is returned as plain text.
func (c *Client) GetIssue(ctx context.Context, key string) (*models.TrackerIssue, error) {
	path := fmt.Sprintf("issue/%s?fields=summary,description,project,issuetype", url.PathEscape(key))
	data, err := c.gateway.Do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var resp issueResponse
	if err := decode(data, &resp); err != nil {
		return nil, err
	}

	description, err := adf.Decode(resp.Fields.Description)
	if err != nil {
		return nil, &TrackerError{Message: fmt.Sprintf("failed to read description of %s: %v", key, err)}
	}

	return &models.TrackerIssue{
		Key:         resp.Key,
		ProjectKey:  resp.Fields.Project.Key,
		Summary:     resp.Fields.Summary,
		Description: description,
		IssueType:   resp.Fields.IssueType.Name,
	}, nil
}

// CreateIssue creates an issue and returns its key.
func (c *Client) CreateIssue(ctx context.Context, fields Fields) (string, error) {
	data, err := c.gateway.Do(ctx, http.MethodPost, "issue", map[string]any{"fields": fields})
	if err != nil {
		return "", err
	}

	var created createdIssue
	if err := decode(data, &created); err != nil {
		return "", err
	}
	if created.Key == "" {
		return "", &TrackerError{Message: "tracker did not return an issue key"}
	}
	return created.Key, nil
}

// UpdateIssue edits fields of an existing issue.
func (c *Client) UpdateIssue(ctx context.Context, key string, fields Fields) error {
	_, err := c.gateway.Do(ctx, http.MethodPut, "issue/"+url.PathEscape(key), map[string]any{"fields": fields})
	return err
}

// GetTransitions lists the transitions currently available for an issue.
func (c *Client) GetTransitions(ctx context.Context, key string) ([]jira.Transition, error) {
	data, err := c.gateway.Do(ctx, http.MethodGet, "issue/"+url.PathEscape(key)+"/transitions", nil)
	if err != nil {
		return nil, err
	}

	var resp transitionsResponse
	if err := decode(data, &resp); err != nil {
		return nil, err
	}
	return resp.Transitions, nil
}

// DoTransition executes a transition by id.
func (c *Client) DoTransition(ctx context.Context, key, transitionID string) error {
	body := map[string]any{"transition": map[string]string{"id": transitionID}}
	_, err := c.gateway.Do(ctx, http.MethodPost, "issue/"+url.PathEscape(key)+"/transitions", body)
	return err
}

// AddWatcher adds an account as a watcher. The payload is the bare identifier string.
func (c *Client) AddWatcher(ctx context.Context, key, accountID string) error {
	_, err := c.gateway.Do(ctx, http.MethodPost, "issue/"+url.PathEscape(key)+"/watchers", accountID)
	return err
}

// CreateMeta returns the issue types the current user can create in a project.
func (c *Client) CreateMeta(ctx context.Context, projectKey string) ([]CreateMetaIssueType, error) {
	path := "issue/createmeta?projectKeys=" + url.QueryEscape(projectKey) + "&expand=projects.issuetypes"
	data, err := c.gateway.Do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var resp createMetaResponse
	if err := decode(data, &resp); err != nil {
		return nil, err
	}

	var types []CreateMetaIssueType
	for _, project := range resp.Projects {
		types = append(types, project.IssueTypes...)
	}
	return types, nil
}

// ProjectStatuses returns the status lists of every issue type in a project, in
// the order the tracker reports them.
func (c *Client) ProjectStatuses(ctx context.Context, projectKey string) ([][]models.Status, error) {
	data, err := c.gateway.Do(ctx, http.MethodGet, "project/"+url.PathEscape(projectKey)+"/statuses", nil)
	if err != nil {
		return nil, err
	}

	var entries []projectStatusesEntry
	if err := decode(data, &entries); err != nil {
		return nil, err
	}

	lists := make([][]models.Status, 0, len(entries))
	for _, entry := range entries {
		list := make([]models.Status, 0, len(entry.Statuses))
		for _, s := range entry.Statuses {
			list = append(list, models.Status{ID: s.ID, Name: s.Name})
		}
		lists = append(lists, list)
	}
	return lists, nil
}

// AssignableUsers returns the users that can be assigned issues in a project.
func (c *Client) AssignableUsers(ctx context.Context, projectKey string) ([]models.User, error) {
	data, err := c.gateway.Do(ctx, http.MethodGet, "user/assignable/search?project="+url.QueryEscape(projectKey), nil)
	if err != nil {
		return nil, err
	}
	return decodeUsers(data)
}

// SearchUsers finds users matching a query such as an email address.
func (c *Client) SearchUsers(ctx context.Context, query string) ([]models.User, error) {
	data, err := c.gateway.Do(ctx, http.MethodGet, "user/search?query="+url.QueryEscape(query), nil)
	if err != nil {
		return nil, err
	}
	return decodeUsers(data)
}

// Priorities returns the global priority catalog.
func (c *Client) Priorities(ctx context.Context) ([]models.Priority, error) {
	data, err := c.gateway.Do(ctx, http.MethodGet, "priority", nil)
	if err != nil {
		return nil, err
	}

	var priorities []jira.Priority
	if err := decode(data, &priorities); err != nil {
		return nil, err
	}

	result := make([]models.Priority, 0, len(priorities))
	for _, p := range priorities {
		result = append(result, models.Priority{ID: p.ID, Name: p.Name})
	}
	return result, nil
}

func decodeUsers(data json.RawMessage) ([]models.User, error) {
	var users []jira.User
	if err := decode(data, &users); err != nil {
		return nil, err
	}

	result := make([]models.User, 0, len(users))
	for _, u := range users {
		result = append(result, models.User{
			AccountID:    u.AccountID,
			DisplayName:  u.DisplayName,
			EmailAddress: u.EmailAddress,
		})
	}
	return result, nil
}
