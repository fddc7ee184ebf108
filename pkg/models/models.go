// Package models defines data structures shared across the application.
package models

import (
	"fmt"
)

// MaxSubtaskCount is the largest number of subtasks a single generation may request.
const MaxSubtaskCount = 20

// DefaultSubtaskTypeName is used when no subtask issue type can be detected for a project.
const DefaultSubtaskTypeName = "Subtask"

// Mode selects how a run materializes its result.
type Mode string

const (
	// ModeBreakdown splits an existing story into subtasks.
	ModeBreakdown Mode = "breakdown"
	// ModeCreate creates a new parent issue together with its subtasks.
	ModeCreate Mode = "create"
)

// IssueType represents an issue type available in a project.
type IssueType struct {
	// ID is the tracker's identifier for the type
	ID string `json:"id"`

	// Name is the display name used when creating issues (e.g., "Story", "Sub-task")
	Name string `json:"name"`

	// Subtask reports whether issues of this type must have a parent
	Subtask bool `json:"subtask"`
}

// Status represents a workflow status.
type Status struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Priority represents an issue priority.
type Priority struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// User represents a tracker account.
type User struct {
	AccountID    string `json:"accountId"`
	DisplayName  string `json:"displayName"`
	EmailAddress string `json:"emailAddress,omitempty"`
}

// ProjectSchema holds everything discovered about a project that the creation flow needs.
type ProjectSchema struct {
	// ProjectKey is the key the schema was discovered for (e.g., "KAN")
	ProjectKey string `json:"projectKey"`

	// ParentIssueTypes are the types that can be created without a parent
	ParentIssueTypes []IssueType `json:"parentIssueTypes"`

	// SubtaskIssueTypes are the types flagged as subtasks
	SubtaskIssueTypes []IssueType `json:"subtaskIssueTypes"`

	// DefaultSubtaskTypeName is the first subtask type's name or DefaultSubtaskTypeName
	DefaultSubtaskTypeName string `json:"defaultSubtaskTypeName"`

	// Statuses is the project's status catalog, deduplicated by name
	Statuses []Status `json:"statuses"`

	// Priorities is the global priority catalog
	Priorities []Priority `json:"priorities"`

	// AssignableUsers are the users that can be assigned issues in the project
	AssignableUsers []User `json:"assignableUsers"`
}

// BreakdownRequest asks for an existing story to be split into subtasks.
type BreakdownRequest struct {
	StoryTitle       string `json:"storyTitle"`
	StoryDescription string `json:"storyDescription"`
	SubtaskCount     int    `json:"subtaskCount"`
}

// CreateNewRequest asks for a new issue and its subtasks to be drafted from a description.
type CreateNewRequest struct {
	Description  string `json:"description"`
	IssueType    string `json:"issueType"`
	SubtaskCount int    `json:"subtaskCount"`
}

// GenerationRequest is the input of the AI generation step. Exactly one of
// Breakdown or CreateNew is set, matching Mode.
type GenerationRequest struct {
	Mode      Mode              `json:"mode"`
	Breakdown *BreakdownRequest `json:"breakdown,omitempty"`
	CreateNew *CreateNewRequest `json:"createNew,omitempty"`
}

// NewBreakdownRequest builds a breakdown-mode generation request.
func NewBreakdownRequest(title, description string, count int) GenerationRequest {
	return GenerationRequest{
		Mode: ModeBreakdown,
		Breakdown: &BreakdownRequest{
			StoryTitle:       title,
			StoryDescription: description,
			SubtaskCount:     count,
		},
	}
}

// NewCreateRequest builds a create-mode generation request.
func NewCreateRequest(description, issueType string, count int) GenerationRequest {
	return GenerationRequest{
		Mode: ModeCreate,
		CreateNew: &CreateNewRequest{
			Description:  description,
			IssueType:    issueType,
			SubtaskCount: count,
		},
	}
}

// SubtaskCount returns the number of subtasks requested by whichever variant is set.
func (r GenerationRequest) SubtaskCount() int {
	switch {
	case r.Breakdown != nil:
		return r.Breakdown.SubtaskCount
	case r.CreateNew != nil:
		return r.CreateNew.SubtaskCount
	default:
		return 0
	}
}

// Validate checks that the request variant matches its mode and the count is in range.
func (r GenerationRequest) Validate() error {
	switch r.Mode {
	case ModeBreakdown:
		if r.Breakdown == nil || r.CreateNew != nil {
			return fmt.Errorf("breakdown request must carry only breakdown fields")
		}
		if r.Breakdown.StoryTitle == "" {
			return fmt.Errorf("story title is required")
		}
	case ModeCreate:
		if r.CreateNew == nil || r.Breakdown != nil {
			return fmt.Errorf("create request must carry only create fields")
		}
		if r.CreateNew.Description == "" {
			return fmt.Errorf("description is required")
		}
	default:
		return fmt.Errorf("unknown mode %q", r.Mode)
	}

	count := r.SubtaskCount()
	if count < 1 || count > MaxSubtaskCount {
		return fmt.Errorf("subtask count must be between 1 and %d, got %d", MaxSubtaskCount, count)
	}
	return nil
}

// GeneratedSubtask is one subtask drafted by the generator.
type GeneratedSubtask struct {
	Title              string   `json:"title"`
	Description        string   `json:"description,omitempty"`
	AcceptanceCriteria []string `json:"acceptanceCriteria,omitempty"`
}

// GenerationResult is the normalized output of the generator.
type GenerationResult struct {
	Title              string             `json:"title"`
	Description        string             `json:"description,omitempty"`
	AcceptanceCriteria []string           `json:"acceptanceCriteria,omitempty"`
	Subtasks           []GeneratedSubtask `json:"subtasks"`
}

// CreationMetadata carries everything needed to materialize a generation result.
type CreationMetadata struct {
	// Mode selects between breakdown and create
	Mode Mode `json:"mode"`

	// ProjectKey is the project issues are created in
	ProjectKey string `json:"projectKey,omitempty"`

	// ParentKey is the existing story in breakdown mode; empty in create mode
	ParentKey string `json:"parentKey,omitempty"`

	// IssueType is the parent's issue type in create mode
	IssueType string `json:"issueType,omitempty"`

	// SubtaskIssueType overrides subtask type detection when set
	SubtaskIssueType string `json:"subtaskIssueType,omitempty"`

	// Status is the target status name for the parent and every subtask
	Status string `json:"status,omitempty"`

	// Priority is the priority name applied to every subtask
	Priority string `json:"priority,omitempty"`

	// AssigneeID is the account id assigned to every subtask
	AssigneeID string `json:"assigneeId,omitempty"`

	// DueDate is an ISO date (YYYY-MM-DD) applied to every subtask
	DueDate string `json:"dueDate,omitempty"`

	// Labels are added to every subtask
	Labels []string `json:"labels,omitempty"`

	// StoryPoints is encoded as an "sp:<value>" label when set
	StoryPoints string `json:"storyPoints,omitempty"`

	// Watchers are emails or account ids added as watchers to every subtask
	Watchers []string `json:"watchers,omitempty"`
}

// OptionalFields reports whether any field of the enrichment update is configured.
func (m CreationMetadata) OptionalFields() bool {
	return m.Priority != "" || m.AssigneeID != "" || m.DueDate != "" ||
		len(m.Labels) > 0 || m.StoryPoints != ""
}

// Validate checks the mode-specific requirements of the metadata.
func (m CreationMetadata) Validate() error {
	if m.ProjectKey == "" {
		return fmt.Errorf("project key is required")
	}
	switch m.Mode {
	case ModeBreakdown:
		if m.ParentKey == "" {
			return fmt.Errorf("parent key is required in breakdown mode")
		}
	case ModeCreate:
		if m.IssueType == "" {
			return fmt.Errorf("issue type is required in create mode")
		}
	default:
		return fmt.Errorf("unknown mode %q", m.Mode)
	}
	return nil
}

// PendingCreation is a generated result waiting for the user's confirmation.
type PendingCreation struct {
	Result   GenerationResult `json:"result"`
	Metadata CreationMetadata `json:"metadata"`
}

// CreationOutcome is what a creation run produced. CreatedKeys only ever grows.
type CreationOutcome struct {
	// RunID identifies the run in logs
	RunID string `json:"runId"`

	// ParentKey is the created or pre-existing parent, empty if parent creation failed
	ParentKey string `json:"parentKey,omitempty"`

	// CreatedKeys lists every issue created by the run in creation order
	CreatedKeys []string `json:"createdKeys"`

	// Mode is the mode the run executed in
	Mode Mode `json:"mode"`
}

// TrackerIssue is the subset of an existing issue read from the tracker.
type TrackerIssue struct {
	Key         string `json:"key"`
	ProjectKey  string `json:"projectKey"`
	Summary     string `json:"summary"`
	Description string `json:"description"`
	IssueType   string `json:"issueType"`
}
