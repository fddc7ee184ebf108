package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/danielolaszy/subtasker/internal/pagecontext"
	"github.com/danielolaszy/subtasker/pkg/models"
)

// StepReadParent names the story lookup done while preparing a breakdown.
const StepReadParent = "read_parent"

// IssueReader reads an existing issue.
type IssueReader interface {
	GetIssue(ctx context.Context, key string) (*models.TrackerIssue, error)
}

// Generator produces a breakdown for a generation request.
type Generator interface {
	Generate(ctx context.Context, req models.GenerationRequest) (*models.GenerationResult, error)
}

// Draft is what the user asked for before anything was generated.
type Draft struct {
	Metadata     models.CreationMetadata `json:"metadata"`
	SubtaskCount int                     `json:"subtaskCount"`

	// Description is the free text a new issue is drafted from in create mode.
	Description string `json:"description,omitempty"`

	// StoryTitle and StoryDescription describe the parent in breakdown mode.
	// When the title is empty the parent is read from the tracker.
	StoryTitle       string `json:"storyTitle,omitempty"`
	StoryDescription string `json:"storyDescription,omitempty"`
}

// Prepare turns a draft into a pending creation by asking the generator for a
// breakdown. Nothing is created in the tracker.
func Prepare(ctx context.Context, issues IssueReader, gen Generator, d Draft) (*models.PendingCreation, error) {
	meta := d.Metadata
	meta.ParentKey = strings.ToUpper(strings.TrimSpace(meta.ParentKey))
	if meta.ProjectKey == "" && meta.ParentKey != "" {
		meta.ProjectKey = pagecontext.ProjectOf(meta.ParentKey)
	}
	if err := meta.Validate(); err != nil {
		return nil, &StepError{Step: StepValidate, Err: err}
	}

	var req models.GenerationRequest
	switch meta.Mode {
	case models.ModeBreakdown:
		title, description := d.StoryTitle, d.StoryDescription
		if title == "" {
			issue, err := issues.GetIssue(ctx, meta.ParentKey)
			if err != nil {
				return nil, &StepError{Step: StepReadParent, Err: fmt.Errorf("failed to read %s: %w", meta.ParentKey, err)}
			}
			title, description = issue.Summary, issue.Description
			if issue.ProjectKey != "" {
				meta.ProjectKey = issue.ProjectKey
			}
		}
		req = models.NewBreakdownRequest(title, description, d.SubtaskCount)
	case models.ModeCreate:
		req = models.NewCreateRequest(d.Description, meta.IssueType, d.SubtaskCount)
	}

	result, err := gen.Generate(ctx, req)
	if err != nil {
		return nil, err
	}

	return &models.PendingCreation{Result: *result, Metadata: meta}, nil
}
