package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielolaszy/subtasker/internal/jira"
	"github.com/danielolaszy/subtasker/pkg/models"
)

// mockIssueReader implements IssueReader for testing.
type mockIssueReader struct {
	GetIssueFunc func(ctx context.Context, key string) (*models.TrackerIssue, error)
	calls        int
}

func (m *mockIssueReader) GetIssue(ctx context.Context, key string) (*models.TrackerIssue, error) {
	m.calls++
	if m.GetIssueFunc != nil {
		return m.GetIssueFunc(ctx, key)
	}
	return nil, errors.New("not implemented")
}

// mockGenerator implements Generator for testing.
type mockGenerator struct {
	GenerateFunc func(ctx context.Context, req models.GenerationRequest) (*models.GenerationResult, error)
	requests     []models.GenerationRequest
}

func (m *mockGenerator) Generate(ctx context.Context, req models.GenerationRequest) (*models.GenerationResult, error) {
	m.requests = append(m.requests, req)
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, req)
	}
	result := generated("Generated", req.SubtaskCount())
	return &result, nil
}

func TestPrepareBreakdownReadsParent(t *testing.T) {
	issues := &mockIssueReader{
		GetIssueFunc: func(ctx context.Context, key string) (*models.TrackerIssue, error) {
			assert.Equal(t, "KAN-2", key)
			return &models.TrackerIssue{Key: "KAN-2", ProjectKey: "KAN", Summary: "Login page", Description: "Users sign in"}, nil
		},
	}
	gen := &mockGenerator{}

	pending, err := Prepare(context.Background(), issues, gen, Draft{
		Metadata:     models.CreationMetadata{Mode: models.ModeBreakdown, ParentKey: "kan-2"},
		SubtaskCount: 3,
	})
	require.NoError(t, err)

	assert.Equal(t, "KAN", pending.Metadata.ProjectKey)
	assert.Equal(t, "KAN-2", pending.Metadata.ParentKey)
	assert.Len(t, pending.Result.Subtasks, 3)

	require.Len(t, gen.requests, 1)
	require.NotNil(t, gen.requests[0].Breakdown)
	assert.Equal(t, "Login page", gen.requests[0].Breakdown.StoryTitle)
	assert.Equal(t, "Users sign in", gen.requests[0].Breakdown.StoryDescription)
}

func TestPrepareBreakdownWithGivenStory(t *testing.T) {
	issues := &mockIssueReader{}
	gen := &mockGenerator{}

	_, err := Prepare(context.Background(), issues, gen, Draft{
		Metadata:     models.CreationMetadata{Mode: models.ModeBreakdown, ProjectKey: "KAN", ParentKey: "KAN-2"},
		SubtaskCount: 2,
		StoryTitle:   "Login page",
	})
	require.NoError(t, err)
	assert.Equal(t, 0, issues.calls)
}

func TestPrepareCreate(t *testing.T) {
	gen := &mockGenerator{}

	pending, err := Prepare(context.Background(), &mockIssueReader{}, gen, Draft{
		Metadata:     models.CreationMetadata{Mode: models.ModeCreate, ProjectKey: "KAN", IssueType: "Story"},
		SubtaskCount: 2,
		Description:  "Export reports as CSV",
	})
	require.NoError(t, err)

	assert.Equal(t, models.ModeCreate, pending.Metadata.Mode)
	require.NotNil(t, gen.requests[0].CreateNew)
	assert.Equal(t, "Story", gen.requests[0].CreateNew.IssueType)
	assert.Equal(t, "Export reports as CSV", gen.requests[0].CreateNew.Description)
}

func TestPrepareErrors(t *testing.T) {
	t.Run("Invalid metadata", func(t *testing.T) {
		gen := &mockGenerator{}
		_, err := Prepare(context.Background(), &mockIssueReader{}, gen, Draft{
			Metadata:     models.CreationMetadata{Mode: models.ModeCreate, ProjectKey: "KAN"},
			SubtaskCount: 2,
		})

		var se *StepError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, StepValidate, se.Step)
		assert.Empty(t, gen.requests)
	})

	t.Run("Parent lookup fails", func(t *testing.T) {
		issues := &mockIssueReader{
			GetIssueFunc: func(ctx context.Context, key string) (*models.TrackerIssue, error) {
				return nil, &jira.TrackerError{StatusCode: 404, Message: "Issue does not exist"}
			},
		}
		_, err := Prepare(context.Background(), issues, &mockGenerator{}, Draft{
			Metadata:     models.CreationMetadata{Mode: models.ModeBreakdown, ParentKey: "KAN-404"},
			SubtaskCount: 2,
		})

		var se *StepError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, StepReadParent, se.Step)
		assert.True(t, jira.IsTrackerError(err))
	})

	t.Run("Generation fails", func(t *testing.T) {
		gen := &mockGenerator{
			GenerateFunc: func(ctx context.Context, req models.GenerationRequest) (*models.GenerationResult, error) {
				return nil, errors.New("generation failed: invalid JSON")
			},
		}
		_, err := Prepare(context.Background(), &mockIssueReader{}, gen, Draft{
			Metadata:     models.CreationMetadata{Mode: models.ModeCreate, ProjectKey: "KAN", IssueType: "Task"},
			SubtaskCount: 1,
			Description:  "Something",
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid JSON")
	})
}
