package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielolaszy/subtasker/internal/generation"
	"github.com/danielolaszy/subtasker/internal/jira"
	"github.com/danielolaszy/subtasker/internal/orchestrator"
	"github.com/danielolaszy/subtasker/internal/pagecontext"
	"github.com/danielolaszy/subtasker/internal/report"
	"github.com/danielolaszy/subtasker/internal/schema"
	"github.com/danielolaszy/subtasker/pkg/models"
)

type mockIssues struct {
	GetIssueFunc func(ctx context.Context, key string) (*models.TrackerIssue, error)
}

func (m *mockIssues) GetIssue(ctx context.Context, key string) (*models.TrackerIssue, error) {
	if m.GetIssueFunc != nil {
		return m.GetIssueFunc(ctx, key)
	}
	return &models.TrackerIssue{Key: key, ProjectKey: "KAN", Summary: "Login page"}, nil
}

type mockGenerator struct {
	GenerateFunc func(ctx context.Context, req models.GenerationRequest) (*models.GenerationResult, error)
}

func (m *mockGenerator) Generate(ctx context.Context, req models.GenerationRequest) (*models.GenerationResult, error) {
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, req)
	}
	result := &models.GenerationResult{Title: "Login page"}
	for i := 0; i < req.SubtaskCount(); i++ {
		result.Subtasks = append(result.Subtasks, models.GeneratedSubtask{Title: "Step"})
	}
	return result, nil
}

type mockSchema struct {
	DiscoverFunc func(ctx context.Context, projectKey string) *schema.Discovery
	refreshed    []string
}

func (m *mockSchema) Discover(ctx context.Context, projectKey string) *schema.Discovery {
	if m.DiscoverFunc != nil {
		return m.DiscoverFunc(ctx, projectKey)
	}
	return &schema.Discovery{Schema: models.ProjectSchema{ProjectKey: projectKey}}
}

func (m *mockSchema) Refresh(projectKey string) {
	m.refreshed = append(m.refreshed, projectKey)
}

type mockExecutor struct {
	ExecuteFunc func(ctx context.Context, pending models.PendingCreation) (*models.CreationOutcome, error)
}

func (m *mockExecutor) Execute(ctx context.Context, pending models.PendingCreation) (*models.CreationOutcome, error) {
	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(ctx, pending)
	}
	return &models.CreationOutcome{
		Mode:        pending.Metadata.Mode,
		ParentKey:   pending.Metadata.ParentKey,
		CreatedKeys: []string{"KAN-3", "KAN-4"},
	}, nil
}

func (m *mockExecutor) State() orchestrator.State {
	return orchestrator.StateIdle
}

func newTestServer(t *testing.T, cfg Config) *httptest.Server {
	t.Helper()
	if cfg.Issues == nil {
		cfg.Issues = &mockIssues{}
	}
	if cfg.Generator == nil {
		cfg.Generator = &mockGenerator{}
	}
	if cfg.Schema == nil {
		cfg.Schema = &mockSchema{}
	}
	if cfg.Orchestrator == nil {
		cfg.Orchestrator = &mockExecutor{}
	}
	cfg.Browse = func(key string) string { return "https://example.atlassian.net/browse/" + key }

	srv := httptest.NewServer(New(cfg).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader = http.NoBody
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res, data
}

func pendingBreakdown() models.PendingCreation {
	return models.PendingCreation{
		Result: models.GenerationResult{
			Title:    "Login page",
			Subtasks: []models.GeneratedSubtask{{Title: "Build form"}, {Title: "Wire API"}},
		},
		Metadata: models.CreationMetadata{Mode: models.ModeBreakdown, ProjectKey: "KAN", ParentKey: "KAN-2"},
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, Config{})

	res, data := doJSON(t, http.MethodGet, srv.URL+"/health", nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))

	var health HealthResponse
	require.NoError(t, json.Unmarshal(data, &health))
	assert.Equal(t, "ok", health.Status)
	assert.False(t, health.Busy)
	assert.Equal(t, string(orchestrator.StateIdle), health.State)
}

func TestPageContext(t *testing.T) {
	srv := newTestServer(t, Config{})

	res, data := doJSON(t, http.MethodGet, srv.URL+"/context?url=https%3A%2F%2Fexample.atlassian.net%2Fbrowse%2FKAN-2", nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))

	var got pagecontext.Context
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, pagecontext.Context{IssueKey: "KAN-2", ProjectKey: "KAN"}, got)
}

func TestMetadataReportsPerFieldErrors(t *testing.T) {
	schemaSvc := &mockSchema{
		DiscoverFunc: func(ctx context.Context, projectKey string) *schema.Discovery {
			return &schema.Discovery{
				Schema: models.ProjectSchema{
					ProjectKey: projectKey,
					Statuses:   []models.Status{{ID: "1", Name: "To Do"}},
				},
				UsersErr: &jira.TrackerError{StatusCode: 403, Message: "forbidden"},
			}
		},
	}
	srv := newTestServer(t, Config{Schema: schemaSvc})

	res, data := doJSON(t, http.MethodGet, srv.URL+"/projects/KAN/metadata?refresh=true", nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))

	var resp MetadataResponse
	require.NoError(t, json.Unmarshal(data, &resp))
	assert.False(t, resp.Complete)
	assert.Equal(t, "forbidden", resp.Errors["assignableUsers"])
	assert.Len(t, resp.Errors, 1)
	assert.Equal(t, "To Do", resp.Schema.Statuses[0].Name)
	assert.Equal(t, []string{"KAN"}, schemaSvc.refreshed)
}

func TestGenerate(t *testing.T) {
	srv := newTestServer(t, Config{})

	res, data := doJSON(t, http.MethodPost, srv.URL+"/generate", orchestrator.Draft{
		Metadata:     models.CreationMetadata{Mode: models.ModeBreakdown, ParentKey: "KAN-2"},
		SubtaskCount: 3,
	})
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))

	var pending models.PendingCreation
	require.NoError(t, json.Unmarshal(data, &pending))
	assert.Equal(t, "KAN", pending.Metadata.ProjectKey)
	assert.Len(t, pending.Result.Subtasks, 3)
}

func TestGenerateErrors(t *testing.T) {
	testCases := []struct {
		name       string
		generator  *mockGenerator
		issues     *mockIssues
		draft      orchestrator.Draft
		wantStatus int
	}{
		{
			name:       "Invalid metadata",
			draft:      orchestrator.Draft{Metadata: models.CreationMetadata{Mode: models.ModeCreate, ProjectKey: "KAN"}, SubtaskCount: 2},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "Unusable generation",
			generator: &mockGenerator{
				GenerateFunc: func(ctx context.Context, req models.GenerationRequest) (*models.GenerationResult, error) {
					return nil, &generation.GenerationError{Reason: generation.ReasonInvalidJSON}
				},
			},
			draft:      orchestrator.Draft{Metadata: models.CreationMetadata{Mode: models.ModeBreakdown, ParentKey: "KAN-2"}, SubtaskCount: 2},
			wantStatus: http.StatusBadGateway,
		},
		{
			name: "Parent does not exist",
			issues: &mockIssues{
				GetIssueFunc: func(ctx context.Context, key string) (*models.TrackerIssue, error) {
					return nil, &jira.TrackerError{StatusCode: 404, Message: "Issue does not exist"}
				},
			},
			draft:      orchestrator.Draft{Metadata: models.CreationMetadata{Mode: models.ModeBreakdown, ParentKey: "KAN-404"}, SubtaskCount: 2},
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Config{}
			if tc.generator != nil {
				cfg.Generator = tc.generator
			}
			if tc.issues != nil {
				cfg.Issues = tc.issues
			}
			srv := newTestServer(t, cfg)

			res, data := doJSON(t, http.MethodPost, srv.URL+"/generate", tc.draft)
			assert.Equal(t, tc.wantStatus, res.StatusCode, string(data))
		})
	}
}

func TestCreate(t *testing.T) {
	srv := newTestServer(t, Config{})

	res, data := doJSON(t, http.MethodPost, srv.URL+"/create", pendingBreakdown())
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))

	var summary report.Summary
	require.NoError(t, json.Unmarshal(data, &summary))
	assert.Equal(t, "Created 2 subtasks under KAN-2", summary.Headline)
	assert.Len(t, summary.Entries, 2)
	assert.Equal(t, "https://example.atlassian.net/browse/KAN-3", summary.Entries[0].URL)
}

func TestCreatePartialFailure(t *testing.T) {
	executor := &mockExecutor{
		ExecuteFunc: func(ctx context.Context, pending models.PendingCreation) (*models.CreationOutcome, error) {
			return &models.CreationOutcome{
					Mode:        models.ModeCreate,
					ParentKey:   "KAN-7",
					CreatedKeys: []string{"KAN-7", "KAN-8"},
				}, &orchestrator.StepError{
					Step:  orchestrator.StepCreateSubtask,
					Index: 1,
					Err:   &jira.TrackerError{StatusCode: 400, Message: "Field 'parent' is invalid"},
				}
		},
	}
	srv := newTestServer(t, Config{Orchestrator: executor})

	res, data := doJSON(t, http.MethodPost, srv.URL+"/create", pendingBreakdown())
	require.Equal(t, http.StatusBadGateway, res.StatusCode, string(data))

	var problem struct {
		Detail string `json:"detail"`
		Errors []struct {
			Location string         `json:"location"`
			Value    report.Summary `json:"value"`
		} `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(data, &problem))
	assert.Contains(t, problem.Detail, "Field 'parent' is invalid")
	require.Len(t, problem.Errors, 1)
	assert.Equal(t, "outcome", problem.Errors[0].Location)
	assert.Equal(t, []string{"KAN-7", "KAN-8"}, []string{problem.Errors[0].Value.Entries[0].Key, problem.Errors[0].Value.Entries[1].Key})
	assert.True(t, problem.Errors[0].Value.Failed)
}

func TestCreateRejectsConcurrentRun(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	executor := &mockExecutor{
		ExecuteFunc: func(ctx context.Context, pending models.PendingCreation) (*models.CreationOutcome, error) {
			close(started)
			<-release
			return &models.CreationOutcome{Mode: models.ModeBreakdown, ParentKey: "KAN-2", CreatedKeys: []string{"KAN-3"}}, nil
		},
	}
	srv := newTestServer(t, Config{Orchestrator: executor})

	body, err := json.Marshal(pendingBreakdown())
	require.NoError(t, err)

	done := make(chan int, 1)
	go func() {
		res, err := http.Post(srv.URL+"/create", "application/json", bytes.NewReader(body))
		if err != nil {
			done <- 0
			return
		}
		res.Body.Close()
		done <- res.StatusCode
	}()

	<-started
	res, data := doJSON(t, http.MethodPost, srv.URL+"/create", pendingBreakdown())
	assert.Equal(t, http.StatusConflict, res.StatusCode, string(data))

	close(release)
	assert.Equal(t, http.StatusOK, <-done)
}

func TestExtensionCORS(t *testing.T) {
	srv := newTestServer(t, Config{})

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/create", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "chrome-extension://abcdef")
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	res.Body.Close()

	assert.Equal(t, http.StatusNoContent, res.StatusCode)
	assert.Equal(t, "chrome-extension://abcdef", res.Header.Get("Access-Control-Allow-Origin"))

	res2, _ := doJSON(t, http.MethodGet, srv.URL+"/health", nil)
	assert.Empty(t, res2.Header.Get("Access-Control-Allow-Origin"))
}

func TestHandleError(t *testing.T) {
	assert.Nil(t, handleError(nil))
	assert.Equal(t, http.StatusInternalServerError, handleError(errors.New("boom")).GetStatus())
	assert.Equal(t, http.StatusBadGateway, handleError(&schema.SchemaError{ProjectKey: "KAN"}).GetStatus())
	assert.Equal(t, http.StatusBadRequest, handleError(&generation.GenerationError{Reason: generation.ReasonInvalidRequest}).GetStatus())
}
