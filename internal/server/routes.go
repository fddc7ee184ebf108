package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/danielolaszy/subtasker/internal/orchestrator"
	"github.com/danielolaszy/subtasker/internal/pagecontext"
	"github.com/danielolaszy/subtasker/internal/report"
	"github.com/danielolaszy/subtasker/pkg/models"
)

// HealthResponse reports liveness and whether a creation run is in flight.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Busy    bool   `json:"busy"`
	State   string `json:"state"`
}

// MetadataResponse carries whatever discovery produced. Errors maps a failed
// field to its error message; the other fields are still usable.
type MetadataResponse struct {
	Schema   models.ProjectSchema `json:"schema"`
	Errors   map[string]string    `json:"errors,omitempty"`
	Complete bool                 `json:"complete"`
}

func (s *Server) registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body HealthResponse `json:"body"`
	}, error) {
		return &struct {
			Body HealthResponse `json:"body"`
		}{Body: HealthResponse{
			Status:  "ok",
			Version: Version,
			Busy:    s.busy.Load(),
			State:   string(s.cfg.Orchestrator.State()),
		}}, nil
	})
}

func (s *Server) registerContext(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "page-context",
		Method:      http.MethodGet,
		Path:        "/context",
		Summary:     "Detect the issue and project of a tracker page",
	}, func(ctx context.Context, input *struct {
		URL string `query:"url" required:"true" doc:"Tracker page URL"`
	}) (*struct {
		Body pagecontext.Context `json:"body"`
	}, error) {
		return &struct {
			Body pagecontext.Context `json:"body"`
		}{Body: pagecontext.Parse(input.URL)}, nil
	})
}

func (s *Server) registerMetadata(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "project-metadata",
		Method:      http.MethodGet,
		Path:        "/projects/{key}/metadata",
		Summary:     "Discover issue types, statuses, users and priorities of a project",
	}, func(ctx context.Context, input *struct {
		Key     string `path:"key"`
		Refresh bool   `query:"refresh" doc:"Drop cached schema before discovery"`
	}) (*struct {
		Body MetadataResponse `json:"body"`
	}, error) {
		if input.Refresh {
			s.cfg.Schema.Refresh(input.Key)
		}

		d := s.cfg.Schema.Discover(ctx, input.Key)
		resp := MetadataResponse{Schema: d.Schema, Complete: d.Complete()}
		for field, err := range map[string]error{
			"issueTypes":      d.IssueTypesErr,
			"statuses":        d.StatusesErr,
			"assignableUsers": d.UsersErr,
			"priorities":      d.PrioritiesErr,
		} {
			if err == nil {
				continue
			}
			if resp.Errors == nil {
				resp.Errors = make(map[string]string)
			}
			resp.Errors[field] = err.Error()
		}

		return &struct {
			Body MetadataResponse `json:"body"`
		}{Body: resp}, nil
	})
}

func (s *Server) registerGenerate(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "generate",
		Method:      http.MethodPost,
		Path:        "/generate",
		Summary:     "Generate a breakdown for review",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusBadGateway,
		},
	}, func(ctx context.Context, input *struct {
		Body orchestrator.Draft `json:"body"`
	}) (*struct {
		Body models.PendingCreation `json:"body"`
	}, error) {
		pending, err := orchestrator.Prepare(ctx, s.cfg.Issues, s.cfg.Generator, input.Body)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body models.PendingCreation `json:"body"`
		}{Body: *pending}, nil
	})
}

func (s *Server) registerCreate(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "create",
		Method:      http.MethodPost,
		Path:        "/create",
		Summary:     "Create the reviewed breakdown in the tracker",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusConflict,
			http.StatusBadGateway,
		},
	}, func(ctx context.Context, input *struct {
		Body models.PendingCreation `json:"body"`
	}) (*struct {
		Body report.Summary `json:"body"`
	}, error) {
		if !s.busy.CompareAndSwap(false, true) {
			return nil, huma.Error409Conflict("a creation run is already in progress")
		}
		defer s.busy.Store(false)

		// A started run is never aborted, even if the client goes away.
		outcome, err := s.cfg.Orchestrator.Execute(context.WithoutCancel(ctx), input.Body)
		summary := report.Summarize(outcome, err, s.cfg.Browse)
		if err != nil {
			return nil, creationError(err, summary)
		}

		return &struct {
			Body report.Summary `json:"body"`
		}{Body: summary}, nil
	})
}

// creationError reports a failed run together with what it created.
func creationError(err error, summary report.Summary) huma.StatusError {
	detail := &huma.ErrorDetail{
		Message:  summary.Headline,
		Location: "outcome",
		Value:    summary,
	}

	var se *orchestrator.StepError
	if errors.As(err, &se) && se.Step == orchestrator.StepValidate {
		return huma.Error400BadRequest(err.Error(), detail)
	}
	return huma.Error502BadGateway(err.Error(), detail)
}
