// Package server exposes the creation flow as a local HTTP API for the browser
// extension UI.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/danielolaszy/subtasker/internal/generation"
	"github.com/danielolaszy/subtasker/internal/jira"
	"github.com/danielolaszy/subtasker/internal/logging"
	"github.com/danielolaszy/subtasker/internal/orchestrator"
	"github.com/danielolaszy/subtasker/internal/schema"
	"github.com/danielolaszy/subtasker/pkg/models"
)

// Version is reported by the health endpoint and the OpenAPI document.
const Version = "0.1.0"

// SchemaService discovers project schemas.
type SchemaService interface {
	Discover(ctx context.Context, projectKey string) *schema.Discovery
	Refresh(projectKey string)
}

// Executor runs confirmed creations.
type Executor interface {
	Execute(ctx context.Context, pending models.PendingCreation) (*models.CreationOutcome, error)
	State() orchestrator.State
}

// Config wires the API to the rest of the application.
type Config struct {
	Issues       orchestrator.IssueReader
	Generator    orchestrator.Generator
	Schema       SchemaService
	Orchestrator Executor

	// Browse turns an issue key into a link.
	Browse func(key string) string
}

// Server is the HTTP API. At most one creation run is in flight at a time.
type Server struct {
	cfg    Config
	busy   atomic.Bool
	router chi.Router
}

// New builds the router and registers every operation.
func New(cfg Config) *Server {
	s := &Server{cfg: cfg}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(requestLogger)
	router.Use(extensionCORS)

	hcfg := huma.DefaultConfig("subtasker API", Version)
	api := humachi.New(router, hcfg)

	s.registerHealth(api)
	s.registerContext(api)
	s.registerMetadata(api)
	s.registerGenerate(api)
	s.registerCreate(api)

	s.router = router
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	logging.Info("api listening", "addr", addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		logging.Info("shutting down api")
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// handleError maps application errors onto HTTP statuses.
func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}

	var se *orchestrator.StepError
	if errors.As(err, &se) && se.Step == orchestrator.StepValidate {
		return huma.Error400BadRequest(err.Error())
	}

	var ge *generation.GenerationError
	if errors.As(err, &ge) {
		if ge.Reason == generation.ReasonInvalidRequest {
			return huma.Error400BadRequest(err.Error())
		}
		return huma.Error502BadGateway(err.Error())
	}

	if schema.IsSchemaError(err) {
		return huma.Error502BadGateway(err.Error())
	}

	var te *jira.TrackerError
	if errors.As(err, &te) {
		if te.StatusCode == http.StatusNotFound {
			return huma.Error404NotFound(err.Error())
		}
		return huma.Error502BadGateway(err.Error())
	}

	logging.Error("unhandled api error", "error", err)
	return huma.Error500InternalServerError("internal error")
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logging.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start))
	})
}

// extensionCORS lets browser extension pages call the API. Web origins get no
// CORS headers and are refused by the browser.
func extensionCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if isExtensionOrigin(origin) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type")
			h.Add("Vary", "Origin")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func isExtensionOrigin(origin string) bool {
	return strings.HasPrefix(origin, "chrome-extension://") ||
		strings.HasPrefix(origin, "moz-extension://") ||
		strings.HasPrefix(origin, "safari-web-extension://")
}
