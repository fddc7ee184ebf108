// Package orchestrator materializes a confirmed generation result as tracker
// issues: the parent (in create mode), then each subtask with its enrichment.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	gojira "github.com/andygrunwald/go-jira"
	"github.com/google/uuid"

	"github.com/danielolaszy/subtasker/internal/adf"
	"github.com/danielolaszy/subtasker/internal/jira"
	"github.com/danielolaszy/subtasker/internal/logging"
	"github.com/danielolaszy/subtasker/pkg/models"
)

// State is the phase of a creation run.
type State string

const (
	StateIdle             State = "idle"
	StateResolvingParent  State = "resolving_parent"
	StateCreatingSubtasks State = "creating_subtasks"
	StateDone             State = "done"
	StateFailed           State = "failed"
)

// Steps named in StepError and enrichment logs.
const (
	StepValidate      = "validate"
	StepCreateParent  = "create_parent"
	StepCreateSubtask = "create_subtask"
	StepUpdateFields  = "update_fields"
	StepTransition    = "transition"
	StepResolveUser   = "resolve_watcher"
	StepAddWatcher    = "add_watcher"
)

// StepError reports the defining step that aborted a run.
type StepError struct {
	Step  string
	Index int
	Err   error
}

func (e *StepError) Error() string {
	if e.Step == StepCreateSubtask {
		return fmt.Sprintf("failed to create subtask %d: %v", e.Index+1, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Tracker is the subset of the tracker API a run needs.
type Tracker interface {
	CreateIssue(ctx context.Context, fields jira.Fields) (string, error)
	UpdateIssue(ctx context.Context, key string, fields jira.Fields) error
	GetTransitions(ctx context.Context, key string) ([]gojira.Transition, error)
	DoTransition(ctx context.Context, key, transitionID string) error
	AddWatcher(ctx context.Context, key, accountID string) error
	SearchUsers(ctx context.Context, query string) ([]models.User, error)
}

// SubtaskTypeResolver picks the subtask issue type name for a project.
type SubtaskTypeResolver interface {
	ResolveSubtaskTypeName(ctx context.Context, projectKey string) string
}

// Orchestrator executes creation runs. It holds no per-run state besides the
// current phase; callers run at most one Execute at a time.
type Orchestrator struct {
	tracker  Tracker
	resolver SubtaskTypeResolver

	mu    sync.Mutex
	state State
}

// New creates an idle orchestrator.
func New(tracker Tracker, resolver SubtaskTypeResolver) *Orchestrator {
	return &Orchestrator{
		tracker:  tracker,
		resolver: resolver,
		state:    StateIdle,
	}
}

// State returns the phase of the current or last run.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state = s
}

// run carries the per-execution logger and outcome.
type run struct {
	log     *slog.Logger
	outcome *models.CreationOutcome
}

// Execute creates the issues described by pending. The returned outcome is never
// nil and lists every key created before a failure. Only parent creation and
// subtask creation can fail a run; enrichment failures are logged and dropped.
func (o *Orchestrator) Execute(ctx context.Context, pending models.PendingCreation) (*models.CreationOutcome, error) {
	meta := pending.Metadata
	result := pending.Result

	r := &run{
		outcome: &models.CreationOutcome{
			RunID:       uuid.NewString(),
			CreatedKeys: []string{},
			Mode:        meta.Mode,
		},
	}
	r.log = logging.With("run_id", r.outcome.RunID, "project", meta.ProjectKey, "mode", meta.Mode)

	if err := meta.Validate(); err != nil {
		o.setState(StateFailed)
		return r.outcome, &StepError{Step: StepValidate, Err: err}
	}

	r.log.Info("starting creation run", "subtasks", len(result.Subtasks))

	o.setState(StateResolvingParent)
	parentKey, err := o.resolveParent(ctx, r, meta, result)
	if err != nil {
		o.setState(StateFailed)
		r.log.Error("parent creation failed", "error", err)
		return r.outcome, &StepError{Step: StepCreateParent, Err: err}
	}
	r.outcome.ParentKey = parentKey

	if meta.Status != "" {
		o.bestEffort(r, StepTransition, parentKey, o.Transition(ctx, parentKey, meta.Status))
	}

	o.setState(StateCreatingSubtasks)

	// Subtasks are created one after another in generation order.
	for i, subtask := range result.Subtasks {
		key, err := o.createSubtask(ctx, meta, parentKey, subtask)
		if err != nil {
			o.setState(StateFailed)
			r.log.Error("subtask creation failed",
				"index", i,
				"title", subtask.Title,
				"created", len(r.outcome.CreatedKeys),
				"error", err)
			return r.outcome, &StepError{Step: StepCreateSubtask, Index: i, Err: err}
		}
		r.outcome.CreatedKeys = append(r.outcome.CreatedKeys, key)
		r.log.Info("subtask created", "key", key, "parent", parentKey)

		o.enrich(ctx, r, meta, key)
	}

	o.setState(StateDone)
	r.log.Info("creation run complete",
		"parent", parentKey,
		"created", len(r.outcome.CreatedKeys))
	return r.outcome, nil
}

// resolveParent creates the parent in create mode and returns the existing
// parent key in breakdown mode.
func (o *Orchestrator) resolveParent(ctx context.Context, r *run, meta models.CreationMetadata, result models.GenerationResult) (string, error) {
	if meta.Mode == models.ModeBreakdown {
		return meta.ParentKey, nil
	}

	key, err := o.tracker.CreateIssue(ctx, jira.Fields{
		"project":     map[string]string{"key": meta.ProjectKey},
		"summary":     result.Title,
		"description": adf.Build(result.Description, result.AcceptanceCriteria),
		"issuetype":   map[string]string{"name": meta.IssueType},
	})
	if err != nil {
		return "", err
	}

	r.outcome.CreatedKeys = append(r.outcome.CreatedKeys, key)
	r.log.Info("parent created", "key", key, "issue_type", meta.IssueType)
	return key, nil
}

// createSubtask creates a subtask with the essential fields only. Optional
// fields are applied afterwards so a field missing from the project's create
// screen cannot block creation.
func (o *Orchestrator) createSubtask(ctx context.Context, meta models.CreationMetadata, parentKey string, subtask models.GeneratedSubtask) (string, error) {
	issueType := meta.SubtaskIssueType
	if issueType == "" {
		issueType = o.resolver.ResolveSubtaskTypeName(ctx, meta.ProjectKey)
	}

	return o.tracker.CreateIssue(ctx, jira.Fields{
		"project":     map[string]string{"key": meta.ProjectKey},
		"parent":      map[string]string{"key": parentKey},
		"summary":     subtask.Title,
		"description": adf.Build(subtask.Description, subtask.AcceptanceCriteria),
		"issuetype":   map[string]string{"name": issueType},
	})
}

// enrich applies optional fields, the target status and watchers to a created
// subtask. Nothing here can fail the run.
func (o *Orchestrator) enrich(ctx context.Context, r *run, meta models.CreationMetadata, key string) {
	if meta.OptionalFields() {
		o.bestEffort(r, StepUpdateFields, key, o.tracker.UpdateIssue(ctx, key, optionalFields(meta)))
	}

	if meta.Status != "" {
		o.bestEffort(r, StepTransition, key, o.Transition(ctx, key, meta.Status))
	}

	for _, watcher := range meta.Watchers {
		accountID := o.resolveWatcher(ctx, r, key, watcher)
		o.bestEffort(r, StepAddWatcher, key, o.tracker.AddWatcher(ctx, key, accountID))
	}
}

// optionalFields builds the enrichment update. Story points travel as an
// "sp:<value>" label.
func optionalFields(meta models.CreationMetadata) jira.Fields {
	fields := jira.Fields{}
	if meta.Priority != "" {
		fields["priority"] = map[string]string{"name": meta.Priority}
	}
	if meta.AssigneeID != "" {
		fields["assignee"] = map[string]string{"accountId": meta.AssigneeID}
	}
	if meta.DueDate != "" {
		fields["duedate"] = meta.DueDate
	}

	labels := append([]string{}, meta.Labels...)
	if meta.StoryPoints != "" {
		labels = append(labels, "sp:"+meta.StoryPoints)
	}
	if len(labels) > 0 {
		fields["labels"] = labels
	}
	return fields
}

// resolveWatcher turns an email into an account id. Anything else, or an email
// the search cannot resolve, is used as given.
func (o *Orchestrator) resolveWatcher(ctx context.Context, r *run, key, watcher string) string {
	if !strings.Contains(watcher, "@") {
		return watcher
	}

	users, err := o.tracker.SearchUsers(ctx, watcher)
	if err != nil {
		o.bestEffort(r, StepResolveUser, key, err)
		return watcher
	}
	if len(users) == 0 || users[0].AccountID == "" {
		r.log.Debug("watcher not found, using raw identifier", "key", key, "watcher", watcher)
		return watcher
	}
	return users[0].AccountID
}

// Transition moves an issue to the status named status, matched case-insensitively
// against the transitions currently available. No matching transition is not an error.
func (o *Orchestrator) Transition(ctx context.Context, key, status string) error {
	transitions, err := o.tracker.GetTransitions(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to list transitions for %s: %w", key, err)
	}

	for _, t := range transitions {
		if strings.EqualFold(t.Name, status) {
			if err := o.tracker.DoTransition(ctx, key, t.ID); err != nil {
				return fmt.Errorf("failed to transition %s to %s: %w", key, status, err)
			}
			logging.Debug("issue transitioned", "key", key, "status", t.Name)
			return nil
		}
	}

	logging.Debug("no transition matches target status", "key", key, "status", status)
	return nil
}

// bestEffort is the single place enrichment errors are dropped. The error is
// logged and never returned.
func (o *Orchestrator) bestEffort(r *run, step, key string, err error) {
	if err == nil {
		return
	}
	r.log.Warn("enrichment step failed",
		"step", step,
		"key", key,
		"error", err)
}

// IsStepError reports whether err is, or wraps, a *StepError.
func IsStepError(err error) bool {
	var se *StepError
	return errors.As(err, &se)
}
