// Package schema discovers per-project tracker schema and resolves the subtask
// issue type name a project accepts.
package schema

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/danielolaszy/subtasker/internal/jira"
	"github.com/danielolaszy/subtasker/internal/logging"
	"github.com/danielolaszy/subtasker/pkg/models"
)

// ProbeSummary is the summary of the dry-run issue used to probe subtask type names.
const ProbeSummary = "subtasker issue type probe"

// probeCandidates are tried in order when creation metadata names no subtask type.
var probeCandidates = []string{"Subtask", "Sub-task", "subtask", "sub-task"}

// issueTypeMention matches error bodies that complain about the issue type.
var issueTypeMention = regexp.MustCompile(`(?i)\bissue\s?type\b`)

// SchemaError reports that discovery produced no usable issue types.
type SchemaError struct {
	ProjectKey string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("no issue types available for project %s", e.ProjectKey)
}

// IsSchemaError reports whether err is, or wraps, a *SchemaError.
func IsSchemaError(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}

// Tracker is the subset of the tracker API used for discovery.
type Tracker interface {
	CreateMeta(ctx context.Context, projectKey string) ([]jira.CreateMetaIssueType, error)
	ProjectStatuses(ctx context.Context, projectKey string) ([][]models.Status, error)
	AssignableUsers(ctx context.Context, projectKey string) ([]models.User, error)
	Priorities(ctx context.Context) ([]models.Priority, error)
	CreateIssue(ctx context.Context, fields jira.Fields) (string, error)
}

// IssueTypeSet is the issue type part of a project schema.
type IssueTypeSet struct {
	ParentIssueTypes       []models.IssueType
	SubtaskIssueTypes      []models.IssueType
	DefaultSubtaskTypeName string
}

// Resolver discovers and memoizes project schemas. It owns two caches keyed by
// project key: full schemas and resolved subtask type names. Entries live for
// the resolver's lifetime unless Refresh drops them.
//
// A resolver serves one creation run at a time. The mutex only keeps the
// discovery goroutines from racing on the maps and is never held across a
// network call, so concurrent writers resolve as last write wins.
type Resolver struct {
	tracker Tracker

	mu           sync.Mutex
	schemas      map[string]*models.ProjectSchema
	subtaskNames map[string]string
}

// NewResolver creates a resolver with empty caches.
func NewResolver(tracker Tracker) *Resolver {
	return &Resolver{
		tracker:      tracker,
		schemas:      make(map[string]*models.ProjectSchema),
		subtaskNames: make(map[string]string),
	}
}

// IssueTypes partitions the project's creatable issue types by their subtask flag.
func (r *Resolver) IssueTypes(ctx context.Context, projectKey string) (*IssueTypeSet, error) {
	metaTypes, err := r.tracker.CreateMeta(ctx, projectKey)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch creation metadata for %s: %w", projectKey, err)
	}
	if len(metaTypes) == 0 {
		return nil, &SchemaError{ProjectKey: projectKey}
	}

	set := &IssueTypeSet{}
	for _, t := range metaTypes {
		it := models.IssueType{ID: t.ID, Name: t.Name, Subtask: t.Subtask}
		if t.Subtask {
			set.SubtaskIssueTypes = append(set.SubtaskIssueTypes, it)
			if set.DefaultSubtaskTypeName == "" {
				set.DefaultSubtaskTypeName = t.Name
			}
		} else {
			set.ParentIssueTypes = append(set.ParentIssueTypes, it)
		}
	}
	if set.DefaultSubtaskTypeName == "" {
		set.DefaultSubtaskTypeName = models.DefaultSubtaskTypeName
	}

	logging.Debug("issue types discovered",
		"project", projectKey,
		"parent_types", len(set.ParentIssueTypes),
		"subtask_types", len(set.SubtaskIssueTypes),
		"default_subtask_type", set.DefaultSubtaskTypeName)

	return set, nil
}

// Statuses flattens the per-issue-type status lists of a project into one list,
// keeping the first status seen for each name.
func (r *Resolver) Statuses(ctx context.Context, projectKey string) ([]models.Status, error) {
	lists, err := r.tracker.ProjectStatuses(ctx, projectKey)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch statuses for %s: %w", projectKey, err)
	}
	return dedupeStatuses(lists), nil
}

func dedupeStatuses(lists [][]models.Status) []models.Status {
	seen := make(map[string]bool)
	result := []models.Status{}
	for _, list := range lists {
		for _, s := range list {
			if seen[s.Name] {
				continue
			}
			seen[s.Name] = true
			result = append(result, s)
		}
	}
	return result
}

// AssignableUsers lists users assignable in a project.
func (r *Resolver) AssignableUsers(ctx context.Context, projectKey string) ([]models.User, error) {
	users, err := r.tracker.AssignableUsers(ctx, projectKey)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch assignable users for %s: %w", projectKey, err)
	}
	return users, nil
}

// Priorities lists the tracker's priorities.
func (r *Resolver) Priorities(ctx context.Context) ([]models.Priority, error) {
	priorities, err := r.tracker.Priorities(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch priorities: %w", err)
	}
	return priorities, nil
}

// ResolveSubtaskTypeName returns the subtask issue type name to use for a
// project. Detection cascades through the cache, creation metadata and a probe
// of candidate names, falling back to models.DefaultSubtaskTypeName. The result
// is cached independently of the full schema cache.
//
// Probing creates an issue with ProbeSummary and the candidate type. If the
// tracker accepts it outright, that stray issue stays in the project.
func (r *Resolver) ResolveSubtaskTypeName(ctx context.Context, projectKey string) string {
	if name, ok := r.cachedSubtaskName(projectKey); ok {
		return name
	}

	if cached, ok := r.cachedSchema(projectKey); ok && len(cached.SubtaskIssueTypes) > 0 {
		name := cached.SubtaskIssueTypes[0].Name
		r.storeSubtaskName(projectKey, name)
		return name
	}

	set, err := r.IssueTypes(ctx, projectKey)
	if err == nil && len(set.SubtaskIssueTypes) > 0 {
		name := set.SubtaskIssueTypes[0].Name
		r.storeSubtaskName(projectKey, name)
		return name
	}
	if err != nil {
		logging.Debug("creation metadata unusable, probing subtask type names",
			"project", projectKey,
			"error", err)
	}

	for _, candidate := range probeCandidates {
		if r.probe(ctx, projectKey, candidate) {
			r.storeSubtaskName(projectKey, candidate)
			return candidate
		}
	}

	logging.Warn("no subtask type detected, using fallback",
		"project", projectKey,
		"fallback", models.DefaultSubtaskTypeName)
	r.storeSubtaskName(projectKey, models.DefaultSubtaskTypeName)
	return models.DefaultSubtaskTypeName
}

// probe reports whether the tracker accepts candidate as an issue type name.
// The create call is expected to fail for unrelated reasons; only an error that
// mentions the issue type rejects the candidate.
func (r *Resolver) probe(ctx context.Context, projectKey, candidate string) bool {
	key, err := r.tracker.CreateIssue(ctx, jira.Fields{
		"project":   map[string]string{"key": projectKey},
		"summary":   ProbeSummary,
		"issuetype": map[string]string{"name": candidate},
	})
	if err == nil {
		logging.Warn("subtask type probe created an issue",
			"project", projectKey,
			"issue_type", candidate,
			"key", key)
		return true
	}

	if issueTypeMention.MatchString(errorText(err)) {
		logging.Debug("subtask type candidate rejected",
			"project", projectKey,
			"issue_type", candidate)
		return false
	}

	logging.Debug("subtask type candidate accepted",
		"project", projectKey,
		"issue_type", candidate,
		"probe_error", err)
	return true
}

// errorText serializes everything a tracker error carries for token matching.
func errorText(err error) string {
	var te *jira.TrackerError
	if errors.As(err, &te) {
		return te.Message + " " + te.Body
	}
	return err.Error()
}

// Discovery is the outcome of a discovery fan-out. Each query succeeds or
// fails on its own; a failed query leaves its schema field empty.
type Discovery struct {
	Schema        models.ProjectSchema
	IssueTypesErr error
	StatusesErr   error
	UsersErr      error
	PrioritiesErr error
}

// Complete reports whether every query succeeded.
func (d *Discovery) Complete() bool {
	return d.IssueTypesErr == nil && d.StatusesErr == nil && d.UsersErr == nil && d.PrioritiesErr == nil
}

// Discover runs the four discovery queries concurrently and waits for all of
// them. A project whose discovery fully succeeded is served from cache
// afterwards.
func (r *Resolver) Discover(ctx context.Context, projectKey string) *Discovery {
	if cached, ok := r.cachedSchema(projectKey); ok {
		return &Discovery{Schema: *cached}
	}

	d := &Discovery{Schema: models.ProjectSchema{ProjectKey: projectKey}}

	// Every goroutine records its own error and returns nil, so one failed
	// query never cancels the others.
	var g errgroup.Group

	g.Go(func() error {
		set, err := r.IssueTypes(ctx, projectKey)
		if err != nil {
			d.IssueTypesErr = err
			return nil
		}
		d.Schema.ParentIssueTypes = set.ParentIssueTypes
		d.Schema.SubtaskIssueTypes = set.SubtaskIssueTypes
		d.Schema.DefaultSubtaskTypeName = set.DefaultSubtaskTypeName
		return nil
	})
	g.Go(func() error {
		d.Schema.Statuses, d.StatusesErr = r.Statuses(ctx, projectKey)
		return nil
	})
	g.Go(func() error {
		d.Schema.AssignableUsers, d.UsersErr = r.AssignableUsers(ctx, projectKey)
		return nil
	})
	g.Go(func() error {
		d.Schema.Priorities, d.PrioritiesErr = r.Priorities(ctx)
		return nil
	})

	_ = g.Wait()

	if d.Schema.DefaultSubtaskTypeName == "" {
		d.Schema.DefaultSubtaskTypeName = models.DefaultSubtaskTypeName
	}

	for field, err := range map[string]error{
		"issue_types":      d.IssueTypesErr,
		"statuses":         d.StatusesErr,
		"assignable_users": d.UsersErr,
		"priorities":       d.PrioritiesErr,
	} {
		if err != nil {
			logging.Warn("discovery query failed",
				"project", projectKey,
				"field", field,
				"error", err)
		}
	}

	if d.Complete() {
		schema := d.Schema
		r.storeSchema(projectKey, &schema)
	}
	return d
}

// Refresh drops every cached entry for a project.
func (r *Resolver) Refresh(projectKey string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.schemas, projectKey)
	delete(r.subtaskNames, projectKey)
}

func (r *Resolver) cachedSchema(projectKey string) (*models.ProjectSchema, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.schemas[projectKey]
	return s, ok
}

func (r *Resolver) storeSchema(projectKey string, s *models.ProjectSchema) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schemas[projectKey] = s
}

func (r *Resolver) cachedSubtaskName(projectKey string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name, ok := r.subtaskNames[projectKey]
	return name, ok
}

func (r *Resolver) storeSubtaskName(projectKey, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subtaskNames[projectKey] = name
}
