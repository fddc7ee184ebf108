// Package generation turns a generation request into a validated breakdown using
// an AI text-generation service.
package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/danielolaszy/subtasker/internal/logging"
	"github.com/danielolaszy/subtasker/pkg/models"
)

// Failure reasons carried by GenerationError.
const (
	ReasonInvalidRequest  = "invalid request"
	ReasonRequestFailed   = "request failed"
	ReasonInvalidJSON     = "invalid JSON"
	ReasonMissingSubtasks = "missing subtasks"
)

// codeFence matches a response wrapped in a Markdown code block.
var codeFence = regexp.MustCompile("(?s)^```(?:json|JSON)?\\s*\\n?(.*?)\\n?```$")

// GenerationError reports a failed or unusable generation.
type GenerationError struct {
	Reason string
	Err    error
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("generation failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("generation failed: %s", e.Reason)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// IsGenerationError reports whether err is, or wraps, a *GenerationError.
func IsGenerationError(err error) bool {
	var ge *GenerationError
	return errors.As(err, &ge)
}

// Completer sends a system and a user instruction to a text-generation service
// and returns the raw completion text.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Adapter builds prompts, calls the completer and normalizes its output.
type Adapter struct {
	completer Completer
}

// NewAdapter creates an adapter over a completer.
func NewAdapter(completer Completer) *Adapter {
	return &Adapter{completer: completer}
}

// Generate produces a breakdown for req. Subtasks beyond the requested count are
// dropped; fewer subtasks than requested are returned as-is.
func (a *Adapter) Generate(ctx context.Context, req models.GenerationRequest) (*models.GenerationResult, error) {
	if err := req.Validate(); err != nil {
		return nil, &GenerationError{Reason: ReasonInvalidRequest, Err: err}
	}

	logging.Info("requesting generation",
		"mode", req.Mode,
		"subtask_count", req.SubtaskCount())

	text, err := a.completer.Complete(ctx, systemPrompt, buildUserPrompt(req))
	if err != nil {
		return nil, &GenerationError{Reason: ReasonRequestFailed, Err: err}
	}

	result, err := ParseResult(text)
	if err != nil {
		logging.Debug("unusable generation response", "response", truncate(text, 500))
		return nil, err
	}

	requested := req.SubtaskCount()
	if len(result.Subtasks) > requested {
		logging.Debug("truncating generated subtasks",
			"generated", len(result.Subtasks),
			"requested", requested)
		result.Subtasks = result.Subtasks[:requested]
	} else if len(result.Subtasks) < requested {
		logging.Warn("generator returned fewer subtasks than requested",
			"generated", len(result.Subtasks),
			"requested", requested)
	}

	logging.Info("generation complete",
		"title", result.Title,
		"subtasks", len(result.Subtasks))

	return result, nil
}

// ParseResult strips Markdown code fences from a completion and decodes it. It
// fails with ReasonInvalidJSON when the text is not a JSON object and with
// ReasonMissingSubtasks when the object has no subtask array.
func ParseResult(text string) (*models.GenerationResult, error) {
	cleaned := stripCodeFences(text)

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &fields); err != nil {
		return nil, &GenerationError{Reason: ReasonInvalidJSON, Err: err}
	}

	subtasks, ok := fields["subtasks"]
	if !ok || !strings.HasPrefix(strings.TrimSpace(string(subtasks)), "[") {
		return nil, &GenerationError{Reason: ReasonMissingSubtasks}
	}

	var result models.GenerationResult
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return nil, &GenerationError{Reason: ReasonInvalidJSON, Err: err}
	}
	if result.Subtasks == nil {
		result.Subtasks = []models.GeneratedSubtask{}
	}
	return &result, nil
}

func stripCodeFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if m := codeFence.FindStringSubmatch(trimmed); m != nil {
		return strings.TrimSpace(m[1])
	}
	return trimmed
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// Providers accepted by NewCompleter.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// NewCompleter creates the completer for a provider name.
func NewCompleter(provider, apiKey, baseURL, model string) (Completer, error) {
	switch strings.ToLower(provider) {
	case ProviderOpenAI, "":
		return NewChatClient(apiKey, baseURL, model), nil
	case ProviderAnthropic:
		return NewAnthropicClient(apiKey, baseURL, model), nil
	default:
		return nil, fmt.Errorf("unsupported ai provider %q", provider)
	}
}
