// Package jira provides the authenticated gateway to the tracker's REST API and
// typed wrappers for the endpoints the creation flow uses.
package jira

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	jira "github.com/andygrunwald/go-jira"

	"github.com/danielolaszy/subtasker/internal/logging"
)

// apiPrefix is prepended to every relative path passed to Gateway.Do.
const apiPrefix = "rest/api/3/"

// TrackerError is returned for any failed tracker call. StatusCode is zero when
// the request never produced a response.
type TrackerError struct {
	StatusCode int
	Message    string
	// Body is the raw response body, kept so callers can inspect validation errors.
	Body string
}

func (e *TrackerError) Error() string {
	return e.Message
}

// IsTrackerError reports whether err is, or wraps, a *TrackerError.
func IsTrackerError(err error) bool {
	var te *TrackerError
	return errors.As(err, &te)
}

// errorBody is the structured error returned by the tracker on non-2xx responses.
type errorBody struct {
	ErrorMessages []string          `json:"errorMessages"`
	Errors        map[string]string `json:"errors"`
}

// Gateway is a thin authenticated client over the tracker's REST API. It is the
// only place where HTTP status codes are inspected.
type Gateway struct {
	client  *jira.Client
	baseURL string
}

// NewGateway creates a gateway authenticating with HTTP basic auth built from the
// account email and API token.
func NewGateway(baseURL, email, token string) (*Gateway, error) {
	return NewGatewayWithTransport(baseURL, email, token, nil)
}

// NewGatewayWithTransport is NewGateway with a custom round tripper underneath
// the basic-auth transport. A nil transport uses http.DefaultTransport.
func NewGatewayWithTransport(baseURL, email, token string, transport http.RoundTripper) (*Gateway, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("jira base url is required")
	}

	tp := jira.BasicAuthTransport{
		Username:  email,
		Password:  token,
		Transport: transport,
	}

	client, err := jira.NewClient(tp.Client(), baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create jira client: %w", err)
	}

	logging.Debug("jira gateway configured",
		"url", baseURL,
		"email", email,
		"token", logging.MaskSensitive(token))

	return &Gateway{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

// BaseURL returns the tracker's base URL without a trailing slash.
func (g *Gateway) BaseURL() string {
	return g.baseURL
}

// BrowseURL returns the human-facing link to an issue.
func (g *Gateway) BrowseURL(key string) string {
	return g.baseURL + "/browse/" + key
}

// Do performs a request against path (relative to the REST API root) and returns
// the raw JSON response. A nil body sends no payload. 204 No Content and empty
// bodies yield a nil result.
func (g *Gateway) Do(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	req, err := g.client.NewRequestWithContext(ctx, method, apiPrefix+strings.TrimLeft(path, "/"), body)
	if err != nil {
		return nil, &TrackerError{Message: fmt.Sprintf("failed to build request: %v", err)}
	}
	req.Header.Set("Accept", "application/json")

	logging.Debug("jira request", "method", method, "path", path)

	resp, err := g.client.Do(req, nil)
	if resp == nil || resp.Response == nil {
		if err == nil {
			err = errors.New("empty response")
		}
		return nil, &TrackerError{Message: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()

	data, readErr := io.ReadAll(resp.Body)
	if err != nil || resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newTrackerError(resp.StatusCode, data)
	}
	if readErr != nil {
		return nil, &TrackerError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("failed to read response: %v", readErr)}
	}

	if resp.StatusCode == http.StatusNoContent || len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}
	return json.RawMessage(data), nil
}

// newTrackerError builds a TrackerError from a non-2xx response body, preferring
// the tracker's own messages over the status code.
func newTrackerError(status int, data []byte) *TrackerError {
	te := &TrackerError{
		StatusCode: status,
		Body:       string(data),
		Message:    fmt.Sprintf("request failed with status %d", status),
	}

	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil {
		return te
	}

	if len(body.ErrorMessages) > 0 && body.ErrorMessages[0] != "" {
		te.Message = body.ErrorMessages[0]
		return te
	}

	if len(body.Errors) > 0 {
		fields := make([]string, 0, len(body.Errors))
		for field := range body.Errors {
			fields = append(fields, field)
		}
		sort.Strings(fields)

		parts := make([]string, 0, len(fields))
		for _, field := range fields {
			parts = append(parts, fmt.Sprintf("%s: %s", field, body.Errors[field]))
		}
		te.Message = strings.Join(parts, "; ")
	}
	return te
}

// decode unmarshals a gateway response into v, reporting malformed payloads as
// tracker errors.
func decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return &TrackerError{Message: "empty response from tracker"}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &TrackerError{Message: fmt.Sprintf("failed to decode tracker response: %v", err)}
	}
	return nil
}
