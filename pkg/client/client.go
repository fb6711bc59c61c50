// Package client provides a typed HTTP client SDK for the phonebook API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/kshg9/FSO-part11-ci-phonebook/pkg/types"
)

const (
	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 3
	retryWaitMin      = 200 * time.Millisecond
	retryWaitMax      = 2 * time.Second
	maxErrorBodyBytes = 1 << 16

	personsPath   = "/api/persons"
	infoPath      = "/info"
	healthPath    = "/health"
	readinessPath = "/readiness"
	versionPath   = "/version"
)

// Config holds phonebook client configuration.
type Config struct {
	// BaseURL is the root URL of the API (for example: http://localhost:3001).
	BaseURL string
	// Timeout is the per-request timeout. Defaults to 30s.
	Timeout time.Duration
	// MaxRetries is the number of extra attempts for idempotent requests
	// that fail with a transport error or a 502/503/504. Zero means the
	// default of 3; a negative value disables retries. POST is never
	// retried. A retried DELETE whose first response was lost can report
	// 404 for a record the first attempt already removed.
	MaxRetries int
	// HTTPClient overrides the transport. Timeout is ignored when set.
	HTTPClient *http.Client
}

// APIError is returned for any non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("phonebook api: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("phonebook api: %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is an APIError with status 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Client is the typed HTTP SDK for the phonebook API.
type Client struct {
	http    *retryablehttp.Client
	baseURL string
}

// New creates a new phonebook client.
func New(cfg Config) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, fmt.Errorf("client: BaseURL is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("client: invalid BaseURL: %w", err)
	}

	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	switch {
	case cfg.MaxRetries == 0:
		cfg.MaxRetries = defaultMaxRetries
	case cfg.MaxRetries < 0:
		cfg.MaxRetries = 0
	}

	rc := retryablehttp.NewClient()
	rc.Logger = nil
	rc.RetryMax = cfg.MaxRetries
	rc.RetryWaitMin = retryWaitMin
	rc.RetryWaitMax = retryWaitMax
	rc.CheckRetry = checkRetry
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	if cfg.HTTPClient != nil {
		rc.HTTPClient = cfg.HTTPClient
	} else {
		rc.HTTPClient.Timeout = cfg.Timeout
	}

	return &Client{
		http:    rc,
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

// checkRetry retries transport errors and gateway-style 5xx answers on
// idempotent methods only.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if method, _ := ctx.Value(methodKey{}).(string); method == http.MethodPost {
		return false, nil
	}
	if err != nil {
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}
	switch resp.StatusCode {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true, nil
	default:
		return false, nil
	}
}

// methodKey carries the request method to checkRetry, which only receives
// the request context.
type methodKey struct{}

// ListPersons returns every entry.
func (c *Client) ListPersons(ctx context.Context) ([]types.Person, error) {
	var out []types.Person
	if err := c.do(ctx, http.MethodGet, personsPath, nil, &out); err != nil {
		return nil, fmt.Errorf("listing persons: %w", err)
	}
	return out, nil
}

// GetPerson returns one entry.
func (c *Client) GetPerson(ctx context.Context, id string) (*types.Person, error) {
	var out types.Person
	if err := c.do(ctx, http.MethodGet, personPath(id), nil, &out); err != nil {
		return nil, fmt.Errorf("getting person %s: %w", id, err)
	}
	return &out, nil
}

// CreatePerson stores a new entry.
func (c *Client) CreatePerson(ctx context.Context, req types.PersonRequest) (*types.Person, error) {
	var out types.Person
	if err := c.do(ctx, http.MethodPost, personsPath, req, &out); err != nil {
		return nil, fmt.Errorf("creating person: %w", err)
	}
	return &out, nil
}

// UpdatePerson replaces name and number of an entry.
func (c *Client) UpdatePerson(ctx context.Context, id string, req types.PersonRequest) (*types.Person, error) {
	var out types.Person
	if err := c.do(ctx, http.MethodPut, personPath(id), req, &out); err != nil {
		return nil, fmt.Errorf("updating person %s: %w", id, err)
	}
	return &out, nil
}

// DeletePerson removes an entry.
func (c *Client) DeletePerson(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, personPath(id), nil, nil); err != nil {
		return fmt.Errorf("deleting person %s: %w", id, err)
	}
	return nil
}

// Info returns the raw HTML of the info page.
func (c *Client) Info(ctx context.Context) (string, error) {
	var out bytes.Buffer
	if err := c.do(ctx, http.MethodGet, infoPath, nil, &out); err != nil {
		return "", fmt.Errorf("getting info: %w", err)
	}
	return out.String(), nil
}

// Health returns nil when the liveness probe answers 200.
func (c *Client) Health(ctx context.Context) error {
	if err := c.do(ctx, http.MethodGet, healthPath, nil, nil); err != nil {
		return fmt.Errorf("checking health: %w", err)
	}
	return nil
}

// Ready returns nil when the readiness probe answers 200.
func (c *Client) Ready(ctx context.Context) error {
	if err := c.do(ctx, http.MethodGet, readinessPath, nil, nil); err != nil {
		return fmt.Errorf("checking readiness: %w", err)
	}
	return nil
}

// Version returns build information.
func (c *Client) Version(ctx context.Context) (*types.VersionResponse, error) {
	var out types.VersionResponse
	if err := c.do(ctx, http.MethodGet, versionPath, nil, &out); err != nil {
		return nil, fmt.Errorf("getting version: %w", err)
	}
	return &out, nil
}

func personPath(id string) string {
	return personsPath + "/" + url.PathEscape(id)
}

// do sends one request and decodes the response into out. out may be nil
// to discard the body, or a *bytes.Buffer to keep it raw.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body any
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = payload
	}

	ctx = context.WithValue(ctx, methodKey{}, method)
	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var errBody types.ErrorResponse
		if raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes)); readErr == nil && len(raw) > 0 {
			if json.Unmarshal(raw, &errBody) == nil {
				apiErr.Message = errBody.Error
			}
		}
		return apiErr
	}

	switch dst := out.(type) {
	case nil:
		_, _ = io.Copy(io.Discard, resp.Body)
	case *bytes.Buffer:
		if _, err := dst.ReadFrom(resp.Body); err != nil {
			return fmt.Errorf("reading response: %w", err)
		}
	default:
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}
