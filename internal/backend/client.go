// Package backend is the HTTP client for the automation record API.
//
// The backend owns persistence, search ranking and the audit trail. Every
// endpoint lives under {baseURL}/api/automations/ with a trailing slash.
// Non-2xx responses become *APIError whose message is the response body
// verbatim, so batch error strings show exactly what the backend said.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/automationdb/internal/core"
)

// DefaultTimeout bounds a single request.
const DefaultTimeout = 30 * time.Second

const collectionPath = "/api/automations/"

// maxErrorBody caps how much of an error response is kept.
const maxErrorBody = 64 << 10

// APIError is a non-2xx backend response.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	if body := strings.TrimSpace(e.Body); body != "" {
		return body
	}
	return fmt.Sprintf("backend returned HTTP %d", e.Status)
}

// NotFound reports whether the backend answered 404.
func (e *APIError) NotFound() bool {
	return e.Status == http.StatusNotFound
}

// Client talks to the automation backend. It satisfies core.RecordBackend.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithToken sends "Authorization: Bearer <token>" on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a client for the backend at baseURL (e.g. http://localhost:8000).
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured backend root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) collectionURL() string {
	return c.baseURL + collectionPath
}

func (c *Client) recordURL(airID string) string {
	return c.baseURL + collectionPath + url.PathEscape(airID) + "/"
}

// do sends a request and decodes a 2xx JSON body into result when non-nil.
func (c *Client) do(ctx context.Context, method, target string, body, result any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	c.logger.Debug("backend request",
		"method", method,
		"url", target,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{Status: resp.StatusCode, Body: string(data)}
	}

	if result == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil && err != io.EOF {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// List fetches the full collection. A paginated {"results": [...]} envelope
// is accepted as well as a bare array.
func (c *Client) List(ctx context.Context) ([]core.Record, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, c.collectionURL(), nil, &raw); err != nil {
		return nil, err
	}

	records := []core.Record{}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var page struct {
			Results []core.Record `json:"results"`
		}
		if err := json.Unmarshal(trimmed, &page); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		if page.Results != nil {
			records = page.Results
		}
		return records, nil
	}
	if len(trimmed) > 0 {
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
	}
	return records, nil
}

// Get fetches one record.
func (c *Client) Get(ctx context.Context, airID string) (*core.Record, error) {
	var rec core.Record
	if err := c.do(ctx, http.MethodGet, c.recordURL(airID), nil, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Create inserts one record and returns what the backend stored.
func (c *Client) Create(ctx context.Context, rec core.Record) (*core.Record, error) {
	var out core.Record
	if err := c.do(ctx, http.MethodPost, c.collectionURL(), rec, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Replace fully replaces the record keyed by airID.
func (c *Client) Replace(ctx context.Context, airID string, rec core.Record) (*core.Record, error) {
	var out core.Record
	if err := c.do(ctx, http.MethodPut, c.recordURL(airID), rec, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Patch changes only the given fields.
func (c *Client) Patch(ctx context.Context, airID string, fields map[string]any) (*core.Record, error) {
	var out core.Record
	if err := c.do(ctx, http.MethodPatch, c.recordURL(airID), fields, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete removes one record. A 404 is an error like any other non-2xx.
func (c *Client) Delete(ctx context.Context, airID string) error {
	return c.do(ctx, http.MethodDelete, c.recordURL(airID), nil, nil)
}

// Search runs the backend's ranked search.
func (c *Client) Search(ctx context.Context, params core.SearchParams) (*core.SearchResult, error) {
	q := url.Values{}
	q.Set("q", params.Query)
	q.Set("limit", strconv.Itoa(params.Limit))
	q.Set("fuzzy", strconv.FormatBool(params.Fuzzy))

	var out core.SearchResult
	if err := c.do(ctx, http.MethodGet, c.collectionURL()+"search/?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AuditLogs returns the backend's audit-log listing untouched.
func (c *Client) AuditLogs(ctx context.Context, query url.Values) (json.RawMessage, error) {
	target := c.collectionURL() + "audit-logs/"
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var out json.RawMessage
	if err := c.do(ctx, http.MethodGet, target, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Ping checks that the backend answers the collection endpoint.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.collectionURL(), nil)
	if err != nil {
		return err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode >= 500 {
		return &APIError{Status: resp.StatusCode}
	}
	return nil
}

var _ core.RecordBackend = (*Client)(nil)
