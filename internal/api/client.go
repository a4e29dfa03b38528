// Package api talks to the FAQ Scorer backend over HTTP.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultTimeout leaves room for slow analyze runs.
const DefaultTimeout = 600 * time.Second

// APIError describes a failed backend call.
type APIError struct {
	Message    string
	StatusCode int
	// Details is the decoded JSON error body, or the raw text when it is not JSON.
	Details any
	Err     error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *APIError) Unwrap() error { return e.Err }

// DetailsText renders Details for display.
func (e *APIError) DetailsText() string {
	switch d := e.Details.(type) {
	case nil:
		return ""
	case string:
		return d
	default:
		b, err := json.MarshalIndent(d, "", "  ")
		if err != nil {
			return fmt.Sprint(d)
		}
		return string(b)
	}
}

// Client is a thin JSON client bound to one backend base URL.
type Client struct {
	baseURL   string
	http      *http.Client
	userAgent string
	log       logrus.FieldLogger
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Client) { c.log = l }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// NewClient builds a client for baseURL; trailing slashes are dropped.
func NewClient(baseURL string, opts ...Option) *Client {
	discard := logrus.New()
	discard.SetOutput(io.Discard)
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      &http.Client{Timeout: DefaultTimeout},
		userAgent: "faqscorer",
		log:       discard,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend base URL.
func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) url(path string, params url.Values) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

// GetJSON issues GET path and decodes the JSON response into out.
func (c *Client) GetJSON(ctx context.Context, path string, params url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, params, nil, out)
}

// PostJSON issues POST path with an optional JSON body and decodes the response into out.
func (c *Client) PostJSON(ctx context.Context, path string, params url.Values, body any, out any) error {
	return c.do(ctx, http.MethodPost, path, params, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, body any, out any) error {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return &APIError{Message: fmt.Sprintf("Cannot encode body for %s %s", method, path), Err: err}
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path, params), reader)
	if err != nil {
		return &APIError{Message: fmt.Sprintf("Network error calling %s %s", method, path), Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.WithFields(logrus.Fields{"method": method, "path": path}).WithError(err).Warn("backend request failed")
		return &APIError{Message: fmt.Sprintf("Network error calling %s %s", method, path), Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIError{Message: fmt.Sprintf("Network error calling %s %s", method, path), StatusCode: resp.StatusCode, Err: err}
	}
	c.log.WithFields(logrus.Fields{
		"method":      method,
		"path":        path,
		"status":      resp.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("backend request")

	if resp.StatusCode >= 400 {
		var details any
		if err := json.Unmarshal(data, &details); err != nil {
			details = string(data)
		}
		return &APIError{
			Message:    fmt.Sprintf("HTTP %d calling %s %s", resp.StatusCode, method, path),
			StatusCode: resp.StatusCode,
			Details:    details,
		}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &APIError{
			Message:    fmt.Sprintf("Invalid JSON from %s %s", method, path),
			StatusCode: resp.StatusCode,
			Details:    string(data),
			Err:        err,
		}
	}
	return nil
}

// Health calls GET /health.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var h Health
	if err := c.GetJSON(ctx, "/health", nil, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// FAQ calls GET /faq; sort is only sent when non-empty.
func (c *Client) FAQ(ctx context.Context, sort string) (*FAQList, error) {
	params := url.Values{}
	if sort != "" {
		params.Set("sort", sort)
	}
	var list FAQList
	if err := c.GetJSON(ctx, "/faq", params, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// FAQByID calls GET /faq/{id}.
func (c *Client) FAQByID(ctx context.Context, id string) (*FAQItem, error) {
	var it FAQItem
	if err := c.GetJSON(ctx, "/faq/"+url.PathEscape(id), nil, &it); err != nil {
		return nil, err
	}
	return &it, nil
}

// Scrape calls POST /scrape.
func (c *Client) Scrape(ctx context.Context) (*RunResult, error) {
	return c.run(ctx, "/scrape", nil)
}

// Clean calls POST /clean.
func (c *Client) Clean(ctx context.Context) (*RunResult, error) {
	return c.run(ctx, "/clean", nil)
}

// Analyze calls POST /analyze; force re-scores items that already have a score.
func (c *Client) Analyze(ctx context.Context, force bool) (*RunResult, error) {
	params := url.Values{}
	params.Set("force", fmt.Sprintf("%t", force))
	return c.run(ctx, "/analyze", params)
}

// Run dispatches a pipeline action.
func (c *Client) Run(ctx context.Context, action Action, force bool) (*RunResult, error) {
	switch action {
	case ActionScrape:
		return c.Scrape(ctx)
	case ActionClean:
		return c.Clean(ctx)
	case ActionAnalyze:
		return c.Analyze(ctx, force)
	default:
		return nil, fmt.Errorf("unknown action: %s", action)
	}
}

func (c *Client) run(ctx context.Context, path string, params url.Values) (*RunResult, error) {
	var res RunResult
	if err := c.PostJSON(ctx, path, params, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
