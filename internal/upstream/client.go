// Package upstream is the HTTP client for the planning backend.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/joeblew999/plat-mission/internal/mission"
)

// maxErrorBody caps how much of a failed response body is kept.
const maxErrorBody = 512

// StatusError is returned when the backend answers with a non-2xx status.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream: %s %s: HTTP error! status: %d", e.Method, e.URL, e.StatusCode)
}

// Client talks to the planning backend.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout bounds every request. Zero means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		hc := *c.httpClient
		hc.Timeout = d
		c.httpClient = &hc
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client for the backend at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{},
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend base URL.
func (c *Client) BaseURL() string { return c.baseURL }

type paramsEnvelope struct {
	Data mission.InputParameters `json:"data"`
}

// InputParams fetches the vehicle, strategy and objective options.
func (c *Client) InputParams(ctx context.Context) (mission.InputParameters, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/get-input-params", nil)
	if err != nil {
		return mission.InputParameters{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	var env paramsEnvelope
	if err := c.do(req, &env); err != nil {
		return mission.InputParameters{}, err
	}
	return env.Data, nil
}

// Submit posts the form as multipart data and decodes the plan.
func (c *Client) Submit(ctx context.Context, form mission.FormSubmission) (*mission.PlanResponse, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := form.WriteMultipart(w); err != nil {
		return nil, fmt.Errorf("encoding form: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("encoding form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/submit-form", &body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	var resp mission.PlanResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) do(req *http.Request, out any) error {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upstream: %s %s: %w", req.Method, req.URL, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("upstream request",
		"method", req.Method,
		"url", req.URL.String(),
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{
			Method:     req.Method,
			URL:        req.URL.String(),
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("upstream: decoding %s response: %w", req.URL.Path, err)
	}
	return nil
}
