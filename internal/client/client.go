// Package client provides a typed REST client for the dispatch API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/raphaelgruber/dispatchdesk/internal/metrics"
	"github.com/raphaelgruber/dispatchdesk/internal/models"
)

// DefaultBaseURL is used when no endpoint is configured.
const DefaultBaseURL = "http://localhost:3000/api/v1"

// Client is a REST client for the dispatch API. It is safe for concurrent use.
type Client struct {
	baseURL        string
	signInURL      string
	token          string
	httpClient     *http.Client
	timeout        time.Duration
	logger         *slog.Logger
	metrics        *metrics.Collector
	onUnauthorized func(signInURL string)
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithToken sends a bearer token on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithSignInURL overrides the sign-in entry point passed to the unauthorized handler.
func WithSignInURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.signInURL = u
		}
	}
}

// WithUnauthorizedHandler is called on every 401 response, before the
// request returns ErrUnauthorized.
func WithUnauthorizedHandler(fn func(signInURL string)) Option {
	return func(c *Client) { c.onUnauthorized = fn }
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics records request timings per endpoint.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Client) { c.metrics = m }
}

// WithTimeout bounds each request. Zero keeps the transport default (no limit).
// It applies to the HTTP client given by WithHTTPClient regardless of option order.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// New creates a client for the API rooted at baseURL.
// If baseURL is empty, DefaultBaseURL is used.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	// Session cookies set by the API are replayed on later requests.
	jar, _ := cookiejar.New(nil)

	c := &Client{
		baseURL:    baseURL,
		signInURL:  defaultSignInURL(baseURL),
		httpClient: &http.Client{Jar: jar},
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 {
		hc := *c.httpClient
		hc.Timeout = c.timeout
		c.httpClient = &hc
	}
	return c
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SignInURL returns the sign-in entry point used on 401 responses.
func (c *Client) SignInURL() string {
	return c.signInURL
}

// defaultSignInURL derives "<scheme>://<host>/sign-in" from the API root.
func defaultSignInURL(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return "/sign-in"
	}
	return u.Scheme + "://" + u.Host + "/sign-in"
}

// errorBody is the error shape returned by the API.
type errorBody struct {
	Error string `json:"error"`
}

// do sends a request and decodes the JSON response into result.
// op names the endpoint for logs and metrics.
func (c *Client) do(ctx context.Context, method, path, op string, body, result any) (err error) {
	start := time.Now()
	requestID := uuid.NewString()
	defer func() {
		elapsed := time.Since(start)
		if c.metrics != nil {
			c.metrics.RecordTiming(op, elapsed, err != nil)
		}
		attrs := []any{"op", op, "request_id", requestID, "duration_ms", elapsed.Milliseconds()}
		if err != nil {
			c.logger.Warn("api request failed", append(attrs, "error", err)...)
		} else {
			c.logger.Debug("api request completed", attrs...)
		}
	}()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", requestID)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		if c.onUnauthorized != nil {
			c.onUnauthorized(c.signInURL)
		}
		return ErrUnauthorized
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: defaultErrorMessage}
		var eb errorBody
		if json.Unmarshal(data, &eb) == nil && eb.Error != "" {
			apiErr.Message = eb.Error
		}
		return apiErr
	}

	if result != nil && len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

// =============================================================================
// LEAD OPERATIONS
// =============================================================================

// GetLeads returns every lead.
func (c *Client) GetLeads(ctx context.Context) ([]models.Lead, error) {
	var result struct {
		Leads []models.Lead `json:"leads"`
	}
	if err := c.do(ctx, http.MethodGet, "/leads", "GET /leads", nil, &result); err != nil {
		return nil, err
	}
	return orEmpty(result.Leads), nil
}

// GetLead returns one lead.
func (c *Client) GetLead(ctx context.Context, id string) (*models.Lead, error) {
	if err := checkID(id, "Lead"); err != nil {
		return nil, err
	}
	var result struct {
		Lead *models.Lead `json:"lead"`
	}
	if err := c.do(ctx, http.MethodGet, "/leads/"+url.PathEscape(id), "GET /leads/{id}", nil, &result); err != nil {
		return nil, err
	}
	if result.Lead == nil {
		return nil, &APIError{StatusCode: http.StatusNotFound, Message: "Lead not found"}
	}
	return result.Lead, nil
}

// CreateLead submits a new lead at intake.
func (c *Client) CreateLead(ctx context.Context, input models.LeadInput) (*models.Lead, error) {
	var result struct {
		Lead *models.Lead `json:"lead"`
	}
	body := map[string]any{"lead": input}
	if err := c.do(ctx, http.MethodPost, "/leads", "POST /leads", body, &result); err != nil {
		return nil, err
	}
	return result.Lead, nil
}

// UpdateLead patches a lead.
func (c *Client) UpdateLead(ctx context.Context, id string, input models.LeadInput) (*models.Lead, error) {
	if err := checkID(id, "Lead"); err != nil {
		return nil, err
	}
	var result struct {
		Lead *models.Lead `json:"lead"`
	}
	body := map[string]any{"lead": input}
	if err := c.do(ctx, http.MethodPatch, "/leads/"+url.PathEscape(id), "PATCH /leads/{id}", body, &result); err != nil {
		return nil, err
	}
	return result.Lead, nil
}

// RunAgent triggers an agent run for a lead.
func (c *Client) RunAgent(ctx context.Context, leadID string, mode models.RunMode) (*models.AgentRunResult, error) {
	if err := checkID(leadID, "Lead"); err != nil {
		return nil, err
	}
	if _, err := models.ParseRunMode(string(mode)); err != nil {
		return nil, err
	}
	var result models.AgentRunResult
	body := map[string]any{"mode": mode}
	path := "/leads/" + url.PathEscape(leadID) + "/agent_runs"
	if err := c.do(ctx, http.MethodPost, path, "POST /leads/{id}/agent_runs", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetTimeline returns the lead's audit history in source order.
func (c *Client) GetTimeline(ctx context.Context, leadID string) ([]models.TimelineEvent, error) {
	if err := checkID(leadID, "Lead"); err != nil {
		return nil, err
	}
	var result struct {
		Timeline json.RawMessage `json:"timeline"`
	}
	path := "/leads/" + url.PathEscape(leadID) + "/timeline"
	if err := c.do(ctx, http.MethodGet, path, "GET /leads/{id}/timeline", nil, &result); err != nil {
		return nil, err
	}
	if len(result.Timeline) == 0 || string(result.Timeline) == "null" {
		return []models.TimelineEvent{}, nil
	}
	return models.DecodeTimeline(result.Timeline)
}

// =============================================================================
// JOB OPERATIONS
// =============================================================================

// GetJobs returns every job.
func (c *Client) GetJobs(ctx context.Context) ([]models.Job, error) {
	var result struct {
		Jobs []models.Job `json:"jobs"`
	}
	if err := c.do(ctx, http.MethodGet, "/jobs", "GET /jobs", nil, &result); err != nil {
		return nil, err
	}
	return orEmpty(result.Jobs), nil
}

// GetJob returns one job.
func (c *Client) GetJob(ctx context.Context, id string) (*models.Job, error) {
	if err := checkID(id, "Job"); err != nil {
		return nil, err
	}
	var result struct {
		Job *models.Job `json:"job"`
	}
	if err := c.do(ctx, http.MethodGet, "/jobs/"+url.PathEscape(id), "GET /jobs/{id}", nil, &result); err != nil {
		return nil, err
	}
	if result.Job == nil {
		return nil, &APIError{StatusCode: http.StatusNotFound, Message: "Job not found"}
	}
	return result.Job, nil
}

// =============================================================================
// QUOTE, ASSIGNMENT AND NOTIFICATION OPERATIONS
// =============================================================================

// GetQuotes returns every quote.
func (c *Client) GetQuotes(ctx context.Context) ([]models.Quote, error) {
	var result struct {
		Quotes []models.Quote `json:"quotes"`
	}
	if err := c.do(ctx, http.MethodGet, "/quotes", "GET /quotes", nil, &result); err != nil {
		return nil, err
	}
	return orEmpty(result.Quotes), nil
}

// GetQuote returns one quote.
func (c *Client) GetQuote(ctx context.Context, id string) (*models.Quote, error) {
	if err := checkID(id, "Quote"); err != nil {
		return nil, err
	}
	var result struct {
		Quote *models.Quote `json:"quote"`
	}
	if err := c.do(ctx, http.MethodGet, "/quotes/"+url.PathEscape(id), "GET /quotes/{id}", nil, &result); err != nil {
		return nil, err
	}
	if result.Quote == nil {
		return nil, &APIError{StatusCode: http.StatusNotFound, Message: "Quote not found"}
	}
	return result.Quote, nil
}

// GetAssignments returns every assignment.
func (c *Client) GetAssignments(ctx context.Context) ([]models.Assignment, error) {
	var result struct {
		Assignments []models.Assignment `json:"assignments"`
	}
	if err := c.do(ctx, http.MethodGet, "/assignments", "GET /assignments", nil, &result); err != nil {
		return nil, err
	}
	return orEmpty(result.Assignments), nil
}

// GetAssignment returns one assignment.
func (c *Client) GetAssignment(ctx context.Context, id string) (*models.Assignment, error) {
	if err := checkID(id, "Assignment"); err != nil {
		return nil, err
	}
	var result struct {
		Assignment *models.Assignment `json:"assignment"`
	}
	if err := c.do(ctx, http.MethodGet, "/assignments/"+url.PathEscape(id), "GET /assignments/{id}", nil, &result); err != nil {
		return nil, err
	}
	if result.Assignment == nil {
		return nil, &APIError{StatusCode: http.StatusNotFound, Message: "Assignment not found"}
	}
	return result.Assignment, nil
}

// UpdateAssignment patches an assignment's status.
func (c *Client) UpdateAssignment(ctx context.Context, id string, input models.AssignmentInput) (*models.Assignment, error) {
	if err := checkID(id, "Assignment"); err != nil {
		return nil, err
	}
	var result struct {
		Assignment *models.Assignment `json:"assignment"`
	}
	body := map[string]any{"assignment": input}
	if err := c.do(ctx, http.MethodPatch, "/assignments/"+url.PathEscape(id), "PATCH /assignments/{id}", body, &result); err != nil {
		return nil, err
	}
	return result.Assignment, nil
}

// GetNotifications returns every notification.
func (c *Client) GetNotifications(ctx context.Context) ([]models.Notification, error) {
	var result struct {
		Notifications []models.Notification `json:"notifications"`
	}
	if err := c.do(ctx, http.MethodGet, "/notifications", "GET /notifications", nil, &result); err != nil {
		return nil, err
	}
	return orEmpty(result.Notifications), nil
}

// GetNotification returns one notification.
func (c *Client) GetNotification(ctx context.Context, id string) (*models.Notification, error) {
	if err := checkID(id, "Notification"); err != nil {
		return nil, err
	}
	var result struct {
		Notification *models.Notification `json:"notification"`
	}
	if err := c.do(ctx, http.MethodGet, "/notifications/"+url.PathEscape(id), "GET /notifications/{id}", nil, &result); err != nil {
		return nil, err
	}
	if result.Notification == nil {
		return nil, &APIError{StatusCode: http.StatusNotFound, Message: "Notification not found"}
	}
	return result.Notification, nil
}

// =============================================================================
// CATALOG OPERATIONS
// =============================================================================

// GetSubcontractors returns every subcontractor.
func (c *Client) GetSubcontractors(ctx context.Context) ([]models.Subcontractor, error) {
	var result struct {
		Subcontractors []models.Subcontractor `json:"subcontractors"`
	}
	if err := c.do(ctx, http.MethodGet, "/subcontractors", "GET /subcontractors", nil, &result); err != nil {
		return nil, err
	}
	return orEmpty(result.Subcontractors), nil
}

// GetServices returns the service catalog.
func (c *Client) GetServices(ctx context.Context) ([]models.Service, error) {
	var result struct {
		Services []models.Service `json:"services"`
	}
	if err := c.do(ctx, http.MethodGet, "/services", "GET /services", nil, &result); err != nil {
		return nil, err
	}
	return orEmpty(result.Services), nil
}

// GetPricingRules returns the pricing guardrails.
func (c *Client) GetPricingRules(ctx context.Context) ([]models.PricingRule, error) {
	var result struct {
		PricingRules []models.PricingRule `json:"pricing_rules"`
	}
	if err := c.do(ctx, http.MethodGet, "/pricing_rules", "GET /pricing_rules", nil, &result); err != nil {
		return nil, err
	}
	return orEmpty(result.PricingRules), nil
}

func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

// IsUnauthorized reports whether err is an authentication failure.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}
