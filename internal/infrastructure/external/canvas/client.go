// Package canvas implements the Canvas LMS observer API client.
// It fetches the students a parent observes together with their courses,
// assignments and submissions.
package canvas

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tomnomnom/linkheader"
	"golang.org/x/sync/errgroup"

	"github.com/canvas-hub/canvas-homework-hub/internal/domain/shared"
	"github.com/canvas-hub/canvas-homework-hub/pkg/circuitbreaker"
	"github.com/canvas-hub/canvas-homework-hub/pkg/retry"
)

const (
	// DefaultConcurrency bounds in-flight per-course requests.
	DefaultConcurrency = 15

	// PageSize is requested on every paginated endpoint.
	PageSize = 100

	apiPrefix = "/api/v1"
)

var errRateLimited = shared.ErrCanvasAPIRateLimited

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the Canvas API client.
type ClientConfig struct {
	// BaseURL is the Canvas instance, e.g. https://school.instructure.com
	BaseURL string

	// Token is the observer's access token.
	Token string

	// Timeout is the per-request HTTP timeout
	Timeout time.Duration

	// Concurrency bounds parallel per-course fetches.
	Concurrency int

	RateLimiterConfig RateLimiterConfig
	RetryConfig       retry.Config

	// BreakerFailures consecutive failed requests open the circuit for BreakerTimeout.
	BreakerFailures int
	BreakerTimeout  time.Duration

	// HTTPClient overrides the default client (tests).
	HTTPClient *http.Client

	// Logger for structured logging
	Logger *slog.Logger
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(baseURL, token string) ClientConfig {
	return ClientConfig{
		BaseURL:           baseURL,
		Token:             token,
		Timeout:           30 * time.Second,
		Concurrency:       DefaultConcurrency,
		RateLimiterConfig: DefaultRateLimiterConfig(),
		RetryConfig:       retry.DefaultConfig(),
		BreakerFailures:   5,
		BreakerTimeout:    time.Minute,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client is the Canvas API client.
type Client struct {
	config      ClientConfig
	baseURL     string
	origin      *url.URL
	httpClient  *http.Client
	logger      *slog.Logger
	rateLimiter *RateLimiter
	breaker     *circuitbreaker.CircuitBreaker
	mapper      *Mapper
}

// NewClient creates a new Canvas API client.
func NewClient(config ClientConfig) (*Client, error) {
	if strings.TrimSpace(config.BaseURL) == "" {
		return nil, fmt.Errorf("canvas: base URL is required")
	}
	if _, err := url.ParseRequestURI(config.BaseURL); err != nil {
		return nil, fmt.Errorf("canvas: invalid base URL: %w", err)
	}
	if config.Token == "" {
		return nil, fmt.Errorf("canvas: access token is required")
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Concurrency <= 0 {
		config.Concurrency = DefaultConcurrency
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}

	logger := config.Logger.With("component", "canvas_client")

	baseURL := strings.TrimSuffix(strings.TrimRight(config.BaseURL, "/"), apiPrefix)
	origin, err := url.Parse(baseURL)
	if err != nil || origin.Host == "" {
		return nil, fmt.Errorf("canvas: invalid base URL %q", config.BaseURL)
	}

	c := &Client{
		config:      config,
		baseURL:     baseURL,
		origin:      origin,
		httpClient:  httpClient,
		logger:      logger,
		rateLimiter: NewRateLimiter(config.RateLimiterConfig),
		mapper:      NewMapper(),
	}

	c.config.RetryConfig.RetryIf = isRetryable
	c.config.RetryConfig.OnRetry = func(attempt int, err error, delay time.Duration) {
		logger.Debug("retrying canvas request", "attempt", attempt, "delay", delay, "error", err)
	}

	c.breaker = circuitbreaker.New(circuitbreaker.Config{
		Name:             "canvas-api",
		FailureThreshold: config.BreakerFailures,
		SuccessThreshold: 1,
		Timeout:          config.BreakerTimeout,
		IsFailure:        isRetryable,
		OnStateChange: func(name string, from, to circuitbreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return c, nil
}

// Mapper returns the DTO mapper.
func (c *Client) Mapper() *Mapper {
	return c.mapper
}

// ══════════════════════════════════════════════════════════════════════════════
// ENDPOINTS
// ══════════════════════════════════════════════════════════════════════════════

// Validate checks that the token is accepted by the Canvas instance.
func (c *Client) Validate(ctx context.Context) error {
	var self UserDTO
	if _, err := c.get(ctx, c.endpoint("/users/self", nil), &self); err != nil {
		return fmt.Errorf("validate credentials: %w", err)
	}
	c.logger.Debug("canvas credentials valid", "user_id", self.ID)
	return nil
}

// Observees lists the students observed by the token owner.
func (c *Client) Observees(ctx context.Context) ([]UserDTO, error) {
	users, err := getAll[UserDTO](ctx, c, "/users/self/observees", nil)
	if err != nil {
		return nil, fmt.Errorf("list observees: %w", err)
	}
	return users, nil
}

// Courses lists a student's courses.
func (c *Client) Courses(ctx context.Context, studentID string) ([]CourseDTO, error) {
	params := url.Values{}
	params.Add("include[]", "term")
	courses, err := getAll[CourseDTO](ctx, c, "/users/"+url.PathEscape(studentID)+"/courses", params)
	if err != nil {
		return nil, fmt.Errorf("list courses for student %s: %w", studentID, err)
	}
	return courses, nil
}

// Assignments lists a student's assignments in a course.
func (c *Client) Assignments(ctx context.Context, studentID, courseID string) ([]AssignmentDTO, error) {
	path := fmt.Sprintf("/users/%s/courses/%s/assignments", url.PathEscape(studentID), url.PathEscape(courseID))
	assignments, err := getAll[AssignmentDTO](ctx, c, path, nil)
	if err != nil {
		return nil, fmt.Errorf("list assignments for student %s course %s: %w", studentID, courseID, err)
	}
	return assignments, nil
}

// Submissions lists a student's submissions in a course.
func (c *Client) Submissions(ctx context.Context, studentID, courseID string) ([]SubmissionDTO, error) {
	params := url.Values{}
	params.Add("student_ids[]", studentID)
	path := fmt.Sprintf("/courses/%s/students/submissions", url.PathEscape(courseID))
	submissions, err := getAll[SubmissionDTO](ctx, c, path, params)
	if err != nil {
		return nil, fmt.Errorf("list submissions for student %s course %s: %w", studentID, courseID, err)
	}
	return submissions, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// FULL FETCH
// ══════════════════════════════════════════════════════════════════════════════

// CourseData holds one course with the student's assignments and submissions.
type CourseData struct {
	Course      CourseDTO
	Assignments []AssignmentDTO
	Submissions []SubmissionDTO
}

// StudentData holds everything fetched for one observed student.
type StudentData struct {
	Student UserDTO
	Courses []CourseData
}

// FetchAll fetches every observed student's courses, assignments and
// submissions. Per-course requests run concurrently up to Concurrency.
// Output order follows the API order. Any failure fails the whole fetch.
func (c *Client) FetchAll(ctx context.Context) ([]StudentData, error) {
	start := time.Now()

	observees, err := c.Observees(ctx)
	if err != nil {
		return nil, err
	}

	data := make([]StudentData, len(observees))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.config.Concurrency)
	for i := range observees {
		i := i
		data[i].Student = observees[i]
		sid := strconv.FormatInt(observees[i].ID, 10)
		g.Go(func() error {
			courses, err := c.Courses(gctx, sid)
			if err != nil {
				return err
			}
			for _, course := range courses {
				if course.AccessRestrict {
					continue
				}
				data[i].Courses = append(data[i].Courses, CourseData{Course: course})
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(c.config.Concurrency)
	requests := 0
	for i := range data {
		sid := strconv.FormatInt(data[i].Student.ID, 10)
		for j := range data[i].Courses {
			cd := &data[i].Courses[j]
			cid := strconv.FormatInt(cd.Course.ID, 10)
			requests += 2
			g.Go(func() error {
				assignments, err := c.Assignments(gctx, sid, cid)
				cd.Assignments = assignments
				return err
			})
			g.Go(func() error {
				submissions, err := c.Submissions(gctx, sid, cid)
				cd.Submissions = submissions
				return err
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	c.logger.Debug("canvas fetch completed",
		"students", len(data),
		"course_requests", requests,
		"duration", time.Since(start),
	)

	return data, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HTTP REQUEST HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func (c *Client) endpoint(path string, params url.Values) string {
	if params == nil {
		params = url.Values{}
	}
	return c.baseURL + apiPrefix + path + "?" + params.Encode()
}

// getAll follows Link rel="next" until the last page. A next link that was
// already visited ends the walk; one pointing at another host is an error
// because the request would carry the access token.
func getAll[T any](ctx context.Context, c *Client, path string, params url.Values) ([]T, error) {
	if params == nil {
		params = url.Values{}
	}
	params.Set("per_page", strconv.Itoa(PageSize))

	var all []T
	next := c.endpoint(path, params)
	seen := make(map[string]struct{})
	for next != "" {
		if _, dup := seen[next]; dup {
			c.logger.Warn("pagination link repeats, stopping", "path", path, "url", next)
			break
		}
		seen[next] = struct{}{}

		var page []T
		n, err := c.get(ctx, next, &page)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)

		if n != "" {
			if err := c.checkOrigin(n); err != nil {
				return nil, err
			}
		}
		next = n
	}
	return all, nil
}

// checkOrigin rejects URLs outside the configured Canvas host.
func (c *Client) checkOrigin(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: bad pagination link: %v", shared.ErrCanvasAPIInvalidResponse, err)
	}
	if !strings.EqualFold(u.Scheme, c.origin.Scheme) || !strings.EqualFold(u.Host, c.origin.Host) {
		return fmt.Errorf("%w: pagination link points to %s://%s", shared.ErrCanvasAPIInvalidResponse, u.Scheme, u.Host)
	}
	return nil
}

// get performs one logical GET with rate limiting, circuit breaking and
// retries. It returns the next page URL, if any.
func (c *Client) get(ctx context.Context, rawURL string, out interface{}) (string, error) {
	var next string
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return retry.Do(ctx, c.config.RetryConfig, func(ctx context.Context) error {
			if err := c.rateLimiter.Wait(ctx); err != nil {
				return retry.Permanent(err)
			}
			n, err := c.doSingleRequest(ctx, rawURL, out)
			if err != nil {
				var rl *RateLimitError
				if errors.As(err, &rl) {
					c.rateLimiter.RecordRateLimitHit(rl.Wait)
				}
				return err
			}
			next = n
			return nil
		})
	})
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
		return "", shared.WrapError("canvas", "Request", shared.ErrServiceUnavailable, "circuit open", err)
	}
	return next, err
}

func (c *Client) doSingleRequest(ctx context.Context, rawURL string, out interface{}) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", retry.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+c.config.Token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", shared.WrapError("canvas", "Request", shared.ErrServiceUnavailable, "http request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", shared.WrapError("canvas", "Request", shared.ErrServiceUnavailable, "read response failed", err)
	}

	path := req.URL.Path
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", statusError(resp, path, body)
	}

	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return "", retry.Permanent(fmt.Errorf("%w: %s: %v", shared.ErrCanvasAPIInvalidResponse, path, err))
		}
	}

	return nextLink(resp.Header.Get("Link")), nil
}

func statusError(resp *http.Response, path string, body []byte) error {
	var apiErr APIErrorDTO
	_ = json.Unmarshal(body, &apiErr)
	msg := apiErr.FirstMessage()

	throttled := resp.StatusCode == http.StatusTooManyRequests ||
		(resp.StatusCode == http.StatusForbidden && strings.Contains(strings.ToLower(string(body)), "rate limit exceeded"))
	if throttled {
		return &RateLimitError{Wait: retryAfter(resp.Header.Get("Retry-After"))}
	}

	se := &StatusError{StatusCode: resp.StatusCode, Path: path, Message: msg}
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		se.Kind = shared.ErrCanvasAPIUnauthorized
	case resp.StatusCode >= 500:
		se.Kind = shared.ErrCanvasAPIUnavailable
	default:
		se.Kind = shared.ErrExternalService
	}
	return se
}

// retryAfter parses a Retry-After header in seconds. Missing or invalid
// values mean one second.
func retryAfter(v string) time.Duration {
	if v == "" {
		return time.Second
	}
	secs, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || secs < 0 {
		return time.Second
	}
	return time.Duration(secs * float64(time.Second))
}

// nextLink extracts the rel="next" URL from an RFC 8288 Link header.
func nextLink(header string) string {
	if header == "" {
		return ""
	}
	links := linkheader.Parse(header).FilterByRel("next")
	if len(links) == 0 {
		return ""
	}
	return links[0].URL
}

// isRetryable reports whether err is a transient upstream failure.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		var netErr net.Error
		return errors.As(err, &netErr) && netErr.Timeout()
	}

	var rl *RateLimitError
	if errors.As(err, &rl) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	return errors.Is(err, shared.ErrServiceUnavailable)
}

// ══════════════════════════════════════════════════════════════════════════════
// STATUS
// ══════════════════════════════════════════════════════════════════════════════

// ClientStatus reports the resilience state of the client.
type ClientStatus struct {
	RateLimiter    RateLimiterStatus `json:"rate_limiter"`
	CircuitBreaker string            `json:"circuit_breaker"`
}

// Status returns the current status of the client.
func (c *Client) Status() ClientStatus {
	return ClientStatus{
		RateLimiter:    c.rateLimiter.Status(),
		CircuitBreaker: c.breaker.State().String(),
	}
}
