package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"github.com/phuslu/log"
	"golang.org/x/time/rate"

	"github.com/mauv0809/crispy-broccoli/internal/logging"
	"github.com/mauv0809/crispy-broccoli/internal/observability"
)

// RetryPolicy bounds how transient provider failures are retried.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxJitter   time.Duration
}

// DefaultRetryPolicy returns the policy used against the provider: seven
// attempts, exponential delay from 400ms capped at 30s, up to 250ms jitter.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 7,
		BaseDelay:   400 * time.Millisecond,
		MaxDelay:    30 * time.Second,
		MaxJitter:   250 * time.Millisecond,
	}
}

// Backoff returns the delay before retrying after the given zero-based
// attempt, excluding jitter.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= 30 {
		return p.MaxDelay
	}
	d := p.BaseDelay * time.Duration(1<<attempt)
	if d > p.MaxDelay || d <= 0 {
		return p.MaxDelay
	}
	return d
}

// Client fetches provider documents over the session transport, retrying
// rate-limit and server errors.
type Client struct {
	session         *Session
	quoteSummaryURL string
	screenerURL     string
	policy          RetryPolicy
	limiter         *rate.Limiter
	logger          *log.Logger

	sleep  func(ctx context.Context, d time.Duration) error
	jitter func(max time.Duration) time.Duration
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithQuoteSummaryURL sets the quoteSummary base URL.
func WithQuoteSummaryURL(u string) ClientOption {
	return func(c *Client) {
		c.quoteSummaryURL = u
	}
}

// WithScreenerURL sets the screener endpoint.
func WithScreenerURL(u string) ClientOption {
	return func(c *Client) {
		c.screenerURL = u
	}
}

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(p RetryPolicy) ClientOption {
	return func(c *Client) {
		c.policy = p
	}
}

// WithRateLimit caps outgoing requests per second. Zero disables the cap.
func WithRateLimit(requestsPerSecond float64) ClientOption {
	return func(c *Client) {
		if requestsPerSecond <= 0 {
			c.limiter = nil
			return
		}
		burst := int(requestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}
}

// WithLogger sets a logger.
func WithLogger(l *log.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient creates a provider client bound to an initialized session.
func NewClient(session *Session, opts ...ClientOption) *Client {
	c := &Client{
		session:         session,
		quoteSummaryURL: DefaultQuoteSummaryURL,
		screenerURL:     DefaultScreenerURL,
		policy:          DefaultRetryPolicy(),
		sleep:           sleepContext,
		jitter:          randomJitter,
	}

	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.OrDefault(c.logger)
	if c.policy.MaxAttempts < 1 {
		c.policy.MaxAttempts = 1
	}

	return c
}

// Session returns the session the client was built with.
func (c *Client) Session() *Session {
	return c.session
}

// FetchWithRetry GETs urlStr. ok is false for a soft miss: a non-retryable
// status, or retries exhausted on 429/5xx. err is reserved for transport
// failures and context cancellation.
func (c *Client) FetchWithRetry(ctx context.Context, urlStr string) (body []byte, ok bool, err error) {
	return c.doWithRetry(ctx, http.MethodGet, urlStr, nil)
}

// PostWithRetry POSTs a JSON payload to urlStr with the same policy as
// FetchWithRetry.
func (c *Client) PostWithRetry(ctx context.Context, urlStr string, payload []byte) (body []byte, ok bool, err error) {
	return c.doWithRetry(ctx, http.MethodPost, urlStr, payload)
}

// FetchQuoteSummary fetches the fundamentals document for one symbol.
func (c *Client) FetchQuoteSummary(ctx context.Context, symbol string) ([]byte, bool, error) {
	crumb := c.session.Crumb()
	if crumb == "" {
		return nil, false, ErrNoCrumb
	}

	urlStr := fmt.Sprintf("%s/%s?modules=%s&crumb=%s",
		c.quoteSummaryURL, url.PathEscape(symbol), quoteSummaryModules, url.QueryEscape(crumb))

	return c.FetchWithRetry(ctx, urlStr)
}

func (c *Client) doWithRetry(ctx context.Context, method, urlStr string, payload []byte) ([]byte, bool, error) {
	lastStatus := 0

	for attempt := 0; attempt < c.policy.MaxAttempts; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, false, fmt.Errorf("waiting for rate limiter: %w", err)
			}
		}

		status, body, err := c.doRequest(ctx, method, urlStr, payload)
		if err != nil {
			return nil, false, err
		}
		lastStatus = status

		switch {
		case status >= 200 && status <= 299:
			return body, true, nil

		case isTransientStatus(status):
			if attempt == c.policy.MaxAttempts-1 {
				break
			}
			delay := c.policy.Backoff(attempt) + c.jitter(c.policy.MaxJitter)
			c.logger.Debug().
				Str("method", method).
				Int("status", status).
				Int("attempt", attempt+1).
				Dur("delay", delay).
				Msg("Transient provider response, retrying")
			observability.RecordFetchRetry()
			if err := c.sleep(ctx, delay); err != nil {
				return nil, false, err
			}

		default:
			c.logger.Debug().
				Str("method", method).
				Int("status", status).
				Str("url", redactCrumb(urlStr)).
				Msg("Non-retryable provider response, skipping")
			return nil, false, nil
		}
	}

	c.logger.Warn().
		Str("method", method).
		Int("status", lastStatus).
		Int("attempts", c.policy.MaxAttempts).
		Str("url", redactCrumb(urlStr)).
		Msg("Retries exhausted")

	return nil, false, nil
}

// doRequest performs one HTTP exchange and returns the status and body.
func (c *Client) doRequest(ctx context.Context, method, urlStr string, payload []byte) (int, []byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, urlStr, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.session.Client().Do(req)
	if err != nil {
		observability.RecordFetchAttempt(method, "error", time.Since(start).Seconds())
		return 0, nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		observability.RecordFetchAttempt(method, "error", time.Since(start).Seconds())
		return 0, nil, fmt.Errorf("reading response: %w", err)
	}

	observability.RecordFetchAttempt(method, outcomeFor(resp.StatusCode), time.Since(start).Seconds())

	return resp.StatusCode, body, nil
}

func outcomeFor(status int) string {
	switch {
	case status >= 200 && status <= 299:
		return "ok"
	case isTransientStatus(status):
		return "transient"
	default:
		return "permanent"
	}
}

// redactCrumb strips the crumb query parameter before a URL is logged.
func redactCrumb(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil {
		return urlStr
	}
	q := u.Query()
	if q.Has("crumb") {
		q.Set("crumb", "redacted")
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func randomJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(max)))
}
