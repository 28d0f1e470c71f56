package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"github.com/phuslu/log"

	"github.com/mauv0809/crispy-broccoli/internal/logging"
)

// Session owns the cookie-bearing HTTP client and the crumb token required by
// every provider endpoint. Initialize it once at startup; afterwards Crumb and
// Client are safe for any number of concurrent readers.
type Session struct {
	httpClient   *http.Client
	bootstrapURL string
	crumbURL     string
	userAgent    string
	logger       *log.Logger

	// initMu serializes handshakes; mu only guards reads and writes of crumb.
	initMu sync.Mutex
	mu     sync.RWMutex
	crumb  string
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithBootstrapURL sets the cookie-seeding URL.
func WithBootstrapURL(u string) SessionOption {
	return func(s *Session) {
		s.bootstrapURL = u
	}
}

// WithCrumbURL sets the crumb endpoint.
func WithCrumbURL(u string) SessionOption {
	return func(s *Session) {
		s.crumbURL = u
	}
}

// WithUserAgent sets the User-Agent sent on every request.
func WithUserAgent(ua string) SessionOption {
	return func(s *Session) {
		s.userAgent = ua
	}
}

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(d time.Duration) SessionOption {
	return func(s *Session) {
		s.httpClient.Timeout = d
	}
}

// WithSessionLogger sets a logger.
func WithSessionLogger(l *log.Logger) SessionOption {
	return func(s *Session) {
		s.logger = l
	}
}

// NewSession creates a session with an empty cookie jar.
func NewSession(opts ...SessionOption) (*Session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}

	s := &Session{
		httpClient: &http.Client{
			Jar:       jar,
			Timeout:   30 * time.Second,
			Transport: http.DefaultTransport,
		},
		bootstrapURL: DefaultBootstrapURL,
		crumbURL:     DefaultCrumbURL,
		userAgent:    DefaultUserAgent,
	}

	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrDefault(s.logger)
	s.httpClient.Transport = &userAgentTransport{base: s.httpClient.Transport, userAgent: s.userAgent}

	return s, nil
}

// Initialize performs the cookie bootstrap and then requests the crumb. The
// bootstrap must come first: the crumb endpoint returns an unusable token
// without the session cookies. Calling Initialize again once a crumb is held
// is a no-op.
func (s *Session) Initialize(ctx context.Context) error {
	s.initMu.Lock()
	defer s.initMu.Unlock()

	if s.Crumb() != "" {
		return nil
	}

	crumb, err := s.handshake(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.crumb = crumb
	s.mu.Unlock()

	s.logger.Info().Int("crumb_length", len(crumb)).Msg("Crumb obtained")

	return nil
}

// handshake runs the bootstrap and crumb requests. It holds no lock, so
// Crumb readers do not wait on the network.
func (s *Session) handshake(ctx context.Context) (string, error) {
	s.logger.Info().Str("bootstrap_url", s.bootstrapURL).Msg("Authenticating with data provider")

	// The bootstrap response is commonly a 404; only the cookies matter.
	if err := s.visit(ctx, s.bootstrapURL); err != nil {
		return "", &AuthError{Err: fmt.Errorf("bootstrap request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.crumbURL, nil)
	if err != nil {
		return "", &AuthError{Err: fmt.Errorf("creating crumb request: %w", err)}
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", &AuthError{Err: fmt.Errorf("crumb request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &AuthError{StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &AuthError{Err: fmt.Errorf("reading crumb: %w", err)}
	}

	crumb := strings.TrimSpace(string(body))
	if crumb == "" {
		return "", &AuthError{StatusCode: resp.StatusCode, Err: fmt.Errorf("empty crumb")}
	}

	return crumb, nil
}

func (s *Session) visit(ctx context.Context, u string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Crumb returns the crumb, or "" before a successful Initialize.
func (s *Session) Crumb() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.crumb
}

// Client returns the cookie-bearing HTTP client.
func (s *Session) Client() *http.Client {
	return s.httpClient
}

// userAgentTransport stamps a browser User-Agent on requests that lack one;
// the provider rejects the Go default.
type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" && t.userAgent != "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.userAgent)
	}
	return t.base.RoundTrip(req)
}
