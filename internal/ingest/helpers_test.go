package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mauv0809/crispy-broccoli/internal/logging"
)

const testCrumb = "abc/DEF+123"

// newProviderServer serves the cookie bootstrap and crumb endpoints and
// delegates every other path to h.
func newProviderServer(t *testing.T, h http.Handler) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/bootstrap", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "A3", Value: "session", Path: "/"})
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/getcrumb", func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie("A3"); err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(testCrumb))
	})
	if h != nil {
		mux.Handle("/", h)
	}

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestSession(t *testing.T, srv *httptest.Server) *Session {
	t.Helper()

	s, err := NewSession(
		WithBootstrapURL(srv.URL+"/bootstrap"),
		WithCrumbURL(srv.URL+"/getcrumb"),
		WithTimeout(5*time.Second),
		WithSessionLogger(logging.Discard()),
	)
	require.NoError(t, err)
	return s
}

func newInitializedSession(t *testing.T, srv *httptest.Server) *Session {
	t.Helper()

	s := newTestSession(t, srv)
	require.NoError(t, s.Initialize(context.Background()))
	return s
}

// sleepRecorder replaces real backoff sleeps in tests.
type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
	return nil
}

func (r *sleepRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.delays)
}

func newTestClient(t *testing.T, srv *httptest.Server, rec *sleepRecorder) *Client {
	t.Helper()

	c := NewClient(newInitializedSession(t, srv),
		WithQuoteSummaryURL(srv.URL+"/quoteSummary"),
		WithScreenerURL(srv.URL+"/screener"),
		WithLogger(logging.Discard()),
	)
	c.sleep = rec.sleep
	c.jitter = func(time.Duration) time.Duration { return 0 }
	return c
}
