package ingest

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryPolicy_Backoff(t *testing.T) {
	p := DefaultRetryPolicy()

	assert.Equal(t, 400*time.Millisecond, p.Backoff(0))
	assert.Equal(t, 800*time.Millisecond, p.Backoff(1))
	assert.Equal(t, 12800*time.Millisecond, p.Backoff(5))
	assert.Equal(t, 25600*time.Millisecond, p.Backoff(6))
	assert.Equal(t, 30*time.Second, p.Backoff(7))
	assert.Equal(t, 30*time.Second, p.Backoff(64))
}

// statusSequence replies with the given statuses in order, then 200.
func statusSequence(statuses []int, calls *atomic.Int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n := int(calls.Add(1)) - 1
		if n < len(statuses) {
			w.WriteHeader(statuses[n])
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}
}

func TestClient_FetchWithRetry_RecoversAfterRateLimit(t *testing.T) {
	var calls atomic.Int32
	tooMany := http.StatusTooManyRequests
	srv := newProviderServer(t, statusSequence([]int{tooMany, tooMany, tooMany, tooMany, tooMany}, &calls))
	rec := &sleepRecorder{}
	c := newTestClient(t, srv, rec)

	body, ok, err := c.FetchWithRetry(context.Background(), srv.URL+"/anything")

	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"ok":true}`, string(body))
	assert.Equal(t, int32(6), calls.Load())
	assert.Equal(t, 5, rec.count())
	assert.Equal(t, []time.Duration{
		400 * time.Millisecond,
		800 * time.Millisecond,
		1600 * time.Millisecond,
		3200 * time.Millisecond,
		6400 * time.Millisecond,
	}, rec.delays)
}

func TestClient_FetchWithRetry_AddsJitterToBackoff(t *testing.T) {
	var calls atomic.Int32
	unavailable := http.StatusServiceUnavailable
	srv := newProviderServer(t, statusSequence([]int{unavailable, unavailable}, &calls))
	rec := &sleepRecorder{}
	c := newTestClient(t, srv, rec)

	var maxSeen time.Duration
	c.jitter = func(max time.Duration) time.Duration {
		maxSeen = max
		return 100 * time.Millisecond
	}

	_, ok, err := c.FetchWithRetry(context.Background(), srv.URL+"/anything")

	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 250*time.Millisecond, maxSeen)
	assert.Equal(t, []time.Duration{
		400*time.Millisecond + 100*time.Millisecond,
		800*time.Millisecond + 100*time.Millisecond,
	}, rec.delays)
}

func TestRandomJitter(t *testing.T) {
	tests := []struct {
		name string
		max  time.Duration
	}{
		{"default bound", 250 * time.Millisecond},
		{"one nanosecond", time.Nanosecond},
		{"large bound", 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := 0; i < 1000; i++ {
				d := randomJitter(tt.max)
				require.GreaterOrEqual(t, d, time.Duration(0))
				require.Less(t, d, tt.max)
			}
		})
	}

	assert.Equal(t, time.Duration(0), randomJitter(0))
	assert.Equal(t, time.Duration(0), randomJitter(-time.Second))
}

func TestClient_FetchWithRetry_NotFoundIsSoftMiss(t *testing.T) {
	var calls atomic.Int32
	srv := newProviderServer(t, statusSequence([]int{http.StatusNotFound}, &calls))
	rec := &sleepRecorder{}
	c := newTestClient(t, srv, rec)

	body, ok, err := c.FetchWithRetry(context.Background(), srv.URL+"/anything")

	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, body)
	assert.Equal(t, int32(1), calls.Load())
	assert.Zero(t, rec.count())
}

func TestClient_FetchWithRetry_ServerErrorsExhaust(t *testing.T) {
	var calls atomic.Int32
	statuses := []int{500, 502, 503, 504, 500, 599, 500, 500}
	srv := newProviderServer(t, statusSequence(statuses, &calls))
	rec := &sleepRecorder{}
	c := newTestClient(t, srv, rec)

	_, ok, err := c.FetchWithRetry(context.Background(), srv.URL+"/anything")

	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int32(7), calls.Load())
	assert.Equal(t, 6, rec.count(), "no sleep after the final attempt")
}

func TestClient_FetchWithRetry_ClientErrorsNotRetried(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden} {
		var calls atomic.Int32
		srv := newProviderServer(t, statusSequence([]int{status}, &calls))
		rec := &sleepRecorder{}
		c := newTestClient(t, srv, rec)

		_, ok, err := c.FetchWithRetry(context.Background(), srv.URL+"/anything")

		require.NoError(t, err)
		assert.False(t, ok, "status %d", status)
		assert.Equal(t, int32(1), calls.Load(), "status %d", status)
	}
}

func TestClient_FetchWithRetry_ContextCancelledDuringBackoff(t *testing.T) {
	var calls atomic.Int32
	srv := newProviderServer(t, statusSequence([]int{429, 429, 429}, &calls))
	c := newTestClient(t, srv, &sleepRecorder{})
	c.sleep = sleepContext

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok, err := c.FetchWithRetry(ctx, srv.URL+"/anything")
	assert.False(t, ok)
	assert.Error(t, err)
}

func TestClient_PostWithRetry_SendsJSON(t *testing.T) {
	srv := newProviderServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		b, _ := io.ReadAll(r.Body)
		w.Write(b)
	}))
	c := newTestClient(t, srv, &sleepRecorder{})

	body, ok, err := c.PostWithRetry(context.Background(), srv.URL+"/echo", []byte(`{"size":1}`))

	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"size":1}`, string(body))
}

func TestClient_FetchQuoteSummary(t *testing.T) {
	srv := newProviderServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/quoteSummary/BRK-B", r.URL.Path)
		assert.Equal(t, testCrumb, r.URL.Query().Get("crumb"))
		assert.Contains(t, r.URL.Query().Get("modules"), "earningsTrend")
		assert.Contains(t, r.URL.Query().Get("modules"), "summaryProfile")
		w.Write([]byte(`{}`))
	}))
	c := newTestClient(t, srv, &sleepRecorder{})

	_, ok, err := c.FetchQuoteSummary(context.Background(), "BRK-B")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestClient_FetchQuoteSummary_NoCrumb(t *testing.T) {
	srv := newProviderServer(t, nil)
	c := NewClient(newTestSession(t, srv))

	_, ok, err := c.FetchQuoteSummary(context.Background(), "AAPL")
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrNoCrumb)
}

func TestRedactCrumb(t *testing.T) {
	got := redactCrumb("https://example.com/x?modules=price&crumb=" + url.QueryEscape(testCrumb))
	assert.NotContains(t, got, "DEF")
	assert.Contains(t, got, "crumb=redacted")
}
