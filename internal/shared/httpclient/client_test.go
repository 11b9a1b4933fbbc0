package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/AutomataNexus/remote-portal/internal/infrastructure/tracing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRequestPropagatesTrace(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	tracer := tracing.New("test", zap.NewNop())
	ctx, span := tracer.Start(context.Background(), "outbound")

	c := New(Options{BaseURL: srv.URL})
	c.SetBearerAuth("token")
	req, err := c.Request(ctx)
	require.NoError(t, err)

	resp, err := req.Get("/ping")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode())

	assert.Equal(t, string(span.TraceID), got.Get(tracing.TraceHeader))
	assert.Equal(t, string(span.SpanID), got.Get(tracing.SpanHeader))
	assert.Equal(t, "Bearer token", got.Get("Authorization"))
	assert.Equal(t, UserAgent, got.Get("User-Agent"))
}

func TestNoRetry(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL})
	req, err := c.Request(context.Background())
	require.NoError(t, err)

	resp, err := req.Get("/")
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode())
	assert.Equal(t, 1, calls)
}

func TestDefaultTimeout(t *testing.T) {
	c := New(Options{})
	assert.Equal(t, DefaultTimeout, c.resty.GetClient().Timeout)

	c = New(Options{Timeout: time.Second})
	assert.Equal(t, time.Second, c.resty.GetClient().Timeout)
}

func TestRequestHonorsCancelledContext(t *testing.T) {
	c := New(Options{RatePerSecond: 1})
	// Drain the single token so the next Wait must block.
	require.True(t, c.limiter.Allow())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Request(ctx)
	assert.Error(t, err)
}

func TestUnlimitedByDefault(t *testing.T) {
	c := New(Options{})
	for i := 0; i < 100; i++ {
		_, err := c.Request(context.Background())
		require.NoError(t, err)
	}
}
