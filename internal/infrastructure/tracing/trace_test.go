package tracing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newRouter(tracer *Tracer, handler gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(HTTPMiddleware(tracer))
	router.GET("/health", handler)
	return router
}

func TestMiddlewareGeneratesTraceID(t *testing.T) {
	var seen ID
	router := newRouter(New("portal", zap.NewNop()), func(c *gin.Context) {
		seen, _ = FromContext(c.Request.Context())
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, seen)
	assert.Equal(t, string(seen), w.Header().Get(TraceHeader))
	assert.Equal(t, string(seen), w.Header().Get(RequestHeader))
	assert.NotEmpty(t, w.Header().Get(SpanHeader))
}

func TestMiddlewareHonorsIncomingTrace(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	var span ID
	router := newRouter(New("portal", zap.New(core)), func(c *gin.Context) {
		_, span = FromContext(c.Request.Context())
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(TraceHeader, "trace-abc")
	req.Header.Set(SpanHeader, "span-parent")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "trace-abc", w.Header().Get(TraceHeader))
	// The handler sees the span opened by the middleware, not the caller's
	assert.NotEqual(t, ID("span-parent"), span)
	assert.NotEmpty(t, span)

	entries := logs.FilterMessage("span completed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "span-parent", fields["parent_id"])
	assert.Equal(t, "GET /health", fields["operation"])
}

func TestMiddlewareAcceptsRequestID(t *testing.T) {
	router := newRouter(New("portal", zap.NewNop()), func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestHeader, "req-42")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "req-42", w.Header().Get(RequestHeader))
	assert.Equal(t, "req-42", w.Header().Get(TraceHeader))
}

func TestMiddlewareLogsServerErrorsAtWarn(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	router := newRouter(New("portal", zap.New(core)), func(c *gin.Context) {
		c.Status(http.StatusBadGateway)
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	entries := logs.FilterMessage("span failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.EqualValues(t, http.StatusBadGateway, entries[0].ContextMap()["status"])
}

func TestChildSpanKeepsTrace(t *testing.T) {
	tracer := New("portal", zap.NewNop())

	ctx, parent := tracer.Start(context.Background(), "request")
	_, child := tracer.Start(ctx, "weather.lookup")

	assert.Equal(t, parent.TraceID, child.TraceID)
	assert.Equal(t, parent.SpanID, child.ParentID)
	assert.NotEqual(t, parent.SpanID, child.SpanID)
}

func TestEndLogsOnce(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	tracer := New("portal", zap.New(core))

	_, span := tracer.Start(context.Background(), "notify.send")
	span.End(errors.New("provider down"))
	span.End(nil)

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "span failed", logs.All()[0].Message)
}

func TestInject(t *testing.T) {
	tracer := New("portal", zap.NewNop())
	ctx, span := tracer.Start(context.Background(), "weather.lookup")

	headers := http.Header{}
	Inject(ctx, headers)
	assert.Equal(t, string(span.TraceID), headers.Get(TraceHeader))
	assert.Equal(t, string(span.SpanID), headers.Get(SpanHeader))

	empty := http.Header{}
	Inject(context.Background(), empty)
	assert.Empty(t, empty)
}

func TestField(t *testing.T) {
	tracer := New("portal", zap.NewNop())
	ctx, span := tracer.Start(context.Background(), "op")

	assert.Equal(t, zap.String("trace_id", string(span.TraceID)), Field(ctx))
}
