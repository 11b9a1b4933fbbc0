package tracing

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Header names used for propagation
const (
	TraceHeader   = "X-Trace-ID"
	RequestHeader = "X-Request-ID"
	SpanHeader    = "X-Span-ID"
)

// SlowThreshold is the duration above which a clean span is logged at info.
const SlowThreshold = 2 * time.Second

// ID identifies a trace or a span.
type ID string

func newID() ID {
	return ID(uuid.NewString())
}

// Tracer logs timed spans for one service.
type Tracer struct {
	service string
	logger  *zap.Logger
}

// New creates a tracer logging through logger.
func New(service string, logger *zap.Logger) *Tracer {
	return &Tracer{service: service, logger: logger}
}

// Span times one operation within a trace.
type Span struct {
	TraceID  ID
	SpanID   ID
	ParentID ID
	Name     string

	tracer *Tracer
	start  time.Time
	fields []zap.Field
	status int
	ended  atomic.Bool
}

type spanContext struct {
	trace ID
	span  ID
}

type contextKey struct{}

// Start opens a span under the trace carried by ctx, starting a new trace
// when there is none.
func (t *Tracer) Start(ctx context.Context, name string) (context.Context, *Span) {
	parent, _ := ctx.Value(contextKey{}).(spanContext)
	if parent.trace == "" {
		parent.trace = newID()
	}

	span := &Span{
		TraceID:  parent.trace,
		SpanID:   newID(),
		ParentID: parent.span,
		Name:     name,
		tracer:   t,
		start:    time.Now(),
	}
	return context.WithValue(ctx, contextKey{}, spanContext{trace: span.TraceID, span: span.SpanID}), span
}

// Annotate attaches fields logged when the span ends.
func (s *Span) Annotate(fields ...zap.Field) {
	s.fields = append(s.fields, fields...)
}

// SetStatus records an HTTP status; 5xx marks the span as failed.
func (s *Span) SetStatus(code int) {
	s.status = code
}

// End logs the span and returns its duration. Only the first call logs.
func (s *Span) End(err error) time.Duration {
	elapsed := time.Since(s.start)
	if !s.ended.CompareAndSwap(false, true) {
		return elapsed
	}

	fields := make([]zap.Field, 0, len(s.fields)+7)
	fields = append(fields,
		zap.String("service", s.tracer.service),
		zap.String("trace_id", string(s.TraceID)),
		zap.String("span_id", string(s.SpanID)),
		zap.String("operation", s.Name),
		zap.Duration("duration", elapsed),
	)
	if s.ParentID != "" {
		fields = append(fields, zap.String("parent_id", string(s.ParentID)))
	}
	if s.status != 0 {
		fields = append(fields, zap.Int("status", s.status))
	}
	fields = append(fields, s.fields...)

	switch {
	case err != nil:
		s.tracer.logger.Warn("span failed", append(fields, zap.Error(err))...)
	case s.status >= http.StatusInternalServerError:
		s.tracer.logger.Warn("span failed", fields...)
	case elapsed > SlowThreshold:
		s.tracer.logger.Info("slow span", fields...)
	default:
		s.tracer.logger.Debug("span completed", fields...)
	}
	return elapsed
}

// withRemote seeds ctx with a caller's trace and span.
func withRemote(ctx context.Context, trace, span ID) context.Context {
	return context.WithValue(ctx, contextKey{}, spanContext{trace: trace, span: span})
}

// FromContext returns the trace and span carried by ctx.
func FromContext(ctx context.Context) (trace, span ID) {
	sc, _ := ctx.Value(contextKey{}).(spanContext)
	return sc.trace, sc.span
}

// Inject copies the trace and span of ctx into outbound headers.
func Inject(ctx context.Context, h http.Header) {
	trace, span := FromContext(ctx)
	if trace != "" {
		h.Set(TraceHeader, string(trace))
	}
	if span != "" {
		h.Set(SpanHeader, string(span))
	}
}

// Field returns the trace of ctx as a zap field
func Field(ctx context.Context) zap.Field {
	trace, _ := FromContext(ctx)
	return zap.String("trace_id", string(trace))
}
