package tracing

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HTTPMiddleware opens a span per request. An incoming X-Trace-ID, or else
// X-Request-ID, continues the caller's trace; the ids are echoed back.
func HTTPMiddleware(tracer *Tracer) gin.HandlerFunc {
	return func(c *gin.Context) {
		trace := ID(c.GetHeader(TraceHeader))
		if trace == "" {
			trace = ID(c.GetHeader(RequestHeader))
		}
		ctx := c.Request.Context()
		if trace != "" {
			ctx = withRemote(ctx, trace, ID(c.GetHeader(SpanHeader)))
		}

		name := c.FullPath()
		if name == "" {
			name = c.Request.URL.Path
		}
		ctx, span := tracer.Start(ctx, c.Request.Method+" "+name)
		c.Request = c.Request.WithContext(ctx)

		c.Header(TraceHeader, string(span.TraceID))
		c.Header(RequestHeader, string(span.TraceID))
		c.Header(SpanHeader, string(span.SpanID))

		c.Next()

		span.SetStatus(c.Writer.Status())
		span.Annotate(zap.String("client_ip", c.ClientIP()))

		var err error
		if len(c.Errors) > 0 {
			err = errors.New(c.Errors.String())
		}
		span.End(err)
	}
}
