/*
Package tracing ties portal log lines to a request.

Every HTTP request gets a trace ID, taken from an incoming X-Trace-ID or
X-Request-ID header or freshly generated, and a span ID. Both are echoed in the
response headers and kept in the request context. Outbound calls to the
weather and email providers carry them too.

	tracer := tracing.New("portal", logger)
	router.Use(tracing.HTTPMiddleware(tracer))

	ctx, span := tracer.Start(ctx, "weather.lookup")
	defer span.End(err)

Spans log at debug level, slow spans at info, and failed spans at warn.
*/
package tracing
