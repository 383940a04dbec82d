/*
Package tracing provides lightweight request tracing for the HTTP API.

Every request gets a trace ID (taken from X-Trace-ID when the caller sends
one) and a span ID, both echoed back as response headers. Finished spans
are handed to a buffered collector that writes them to the structured log,
at debug level for clean requests and warn level for failed ones.

	tracer := tracing.New("textnexus", logger)
	defer tracer.Close()
	router.Use(tracing.HTTPMiddleware(tracer))

	span, ctx := tracer.StartSpan(ctx, "store.flush")
	defer func() {
		span.Finish()
		tracer.Submit(span)
	}()
*/
package tracing
