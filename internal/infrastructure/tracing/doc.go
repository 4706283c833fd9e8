/*
Package tracing gives each HTTP request a trace and span ID and logs the
finished spans through zap.

IDs travel in the X-Trace-ID and X-Span-ID headers. A request that
arrives with X-Trace-ID continues that trace; otherwise a new one starts.
Handlers open child spans for slow work such as buffer startup:

	span, ctx := tracer.StartSpan(c.Request.Context(), "buffer.create")
	defer tracer.Submit(span)

Spans are queued to a collector goroutine and dropped when the queue is
full, so tracing never blocks a request.
*/
package tracing
