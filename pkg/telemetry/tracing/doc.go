// Package tracing provides OpenTelemetry distributed tracing for the
// minerva service.
//
// One reasoning request produces one server span (opened by the HTTP
// middleware) with engine progress attached as span events and the
// resolved route, token totals and cost as minerva.* attributes. Spans
// export over OTLP gRPC to any compatible collector.
//
//	tracer, err := tracing.New(&cfg.Tracing)
//	if err != nil { ... }
//	defer tracer.Shutdown(context.Background())
//
//	handler = tracing.Middleware(tracer)(handler)
//
// Incoming W3C traceparent headers continue the caller's trace;
// responses carry X-Trace-ID. With tracing disabled every operation is
// a noop.
package tracing
