// Package observability provides the metrics, tracing, and context
// propagation infrastructure for the memory engine.
//
// # Components
//
// Metrics (metrics.go): a Prometheus Collector exposing HTTP, cache,
// and repository operation counters/histograms, registered on a
// dedicated registry rather than the global default. NewCollector
// returns one process-wide collector; ResetForTesting clears it so the
// next call builds a fresh one.
//
// Tracing (middleware.go, propagation.go): OpenTelemetry spans per
// HTTP request via TracingMiddleware, plus CreateChildSpan for the
// internal per-stage spans the recall and consolidation engines open
// around their own pipelines. Baggage (propagation.go's
// BaggageManager) carries the caller's user ID from the HTTP boundary
// into those child spans without threading it through every call
// signature.
//
// Middleware (middleware.go): MetricsMiddleware and TracingMiddleware
// wrap the chi router; see internal/interfaces/http/rest for wiring.
package observability
