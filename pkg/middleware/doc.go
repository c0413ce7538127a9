// Package middleware provides observability decorators for key-value
// backends.
//
// # Prometheus Metrics
//
// InstrumentStorage wraps any backend with operation counters, duration
// histograms and read hit/miss counters:
//
//	store := middleware.InstrumentStorage(redisStore,
//	    middleware.WithBackendLabel("redis"),
//	)
//
// Then expose metrics however the application serves them:
//
//	http.Handle("/metrics", promhttp.Handler())
//
// # OpenTelemetry Tracing
//
// TraceStorage wraps a backend so every read, write and removal runs in
// a client span:
//
//	store := middleware.TraceStorage(sqlStore,
//	    middleware.WithTraceBackend("sql"),
//	)
//
// Both decorators forward native change events when the wrapped backend
// emits them, so decorated backends keep bindings synchronized. They
// compose in any order.
package middleware
