package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/xiaofan33/vueuse/pkg/storage"
)

// MetricsConfig configures the Prometheus storage decorator.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "vueuse").
	Namespace string

	// Subsystem is the metrics subsystem (default: "storage").
	Subsystem string

	// Backend labels every metric with the backend's name, for example
	// "redis" or "file".
	Backend string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for operation duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus storage decorator.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithBackendLabel sets the backend label value.
func WithBackendLabel(backend string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Backend = backend
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "vueuse",
		Subsystem: "storage",
		Backend:   "unknown",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// storageMetrics holds the Prometheus collectors for one decorator.
type storageMetrics struct {
	opsTotal   *prometheus.CounterVec
	opDuration *prometheus.HistogramVec
	hits       prometheus.Counter
	misses     prometheus.Counter
}

func newStorageMetrics(config MetricsConfig) *storageMetrics {
	factory := promauto.With(config.Registry)

	labels := prometheus.Labels{"backend": config.Backend}
	for k, v := range config.ConstLabels {
		labels[k] = v
	}

	return &storageMetrics{
		opsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "operations_total",
			Help:        "Total storage operations by type and status",
			ConstLabels: labels,
		}, []string{"op", "status"}),

		opDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "operation_duration_seconds",
			Help:        "Storage operation duration in seconds",
			ConstLabels: labels,
			Buckets:     config.Buckets,
		}, []string{"op"}),

		hits: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "read_hits_total",
			Help:        "Reads that found the key",
			ConstLabels: labels,
		}),

		misses: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "read_misses_total",
			Help:        "Reads that did not find the key",
			ConstLabels: labels,
		}),
	}
}

// InstrumentStorage wraps store with Prometheus metrics.
//
// Metrics collected:
//   - vueuse_storage_operations_total: Counter of operations by type and status
//   - vueuse_storage_operation_duration_seconds: Histogram of operation duration
//   - vueuse_storage_read_hits_total / read_misses_total: Read outcomes
//
// When store emits native change events the decorated backend forwards
// them, so instrumented backends still synchronize bindings.
//
// Example:
//
//	store := middleware.InstrumentStorage(fileStore,
//	    middleware.WithBackendLabel("file"),
//	)
//	http.Handle("/metrics", promhttp.Handler())
func InstrumentStorage(store storage.Storage, opts ...MetricsOption) storage.Storage {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}

	inst := &instrumentedStorage{
		inner:   store,
		metrics: newStorageMetrics(config),
	}

	if src, ok := store.(storage.EventSource); ok {
		return &instrumentedEventStorage{instrumentedStorage: inst, events: src}
	}
	return inst
}

type instrumentedStorage struct {
	inner   storage.Storage
	metrics *storageMetrics
}

func (s *instrumentedStorage) GetItem(key string) (string, bool, error) {
	start := time.Now()
	value, ok, err := s.inner.GetItem(key)
	s.record("get", start, err)

	if err == nil {
		if ok {
			s.metrics.hits.Inc()
		} else {
			s.metrics.misses.Inc()
		}
	}
	return value, ok, err
}

func (s *instrumentedStorage) SetItem(key, value string) error {
	start := time.Now()
	err := s.inner.SetItem(key, value)
	s.record("set", start, err)
	return err
}

func (s *instrumentedStorage) RemoveItem(key string) error {
	start := time.Now()
	err := s.inner.RemoveItem(key)
	s.record("remove", start, err)
	return err
}

// Unwrap returns the decorated backend.
func (s *instrumentedStorage) Unwrap() storage.Storage {
	return s.inner
}

func (s *instrumentedStorage) record(op string, start time.Time, err error) {
	s.metrics.opDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())

	status := "success"
	if err != nil {
		status = "error"
	}
	s.metrics.opsTotal.WithLabelValues(op, status).Inc()
}

// instrumentedEventStorage additionally forwards native change events.
// Split into its own type so a decorated backend only advertises the
// event source contract when the inner one does.
type instrumentedEventStorage struct {
	*instrumentedStorage
	events storage.EventSource
}

func (s *instrumentedEventStorage) Subscribe(fn func(storage.Event)) (cancel func()) {
	// Rewrite the event's backend so identity checks against the
	// decorated store still match.
	return s.events.Subscribe(func(e storage.Event) {
		if e.Storage == s.inner {
			e.Storage = s
		}
		fn(e)
	})
}
