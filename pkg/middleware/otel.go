package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xiaofan33/vueuse/pkg/storage"
)

// Default tracer name for storage spans.
const defaultTracerName = "vueuse/storage"

// TraceConfig configures the OpenTelemetry storage decorator.
type TraceConfig struct {
	// TracerName is the name of the tracer (default: "vueuse/storage").
	TracerName string

	// Backend is recorded as the kv.backend attribute on every span.
	Backend string

	// IncludeKey records the storage key as a span attribute. Keys can
	// carry user identifiers - disabled by default.
	IncludeKey bool

	// AttributeExtractor adds custom attributes to every span.
	AttributeExtractor func(op, key string) []attribute.KeyValue

	// tracer is the resolved tracer instance.
	tracer trace.Tracer
}

// TraceOption configures the OpenTelemetry storage decorator.
type TraceOption func(*TraceConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) TraceOption {
	return func(c *TraceConfig) {
		c.TracerName = name
	}
}

// WithTraceBackend sets the kv.backend attribute value.
func WithTraceBackend(backend string) TraceOption {
	return func(c *TraceConfig) {
		c.Backend = backend
	}
}

// WithIncludeKey enables recording storage keys on spans.
func WithIncludeKey(include bool) TraceOption {
	return func(c *TraceConfig) {
		c.IncludeKey = include
	}
}

// WithTraceAttributeExtractor sets a custom attribute extractor.
func WithTraceAttributeExtractor(extractor func(op, key string) []attribute.KeyValue) TraceOption {
	return func(c *TraceConfig) {
		c.AttributeExtractor = extractor
	}
}

func defaultTraceConfig() TraceConfig {
	return TraceConfig{
		TracerName: defaultTracerName,
		Backend:    "unknown",
	}
}

// TraceStorage wraps store so every operation runs inside an
// OpenTelemetry span: kv.get, kv.set or kv.remove, with the kv.backend
// attribute and error status recorded.
//
// The tracer comes from the global provider. Configure it in main()
// before serving:
//
//	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
//	otel.SetTracerProvider(tp)
func TraceStorage(store storage.Storage, opts ...TraceOption) storage.Storage {
	config := defaultTraceConfig()
	for _, opt := range opts {
		opt(&config)
	}
	config.tracer = otel.Tracer(config.TracerName)

	traced := &tracedStorage{
		inner:  store,
		config: config,
	}

	if src, ok := store.(storage.EventSource); ok {
		return &tracedEventStorage{tracedStorage: traced, events: src}
	}
	return traced
}

type tracedStorage struct {
	inner  storage.Storage
	config TraceConfig
}

func (s *tracedStorage) GetItem(key string) (string, bool, error) {
	ctx, span := s.startSpan("kv.get", key)
	defer span.End()
	_ = ctx

	value, ok, err := s.inner.GetItem(key)
	span.SetAttributes(attribute.Bool("kv.found", ok))
	s.finish(span, err)
	return value, ok, err
}

func (s *tracedStorage) SetItem(key, value string) error {
	_, span := s.startSpan("kv.set", key)
	defer span.End()

	span.SetAttributes(attribute.Int("kv.value_bytes", len(value)))
	err := s.inner.SetItem(key, value)
	s.finish(span, err)
	return err
}

func (s *tracedStorage) RemoveItem(key string) error {
	_, span := s.startSpan("kv.remove", key)
	defer span.End()

	err := s.inner.RemoveItem(key)
	s.finish(span, err)
	return err
}

// Unwrap returns the decorated backend.
func (s *tracedStorage) Unwrap() storage.Storage {
	return s.inner
}

func (s *tracedStorage) startSpan(name, key string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("kv.backend", s.config.Backend),
	}
	if s.config.IncludeKey {
		attrs = append(attrs, attribute.String("kv.key", key))
	}
	if s.config.AttributeExtractor != nil {
		attrs = append(attrs, s.config.AttributeExtractor(name, key)...)
	}

	return s.config.tracer.Start(context.Background(), name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...))
}

func (s *tracedStorage) finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}

type tracedEventStorage struct {
	*tracedStorage
	events storage.EventSource
}

func (s *tracedEventStorage) Subscribe(fn func(storage.Event)) (cancel func()) {
	return s.events.Subscribe(func(e storage.Event) {
		if e.Storage == s.inner {
			e.Storage = s
		}
		fn(e)
	})
}
