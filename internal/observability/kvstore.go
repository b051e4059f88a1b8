package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"edgegate/internal/kv"
)

// InstrumentedStore wraps a kv.Store with OpenTelemetry tracing and metrics.
// The adapter contract hides backend errors behind miss/false results, so
// the instrumentation records outcomes ("hit"/"miss" for reads, "ok"/
// "dropped" for writes) rather than error counts.
type InstrumentedStore struct {
	inner    kv.Store
	tracer   trace.Tracer
	duration metric.Float64Histogram
	outcomes metric.Int64Counter
}

// NewInstrumentedStore creates a store wrapper that records trace spans,
// operation latency histograms, and outcome counters for every KV call.
func NewInstrumentedStore(inner kv.Store) (*InstrumentedStore, error) {
	tracer := otel.Tracer("edgegate/kv")
	meter := otel.Meter("edgegate/kv")

	duration, err := meter.Float64Histogram(
		"kv.operation.duration",
		metric.WithDescription("Duration of KV store operations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	outcomes, err := meter.Int64Counter(
		"kv.operation.outcomes",
		metric.WithDescription("KV operation outcomes by operation and result"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, err
	}

	return &InstrumentedStore{
		inner:    inner,
		tracer:   tracer,
		duration: duration,
		outcomes: outcomes,
	}, nil
}

func (s *InstrumentedStore) startSpan(ctx context.Context, operation string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "kv."+operation,
		trace.WithAttributes(attribute.String("kv.operation", operation)),
	)
}

func (s *InstrumentedStore) record(ctx context.Context, span trace.Span, operation, result string, start time.Time) {
	elapsed := time.Since(start).Seconds()
	attrs := metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("result", result),
	)

	s.duration.Record(ctx, elapsed, attrs)
	s.outcomes.Add(ctx, 1, attrs)

	span.SetAttributes(attribute.String("kv.result", result))
	span.End()
}

func (s *InstrumentedStore) Get(ctx context.Context, key string) ([]byte, bool) {
	ctx, span := s.startSpan(ctx, "Get")
	start := time.Now()
	value, ok := s.inner.Get(ctx, key)
	result := "hit"
	if !ok {
		result = "miss"
	}
	s.record(ctx, span, "Get", result, start)
	return value, ok
}

func (s *InstrumentedStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) bool {
	ctx, span := s.startSpan(ctx, "Set")
	start := time.Now()
	ok := s.inner.Set(ctx, key, value, ttl)
	result := "ok"
	if !ok {
		result = "dropped"
	}
	s.record(ctx, span, "Set", result, start)
	return ok
}

func (s *InstrumentedStore) Delete(ctx context.Context, key string) bool {
	ctx, span := s.startSpan(ctx, "Delete")
	start := time.Now()
	ok := s.inner.Delete(ctx, key)
	result := "ok"
	if !ok {
		result = "dropped"
	}
	s.record(ctx, span, "Delete", result, start)
	return ok
}

func (s *InstrumentedStore) ListKeys(ctx context.Context, prefix string, limit int) []string {
	ctx, span := s.startSpan(ctx, "ListKeys")
	start := time.Now()
	keys := s.inner.ListKeys(ctx, prefix, limit)
	s.record(ctx, span, "ListKeys", "ok", start)
	return keys
}

func (s *InstrumentedStore) Ping(ctx context.Context) error {
	ctx, span := s.startSpan(ctx, "Ping")
	start := time.Now()
	err := s.inner.Ping(ctx)
	result := "ok"
	if err != nil {
		result = "failed"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	s.record(ctx, span, "Ping", result, start)
	return err
}

func (s *InstrumentedStore) Close() error {
	return s.inner.Close()
}
