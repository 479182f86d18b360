package observability

import (
	"context"
	"time"

	"authorities/internal/models"
	"authorities/internal/storage"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const storageInstrumentationName = "authorities/storage"

// InstrumentedStorage wraps a storage.Storage implementation with
// OpenTelemetry tracing and metrics instrumentation.
type InstrumentedStorage struct {
	inner    storage.Storage
	tracer   trace.Tracer
	duration metric.Float64Histogram
	errors   metric.Int64Counter
}

var _ storage.Storage = (*InstrumentedStorage)(nil)

// NewInstrumentedStorage creates a new storage wrapper that records trace spans,
// operation latency histograms, and error counters for every storage method call.
func NewInstrumentedStorage(inner storage.Storage) (*InstrumentedStorage, error) {
	tracer := otel.Tracer(storageInstrumentationName)
	meter := otel.Meter(storageInstrumentationName)

	duration, err := meter.Float64Histogram(
		"storage.operation.duration",
		metric.WithDescription("Duration of storage operations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	errCounter, err := meter.Int64Counter(
		"storage.operation.errors",
		metric.WithDescription("Number of storage operation errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return &InstrumentedStorage{
		inner:    inner,
		tracer:   tracer,
		duration: duration,
		errors:   errCounter,
	}, nil
}

func (s *InstrumentedStorage) startSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := s.tracer.Start(ctx, "storage."+operation,
		trace.WithAttributes(append([]attribute.KeyValue{
			attribute.String("storage.operation", operation),
		}, attrs...)...),
	)
	return ctx, span
}

func (s *InstrumentedStorage) record(ctx context.Context, span trace.Span, operation string, start time.Time, err error) {
	elapsed := time.Since(start).Seconds()
	attrs := metric.WithAttributes(attribute.String("operation", operation))

	s.duration.Record(ctx, elapsed, attrs)

	if err != nil {
		s.errors.Add(ctx, 1, attrs)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.End()
}

func (s *InstrumentedStorage) InsertEvent(ctx context.Context, event *models.ContactEvent) error {
	ctx, span := s.startSpan(ctx, "InsertEvent",
		attribute.String("event_id", event.ID),
		attribute.String("target", event.Target),
	)
	start := time.Now()
	err := s.inner.InsertEvent(ctx, event)
	s.record(ctx, span, "InsertEvent", start, err)
	return err
}

func (s *InstrumentedStorage) ListEvents(ctx context.Context, filter storage.EventFilter) ([]*models.ContactEvent, error) {
	ctx, span := s.startSpan(ctx, "ListEvents",
		attribute.String("target", filter.Target),
		attribute.Int("limit", filter.Limit),
	)
	start := time.Now()
	result, err := s.inner.ListEvents(ctx, filter)
	span.SetAttributes(attribute.Int("result_count", len(result)))
	s.record(ctx, span, "ListEvents", start, err)
	return result, err
}

// Caller addresses are deliberately left off ledger spans.

func (s *InstrumentedStorage) InsertRateLimitRecord(ctx context.Context, record models.RateLimitRecord) error {
	ctx, span := s.startSpan(ctx, "InsertRateLimitRecord")
	start := time.Now()
	err := s.inner.InsertRateLimitRecord(ctx, record)
	s.record(ctx, span, "InsertRateLimitRecord", start, err)
	return err
}

func (s *InstrumentedStorage) CountRateLimitRecords(ctx context.Context, callerAddress string, since time.Time) (int, error) {
	ctx, span := s.startSpan(ctx, "CountRateLimitRecords")
	start := time.Now()
	count, err := s.inner.CountRateLimitRecords(ctx, callerAddress, since)
	s.record(ctx, span, "CountRateLimitRecords", start, err)
	return count, err
}

func (s *InstrumentedStorage) PruneRateLimitRecords(ctx context.Context, before time.Time) (int64, error) {
	ctx, span := s.startSpan(ctx, "PruneRateLimitRecords",
		attribute.String("before", before.UTC().Format(time.RFC3339)),
	)
	start := time.Now()
	removed, err := s.inner.PruneRateLimitRecords(ctx, before)
	span.SetAttributes(attribute.Int64("removed", removed))
	s.record(ctx, span, "PruneRateLimitRecords", start, err)
	return removed, err
}

func (s *InstrumentedStorage) Ping(ctx context.Context) error {
	ctx, span := s.startSpan(ctx, "Ping")
	start := time.Now()
	err := s.inner.Ping(ctx)
	s.record(ctx, span, "Ping", start, err)
	return err
}

func (s *InstrumentedStorage) Close() error {
	return s.inner.Close()
}
