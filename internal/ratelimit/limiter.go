// Package ratelimit admits or rejects callers with a sliding window over a
// persisted ledger of admissions. The limiter holds no state of its own; the
// ledger store is the only synchronization point, so several server instances
// sharing a store share one limit.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"authorities/internal/models"
	"authorities/internal/storage"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	DefaultLimit  = 5
	DefaultWindow = time.Minute
)

// Decision outcomes reported on the ratelimit.decisions counter.
const (
	OutcomeAdmitted = "admitted"
	OutcomeRejected = "rejected"
	OutcomeFailOpen = "fail_open"
)

// Decision is the result of one admission check.
type Decision struct {
	Admitted   bool
	Remaining  int           // Admissions left in the current window
	Limit      int           // Ceiling per window
	ResetAt    time.Time     // Estimate: check time plus the window
	RetryAfter time.Duration // Meaningful only when rejected
	FailedOpen bool          // The ledger was unreachable and the call was admitted anyway
}

// Status is a read-only view of a caller's quota.
type Status struct {
	Count     int
	Remaining int
	Limit     int
	Window    time.Duration
	ResetAt   time.Time
}

// Limiter enforces at most limit admissions per window per caller address.
//
// The count-then-insert sequence is not atomic. Concurrent checks for the
// same address can all observe the same count and all be admitted, so the
// ledger may overshoot the ceiling by the number of racing calls.
type Limiter struct {
	store     storage.LedgerStore
	limit     int
	window    time.Duration
	decisions metric.Int64Counter
}

// Option configures a Limiter.
type Option func(*limiterOptions)

type limiterOptions struct {
	meterProvider metric.MeterProvider
}

// WithMeterProvider records decisions on mp instead of the global provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *limiterOptions) {
		o.meterProvider = mp
	}
}

// NewLimiter creates a limiter over store. Non-positive limit or window fall
// back to the defaults.
func NewLimiter(store storage.LedgerStore, limit int, window time.Duration, opts ...Option) (*Limiter, error) {
	if store == nil {
		return nil, fmt.Errorf("ledger store is required")
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}

	o := limiterOptions{meterProvider: otel.GetMeterProvider()}
	for _, opt := range opts {
		opt(&o)
	}

	decisions, err := o.meterProvider.Meter("authorities/ratelimit").Int64Counter(
		"ratelimit.decisions",
		metric.WithDescription("Number of rate limit admission decisions"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create decision counter: %w", err)
	}

	return &Limiter{
		store:     store,
		limit:     limit,
		window:    window,
		decisions: decisions,
	}, nil
}

// Limit returns the ceiling per window.
func (l *Limiter) Limit() int { return l.limit }

// Window returns the sliding window length.
func (l *Limiter) Window() time.Duration { return l.window }

// CheckAndRecord counts the caller's admissions within the window ending at
// now. Below the ceiling it records a new admission and admits; at or above
// it rejects without recording. Ledger failures admit the call.
func (l *Limiter) CheckAndRecord(ctx context.Context, callerAddress string, now time.Time) Decision {
	resetAt := now.Add(l.window)

	count, err := l.store.CountRateLimitRecords(ctx, callerAddress, now.Add(-l.window))
	if err != nil {
		return l.failOpen(ctx, callerAddress, resetAt, err)
	}

	if count >= l.limit {
		l.count(ctx, OutcomeRejected)
		slog.Warn("Rate limit exceeded",
			"caller_address", callerAddress,
			"count", count,
			"limit", l.limit,
		)
		return Decision{
			Admitted:   false,
			Remaining:  0,
			Limit:      l.limit,
			ResetAt:    resetAt,
			RetryAfter: l.window,
		}
	}

	record := models.RateLimitRecord{CallerAddress: callerAddress, CreatedAt: now}
	if err := l.store.InsertRateLimitRecord(ctx, record); err != nil {
		return l.failOpen(ctx, callerAddress, resetAt, err)
	}

	l.count(ctx, OutcomeAdmitted)
	return Decision{
		Admitted:  true,
		Remaining: max(0, l.limit-count-1),
		Limit:     l.limit,
		ResetAt:   resetAt,
	}
}

func (l *Limiter) failOpen(ctx context.Context, callerAddress string, resetAt time.Time, err error) Decision {
	l.count(ctx, OutcomeFailOpen)
	slog.Error("Rate limit check failed, admitting request",
		"caller_address", callerAddress,
		"error", err,
	)
	return Decision{
		Admitted:   true,
		Remaining:  l.limit - 1,
		Limit:      l.limit,
		ResetAt:    resetAt,
		FailedOpen: true,
	}
}

func (l *Limiter) count(ctx context.Context, outcome string) {
	l.decisions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// Status reports the caller's usage without consuming quota. Unlike
// CheckAndRecord, ledger errors are returned to the caller.
func (l *Limiter) Status(ctx context.Context, callerAddress string, now time.Time) (Status, error) {
	count, err := l.store.CountRateLimitRecords(ctx, callerAddress, now.Add(-l.window))
	if err != nil {
		return Status{}, fmt.Errorf("failed to read rate limit ledger: %w", err)
	}

	return Status{
		Count:     count,
		Remaining: max(0, l.limit-count),
		Limit:     l.limit,
		Window:    l.window,
		ResetAt:   now.Add(l.window),
	}, nil
}

// DescribeWindow renders a window for human-readable messages.
func DescribeWindow(window time.Duration) string {
	if window == time.Minute {
		return "minute"
	}
	return window.String()
}
