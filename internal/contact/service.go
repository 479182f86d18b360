// Package contact implements the operations exposed by both the REST API and
// the tool endpoint. Every operation that touches the event log is metered by
// the rate limiter first, so the two surfaces share one quota per caller.
package contact

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"authorities/internal/eventlog"
	"authorities/internal/models"
	"authorities/internal/ratelimit"
)

// Caller-facing messages. Store detail never appears in these.
const (
	MessageMissingFields = "Missing required fields: title, target, description"
	MessageRecordFailed  = "Failed to log contact event"
	MessageListFailed    = "Failed to fetch events"
	MessageStatusFailed  = "Unable to check rate limit status"
)

// RecordResult is returned by RecordEvent. Decision is always set, also when
// an error is returned.
type RecordResult struct {
	Event    *models.ContactEvent
	Decision ratelimit.Decision
}

// ListResult is returned by ListEvents. Decision is always set, also when
// an error is returned.
type ListResult struct {
	Events   []*models.ContactEvent
	Decision ratelimit.Decision
}

// Service handles contact event business logic
type Service struct {
	limiter *ratelimit.Limiter
	events  *eventlog.Store
}

// NewService creates a new contact service
func NewService(limiter *ratelimit.Limiter, events *eventlog.Store) *Service {
	return &Service{
		limiter: limiter,
		events:  events,
	}
}

// Limit returns the configured ceiling per window.
func (s *Service) Limit() int {
	return s.limiter.Limit()
}

// Window returns the configured sliding window.
func (s *Service) Window() time.Duration {
	return s.limiter.Window()
}

// RecordEvent checks the rate limit before anything else; a rejected caller
// never reaches validation. Admitted input is validated and stored.
func (s *Service) RecordEvent(ctx context.Context, callerAddress string, input models.ContactEventInput, now time.Time) (*RecordResult, error) {
	result := &RecordResult{Decision: s.limiter.CheckAndRecord(ctx, callerAddress, now)}
	if !result.Decision.Admitted {
		return result, s.rateLimited()
	}

	event, err := s.events.Insert(ctx, input, callerAddress, now)
	if err != nil {
		if errors.Is(err, eventlog.ErrValidationFailed) {
			return result, NewInvalidInputError(MessageMissingFields, err)
		}
		slog.Error("Failed to log contact event",
			"caller_address", callerAddress,
			"error", err,
		)
		return result, NewStoreUnavailableError(MessageRecordFailed, err)
	}

	result.Event = event
	return result, nil
}

// ListEvents meters reads with the same quota as writes.
func (s *Service) ListEvents(ctx context.Context, callerAddress string, query models.ListEventsQuery, now time.Time) (*ListResult, error) {
	result := &ListResult{Decision: s.limiter.CheckAndRecord(ctx, callerAddress, now)}
	if !result.Decision.Admitted {
		return result, s.rateLimited()
	}

	events, err := s.events.ListRecent(ctx, query.Limit, query.Target)
	if err != nil {
		slog.Error("Failed to fetch contact events",
			"caller_address", callerAddress,
			"error", err,
		)
		return result, NewStoreUnavailableError(MessageListFailed, err)
	}

	result.Events = events
	return result, nil
}

// LimiterStatus never consumes quota.
func (s *Service) LimiterStatus(ctx context.Context, callerAddress string, now time.Time) (ratelimit.Status, error) {
	status, err := s.limiter.Status(ctx, callerAddress, now)
	if err != nil {
		slog.Error("Failed to check rate limit status",
			"caller_address", callerAddress,
			"error", err,
		)
		return ratelimit.Status{}, NewStoreUnavailableError(MessageStatusFailed, err)
	}
	return status, nil
}

func (s *Service) rateLimited() *ServiceError {
	return NewRateLimitedError(s.limiter.Limit(), ratelimit.DescribeWindow(s.limiter.Window()))
}
