// Package eventlog is the append-only log of contact events. It owns input
// normalization, identifier and timestamp assignment and bounded retrieval;
// persistence is delegated to a storage.EventStore.
package eventlog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"authorities/internal/models"
	"authorities/internal/storage"
)

var (
	// ErrValidationFailed is returned when a required field is empty after trimming.
	ErrValidationFailed = errors.New("event validation failed")

	// ErrStoreUnavailable wraps every backend failure.
	ErrStoreUnavailable = errors.New("event store unavailable")
)

// Store appends and lists contact events.
type Store struct {
	events storage.EventStore
	newID  func(time.Time) string
}

// New returns a Store backed by events.
func New(events storage.EventStore) *Store {
	return &Store{
		events: events,
		newID:  models.NewEventID,
	}
}

// Insert trims and validates input, assigns an id and a creation time of now
// and persists the event.
func (s *Store) Insert(ctx context.Context, input models.ContactEventInput, callerAddress string, now time.Time) (*models.ContactEvent, error) {
	input.Normalize()
	if err := input.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}

	event := &models.ContactEvent{
		ID:            s.newID(now),
		Title:         input.Title,
		Target:        input.Target,
		Description:   input.Description,
		CallerAddress: callerAddress,
		CreatedAt:     now.UTC(),
	}

	if err := s.events.InsertEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	slog.Info("Contact event logged",
		"event_id", event.ID,
		"target", event.Target,
		"advisory_target", models.IsKnownTarget(event.Target),
		"caller_address", event.CallerAddress,
		"timestamp", event.CreatedAt,
	)

	return event.Clone(), nil
}

// ListRecent returns up to limit events, newest first. The limit is clamped
// to [1, models.MaxListLimit] with zero meaning models.DefaultListLimit. A
// non-empty target selects exact matches only.
func (s *Store) ListRecent(ctx context.Context, limit int, target string) ([]*models.ContactEvent, error) {
	query := models.ListEventsQuery{Limit: limit, Target: target}
	query.Normalize()

	events, err := s.events.ListEvents(ctx, storage.EventFilter{Target: query.Target, Limit: query.Limit})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if events == nil {
		events = []*models.ContactEvent{}
	}
	return events, nil
}
