package storage

import (
	"fmt"
	"sort"
	"time"

	"authorities/internal/models"
)

// toUnixNanos stores timestamps as integers in SQLite so that range
// comparisons are numeric and not lexical.
func toUnixNanos(t time.Time) int64 {
	return t.UnixNano()
}

// fromUnixNanos converts a stored integer timestamp back to UTC.
func fromUnixNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

// validateEvent rejects records the schema would reject anyway, so every
// backend fails the same way.
func validateEvent(event *models.ContactEvent) error {
	if event == nil {
		return fmt.Errorf("%w: nil event", ErrInvalidRecord)
	}
	if event.ID == "" {
		return fmt.Errorf("%w: event id is empty", ErrInvalidRecord)
	}
	if event.CreatedAt.IsZero() {
		return fmt.Errorf("%w: event %s has no creation time", ErrInvalidRecord, event.ID)
	}
	return nil
}

// selectRecent orders events newest first and applies the filter. Input must
// be in insertion order; a stable sort over the reversed slice keeps later
// inserts ahead of earlier ones when timestamps tie.
func selectRecent(events []*models.ContactEvent, filter EventFilter) []*models.ContactEvent {
	if filter.Limit <= 0 {
		return []*models.ContactEvent{}
	}

	matched := make([]*models.ContactEvent, 0, len(events))
	for i := len(events) - 1; i >= 0; i-- {
		if filter.Target != "" && events[i].Target != filter.Target {
			continue
		}
		matched = append(matched, events[i])
	}

	sort.SliceStable(matched, func(a, b int) bool {
		return matched[a].CreatedAt.After(matched[b].CreatedAt)
	})

	if len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}

	out := make([]*models.ContactEvent, len(matched))
	for i, event := range matched {
		out[i] = event.Clone()
	}
	return out
}
