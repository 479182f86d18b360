package storage

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"authorities/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// baseTime is truncated to microseconds so every backend round-trips it exactly.
var baseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testEvent(id, target string, createdAt time.Time) *models.ContactEvent {
	return &models.ContactEvent{
		ID:            id,
		Title:         "Title " + id,
		Target:        target,
		Description:   "Description " + id,
		CallerAddress: "203.0.113.7",
		CreatedAt:     createdAt,
	}
}

func eventIDs(events []*models.ContactEvent) []string {
	ids := make([]string, len(events))
	for i, e := range events {
		ids[i] = e.ID
	}
	return ids
}

// runStorageConformance exercises the behaviour every backend must share.
func runStorageConformance(t *testing.T, newStorage func(t *testing.T) Storage) {
	ctx := context.Background()

	t.Run("EmptyList", func(t *testing.T) {
		s := newStorage(t)
		events, err := s.ListEvents(ctx, EventFilter{Limit: 20})
		require.NoError(t, err)
		assert.NotNil(t, events)
		assert.Empty(t, events)
	})

	t.Run("InsertAndListRoundTrip", func(t *testing.T) {
		s := newStorage(t)
		event := testEvent("event_1", models.TargetPolice, baseTime)
		require.NoError(t, s.InsertEvent(ctx, event))

		events, err := s.ListEvents(ctx, EventFilter{Limit: 20})
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, event.ID, events[0].ID)
		assert.Equal(t, event.Title, events[0].Title)
		assert.Equal(t, event.Target, events[0].Target)
		assert.Equal(t, event.Description, events[0].Description)
		assert.Equal(t, event.CallerAddress, events[0].CallerAddress)
		assert.True(t, event.CreatedAt.Equal(events[0].CreatedAt), "created_at %v != %v", event.CreatedAt, events[0].CreatedAt)
	})

	t.Run("NewestFirstWithInsertionTieBreak", func(t *testing.T) {
		s := newStorage(t)
		require.NoError(t, s.InsertEvent(ctx, testEvent("event_a", models.TargetFire, baseTime)))
		require.NoError(t, s.InsertEvent(ctx, testEvent("event_b", models.TargetFire, baseTime.Add(2*time.Second))))
		require.NoError(t, s.InsertEvent(ctx, testEvent("event_c", models.TargetFire, baseTime.Add(time.Second))))
		require.NoError(t, s.InsertEvent(ctx, testEvent("event_d", models.TargetFire, baseTime.Add(2*time.Second))))

		events, err := s.ListEvents(ctx, EventFilter{Limit: 20})
		require.NoError(t, err)
		assert.Equal(t, []string{"event_d", "event_b", "event_c", "event_a"}, eventIDs(events))
	})

	t.Run("LimitAndTargetFilter", func(t *testing.T) {
		s := newStorage(t)
		for i := 0; i < 5; i++ {
			target := models.TargetPolice
			if i%2 == 1 {
				target = models.TargetMedical
			}
			require.NoError(t, s.InsertEvent(ctx, testEvent(fmt.Sprintf("event_%d", i), target, baseTime.Add(time.Duration(i)*time.Second))))
		}

		events, err := s.ListEvents(ctx, EventFilter{Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, []string{"event_4", "event_3"}, eventIDs(events))

		events, err = s.ListEvents(ctx, EventFilter{Limit: 10, Target: models.TargetMedical})
		require.NoError(t, err)
		assert.Equal(t, []string{"event_3", "event_1"}, eventIDs(events))

		events, err = s.ListEvents(ctx, EventFilter{Limit: 10, Target: "coast-guard"})
		require.NoError(t, err)
		assert.Empty(t, events)

		events, err = s.ListEvents(ctx, EventFilter{Limit: 0})
		require.NoError(t, err)
		assert.Empty(t, events)
	})

	t.Run("ReturnedEventsAreCopies", func(t *testing.T) {
		s := newStorage(t)
		event := testEvent("event_1", models.TargetLocal, baseTime)
		require.NoError(t, s.InsertEvent(ctx, event))
		event.Title = "mutated after insert"

		events, err := s.ListEvents(ctx, EventFilter{Limit: 1})
		require.NoError(t, err)
		events[0].Title = "mutated after list"

		events, err = s.ListEvents(ctx, EventFilter{Limit: 1})
		require.NoError(t, err)
		assert.Equal(t, "Title event_1", events[0].Title)
	})

	t.Run("RejectsInvalidEvents", func(t *testing.T) {
		s := newStorage(t)
		assert.ErrorIs(t, s.InsertEvent(ctx, nil), ErrInvalidRecord)
		assert.ErrorIs(t, s.InsertEvent(ctx, &models.ContactEvent{CreatedAt: baseTime}), ErrInvalidRecord)
		assert.ErrorIs(t, s.InsertEvent(ctx, &models.ContactEvent{ID: "event_x"}), ErrInvalidRecord)
	})

	t.Run("LedgerCountIsWindowedAndPerAddress", func(t *testing.T) {
		s := newStorage(t)
		for _, offset := range []time.Duration{0, 30 * time.Second, 59 * time.Second, 60 * time.Second} {
			require.NoError(t, s.InsertRateLimitRecord(ctx, models.RateLimitRecord{CallerAddress: "198.51.100.1", CreatedAt: baseTime.Add(offset)}))
		}
		require.NoError(t, s.InsertRateLimitRecord(ctx, models.RateLimitRecord{CallerAddress: "198.51.100.2", CreatedAt: baseTime.Add(30 * time.Second)}))

		count, err := s.CountRateLimitRecords(ctx, "198.51.100.1", baseTime)
		require.NoError(t, err)
		assert.Equal(t, 4, count, "the lower bound is inclusive")

		count, err = s.CountRateLimitRecords(ctx, "198.51.100.1", baseTime.Add(30*time.Second))
		require.NoError(t, err)
		assert.Equal(t, 3, count)

		count, err = s.CountRateLimitRecords(ctx, "198.51.100.2", baseTime)
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		count, err = s.CountRateLimitRecords(ctx, "198.51.100.3", baseTime)
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})

	t.Run("PruneRemovesOnlyOlderRecords", func(t *testing.T) {
		s := newStorage(t)
		for i := 0; i < 3; i++ {
			require.NoError(t, s.InsertRateLimitRecord(ctx, models.RateLimitRecord{CallerAddress: "a", CreatedAt: baseTime.Add(time.Duration(i) * time.Minute)}))
		}
		require.NoError(t, s.InsertRateLimitRecord(ctx, models.RateLimitRecord{CallerAddress: "b", CreatedAt: baseTime}))

		removed, err := s.PruneRateLimitRecords(ctx, baseTime.Add(time.Minute))
		require.NoError(t, err)
		assert.Equal(t, int64(2), removed)

		count, err := s.CountRateLimitRecords(ctx, "a", baseTime.Add(-time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 2, count)

		count, err = s.CountRateLimitRecords(ctx, "b", baseTime.Add(-time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})

	t.Run("ConcurrentInserts", func(t *testing.T) {
		s := newStorage(t)
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				assert.NoError(t, s.InsertEvent(ctx, testEvent(fmt.Sprintf("event_c%d", i), models.TargetFBI, baseTime)))
				assert.NoError(t, s.InsertRateLimitRecord(ctx, models.RateLimitRecord{CallerAddress: "c", CreatedAt: baseTime}))
			}(i)
		}
		wg.Wait()

		events, err := s.ListEvents(ctx, EventFilter{Limit: 100})
		require.NoError(t, err)
		assert.Len(t, events, 10)

		count, err := s.CountRateLimitRecords(ctx, "c", baseTime)
		require.NoError(t, err)
		assert.Equal(t, 10, count)
	})

	t.Run("Ping", func(t *testing.T) {
		s := newStorage(t)
		assert.NoError(t, s.Ping(ctx))
	})
}
