package storage

import (
	"testing"
	"time"

	"authorities/internal/models"
)

func TestUnixNanosRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		input time.Time
	}{
		{name: "utc", input: baseTime},
		{name: "sub-second", input: baseTime.Add(123456789 * time.Nanosecond)},
		{name: "non-utc zone", input: time.Date(2025, 6, 1, 14, 0, 0, 0, time.FixedZone("CEST", 2*60*60))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := fromUnixNanos(toUnixNanos(tt.input))
			if !got.Equal(tt.input) {
				t.Errorf("expected %v, got %v", tt.input, got)
			}
			if got.Location() != time.UTC {
				t.Errorf("expected UTC, got %v", got.Location())
			}
		})
	}
}

func TestSelectRecent(t *testing.T) {
	events := []*models.ContactEvent{
		testEvent("event_1", models.TargetPolice, baseTime),
		testEvent("event_2", models.TargetFire, baseTime.Add(time.Second)),
		testEvent("event_3", models.TargetPolice, baseTime),
		testEvent("event_4", models.TargetPolice, baseTime.Add(-time.Second)),
	}

	tests := []struct {
		name     string
		filter   EventFilter
		expected []string
	}{
		{name: "all", filter: EventFilter{Limit: 10}, expected: []string{"event_2", "event_3", "event_1", "event_4"}},
		{name: "limited", filter: EventFilter{Limit: 2}, expected: []string{"event_2", "event_3"}},
		{name: "by target", filter: EventFilter{Limit: 10, Target: models.TargetPolice}, expected: []string{"event_3", "event_1", "event_4"}},
		{name: "no match", filter: EventFilter{Limit: 10, Target: models.TargetFBI}, expected: []string{}},
		{name: "zero limit", filter: EventFilter{}, expected: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := eventIDs(selectRecent(events, tt.filter))
			if len(got) != len(tt.expected) {
				t.Fatalf("expected %v, got %v", tt.expected, got)
			}
			for i := range got {
				if got[i] != tt.expected[i] {
					t.Errorf("expected %v, got %v", tt.expected, got)
					break
				}
			}
		})
	}

	// The input slice must not be reordered.
	if events[0].ID != "event_1" || events[3].ID != "event_4" {
		t.Error("selectRecent modified its input")
	}
}

func TestValidateEvent(t *testing.T) {
	if err := validateEvent(testEvent("event_1", models.TargetLocal, baseTime)); err != nil {
		t.Errorf("expected valid event, got %v", err)
	}
	for name, event := range map[string]*models.ContactEvent{
		"nil":        nil,
		"missing id": {CreatedAt: baseTime},
		"zero time":  {ID: "event_1"},
	} {
		if err := validateEvent(event); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}
