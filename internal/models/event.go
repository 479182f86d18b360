// Package models - Contact events and the rate-limit ledger.
// This file defines the two persisted record kinds and their identity rules.
//
// Record Lifecycle:
// - A ContactEvent is created once by the event log and never modified or deleted
// - A RateLimitRecord is written once per admitted request and only removed by pruning
// - Caller addresses are best-effort strings and may be "unknown"
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Target kinds offered to callers. The list is advisory: the event log
// accepts any non-empty target, only the tool schema enforces the enum.
const (
	TargetPolice     = "police"
	TargetFire       = "fire"
	TargetMedical    = "medical"
	TargetFBI        = "fbi"
	TargetCybercrime = "cybercrime"
	TargetLocal      = "local"
)

// UnknownAddress is recorded when no caller address can be resolved.
const UnknownAddress = "unknown"

// eventIDRandomLength is the number of random characters appended to event IDs.
const eventIDRandomLength = 9

// ContactEvent is a single report filed with an authority.
//
// Field Notes:
// - ID has the form event_<unix-ms>_<random> and is opaque to callers
// - Title, Target and Description are stored trimmed and never empty
// - CreatedAt is assigned by the server, never taken from the caller
type ContactEvent struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Target        string    `json:"target"`
	Description   string    `json:"description"`
	CallerAddress string    `json:"caller_address"`
	CreatedAt     time.Time `json:"created_at"`
}

// RateLimitRecord marks one admitted request in the sliding-window ledger.
type RateLimitRecord struct {
	CallerAddress string    `json:"caller_address"`
	CreatedAt     time.Time `json:"created_at"`
}

// ValidTargets returns the advisory target kinds in display order.
func ValidTargets() []string {
	return []string{TargetPolice, TargetFire, TargetMedical, TargetFBI, TargetCybercrime, TargetLocal}
}

// IsKnownTarget reports whether target is one of the advisory kinds.
func IsKnownTarget(target string) bool {
	for _, t := range ValidTargets() {
		if t == target {
			return true
		}
	}
	return false
}

// NewEventID builds an event identifier from the creation time and a random suffix.
func NewEventID(now time.Time) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:eventIDRandomLength]
	return fmt.Sprintf("event_%d_%s", now.UnixMilli(), random)
}

// Clone returns a copy of the event so callers cannot mutate stored state.
func (e *ContactEvent) Clone() *ContactEvent {
	if e == nil {
		return nil
	}
	clone := *e
	return &clone
}
