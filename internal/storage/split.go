package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"authorities/internal/models"
)

// SplitStorage keeps events in a primary store and routes the rate-limit
// ledger to a separate backend.
type SplitStorage struct {
	primary Storage
	ledger  Ledger
}

// NewSplitStorage routes ledger calls to ledger and everything else to primary.
// Both are closed by Close.
func NewSplitStorage(primary Storage, ledger Ledger) *SplitStorage {
	return &SplitStorage{primary: primary, ledger: ledger}
}

func (s *SplitStorage) InsertEvent(ctx context.Context, event *models.ContactEvent) error {
	return s.primary.InsertEvent(ctx, event)
}

func (s *SplitStorage) ListEvents(ctx context.Context, filter EventFilter) ([]*models.ContactEvent, error) {
	return s.primary.ListEvents(ctx, filter)
}

func (s *SplitStorage) InsertRateLimitRecord(ctx context.Context, record models.RateLimitRecord) error {
	return s.ledger.InsertRateLimitRecord(ctx, record)
}

func (s *SplitStorage) CountRateLimitRecords(ctx context.Context, callerAddress string, since time.Time) (int, error) {
	return s.ledger.CountRateLimitRecords(ctx, callerAddress, since)
}

func (s *SplitStorage) PruneRateLimitRecords(ctx context.Context, before time.Time) (int64, error) {
	return s.ledger.PruneRateLimitRecords(ctx, before)
}

// Ping fails if either backend is unreachable.
func (s *SplitStorage) Ping(ctx context.Context) error {
	if err := s.primary.Ping(ctx); err != nil {
		return fmt.Errorf("primary store: %w", err)
	}
	if err := s.ledger.Ping(ctx); err != nil {
		return fmt.Errorf("ledger store: %w", err)
	}
	return nil
}

func (s *SplitStorage) Close() error {
	return errors.Join(s.primary.Close(), s.ledger.Close())
}
