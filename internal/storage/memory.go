package storage

import (
	"context"
	"sync"
	"time"

	"authorities/internal/models"
)

// MemoryStorage implements the Storage interface using in-memory data structures.
// This provider is ideal for development, testing, and scenarios where data
// persistence is not required. It provides fast access but data is lost on restart.
type MemoryStorage struct {
	mu     sync.RWMutex
	events []*models.ContactEvent // insertion order
	ledger map[string][]time.Time // key: caller address
	closed bool
}

// NewMemoryStorage creates a new memory-based storage instance
func NewMemoryStorage(config Config) (*MemoryStorage, error) {
	return &MemoryStorage{
		events: make([]*models.ContactEvent, 0),
		ledger: make(map[string][]time.Time),
	}, nil
}

// InsertEvent appends a copy of the event
func (m *MemoryStorage) InsertEvent(ctx context.Context, event *models.ContactEvent) error {
	if err := validateEvent(event); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	m.events = append(m.events, event.Clone())
	return nil
}

// ListEvents returns the most recent events matching the filter
func (m *MemoryStorage) ListEvents(ctx context.Context, filter EventFilter) ([]*models.ContactEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}

	return selectRecent(m.events, filter), nil
}

// InsertRateLimitRecord appends an admission to the caller's ledger
func (m *MemoryStorage) InsertRateLimitRecord(ctx context.Context, record models.RateLimitRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	m.ledger[record.CallerAddress] = append(m.ledger[record.CallerAddress], record.CreatedAt)
	return nil
}

// CountRateLimitRecords counts admissions at or after since
func (m *MemoryStorage) CountRateLimitRecords(ctx context.Context, callerAddress string, since time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0, ErrClosed
	}

	count := 0
	for _, createdAt := range m.ledger[callerAddress] {
		if !createdAt.Before(since) {
			count++
		}
	}
	return count, nil
}

// PruneRateLimitRecords removes admissions older than before
func (m *MemoryStorage) PruneRateLimitRecords(ctx context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, ErrClosed
	}

	var removed int64
	for addr, times := range m.ledger {
		kept := times[:0]
		for _, createdAt := range times {
			if createdAt.Before(before) {
				removed++
				continue
			}
			kept = append(kept, createdAt)
		}
		if len(kept) == 0 {
			delete(m.ledger, addr)
			continue
		}
		m.ledger[addr] = kept
	}
	return removed, nil
}

// Ping reports whether the storage is still open
func (m *MemoryStorage) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return ErrClosed
	}
	return nil
}

// Close marks the storage closed; later calls fail with ErrClosed
func (m *MemoryStorage) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}
