package storage

import (
	"context"
	"time"

	"authorities/internal/models"
)

// EventStore persists contact events. Implementations must return events in
// descending CreatedAt order with ties broken by reverse insertion order, and
// must hand out copies so callers cannot mutate stored records.
type EventStore interface {
	// InsertEvent appends a single event
	InsertEvent(ctx context.Context, event *models.ContactEvent) error

	// ListEvents returns at most filter.Limit events, newest first
	ListEvents(ctx context.Context, filter EventFilter) ([]*models.ContactEvent, error)
}

// LedgerStore persists the per-address rate-limit ledger.
type LedgerStore interface {
	// InsertRateLimitRecord appends one admission record
	InsertRateLimitRecord(ctx context.Context, record models.RateLimitRecord) error

	// CountRateLimitRecords counts records for callerAddress with CreatedAt >= since
	CountRateLimitRecords(ctx context.Context, callerAddress string, since time.Time) (int, error)

	// PruneRateLimitRecords deletes records with CreatedAt < before and reports how many were removed
	PruneRateLimitRecords(ctx context.Context, before time.Time) (int64, error)
}

// Ledger is a LedgerStore that owns a connection.
type Ledger interface {
	LedgerStore
	Ping(ctx context.Context) error
	Close() error
}

// Storage is the full record-store capability used by the service: the event
// log, the rate-limit ledger and connection lifecycle.
type Storage interface {
	EventStore
	LedgerStore

	// Ping checks that the backend is reachable
	Ping(ctx context.Context) error

	// Close closes the storage connection and cleans up resources
	Close() error
}

// EventFilter selects events for ListEvents. An empty Target matches all
// events; a non-positive Limit returns no events.
type EventFilter struct {
	Target string
	Limit  int
}

// Config holds configuration for storage backends
type Config struct {
	// Type specifies the storage backend type (json, memory, sqlite, postgres)
	Type string `json:"type" yaml:"type"`

	// Path is used for file-based storage backends
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	// ConnectionString is used for database backends
	ConnectionString string `json:"connection_string,omitempty" yaml:"connection_string,omitempty"`

	// CacheTTL specifies how long file-backed data is trusted before re-checking the file
	CacheTTL time.Duration `json:"cache_ttl,omitempty" yaml:"cache_ttl,omitempty"`

	// Connection pool limits for database backends; zero keeps the driver default
	MaxOpenConns    int           `json:"max_open_conns,omitempty" yaml:"max_open_conns,omitempty"`
	MaxIdleConns    int           `json:"max_idle_conns,omitempty" yaml:"max_idle_conns,omitempty"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime,omitempty" yaml:"conn_max_lifetime,omitempty"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time,omitempty" yaml:"conn_max_idle_time,omitempty"`
}

var (
	_ Storage = (*MemoryStorage)(nil)
	_ Storage = (*JSONStorage)(nil)
	_ Storage = (*SQLiteStorage)(nil)
	_ Storage = (*PostgresStorage)(nil)
	_ Storage = (*SplitStorage)(nil)
	_ Ledger  = (*RedisLedger)(nil)
)
