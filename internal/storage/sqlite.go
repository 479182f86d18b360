package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"authorities/internal/models"

	_ "modernc.org/sqlite"
)

// sqliteSchema creates the event log and ledger tables. Timestamps are unix
// nanoseconds; seq preserves insertion order for tie-breaking.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS contact_events (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL,
		target TEXT NOT NULL,
		description TEXT NOT NULL,
		caller_address TEXT NOT NULL,
		created_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_contact_events_created_at ON contact_events (created_at DESC, seq DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_contact_events_target ON contact_events (target, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS rate_limits (
		caller_address TEXT NOT NULL,
		created_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_rate_limits_caller ON rate_limits (caller_address, created_at)`,
}

const (
	sqliteInsertEvent  = `INSERT INTO contact_events (id, title, target, description, caller_address, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	sqliteListEvents   = `SELECT id, title, target, description, caller_address, created_at FROM contact_events ORDER BY created_at DESC, seq DESC LIMIT ?`
	sqliteListByTarget = `SELECT id, title, target, description, caller_address, created_at FROM contact_events WHERE target = ? ORDER BY created_at DESC, seq DESC LIMIT ?`
	sqliteInsertLedger = `INSERT INTO rate_limits (caller_address, created_at) VALUES (?, ?)`
	sqliteCountLedger  = `SELECT COUNT(*) FROM rate_limits WHERE caller_address = ? AND created_at >= ?`
	sqlitePruneLedger  = `DELETE FROM rate_limits WHERE created_at < ?`
)

// SQLiteStorage implements the Storage interface on a SQLite database file
// through database/sql and the pure-Go modernc driver.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens the database, verifies the connection and creates
// the schema if needed.
func NewSQLiteStorage(config Config) (*SQLiteStorage, error) {
	if config.ConnectionString == "" {
		return nil, fmt.Errorf("connection string is required for SQLite storage")
	}

	db, err := sql.Open("sqlite", config.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows one writer at a time; a single connection turns lock
	// contention into queueing instead of SQLITE_BUSY errors.
	db.SetMaxOpenConns(1)
	if config.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(config.ConnMaxIdleTime)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	storage := NewSQLiteStorageFromDB(db)
	if err := storage.ensureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return storage, nil
}

// NewSQLiteStorageFromDB wraps an already-open handle without touching the schema.
func NewSQLiteStorageFromDB(db *sql.DB) *SQLiteStorage {
	return &SQLiteStorage{db: db}
}

func (ss *SQLiteStorage) ensureSchema(ctx context.Context) error {
	for _, stmt := range sqliteSchema {
		if _, err := ss.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// InsertEvent appends a single event
func (ss *SQLiteStorage) InsertEvent(ctx context.Context, event *models.ContactEvent) error {
	if err := validateEvent(event); err != nil {
		return err
	}

	_, err := ss.db.ExecContext(ctx, sqliteInsertEvent,
		event.ID, event.Title, event.Target, event.Description, event.CallerAddress, toUnixNanos(event.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert event %s: %w", event.ID, err)
	}
	return nil
}

// ListEvents returns the most recent events matching the filter
func (ss *SQLiteStorage) ListEvents(ctx context.Context, filter EventFilter) ([]*models.ContactEvent, error) {
	if filter.Limit <= 0 {
		return []*models.ContactEvent{}, nil
	}

	var (
		rows *sql.Rows
		err  error
	)
	if filter.Target != "" {
		rows, err = ss.db.QueryContext(ctx, sqliteListByTarget, filter.Target, filter.Limit)
	} else {
		rows, err = ss.db.QueryContext(ctx, sqliteListEvents, filter.Limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	events := make([]*models.ContactEvent, 0, filter.Limit)
	for rows.Next() {
		var (
			event     models.ContactEvent
			createdAt int64
		)
		if err := rows.Scan(&event.ID, &event.Title, &event.Target, &event.Description, &event.CallerAddress, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		event.CreatedAt = fromUnixNanos(createdAt)
		events = append(events, &event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}

	return events, nil
}

// InsertRateLimitRecord appends one admission record
func (ss *SQLiteStorage) InsertRateLimitRecord(ctx context.Context, record models.RateLimitRecord) error {
	if _, err := ss.db.ExecContext(ctx, sqliteInsertLedger, record.CallerAddress, toUnixNanos(record.CreatedAt)); err != nil {
		return fmt.Errorf("failed to insert rate limit record: %w", err)
	}
	return nil
}

// CountRateLimitRecords counts admissions at or after since
func (ss *SQLiteStorage) CountRateLimitRecords(ctx context.Context, callerAddress string, since time.Time) (int, error) {
	var count int
	if err := ss.db.QueryRowContext(ctx, sqliteCountLedger, callerAddress, toUnixNanos(since)).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count rate limit records: %w", err)
	}
	return count, nil
}

// PruneRateLimitRecords removes admissions older than before
func (ss *SQLiteStorage) PruneRateLimitRecords(ctx context.Context, before time.Time) (int64, error) {
	result, err := ss.db.ExecContext(ctx, sqlitePruneLedger, toUnixNanos(before))
	if err != nil {
		return 0, fmt.Errorf("failed to prune rate limit records: %w", err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read pruned row count: %w", err)
	}
	return removed, nil
}

// Ping checks the database connection
func (ss *SQLiteStorage) Ping(ctx context.Context) error {
	return ss.db.PingContext(ctx)
}

// Close closes the storage connection
func (ss *SQLiteStorage) Close() error {
	return ss.db.Close()
}
