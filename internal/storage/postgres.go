package storage

import (
	"context"
	"fmt"
	"time"

	"authorities/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS contact_events (
	seq BIGSERIAL PRIMARY KEY,
	id TEXT NOT NULL UNIQUE,
	title TEXT NOT NULL,
	target TEXT NOT NULL,
	description TEXT NOT NULL,
	caller_address TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_contact_events_created_at ON contact_events (created_at DESC, seq DESC);
CREATE INDEX IF NOT EXISTS idx_contact_events_target ON contact_events (target, created_at DESC);
CREATE TABLE IF NOT EXISTS rate_limits (
	caller_address TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_rate_limits_caller ON rate_limits (caller_address, created_at);
`

const (
	pgInsertEvent = `INSERT INTO contact_events (id, title, target, description, caller_address, created_at) VALUES ($1, $2, $3, $4, $5, $6)`
	// An empty $1 disables the target filter.
	pgListEvents   = `SELECT id, title, target, description, caller_address, created_at FROM contact_events WHERE ($1 = '' OR target = $1) ORDER BY created_at DESC, seq DESC LIMIT $2`
	pgInsertLedger = `INSERT INTO rate_limits (caller_address, created_at) VALUES ($1, $2)`
	pgCountLedger  = `SELECT COUNT(*) FROM rate_limits WHERE caller_address = $1 AND created_at >= $2`
	pgPruneLedger  = `DELETE FROM rate_limits WHERE created_at < $1`
)

// PostgresStorage implements the Storage interface using PostgreSQL through a pgx pool.
type PostgresStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresStorage creates a new PostgreSQL storage instance and ensures the schema exists.
func NewPostgresStorage(config Config) (*PostgresStorage, error) {
	if config.ConnectionString == "" {
		return nil, fmt.Errorf("connection string is required for PostgreSQL storage")
	}

	poolConfig, err := pgxpool.ParseConfig(config.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	if config.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(min(config.MaxIdleConns, int(poolConfig.MaxConns)))
	}
	if config.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = config.ConnMaxLifetime
	}
	if config.ConnMaxIdleTime > 0 {
		poolConfig.MaxConnIdleTime = config.ConnMaxIdleTime
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(context.Background(), postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &PostgresStorage{pool: pool}, nil
}

// InsertEvent appends a single event.
func (ps *PostgresStorage) InsertEvent(ctx context.Context, event *models.ContactEvent) error {
	if err := validateEvent(event); err != nil {
		return err
	}

	_, err := ps.pool.Exec(ctx, pgInsertEvent,
		event.ID, event.Title, event.Target, event.Description, event.CallerAddress,
		timeToPgTimestamptz(event.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert event %s: %w", event.ID, err)
	}
	return nil
}

// ListEvents returns the most recent events matching the filter.
func (ps *PostgresStorage) ListEvents(ctx context.Context, filter EventFilter) ([]*models.ContactEvent, error) {
	if filter.Limit <= 0 {
		return []*models.ContactEvent{}, nil
	}

	rows, err := ps.pool.Query(ctx, pgListEvents, filter.Target, filter.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.ContactEvent, error) {
		var (
			event     models.ContactEvent
			createdAt pgtype.Timestamptz
		)
		if err := row.Scan(&event.ID, &event.Title, &event.Target, &event.Description, &event.CallerAddress, &createdAt); err != nil {
			return nil, err
		}
		event.CreatedAt = pgTimestamptzToTime(createdAt)
		return &event, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan events: %w", err)
	}

	return events, nil
}

// InsertRateLimitRecord appends one admission record.
func (ps *PostgresStorage) InsertRateLimitRecord(ctx context.Context, record models.RateLimitRecord) error {
	if _, err := ps.pool.Exec(ctx, pgInsertLedger, record.CallerAddress, timeToPgTimestamptz(record.CreatedAt)); err != nil {
		return fmt.Errorf("failed to insert rate limit record: %w", err)
	}
	return nil
}

// CountRateLimitRecords counts admissions at or after since.
func (ps *PostgresStorage) CountRateLimitRecords(ctx context.Context, callerAddress string, since time.Time) (int, error) {
	var count int64
	if err := ps.pool.QueryRow(ctx, pgCountLedger, callerAddress, timeToPgTimestamptz(since)).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count rate limit records: %w", err)
	}
	return int(count), nil
}

// PruneRateLimitRecords removes admissions older than before.
func (ps *PostgresStorage) PruneRateLimitRecords(ctx context.Context, before time.Time) (int64, error) {
	tag, err := ps.pool.Exec(ctx, pgPruneLedger, timeToPgTimestamptz(before))
	if err != nil {
		return 0, fmt.Errorf("failed to prune rate limit records: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Ping checks the database connection.
func (ps *PostgresStorage) Ping(ctx context.Context) error {
	return ps.pool.Ping(ctx)
}

// Close closes the connection pool.
func (ps *PostgresStorage) Close() error {
	ps.pool.Close()
	return nil
}

// pgtype helpers

func timeToPgTimestamptz(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{Valid: false}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func pgTimestamptzToTime(t pgtype.Timestamptz) time.Time {
	if !t.Valid {
		return time.Time{}
	}
	return t.Time.UTC()
}
