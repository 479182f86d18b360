package storage

import (
	"fmt"

	"authorities/internal/models"
)

// Factory provides a centralized way to create storage instances based on configuration.
// This allows for easy extensibility and provider swapping without code changes.
type Factory struct{}

// NewFactory creates a new storage factory
func NewFactory() *Factory {
	return &Factory{}
}

// Create instantiates a storage provider based on the provided configuration.
// Supported providers:
//   - json: JSON file-based storage (thread-safe with caching)
//   - memory: In-memory storage (for testing/development)
//   - postgres: PostgreSQL database storage
//   - sqlite: SQLite database storage (lightweight database)
//
// When config.Ledger.Type is redis the rate-limit ledger is served by Redis
// and only events stay in the primary provider.
func (f *Factory) Create(config models.StorageConfig) (Storage, error) {
	if err := f.ValidateConfig(config); err != nil {
		return nil, err
	}

	primary, err := f.createPrimary(config)
	if err != nil {
		return nil, err
	}

	if config.Ledger.Type != models.LedgerTypeRedis {
		return primary, nil
	}

	ledger, err := NewRedisLedger(RedisConfig{
		Addr:      config.Ledger.Redis.Addr,
		Password:  config.Ledger.Redis.Password,
		DB:        config.Ledger.Redis.DB,
		PoolSize:  config.Ledger.Redis.PoolSize,
		KeyPrefix: config.Ledger.Redis.KeyPrefix,
	})
	if err != nil {
		primary.Close()
		return nil, fmt.Errorf("failed to create redis ledger: %w", err)
	}

	return NewSplitStorage(primary, ledger), nil
}

func (f *Factory) createPrimary(config models.StorageConfig) (Storage, error) {
	// Convert models.StorageConfig to internal Config format
	storageConfig := Config{
		Type:             config.Type,
		Path:             config.Path,
		ConnectionString: config.Database.DSN,
		CacheTTL:         config.CacheTTL,
		MaxOpenConns:     config.Database.MaxOpenConns,
		MaxIdleConns:     config.Database.MaxIdleConns,
		ConnMaxLifetime:  config.Database.ConnMaxLifetime,
		ConnMaxIdleTime:  config.Database.ConnMaxIdleTime,
	}

	switch config.Type {
	case models.StorageTypeJSON:
		return NewJSONStorage(storageConfig)
	case models.StorageTypeMemory:
		return NewMemoryStorage(storageConfig)
	case models.StorageTypePostgres:
		return NewPostgresStorage(storageConfig)
	case models.StorageTypeSQLite:
		return NewSQLiteStorage(storageConfig)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", config.Type)
	}
}

// GetSupportedProviders returns a list of all supported storage provider types
func (f *Factory) GetSupportedProviders() []string {
	return []string{models.StorageTypeJSON, models.StorageTypeMemory, models.StorageTypePostgres, models.StorageTypeSQLite}
}

// ValidateConfig validates that a storage configuration is valid for its type
func (f *Factory) ValidateConfig(config models.StorageConfig) error {
	switch config.Type {
	case models.StorageTypeJSON:
		if config.Path == "" {
			return fmt.Errorf("path is required for JSON storage")
		}
	case models.StorageTypeMemory:
		// Memory storage requires no additional configuration
	case models.StorageTypePostgres, models.StorageTypeSQLite:
		if config.Database.DSN == "" {
			return fmt.Errorf("database DSN is required for %s storage", config.Type)
		}
	default:
		return fmt.Errorf("unsupported storage type: %s", config.Type)
	}

	switch config.Ledger.Type {
	case models.LedgerTypePrimary:
	case models.LedgerTypeRedis:
		if config.Ledger.Redis.Addr == "" {
			return fmt.Errorf("redis address is required for redis ledger")
		}
	default:
		return fmt.Errorf("unsupported ledger type: %s", config.Ledger.Type)
	}
	return nil
}
