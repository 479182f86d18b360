package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"authorities/internal/models"
)

// defaultJSONCacheTTL bounds how long the in-memory copy is trusted before
// the file's modification time is checked again.
const defaultJSONCacheTTL = 5 * time.Second

// JSONStorage implements the Storage interface using a single JSON file.
// It keeps an in-memory copy of the file. Reads trust that copy for up to the
// cache TTL; writes always check the file first and re-read it when another
// process (such as contactctl prune) has replaced it, so they never write
// back stale data.
type JSONStorage struct {
	filePath    string
	cacheTTL    time.Duration
	mu          sync.RWMutex
	data        *JSONData
	fileInfo    os.FileInfo
	cacheExpiry time.Time
}

// JSONData represents the structure of data stored in JSON format
type JSONData struct {
	Events      []*models.ContactEvent   `json:"contact_events"`
	RateLimits  []models.RateLimitRecord `json:"rate_limits"`
	LastUpdated time.Time                `json:"last_updated"`
}

// NewJSONStorage creates a new JSON-based storage instance
func NewJSONStorage(config Config) (*JSONStorage, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("path is required for JSON storage")
	}

	cacheTTL := defaultJSONCacheTTL
	if config.CacheTTL > 0 {
		cacheTTL = config.CacheTTL
	}

	storage := &JSONStorage{
		filePath: config.Path,
		cacheTTL: cacheTTL,
	}

	// Initialize with empty data if file doesn't exist
	if err := storage.ensureFileExists(); err != nil {
		return nil, fmt.Errorf("failed to ensure file exists: %w", err)
	}

	// Load initial data
	if err := storage.loadData(); err != nil {
		return nil, fmt.Errorf("failed to load initial data: %w", err)
	}

	return storage, nil
}

// ensureFileExists creates the JSON file with empty data if it doesn't exist
func (j *JSONStorage) ensureFileExists() error {
	if _, err := os.Stat(j.filePath); os.IsNotExist(err) {
		// Create directory if it doesn't exist
		if err := os.MkdirAll(filepath.Dir(j.filePath), 0700); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}

		emptyData := &JSONData{
			Events:     []*models.ContactEvent{},
			RateLimits: []models.RateLimitRecord{},
		}

		return j.saveData(emptyData)
	}
	return nil
}

// loadData refreshes the in-memory copy for readers once the cache expires.
// It uses double-checked locking: a fast read-lock path for cache hits,
// and a write-lock slow path with re-validation to prevent TOCTOU races.
func (j *JSONStorage) loadData() error {
	// Fast path: cache is still valid.
	j.mu.RLock()
	if j.data != nil && time.Now().Before(j.cacheExpiry) {
		j.mu.RUnlock()
		return nil
	}
	j.mu.RUnlock()

	// Slow path: acquire write lock and re-validate before doing any I/O.
	j.mu.Lock()
	defer j.mu.Unlock()

	// Another goroutine may have loaded while we waited for the write lock.
	if j.data != nil && time.Now().Before(j.cacheExpiry) {
		return nil
	}
	return j.syncLocked()
}

// syncLocked re-reads the file unless it is the one this instance last
// loaded or wrote. The caller must hold j.mu for writing.
func (j *JSONStorage) syncLocked() error {
	info, err := os.Stat(j.filePath)
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}

	if j.data != nil && j.unchanged(info) {
		j.cacheExpiry = time.Now().Add(j.cacheTTL)
		return nil
	}

	fileData, err := os.ReadFile(j.filePath)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	var data JSONData
	if err := json.Unmarshal(fileData, &data); err != nil {
		return fmt.Errorf("failed to unmarshal JSON: %w", err)
	}

	j.data = &data
	j.fileInfo = info
	j.cacheExpiry = time.Now().Add(j.cacheTTL)
	return nil
}

// unchanged reports whether info describes the file as last seen. Every save
// renames a fresh temp file into place, so a write from another process
// shows up as a different file even within one mtime tick.
func (j *JSONStorage) unchanged(info os.FileInfo) bool {
	return j.fileInfo != nil &&
		os.SameFile(info, j.fileInfo) &&
		info.ModTime().Equal(j.fileInfo.ModTime()) &&
		info.Size() == j.fileInfo.Size()
}

// saveData writes data to a temporary file and renames it over the target,
// so concurrent readers in other processes never see a partial document.
func (j *JSONStorage) saveData(data *JSONData) error {
	data.LastUpdated = time.Now().UTC()

	fileData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(j.filePath), ".contact-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(fileData); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmpPath, j.filePath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace file: %w", err)
	}

	if info, err := os.Stat(j.filePath); err == nil {
		j.fileInfo = info
	}
	return nil
}

// InsertEvent appends an event and persists the file
func (j *JSONStorage) InsertEvent(ctx context.Context, event *models.ContactEvent) error {
	if err := validateEvent(event); err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.syncLocked(); err != nil {
		return err
	}

	j.data.Events = append(j.data.Events, event.Clone())
	if err := j.saveData(j.data); err != nil {
		// Keep memory consistent with the file.
		j.data.Events = j.data.Events[:len(j.data.Events)-1]
		return err
	}
	return nil
}

// ListEvents returns the most recent events matching the filter
func (j *JSONStorage) ListEvents(ctx context.Context, filter EventFilter) ([]*models.ContactEvent, error) {
	if err := j.loadData(); err != nil {
		return nil, err
	}

	j.mu.RLock()
	defer j.mu.RUnlock()

	return selectRecent(j.data.Events, filter), nil
}

// InsertRateLimitRecord appends an admission and persists the file
func (j *JSONStorage) InsertRateLimitRecord(ctx context.Context, record models.RateLimitRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.syncLocked(); err != nil {
		return err
	}

	j.data.RateLimits = append(j.data.RateLimits, record)
	if err := j.saveData(j.data); err != nil {
		j.data.RateLimits = j.data.RateLimits[:len(j.data.RateLimits)-1]
		return err
	}
	return nil
}

// CountRateLimitRecords counts admissions at or after since
func (j *JSONStorage) CountRateLimitRecords(ctx context.Context, callerAddress string, since time.Time) (int, error) {
	if err := j.loadData(); err != nil {
		return 0, err
	}

	j.mu.RLock()
	defer j.mu.RUnlock()

	count := 0
	for _, record := range j.data.RateLimits {
		if record.CallerAddress == callerAddress && !record.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

// PruneRateLimitRecords removes admissions older than before
func (j *JSONStorage) PruneRateLimitRecords(ctx context.Context, before time.Time) (int64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.syncLocked(); err != nil {
		return 0, err
	}

	kept := make([]models.RateLimitRecord, 0, len(j.data.RateLimits))
	for _, record := range j.data.RateLimits {
		if !record.CreatedAt.Before(before) {
			kept = append(kept, record)
		}
	}

	removed := int64(len(j.data.RateLimits) - len(kept))
	if removed == 0 {
		return 0, nil
	}

	previous := j.data.RateLimits
	j.data.RateLimits = kept
	if err := j.saveData(j.data); err != nil {
		j.data.RateLimits = previous
		return 0, err
	}
	return removed, nil
}

// Ping checks that the backing file is still readable
func (j *JSONStorage) Ping(_ context.Context) error {
	if _, err := os.Stat(j.filePath); err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}
	return nil
}

// Close is a no-op; every write is already on disk
func (j *JSONStorage) Close() error {
	return nil
}
