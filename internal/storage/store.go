// Package storage provides the client-side cache: a JSON key/value store
// persisted in SQLite with size-quota enforcement and per-key write
// debouncing. Persistence is best-effort by contract; every failure degrades
// to a false return rather than an error the pipeline would have to handle.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
)

// Defaults for quota and debounce delay.
const (
	DefaultQuotaBytes = 10 * 1024 * 1024
	DefaultDebounce   = 800 * time.Millisecond
)

// Truncation ratios applied to oversized array values: quotaKeepRatio when
// the serialized value exceeds the quota up front, retryKeepRatio on the
// single retry after a failed write.
const (
	quotaKeepRatio = 0.7
	retryKeepRatio = 0.5
)

// Store is the debounced, quota-capped cache. One debounce timer exists per
// key; a new write to the same key cancels and replaces the pending one, so
// only the most recent value is persisted.
type Store struct {
	db       *sqlx.DB
	log      *slog.Logger
	quota    int
	debounce time.Duration

	mu      sync.Mutex
	timers  map[string]*time.Timer
	pending map[string]any
}

// NewStore creates a Store over an open cache database. Non-positive quota
// or debounce fall back to the defaults.
func NewStore(db *sqlx.DB, log *slog.Logger, quotaBytes int, debounce time.Duration) *Store {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if quotaBytes <= 0 {
		quotaBytes = DefaultQuotaBytes
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Store{
		db:       db,
		log:      log.With("component", "storage"),
		quota:    quotaBytes,
		debounce: debounce,
		timers:   make(map[string]*time.Timer),
		pending:  make(map[string]any),
	}
}

// GetJSON reads the value stored under key into dest. It returns false on a
// missing key, malformed stored value, or storage failure, leaving dest
// untouched so the caller's default survives.
func (s *Store) GetJSON(ctx context.Context, key string, dest any) bool {
	var raw string
	err := s.db.GetContext(ctx, &raw, `SELECT value FROM kv_cache WHERE key = ?`, key)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false
	case err != nil:
		s.log.WarnContext(ctx, "Failed to read cache key", "key", key, "error", err)
		return false
	}

	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		s.log.WarnContext(ctx, "Malformed cache value, using default", "key", key, "error", err)
		return false
	}
	return true
}

// truncateArray returns the most recent keep-ratio share of a serialized
// JSON array, or false if payload is not an array.
func truncateArray(payload []byte, keepRatio float64) ([]byte, bool) {
	var items []json.RawMessage
	if err := json.Unmarshal(payload, &items); err != nil {
		return nil, false
	}

	keep := int(float64(len(items)) * keepRatio)
	truncated, err := json.Marshal(items[len(items)-keep:])
	if err != nil {
		return nil, false
	}
	return truncated, true
}

func (s *Store) write(ctx context.Context, key string, payload []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv_cache (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, string(payload), time.Now().UTC())
	return err
}

// SetSafe serializes value and writes it under key, reporting success.
// Values whose serialized form exceeds the quota are truncated to the most
// recent ~70% if they are arrays (still a success) and refused otherwise.
// A write that fails outright is retried once with the most recent ~50%
// before giving up.
func (s *Store) SetSafe(ctx context.Context, key string, value any) bool {
	payload, err := json.Marshal(value)
	if err != nil {
		s.log.WarnContext(ctx, "Failed to serialize cache value", "key", key, "error", err)
		return false
	}

	if len(payload) > s.quota {
		truncated, ok := truncateArray(payload, quotaKeepRatio)
		if !ok {
			s.log.WarnContext(ctx, "Value exceeds quota and is not an array, refusing write",
				"key", key, "size", len(payload), "quota", s.quota)
			return false
		}
		s.log.WarnContext(ctx, "Value exceeds quota, truncating",
			"key", key, "size", len(payload), "truncated_size", len(truncated))
		payload = truncated
	}

	if err := s.write(ctx, key, payload); err == nil {
		return true
	} else if truncated, ok := truncateArray(payload, retryKeepRatio); ok {
		s.log.WarnContext(ctx, "Cache write failed, retrying with truncated value", "key", key, "error", err)
		if retryErr := s.write(ctx, key, truncated); retryErr == nil {
			return true
		}
	}

	s.log.WarnContext(ctx, "Cache write failed", "key", key)
	return false
}

// SetDebounced schedules a write of value under key, coalescing calls within
// the debounce window into a single write of the latest value. One timer
// exists per key; each call cancels and replaces the previous one.
func (s *Store) SetDebounced(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if timer, ok := s.timers[key]; ok {
		timer.Stop()
	}
	s.pending[key] = value

	s.timers[key] = time.AfterFunc(s.debounce, func() {
		s.mu.Lock()
		value, ok := s.pending[key]
		delete(s.pending, key)
		delete(s.timers, key)
		s.mu.Unlock()

		if ok {
			s.SetSafe(context.Background(), key, value)
		}
	})
}

// Flush writes every pending debounced value immediately. Called on
// shutdown so a write scheduled just before exit is not lost.
func (s *Store) Flush(ctx context.Context) {
	s.mu.Lock()
	pending := make(map[string]any, len(s.pending))
	for key, value := range s.pending {
		pending[key] = value
		delete(s.pending, key)
	}
	for key, timer := range s.timers {
		timer.Stop()
		delete(s.timers, key)
	}
	s.mu.Unlock()

	for key, value := range pending {
		s.SetSafe(ctx, key, value)
	}
}

// Remove deletes the value stored under key, if any.
func (s *Store) Remove(ctx context.Context, key string) {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv_cache WHERE key = ?`, key); err != nil {
		s.log.WarnContext(ctx, "Failed to remove cache key", "key", key, "error", err)
	}
}

// ClearNamespace deletes every key starting with prefix.
func (s *Store) ClearNamespace(ctx context.Context, prefix string) {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv_cache WHERE key LIKE ? || '%'`, prefix); err != nil {
		s.log.WarnContext(ctx, "Failed to clear cache namespace", "prefix", prefix, "error", err)
	}
}

// TruncateTail keeps the most recent limit entries of items, dropping the
// oldest first. It returns items unchanged when already within the cap.
func TruncateTail[T any](items []T, limit int) []T {
	if limit <= 0 || len(items) <= limit {
		return items
	}
	return items[len(items)-limit:]
}

// Maintain prunes the persisted message history to maxStored entries and
// compacts the database file. Run periodically from the scheduler.
func (s *Store) Maintain(ctx context.Context, maxStored int) error {
	var history []json.RawMessage
	if s.GetJSON(ctx, KeyMessages, &history) && len(history) > maxStored {
		pruned := TruncateTail(history, maxStored)
		if !s.SetSafe(ctx, KeyMessages, pruned) {
			s.log.WarnContext(ctx, "Failed to prune message history", "count", len(history), "cap", maxStored)
		} else {
			s.log.InfoContext(ctx, "Pruned message history", "before", len(history), "after", len(pruned))
		}
	}

	if _, err := s.db.ExecContext(ctx, "VACUUM;"); err != nil {
		return err
	}
	return nil
}
