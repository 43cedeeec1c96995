// Package cache provides the local offline cache for in-progress quotation
// documents. The cache is an optimization, never a source of truth: every
// failure mode degrades to "proceed without cache" rather than surfacing an
// error to the caller.
package cache

import (
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/c0deZ3R0/go-quote-sync/logging"
	"github.com/c0deZ3R0/go-quote-sync/metrics"
)

// SchemaVersion identifies the entry layout the running code understands.
// Entries written under a different schema version are treated as absent,
// never partially trusted.
const SchemaVersion = "2.1"

// Key is one of the fixed logical domain names entries are stored under.
type Key string

const (
	KeySnapshots   Key = "snapshots"
	KeyQuotations  Key = "quotations"
	KeyPreferences Key = "preferences"
	KeyConfig      Key = "config"
	KeyMetadata    Key = "metadata"
)

// KnownKeys lists every logical key the store manages. Quota eviction scans
// all of them to find the globally-oldest entry.
var KnownKeys = []Key{KeySnapshots, KeyQuotations, KeyPreferences, KeyConfig, KeyMetadata}

// ErrQuotaExceeded is returned by a Medium when a write does not fit.
var ErrQuotaExceeded = errors.New("cache: storage quota exceeded")

// Medium is the origin-scoped key/value byte store entries are written to.
// Implementations must be safe for concurrent use.
type Medium interface {
	// Get returns the stored bytes for key, and whether the key exists
	Get(key string) ([]byte, bool, error)

	// Set stores value under key, returning ErrQuotaExceeded when it does not fit
	Set(key string, value []byte) error

	// Delete removes key; deleting an absent key is not an error
	Delete(key string) error
}

// Entry wraps a cached payload with the bookkeeping needed to decide whether
// it can still be trusted on read.
type Entry struct {
	Data          json.RawMessage `json:"data"`
	Timestamp     time.Time       `json:"timestamp"`
	SchemaVersion string          `json:"schemaVersion"`
}

// Store is the local cache of versioned, timestamped blobs.
type Store struct {
	medium  Medium
	logger  *logging.Logger
	metrics metrics.Collector

	// now is the clock, injectable for tests
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the store's clock.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithMetrics sets the metrics collector.
func WithMetrics(c metrics.Collector) Option {
	return func(s *Store) { s.metrics = c }
}

// New creates a Store over the given medium.
func New(medium Medium, opts ...Option) *Store {
	s := &Store{
		medium:  medium,
		logger:  logging.WithComponent(logging.Component("cache")),
		metrics: &metrics.NoOpCollector{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Set wraps data with the current timestamp and schema version and writes it
// under key. On a quota failure it evicts the single globally-oldest entry and
// retries exactly once. It returns false when the write ultimately failed;
// it never returns an error and never blocks on network I/O.
func (s *Store) Set(key Key, data interface{}) bool {
	payload, err := json.Marshal(data)
	if err != nil {
		s.logger.Warn("cache write skipped: payload not serializable",
			slog.String("key", string(key)), slog.String("error", err.Error()))
		return false
	}

	entry := Entry{
		Data:          payload,
		Timestamp:     s.now(),
		SchemaVersion: SchemaVersion,
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return false
	}

	err = s.medium.Set(string(key), raw)
	if errors.Is(err, ErrQuotaExceeded) {
		if evicted, ok := s.evictOldest(); ok {
			s.metrics.RecordCacheEviction(string(evicted))
			s.logger.Warn("cache quota exceeded, evicted oldest entry",
				slog.String("evicted_key", string(evicted)),
				slog.String("key", string(key)))
			err = s.medium.Set(string(key), raw)
		}
	}
	if err != nil {
		// Offline support degrades silently; the caller proceeds without cache.
		s.logger.Warn("cache write failed",
			slog.String("key", string(key)), slog.String("error", err.Error()))
		return false
	}
	return true
}

// GetRaw returns the cached payload for key, or nil when the key is absent,
// was written under a different schema version, or is older than maxAge.
// A maxAge of zero or less disables the freshness check.
func (s *Store) GetRaw(key Key, maxAge time.Duration) (json.RawMessage, bool) {
	raw, exists, err := s.medium.Get(string(key))
	if err != nil {
		s.metrics.RecordCacheMiss(string(key), "medium_error")
		s.logger.Warn("cache read failed",
			slog.String("key", string(key)), slog.String("error", err.Error()))
		return nil, false
	}
	if !exists {
		s.metrics.RecordCacheMiss(string(key), "absent")
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		s.metrics.RecordCacheMiss(string(key), "corrupt")
		s.Remove(key)
		return nil, false
	}

	if entry.SchemaVersion != SchemaVersion {
		s.metrics.RecordCacheMiss(string(key), "schema_mismatch")
		s.Remove(key)
		return nil, false
	}

	if maxAge > 0 && s.now().Sub(entry.Timestamp) > maxAge {
		s.metrics.RecordCacheMiss(string(key), "stale")
		return nil, false
	}

	s.metrics.RecordCacheHit(string(key))
	return entry.Data, true
}

// EntryTimestamp returns the write time of the entry under key, regardless of
// schema version or freshness. It reports false when no physical entry exists.
func (s *Store) EntryTimestamp(key Key) (time.Time, bool) {
	raw, exists, err := s.medium.Get(string(key))
	if err != nil || !exists {
		return time.Time{}, false
	}
	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return time.Time{}, false
	}
	return entry.Timestamp, true
}

// Remove deletes the entry under key. Best-effort, idempotent.
func (s *Store) Remove(key Key) {
	if err := s.medium.Delete(string(key)); err != nil {
		s.logger.Warn("cache remove failed",
			slog.String("key", string(key)), slog.String("error", err.Error()))
	}
}

// ClearAll deletes every known logical key. Best-effort, idempotent.
func (s *Store) ClearAll() {
	for _, key := range KnownKeys {
		s.Remove(key)
	}
}

// evictOldest deletes the entry with the oldest timestamp across all known
// logical keys. It reports which key was evicted, or false when nothing was
// available to evict.
func (s *Store) evictOldest() (Key, bool) {
	var (
		oldestKey  Key
		oldestTime time.Time
		found      bool
	)
	for _, key := range KnownKeys {
		ts, ok := s.EntryTimestamp(key)
		if !ok {
			continue
		}
		if !found || ts.Before(oldestTime) {
			oldestKey = key
			oldestTime = ts
			found = true
		}
	}
	if !found {
		return "", false
	}
	if err := s.medium.Delete(string(oldestKey)); err != nil {
		return "", false
	}
	return oldestKey, true
}

// Get reads the entry under key into a value of type T. It reports false when
// the entry is absent, stale, schema-mismatched, or not decodable as T.
func Get[T any](s *Store, key Key, maxAge time.Duration) (T, bool) {
	var zero T
	raw, ok := s.GetRaw(key, maxAge)
	if !ok {
		return zero, false
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return zero, false
	}
	return out, true
}
