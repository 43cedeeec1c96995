package cache

import (
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// BadgerConfig holds configuration for a BadgerDB-backed Medium.
type BadgerConfig struct {
	// Path is the directory for BadgerDB files.
	// Required for persistent databases. Ignored when InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence). Useful for testing.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// Quota is the soft byte budget for the cache. Writes past the budget
	// fail with ErrQuotaExceeded so the Store can evict and retry.
	// Zero means unbounded.
	Quota int64

	// GCInterval is how often to run value log garbage collection.
	// Zero disables GC.
	GCInterval time.Duration
}

// DefaultBadgerConfig returns sensible defaults for a persistent local cache.
func DefaultBadgerConfig(path string) BadgerConfig {
	return BadgerConfig{
		Path:       path,
		SyncWrites: true,
		GCInterval: 5 * time.Minute,
	}
}

// BadgerMedium is a persistent Medium backed by an embedded BadgerDB.
type BadgerMedium struct {
	db     *badger.DB
	quota  int64
	gcStop chan struct{}
}

// NewBadgerMedium opens a BadgerDB at the configured path.
func NewBadgerMedium(config BadgerConfig) (*BadgerMedium, error) {
	opts := badger.DefaultOptions(config.Path).
		WithInMemory(config.InMemory).
		WithSyncWrites(config.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	m := &BadgerMedium{
		db:     db,
		quota:  config.Quota,
		gcStop: make(chan struct{}),
	}

	if config.GCInterval > 0 && !config.InMemory {
		go m.runGC(config.GCInterval)
	}

	return m, nil
}

func (m *BadgerMedium) runGC(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			// Repeat until there is nothing left to collect.
			for m.db.RunValueLogGC(0.5) == nil {
			}
		case <-m.gcStop:
			return
		}
	}
}

func (m *BadgerMedium) Get(key string) ([]byte, bool, error) {
	var value []byte
	err := m.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (m *BadgerMedium) Set(key string, value []byte) error {
	if m.quota > 0 {
		lsm, vlog := m.db.Size()
		if lsm+vlog+int64(len(value)) > m.quota {
			return ErrQuotaExceeded
		}
	}
	return m.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}

func (m *BadgerMedium) Delete(key string) error {
	return m.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

// Close stops background GC and closes the database.
func (m *BadgerMedium) Close() error {
	close(m.gcStop)
	return m.db.Close()
}
