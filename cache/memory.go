package cache

import (
	stdSync "sync"
)

// MemoryMedium is an in-memory Medium with a byte quota. It mirrors the
// quota behavior of origin-scoped browser storage: a write that would push
// total usage past the quota fails with ErrQuotaExceeded and leaves the
// existing entries untouched.
type MemoryMedium struct {
	mu    stdSync.RWMutex
	data  map[string][]byte
	used  int
	quota int
}

// NewMemoryMedium creates a MemoryMedium with the given quota in bytes.
// A quota of zero or less means unbounded.
func NewMemoryMedium(quota int) *MemoryMedium {
	return &MemoryMedium{
		data:  make(map[string][]byte),
		quota: quota,
	}
}

func (m *MemoryMedium) Get(key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, true, nil
}

func (m *MemoryMedium) Set(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.used - len(m.data[key]) + len(value)
	if m.quota > 0 && next > m.quota {
		return ErrQuotaExceeded
	}

	stored := make([]byte, len(value))
	copy(stored, value)
	m.data[key] = stored
	m.used = next
	return nil
}

func (m *MemoryMedium) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.used -= len(m.data[key])
	delete(m.data, key)
	return nil
}

// Used returns the current byte usage.
func (m *MemoryMedium) Used() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.used
}
