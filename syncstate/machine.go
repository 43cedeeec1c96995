// Package syncstate tracks the per-document synchronization state as a pure
// reducer over explicit events. Connectivity is tracked orthogonally and never
// transitions the state by itself; it only gates whether a save may start.
package syncstate

import (
	"log/slog"
	stdSync "sync"
	"time"

	"github.com/c0deZ3R0/go-quote-sync/cache"
	"github.com/c0deZ3R0/go-quote-sync/logging"
	"github.com/c0deZ3R0/go-quote-sync/metrics"
)

// Status is the synchronization state of a single document.
type Status string

const (
	StatusSynced   Status = "synced"
	StatusPending  Status = "pending"
	StatusSyncing  Status = "syncing"
	StatusConflict Status = "conflict"
	StatusError    Status = "error"
)

// severity orders statuses for the UI indicator; higher outranks lower.
var severity = map[Status]int{
	StatusSynced:   0,
	StatusPending:  1,
	StatusSyncing:  2,
	StatusError:    3,
	StatusConflict: 4,
}

// Outranks reports whether s is more severe than other.
func (s Status) Outranks(other Status) bool {
	return severity[s] > severity[other]
}

// Event is an explicit input to the reducer.
type Event string

const (
	// EventEditCommitted fires when a local edit is committed
	EventEditCommitted Event = "edit_committed"

	// EventSaveInitiated fires when the user starts a save cycle
	EventSaveInitiated Event = "save_initiated"

	// EventServerAcked fires when the server acknowledges a save
	EventServerAcked Event = "server_acked"

	// EventSaveFailed fires on a network or server failure during a save
	EventSaveFailed Event = "save_failed"

	// EventRetry fires when the caller retries a failed save
	EventRetry Event = "retry"

	// EventDivergenceFound fires when reconciliation detects divergence
	EventDivergenceFound Event = "divergence_found"
)

// State is the full per-document sync state.
type State struct {
	Status       Status    `json:"status"`
	Dirty        bool      `json:"dirty"`
	LastSyncedAt time.Time `json:"lastSyncedAt"`
}

// Initial returns the state a freshly loaded document starts in.
func Initial() State {
	return State{Status: StatusSynced}
}

// Reduce applies a single event to a state and returns the next state.
// It reports false when the event is not permitted in the current state, in
// which case the returned state equals the input. online gates only the
// pending-to-syncing transition. Reduce is pure: no I/O, no clock access.
func Reduce(s State, ev Event, online bool, now time.Time) (State, bool) {
	switch ev {
	case EventEditCommitted:
		s.Status = StatusPending
		s.Dirty = true
		return s, true

	case EventSaveInitiated:
		if s.Status != StatusPending || !online {
			return s, false
		}
		s.Status = StatusSyncing
		return s, true

	case EventServerAcked:
		if s.Status != StatusSyncing {
			return s, false
		}
		s.Status = StatusSynced
		s.Dirty = false
		s.LastSyncedAt = now
		return s, true

	case EventSaveFailed:
		if s.Status != StatusSyncing {
			return s, false
		}
		// The edit is not lost: dirty stays true.
		s.Status = StatusError
		return s, true

	case EventRetry:
		if s.Status != StatusError {
			return s, false
		}
		s.Status = StatusSyncing
		return s, true

	case EventDivergenceFound:
		s.Status = StatusConflict
		return s, true
	}
	return s, false
}

// Machine holds per-document states, persists them through the local cache,
// and tracks connectivity. All methods are safe for concurrent use.
type Machine struct {
	mu      stdSync.Mutex
	states  map[string]State
	online  bool
	cache   *cache.Store
	logger  *logging.Logger
	metrics metrics.Collector
	now     func() time.Time
}

// Option configures a Machine.
type Option func(*Machine)

// WithClock overrides the machine's clock.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// WithMetrics sets the metrics collector.
func WithMetrics(c metrics.Collector) Option {
	return func(m *Machine) { m.metrics = c }
}

// NewMachine creates a Machine, restoring any states persisted in the cache so
// an interrupted session resumes with its dirty flags intact.
func NewMachine(store *cache.Store, opts ...Option) *Machine {
	m := &Machine{
		states:  make(map[string]State),
		online:  true,
		cache:   store,
		logger:  logging.WithComponent(logging.Component("syncstate")),
		metrics: &metrics.NoOpCollector{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if persisted, ok := cache.Get[map[string]State](store, cache.KeyMetadata, 0); ok {
		m.states = persisted
	}
	return m
}

// Apply feeds one event to the reducer for the given document and persists the
// result. It reports whether a transition took place.
func (m *Machine) Apply(documentID string, ev Event) (State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.states[documentID]
	if !ok {
		current = Initial()
	}

	next, transitioned := Reduce(current, ev, m.online, m.now())
	if !transitioned {
		m.logger.Debug("event not permitted in current state",
			slog.String("document_id", documentID),
			slog.String("event", string(ev)),
			slog.String("status", string(current.Status)))
		return current, false
	}

	m.states[documentID] = next
	m.metrics.RecordStateTransition(string(current.Status), string(next.Status))
	m.logger.Debug("state transition",
		slog.String("document_id", documentID),
		slog.String("event", string(ev)),
		slog.String("from", string(current.Status)),
		slog.String("to", string(next.Status)),
		slog.Bool("dirty", next.Dirty))

	m.persistLocked()
	return next, true
}

// SetOnline records connectivity and reports whether this call was the
// offline-to-online edge. The flag never transitions document states.
func (m *Machine) SetOnline(online bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	recovered := online && !m.online
	m.online = online
	return recovered
}

// Online reports the current connectivity flag.
func (m *Machine) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// State returns the current state for a document.
func (m *Machine) State(documentID string) State {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.states[documentID]; ok {
		return s
	}
	return Initial()
}

// MostSevere returns the most severe status across all tracked documents,
// which is what the sync indicator displays.
func (m *Machine) MostSevere() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	most := StatusSynced
	for _, s := range m.states {
		if s.Status.Outranks(most) {
			most = s.Status
		}
	}
	return most
}

// Forget drops the tracked state for a document, e.g. after its version was
// rolled back and the document no longer exists.
func (m *Machine) Forget(documentID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.states, documentID)
	m.persistLocked()
}

func (m *Machine) persistLocked() {
	// Persistence is best-effort: a full cache degrades to in-memory state.
	m.cache.Set(cache.KeyMetadata, m.states)
}
