// Package notify broadcasts data-change notifications to independently mounted
// UI pieces through an explicit publish/subscribe channel. The broker is owned
// by a single coordinator and hands out typed subscription handles, so there is
// no ambient global listener registry to mutate.
package notify

import (
	"log/slog"
	stdSync "sync"
	"time"

	"github.com/c0deZ3R0/go-quote-sync/logging"
)

// ChangeKind identifies what happened.
type ChangeKind string

const (
	KindDocumentSaved     ChangeKind = "document_saved"
	KindLineageCreated    ChangeKind = "lineage_created"
	KindVersionCreated    ChangeKind = "version_created"
	KindVersionRolledBack ChangeKind = "version_rolled_back"
	KindConflictDetected  ChangeKind = "conflict_detected"
)

// Change is a single broadcast notification.
type Change struct {
	Kind       ChangeKind `json:"kind"`
	DocumentID string     `json:"documentId"`
	Number     string     `json:"number,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
}

// Subscription is a handle to a broker subscription. Cancel is idempotent.
type Subscription struct {
	id     uint64
	ch     chan Change
	broker *Broker
	once   stdSync.Once
}

// C returns the channel notifications arrive on. The channel is closed when
// the subscription is canceled or the broker shuts down.
func (s *Subscription) C() <-chan Change {
	return s.ch
}

// Cancel removes the subscription from the broker and closes its channel.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.broker.remove(s.id)
		close(s.ch)
	})
}

// Broker fans out changes to all active subscriptions without blocking the
// publisher: a subscriber whose buffer is full misses that change.
type Broker struct {
	mu     stdSync.Mutex
	subs   map[uint64]*Subscription
	nextID uint64
	closed bool
	logger *logging.Logger
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{
		subs:   make(map[uint64]*Subscription),
		logger: logging.WithComponent(logging.Component("notify")),
	}
}

// Subscribe registers a new subscription with the given channel buffer.
// A buffer of zero or less defaults to 16.
func (b *Broker) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = 16
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &Subscription{
		id:     b.nextID,
		ch:     make(chan Change, buffer),
		broker: b,
	}
	if b.closed {
		// A closed broker hands out an already-closed handle rather than nil.
		close(sub.ch)
		return sub
	}
	b.subs[b.nextID] = sub
	b.nextID++
	return sub
}

// Publish delivers a change to every active subscription. Delivery is
// best-effort and never blocks the caller.
func (b *Broker) Publish(change Change) {
	if change.Timestamp.IsZero() {
		change.Timestamp = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	for _, sub := range b.subs {
		select {
		case sub.ch <- change:
		default:
			b.logger.Warn("subscriber buffer full, dropping change",
				slog.String("kind", string(change.Kind)),
				slog.String("document_id", change.DocumentID))
		}
	}
}

// Close cancels all subscriptions and rejects future publishes.
func (b *Broker) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := make([]*Subscription, 0, len(b.subs))
	for _, sub := range b.subs {
		subs = append(subs, sub)
	}
	b.subs = map[uint64]*Subscription{}
	b.mu.Unlock()

	for _, sub := range subs {
		sub.once.Do(func() { close(sub.ch) })
	}
}

func (b *Broker) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, id)
}
