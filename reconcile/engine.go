// Package reconcile detects divergence between the locally cached copy of a
// quotation document and the server's authoritative copy after a connectivity
// gap. The engine only detects and reports; choosing to keep local or server
// values is always deferred to the caller.
package reconcile

import (
	"context"
	stderrors "errors"
	"log/slog"
	stdSync "sync"
	"sync/atomic"
	"time"

	"github.com/c0deZ3R0/go-quote-sync/cache"
	"github.com/c0deZ3R0/go-quote-sync/errors"
	"github.com/c0deZ3R0/go-quote-sync/logging"
	"github.com/c0deZ3R0/go-quote-sync/metrics"
	"github.com/c0deZ3R0/go-quote-sync/notify"
	"github.com/c0deZ3R0/go-quote-sync/quotesync"
)

// DefaultComparedFields is the fixed set of business-relevant fields compared
// during reconciliation. Derived and transient fields are deliberately absent.
var DefaultComparedFields = []string{
	"customer",
	"contact",
	"items",
	"currency",
	"discount",
	"validUntil",
	"paymentTerms",
	"notes",
}

// ErrAlreadyRan reports that reconciliation already ran for the current
// recovery episode; the one-shot latch consumes the first call per episode.
var ErrAlreadyRan = stderrors.New("reconcile: already ran for this recovery episode")

// ErrNoLocalData reports that no cached document exists to compare against.
var ErrNoLocalData = stderrors.New("reconcile: no local data to compare")

// Result is the outcome of one reconciliation pass.
type Result struct {
	DocumentID     string                       `json:"documentId"`
	HasDifferences bool                         `json:"hasDifferences"`
	Differences    []quotesync.DifferenceRecord `json:"differences,omitempty"`
	ComparedAt     time.Time                    `json:"comparedAt"`
}

// Engine runs the reconciliation pass. It is edge-triggered: exactly one pass
// per offline-to-online transition, guarded by an atomic compare-and-swap
// latch that Reset releases on component teardown.
type Engine struct {
	cache   *cache.Store
	fetcher quotesync.DocumentFetcher
	fields  []string

	// maxCacheAge bounds how old a cached document may be and still be
	// worth comparing; zero disables the bound
	maxCacheAge time.Duration

	latch atomic.Bool

	mu         stdSync.Mutex
	lastResult *Result

	broker  *notify.Broker
	logger  *logging.Logger
	metrics metrics.Collector
	now     func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithComparedFields overrides the compared field set.
func WithComparedFields(fields []string) Option {
	return func(e *Engine) { e.fields = fields }
}

// WithMaxCacheAge bounds the freshness of comparable cached documents.
func WithMaxCacheAge(d time.Duration) Option {
	return func(e *Engine) { e.maxCacheAge = d }
}

// WithMetrics sets the metrics collector.
func WithMetrics(c metrics.Collector) Option {
	return func(e *Engine) { e.metrics = c }
}

// WithBroker sets the change broker notified when divergence is found.
func WithBroker(b *notify.Broker) Option {
	return func(e *Engine) { e.broker = b }
}

// WithClock overrides the engine's clock.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an Engine over the given cache and fetcher.
func NewEngine(store *cache.Store, fetcher quotesync.DocumentFetcher, opts ...Option) *Engine {
	e := &Engine{
		cache:   store,
		fetcher: fetcher,
		fields:  DefaultComparedFields,
		logger:  logging.WithComponent(logging.Component("reconcile")),
		metrics: &metrics.NoOpCollector{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// OnConnectivityRestored runs one reconciliation pass for the active document.
// The first call per recovery episode wins the latch; concurrent or repeated
// calls fail with ErrAlreadyRan until Reset releases the latch. A fetch
// failure consumes the episode but leaves the previously reported result
// untouched; it must not be read as "no conflict".
func (e *Engine) OnConnectivityRestored(ctx context.Context, documentID string) (*Result, error) {
	if !e.latch.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRan
	}
	return e.run(ctx, documentID)
}

// Reset releases the one-shot latch. Call it on component teardown so the
// next recovery episode can reconcile again.
func (e *Engine) Reset() {
	e.latch.Store(false)
}

// LastResult returns the most recently reported result, or nil when no pass
// has completed yet.
func (e *Engine) LastResult() *Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastResult
}

func (e *Engine) run(ctx context.Context, documentID string) (*Result, error) {
	start := e.now()

	cached, ok := e.loadCached(documentID)
	if !ok {
		e.logger.Info("no local data to compare",
			slog.String("document_id", documentID))
		return nil, ErrNoLocalData
	}

	// The server fetch is the only suspension point; it is cancellable and
	// no speculative write happens if the caller tears down mid-flight.
	server, err := e.fetcher.FetchDocument(ctx, documentID)
	if err != nil {
		e.logger.Warn("server fetch failed, keeping previous reconciliation result",
			slog.String("document_id", documentID),
			slog.String("error", err.Error()))
		return nil, errors.NewNetworkError(errors.OpReconcile, err)
	}
	if err := ctx.Err(); err != nil {
		// Torn down while the fetch resolved: discard the in-flight result.
		return nil, err
	}

	result := &Result{
		DocumentID: documentID,
		ComparedAt: e.now(),
	}
	for _, field := range e.fields {
		cachedValue := cached.Fields[field]
		serverValue := server.Fields[field]
		if !structuralEqual(cachedValue, serverValue) {
			result.Differences = append(result.Differences, quotesync.DifferenceRecord{
				Field:       field,
				CachedValue: cachedValue,
				ServerValue: serverValue,
			})
		}
	}
	result.HasDifferences = len(result.Differences) > 0

	e.mu.Lock()
	e.lastResult = result
	e.mu.Unlock()

	e.metrics.RecordReconciliation(result.HasDifferences, e.now().Sub(start))
	e.metrics.RecordDifferences(len(result.Differences))

	if result.HasDifferences {
		e.logger.Info("divergence detected",
			slog.String("document_id", documentID),
			slog.Int("differences", len(result.Differences)))
		if e.broker != nil {
			e.broker.Publish(notify.Change{
				Kind:       notify.KindConflictDetected,
				DocumentID: documentID,
			})
		}
	} else {
		e.logger.Info("cached and server copies match",
			slog.String("document_id", documentID))
	}

	return result, nil
}

// loadCached reads the cached copy of the active document. Cached quotations
// are stored as a map keyed by document id under the quotations logical key.
func (e *Engine) loadCached(documentID string) (*quotesync.QuotationDocument, bool) {
	docs, ok := cache.Get[map[string]quotesync.QuotationDocument](e.cache, cache.KeyQuotations, e.maxCacheAge)
	if !ok {
		return nil, false
	}
	doc, ok := docs[documentID]
	if !ok {
		return nil, false
	}
	return &doc, true
}
