package lineage

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/c0deZ3R0/go-quote-sync/errors"
	"github.com/c0deZ3R0/go-quote-sync/logging"
	"github.com/c0deZ3R0/go-quote-sync/metrics"
	"github.com/c0deZ3R0/go-quote-sync/notify"
	"github.com/c0deZ3R0/go-quote-sync/quotesync"
)

// RollbackResult reports the outcome of a rollback compensating transaction.
type RollbackResult struct {
	SnapshotsDeleted int
}

// Manager advances version lineages and performs the rollback compensating
// transaction against the persistence collaborator. Callers must not invoke
// Rollback concurrently against the same lineage.
type Manager struct {
	store   quotesync.DocumentStore
	broker  *notify.Broker
	logger  *logging.Logger
	metrics metrics.Collector
	now     func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the manager's clock.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithMetrics sets the metrics collector.
func WithMetrics(c metrics.Collector) Option {
	return func(m *Manager) { m.metrics = c }
}

// WithBroker sets the change broker notified after successful mutations.
func WithBroker(b *notify.Broker) Option {
	return func(m *Manager) { m.broker = b }
}

// NewManager creates a Manager over the given store.
func NewManager(store quotesync.DocumentStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		logger:  logging.WithComponent(logging.Component("lineage")),
		metrics: &metrics.NoOpCollector{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateLineage starts a brand-new lineage: it advances the sequential counter
// for the prefix, stamps the current year and time, and persists version 1 as
// the active member.
func (m *Manager) CreateLineage(ctx context.Context, prefix string, fields map[string]interface{}) (*quotesync.QuotationDocument, error) {
	if prefix == "" {
		return nil, errors.NewValidationError(errors.OpStore, fmt.Errorf("prefix is required"))
	}

	lastSequential, err := m.store.LatestSequential(ctx, prefix)
	if err != nil {
		return nil, errors.WrapOpComponentKind(err, errors.OpStore, "lineage", errors.KindStorage)
	}

	now := m.now()
	number, err := NextForNewLineage(prefix, lastSequential, now)
	if err != nil {
		return nil, errors.NewInternalError(errors.OpStore, err)
	}

	doc := &quotesync.QuotationDocument{
		ID:             quotesync.NewDocumentID(),
		Number:         number.String(),
		Prefix:         number.Prefix,
		Sequential:     number.Sequential,
		YearCode:       number.YearCode,
		TimeCode:       number.TimeCode,
		VersionOrdinal: number.Version,
		IsActive:       true,
		Status:         "draft",
		Fields:         fields,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := m.store.Insert(ctx, doc); err != nil {
		return nil, errors.WrapOpComponentKind(err, errors.OpStore, "lineage", errors.KindStorage)
	}

	m.logger.Info("lineage created",
		slog.String("document_id", doc.ID),
		slog.String("number", doc.Number))
	m.publish(notify.KindLineageCreated, doc)
	return doc, nil
}

// BeginNewVersion creates the next version of an existing document when the
// user starts a save cycle. The new member carries the lineage identity
// verbatim with an advanced ordinal, becomes the active member, and inherits
// the current business fields as its starting point.
func (m *Manager) BeginNewVersion(ctx context.Context, currentDocumentID string) (*quotesync.QuotationDocument, error) {
	current, err := m.store.GetByID(ctx, currentDocumentID)
	if err != nil {
		return nil, m.storeError(errors.OpLoad, err)
	}

	number, err := IncrementVersion(current.Number)
	if err != nil {
		return nil, errors.NewValidationError(errors.OpParse, err)
	}

	now := m.now()
	doc := &quotesync.QuotationDocument{
		ID:             quotesync.NewDocumentID(),
		Number:         number.String(),
		Prefix:         number.Prefix,
		Sequential:     number.Sequential,
		YearCode:       number.YearCode,
		TimeCode:       number.TimeCode,
		VersionOrdinal: number.Version,
		IsActive:       true,
		Status:         current.Status,
		Fields:         current.Fields,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := m.store.InsertNewVersion(ctx, doc, current.ID); err != nil {
		return nil, m.storeError(errors.OpStore, err)
	}

	m.logger.Info("new version created",
		slog.String("document_id", doc.ID),
		slog.String("number", doc.Number),
		slog.String("previous_id", current.ID))
	m.publish(notify.KindVersionCreated, doc)
	return doc, nil
}

// ListLineage returns all members of a lineage by its base number, most
// recent version first.
func (m *Manager) ListLineage(ctx context.Context, baseNumber string) ([]*quotesync.QuotationDocument, error) {
	if !ValidBase(baseNumber) {
		return nil, errors.NewValidationError(errors.OpListLineage, fmt.Errorf("invalid base number %q", baseNumber))
	}

	docs, err := m.store.ListLineage(ctx, baseNumber)
	if err != nil {
		return nil, m.storeError(errors.OpListLineage, err)
	}
	return docs, nil
}

// Rollback abandons an in-progress new version: it deletes the version and its
// snapshots and re-activates the previous version, as one logical unit of work
// executed inside a single store transaction. A missing target fails NotFound
// with no side effects.
func (m *Manager) Rollback(ctx context.Context, versionToDelete, previousVersionID string) (*RollbackResult, error) {
	if versionToDelete == "" || previousVersionID == "" {
		m.metrics.RecordRollback(false, 0)
		return nil, errors.NewValidationError(errors.OpRollback,
			fmt.Errorf("versionToDelete and previousVersionId are required"))
	}

	deleted, err := m.store.RollbackVersion(ctx, versionToDelete, previousVersionID)
	if err != nil {
		m.metrics.RecordRollback(false, 0)
		return nil, m.storeError(errors.OpRollback, err)
	}

	m.metrics.RecordRollback(true, deleted)
	m.logger.Info("version rolled back",
		slog.String("deleted_id", versionToDelete),
		slog.String("reactivated_id", previousVersionID),
		slog.Int("snapshots_deleted", deleted))

	if m.broker != nil {
		m.broker.Publish(notify.Change{
			Kind:       notify.KindVersionRolledBack,
			DocumentID: previousVersionID,
		})
	}
	return &RollbackResult{SnapshotsDeleted: deleted}, nil
}

func (m *Manager) publish(kind notify.ChangeKind, doc *quotesync.QuotationDocument) {
	if m.broker == nil {
		return
	}
	m.broker.Publish(notify.Change{
		Kind:       kind,
		DocumentID: doc.ID,
		Number:     doc.Number,
	})
}

func (m *Manager) storeError(op errors.Operation, err error) error {
	if stderrors.Is(err, quotesync.ErrNotFound) {
		return errors.NewNotFoundError(op, err)
	}
	return errors.WrapOpComponentKind(err, op, "lineage", errors.KindStorage)
}
