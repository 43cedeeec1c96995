// Package quotesync provides the core types and interfaces for the quotation
// document synchronization and versioning system. It supports offline-first
// editing with divergence detection and strictly ordered version lineages.
package quotesync

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by stores when a document, snapshot, or lineage
// member does not exist. Wrap it so errors.Is keeps working through layers.
var ErrNotFound = errors.New("quotesync: not found")

// QuotationDocument is a single member of a version lineage. Documents sharing
// the same Prefix/Sequential/YearCode/TimeCode belong to one lineage and differ
// only by VersionOrdinal. Within a lineage exactly one member is active.
type QuotationDocument struct {
	// ID is the storage identity of this document instance
	ID string `json:"id"`

	// Number is the structured document number, e.g. "CZ0001.251703V2"
	Number string `json:"number"`

	Prefix         string `json:"prefix"`
	Sequential     int    `json:"sequential"`
	YearCode       string `json:"yearCode"`
	TimeCode       string `json:"timeCode"`
	VersionOrdinal int    `json:"versionOrdinal"`

	// IsActive marks the lineage member currently treated as canonical
	IsActive bool `json:"isActive"`

	// Status is the business status (draft, sent, accepted, rejected)
	Status string `json:"status"`

	// Fields holds the arbitrary business content of the quotation, keyed by
	// field name. The server representation uses the same field names so the
	// cached and authoritative copies compare structurally without translation.
	Fields map[string]interface{} `json:"fields"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// BaseNumber returns the lineage identity portion of the document number,
// without the version suffix.
func (d *QuotationDocument) BaseNumber() string {
	n := d.Number
	for i := len(n) - 1; i >= 0; i-- {
		if n[i] == 'V' {
			return n[:i]
		}
	}
	return n
}

// Snapshot is a child record owned by a single document version. Snapshots are
// deleted together with their owning version during rollback.
type Snapshot struct {
	ID         string          `json:"id"`
	DocumentID string          `json:"documentId"`
	Payload    json.RawMessage `json:"payload"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// DifferenceRecord describes a single field whose cached and server values
// diverge. Records are transient: they exist only for the duration of a
// reconciliation pass and are never persisted.
type DifferenceRecord struct {
	Field       string      `json:"field"`
	CachedValue interface{} `json:"cachedValue"`
	ServerValue interface{} `json:"serverValue"`
}

// NewDocumentID generates a new storage identity for a document or snapshot.
func NewDocumentID() string {
	return uuid.New().String()
}

// DocumentStore provides persistence for documents and their snapshots.
// Implementations can use any storage backend (SQLite, PostgreSQL, etc.).
type DocumentStore interface {
	// Insert persists a new document
	Insert(ctx context.Context, doc *QuotationDocument) error

	// InsertNewVersion persists a new lineage member and deactivates the
	// previous version in the same transaction, so the one-active-member
	// invariant holds even when either step fails
	InsertNewVersion(ctx context.Context, doc *QuotationDocument, previousVersionID string) error

	// GetByID retrieves a document by its storage identity
	GetByID(ctx context.Context, id string) (*QuotationDocument, error)

	// GetByNumber retrieves a document by its full structured number
	GetByNumber(ctx context.Context, number string) (*QuotationDocument, error)

	// ListLineage retrieves all members of a lineage by its base number,
	// ordered most recent version first
	ListLineage(ctx context.Context, baseNumber string) ([]*QuotationDocument, error)

	// SetActive flips the active flag on a single document
	SetActive(ctx context.Context, id string, active bool) error

	// UpdateFields replaces the business fields of a document
	UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error

	// AddSnapshot persists a child snapshot owned by a document
	AddSnapshot(ctx context.Context, snap *Snapshot) error

	// SnapshotsByDocument retrieves all snapshots owned by a document
	SnapshotsByDocument(ctx context.Context, documentID string) ([]*Snapshot, error)

	// LatestSequential returns the highest sequential counter seen for a
	// prefix, zero when the prefix has no documents yet
	LatestSequential(ctx context.Context, prefix string) (int, error)

	// RollbackVersion executes the compensating transaction for an abandoned
	// version as one atomic unit: verify the target exists, delete its
	// snapshots, delete the document, and re-activate the previous version.
	// It returns the number of snapshots deleted.
	RollbackVersion(ctx context.Context, versionToDelete, previousVersionID string) (int, error)

	// Close closes the store and releases resources
	Close() error
}

// DocumentFetcher retrieves the server's authoritative copy of a document.
// This is the reconciliation engine's single suspension point; implementations
// must honor context cancellation.
type DocumentFetcher interface {
	FetchDocument(ctx context.Context, id string) (*QuotationDocument, error)
}
