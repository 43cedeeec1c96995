// Package sqlite provides a SQLite implementation of the quotesync DocumentStore.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"strings"
	stdSync "sync"
	"time"

	syncErrors "github.com/c0deZ3R0/go-quote-sync/errors"
	"github.com/c0deZ3R0/go-quote-sync/logging"
	"github.com/c0deZ3R0/go-quote-sync/quotesync"

	// Go SQLite driver
	_ "github.com/mattn/go-sqlite3"
)

// Operation constants for consistent error reporting
const (
	opInsert           = "sqlite.Insert"
	opInsertNewVersion = "sqlite.InsertNewVersion"
	opGet              = "sqlite.Get"
	opListLineage      = "sqlite.ListLineage"
	opSetActive        = "sqlite.SetActive"
	opUpdateFields     = "sqlite.UpdateFields"
	opSnapshot         = "sqlite.Snapshot"
	opLatestSequential = "sqlite.LatestSequential"
	opRollback         = "sqlite.RollbackVersion"
)

// ErrStoreClosed is returned when an operation hits a closed store.
var ErrStoreClosed = errors.New("store is closed")

// Config holds configuration options for the DocumentStore.
//
// Production-ready defaults are applied by DefaultConfig() including:
//   - WAL mode enabled for better concurrency
//   - Connection pool with 25 max open, 5 max idle connections
//   - Connection lifetimes of 1 hour max, 5 minutes max idle
type Config struct {
	// DataSourceName is the connection string for the SQLite database.
	// Example: "file:quotes.db?_journal_mode=WAL"
	DataSourceName string

	// EnableWAL enables Write-Ahead Logging mode for better concurrency.
	// When true, automatically appends "?_journal_mode=WAL" to DataSourceName.
	EnableWAL bool

	// Logger is an optional logger for internal operations and errors.
	// If nil, logging is disabled (logs to io.Discard).
	Logger *log.Logger

	// Connection pool settings for production workloads.
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// setDefaults applies default values to the config
func (c *Config) setDefaults() {
	if c.Logger == nil {
		c.Logger = log.New(io.Discard, "", 0)
	}
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = 25
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = 5
	}
	if c.ConnMaxLifetime == 0 {
		c.ConnMaxLifetime = time.Hour
	}
	if c.ConnMaxIdleTime == 0 {
		c.ConnMaxIdleTime = 5 * time.Minute
	}
	if c.EnableWAL {
		if !strings.Contains(c.DataSourceName, "?_journal_mode=") {
			c.DataSourceName += "?_journal_mode=WAL"
		}
	}
}

// DefaultConfig returns a Config with production-ready defaults for SQLite.
func DefaultConfig(dataSourceName string) *Config {
	config := &Config{
		DataSourceName: dataSourceName,
		EnableWAL:      true,
	}
	config.setDefaults()
	return config
}

// NewWithDataSource is a convenience constructor
func NewWithDataSource(dataSourceName string) (*DocumentStore, error) {
	return New(DefaultConfig(dataSourceName))
}

// DocumentStore implements the quotesync.DocumentStore interface for SQLite.
type DocumentStore struct {
	db     *sql.DB
	mu     stdSync.RWMutex
	closed bool
	logger *log.Logger
}

// Compile-time check to ensure DocumentStore satisfies the interface
var _ quotesync.DocumentStore = (*DocumentStore)(nil)

// New creates a new DocumentStore from a Config.
func New(config *Config) (*DocumentStore, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	config.setDefaults()

	if config.DataSourceName == "" {
		return nil, fmt.Errorf("DataSourceName is required")
	}

	logger := logging.WithComponent(logging.Component("sqlite-store"))
	logger.InfoContext(context.Background(), "Opening SQLite database",
		slog.String("data_source", config.DataSourceName),
		slog.Bool("wal_enabled", config.EnableWAL),
	)

	db, err := sql.Open("sqlite3", config.DataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to sqlite database: %w", err)
	}

	store := &DocumentStore{
		db:     db,
		logger: config.Logger,
	}

	if err := store.setupSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to setup database schema: %w", err)
	}

	logger.InfoContext(context.Background(), "SQLite DocumentStore successfully initialized")
	return store, nil
}

// setupSchema creates the documents and snapshots tables if they don't exist.
func (s *DocumentStore) setupSchema() error {
	query := `
    CREATE TABLE IF NOT EXISTS documents (
        id              TEXT PRIMARY KEY,
        number          TEXT NOT NULL UNIQUE,
        prefix          TEXT NOT NULL,
        sequential      INTEGER NOT NULL,
        year_code       TEXT NOT NULL,
        time_code       TEXT NOT NULL,
        version_ordinal INTEGER NOT NULL,
        is_active       INTEGER NOT NULL DEFAULT 0,
        status          TEXT NOT NULL DEFAULT 'draft',
        fields          TEXT,
        created_at      TIMESTAMP NOT NULL,
        updated_at      TIMESTAMP NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_documents_lineage ON documents (prefix, sequential, year_code, time_code);
    CREATE INDEX IF NOT EXISTS idx_documents_active ON documents (is_active);
    CREATE TABLE IF NOT EXISTS snapshots (
        id          TEXT PRIMARY KEY,
        document_id TEXT NOT NULL REFERENCES documents(id),
        payload     TEXT,
        created_at  TIMESTAMP NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_snapshots_document ON snapshots (document_id);
    `
	_, err := s.db.Exec(query)
	return err
}

func (s *DocumentStore) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

// Insert persists a new document.
func (s *DocumentStore) Insert(ctx context.Context, doc *quotesync.QuotationDocument) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	fieldsJSON, err := json.Marshal(doc.Fields)
	if err != nil {
		return syncErrors.WrapOpComponent(err, opInsert, "storage/sqlite")
	}

	query := `INSERT INTO documents
        (id, number, prefix, sequential, year_code, time_code, version_ordinal, is_active, status, fields, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, query,
		doc.ID, doc.Number, doc.Prefix, doc.Sequential, doc.YearCode, doc.TimeCode,
		doc.VersionOrdinal, boolToInt(doc.IsActive), doc.Status, string(fieldsJSON),
		doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return syncErrors.WrapOpComponentKind(err, opInsert, "storage/sqlite", syncErrors.KindStorage)
	}
	return nil
}

// InsertNewVersion persists a new lineage member and deactivates the previous
// version in the same transaction.
func (s *DocumentStore) InsertNewVersion(ctx context.Context, doc *quotesync.QuotationDocument, previousVersionID string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	fieldsJSON, err := json.Marshal(doc.Fields)
	if err != nil {
		return syncErrors.WrapOpComponent(err, opInsertNewVersion, "storage/sqlite")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return syncErrors.WrapOpComponentKind(err, opInsertNewVersion, "storage/sqlite", syncErrors.KindStorage)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		`UPDATE documents SET is_active = 0, updated_at = ? WHERE id = ?`,
		doc.UpdatedAt, previousVersionID)
	if err != nil {
		return syncErrors.WrapOpComponentKind(err, opInsertNewVersion, "storage/sqlite", syncErrors.KindStorage)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return syncErrors.WrapOpComponentKind(err, opInsertNewVersion, "storage/sqlite", syncErrors.KindStorage)
	}
	if affected == 0 {
		err = fmt.Errorf("previous version %s: %w", previousVersionID, quotesync.ErrNotFound)
		return err
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO documents
        (id, number, prefix, sequential, year_code, time_code, version_ordinal, is_active, status, fields, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.Number, doc.Prefix, doc.Sequential, doc.YearCode, doc.TimeCode,
		doc.VersionOrdinal, boolToInt(doc.IsActive), doc.Status, string(fieldsJSON),
		doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return syncErrors.WrapOpComponentKind(err, opInsertNewVersion, "storage/sqlite", syncErrors.KindStorage)
	}

	if err = tx.Commit(); err != nil {
		return syncErrors.WrapOpComponentKind(err, opInsertNewVersion, "storage/sqlite", syncErrors.KindStorage)
	}
	return nil
}

// GetByID retrieves a document by its storage identity.
func (s *DocumentStore) GetByID(ctx context.Context, id string) (*quotesync.QuotationDocument, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	return s.getWhere(ctx, `id = ?`, id)
}

// GetByNumber retrieves a document by its full structured number.
func (s *DocumentStore) GetByNumber(ctx context.Context, number string) (*quotesync.QuotationDocument, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	return s.getWhere(ctx, `number = ?`, number)
}

const documentColumns = `id, number, prefix, sequential, year_code, time_code, version_ordinal, is_active, status, fields, created_at, updated_at`

func (s *DocumentStore) getWhere(ctx context.Context, where string, arg interface{}) (*quotesync.QuotationDocument, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE `+where, arg)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %v: %w", arg, quotesync.ErrNotFound)
	}
	if err != nil {
		return nil, syncErrors.WrapOpComponentKind(err, opGet, "storage/sqlite", syncErrors.KindStorage)
	}
	return doc, nil
}

// ListLineage retrieves all members of a lineage by its base number, ordered
// most recent version first.
func (s *DocumentStore) ListLineage(ctx context.Context, baseNumber string) ([]*quotesync.QuotationDocument, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE number LIKE ? || 'V%' ORDER BY version_ordinal DESC`,
		baseNumber)
	if err != nil {
		return nil, syncErrors.WrapOpComponentKind(err, opListLineage, "storage/sqlite", syncErrors.KindStorage)
	}
	defer rows.Close()

	var docs []*quotesync.QuotationDocument
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, syncErrors.WrapOpComponentKind(err, opListLineage, "storage/sqlite", syncErrors.KindStorage)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, syncErrors.WrapOpComponentKind(err, opListLineage, "storage/sqlite", syncErrors.KindStorage)
	}
	return docs, nil
}

// SetActive flips the active flag on a single document.
func (s *DocumentStore) SetActive(ctx context.Context, id string, active bool) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET is_active = ?, updated_at = ? WHERE id = ?`,
		boolToInt(active), time.Now().UTC(), id)
	if err != nil {
		return syncErrors.WrapOpComponentKind(err, opSetActive, "storage/sqlite", syncErrors.KindStorage)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return syncErrors.WrapOpComponentKind(err, opSetActive, "storage/sqlite", syncErrors.KindStorage)
	}
	if affected == 0 {
		return fmt.Errorf("document %s: %w", id, quotesync.ErrNotFound)
	}
	return nil
}

// UpdateFields replaces the business fields of a document.
func (s *DocumentStore) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return syncErrors.WrapOpComponent(err, opUpdateFields, "storage/sqlite")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET fields = ?, updated_at = ? WHERE id = ?`,
		string(fieldsJSON), time.Now().UTC(), id)
	if err != nil {
		return syncErrors.WrapOpComponentKind(err, opUpdateFields, "storage/sqlite", syncErrors.KindStorage)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return syncErrors.WrapOpComponentKind(err, opUpdateFields, "storage/sqlite", syncErrors.KindStorage)
	}
	if affected == 0 {
		return fmt.Errorf("document %s: %w", id, quotesync.ErrNotFound)
	}
	return nil
}

// AddSnapshot persists a child snapshot owned by a document.
func (s *DocumentStore) AddSnapshot(ctx context.Context, snap *quotesync.Snapshot) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	createdAt := snap.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO snapshots (id, document_id, payload, created_at) VALUES (?, ?, ?, ?)`,
		snap.ID, snap.DocumentID, string(snap.Payload), createdAt)
	if err != nil {
		return syncErrors.WrapOpComponentKind(err, opSnapshot, "storage/sqlite", syncErrors.KindStorage)
	}
	return nil
}

// SnapshotsByDocument retrieves all snapshots owned by a document.
func (s *DocumentStore) SnapshotsByDocument(ctx context.Context, documentID string) ([]*quotesync.Snapshot, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_id, payload, created_at FROM snapshots WHERE document_id = ? ORDER BY created_at ASC`,
		documentID)
	if err != nil {
		return nil, syncErrors.WrapOpComponentKind(err, opSnapshot, "storage/sqlite", syncErrors.KindStorage)
	}
	defer rows.Close()

	var snaps []*quotesync.Snapshot
	for rows.Next() {
		snap := &quotesync.Snapshot{}
		var payload sql.NullString
		if err := rows.Scan(&snap.ID, &snap.DocumentID, &payload, &snap.CreatedAt); err != nil {
			return nil, syncErrors.WrapOpComponentKind(err, opSnapshot, "storage/sqlite", syncErrors.KindStorage)
		}
		if payload.Valid {
			snap.Payload = []byte(payload.String)
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, syncErrors.WrapOpComponentKind(err, opSnapshot, "storage/sqlite", syncErrors.KindStorage)
	}
	return snaps, nil
}

// LatestSequential returns the highest sequential counter seen for a prefix.
func (s *DocumentStore) LatestSequential(ctx context.Context, prefix string) (int, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	var max sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(sequential) FROM documents WHERE prefix = ?`, prefix).Scan(&max)
	if err != nil {
		return 0, syncErrors.WrapOpComponentKind(err, opLatestSequential, "storage/sqlite", syncErrors.KindStorage)
	}
	if !max.Valid {
		return 0, nil // No documents for this prefix yet
	}
	return int(max.Int64), nil
}

// RollbackVersion executes the compensating transaction for an abandoned
// version as one atomic unit of work. A mid-sequence failure rolls the whole
// transaction back, so the lineage can never be left with zero active members.
func (s *DocumentStore) RollbackVersion(ctx context.Context, versionToDelete, previousVersionID string) (deleted int, err error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, syncErrors.WrapOpComponentKind(err, opRollback, "storage/sqlite", syncErrors.KindStorage)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	// Step a: verify the target exists before touching anything.
	var exists int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM documents WHERE id = ?`, versionToDelete).Scan(&exists)
	if err != nil {
		return 0, syncErrors.WrapOpComponentKind(err, opRollback, "storage/sqlite", syncErrors.KindStorage)
	}
	if exists == 0 {
		err = fmt.Errorf("version %s: %w", versionToDelete, quotesync.ErrNotFound)
		return 0, err
	}

	// Step b: delete all child snapshots owned by the abandoned version.
	res, err := tx.ExecContext(ctx,
		`DELETE FROM snapshots WHERE document_id = ?`, versionToDelete)
	if err != nil {
		return 0, syncErrors.WrapOpComponentKind(err, opRollback, "storage/sqlite", syncErrors.KindStorage)
	}
	snapCount, err := res.RowsAffected()
	if err != nil {
		return 0, syncErrors.WrapOpComponentKind(err, opRollback, "storage/sqlite", syncErrors.KindStorage)
	}

	// Step c: delete the abandoned version itself.
	_, err = tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, versionToDelete)
	if err != nil {
		return 0, syncErrors.WrapOpComponentKind(err, opRollback, "storage/sqlite", syncErrors.KindStorage)
	}

	// Step d: re-flag the previous version as the lineage's active member.
	res, err = tx.ExecContext(ctx,
		`UPDATE documents SET is_active = 1, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), previousVersionID)
	if err != nil {
		return 0, syncErrors.WrapOpComponentKind(err, opRollback, "storage/sqlite", syncErrors.KindStorage)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, syncErrors.WrapOpComponentKind(err, opRollback, "storage/sqlite", syncErrors.KindStorage)
	}
	if affected == 0 {
		err = fmt.Errorf("previous version %s: %w", previousVersionID, quotesync.ErrNotFound)
		return 0, err
	}

	if err = tx.Commit(); err != nil {
		return 0, syncErrors.WrapOpComponentKind(err, opRollback, "storage/sqlite", syncErrors.KindStorage)
	}

	s.logger.Printf("rollback: removed version %s, deleted %d snapshots, reactivated %s",
		versionToDelete, snapCount, previousVersionID)
	return int(snapCount), nil
}

// Close closes the database connection.
func (s *DocumentStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	s.logger.Printf("document store closed")
	return s.db.Close()
}

// Stats returns database statistics for monitoring
func (s *DocumentStore) Stats() sql.DBStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return sql.DBStats{}
	}

	return s.db.Stats()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row rowScanner) (*quotesync.QuotationDocument, error) {
	doc := &quotesync.QuotationDocument{}
	var isActive int
	var fields sql.NullString

	err := row.Scan(&doc.ID, &doc.Number, &doc.Prefix, &doc.Sequential, &doc.YearCode,
		&doc.TimeCode, &doc.VersionOrdinal, &isActive, &doc.Status, &fields,
		&doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, err
	}

	doc.IsActive = isActive != 0
	if fields.Valid && fields.String != "" && fields.String != "null" {
		if err := json.Unmarshal([]byte(fields.String), &doc.Fields); err != nil {
			return nil, fmt.Errorf("failed to decode document fields: %w", err)
		}
	}
	return doc, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
