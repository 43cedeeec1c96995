package sqlite

import (
	"bytes"
	"context"
	"log"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c0deZ3R0/go-quote-sync/quotesync"
)

func newTestStore(t *testing.T) *DocumentStore {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "quotes.db")
	store, err := NewWithDataSource(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testDocument(number string, ordinal int, active bool) *quotesync.QuotationDocument {
	now := time.Now().UTC().Truncate(time.Second)
	return &quotesync.QuotationDocument{
		ID:             quotesync.NewDocumentID(),
		Number:         number,
		Prefix:         "CZ",
		Sequential:     1,
		YearCode:       "25",
		TimeCode:       "1703",
		VersionOrdinal: ordinal,
		IsActive:       active,
		Status:         "draft",
		Fields: map[string]interface{}{
			"customer": map[string]interface{}{"name": "Acme"},
			"items":    []interface{}{map[string]interface{}{"sku": "X1", "qty": float64(2)}},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestInsertAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	doc := testDocument("CZ0001.251703V1", 1, true)
	require.NoError(t, store.Insert(ctx, doc))

	got, err := store.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.Number, got.Number)
	assert.Equal(t, doc.Fields, got.Fields)
	assert.True(t, got.IsActive)

	byNumber, err := store.GetByNumber(ctx, doc.Number)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, byNumber.ID)
}

func TestGetMissingDocument(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetByID(context.Background(), "no-such-id")
	assert.ErrorIs(t, err, quotesync.ErrNotFound)
}

func TestInsertNewVersionDeactivatesPrevious(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	v1 := testDocument("CZ0001.251703V1", 1, true)
	require.NoError(t, store.Insert(ctx, v1))

	v2 := testDocument("CZ0001.251703V2", 2, true)
	require.NoError(t, store.InsertNewVersion(ctx, v2, v1.ID))

	prev, err := store.GetByID(ctx, v1.ID)
	require.NoError(t, err)
	assert.False(t, prev.IsActive)

	next, err := store.GetByID(ctx, v2.ID)
	require.NoError(t, err)
	assert.True(t, next.IsActive)
}

func TestInsertNewVersionMissingPreviousLeavesNothingBehind(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	v2 := testDocument("CZ0001.251703V2", 2, true)
	err := store.InsertNewVersion(ctx, v2, "no-such-id")
	require.ErrorIs(t, err, quotesync.ErrNotFound)

	_, err = store.GetByID(ctx, v2.ID)
	assert.ErrorIs(t, err, quotesync.ErrNotFound, "the new version must not be inserted")
}

func TestListLineageOrdersMostRecentFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	v1 := testDocument("CZ0001.251703V1", 1, false)
	v2 := testDocument("CZ0001.251703V2", 2, false)
	v3 := testDocument("CZ0001.251703V3", 3, true)
	for _, doc := range []*quotesync.QuotationDocument{v2, v1, v3} {
		require.NoError(t, store.Insert(ctx, doc))
	}

	// A different lineage must not leak in.
	other := testDocument("CZ0002.251704V1", 1, true)
	other.Sequential = 2
	require.NoError(t, store.Insert(ctx, other))

	docs, err := store.ListLineage(ctx, "CZ0001.251703")
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, 3, docs[0].VersionOrdinal)
	assert.Equal(t, 2, docs[1].VersionOrdinal)
	assert.Equal(t, 1, docs[2].VersionOrdinal)
}

func TestLatestSequential(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seq, err := store.LatestSequential(ctx, "CZ")
	require.NoError(t, err)
	assert.Zero(t, seq)

	doc := testDocument("CZ0007.251703V1", 1, true)
	doc.Sequential = 7
	require.NoError(t, store.Insert(ctx, doc))

	seq, err = store.LatestSequential(ctx, "CZ")
	require.NoError(t, err)
	assert.Equal(t, 7, seq)

	seq, err = store.LatestSequential(ctx, "QT")
	require.NoError(t, err)
	assert.Zero(t, seq)
}

func TestSetActiveAndUpdateFields(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	doc := testDocument("CZ0001.251703V1", 1, true)
	require.NoError(t, store.Insert(ctx, doc))

	require.NoError(t, store.SetActive(ctx, doc.ID, false))
	got, err := store.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	newFields := map[string]interface{}{"currency": "EUR"}
	require.NoError(t, store.UpdateFields(ctx, doc.ID, newFields))
	got, err = store.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, newFields, got.Fields)

	assert.ErrorIs(t, store.SetActive(ctx, "missing", true), quotesync.ErrNotFound)
	assert.ErrorIs(t, store.UpdateFields(ctx, "missing", nil), quotesync.ErrNotFound)
}

func TestRollbackVersion(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	v1 := testDocument("CZ0001.251703V1", 1, false)
	v2 := testDocument("CZ0001.251703V2", 2, true)
	require.NoError(t, store.Insert(ctx, v1))
	require.NoError(t, store.Insert(ctx, v2))

	for i := 0; i < 3; i++ {
		require.NoError(t, store.AddSnapshot(ctx, &quotesync.Snapshot{
			ID:         quotesync.NewDocumentID(),
			DocumentID: v2.ID,
			Payload:    []byte(`{"rev":1}`),
		}))
	}

	deleted, err := store.RollbackVersion(ctx, v2.ID, v1.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, deleted)

	// V1 is active again; V2 and its snapshots are gone.
	prev, err := store.GetByID(ctx, v1.ID)
	require.NoError(t, err)
	assert.True(t, prev.IsActive)

	_, err = store.GetByID(ctx, v2.ID)
	assert.ErrorIs(t, err, quotesync.ErrNotFound)

	snaps, err := store.SnapshotsByDocument(ctx, v2.ID)
	require.NoError(t, err)
	assert.Empty(t, snaps)

	docs, err := store.ListLineage(ctx, "CZ0001.251703")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, v1.ID, docs[0].ID)
}

func TestRollbackMissingTargetHasNoSideEffects(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	v1 := testDocument("CZ0001.251703V1", 1, false)
	require.NoError(t, store.Insert(ctx, v1))

	_, err := store.RollbackVersion(ctx, "no-such-id", v1.ID)
	require.ErrorIs(t, err, quotesync.ErrNotFound)

	got, err := store.GetByID(ctx, v1.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive, "previous version's active flag must be untouched")
}

func TestRollbackMissingPreviousRollsEverythingBack(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	v2 := testDocument("CZ0001.251703V2", 2, true)
	require.NoError(t, store.Insert(ctx, v2))
	require.NoError(t, store.AddSnapshot(ctx, &quotesync.Snapshot{
		ID:         quotesync.NewDocumentID(),
		DocumentID: v2.ID,
	}))

	_, err := store.RollbackVersion(ctx, v2.ID, "no-such-id")
	require.ErrorIs(t, err, quotesync.ErrNotFound)

	// The whole transaction rolled back: V2 and its snapshot survive.
	got, err := store.GetByID(ctx, v2.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive)

	snaps, err := store.SnapshotsByDocument(ctx, v2.ID)
	require.NoError(t, err)
	assert.Len(t, snaps, 1)
}

func TestConfigLoggerReceivesInternalEvents(t *testing.T) {
	var buf bytes.Buffer
	store, err := New(&Config{
		DataSourceName: filepath.Join(t.TempDir(), "quotes.db"),
		EnableWAL:      true,
		Logger:         log.New(&buf, "", 0),
	})
	require.NoError(t, err)
	ctx := context.Background()

	v1 := testDocument("CZ0001.251703V1", 1, false)
	v2 := testDocument("CZ0001.251703V2", 2, true)
	require.NoError(t, store.Insert(ctx, v1))
	require.NoError(t, store.Insert(ctx, v2))

	_, err = store.RollbackVersion(ctx, v2.ID, v1.ID)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "rollback")

	require.NoError(t, store.Close())
	assert.Contains(t, buf.String(), "closed")
}

func TestClosedStore(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close(), "closing twice is fine")

	_, err := store.GetByID(context.Background(), "x")
	assert.ErrorIs(t, err, ErrStoreClosed)
}

func TestConfigValidation(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
	_, err = New(&Config{})
	assert.Error(t, err)
}
