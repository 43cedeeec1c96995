package httptransport

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	syncErrors "github.com/c0deZ3R0/go-quote-sync/errors"
	"github.com/c0deZ3R0/go-quote-sync/lineage"
	"github.com/c0deZ3R0/go-quote-sync/quotesync"
)

// memStore is a hand-rolled in-memory DocumentStore for transport tests.
type memStore struct {
	docs      map[string]*quotesync.QuotationDocument
	snapshots map[string][]*quotesync.Snapshot
	failAll   bool
}

func newMemStore() *memStore {
	return &memStore{
		docs:      make(map[string]*quotesync.QuotationDocument),
		snapshots: make(map[string][]*quotesync.Snapshot),
	}
}

func (m *memStore) Insert(ctx context.Context, doc *quotesync.QuotationDocument) error {
	if m.failAll {
		return fmt.Errorf("disk on fire")
	}
	cp := *doc
	m.docs[doc.ID] = &cp
	return nil
}

func (m *memStore) InsertNewVersion(ctx context.Context, doc *quotesync.QuotationDocument, previousVersionID string) error {
	prev, ok := m.docs[previousVersionID]
	if !ok {
		return fmt.Errorf("previous version %s: %w", previousVersionID, quotesync.ErrNotFound)
	}
	prev.IsActive = false
	cp := *doc
	m.docs[doc.ID] = &cp
	return nil
}

func (m *memStore) GetByID(ctx context.Context, id string) (*quotesync.QuotationDocument, error) {
	if m.failAll {
		return nil, fmt.Errorf("disk on fire")
	}
	doc, ok := m.docs[id]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", id, quotesync.ErrNotFound)
	}
	cp := *doc
	return &cp, nil
}

func (m *memStore) GetByNumber(ctx context.Context, number string) (*quotesync.QuotationDocument, error) {
	for _, doc := range m.docs {
		if doc.Number == number {
			cp := *doc
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("document %s: %w", number, quotesync.ErrNotFound)
}

func (m *memStore) ListLineage(ctx context.Context, baseNumber string) ([]*quotesync.QuotationDocument, error) {
	if m.failAll {
		return nil, fmt.Errorf("disk on fire")
	}
	var docs []*quotesync.QuotationDocument
	for _, doc := range m.docs {
		if doc.BaseNumber() == baseNumber {
			cp := *doc
			docs = append(docs, &cp)
		}
	}
	sort.Slice(docs, func(i, j int) bool {
		return docs[i].VersionOrdinal > docs[j].VersionOrdinal
	})
	return docs, nil
}

func (m *memStore) SetActive(ctx context.Context, id string, active bool) error {
	doc, ok := m.docs[id]
	if !ok {
		return fmt.Errorf("document %s: %w", id, quotesync.ErrNotFound)
	}
	doc.IsActive = active
	return nil
}

func (m *memStore) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	doc, ok := m.docs[id]
	if !ok {
		return fmt.Errorf("document %s: %w", id, quotesync.ErrNotFound)
	}
	doc.Fields = fields
	return nil
}

func (m *memStore) AddSnapshot(ctx context.Context, snap *quotesync.Snapshot) error {
	m.snapshots[snap.DocumentID] = append(m.snapshots[snap.DocumentID], snap)
	return nil
}

func (m *memStore) SnapshotsByDocument(ctx context.Context, documentID string) ([]*quotesync.Snapshot, error) {
	return m.snapshots[documentID], nil
}

func (m *memStore) LatestSequential(ctx context.Context, prefix string) (int, error) {
	max := 0
	for _, doc := range m.docs {
		if doc.Prefix == prefix && doc.Sequential > max {
			max = doc.Sequential
		}
	}
	return max, nil
}

func (m *memStore) RollbackVersion(ctx context.Context, versionToDelete, previousVersionID string) (int, error) {
	if m.failAll {
		return 0, fmt.Errorf("disk on fire")
	}
	if _, ok := m.docs[versionToDelete]; !ok {
		return 0, fmt.Errorf("version %s: %w", versionToDelete, quotesync.ErrNotFound)
	}
	prev, ok := m.docs[previousVersionID]
	if !ok {
		return 0, fmt.Errorf("previous version %s: %w", previousVersionID, quotesync.ErrNotFound)
	}
	deleted := len(m.snapshots[versionToDelete])
	delete(m.snapshots, versionToDelete)
	delete(m.docs, versionToDelete)
	prev.IsActive = true
	return deleted, nil
}

func (m *memStore) Close() error { return nil }

func newTestServer(t *testing.T, store *memStore) (*httptest.Server, *Client) {
	t.Helper()
	srv := NewServer(store, lineage.NewManager(store))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, NewClient(ts.URL)
}

func storedDocument(id, number string, ordinal int, active bool) *quotesync.QuotationDocument {
	now := time.Now().UTC().Truncate(time.Second)
	return &quotesync.QuotationDocument{
		ID:             id,
		Number:         number,
		Prefix:         "CZ",
		Sequential:     1,
		YearCode:       "25",
		TimeCode:       "1703",
		VersionOrdinal: ordinal,
		IsActive:       active,
		Status:         "draft",
		Fields:         map[string]interface{}{"currency": "CZK"},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestFetchDocumentRoundTrip(t *testing.T) {
	store := newMemStore()
	doc := storedDocument("doc-1", "CZ0001.251703V1", 1, true)
	require.NoError(t, store.Insert(context.Background(), doc))

	_, client := newTestServer(t, store)

	got, err := client.FetchDocument(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, doc.Number, got.Number)
	assert.Equal(t, doc.Fields, got.Fields)
	assert.True(t, got.IsActive)
}

func TestFetchDocumentNotFound(t *testing.T) {
	_, client := newTestServer(t, newMemStore())

	_, err := client.FetchDocument(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, syncErrors.IsNotFound(err))
}

func TestFetchDocumentEmptyID(t *testing.T) {
	_, client := newTestServer(t, newMemStore())

	_, err := client.FetchDocument(context.Background(), "")
	assert.True(t, syncErrors.IsValidation(err))
}

func TestListLineageOrdering(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()
	require.NoError(t, store.Insert(ctx, storedDocument("doc-1", "CZ0001.251703V1", 1, false)))
	require.NoError(t, store.Insert(ctx, storedDocument("doc-3", "CZ0001.251703V3", 3, true)))
	require.NoError(t, store.Insert(ctx, storedDocument("doc-2", "CZ0001.251703V2", 2, false)))

	_, client := newTestServer(t, store)

	docs, err := client.ListLineage(ctx, "CZ0001.251703")
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, 3, docs[0].VersionOrdinal)
	assert.Equal(t, 2, docs[1].VersionOrdinal)
	assert.Equal(t, 1, docs[2].VersionOrdinal)
}

func TestListLineageInvalidBase(t *testing.T) {
	_, client := newTestServer(t, newMemStore())

	_, err := client.ListLineage(context.Background(), "not-a-number")
	require.Error(t, err)
	assert.True(t, syncErrors.IsValidation(err))
}

func TestRollbackRoundTrip(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()
	require.NoError(t, store.Insert(ctx, storedDocument("doc-1", "CZ0001.251703V1", 1, false)))
	require.NoError(t, store.Insert(ctx, storedDocument("doc-2", "CZ0001.251703V2", 2, true)))
	require.NoError(t, store.AddSnapshot(ctx, &quotesync.Snapshot{ID: "s1", DocumentID: "doc-2"}))
	require.NoError(t, store.AddSnapshot(ctx, &quotesync.Snapshot{ID: "s2", DocumentID: "doc-2"}))

	_, client := newTestServer(t, store)

	deleted, err := client.Rollback(ctx, RollbackRequest{
		VersionToDelete:   "doc-2",
		PreviousVersionID: "doc-1",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	prev, err := store.GetByID(ctx, "doc-1")
	require.NoError(t, err)
	assert.True(t, prev.IsActive)
	_, err = store.GetByID(ctx, "doc-2")
	assert.Error(t, err)
}

func TestRollbackValidation(t *testing.T) {
	_, client := newTestServer(t, newMemStore())

	_, err := client.Rollback(context.Background(), RollbackRequest{VersionToDelete: "doc-2"})
	require.Error(t, err)
	assert.True(t, syncErrors.IsValidation(err))
}

func TestRollbackMissingTargetMapsTo404(t *testing.T) {
	store := newMemStore()
	require.NoError(t, store.Insert(context.Background(), storedDocument("doc-1", "CZ0001.251703V1", 1, true)))

	_, client := newTestServer(t, store)

	_, err := client.Rollback(context.Background(), RollbackRequest{
		VersionToDelete:   "missing",
		PreviousVersionID: "doc-1",
	})
	require.Error(t, err)
	assert.True(t, syncErrors.IsNotFound(err))
}

func TestRollbackMalformedBody(t *testing.T) {
	store := newMemStore()
	srv := NewServer(store, lineage.NewManager(store))
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/rollback", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStorageFailureMapsTo500(t *testing.T) {
	store := newMemStore()
	store.failAll = true

	_, client := newTestServer(t, store)

	_, err := client.FetchDocument(context.Background(), "doc-1")
	require.Error(t, err)
	assert.False(t, syncErrors.IsNotFound(err))
	assert.False(t, syncErrors.IsValidation(err))
}

func TestNetworkErrorIsRetryable(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", WithHTTPClient(&http.Client{Timeout: 200 * time.Millisecond}))

	_, err := client.FetchDocument(context.Background(), "doc-1")
	require.Error(t, err)
	assert.True(t, syncErrors.IsRetryable(err))
	assert.True(t, syncErrors.IsKind(err, syncErrors.KindNetwork))
}
