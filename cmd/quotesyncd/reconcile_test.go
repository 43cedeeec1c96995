package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c0deZ3R0/go-quote-sync/cache"
	"github.com/c0deZ3R0/go-quote-sync/config"
	"github.com/c0deZ3R0/go-quote-sync/quotesync"
	"github.com/c0deZ3R0/go-quote-sync/syncstate"
)

type staticFetcher struct {
	doc *quotesync.QuotationDocument
}

func (f *staticFetcher) FetchDocument(ctx context.Context, id string) (*quotesync.QuotationDocument, error) {
	return f.doc, nil
}

func seededStore(t *testing.T, doc quotesync.QuotationDocument) *cache.Store {
	t.Helper()
	store := cache.New(cache.NewMemoryMedium(0))
	require.True(t, store.Set(cache.KeyQuotations, map[string]quotesync.QuotationDocument{doc.ID: doc}))
	return store
}

func TestReconcileOnceDivergenceMovesStateToConflict(t *testing.T) {
	local := quotesync.QuotationDocument{
		ID:     "doc-1",
		Number: "CZ0001.251703V1",
		Fields: map[string]interface{}{"currency": "CZK"},
	}
	server := local
	server.Fields = map[string]interface{}{"currency": "EUR"}

	store := seededStore(t, local)
	report, err := reconcileOnce(context.Background(), store, &staticFetcher{doc: &server}, 0, "doc-1")
	require.NoError(t, err)

	assert.True(t, report.HasDifferences)
	assert.Equal(t, syncstate.StatusConflict, report.SyncStatus)

	// The transition is persisted: a fresh machine over the same cache sees
	// the conflict, and the indicator reports it as the most severe status.
	machine := syncstate.NewMachine(store)
	assert.Equal(t, syncstate.StatusConflict, machine.State("doc-1").Status)
	assert.Equal(t, syncstate.StatusConflict, machine.MostSevere())
}

func TestReconcileOnceMatchLeavesStateAlone(t *testing.T) {
	local := quotesync.QuotationDocument{
		ID:     "doc-1",
		Number: "CZ0001.251703V1",
		Fields: map[string]interface{}{"currency": "CZK"},
	}
	server := local

	store := seededStore(t, local)
	report, err := reconcileOnce(context.Background(), store, &staticFetcher{doc: &server}, 0, "doc-1")
	require.NoError(t, err)

	assert.False(t, report.HasDifferences)
	assert.Equal(t, syncstate.StatusSynced, report.SyncStatus)

	machine := syncstate.NewMachine(store)
	assert.Equal(t, syncstate.StatusSynced, machine.MostSevere())
}

func TestOpenCacheMediumRejectsUnknown(t *testing.T) {
	cfg := config.Default()
	cfg.Cache.Medium = "redis"

	_, _, err := openCacheMedium(cfg)
	assert.Error(t, err)
}
