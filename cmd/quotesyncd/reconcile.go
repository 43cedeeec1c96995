package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/c0deZ3R0/go-quote-sync/cache"
	"github.com/c0deZ3R0/go-quote-sync/config"
	"github.com/c0deZ3R0/go-quote-sync/logging"
	"github.com/c0deZ3R0/go-quote-sync/quotesync"
	"github.com/c0deZ3R0/go-quote-sync/reconcile"
	"github.com/c0deZ3R0/go-quote-sync/syncstate"
	"github.com/c0deZ3R0/go-quote-sync/transport/httptransport"
)

// newReconcileCommand runs a one-shot reconciliation pass from the client
// side: it compares the locally cached copy of a document against the server
// and prints the differences as JSON.
func newReconcileCommand() *cobra.Command {
	var serverURL string
	var documentID string

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Compare the locally cached document against the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return runReconcile(cmd.Context(), cfg, serverURL, documentID)
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "base URL of the sync server")
	cmd.Flags().StringVar(&documentID, "document", "", "document id to reconcile")
	cmd.MarkFlagRequired("document")
	return cmd
}

// reconcileReport is the command's output: the engine's result plus the sync
// state the document landed in.
type reconcileReport struct {
	*reconcile.Result
	SyncStatus syncstate.Status `json:"syncStatus"`
}

func runReconcile(ctx context.Context, cfg *config.Config, serverURL, documentID string) error {
	logging.Init(logging.GetConfigFromEnv())

	medium, cleanup, err := openCacheMedium(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	store := cache.New(medium)
	client := httptransport.NewClient(serverURL)

	report, err := reconcileOnce(ctx, store, client, cfg.Cache.MaxAge, documentID)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// reconcileOnce drives one recovery episode: the machine crosses the
// offline-to-online edge, the engine runs its single pass, and a divergent
// result moves the document's persisted sync state to conflict.
func reconcileOnce(ctx context.Context, store *cache.Store, fetcher quotesync.DocumentFetcher, maxAge time.Duration, documentID string) (*reconcileReport, error) {
	machine := syncstate.NewMachine(store)
	machine.SetOnline(false)
	if !machine.SetOnline(true) {
		return nil, fmt.Errorf("connectivity did not recover")
	}

	engine := reconcile.NewEngine(store, fetcher,
		reconcile.WithMaxCacheAge(maxAge))

	result, err := engine.OnConnectivityRestored(ctx, documentID)
	if err != nil {
		return nil, err
	}

	if result.HasDifferences {
		machine.Apply(documentID, syncstate.EventDivergenceFound)
	}

	return &reconcileReport{
		Result:     result,
		SyncStatus: machine.State(documentID).Status,
	}, nil
}

func openCacheMedium(cfg *config.Config) (cache.Medium, func(), error) {
	switch cfg.Cache.Medium {
	case "memory":
		return cache.NewMemoryMedium(int(cfg.Cache.QuotaBytes)), func() {}, nil
	case "badger":
		bm, err := cache.NewBadgerMedium(cache.DefaultBadgerConfig(cfg.Cache.Path))
		if err != nil {
			return nil, nil, err
		}
		return bm, func() { bm.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown cache medium %q", cfg.Cache.Medium)
	}
}
