// Package metrics provides observability hooks for the quote-sync components.
package metrics

import "time"

// Collector provides hooks for observability.
type Collector interface {
	// RecordCacheHit records a cache read served from a fresh entry
	RecordCacheHit(key string)

	// RecordCacheMiss records a cache read that degraded to "no cache"
	RecordCacheMiss(key, reason string)

	// RecordCacheEviction records an entry evicted under quota pressure
	RecordCacheEviction(key string)

	// RecordReconciliation records a completed reconciliation pass
	RecordReconciliation(hasDifferences bool, d time.Duration)

	// RecordDifferences records how many fields diverged in a pass
	RecordDifferences(count int)

	// RecordRollback records a rollback attempt and its outcome
	RecordRollback(success bool, snapshotsDeleted int)

	// RecordStateTransition records a sync state machine transition
	RecordStateTransition(from, to string)
}

// NoOpCollector is a stub implementation that discards metrics.
type NoOpCollector struct{}

func (*NoOpCollector) RecordCacheHit(key string)                                 {}
func (*NoOpCollector) RecordCacheMiss(key, reason string)                        {}
func (*NoOpCollector) RecordCacheEviction(key string)                            {}
func (*NoOpCollector) RecordReconciliation(hasDifferences bool, d time.Duration) {}
func (*NoOpCollector) RecordDifferences(count int)                               {}
func (*NoOpCollector) RecordRollback(success bool, snapshotsDeleted int)         {}
func (*NoOpCollector) RecordStateTransition(from, to string)                     {}
