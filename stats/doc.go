// Package stats aggregates task service usage statistics.
//
// The Tracker owns two monotonic lifetime counters (requests served,
// tasks created) and derives the task population tallies live from the
// task store, so a snapshot always reflects the store at the instant of
// the call:
//
//	tracker := stats.NewTracker(store)
//	tracker.RecordRequest()
//	snap, err := tracker.Snapshot(ctx)
//
// Counter increments are atomic and safe for concurrent use.
package stats
