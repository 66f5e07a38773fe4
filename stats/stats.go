package stats

import (
	"context"
	"sync/atomic"

	"github.com/vinayprograms/taskkit/taskstore"
)

// TaskManagerStats is a point-in-time view of service usage.
//
// The three task tallies are computed live from the store at snapshot
// time, never cached. The two lifetime counters are monotonic and only
// ever increase for the life of the process.
type TaskManagerStats struct {
	TotalTasks     uint64 `json:"total_tasks"`
	PendingTasks   uint64 `json:"pending_tasks"`
	CompletedTasks uint64 `json:"completed_tasks"`
	CreationCount  uint64 `json:"creation_count"`
	RequestCount   uint64 `json:"request_count"`
}

// Tracker maintains the lifetime counters and derives usage snapshots
// from the task store.
type Tracker struct {
	store         taskstore.Store
	requestCount  atomic.Uint64
	creationCount atomic.Uint64
}

// NewTracker creates a tracker reading live tallies from store.
func NewTracker(store taskstore.Store) *Tracker {
	return &Tracker{store: store}
}

// RecordRequest increments the lifetime request counter.
// The dispatcher calls it once per inbound operation it serves,
// whether or not the operation succeeds.
func (t *Tracker) RecordRequest() {
	t.requestCount.Add(1)
}

// RecordCreation increments the lifetime creation counter.
// Called exactly once per successful task creation.
func (t *Tracker) RecordCreation() {
	t.creationCount.Add(1)
}

// RequestCount returns the current lifetime request count.
func (t *Tracker) RequestCount() uint64 {
	return t.requestCount.Load()
}

// CreationCount returns the current lifetime creation count.
func (t *Tracker) CreationCount() uint64 {
	return t.creationCount.Load()
}

// Snapshot computes the usage statistics at the instant of the call.
func (t *Tracker) Snapshot(ctx context.Context) (TaskManagerStats, error) {
	counts, err := t.store.Counts(ctx)
	if err != nil {
		return TaskManagerStats{}, err
	}
	return TaskManagerStats{
		TotalTasks:     counts.Total,
		PendingTasks:   counts.Pending,
		CompletedTasks: counts.Completed,
		CreationCount:  t.creationCount.Load(),
		RequestCount:   t.requestCount.Load(),
	}, nil
}
