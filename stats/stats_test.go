package stats

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/vinayprograms/taskkit/taskstore"
)

func TestCountersMonotonic(t *testing.T) {
	store := taskstore.NewMemoryStore()
	defer store.Close()

	tracker := NewTracker(store)

	for i := 0; i < 5; i++ {
		tracker.RecordRequest()
	}
	tracker.RecordCreation()

	if got := tracker.RequestCount(); got != 5 {
		t.Errorf("Expected request count 5, got %d", got)
	}
	if got := tracker.CreationCount(); got != 1 {
		t.Errorf("Expected creation count 1, got %d", got)
	}
}

func TestSnapshotReflectsStore(t *testing.T) {
	store := taskstore.NewMemoryStore()
	defer store.Close()

	tracker := NewTracker(store)
	ctx := context.Background()

	snap, err := tracker.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if snap.TotalTasks != 0 || snap.PendingTasks != 0 || snap.CompletedTasks != 0 {
		t.Errorf("Expected empty tallies, got %+v", snap)
	}

	a, _ := store.Create(ctx, "a", "", nil)
	store.Create(ctx, "b", "", nil)
	store.UpdateStatus(ctx, a.ID, taskstore.StatusCompleted)
	tracker.RecordCreation()
	tracker.RecordCreation()

	snap, err = tracker.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if snap.TotalTasks != 2 {
		t.Errorf("Expected total 2, got %d", snap.TotalTasks)
	}
	if snap.PendingTasks != 1 {
		t.Errorf("Expected 1 pending, got %d", snap.PendingTasks)
	}
	if snap.CompletedTasks != 1 {
		t.Errorf("Expected 1 completed, got %d", snap.CompletedTasks)
	}
	if snap.CreationCount != 2 {
		t.Errorf("Expected creation count 2, got %d", snap.CreationCount)
	}
}

func TestSnapshotNeverCached(t *testing.T) {
	store := taskstore.NewMemoryStore()
	defer store.Close()

	tracker := NewTracker(store)
	ctx := context.Background()

	// Snapshot, mutate, snapshot again: the second must see the mutation.
	before, _ := tracker.Snapshot(ctx)
	store.Create(ctx, "late arrival", "", nil)
	after, _ := tracker.Snapshot(ctx)

	if after.TotalTasks != before.TotalTasks+1 {
		t.Errorf("Snapshot appears cached: before=%d after=%d", before.TotalTasks, after.TotalTasks)
	}
}

func TestSnapshotMatchesListings(t *testing.T) {
	store := taskstore.NewMemoryStore()
	defer store.Close()

	tracker := NewTracker(store)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		task, _ := store.Create(ctx, fmt.Sprintf("task %d", i), "", nil)
		if i%2 == 0 {
			store.UpdateStatus(ctx, task.ID, taskstore.StatusCompleted)
		}
	}

	snap, _ := tracker.Snapshot(ctx)
	all, _ := store.List(ctx)
	pending, _ := store.ListByStatus(ctx, taskstore.StatusPending)
	completed, _ := store.ListByStatus(ctx, taskstore.StatusCompleted)

	if snap.TotalTasks != uint64(len(all)) {
		t.Errorf("total_tasks=%d, len(list)=%d", snap.TotalTasks, len(all))
	}
	if snap.PendingTasks != uint64(len(pending)) {
		t.Errorf("pending_tasks=%d, len(list_by_status)=%d", snap.PendingTasks, len(pending))
	}
	if snap.CompletedTasks != uint64(len(completed)) {
		t.Errorf("completed_tasks=%d, len(list_by_status)=%d", snap.CompletedTasks, len(completed))
	}
}

func TestConcurrentCounters(t *testing.T) {
	store := taskstore.NewMemoryStore()
	defer store.Close()

	tracker := NewTracker(store)

	const goroutines = 10
	const perGoroutine = 100

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				tracker.RecordRequest()
				tracker.RecordCreation()
			}
		}()
	}
	wg.Wait()

	want := uint64(goroutines * perGoroutine)
	if got := tracker.RequestCount(); got != want {
		t.Errorf("Expected request count %d, got %d", want, got)
	}
	if got := tracker.CreationCount(); got != want {
		t.Errorf("Expected creation count %d, got %d", want, got)
	}
}
