// Package taskstore owns the task collection and its status workflow.
//
// A Task has an opaque unique ID assigned at creation, immutable title,
// description, assignee and creation timestamp, and a status that moves
// freely between the four flat states:
//
//	pending → in-progress → completed
//	                      ↘ cancelled
//
// No transition graph is enforced: any status may follow any other, and
// re-setting the current status is a no-op success. There is no delete;
// the task set is append-only for the process lifetime.
//
// # Basic Usage
//
//	store := taskstore.NewMemoryStore()
//	defer store.Close()
//
//	task, err := store.Create(ctx, "Write spec", "draft the v1 spec", nil)
//	task, err = store.UpdateStatus(ctx, task.ID, taskstore.StatusCompleted)
//
// # Thread Safety
//
// All Store implementations are safe for concurrent use. Mutations are
// applied atomically: listings and counts never observe a partially
// applied create or status update.
package taskstore
