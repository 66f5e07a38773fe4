package taskstore

import (
	"context"

	errs "github.com/vinayprograms/taskkit/errors"
)

// ErrClosed indicates the store has been closed.
var ErrClosed = errs.Unavailable("task store closed")

// TaskStatus represents the lifecycle state of a task.
type TaskStatus string

// The four task states. They are flat: any status may follow any other,
// and the wire representation is the literal constant value.
const (
	StatusPending    TaskStatus = "pending"
	StatusInProgress TaskStatus = "in-progress"
	StatusCompleted  TaskStatus = "completed"
	StatusCancelled  TaskStatus = "cancelled"
)

// String returns the string representation of the status.
func (s TaskStatus) String() string {
	return string(s)
}

// Valid returns true if the status is one of the four defined states.
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// ParseStatus converts a wire literal into a TaskStatus.
// Returns an INVALID_INPUT error for anything but the four state names.
func ParseStatus(raw string) (TaskStatus, error) {
	s := TaskStatus(raw)
	if !s.Valid() {
		return "", errs.Newf(errs.ErrCodeInvalidInput, "unknown task status %q", raw)
	}
	return s, nil
}

// Task is a tracked unit of work.
//
// The ID is assigned by the store at creation and never changes. Title,
// description, assignee and creation time are likewise immutable; only
// Status changes after creation, and only via UpdateStatus.
type Task struct {
	// ID is the opaque unique identifier assigned at creation.
	ID string `json:"id"`

	// Title is a short human-readable name. Required.
	Title string `json:"title"`

	// Description is free-form detail text. May be empty.
	Description string `json:"description"`

	// Status is the current lifecycle state.
	Status TaskStatus `json:"status"`

	// CreatedAt is the creation time in Unix epoch milliseconds.
	CreatedAt uint64 `json:"created_at"`

	// AssignedTo is the optional assignee. Nil means unassigned and
	// the field is absent on the wire.
	AssignedTo *string `json:"assigned_to,omitempty"`
}

// Clone creates a deep copy of the task.
func (t Task) Clone() Task {
	clone := t
	if t.AssignedTo != nil {
		assignee := *t.AssignedTo
		clone.AssignedTo = &assignee
	}
	return clone
}

// Counts is a consistent point-in-time tally over the task population.
// All three values are taken under a single read lock so they can never
// disagree with each other.
type Counts struct {
	Total     uint64
	Pending   uint64
	Completed uint64
}

// Store owns the task collection and enforces its invariants.
type Store interface {
	// Create inserts a new pending task and returns it.
	// Returns INVALID_INPUT if title is empty after trimming.
	Create(ctx context.Context, title, description string, assignedTo *string) (Task, error)

	// Get retrieves a task by ID.
	// Returns NOT_FOUND if the ID is unknown, never a placeholder task.
	Get(ctx context.Context, id string) (Task, error)

	// List returns all tasks in insertion order.
	List(ctx context.Context) ([]Task, error)

	// ListByStatus returns all tasks whose status exactly equals status,
	// in insertion order. Empty slice if none match.
	ListByStatus(ctx context.Context, status TaskStatus) ([]Task, error)

	// UpdateStatus unconditionally sets the task's status and returns the
	// updated task. Re-setting the same status is a no-op success.
	// Returns NOT_FOUND if the ID is unknown, INVALID_INPUT if the status
	// is not one of the four states.
	UpdateStatus(ctx context.Context, id string, status TaskStatus) (Task, error)

	// Counts returns a consistent snapshot of the population tallies.
	Counts(ctx context.Context) (Counts, error)

	// Close releases resources held by the store.
	Close() error
}
