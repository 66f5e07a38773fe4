package taskstore

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	errs "github.com/vinayprograms/taskkit/errors"
)

// MemoryStore implements Store using in-memory storage.
// Tasks live for the process lifetime; there is no delete.
type MemoryStore struct {
	mu     sync.RWMutex
	tasks  map[string]*Task
	order  []string // insertion order of task IDs
	closed atomic.Bool

	idGen func() string
	now   func() time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithIDGenerator sets a custom ID generator function.
func WithIDGenerator(gen func() string) MemoryOption {
	return func(s *MemoryStore) {
		s.idGen = gen
	}
}

// WithClock sets a custom time source.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		s.now = now
	}
}

// NewMemoryStore creates a new in-memory task store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		tasks: make(map[string]*Task),
		idGen: uuid.NewString,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create inserts a new pending task and returns it.
func (s *MemoryStore) Create(ctx context.Context, title, description string, assignedTo *string) (Task, error) {
	if s.closed.Load() {
		return Task{}, ErrClosed
	}

	title = strings.TrimSpace(title)
	if title == "" {
		return Task{}, errs.InvalidInput("title is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.idGen()
	for s.tasks[id] != nil {
		// Custom generators may collide; keep drawing until unique.
		id = s.idGen()
	}

	task := Task{
		ID:          id,
		Title:       title,
		Description: description,
		Status:      StatusPending,
		CreatedAt:   uint64(s.now().UnixMilli()),
	}
	if assignedTo != nil {
		assignee := *assignedTo
		task.AssignedTo = &assignee
	}

	s.tasks[id] = &task
	s.order = append(s.order, id)

	return task.Clone(), nil
}

// Get retrieves a task by ID.
func (s *MemoryStore) Get(ctx context.Context, id string) (Task, error) {
	if s.closed.Load() {
		return Task{}, ErrClosed
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[id]
	if !ok {
		return Task{}, errs.TaskNotFound(id)
	}
	return task.Clone(), nil
}

// List returns all tasks in insertion order.
func (s *MemoryStore) List(ctx context.Context) ([]Task, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	tasks := make([]Task, 0, len(s.order))
	for _, id := range s.order {
		tasks = append(tasks, s.tasks[id].Clone())
	}
	return tasks, nil
}

// ListByStatus returns all tasks with the given status, in insertion order.
func (s *MemoryStore) ListByStatus(ctx context.Context, status TaskStatus) ([]Task, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	if !status.Valid() {
		return nil, errs.Newf(errs.ErrCodeInvalidInput, "unknown task status %q", status)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	tasks := make([]Task, 0)
	for _, id := range s.order {
		if t := s.tasks[id]; t.Status == status {
			tasks = append(tasks, t.Clone())
		}
	}
	return tasks, nil
}

// UpdateStatus unconditionally sets the task's status.
func (s *MemoryStore) UpdateStatus(ctx context.Context, id string, status TaskStatus) (Task, error) {
	if s.closed.Load() {
		return Task{}, ErrClosed
	}
	if !status.Valid() {
		return Task{}, errs.Newf(errs.ErrCodeInvalidInput, "unknown task status %q", status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return Task{}, errs.TaskNotFound(id)
	}

	task.Status = status
	return task.Clone(), nil
}

// Counts returns a consistent snapshot of the population tallies.
func (s *MemoryStore) Counts(ctx context.Context) (Counts, error) {
	if s.closed.Load() {
		return Counts{}, ErrClosed
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	c := Counts{Total: uint64(len(s.tasks))}
	for _, t := range s.tasks {
		switch t.Status {
		case StatusPending:
			c.Pending++
		case StatusCompleted:
			c.Completed++
		}
	}
	return c, nil
}

// Close marks the store closed. Further operations return ErrClosed.
func (s *MemoryStore) Close() error {
	s.closed.Store(true)
	return nil
}
