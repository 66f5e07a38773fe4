package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"

	errs "github.com/vinayprograms/taskkit/errors"
	"github.com/vinayprograms/taskkit/logging"
	"github.com/vinayprograms/taskkit/stats"
	"github.com/vinayprograms/taskkit/taskstore"
	"github.com/vinayprograms/taskkit/telemetry"
)

// Notifier receives every created or status-changed task, typically to
// broadcast it to subscribed WebSocket clients. Implementations must not
// block; slow consumers are the notifier's problem, not the dispatcher's.
type Notifier interface {
	TaskUpdated(task taskstore.Task)
}

// Archiver forwards tasks to a storage peer. The result feeds the
// envelope's storage_status field.
type Archiver interface {
	Store(ctx context.Context, task taskstore.Task) error
}

// Service dispatches the six task operations onto the store and the
// stats tracker and wraps results in the uniform response envelope.
// It is the single place where typed core errors are caught; transport
// surfaces never see them raw.
type Service struct {
	store    taskstore.Store
	tracker  *stats.Tracker
	log      *logging.Logger
	notifier Notifier
	archiver Archiver
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger. Defaults to a fresh INFO logger.
func WithLogger(log *logging.Logger) Option {
	return func(s *Service) {
		s.log = log
	}
}

// WithNotifier sets the task update notifier.
func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

// WithArchiver sets the remote storage archiver.
func WithArchiver(a Archiver) Option {
	return func(s *Service) {
		s.archiver = a
	}
}

// New creates a Service over the given store and tracker.
func New(store taskstore.Store, tracker *stats.Tracker, opts ...Option) *Service {
	s := &Service{
		store:   store,
		tracker: tracker,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logging.New()
	}
	s.log = s.log.WithComponent("dispatcher")
	return s
}

// CreateTask creates a new pending task.
func (s *Service) CreateTask(ctx context.Context, req NewTaskRequest) TaskResponse {
	ctx, span := s.begin(ctx, "create-task")

	start := time.Now()
	task, err := s.store.Create(ctx, req.Title, req.Description, req.AssignedTo)
	if err != nil {
		s.log.RequestServed("create-task", time.Since(start), err)
		telemetry.End(span, err)
		// No storage step was attempted, so storage itself did not fail.
		return failureResponse(err, true)
	}

	s.tracker.RecordCreation()
	storageOK := s.archive(ctx, task)
	s.notify(task)

	s.log.TaskCreated(task.ID, task.Title)
	s.log.RequestServed("create-task", time.Since(start), nil)
	telemetry.RecordTask(span, task.ID, task.Status.String())
	telemetry.RecordStorageStatus(span, storageOK)
	telemetry.End(span, nil)

	return successResponse(task, storageOK)
}

// GetAllTasks returns every task in insertion order.
func (s *Service) GetAllTasks(ctx context.Context) ([]taskstore.Task, error) {
	ctx, span := s.begin(ctx, "get-all-tasks")

	start := time.Now()
	tasks, err := s.store.List(ctx)
	s.log.RequestServed("get-all-tasks", time.Since(start), err)
	telemetry.End(span, err)
	return tasks, err
}

// GetTask looks up a single task by ID.
func (s *Service) GetTask(ctx context.Context, taskID string) TaskResponse {
	ctx, span := s.begin(ctx, "get-task")

	start := time.Now()
	task, err := s.store.Get(ctx, taskID)
	s.log.RequestServed("get-task", time.Since(start), err)
	if err != nil {
		telemetry.End(span, err)
		// The read itself completed; the task simply is not there.
		return failureResponse(err, true)
	}

	telemetry.RecordTask(span, task.ID, task.Status.String())
	telemetry.End(span, nil)
	return successResponse(task, true)
}

// UpdateTaskStatus sets a task's status unconditionally.
func (s *Service) UpdateTaskStatus(ctx context.Context, req TaskStatusUpdateRequest) TaskResponse {
	ctx, span := s.begin(ctx, "update-task-status")

	start := time.Now()
	status, err := taskstore.ParseStatus(req.NewStatus)
	if err != nil {
		s.log.RequestServed("update-task-status", time.Since(start), err)
		telemetry.End(span, err)
		return failureResponse(err, true)
	}

	task, err := s.store.UpdateStatus(ctx, req.TaskID, status)
	if err != nil {
		s.log.RequestServed("update-task-status", time.Since(start), err)
		telemetry.End(span, err)
		storageOK := !errs.IsStorageFailure(err)
		return failureResponse(err, storageOK)
	}

	storageOK := s.archive(ctx, task)
	s.notify(task)

	s.log.StatusChanged(task.ID, task.Status.String())
	s.log.RequestServed("update-task-status", time.Since(start), nil)
	telemetry.RecordTask(span, task.ID, task.Status.String())
	telemetry.RecordStorageStatus(span, storageOK)
	telemetry.End(span, nil)

	return successResponse(task, storageOK)
}

// GetStatistics returns the usage snapshot.
func (s *Service) GetStatistics(ctx context.Context) (stats.TaskManagerStats, error) {
	ctx, span := s.begin(ctx, "get-statistics")

	start := time.Now()
	snap, err := s.tracker.Snapshot(ctx)
	s.log.RequestServed("get-statistics", time.Since(start), err)
	telemetry.End(span, err)
	return snap, err
}

// GetTasksByStatus returns all tasks whose status equals the given
// wire literal, in insertion order.
func (s *Service) GetTasksByStatus(ctx context.Context, rawStatus string) ([]taskstore.Task, error) {
	ctx, span := s.begin(ctx, "get-tasks-by-status")

	start := time.Now()
	status, err := taskstore.ParseStatus(rawStatus)
	if err != nil {
		s.log.RequestServed("get-tasks-by-status", time.Since(start), err)
		telemetry.End(span, err)
		return nil, err
	}

	tasks, err := s.store.ListByStatus(ctx, status)
	s.log.RequestServed("get-tasks-by-status", time.Since(start), err)
	telemetry.End(span, err)
	return tasks, err
}

// begin counts the inbound request and opens its span. Every operation
// goes through here exactly once, success or failure.
func (s *Service) begin(ctx context.Context, op string) (context.Context, trace.Span) {
	s.tracker.RecordRequest()
	return telemetry.GetTracer().StartOperation(ctx, op)
}

// archive forwards the task to the storage peer, if one is configured.
// With pure in-memory storage there is nothing that can fail, so the
// storage status is true.
func (s *Service) archive(ctx context.Context, task taskstore.Task) bool {
	if s.archiver == nil {
		return true
	}
	err := s.archiver.Store(ctx, task)
	s.log.ArchiveResult(task.ID, err)
	return err == nil
}

// notify broadcasts the task to the notifier, if one is configured.
func (s *Service) notify(task taskstore.Task) {
	if s.notifier != nil {
		s.notifier.TaskUpdated(task.Clone())
	}
}
