package remote

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/vinayprograms/taskkit/bus"
	errs "github.com/vinayprograms/taskkit/errors"
	"github.com/vinayprograms/taskkit/logging"
	"github.com/vinayprograms/taskkit/taskstore"
)

// StorageClient forwards tasks to a task-storage peer over the bus.
// It implements service.Archiver: the dispatcher reports its outcome
// as the envelope's storage_status.
type StorageClient struct {
	bus     bus.MessageBus
	timeout time.Duration
}

// NewStorageClient creates a storage client over the given bus.
func NewStorageClient(b bus.MessageBus, opts ...ClientOption) *StorageClient {
	inner := NewClient(b, opts...)
	return &StorageClient{
		bus:     b,
		timeout: inner.timeout,
	}
}

// Store sends one task to the storage peer and waits for its ack.
func (c *StorageClient) Store(ctx context.Context, task taskstore.Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return errs.Wrap(err, "encoding task for storage")
	}

	msg, err := c.request(ctx, SubjectStorageAdd, data)
	if err != nil {
		return err
	}

	var reply ackReply
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		return errs.Wrap(err, "decoding storage ack")
	}
	if !reply.OK {
		return errs.StorageFailure("storage peer rejected task",
			errs.WithTaskID(task.ID),
			errs.WithCause(replyError(reply.Error)))
	}
	return nil
}

// StoredTasksByStatus asks the storage peer for archived tasks in the
// given status. Used at startup to reload previously forwarded tasks.
func (c *StorageClient) StoredTasksByStatus(ctx context.Context, status taskstore.TaskStatus) ([]taskstore.Task, error) {
	data, err := json.Marshal(statusQuery{Status: status.String()})
	if err != nil {
		return nil, errs.Wrap(err, "encoding status query")
	}

	msg, err := c.request(ctx, SubjectStorageByStatus, data)
	if err != nil {
		return nil, err
	}

	var reply tasksReply
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		return nil, errs.Wrap(err, "decoding tasks reply")
	}
	if !reply.OK {
		return nil, replyError(reply.Error)
	}
	return reply.Tasks, nil
}

// request mirrors Client.request; the storage client carries its own
// copy so it can stay a standalone Archiver.
func (c *StorageClient) request(ctx context.Context, subject string, data []byte) (*bus.Message, error) {
	client := Client{bus: c.bus, timeout: c.timeout}
	return client.request(ctx, subject, data)
}

// StorageServer is the storage peer: it archives every task forwarded
// to it and answers by-status queries over the archive. Archival is
// upsert by task ID, so repeated forwards of the same task (e.g. after
// status updates) keep one record.
type StorageServer struct {
	bus bus.MessageBus
	log *logging.Logger

	mu    sync.RWMutex
	tasks map[string]taskstore.Task
	order []string

	subMu   sync.Mutex
	subs    []bus.Subscription
	started bool
	wg      sync.WaitGroup
}

// NewStorageServer creates an empty storage peer over the given bus.
func NewStorageServer(b bus.MessageBus, log *logging.Logger) *StorageServer {
	if log == nil {
		log = logging.New()
	}
	return &StorageServer{
		bus:   b,
		log:   log.WithComponent("task-storage"),
		tasks: make(map[string]taskstore.Task),
	}
}

// Start subscribes to the storage subjects and begins serving.
func (s *StorageServer) Start(ctx context.Context) error {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if s.started {
		return nil
	}

	addSub, err := s.bus.QueueSubscribe(SubjectStorageAdd, DefaultQueue)
	if err != nil {
		return err
	}
	querySub, err := s.bus.QueueSubscribe(SubjectStorageByStatus, DefaultQueue)
	if err != nil {
		addSub.Unsubscribe()
		return err
	}

	s.subs = []bus.Subscription{addSub, querySub}
	s.started = true

	s.wg.Add(2)
	go s.serve(ctx, addSub, s.handleAdd)
	go s.serve(ctx, querySub, s.handleByStatus)

	s.log.SurfaceStarted("storage", SubjectStorageAdd)
	return nil
}

// Stop unsubscribes and waits for in-flight handlers.
func (s *StorageServer) Stop() error {
	s.subMu.Lock()
	subs := s.subs
	s.subs = nil
	s.started = false
	s.subMu.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
	s.wg.Wait()
	s.log.SurfaceStopped("storage")
	return nil
}

// Len returns the number of archived tasks.
func (s *StorageServer) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

func (s *StorageServer) serve(ctx context.Context, sub bus.Subscription, handle func(msg *bus.Message)) {
	defer s.wg.Done()
	for {
		select {
		case msg, ok := <-sub.Messages():
			if !ok {
				return
			}
			handle(msg)
		case <-ctx.Done():
			return
		}
	}
}

func (s *StorageServer) handleAdd(msg *bus.Message) {
	var task taskstore.Task
	if err := json.Unmarshal(msg.Data, &task); err != nil || task.ID == "" {
		s.replyTo(msg, ackReply{OK: false, Error: errs.InvalidInput("malformed task")})
		return
	}

	s.mu.Lock()
	if _, exists := s.tasks[task.ID]; !exists {
		s.order = append(s.order, task.ID)
	}
	s.tasks[task.ID] = task.Clone()
	s.mu.Unlock()

	s.log.Debug("archived", map[string]interface{}{"task_id": task.ID})
	s.replyTo(msg, ackReply{OK: true})
}

func (s *StorageServer) handleByStatus(msg *bus.Message) {
	var query statusQuery
	if err := json.Unmarshal(msg.Data, &query); err != nil {
		s.replyTo(msg, tasksReply{OK: false, Error: wireError(err)})
		return
	}
	status, err := taskstore.ParseStatus(query.Status)
	if err != nil {
		s.replyTo(msg, tasksReply{OK: false, Error: wireError(err)})
		return
	}

	s.mu.RLock()
	matched := make([]taskstore.Task, 0)
	for _, id := range s.order {
		if t := s.tasks[id]; t.Status == status {
			matched = append(matched, t.Clone())
		}
	}
	s.mu.RUnlock()

	s.replyTo(msg, tasksReply{OK: true, Tasks: matched})
}

func (s *StorageServer) replyTo(msg *bus.Message, v interface{}) {
	if msg.Reply == "" {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		s.log.Error("reply_marshal_failed", map[string]interface{}{"error": err.Error()})
		return
	}
	if err := s.bus.Publish(msg.Reply, data); err != nil {
		s.log.Warn("reply_publish_failed", map[string]interface{}{"error": err.Error()})
	}
}
