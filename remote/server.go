package remote

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/vinayprograms/taskkit/bus"
	"github.com/vinayprograms/taskkit/logging"
	"github.com/vinayprograms/taskkit/service"
)

// Server answers cross-host queries over the message bus. It exposes
// get-tasks-by-status and get-statistics; mutations stay on the public
// and same-host surfaces.
type Server struct {
	bus   bus.MessageBus
	svc   *service.Service
	log   *logging.Logger
	queue string

	mu      sync.Mutex
	subs    []bus.Subscription
	started bool
	wg      sync.WaitGroup
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServerLogger sets the logger.
func WithServerLogger(log *logging.Logger) ServerOption {
	return func(s *Server) {
		s.log = log
	}
}

// WithQueue sets the queue group responder replicas share.
func WithQueue(queue string) ServerOption {
	return func(s *Server) {
		s.queue = queue
	}
}

// NewServer creates a responder over the given bus and dispatcher.
func NewServer(b bus.MessageBus, svc *service.Service, opts ...ServerOption) *Server {
	s := &Server{
		bus:   b,
		svc:   svc,
		queue: DefaultQueue,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logging.New()
	}
	s.log = s.log.WithComponent("remote")
	return s
}

// Start subscribes to the query subjects and begins answering.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}

	bySub, err := s.bus.QueueSubscribe(SubjectTasksByStatus, s.queue)
	if err != nil {
		return err
	}
	statsSub, err := s.bus.QueueSubscribe(SubjectStatistics, s.queue)
	if err != nil {
		bySub.Unsubscribe()
		return err
	}

	s.subs = []bus.Subscription{bySub, statsSub}
	s.started = true

	s.wg.Add(2)
	go s.serve(ctx, bySub, s.handleTasksByStatus)
	go s.serve(ctx, statsSub, s.handleStatistics)

	s.log.SurfaceStarted("cross-host", SubjectTasksByStatus+","+SubjectStatistics)
	return nil
}

// Stop unsubscribes and waits for in-flight handlers.
func (s *Server) Stop() error {
	s.mu.Lock()
	subs := s.subs
	s.subs = nil
	s.started = false
	s.mu.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
	s.wg.Wait()
	s.log.SurfaceStopped("cross-host")
	return nil
}

// serve pumps one subscription through a handler until it closes.
func (s *Server) serve(ctx context.Context, sub bus.Subscription, handle func(ctx context.Context, msg *bus.Message)) {
	defer s.wg.Done()
	for {
		select {
		case msg, ok := <-sub.Messages():
			if !ok {
				return
			}
			if msg.Reply == "" {
				// Fire-and-forget callers get nothing back.
				continue
			}
			handle(ctx, msg)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) handleTasksByStatus(ctx context.Context, msg *bus.Message) {
	var query statusQuery
	if err := json.Unmarshal(msg.Data, &query); err != nil {
		s.reply(msg.Reply, tasksReply{OK: false, Error: wireError(err)})
		return
	}

	tasks, err := s.svc.GetTasksByStatus(ctx, query.Status)
	if err != nil {
		s.reply(msg.Reply, tasksReply{OK: false, Error: wireError(err)})
		return
	}
	s.reply(msg.Reply, tasksReply{OK: true, Tasks: tasks})
}

func (s *Server) handleStatistics(ctx context.Context, msg *bus.Message) {
	snap, err := s.svc.GetStatistics(ctx)
	if err != nil {
		s.reply(msg.Reply, statsReply{OK: false, Error: wireError(err)})
		return
	}
	s.reply(msg.Reply, statsReply{OK: true, Stats: &snap})
}

func (s *Server) reply(subject string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		s.log.Error("reply_marshal_failed", map[string]interface{}{"error": err.Error()})
		return
	}
	if err := s.bus.Publish(subject, data); err != nil {
		s.log.Warn("reply_publish_failed", map[string]interface{}{"error": err.Error()})
	}
}
