package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/vinayprograms/taskkit/logging"
	"github.com/vinayprograms/taskkit/service"
	"github.com/vinayprograms/taskkit/taskstore"
)

// Server is the same-host surface: JSON-RPC 2.0 over a line-framed byte
// stream, one message per line. Method names are the operation names;
// params and results are the same JSON shapes the HTTP surface uses.
//
// The server also implements service.Notifier, pushing a task-updated
// notification to the peer on every create and status change.
type Server struct {
	reader *bufio.Scanner
	writer io.Writer
	svc    *service.Service
	log    *logging.Logger

	writeMu sync.Mutex
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(log *logging.Logger) Option {
	return func(s *Server) {
		s.log = log
	}
}

// NewServer creates a JSON-RPC server over the given stream, typically
// stdin/stdout.
func NewServer(r io.Reader, w io.Writer, svc *service.Service, opts ...Option) *Server {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	s := &Server{
		reader: scanner,
		writer: w,
		svc:    svc,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logging.New()
	}
	s.log = s.log.WithComponent("jsonrpc")
	return s
}

// Serve reads and handles requests until EOF or context cancellation.
// EOF is a clean shutdown: the peer closed its end.
func (s *Server) Serve(ctx context.Context) error {
	s.log.SurfaceStarted("same-host", "stdio")
	defer s.log.SurfaceStopped("same-host")

	for s.reader.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := s.reader.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			s.sendError(nil, &Error{Code: ParseError, Message: "Parse error", Data: err.Error()})
			continue
		}
		if req.JSONRPC != "2.0" {
			s.sendError(req.ID, &Error{Code: InvalidRequest, Message: "Invalid Request", Data: "jsonrpc must be 2.0"})
			continue
		}

		result, rpcErr := s.dispatch(ctx, req.Method, req.Params)
		if req.ID == nil {
			// Notification from the peer: no reply either way.
			continue
		}
		if rpcErr != nil {
			s.sendError(req.ID, rpcErr)
			continue
		}
		s.send(Response{JSONRPC: "2.0", ID: req.ID, Result: result})
	}

	if err := s.reader.Err(); err != nil {
		return fmt.Errorf("read error: %w", err)
	}
	return nil
}

// dispatch routes one request to the service by operation name.
func (s *Server) dispatch(ctx context.Context, method string, params json.RawMessage) (interface{}, *Error) {
	switch method {
	case "create-task":
		var req service.NewTaskRequest
		if err := unmarshalParams(params, &req); err != nil {
			return nil, err
		}
		return s.svc.CreateTask(ctx, req), nil

	case "get-all-tasks":
		tasks, err := s.svc.GetAllTasks(ctx)
		if err != nil {
			return nil, rpcError(err)
		}
		return tasks, nil

	case "get-task":
		var req struct {
			TaskID string `json:"task_id"`
		}
		if err := unmarshalParams(params, &req); err != nil {
			return nil, err
		}
		return s.svc.GetTask(ctx, req.TaskID), nil

	case "update-task-status":
		var req service.TaskStatusUpdateRequest
		if err := unmarshalParams(params, &req); err != nil {
			return nil, err
		}
		return s.svc.UpdateTaskStatus(ctx, req), nil

	case "get-statistics":
		snap, err := s.svc.GetStatistics(ctx)
		if err != nil {
			return nil, rpcError(err)
		}
		return snap, nil

	case "get-tasks-by-status":
		var req struct {
			Status string `json:"status"`
		}
		if err := unmarshalParams(params, &req); err != nil {
			return nil, err
		}
		tasks, err := s.svc.GetTasksByStatus(ctx, req.Status)
		if err != nil {
			return nil, rpcError(err)
		}
		return tasks, nil

	default:
		return nil, &Error{Code: MethodNotFound, Message: "Method not found", Data: method}
	}
}

// TaskUpdated implements service.Notifier: the peer hears about every
// created or status-changed task as a notification.
func (s *Server) TaskUpdated(task taskstore.Task) {
	s.send(Notification{
		JSONRPC: "2.0",
		Method:  MethodTaskUpdated,
		Params:  task,
	})
}

func unmarshalParams(params json.RawMessage, v interface{}) *Error {
	if len(params) == 0 {
		return &Error{Code: InvalidParams, Message: "Invalid params", Data: "params required"}
	}
	if err := json.Unmarshal(params, v); err != nil {
		return &Error{Code: InvalidParams, Message: "Invalid params", Data: err.Error()}
	}
	return nil
}

func (s *Server) sendError(id interface{}, rpcErr *Error) {
	s.send(Response{JSONRPC: "2.0", ID: id, Error: rpcErr})
}

// send writes one JSON message followed by a newline. Serialized so
// responses and notifications never interleave on the stream.
func (s *Server) send(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		s.log.Error("marshal_failed", map[string]interface{}{"error": err.Error()})
		return
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.writer.Write(append(data, '\n')); err != nil {
		s.log.Warn("write_failed", map[string]interface{}{"error": err.Error()})
	}
}
