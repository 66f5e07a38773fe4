package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	errs "github.com/vinayprograms/taskkit/errors"
	"github.com/vinayprograms/taskkit/logging"
	"github.com/vinayprograms/taskkit/service"
)

// Server is the public HTTP surface. Task operations live under /api
// and return the same envelopes the dispatcher produces; /ws/tasks
// upgrades to the WebSocket update stream.
type Server struct {
	svc *service.Service
	log *logging.Logger
	hub *Hub
	mux *http.ServeMux
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(log *logging.Logger) Option {
	return func(s *Server) {
		s.log = log
	}
}

// WithHub mounts a WebSocket hub at /ws/tasks.
func WithHub(hub *Hub) Option {
	return func(s *Server) {
		s.hub = hub
	}
}

// NewServer creates the HTTP surface over the given dispatcher.
func NewServer(svc *service.Service, opts ...Option) *Server {
	s := &Server{
		svc: svc,
		mux: http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logging.New()
	}
	s.log = s.log.WithComponent("httpapi")
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /api/tasks", s.handleCreateTask)
	s.mux.HandleFunc("GET /api/tasks", s.handleGetAllTasks)
	s.mux.HandleFunc("GET /api/tasks/{id}", s.handleGetTask)
	s.mux.HandleFunc("PUT /api/tasks/{id}/status", s.handleUpdateStatus)
	s.mux.HandleFunc("GET /api/tasks/status/{status}", s.handleTasksByStatus)
	s.mux.HandleFunc("GET /api/stats", s.handleStatistics)
	if s.hub != nil {
		s.mux.HandleFunc("GET /ws/tasks", s.hub.handleConnect)
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe runs the surface on addr until ctx is cancelled, then
// drains in-flight requests.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.SurfaceStarted("public", addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := httpServer.Shutdown(shutdownCtx)
	s.log.SurfaceStopped("public")
	return err
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req service.NewTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, errs.InvalidInput("malformed request body", errs.WithCause(err)))
		return
	}

	resp := s.svc.CreateTask(r.Context(), req)
	status := http.StatusCreated
	if !resp.Success {
		status = http.StatusBadRequest
	}
	s.writeJSON(w, status, resp)
}

func (s *Server) handleGetAllTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.svc.GetAllTasks(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	resp := s.svc.GetTask(r.Context(), r.PathValue("id"))
	status := http.StatusOK
	if !resp.Success {
		status = http.StatusNotFound
	}
	s.writeJSON(w, status, resp)
}

func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		NewStatus string `json:"new_status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, errs.InvalidInput("malformed request body", errs.WithCause(err)))
		return
	}

	resp := s.svc.UpdateTaskStatus(r.Context(), service.TaskStatusUpdateRequest{
		TaskID:    r.PathValue("id"),
		NewStatus: body.NewStatus,
	})
	status := http.StatusOK
	if !resp.Success {
		// An unknown status literal is the caller's fault; an unknown
		// task is a missing resource.
		if resp.ErrorCode() == errs.ErrCodeNotFound {
			status = http.StatusNotFound
		} else {
			status = http.StatusBadRequest
		}
	}
	s.writeJSON(w, status, resp)
}

func (s *Server) handleTasksByStatus(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.svc.GetTasksByStatus(r.Context(), r.PathValue("status"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	snap, err := s.svc.GetStatistics(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

// writeError maps a typed service error onto an HTTP status and writes
// its JSON form.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch errs.Code(err) {
	case errs.ErrCodeInvalidInput:
		status = http.StatusBadRequest
	case errs.ErrCodeNotFound:
		status = http.StatusNotFound
	case errs.ErrCodeTimeout, errs.ErrCodeUnavailable:
		status = http.StatusServiceUnavailable
	}

	body := errs.AsServiceError(err)
	if body == nil {
		body = errs.Internal(err.Error())
	}
	s.writeJSON(w, status, map[string]interface{}{"error": body})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("response_write_failed", map[string]interface{}{"error": err.Error()})
	}
}
