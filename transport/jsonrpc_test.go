package transport

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/vinayprograms/taskkit/service"
	"github.com/vinayprograms/taskkit/stats"
	"github.com/vinayprograms/taskkit/taskstore"
)

// rpcPeer drives a Server over in-process pipes, the way a parent
// process would drive it over stdio.
type rpcPeer struct {
	t      *testing.T
	in     io.WriteCloser
	out    *json.Decoder
	server *Server
	done   chan error
}

func newRPCPeer(t *testing.T) (*rpcPeer, *service.Service) {
	t.Helper()

	store := taskstore.NewMemoryStore()
	t.Cleanup(func() { store.Close() })
	svc := service.New(store, stats.NewTracker(store))

	inR, inW := io.Pipe()
	outR, outW := io.Pipe()

	server := NewServer(inR, outW, svc)

	peer := &rpcPeer{
		t:      t,
		in:     inW,
		out:    json.NewDecoder(outR),
		server: server,
		done:   make(chan error, 1),
	}
	go func() {
		peer.done <- server.Serve(context.Background())
	}()
	t.Cleanup(func() {
		inW.Close()
		select {
		case <-peer.done:
		case <-time.After(time.Second):
			t.Error("server did not stop at EOF")
		}
	})
	return peer, svc
}

func (p *rpcPeer) call(id interface{}, method string, params interface{}) Response {
	p.t.Helper()

	req := Request{JSONRPC: "2.0", ID: id, Method: method}
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			p.t.Fatalf("marshal params: %v", err)
		}
		req.Params = data
	}
	line, err := json.Marshal(req)
	if err != nil {
		p.t.Fatalf("marshal request: %v", err)
	}
	if _, err := p.in.Write(append(line, '\n')); err != nil {
		p.t.Fatalf("write request: %v", err)
	}

	var resp Response
	if err := p.out.Decode(&resp); err != nil {
		p.t.Fatalf("decode response: %v", err)
	}
	return resp
}

func decodeResult(t *testing.T, resp Response, v interface{}) {
	t.Helper()
	data, err := json.Marshal(resp.Result)
	if err != nil {
		t.Fatalf("re-marshal result: %v", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("decode result: %v", err)
	}
}

func TestCreateThenGet(t *testing.T) {
	peer, _ := newRPCPeer(t)

	resp := peer.call(1, "create-task", service.NewTaskRequest{
		Title:       "wire the garage",
		Description: "three new sockets",
	})
	if resp.Error != nil {
		t.Fatalf("create-task error: %+v", resp.Error)
	}

	var created service.TaskResponse
	decodeResult(t, resp, &created)
	if !created.Success || created.Task == nil {
		t.Fatalf("create-task envelope = %+v, want success with task", created)
	}
	if created.Task.Status != taskstore.StatusPending {
		t.Errorf("new task status = %q, want pending", created.Task.Status)
	}

	resp = peer.call(2, "get-task", map[string]string{"task_id": created.Task.ID})
	if resp.Error != nil {
		t.Fatalf("get-task error: %+v", resp.Error)
	}
	var fetched service.TaskResponse
	decodeResult(t, resp, &fetched)
	if !fetched.Success || fetched.Task == nil || fetched.Task.ID != created.Task.ID {
		t.Errorf("get-task envelope = %+v, want task %s", fetched, created.Task.ID)
	}
}

func TestUpdateStatusAndListByStatus(t *testing.T) {
	peer, _ := newRPCPeer(t)

	var created service.TaskResponse
	decodeResult(t, peer.call(1, "create-task", service.NewTaskRequest{Title: "triage"}), &created)

	resp := peer.call(2, "update-task-status", service.TaskStatusUpdateRequest{
		TaskID:    created.Task.ID,
		NewStatus: "in-progress",
	})
	var updated service.TaskResponse
	decodeResult(t, resp, &updated)
	if !updated.Success || updated.Task.Status != taskstore.StatusInProgress {
		t.Fatalf("update envelope = %+v, want in-progress", updated)
	}

	var tasks []taskstore.Task
	decodeResult(t, peer.call(3, "get-tasks-by-status", map[string]string{"status": "in-progress"}), &tasks)
	if len(tasks) != 1 || tasks[0].ID != created.Task.ID {
		t.Errorf("get-tasks-by-status = %+v, want the updated task", tasks)
	}
}

func TestGetAllTasksAndStatistics(t *testing.T) {
	peer, _ := newRPCPeer(t)

	peer.call(1, "create-task", service.NewTaskRequest{Title: "a"})
	peer.call(2, "create-task", service.NewTaskRequest{Title: "b"})

	var tasks []taskstore.Task
	decodeResult(t, peer.call(3, "get-all-tasks", nil), &tasks)
	if len(tasks) != 2 || tasks[0].Title != "a" || tasks[1].Title != "b" {
		t.Errorf("get-all-tasks = %+v, want a then b", tasks)
	}

	var snap stats.TaskManagerStats
	decodeResult(t, peer.call(4, "get-statistics", nil), &snap)
	if snap.TotalTasks != 2 || snap.CreationCount != 2 {
		t.Errorf("statistics = %+v, want 2 total / 2 created", snap)
	}
	// Two creates, one list, one stats.
	if snap.RequestCount != 4 {
		t.Errorf("RequestCount = %d, want 4", snap.RequestCount)
	}
}

func TestErrorMapping(t *testing.T) {
	peer, _ := newRPCPeer(t)

	// Unknown method.
	resp := peer.call(1, "delete-task", map[string]string{"task_id": "x"})
	if resp.Error == nil || resp.Error.Code != MethodNotFound {
		t.Errorf("delete-task error = %+v, want code %d", resp.Error, MethodNotFound)
	}

	// Unknown status literal surfaces as invalid params.
	resp = peer.call(2, "get-tasks-by-status", map[string]string{"status": "archived"})
	if resp.Error == nil || resp.Error.Code != InvalidParams {
		t.Errorf("bad status error = %+v, want code %d", resp.Error, InvalidParams)
	}

	// Missing task travels inside the envelope, not as an RPC error.
	resp = peer.call(3, "get-task", map[string]string{"task_id": "no-such"})
	if resp.Error != nil {
		t.Fatalf("get-task RPC error = %+v, want envelope failure", resp.Error)
	}
	var envelope service.TaskResponse
	decodeResult(t, resp, &envelope)
	if envelope.Success || envelope.Task != nil {
		t.Errorf("envelope = %+v, want failure without task", envelope)
	}
	if envelope.Message == "" {
		t.Error("failure envelope has empty message")
	}
}

func TestMalformedInput(t *testing.T) {
	peer, _ := newRPCPeer(t)

	if _, err := peer.in.Write([]byte("this is not json\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	var resp Response
	if err := peer.out.Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != ParseError {
		t.Errorf("error = %+v, want code %d", resp.Error, ParseError)
	}

	if _, err := peer.in.Write([]byte(`{"jsonrpc":"1.0","id":9,"method":"get-all-tasks"}` + "\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := peer.out.Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != InvalidRequest {
		t.Errorf("error = %+v, want code %d", resp.Error, InvalidRequest)
	}
}

func TestTaskUpdatedNotifications(t *testing.T) {
	store := taskstore.NewMemoryStore()
	defer store.Close()

	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	defer inW.Close()

	// Wire the server in as the dispatcher's notifier, as the example
	// composition does.
	server := NewServer(inR, outW, nil)
	server.svc = service.New(store, stats.NewTracker(store), service.WithNotifier(server))

	go server.Serve(context.Background())

	dec := json.NewDecoder(outR)

	req, _ := json.Marshal(Request{
		JSONRPC: "2.0", ID: 1, Method: "create-task",
		Params: json.RawMessage(`{"title":"notify me"}`),
	})
	if _, err := inW.Write(append(req, '\n')); err != nil {
		t.Fatalf("write: %v", err)
	}

	// The notification is emitted during dispatch, before the response.
	var notif Notification
	if err := dec.Decode(&notif); err != nil {
		t.Fatalf("decode notification: %v", err)
	}
	if notif.Method != MethodTaskUpdated {
		t.Fatalf("notification method = %q, want %q", notif.Method, MethodTaskUpdated)
	}

	var resp Response
	if err := dec.Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Error != nil {
		t.Errorf("create-task error: %+v", resp.Error)
	}
}
