package httpapi

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vinayprograms/taskkit/service"
	"github.com/vinayprograms/taskkit/stats"
	"github.com/vinayprograms/taskkit/taskstore"
)

func newWSServer(t *testing.T) (*httptest.Server, *service.Service, *Hub) {
	t.Helper()

	store := taskstore.NewMemoryStore()
	t.Cleanup(func() { store.Close() })

	tracker := stats.NewTracker(store)

	hub := NewHub(nil, nil)
	svc := service.New(store, tracker, service.WithNotifier(hub))
	hub.SetLister(svc)
	t.Cleanup(func() { hub.Close() })

	ts := httptest.NewServer(NewServer(svc, WithHub(hub)))
	t.Cleanup(ts.Close)
	return ts, svc, hub
}

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/tasks"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readWS(t *testing.T, conn *websocket.Conn, v interface{}) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("decode %q: %v", data, err)
	}
}

func TestSubscribeReceivesSnapshotAndUpdates(t *testing.T) {
	ts, svc, _ := newWSServer(t)
	ctx := t.Context()

	svc.CreateTask(ctx, service.NewTaskRequest{Title: "existing"})

	conn := dialWS(t, ts)
	if err := conn.WriteJSON(map[string]interface{}{
		"subscribe": map[string]string{"client_id": "tester"},
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	var snapshot taskListMessage
	readWS(t, conn, &snapshot)
	if len(snapshot.Tasks) != 1 || snapshot.Tasks[0].Title != "existing" {
		t.Fatalf("snapshot = %+v, want the existing task", snapshot.Tasks)
	}

	created := svc.CreateTask(ctx, service.NewTaskRequest{Title: "broadcast me"})

	var update taskUpdateMessage
	readWS(t, conn, &update)
	if update.TaskUpdate.ID != created.Task.ID {
		t.Errorf("update = %+v, want task %s", update.TaskUpdate, created.Task.ID)
	}

	svc.UpdateTaskStatus(ctx, service.TaskStatusUpdateRequest{
		TaskID:    created.Task.ID,
		NewStatus: "completed",
	})
	readWS(t, conn, &update)
	if update.TaskUpdate.Status != taskstore.StatusCompleted {
		t.Errorf("update status = %q, want completed", update.TaskUpdate.Status)
	}
}

func TestUnsubscribedClientHearsNothing(t *testing.T) {
	ts, svc, _ := newWSServer(t)

	conn := dialWS(t, ts)
	// Connected but never subscribed.
	svc.CreateTask(t.Context(), service.NewTaskRequest{Title: "silent"})

	conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("unsubscribed client received a message")
	}
}

func TestUnsubscribeStopsUpdates(t *testing.T) {
	ts, svc, _ := newWSServer(t)
	ctx := t.Context()

	conn := dialWS(t, ts)
	if err := conn.WriteJSON(map[string]interface{}{
		"subscribe": map[string]string{"client_id": "tester"},
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	var snapshot taskListMessage
	readWS(t, conn, &snapshot)

	if err := conn.WriteJSON(map[string]interface{}{
		"unsubscribe": map[string]string{},
	}); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	// Give the read loop a moment to process the unsubscribe.
	time.Sleep(100 * time.Millisecond)

	svc.CreateTask(ctx, service.NewTaskRequest{Title: "after unsubscribe"})

	conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("unsubscribed client received an update")
	}
}

func TestSlowClientDropped(t *testing.T) {
	ts, svc, hub := newWSServer(t)
	ctx := t.Context()

	conn := dialWS(t, ts)
	if err := conn.WriteJSON(map[string]interface{}{
		"subscribe": map[string]string{"client_id": "slowpoke"},
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	var snapshot taskListMessage
	readWS(t, conn, &snapshot)

	// The client now stops reading. Flood enough updates to fill its
	// send buffer and the socket behind it; the hub must drop the
	// client instead of stalling the dispatcher.
	padding := strings.Repeat("x", 64*1024)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < wsSendBuffer+16; i++ {
			svc.CreateTask(ctx, service.NewTaskRequest{
				Title:       "flood",
				Description: padding,
			})
		}
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("dispatcher blocked on a slow WebSocket client")
	}

	waitFor(t, func() bool { return hub.ClientCount() == 0 })
}

func TestHubTracksClients(t *testing.T) {
	ts, _, hub := newWSServer(t)

	conn := dialWS(t, ts)
	waitFor(t, func() bool { return hub.ClientCount() == 1 })

	conn.Close()
	waitFor(t, func() bool { return hub.ClientCount() == 0 })
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
