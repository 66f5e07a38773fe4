package bus

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestMemoryPubSub(t *testing.T) {
	b := NewMemoryBus(DefaultConfig())
	defer b.Close()

	sub, err := b.Subscribe("tasks.updated")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Unsubscribe()

	if err := b.Publish("tasks.updated", []byte("task-1")); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	select {
	case msg := <-sub.Messages():
		if string(msg.Data) != "task-1" {
			t.Errorf("Expected task-1, got %s", msg.Data)
		}
		if msg.Subject != "tasks.updated" {
			t.Errorf("Expected subject tasks.updated, got %s", msg.Subject)
		}
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for message")
	}
}

func TestMemoryFanout(t *testing.T) {
	b := NewMemoryBus(DefaultConfig())
	defer b.Close()

	var subs []Subscription
	for i := 0; i < 3; i++ {
		sub, err := b.Subscribe("tasks.updated")
		if err != nil {
			t.Fatalf("Subscribe %d failed: %v", i, err)
		}
		subs = append(subs, sub)
	}

	b.Publish("tasks.updated", []byte("hello"))

	for i, sub := range subs {
		select {
		case msg := <-sub.Messages():
			if string(msg.Data) != "hello" {
				t.Errorf("Subscriber %d: unexpected payload %s", i, msg.Data)
			}
		case <-time.After(time.Second):
			t.Fatalf("Subscriber %d never received the message", i)
		}
	}
}

func TestMemoryQueueGroupLoadBalances(t *testing.T) {
	b := NewMemoryBus(DefaultConfig())
	defer b.Close()

	sub1, _ := b.QueueSubscribe("tasks.query", "responders")
	sub2, _ := b.QueueSubscribe("tasks.query", "responders")

	const n = 10
	for i := 0; i < n; i++ {
		b.Publish("tasks.query", []byte(fmt.Sprintf("%d", i)))
	}

	count := func(sub Subscription) int {
		c := 0
		for {
			select {
			case <-sub.Messages():
				c++
			case <-time.After(100 * time.Millisecond):
				return c
			}
		}
	}

	c1, c2 := count(sub1), count(sub2)
	if c1+c2 != n {
		t.Errorf("Expected %d total deliveries, got %d", n, c1+c2)
	}
	if c1 == 0 || c2 == 0 {
		t.Errorf("Expected both members to receive messages, got %d/%d", c1, c2)
	}
}

func TestMemoryRequestReply(t *testing.T) {
	b := NewMemoryBus(DefaultConfig())
	defer b.Close()

	sub, err := b.Subscribe("tasks.stats")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	// Responder echoes the request payload back on the reply subject.
	go func() {
		msg := <-sub.Messages()
		if msg.Reply == "" {
			t.Error("Expected a reply subject on the request")
			return
		}
		b.Publish(msg.Reply, append([]byte("re:"), msg.Data...))
	}()

	reply, err := b.Request("tasks.stats", []byte("ping"), time.Second)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if string(reply.Data) != "re:ping" {
		t.Errorf("Unexpected reply payload: %s", reply.Data)
	}
}

func TestMemoryRequestTimeout(t *testing.T) {
	b := NewMemoryBus(DefaultConfig())
	defer b.Close()

	// A subscriber that never replies.
	sub, _ := b.Subscribe("tasks.silent")
	defer sub.Unsubscribe()

	_, err := b.Request("tasks.silent", []byte("ping"), 50*time.Millisecond)
	if err != ErrTimeout {
		t.Errorf("Expected ErrTimeout, got %v", err)
	}
}

func TestMemoryRequestNoResponders(t *testing.T) {
	b := NewMemoryBus(DefaultConfig())
	defer b.Close()

	_, err := b.Request("tasks.nobody", []byte("ping"), 50*time.Millisecond)
	if err != ErrNoResponders {
		t.Errorf("Expected ErrNoResponders, got %v", err)
	}
}

func TestMemoryInvalidSubject(t *testing.T) {
	b := NewMemoryBus(DefaultConfig())
	defer b.Close()

	if err := b.Publish("", nil); err != ErrInvalidSubject {
		t.Errorf("Expected ErrInvalidSubject for empty subject, got %v", err)
	}
	if _, err := b.Subscribe("has space"); err != ErrInvalidSubject {
		t.Errorf("Expected ErrInvalidSubject for spaced subject, got %v", err)
	}
	if _, err := b.QueueSubscribe("tasks.query", ""); err != ErrInvalidSubject {
		t.Errorf("Expected ErrInvalidSubject for empty queue, got %v", err)
	}
}

func TestMemoryClose(t *testing.T) {
	b := NewMemoryBus(DefaultConfig())

	sub, _ := b.Subscribe("tasks.updated")

	if err := b.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Subscription channel must be closed.
	select {
	case _, ok := <-sub.Messages():
		if ok {
			t.Error("Expected closed channel after bus close")
		}
	case <-time.After(time.Second):
		t.Error("Channel not closed after bus close")
	}

	if err := b.Publish("tasks.updated", nil); err != ErrClosed {
		t.Errorf("Expected ErrClosed after close, got %v", err)
	}
	if _, err := b.Subscribe("tasks.updated"); err != ErrClosed {
		t.Errorf("Expected ErrClosed after close, got %v", err)
	}

	// Unsubscribe after close must not panic.
	if err := sub.Unsubscribe(); err != nil {
		t.Errorf("Unsubscribe after close: %v", err)
	}

	// Double close is a no-op.
	if err := b.Close(); err != nil {
		t.Errorf("Second close: %v", err)
	}
}

func TestMemoryConcurrentPublish(t *testing.T) {
	b := NewMemoryBus(Config{BufferSize: 1024})
	defer b.Close()

	sub, _ := b.Subscribe("tasks.updated")

	const publishers = 8
	const perPublisher = 50

	var wg sync.WaitGroup
	for p := 0; p < publishers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perPublisher; i++ {
				if err := b.Publish("tasks.updated", []byte("x")); err != nil {
					t.Errorf("Publish failed: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	received := 0
	for {
		select {
		case <-sub.Messages():
			received++
			if received == publishers*perPublisher {
				return
			}
		case <-time.After(time.Second):
			t.Fatalf("Expected %d messages, got %d", publishers*perPublisher, received)
		}
	}
}
