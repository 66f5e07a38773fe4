package bus

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// MemoryBus implements MessageBus using in-memory channels.
// Useful for testing and for wiring the "cross-host" surface inside a
// single process.
type MemoryBus struct {
	config Config

	mu          sync.RWMutex
	subs        map[string][]*memorySub
	queueGroups map[string]map[string][]*memorySub // subject -> queue -> subs
	queueNext   map[string]int                     // subject.queue -> round-robin cursor
	closed      atomic.Bool

	// For request/reply
	replyMu   sync.Mutex
	replySubs map[string]chan *Message
}

type memorySub struct {
	subject string
	queue   string
	ch      chan *Message
	closed  atomic.Bool
	bus     *MemoryBus
}

// NewMemoryBus creates a new in-memory message bus.
func NewMemoryBus(cfg Config) *MemoryBus {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultConfig().BufferSize
	}

	return &MemoryBus{
		config:      cfg,
		subs:        make(map[string][]*memorySub),
		queueGroups: make(map[string]map[string][]*memorySub),
		queueNext:   make(map[string]int),
		replySubs:   make(map[string]chan *Message),
	}
}

// Publish sends a message to all subscribers.
func (b *MemoryBus) Publish(subject string, data []byte) error {
	if err := ValidateSubject(subject); err != nil {
		return err
	}
	if b.closed.Load() {
		return ErrClosed
	}

	msg := &Message{
		Subject: subject,
		Data:    data,
	}

	b.deliver(subject, msg)
	b.deliverToReply(subject, msg)

	return nil
}

// deliver fans the message out to regular subscribers and to one member
// of each queue group.
func (b *MemoryBus) deliver(subject string, msg *Message) {
	b.mu.Lock()
	subs := append([]*memorySub(nil), b.subs[subject]...)

	var queuePicks []*memorySub
	for queue, qsubs := range b.queueGroups[subject] {
		if pick := b.pickQueueMember(subject, queue, qsubs); pick != nil {
			queuePicks = append(queuePicks, pick)
		}
	}
	b.mu.Unlock()

	for _, sub := range subs {
		sub.offer(msg)
	}
	for _, sub := range queuePicks {
		sub.offer(msg)
	}
}

// pickQueueMember selects the next live member round-robin.
// Caller holds b.mu.
func (b *MemoryBus) pickQueueMember(subject, queue string, subs []*memorySub) *memorySub {
	if len(subs) == 0 {
		return nil
	}
	key := subject + "." + queue
	start := b.queueNext[key]
	for i := 0; i < len(subs); i++ {
		sub := subs[(start+i)%len(subs)]
		if !sub.closed.Load() {
			b.queueNext[key] = (start + i + 1) % len(subs)
			return sub
		}
	}
	return nil
}

// deliverToReply completes a pending request, if the subject is one of
// our reply inboxes.
func (b *MemoryBus) deliverToReply(subject string, msg *Message) {
	b.replyMu.Lock()
	ch, ok := b.replySubs[subject]
	if ok {
		delete(b.replySubs, subject)
	}
	b.replyMu.Unlock()

	if ok {
		select {
		case ch <- msg:
		default:
		}
		close(ch)
	}
}

// offer attempts a non-blocking send; slow subscribers drop messages
// rather than stalling publishers.
func (s *memorySub) offer(msg *Message) {
	if s.closed.Load() {
		return
	}
	select {
	case s.ch <- msg:
	default:
	}
}

// Subscribe creates a subscription to a subject.
func (b *MemoryBus) Subscribe(subject string) (Subscription, error) {
	if err := ValidateSubject(subject); err != nil {
		return nil, err
	}
	if b.closed.Load() {
		return nil, ErrClosed
	}

	sub := &memorySub{
		subject: subject,
		ch:      make(chan *Message, b.config.BufferSize),
		bus:     b,
	}

	b.mu.Lock()
	b.subs[subject] = append(b.subs[subject], sub)
	b.mu.Unlock()

	return sub, nil
}

// QueueSubscribe creates a queue subscription.
func (b *MemoryBus) QueueSubscribe(subject, queue string) (Subscription, error) {
	if err := ValidateSubject(subject); err != nil {
		return nil, err
	}
	if queue == "" {
		return nil, ErrInvalidSubject
	}
	if b.closed.Load() {
		return nil, ErrClosed
	}

	sub := &memorySub{
		subject: subject,
		queue:   queue,
		ch:      make(chan *Message, b.config.BufferSize),
		bus:     b,
	}

	b.mu.Lock()
	if b.queueGroups[subject] == nil {
		b.queueGroups[subject] = make(map[string][]*memorySub)
	}
	b.queueGroups[subject][queue] = append(b.queueGroups[subject][queue], sub)
	b.mu.Unlock()

	return sub, nil
}

// Request sends a request and waits for a single reply.
func (b *MemoryBus) Request(subject string, data []byte, timeout time.Duration) (*Message, error) {
	if err := ValidateSubject(subject); err != nil {
		return nil, err
	}
	if b.closed.Load() {
		return nil, ErrClosed
	}

	// Nobody listening means nobody will ever reply.
	if !b.hasResponders(subject) {
		return nil, ErrNoResponders
	}

	replySubject := "_INBOX." + uuid.NewString()
	replyCh := make(chan *Message, 1)

	b.replyMu.Lock()
	b.replySubs[replySubject] = replyCh
	b.replyMu.Unlock()

	msg := &Message{
		Subject: subject,
		Data:    data,
		Reply:   replySubject,
	}
	b.deliver(subject, msg)

	select {
	case reply, ok := <-replyCh:
		if !ok || reply == nil {
			return nil, ErrTimeout
		}
		return reply, nil
	case <-time.After(timeout):
		b.replyMu.Lock()
		delete(b.replySubs, replySubject)
		b.replyMu.Unlock()
		return nil, ErrTimeout
	}
}

// hasResponders reports whether any live subscription covers subject.
func (b *MemoryBus) hasResponders(subject string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs[subject] {
		if !sub.closed.Load() {
			return true
		}
	}
	for _, qsubs := range b.queueGroups[subject] {
		for _, sub := range qsubs {
			if !sub.closed.Load() {
				return true
			}
		}
	}
	return false
}

// Close shuts down the bus.
func (b *MemoryBus) Close() error {
	if b.closed.Swap(true) {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, subs := range b.subs {
		for _, sub := range subs {
			if !sub.closed.Swap(true) {
				close(sub.ch)
			}
		}
	}
	for _, queues := range b.queueGroups {
		for _, subs := range queues {
			for _, sub := range subs {
				if !sub.closed.Swap(true) {
					close(sub.ch)
				}
			}
		}
	}

	b.subs = nil
	b.queueGroups = nil

	return nil
}

// Messages returns the message channel.
func (s *memorySub) Messages() <-chan *Message {
	return s.ch
}

// Unsubscribe cancels the subscription.
func (s *memorySub) Unsubscribe() error {
	if s.closed.Swap(true) {
		return nil
	}
	close(s.ch)

	b := s.bus
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs == nil {
		// Bus already closed and detached everything.
		return nil
	}
	if s.queue == "" {
		b.subs[s.subject] = removeSub(b.subs[s.subject], s)
	} else if queues := b.queueGroups[s.subject]; queues != nil {
		queues[s.queue] = removeSub(queues[s.queue], s)
	}
	return nil
}

func removeSub(subs []*memorySub, target *memorySub) []*memorySub {
	out := subs[:0]
	for _, sub := range subs {
		if sub != target {
			out = append(out, sub)
		}
	}
	return out
}
