package events

import (
	"sync"
)

// MemBusConfig configures an in-memory event bus.
type MemBusConfig struct {
	// SubscriberBufferSize is the channel buffer size per subscriber (default: 64).
	SubscriberBufferSize int
}

// MemBus is an in-memory Bus.
type MemBus struct {
	mu         sync.RWMutex
	handlers   map[string]map[uint64]Handler // topic -> id -> handler
	subs       map[string][]*memSub          // topic -> subscribers
	globalSubs []*memSub
	nextID     uint64
	bufSize    int
	closed     bool
}

// NewMemBus creates a new in-memory event bus with the given configuration.
func NewMemBus(config MemBusConfig) *MemBus {
	bufSize := config.SubscriberBufferSize
	if bufSize <= 0 {
		bufSize = 64
	}
	return &MemBus{
		handlers: make(map[string]map[uint64]Handler),
		subs:     make(map[string][]*memSub),
		bufSize:  bufSize,
	}
}

// Publish sends an event to handlers and subscribers of its topic and to
// wildcard subscribers. Handlers are called after the lock is released so
// they may publish or unsubscribe. Events on a closed bus are dropped.
func (b *MemBus) Publish(event Event) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}

	hs := make([]Handler, 0, len(b.handlers[event.Topic]))
	for _, h := range b.handlers[event.Topic] {
		hs = append(hs, h)
	}
	for _, sub := range b.subs[event.Topic] {
		sub.send(event)
	}
	for _, sub := range b.globalSubs {
		sub.send(event)
	}
	b.mu.RUnlock()

	for _, h := range hs {
		h(event)
	}
}

// On registers h for topic.
func (b *MemBus) On(topic string, h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	if b.handlers[topic] == nil {
		b.handlers[topic] = make(map[uint64]Handler)
	}
	b.handlers[topic][id] = h

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.handlers[topic], id)
		})
	}
}

// Subscribe registers a channel subscriber for topics, or all topics when none are given.
func (b *MemBus) Subscribe(topics ...string) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := newMemSub(b, b.bufSize, topics)
	if b.closed {
		sub.close()
		return sub
	}
	if len(topics) == 0 {
		b.globalSubs = append(b.globalSubs, sub)
		return sub
	}
	for _, topic := range topics {
		b.subs[topic] = append(b.subs[topic], sub)
	}
	return sub
}

// Close shuts down the bus and all active subscriptions.
func (b *MemBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for _, subs := range b.subs {
		for _, sub := range subs {
			sub.close()
		}
	}
	for _, sub := range b.globalSubs {
		sub.close()
	}
	b.subs = map[string][]*memSub{}
	b.globalSubs = nil
	b.handlers = map[string]map[uint64]Handler{}

	return nil
}

func (b *MemBus) remove(sub *memSub) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(sub.topics) == 0 {
		b.globalSubs = without(b.globalSubs, sub)
		return
	}
	for _, topic := range sub.topics {
		b.subs[topic] = without(b.subs[topic], sub)
	}
}

func without(list []*memSub, sub *memSub) []*memSub {
	out := list[:0]
	for _, s := range list {
		if s != sub {
			out = append(out, s)
		}
	}
	return out
}

// memSub is an in-memory subscription.
type memSub struct {
	bus    *MemBus
	topics []string
	ch     chan Event
	mu     sync.Mutex
	closed bool
}

func newMemSub(bus *MemBus, bufSize int, topics []string) *memSub {
	return &memSub{
		bus:    bus,
		topics: append([]string(nil), topics...),
		ch:     make(chan Event, bufSize),
	}
}

// Events returns a channel of events for this subscription.
func (s *memSub) Events() <-chan Event {
	return s.ch
}

// Close unsubscribes and releases resources.
func (s *memSub) Close() error {
	s.bus.remove(s)
	s.close()
	return nil
}

// close performs the actual channel close, guarded against double-close.
func (s *memSub) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// send delivers an event to the subscription's channel.
// If the channel is full or the subscription is closed, the event is dropped.
func (s *memSub) send(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	select {
	case s.ch <- event:
	default:
		// Drop if channel full.
	}
}

// Compile-time interface checks.
var _ Bus = (*MemBus)(nil)
var _ Subscription = (*memSub)(nil)
