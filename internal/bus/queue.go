package bus

import (
	"context"
	"sync"
)

// Publisher accepts events without blocking.
type Publisher interface {
	Publish(ev Event)
}

// EventBus is an unbounded ordered queue of events with subscriber support.
// Publish never blocks; a single dispatcher delivers events to every
// subscriber in publication order.
type EventBus struct {
	mu          sync.Mutex
	queue       []Event
	subscribers []func(Event)

	notify    chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
}

// NewEventBus creates a new EventBus.
func NewEventBus() *EventBus {
	return &EventBus{
		notify: make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
}

// Publish appends an event to the queue. Events published after Close are
// dropped.
func (b *EventBus) Publish(ev Event) {
	select {
	case <-b.closed:
		return
	default:
	}

	b.mu.Lock()
	b.queue = append(b.queue, ev)
	b.mu.Unlock()

	select {
	case b.notify <- struct{}{}:
	default:
	}
}

// Subscribe registers a callback for every dispatched event. Subscribers
// must be registered before Dispatch starts.
func (b *EventBus) Subscribe(callback func(Event)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, callback)
}

// Dispatch delivers queued events until the context is cancelled or the bus
// is closed. After Close it drains what is left before returning.
func (b *EventBus) Dispatch(ctx context.Context) {
	for {
		b.deliver(b.take())

		select {
		case <-ctx.Done():
			return
		case <-b.closed:
			b.deliver(b.take())
			return
		case <-b.notify:
		}
	}
}

// Close stops accepting events and lets Dispatch return once drained.
func (b *EventBus) Close() {
	b.closeOnce.Do(func() { close(b.closed) })
}

// Len returns the number of events waiting for dispatch.
func (b *EventBus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

func (b *EventBus) take() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	events := b.queue
	b.queue = nil
	return events
}

func (b *EventBus) deliver(events []Event) {
	if len(events) == 0 {
		return
	}

	b.mu.Lock()
	callbacks := make([]func(Event), len(b.subscribers))
	copy(callbacks, b.subscribers)
	b.mu.Unlock()

	for _, ev := range events {
		for _, cb := range callbacks {
			safeCall(cb, ev)
		}
	}
}

func safeCall(cb func(Event), ev Event) {
	defer func() {
		// A panicking subscriber must not take the dispatcher down.
		_ = recover()
	}()
	cb(ev)
}
