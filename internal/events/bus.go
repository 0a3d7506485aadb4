package events

import (
	"sync"
	"sync/atomic"

	"github.com/mongohaul/mongohaul/internal/constants"
)

// Bus fans events out to subscribers. Publish never blocks: a subscriber that
// stops draining its channel loses events rather than stalling the publisher,
// and the dropped counter records how many went missing.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[Type][]chan Event
	all         []chan Event
	bufferSize  int
	closed      bool
	dropped     atomic.Int64
}

// NewBus creates a bus. bufferSize <= 0 selects the default.
func NewBus(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = constants.EventBusDefaultBuffer
	}
	return &Bus{
		subscribers: make(map[Type][]chan Event),
		bufferSize:  bufferSize,
	}
}

// Subscribe returns a channel receiving every event of the given types. The
// same channel is registered under each type, so a single receive loop serves
// the whole set. On a closed bus the returned channel is already closed.
func (b *Bus) Subscribe(types ...Type) <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, b.bufferSize)
	if b.closed {
		close(ch)
		return ch
	}
	for _, t := range types {
		b.subscribers[t] = append(b.subscribers[t], ch)
	}
	return ch
}

// SubscribeAll returns a channel receiving every event published.
func (b *Bus) SubscribeAll() <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, b.bufferSize)
	if b.closed {
		close(ch)
		return ch
	}
	b.all = append(b.all, ch)
	return ch
}

// Publish delivers the event to matching subscribers without blocking.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	for _, ch := range b.subscribers[event.Type()] {
		select {
		case ch <- event:
		default:
			b.dropped.Add(1)
		}
	}
	for _, ch := range b.all {
		select {
		case ch <- event:
		default:
			b.dropped.Add(1)
		}
	}
}

// Unsubscribe detaches the channel from every type it was registered under
// and closes it, so receive loops ranging over it terminate.
func (b *Bus) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	var removed chan Event
	for t, subs := range b.subscribers {
		for i, sub := range subs {
			if sub == ch {
				subs[i] = subs[len(subs)-1]
				b.subscribers[t] = subs[:len(subs)-1]
				removed = sub
				break
			}
		}
	}
	for i, sub := range b.all {
		if sub == ch {
			b.all[i] = b.all[len(b.all)-1]
			b.all = b.all[:len(b.all)-1]
			removed = sub
			break
		}
	}
	if removed != nil {
		close(removed)
	}
}

// Close shuts the bus down and closes every subscriber channel.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	closed := make(map[chan Event]bool)
	for _, subs := range b.subscribers {
		for _, ch := range subs {
			if !closed[ch] {
				closed[ch] = true
				close(ch)
			}
		}
	}
	for _, ch := range b.all {
		if !closed[ch] {
			closed[ch] = true
			close(ch)
		}
	}
}

// Dropped returns how many events were discarded because a subscriber buffer
// was full.
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}
