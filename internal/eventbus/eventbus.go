// Package eventbus implements a bounded broadcast fan-out: producers
// never block, and a subscriber that falls behind observes a lag signal
// and skips ahead rather than stalling the bus.
package eventbus

import (
	"sync"
	"sync/atomic"

	"github.com/dairui1/claudia/protocol"
)

// DefaultCapacity is the bus-wide per-subscriber channel capacity.
const DefaultCapacity = 1000

// Bus is a multi-producer, multi-subscriber broadcast channel for
// protocol.Event values. The zero value is not usable; use New.
type Bus struct {
	capacity int

	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]*Subscription
}

// New creates a Bus with the given per-subscriber buffer capacity. A
// capacity <= 0 uses DefaultCapacity.
func New(capacity int) *Bus {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Bus{
		capacity: capacity,
		subs:     make(map[uint64]*Subscription),
	}
}

// Subscription is an independent cursor onto the bus. Each Subscribe call
// returns one; events are delivered in per-subscriber FIFO order, each at
// most once.
type Subscription struct {
	id     uint64
	bus    *Bus
	ch     chan protocol.Event
	lagged atomic.Uint64
}

// Events returns the channel to read from.
func (s *Subscription) Events() <-chan protocol.Event {
	return s.ch
}

// Lagged returns the cumulative count of events this subscriber missed
// because it fell behind. A non-zero value means the subscriber observed
// a gap; it never blocks the producer to avoid one.
func (s *Subscription) Lagged() uint64 {
	return s.lagged.Load()
}

// Close unsubscribes; the event channel is closed and no further sends
// are attempted. Safe to call more than once.
func (s *Subscription) Close() {
	s.bus.unsubscribe(s.id)
}

// Subscribe returns a new independent receiver onto the bus.
func (b *Bus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	sub := &Subscription{
		id:  id,
		bus: b,
		ch:  make(chan protocol.Event, b.capacity),
	}
	b.subs[id] = sub
	return sub
}

func (b *Bus) unsubscribe(id uint64) {
	b.mu.Lock()
	sub, ok := b.subs[id]
	delete(b.subs, id)
	b.mu.Unlock()
	if ok {
		close(sub.ch)
	}
}

// Publish fans the event out to every current subscriber. It never
// blocks: a subscriber whose buffer is full has its oldest pending event
// dropped to make room, and its lag counter is incremented.
func (b *Bus) Publish(evt protocol.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs {
		select {
		case sub.ch <- evt:
		default:
			// Buffer full: drop the oldest pending event and retry once.
			select {
			case <-sub.ch:
				sub.lagged.Add(1)
			default:
			}
			select {
			case sub.ch <- evt:
			default:
				sub.lagged.Add(1)
			}
		}
	}
}

// Shutdown closes every current subscriber's channel. The bus itself
// remains usable for new subscriptions afterward.
func (b *Bus) Shutdown() {
	b.mu.Lock()
	subs := b.subs
	b.subs = make(map[uint64]*Subscription)
	b.mu.Unlock()

	for _, sub := range subs {
		close(sub.ch)
	}
}
