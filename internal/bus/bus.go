// Package bus implements the hub's bounded, multi-producer
// multi-consumer broadcast channel carrying *mavlink.Protocol values
// between drivers. Producers never block: a subscriber that falls
// behind has its oldest pending message dropped and is signaled a lag
// count on its next Recv, but is never disconnected.
package bus

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/asgard/mavhub/internal/mavlink"
	"github.com/asgard/mavhub/internal/obsmetrics"
)

// DefaultCapacity is the bus's default per-subscriber queue depth.
const DefaultCapacity = 10000

// ErrClosed is returned by Recv if a subscriber's queue channel has
// been closed. Bus has no close operation and nothing in this package
// closes a queue, so Recv returns ErrClosed only in that case.
var ErrClosed = errors.New("bus: closed")

// Bus is a broadcast fan-out of Protocol values. The zero value is not
// usable; construct with New.
type Bus struct {
	capacity int

	mu     sync.Mutex
	subs   map[uint64]*Subscriber
	nextID uint64
}

// New creates a Bus with the given per-subscriber capacity. A capacity
// of 0 uses DefaultCapacity.
func New(capacity int) *Bus {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Bus{
		capacity: capacity,
		subs:     make(map[uint64]*Subscriber),
	}
}

// Subscriber is one consumer's view of the bus: an independent,
// bounded queue plus a count of messages dropped because the
// subscriber fell behind.
type Subscriber struct {
	id      uint64
	bus     *Bus
	ch      chan *mavlink.Protocol
	dropped atomic.Uint64

	// seenDropped is only ever touched by the goroutine calling Recv,
	// so it needs no synchronization of its own.
	seenDropped uint64
}

// Subscribe registers a new Subscriber. Every driver's Run loop calls
// this once per reconnect iteration, mirroring bus_tx.subscribe().
func (b *Bus) Subscribe() *Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++

	s := &Subscriber{
		id:  id,
		bus: b,
		ch:  make(chan *mavlink.Protocol, b.capacity),
	}
	b.subs[id] = s
	return s
}

// Unsubscribe removes a Subscriber; further Publish calls will not
// reach it. Safe to call multiple times.
func (b *Bus) Unsubscribe(s *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, s.id)
}

// Publish fans msg out to every current subscriber. It never blocks:
// a subscriber whose queue is full has its oldest message evicted to
// make room, and its dropped counter incremented.
func (b *Bus) Publish(msg *mavlink.Protocol) {
	b.mu.Lock()
	subs := make([]*Subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		select {
		case s.ch <- msg:
			continue
		default:
		}

		// Queue full: drop the oldest pending message, then retry.
		select {
		case <-s.ch:
			s.dropped.Add(1)
			obsmetrics.Get().BusLagEvents.Inc()
		default:
		}
		select {
		case s.ch <- msg:
		default:
			// Another publisher raced us and refilled the slot; the
			// message is lost either way, count it as a drop.
			s.dropped.Add(1)
			obsmetrics.Get().BusLagEvents.Inc()
		}
	}
}

// Recv blocks until a message is available or ctx is done. If
// messages were dropped since the last
// Recv call, the lag count is returned alongside the next message
// rather than as a separate call, since every production path here
// folds a drop notification into delivery of the next surviving
// message.
func (s *Subscriber) Recv(ctx context.Context) (*mavlink.Protocol, uint64, error) {
	select {
	case <-ctx.Done():
		return nil, 0, ctx.Err()
	case msg, ok := <-s.ch:
		if !ok {
			return nil, 0, ErrClosed
		}
		dropped := s.dropped.Load()
		lag := dropped - s.seenDropped
		s.seenDropped = dropped
		return msg, lag, nil
	}
}

// Close unsubscribes s from its bus and releases its queue.
func (s *Subscriber) Close() {
	s.bus.Unsubscribe(s)
}

// SubscriberCount reports the number of currently registered
// subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
