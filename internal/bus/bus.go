// Package bus fans events out from the parsing pipeline to services
// and gateways. Publishing enqueues synchronously to every matching
// subscriber's own bounded queue, so per-subscriber arrival order
// matches publish order; each subscriber drains its queue on its own
// goroutine, so slow handlers never stall the publisher beyond their
// queue capacity.
package bus

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/oraclelog/oracle-go/pkg/oracle/event"
)

// DefaultQueueSize bounds each subscriber's queue. At typical log
// rates this absorbs bursts of a few seconds of events.
const DefaultQueueSize = 256

// Handler processes a single event. A returned error is logged and
// delivery continues; a panic is recovered and logged likewise.
type Handler func(event.Event) error

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// Bus routes events to subscribers.
type Bus struct {
	log       *slog.Logger
	queueSize int

	mu     sync.RWMutex
	closed bool
	subs   []*Subscription

	seq      atomic.Uint64
	inflight sync.WaitGroup
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the logger for handler failures and drops.
func WithLogger(log *slog.Logger) Option {
	return func(b *Bus) {
		if log != nil {
			b.log = log
		}
	}
}

// WithQueueSize overrides the per-subscriber queue capacity.
func WithQueueSize(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.queueSize = n
		}
	}
}

// New creates a Bus ready for subscriptions.
func New(opts ...Option) *Bus {
	b := &Bus{
		log:       discardLogger,
		queueSize: DefaultQueueSize,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscription is one subscriber's queue and drain goroutine.
type Subscription struct {
	bus     *Bus
	name    string
	types   map[event.Type]struct{} // nil matches every type
	queue   chan event.Event
	stopCh  chan struct{}
	doneCh  chan struct{}
	closeMu sync.Mutex
	closed  bool
}

// Subscribe registers handler for the given event types. An empty
// types list matches nothing; use SubscribeAll for a full feed. The
// name appears in failure logs.
func (b *Bus) Subscribe(name string, h Handler, types ...event.Type) *Subscription {
	set := make(map[event.Type]struct{}, len(types))
	for _, t := range types {
		set[t] = struct{}{}
	}
	return b.subscribe(name, h, set)
}

// SubscribeAll registers handler for every event published.
func (b *Bus) SubscribeAll(name string, h Handler) *Subscription {
	return b.subscribe(name, h, nil)
}

func (b *Bus) subscribe(name string, h Handler, types map[event.Type]struct{}) *Subscription {
	s := &Subscription{
		bus:    b,
		name:   name,
		types:  types,
		queue:  make(chan event.Event, b.queueSize),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(s.doneCh)
		s.closed = true
		return s
	}
	b.subs = append(b.subs, s)
	b.mu.Unlock()

	go s.drain(h)
	return s
}

// Publish delivers ev to every matching subscriber in subscription
// order. It blocks while a subscriber's queue is full, which is the
// backpressure that keeps memory bounded. Every subscriber sees the
// same bus-assigned Seq, so independent consumers can agree on where
// an event sits in the stream. Publishing on a closed bus is a no-op.
func (b *Bus) Publish(ev event.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	ev.Seq = b.seq.Add(1)
	for _, s := range b.subs {
		if !s.matches(ev.Type) {
			continue
		}
		b.inflight.Add(1)
		select {
		case s.queue <- ev:
		case <-s.stopCh:
			b.inflight.Done()
		}
	}
}

// Drain blocks until every enqueued event has been handled, or ctx
// expires. Call before Close on shutdown so in-flight events are not
// lost.
func (b *Bus) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		b.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops all subscriptions and waits for their drain goroutines
// to exit. Safe to call multiple times.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := b.subs
	b.subs = nil
	b.mu.Unlock()

	for _, s := range subs {
		s.stop()
		<-s.doneCh
	}
}

func (s *Subscription) matches(t event.Type) bool {
	if s.types == nil {
		return true
	}
	_, ok := s.types[t]
	return ok
}

func (s *Subscription) drain(h Handler) {
	defer close(s.doneCh)
	for {
		select {
		case ev := <-s.queue:
			s.handle(h, ev)
			s.bus.inflight.Done()
		case <-s.stopCh:
			// Finish whatever is already queued before exiting so
			// Drain followed by Close loses nothing.
			for {
				select {
				case ev := <-s.queue:
					s.handle(h, ev)
					s.bus.inflight.Done()
				default:
					return
				}
			}
		}
	}
}

// handle runs the handler with panic isolation. One bad handler must
// not take down delivery to the rest of the bus.
func (s *Subscription) handle(h Handler, ev event.Event) {
	defer func() {
		if r := recover(); r != nil {
			s.bus.log.Error("subscriber panicked",
				"subscriber", s.name, "event_type", ev.Type, "panic", r)
		}
	}()
	if err := h(ev); err != nil {
		s.bus.log.Warn("subscriber handler failed",
			"subscriber", s.name, "event_type", ev.Type, "error", err)
	}
}

// Close removes the subscription from the bus and stops its drain
// goroutine. Safe to call multiple times.
func (s *Subscription) Close() {
	s.bus.remove(s)
	s.stop()
	<-s.doneCh
}

func (s *Subscription) stop() {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.stopCh)
}

func (b *Bus) remove(target *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s == target {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}
