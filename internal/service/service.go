// Package service hosts the domain services that fold parser events
// into state: map runs, the inventory projection, farming sessions,
// rolling statistics, and auction-house tracking. Services declare a
// static manifest with versioned dependencies and are started by the
// Registry in dependency order; cross-service reads are direct method
// calls on the wired peer, while everything a service tells the rest
// of the system goes out as bus events.
package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/oraclelog/oracle-go/internal/bus"
	"github.com/oraclelog/oracle-go/pkg/oracle/event"
)

// Manifest identifies a service and its dependencies. Requires maps a
// service name to a version constraint like ">=1.0.0".
type Manifest struct {
	Name     string
	Version  string
	Requires map[string]string
}

// Service is the lifecycle contract the Registry drives.
type Service interface {
	Manifest() Manifest
	// Startup subscribes to the bus and prepares state. The context
	// outlives the call; handlers may use it for store operations.
	Startup(ctx context.Context) error
	// PostStartup runs after every service has started, for work that
	// needs the full set live (session restore, initial publishes).
	PostStartup(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// Base carries what every service shares: the bus handle, a logger,
// the lifecycle context, and tracking of the current player and
// session as announced on the bus.
type Base struct {
	name string
	bus  *bus.Bus
	log  *slog.Logger
	sub  *bus.Subscription

	ctx context.Context

	trackMu    sync.Mutex
	playerName string
	sessionID  uint
}

func newBase(name string, b *bus.Bus, log *slog.Logger) Base {
	if log == nil {
		log = discardLogger
	}
	return Base{name: name, bus: b, log: log.With("service", name)}
}

// subscribe registers one subscription for all of the service's event
// types. A single subscription keeps every handler of the service on
// one goroutine, so its state needs no locking against itself.
func (b *Base) subscribe(ctx context.Context, h bus.Handler, types ...event.Type) {
	b.ctx = ctx
	b.sub = b.bus.Subscribe(b.name, h, types...)
}

func (b *Base) unsubscribe() {
	if b.sub != nil {
		b.sub.Close()
		b.sub = nil
	}
}

// publish emits a service event stamped now.
func (b *Base) publish(data event.Payload) {
	b.bus.Publish(event.New(time.Now(), data))
}

// publishAt emits a service event with an explicit timestamp, used
// when the moment comes from the log rather than the wall clock.
func (b *Base) publishAt(ts time.Time, data event.Payload) {
	b.bus.Publish(event.New(ts, data))
}

// track updates the player and session tracking from the shared
// lifecycle events. Services call it first in their handler so the
// tracked values are current for the event being processed.
func (b *Base) track(ev event.Event) {
	b.trackMu.Lock()
	defer b.trackMu.Unlock()
	switch data := ev.Data.(type) {
	case event.SessionStartedData:
		b.sessionID = data.SessionID
		b.playerName = data.Player
	case event.SessionRestoreData:
		b.sessionID = data.SessionID
		b.playerName = data.Player
	case event.SessionFinishedData:
		b.sessionID = 0
	case event.PlayerChangedData:
		b.playerName = data.NewPlayer
	}
}

// PlayerName returns the currently tracked player, empty before the
// first join.
func (b *Base) PlayerName() string {
	b.trackMu.Lock()
	defer b.trackMu.Unlock()
	return b.playerName
}

// SessionID returns the currently tracked session id, zero when none
// is open.
func (b *Base) SessionID() uint {
	b.trackMu.Lock()
	defer b.trackMu.Unlock()
	return b.sessionID
}

// trackedTypes are the lifecycle events every service subscribes to on
// top of its own, so Base tracking stays current.
var trackedTypes = []event.Type{
	event.SessionStarted,
	event.SessionFinished,
	event.SessionRestore,
	event.PlayerChanged,
}

// withTracked appends the lifecycle types to a service's own list,
// deduplicated.
func withTracked(types ...event.Type) []event.Type {
	seen := make(map[event.Type]struct{}, len(types)+len(trackedTypes))
	out := make([]event.Type, 0, len(types)+len(trackedTypes))
	for _, t := range append(append([]event.Type{}, types...), trackedTypes...) {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
