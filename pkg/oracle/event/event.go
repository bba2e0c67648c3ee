// Package event defines the event vocabulary of the oracle pipeline:
// parser events extracted from raw log lines and service events derived
// from them by the domain services.
package event

import (
	"encoding/json"
	"time"
)

// Type is the discriminant string carried by every event.
type Type string

// Parser event types, one per parser.
const (
	EnterLevel      Type = "enter_level"
	ExitLevel       Type = "exit_level"
	ItemChange      Type = "item_change"
	BagModify       Type = "bag_modify"
	ExpUpdate       Type = "exp_update"
	StageAffix      Type = "stage_affix"
	PlayerJoin      Type = "player_join"
	GamePause       Type = "game_pause"
	GameMessage     Type = "game_message"
	GameView        Type = "game_view"
	MapLoaded       Type = "map_loaded"
	LoadingProgress Type = "loading_progress"
	Ping            Type = "ping"
	S12Gameplay     Type = "s12_gameplay"
	TransitionStyle Type = "transition_style"
	WorldTransition Type = "world_transition"
)

// Service event types, derived by the domain services.
const (
	MapStarted        Type = "map_started"
	MapFinished       Type = "map_finished"
	MapRecord         Type = "map_record"
	SessionStarted    Type = "session_started"
	SessionFinished   Type = "session_finished"
	SessionRestore    Type = "session_restore"
	PlayerChanged     Type = "player_changed"
	SessionControl    Type = "session_control"
	StatsUpdate       Type = "stats_update"
	MarketAction      Type = "market_action"
	MarketTransaction Type = "market_transaction"
	Notification      Type = "notification"
	Discontinuity     Type = "discontinuity"
)

// Payload is the kind-specific body of an event.
type Payload interface {
	Kind() Type
}

// Event is the envelope shared by parser and service events.
// Immutable once emitted; produced by exactly one parser or service.
type Event struct {
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      Payload   `json:"data,omitempty"`

	// RawLine is the originating log line, populated only when raw line
	// capture is enabled.
	RawLine string `json:"raw_line,omitempty"`

	// Seq is the publication sequence number stamped by the bus, strictly
	// increasing in publish order. Zero for events that never crossed a
	// bus. Not part of the wire form.
	Seq uint64 `json:"-"`
}

// New builds an envelope around a payload, taking the type from the
// payload itself so the two can never disagree.
func New(ts time.Time, data Payload) Event {
	return Event{Type: data.Kind(), Timestamp: ts, Data: data}
}

// MarshalJSON emits the envelope with the payload inlined under "data".
func (e Event) MarshalJSON() ([]byte, error) {
	type wire struct {
		Type      Type      `json:"type"`
		Timestamp time.Time `json:"timestamp"`
		Data      any       `json:"data,omitempty"`
		RawLine   string    `json:"raw_line,omitempty"`
	}
	return json.Marshal(wire{Type: e.Type, Timestamp: e.Timestamp, Data: e.Data, RawLine: e.RawLine})
}
