package event

import "time"

// ItemDelta is a signed per-item quantity change, valued lazily by the
// consumer via the price table.
type ItemDelta struct {
	ItemID   int    `json:"item_id"`
	Quantity int    `json:"quantity"`
	Name     string `json:"name,omitempty"`
	Category string `json:"category,omitempty"`
}

// MapStartedData is published by the map service when a farmable map
// opens.
type MapStartedData struct {
	LevelID    int         `json:"level_id"`
	LevelUID   int         `json:"level_uid"`
	LevelType  int         `json:"level_type"`
	MapName    string      `json:"map_name,omitempty"`
	Difficulty string      `json:"difficulty,omitempty"`
	Consumed   []ItemDelta `json:"consumed,omitempty"` // entry cost
}

func (MapStartedData) Kind() Type { return MapStarted }

// MapFinishedData is published when the open map closes, before the
// completion record is persisted.
type MapFinishedData struct {
	LevelID    int         `json:"level_id"`
	MapName    string      `json:"map_name,omitempty"`
	Difficulty string      `json:"difficulty,omitempty"`
	Duration   float64     `json:"duration"` // seconds
	Changes    map[int]int `json:"changes"`  // item_id -> signed delta
	Affixes    []Affix     `json:"affixes,omitempty"`
	Anomalous  bool        `json:"anomalous,omitempty"` // force-closed
}

func (MapFinishedData) Kind() Type { return MapFinished }

// MapRecordData mirrors the persisted MapCompletion row.
type MapRecordData struct {
	CompletionID   uint      `json:"id"`
	Player         string    `json:"player_name"`
	SessionID      uint      `json:"session_id,omitempty"`
	MapID          int       `json:"map_id"`
	MapName        string    `json:"map_name,omitempty"`
	Difficulty     string    `json:"map_difficulty,omitempty"`
	StartedAt      time.Time `json:"started_at"`
	CompletedAt    time.Time `json:"completed_at"`
	Duration       float64   `json:"duration"`
	CurrencyGained float64   `json:"currency_gained"`
	ExpGained      float64   `json:"exp_gained"`
	ItemsGained    int       `json:"items_gained"`
}

func (MapRecordData) Kind() Type { return MapRecord }

// SessionStartedData announces a new farming session.
type SessionStartedData struct {
	SessionID uint      `json:"session_id"`
	Player    string    `json:"player_name"`
	StartedAt time.Time `json:"started_at"`
}

func (SessionStartedData) Kind() Type { return SessionStarted }

// SessionFinishedData announces a closed farming session with its final
// aggregates.
type SessionFinishedData struct {
	SessionID       uint      `json:"session_id"`
	Player          string    `json:"player_name"`
	StartedAt       time.Time `json:"started_at"`
	EndedAt         time.Time `json:"ended_at"`
	TotalMaps       int       `json:"total_maps"`
	CurrencyTotal   float64   `json:"currency_total"`
	CurrencyPerHour float64   `json:"currency_per_hour"`
	CurrencyPerMap  float64   `json:"currency_per_map"`
}

func (SessionFinishedData) Kind() Type { return SessionFinished }

// SessionRestoreData is published exactly once when an open session is
// reloaded after a restart, so subscribers can resynchronize.
type SessionRestoreData struct {
	SessionID       uint      `json:"session_id"`
	Player          string    `json:"player_name"`
	StartedAt       time.Time `json:"started_at"`
	TotalMaps       int       `json:"total_maps"`
	TotalTime       float64   `json:"total_time"`
	CurrencyTotal   float64   `json:"currency_total"`
	CurrencyPerHour float64   `json:"currency_per_hour"`
	CurrencyPerMap  float64   `json:"currency_per_map"`
	ExpTotal        float64   `json:"exp_total"`
	ExpPerHour      float64   `json:"exp_per_hour"`
}

func (SessionRestoreData) Kind() Type { return SessionRestore }

// PlayerChangedData is published when the observed player changes; the
// old name is empty for the first player of a run.
type PlayerChangedData struct {
	OldPlayer string `json:"old_player,omitempty"`
	NewPlayer string `json:"new_player"`
}

func (PlayerChangedData) Kind() Type { return PlayerChanged }

// SessionControlAction selects a session lifecycle operation.
type SessionControlAction string

const (
	SessionControlStart SessionControlAction = "start"
	SessionControlClose SessionControlAction = "close"
	SessionControlNext  SessionControlAction = "next"
)

// SessionControlData is the explicit session command event.
type SessionControlData struct {
	Action     SessionControlAction `json:"action"`
	PlayerName string               `json:"player_name,omitempty"`
}

func (SessionControlData) Kind() Type { return SessionControl }

// StatsUpdateData carries the rolling rate aggregates.
type StatsUpdateData struct {
	TotalMaps       int     `json:"total_maps"`
	TotalTime       float64 `json:"total_time"` // seconds spent in maps
	CurrencyTotal   float64 `json:"currency_total"`
	CurrencyPerHour float64 `json:"currency_per_hour"`
	CurrencyPerMap  float64 `json:"currency_per_map"`
	ExpTotal        float64 `json:"exp_total"`
	ExpPerHour      float64 `json:"exp_per_hour"`
}

func (StatsUpdateData) Kind() Type { return StatsUpdate }

// MarketActionData reports the auction house opening or closing.
type MarketActionData struct {
	Open bool `json:"open"`
}

func (MarketActionData) Kind() Type { return MarketAction }

// MarketTransactionData mirrors a persisted ledger entry.
type MarketTransactionData struct {
	TransactionID uint   `json:"transaction_id"`
	ItemID        int    `json:"item_id"`
	Quantity      int    `json:"quantity"`
	Action        string `json:"action"` // bought, sold, gained, lost
	SessionID     uint   `json:"session_id,omitempty"`
}

func (MarketTransactionData) Kind() Type { return MarketTransaction }

// Severity tags a notification.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// NotificationData surfaces a service-level failure or notice to
// subscribers instead of an error crossing component boundaries.
type NotificationData struct {
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

func (NotificationData) Kind() Type { return Notification }

// DiscontinuityData signals a structural break in the log stream
// (truncation or rotation); all per-stream state must reset.
type DiscontinuityData struct {
	Reason string `json:"reason"`
}

func (DiscontinuityData) Kind() Type { return Discontinuity }
