package store

import "time"

// Player is a character seen in the log.
type Player struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	Name       string `gorm:"uniqueIndex;not null"`
	Level      int    `gorm:"default:1"`
	Experience int64  `gorm:"default:0"`
	LastSeen   time.Time
	CreatedAt  time.Time
}

func (Player) TableName() string { return "players" }

// Item is a game item keyed by the game's internal item id. Price is
// mutable and refreshed from the price table.
type Item struct {
	ID        uint `gorm:"primaryKey;autoIncrement"`
	ItemID    int  `gorm:"uniqueIndex;not null"`
	Name      string
	Category  string
	Rarity    string
	Price     float64 `gorm:"default:0"`
	UpdatedAt time.Time
}

func (Item) TableName() string { return "items" }

// InventorySlot is one occupied bag slot of a player's inventory
// projection. Rows are keyed by (player, page, slot); emptied slots
// are deleted.
type InventorySlot struct {
	ID        uint `gorm:"primaryKey;autoIncrement"`
	PlayerID  uint `gorm:"uniqueIndex:idx_inventory_slot,priority:1;not null"`
	Page      int  `gorm:"uniqueIndex:idx_inventory_slot,priority:2;not null"`
	Slot      int  `gorm:"uniqueIndex:idx_inventory_slot,priority:3;not null"`
	ItemID    int  `gorm:"index;not null"`
	Quantity  int  `gorm:"default:1"`
	UpdatedAt time.Time
}

func (InventorySlot) TableName() string { return "inventory_slots" }

// Session is one farming session with its rolled-up statistics. The
// totals are recomputed from completions and transactions, never
// trusted incrementally across restarts.
type Session struct {
	ID         uint `gorm:"primaryKey;autoIncrement"`
	PlayerID   *uint
	PlayerName string
	IsActive   bool `gorm:"index"`
	StartedAt  time.Time
	EndedAt    *time.Time

	TotalMaps       int     `gorm:"default:0"`
	TotalTime       float64 `gorm:"default:0"` // seconds spent in maps
	CurrencyTotal   float64 `gorm:"default:0"`
	CurrencyPerHour float64 `gorm:"default:0"`
	CurrencyPerMap  float64 `gorm:"default:0"`
	ExpTotal        float64 `gorm:"default:0"`
	ExpPerHour      float64 `gorm:"default:0"`

	Title       string
	Description string
}

func (Session) TableName() string { return "sessions" }

// MapCompletion records one finished map run. (PlayerID, StartedAt) is
// unique so a replayed log segment cannot double-record a run.
type MapCompletion struct {
	ID        uint  `gorm:"primaryKey;autoIncrement"`
	PlayerID  uint  `gorm:"uniqueIndex:idx_completion_run,priority:1;not null"`
	SessionID *uint `gorm:"index"`

	MapID         int `gorm:"not null"`
	MapName       string
	MapDifficulty string

	StartedAt   time.Time `gorm:"uniqueIndex:idx_completion_run,priority:2;not null"`
	CompletedAt time.Time
	Duration    float64 // seconds

	CurrencyGained float64 `gorm:"default:0"`
	ExpGained      float64 `gorm:"default:0"`
	ItemsGained    int     `gorm:"default:0"`
	Anomalous      bool    `gorm:"default:false"`
	Description    string

	Items   []MapCompletionItem `gorm:"foreignKey:MapCompletionID"`
	Affixes []MapAffix          `gorm:"foreignKey:MapCompletionID"`
}

func (MapCompletion) TableName() string { return "map_completions" }

// MapCompletionItem is one item delta of a completion. Negative deltas
// are losses; Consumed marks entry costs spent before the map began.
type MapCompletionItem struct {
	ID              uint `gorm:"primaryKey;autoIncrement"`
	MapCompletionID uint `gorm:"index;not null"`
	ItemID          int  `gorm:"index;not null"`
	Delta           int  `gorm:"not null"`
	TotalPrice      float64 `gorm:"default:0"`
	Consumed        bool    `gorm:"default:false"`
}

func (MapCompletionItem) TableName() string { return "map_completion_items" }

// Affix is a unique map modifier seen in affix blocks.
type Affix struct {
	ID          uint `gorm:"primaryKey;autoIncrement"`
	AffixID     int  `gorm:"uniqueIndex;not null"`
	Description string
}

func (Affix) TableName() string { return "affixes" }

// MapAffix links a completion to an affix, at most once per pair.
type MapAffix struct {
	ID              uint `gorm:"primaryKey;autoIncrement"`
	MapCompletionID uint `gorm:"uniqueIndex:idx_map_affix,priority:1;not null"`
	AffixID         uint `gorm:"uniqueIndex:idx_map_affix,priority:2;not null"`
}

func (MapAffix) TableName() string { return "map_affixes" }

// Market transaction actions, from the perspective of the player's
// inventory while the auction house was open.
const (
	ActionGained = "gained"
	ActionLost   = "lost"
)

// MarketTransaction is one auction-house buy or sell inferred from
// inventory deltas while the market UI was open.
type MarketTransaction struct {
	ID        uint `gorm:"primaryKey;autoIncrement"`
	SessionID *uint
	PlayerID  *uint
	Timestamp time.Time `gorm:"index"`
	ItemID    int       `gorm:"index;not null"`
	Quantity  int       `gorm:"not null"`
	Action    string    `gorm:"size:10;not null"`
}

func (MarketTransaction) TableName() string { return "market_transactions" }

// Price table sources.
const (
	PriceSourceLocal  = "LOCAL"
	PriceSourceRemote = "REMOTE"
)

// PriceRevision records each load of the price table and where it
// came from.
type PriceRevision struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	Timestamp time.Time `gorm:"autoCreateTime"`
	Source    string    `gorm:"size:10;not null"`
	ItemCount int       `gorm:"default:0"`
}

func (PriceRevision) TableName() string { return "price_db_revisions" }
