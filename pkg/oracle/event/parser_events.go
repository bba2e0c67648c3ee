package event

// EnterLevelData is emitted when the three-line level entry sequence
// completes.
type EnterLevelData struct {
	LevelID   int `json:"level_id"`
	LevelUID  int `json:"level_uid"`
	LevelType int `json:"level_type"`
}

func (EnterLevelData) Kind() Type { return EnterLevel }

// ExitLevelData carries no fields beyond the envelope timestamp.
type ExitLevelData struct{}

func (ExitLevelData) Kind() Type { return ExitLevel }

// ItemChangeData records a single inventory slot mutation reported by
// the game's ItemChange log line.
type ItemChangeData struct {
	ItemID   int    `json:"item_id"`
	Action   string `json:"action"` // Add, Update or Delete
	Amount   int    `json:"amount"` // zero for Delete
	Page     int    `json:"page"`
	Slot     int    `json:"slot"`
	Name     string `json:"name,omitempty"`
	Category string `json:"category,omitempty"`
}

func (ItemChangeData) Kind() Type { return ItemChange }

// BagModifyData records a bag slot assignment from BagMgr.
type BagModifyData struct {
	Page     int    `json:"page"`
	Slot     int    `json:"slot"`
	ItemID   int    `json:"item_id"`
	Quantity int    `json:"quantity"`
	Name     string `json:"name,omitempty"`
	Category string `json:"category,omitempty"`
}

func (BagModifyData) Kind() Type { return BagModify }

// ExpUpdateData carries the raw experience counter and character level.
type ExpUpdateData struct {
	Experience int64 `json:"experience"`
	Level      int   `json:"level"`
}

func (ExpUpdateData) Kind() Type { return ExpUpdate }

// Affix is one stage modifier inside a StageAffixData block.
type Affix struct {
	ID          int    `json:"affix_id"`
	Description string `json:"description,omitempty"`
}

// StageAffixData lists the modifiers active for a level, collected from
// the AffixInfos block.
type StageAffixData struct {
	LevelID int     `json:"level_id"`
	Affixes []Affix `json:"affixes"`
}

func (StageAffixData) Kind() Type { return StageAffix }

// PlayerJoinData is emitted when a player joins a fight area.
type PlayerJoinData struct {
	PlayerName string `json:"player_name"`
	Mode       int    `json:"mode"`
}

func (PlayerJoinData) Kind() Type { return PlayerJoin }

// GamePauseData reports the UI pause state toggling.
type GamePauseData struct {
	Paused bool `json:"paused"`
}

func (GamePauseData) Kind() Type { return GamePause }

// GameMessageData is an in-game system message shown to the player.
type GameMessageData struct {
	Message string `json:"message"`
}

func (GameMessageData) Kind() Type { return GameMessage }

// GameViewData reports the active UI view (FightCtrl, PCBagCtrl, ...).
type GameViewData struct {
	View string `json:"view"`
}

func (GameViewData) Kind() Type { return GameView }

// MapLoadedData is emitted when a main world map finishes loading.
type MapLoadedData struct {
	MapPath string `json:"map_path"`
}

func (MapLoadedData) Kind() Type { return MapLoaded }

// LoadingProgressData reports loading screen progress.
type LoadingProgressData struct {
	Primary           int    `json:"primary"`
	SecondaryType     string `json:"secondary_type"`
	SecondaryProgress int    `json:"secondary_progress"`
}

func (LoadingProgressData) Kind() Type { return LoadingProgress }

// PingData is a TCP ping measurement in milliseconds.
type PingData struct {
	Ping int `json:"ping"`
}

func (PingData) Kind() Type { return Ping }

// S12GameplayData reports seasonal gameplay BGM layer changes.
type S12GameplayData struct {
	Layer int `json:"layer"`
}

func (S12GameplayData) Kind() Type { return S12Gameplay }

// TransitionStyleData reports a screen transition being shown.
type TransitionStyleData struct {
	Style string `json:"style"`
}

func (TransitionStyleData) Kind() Type { return TransitionStyle }

// WorldTransitionData reports sub-world to main-world switches.
type WorldTransitionData struct {
	BackFlowStep int  `json:"back_flow_step"`
	ToMainWorld  bool `json:"to_main_world"`
}

func (WorldTransitionData) Kind() Type { return WorldTransition }
