package parsers

import (
	"regexp"

	"github.com/oraclelog/oracle-go/pkg/oracle/event"
)

// Matches both pause toggles:
//
//	UGameMgr::AddGamePausedForUI()    -> paused
//	UGameMgr::RemovePausedForUI()     -> resumed
var gamePausePattern = regexp.MustCompile(
	`\[Game\] UGameMgr::(AddGamePausedForUI|RemovePausedForUI)\(\)`,
)

// GamePauseParser emits pause state changes.
type GamePauseParser struct{}

func NewGamePauseParser() *GamePauseParser { return &GamePauseParser{} }

func (GamePauseParser) Name() string { return "game_pause" }

func (GamePauseParser) Reset() {}

func (GamePauseParser) Recognizes(line string) bool {
	return gamePausePattern.MatchString(line)
}

func (GamePauseParser) Feed(line string) (*event.Event, error) {
	m := gamePausePattern.FindStringSubmatch(line)
	if m == nil {
		return nil, nil
	}
	ts, err := parseTimestamp(line)
	if err != nil {
		return nil, nil
	}

	ev := event.New(ts, event.GamePauseData{Paused: m[1] == "AddGamePausedForUI"})
	return &ev, nil
}
