package parsers

import (
	"regexp"
	"time"

	"github.com/oraclelog/oracle-go/pkg/oracle/event"
)

// The view stack lines come in two spellings:
//
//	PageStack@ CurRunView = 3216_SettingCtrl
//	PageStack@      CurRunView == 1321_FightCtrl Calling OnLeaveHide!
//
// This pattern is intentionally loose, so the parser must be registered
// after the more specific ones.
var gameViewPattern = regexp.MustCompile(`CurRunView\s*=?=?\s*(\w+)`)

// GameViewParser streams UI view changes, suppressing repeats of the
// same view.
type GameViewParser struct {
	lastView string
}

func NewGameViewParser() *GameViewParser { return &GameViewParser{} }

func (p *GameViewParser) Name() string { return "game_view" }

func (p *GameViewParser) Reset() { p.lastView = "" }

func (p *GameViewParser) Recognizes(line string) bool {
	return gameViewPattern.MatchString(line)
}

func (p *GameViewParser) Feed(line string) (*event.Event, error) {
	m := gameViewPattern.FindStringSubmatch(line)
	if m == nil {
		return nil, nil
	}
	view := m[1]
	if view == p.lastView {
		return nil, nil
	}
	p.lastView = view

	ts, err := parseTimestamp(line)
	if err != nil {
		ts = time.Now()
	}
	ev := event.New(ts, event.GameViewData{View: view})
	return &ev, nil
}
