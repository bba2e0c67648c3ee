package parsers

import (
	"regexp"
	"strings"

	"github.com/oraclelog/oracle-go/pkg/oracle/event"
)

// Matches: MsgMgr@:Show MsgValue = <message text>
var gameMessagePattern = regexp.MustCompile(
	`\[Game\] MsgMgr@:Show MsgValue = (.+)`,
)

// GameMessageParser emits in-game system messages.
type GameMessageParser struct{}

func NewGameMessageParser() *GameMessageParser { return &GameMessageParser{} }

func (GameMessageParser) Name() string { return "game_message" }

func (GameMessageParser) Reset() {}

func (GameMessageParser) Recognizes(line string) bool {
	return gameMessagePattern.MatchString(line)
}

func (GameMessageParser) Feed(line string) (*event.Event, error) {
	m := gameMessagePattern.FindStringSubmatch(line)
	if m == nil {
		return nil, nil
	}
	ts, err := parseTimestamp(line)
	if err != nil {
		return nil, nil
	}

	ev := event.New(ts, event.GameMessageData{Message: strings.TrimSpace(m[1])})
	return &ev, nil
}
