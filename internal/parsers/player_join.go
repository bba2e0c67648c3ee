package parsers

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/oraclelog/oracle-go/pkg/oracle/event"
)

// Matches: SwitchBattleAreaUtil:_JoinFight Eryndor#7291:1100
var playerJoinPattern = regexp.MustCompile(
	`\[Game\]\s+SwitchBattleAreaUtil:_JoinFight\s+([^:]+):(\d+)`,
)

// PlayerJoinParser emits when a player joins a fight area.
type PlayerJoinParser struct{}

func NewPlayerJoinParser() *PlayerJoinParser { return &PlayerJoinParser{} }

func (PlayerJoinParser) Name() string { return "player_join" }

func (PlayerJoinParser) Reset() {}

func (PlayerJoinParser) Recognizes(line string) bool {
	return playerJoinPattern.MatchString(line)
}

func (PlayerJoinParser) Feed(line string) (*event.Event, error) {
	m := playerJoinPattern.FindStringSubmatch(line)
	if m == nil {
		return nil, nil
	}
	ts, err := parseTimestamp(line)
	if err != nil {
		return nil, nil
	}

	mode, _ := strconv.Atoi(m[2])
	ev := event.New(ts, event.PlayerJoinData{
		PlayerName: strings.TrimSpace(m[1]),
		Mode:       mode,
	})
	return &ev, nil
}
