package parsers

import (
	"regexp"
	"strconv"
	"time"

	"github.com/oraclelog/oracle-go/pkg/oracle/event"
)

// enterState enumerates the EnterLevel FSM states.
type enterState int

const (
	enterIdle enterState = iota
	enterGotEnter
	enterGotLevelInfo
)

// The level entry sequence spans three lines:
//
//	[ts]GameLog: Display: [Game] LevelMgr@ EnterLevel
//	[ts]GameLog: Display: [Game] LevelMgr@ LevelUid, LevelType, LevelId = 1121002 3 5302
//	[ts]GameLog: Display: [Game] LevelMgr@:LevelPath, Model = <path> <model>
//
// The second line sometimes appears as the misspelled "LeevelLinkData"
// variant; both carry the same three integers.
var (
	enterLevelPattern = regexp.MustCompile(
		`GameLog: Display: \[Game\] LevelMgr@ EnterLevel$`,
	)
	levelInfoPattern = regexp.MustCompile(
		`GameLog: Display: \[Game\] LevelMgr@ LevelUid, LevelType, LevelId = (\d+) (\d+) (\d+)`,
	)
	levelInfoAltPattern = regexp.MustCompile(
		`GameLog: Display: \[Game\] LeevelLinkData[：:]\s*(\d+)\s+(\d+)\s+(\d+)`,
	)
	levelPathPattern = regexp.MustCompile(
		`GameLog: Display: \[Game\] LevelMgr@:LevelPath, Model = (.+)`,
	)
)

// EnterLevelParser assembles the three-line level entry sequence.
// Unrecognized intervening lines are ignored without resetting the
// machine; only a stream discontinuity resets it from outside.
type EnterLevelParser struct {
	state     enterState
	timestamp time.Time
	levelUID  int
	levelType int
	levelID   int
}

func NewEnterLevelParser() *EnterLevelParser { return &EnterLevelParser{} }

func (p *EnterLevelParser) Name() string { return "enter_level" }

func (p *EnterLevelParser) Reset() {
	p.state = enterIdle
	p.timestamp = time.Time{}
	p.levelUID, p.levelType, p.levelID = 0, 0, 0
}

func (p *EnterLevelParser) Recognizes(line string) bool {
	switch p.state {
	case enterIdle:
		return enterLevelPattern.MatchString(line)
	case enterGotEnter:
		return levelInfoPattern.MatchString(line) || levelInfoAltPattern.MatchString(line)
	case enterGotLevelInfo:
		return levelPathPattern.MatchString(line)
	}
	return false
}

func (p *EnterLevelParser) Feed(line string) (*event.Event, error) {
	switch p.state {
	case enterIdle:
		ts, err := parseTimestamp(line)
		if err != nil {
			return nil, nil
		}
		p.timestamp = ts
		p.state = enterGotEnter
		return nil, nil

	case enterGotEnter:
		m := levelInfoPattern.FindStringSubmatch(line)
		if m == nil {
			m = levelInfoAltPattern.FindStringSubmatch(line)
		}
		if m == nil {
			return nil, nil
		}
		uid, err1 := strconv.Atoi(m[1])
		ltype, err2 := strconv.Atoi(m[2])
		lid, err3 := strconv.Atoi(m[3])
		if err1 != nil || err2 != nil || err3 != nil {
			// Malformed metadata discards the partial match.
			p.Reset()
			return nil, nil
		}
		p.levelUID, p.levelType, p.levelID = uid, ltype, lid
		p.state = enterGotLevelInfo
		return nil, nil

	case enterGotLevelInfo:
		ev := event.New(p.timestamp, event.EnterLevelData{
			LevelID:   p.levelID,
			LevelUID:  p.levelUID,
			LevelType: p.levelType,
		})
		p.Reset()
		return &ev, nil
	}
	return nil, nil
}
