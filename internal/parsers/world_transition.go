package parsers

import (
	"regexp"
	"strconv"

	"github.com/oraclelog/oracle-go/pkg/oracle/event"
)

// Matches: PageApplyBase@ BackFlow0 IsSwitchingSubWorldToMainWorld = true
var worldTransitionPattern = regexp.MustCompile(
	`\[Game\] PageApplyBase@ BackFlow(\d+) IsSwitchingSubWorldToMainWorld = (true|false)`,
)

// WorldTransitionParser emits sub-world to main-world transitions.
type WorldTransitionParser struct{}

func NewWorldTransitionParser() *WorldTransitionParser { return &WorldTransitionParser{} }

func (WorldTransitionParser) Name() string { return "world_transition" }

func (WorldTransitionParser) Reset() {}

func (WorldTransitionParser) Recognizes(line string) bool {
	return worldTransitionPattern.MatchString(line)
}

func (WorldTransitionParser) Feed(line string) (*event.Event, error) {
	m := worldTransitionPattern.FindStringSubmatch(line)
	if m == nil {
		return nil, nil
	}
	ts, err := parseTimestamp(line)
	if err != nil {
		return nil, nil
	}

	step, _ := strconv.Atoi(m[1])
	ev := event.New(ts, event.WorldTransitionData{
		BackFlowStep: step,
		ToMainWorld:  m[2] == "true",
	})
	return &ev, nil
}
