package parsers

import (
	"regexp"

	"github.com/oraclelog/oracle-go/pkg/oracle/event"
)

var exitLevelPattern = regexp.MustCompile(`UGameMgr::ExitLevel\(\)`)

// ExitLevelParser emits on the single-line level exit marker.
type ExitLevelParser struct{}

func NewExitLevelParser() *ExitLevelParser { return &ExitLevelParser{} }

func (ExitLevelParser) Name() string { return "exit_level" }

func (ExitLevelParser) Reset() {}

func (ExitLevelParser) Recognizes(line string) bool {
	return exitLevelPattern.MatchString(line)
}

func (ExitLevelParser) Feed(line string) (*event.Event, error) {
	ts, err := parseTimestamp(line)
	if err != nil {
		return nil, nil
	}
	ev := event.New(ts, event.ExitLevelData{})
	return &ev, nil
}
