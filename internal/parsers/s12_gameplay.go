package parsers

import (
	"regexp"
	"strconv"

	"github.com/oraclelog/oracle-go/pkg/oracle/event"
)

// Matches: UGamePlayMgr::PlayS12GamePlayBGM layer=1
var s12GameplayPattern = regexp.MustCompile(
	`\[Game\] UGamePlayMgr::PlayS12GamePlayBGM layer=(\d+)`,
)

// S12GameplayParser emits seasonal gameplay BGM layer changes.
type S12GameplayParser struct{}

func NewS12GameplayParser() *S12GameplayParser { return &S12GameplayParser{} }

func (S12GameplayParser) Name() string { return "s12_gameplay" }

func (S12GameplayParser) Reset() {}

func (S12GameplayParser) Recognizes(line string) bool {
	return s12GameplayPattern.MatchString(line)
}

func (S12GameplayParser) Feed(line string) (*event.Event, error) {
	m := s12GameplayPattern.FindStringSubmatch(line)
	if m == nil {
		return nil, nil
	}
	ts, err := parseTimestamp(line)
	if err != nil {
		return nil, nil
	}

	layer, _ := strconv.Atoi(m[1])
	ev := event.New(ts, event.S12GameplayData{Layer: layer})
	return &ev, nil
}
