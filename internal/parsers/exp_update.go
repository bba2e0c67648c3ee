package parsers

import (
	"regexp"
	"strconv"

	"github.com/oraclelog/oracle-go/pkg/oracle/event"
)

// Matches: ExpMgr@UpdateExp Percent:10272028 97
// The first number is a raw experience counter, the second the level.
var expUpdatePattern = regexp.MustCompile(
	`\[Game\] ExpMgr@UpdateExp Percent:(\d+) (\d+)`,
)

// ExpUpdateParser emits experience counter updates.
type ExpUpdateParser struct{}

func NewExpUpdateParser() *ExpUpdateParser { return &ExpUpdateParser{} }

func (ExpUpdateParser) Name() string { return "exp_update" }

func (ExpUpdateParser) Reset() {}

func (ExpUpdateParser) Recognizes(line string) bool {
	return expUpdatePattern.MatchString(line)
}

func (ExpUpdateParser) Feed(line string) (*event.Event, error) {
	m := expUpdatePattern.FindStringSubmatch(line)
	if m == nil {
		return nil, nil
	}
	ts, err := parseTimestamp(line)
	if err != nil {
		return nil, nil
	}

	exp, _ := strconv.ParseInt(m[1], 10, 64)
	level, _ := strconv.Atoi(m[2])

	ev := event.New(ts, event.ExpUpdateData{Experience: exp, Level: level})
	return &ev, nil
}
