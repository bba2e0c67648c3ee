package parsers

import (
	"regexp"

	"github.com/oraclelog/oracle-go/pkg/oracle/event"
)

// Matches: TransitionMgr@ShowTransition TransitionStyle = S12TransitionBlackItem
var transitionStylePattern = regexp.MustCompile(
	`\[Game\] TransitionMgr@ShowTransition TransitionStyle = (\S+)`,
)

// TransitionStyleParser emits screen transition styles.
type TransitionStyleParser struct{}

func NewTransitionStyleParser() *TransitionStyleParser { return &TransitionStyleParser{} }

func (TransitionStyleParser) Name() string { return "transition_style" }

func (TransitionStyleParser) Reset() {}

func (TransitionStyleParser) Recognizes(line string) bool {
	return transitionStylePattern.MatchString(line)
}

func (TransitionStyleParser) Feed(line string) (*event.Event, error) {
	m := transitionStylePattern.FindStringSubmatch(line)
	if m == nil {
		return nil, nil
	}
	ts, err := parseTimestamp(line)
	if err != nil {
		return nil, nil
	}

	ev := event.New(ts, event.TransitionStyleData{Style: m[1]})
	return &ev, nil
}
