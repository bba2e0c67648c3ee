package parsers

import (
	"regexp"
	"strconv"

	"github.com/oraclelog/oracle-go/pkg/oracle/event"
)

// Matches: Loading@ P=3,S=Async 57%
var loadingProgressPattern = regexp.MustCompile(
	`Loading@\s+P=(\d+),S=([A-Za-z]+)\s+(\d+)%`,
)

// LoadingProgressParser emits loading screen progress updates.
type LoadingProgressParser struct{}

func NewLoadingProgressParser() *LoadingProgressParser { return &LoadingProgressParser{} }

func (LoadingProgressParser) Name() string { return "loading_progress" }

func (LoadingProgressParser) Reset() {}

func (LoadingProgressParser) Recognizes(line string) bool {
	return loadingProgressPattern.MatchString(line)
}

func (LoadingProgressParser) Feed(line string) (*event.Event, error) {
	m := loadingProgressPattern.FindStringSubmatch(line)
	if m == nil {
		return nil, nil
	}
	ts, err := parseTimestamp(line)
	if err != nil {
		return nil, nil
	}

	primary, _ := strconv.Atoi(m[1])
	secondary, _ := strconv.Atoi(m[3])
	ev := event.New(ts, event.LoadingProgressData{
		Primary:           primary,
		SecondaryType:     m[2],
		SecondaryProgress: secondary,
	})
	return &ev, nil
}
