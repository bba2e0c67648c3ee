package parsers

import (
	"regexp"
	"strconv"

	"github.com/oraclelog/oracle-go/pkg/oracle/event"
)

// Matches: TCP Ping Result: 48
var pingPattern = regexp.MustCompile(`\[Game\] TCP Ping Result: (\d+)`)

// PingParser emits network ping measurements.
type PingParser struct{}

func NewPingParser() *PingParser { return &PingParser{} }

func (PingParser) Name() string { return "ping" }

func (PingParser) Reset() {}

func (PingParser) Recognizes(line string) bool {
	return pingPattern.MatchString(line)
}

func (PingParser) Feed(line string) (*event.Event, error) {
	m := pingPattern.FindStringSubmatch(line)
	if m == nil {
		return nil, nil
	}
	ts, err := parseTimestamp(line)
	if err != nil {
		return nil, nil
	}

	ping, _ := strconv.Atoi(m[1])
	ev := event.New(ts, event.PingData{Ping: ping})
	return &ev, nil
}
