package parsers

import (
	"regexp"
	"strings"

	"github.com/oraclelog/oracle-go/pkg/oracle/event"
)

// Matches: SceneLevelMgr@ OpenMainWorld END! InMainLevelPath = /Game/Art/Maps/...
var mapLoadedPattern = regexp.MustCompile(
	`\[Game\] SceneLevelMgr@ OpenMainWorld END! InMainLevelPath = (.+)`,
)

// MapLoadedParser emits when a main world map is fully loaded.
type MapLoadedParser struct{}

func NewMapLoadedParser() *MapLoadedParser { return &MapLoadedParser{} }

func (MapLoadedParser) Name() string { return "map_loaded" }

func (MapLoadedParser) Reset() {}

func (MapLoadedParser) Recognizes(line string) bool {
	return mapLoadedPattern.MatchString(line)
}

func (MapLoadedParser) Feed(line string) (*event.Event, error) {
	m := mapLoadedPattern.FindStringSubmatch(line)
	if m == nil {
		return nil, nil
	}
	ts, err := parseTimestamp(line)
	if err != nil {
		return nil, nil
	}

	ev := event.New(ts, event.MapLoadedData{MapPath: strings.TrimSpace(m[1])})
	return &ev, nil
}
