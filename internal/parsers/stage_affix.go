package parsers

import (
	"regexp"
	"strconv"
	"time"

	"github.com/oraclelog/oracle-go/pkg/oracle/event"
)

// A stage affix block is bracketed by "AffixInfos" and
// "OnEnterAreaEnd()". Inside it, each "+DangerNumbers" group carries an
// "+Id [n]" and an optional "+Description [...]" line. The level id is
// picked up from the surrounding "EnterLevel(n)" area lines.
var (
	affixLevelIDPattern = regexp.MustCompile(`EnterLevel\((\d+)\)`)
	affixStartPattern   = regexp.MustCompile(`AffixInfos`)
	affixEndPattern     = regexp.MustCompile(`OnEnterAreaEnd\(\)`)
	affixDangerPattern  = regexp.MustCompile(`\+DangerNumbers`)
	affixIDPattern      = regexp.MustCompile(`\+Id\s*\[(\d+)\]`)
	affixDescPattern    = regexp.MustCompile(`\+Description\s*\[(.*?)\]`)
)

// StageAffixParser collects the affix list block emitted when entering
// an area and emits one StageAffix event per completed block.
type StageAffixParser struct {
	collecting  bool
	levelID     int
	blockTime   time.Time
	pending     []event.Affix
	currentID   int
	currentDesc string
	haveID      bool
}

func NewStageAffixParser() *StageAffixParser { return &StageAffixParser{} }

func (p *StageAffixParser) Name() string { return "stage_affix" }

func (p *StageAffixParser) Reset() {
	p.collecting = false
	p.pending = nil
	p.blockTime = time.Time{}
	p.clearCurrent()
	// levelID is area context rather than block state; it survives the
	// reset and is overwritten by the next EnterLevel(n) line.
}

func (p *StageAffixParser) clearCurrent() {
	p.currentID = 0
	p.currentDesc = ""
	p.haveID = false
}

func (p *StageAffixParser) Recognizes(line string) bool {
	if affixLevelIDPattern.MatchString(line) || affixStartPattern.MatchString(line) {
		return true
	}
	if !p.collecting {
		return false
	}
	return affixEndPattern.MatchString(line) ||
		affixDangerPattern.MatchString(line) ||
		affixIDPattern.MatchString(line) ||
		affixDescPattern.MatchString(line)
}

func (p *StageAffixParser) Feed(line string) (*event.Event, error) {
	if m := affixLevelIDPattern.FindStringSubmatch(line); m != nil {
		p.levelID, _ = strconv.Atoi(m[1])
	}

	if affixStartPattern.MatchString(line) {
		p.collecting = true
		p.pending = nil
		p.clearCurrent()
		if ts, err := parseTimestamp(line); err == nil {
			p.blockTime = ts
		}
		return nil, nil
	}

	if !p.collecting {
		return nil, nil
	}

	if affixEndPattern.MatchString(line) {
		p.flushCurrent()
		defer p.Reset()
		if len(p.pending) == 0 || p.levelID == 0 || p.blockTime.IsZero() {
			// Incomplete block: discard rather than fabricate.
			return nil, nil
		}
		affixes := make([]event.Affix, len(p.pending))
		copy(affixes, p.pending)
		ev := event.New(p.blockTime, event.StageAffixData{
			LevelID: p.levelID,
			Affixes: affixes,
		})
		return &ev, nil
	}

	if affixDangerPattern.MatchString(line) {
		p.flushCurrent()
		return nil, nil
	}
	if m := affixDescPattern.FindStringSubmatch(line); m != nil {
		p.currentDesc = m[1]
		return nil, nil
	}
	if m := affixIDPattern.FindStringSubmatch(line); m != nil {
		p.currentID, _ = strconv.Atoi(m[1])
		p.haveID = true
		return nil, nil
	}
	return nil, nil
}

// flushCurrent appends the affix group being assembled, if any.
func (p *StageAffixParser) flushCurrent() {
	if p.haveID {
		p.pending = append(p.pending, event.Affix{ID: p.currentID, Description: p.currentDesc})
	}
	p.clearCurrent()
}
