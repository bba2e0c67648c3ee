package parsers

import (
	"regexp"
	"strconv"

	"github.com/oraclelog/oracle-go/pkg/oracle/event"
)

// Matches: BagMgr@:Modfy BagItem PageId = 100 SlotId = 9 ConfigBaseId = 5028 Num = 12
// "Modfy" is the game's own spelling.
var bagModifyPattern = regexp.MustCompile(
	`\[Game\] BagMgr@:Modfy BagItem PageId = (\d+) SlotId = (\d+) ConfigBaseId = (\d+) Num = (\d+)`,
)

// BagModifyParser emits one event per bag slot assignment line.
type BagModifyParser struct {
	lookup ItemLookup
}

func NewBagModifyParser(lookup ItemLookup) *BagModifyParser {
	return &BagModifyParser{lookup: lookup}
}

func (p *BagModifyParser) Name() string { return "bag_modify" }

func (p *BagModifyParser) Reset() {}

func (p *BagModifyParser) Recognizes(line string) bool {
	return bagModifyPattern.MatchString(line)
}

func (p *BagModifyParser) Feed(line string) (*event.Event, error) {
	m := bagModifyPattern.FindStringSubmatch(line)
	if m == nil {
		return nil, nil
	}
	ts, err := parseTimestamp(line)
	if err != nil {
		return nil, nil
	}

	page, _ := strconv.Atoi(m[1])
	slot, _ := strconv.Atoi(m[2])
	itemID, _ := strconv.Atoi(m[3])
	qty, _ := strconv.Atoi(m[4])

	name, category := lookup(p.lookup, itemID)
	ev := event.New(ts, event.BagModifyData{
		Page:     page,
		Slot:     slot,
		ItemID:   itemID,
		Quantity: qty,
		Name:     name,
		Category: category,
	})
	return &ev, nil
}
