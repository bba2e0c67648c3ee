package parsers

import (
	"regexp"
	"strconv"

	"github.com/oraclelog/oracle-go/pkg/oracle/event"
)

// Matches the three ItemChange variants:
//
//	ItemChange@ Update Id=5028_50ace... BagNum=796 in PageId=102 SlotId=21
//	ItemChange@ Add Id=261005_27c4... BagNum=1 in PageId=100 SlotId=9
//	ItemChange@ Delete Id=261005_3dc0... in PageId=100 SlotId=9
//
// BagNum is absent for Delete; the slot quantity becomes zero.
var itemChangePattern = regexp.MustCompile(
	`\[Game\]\s*ItemChange@\s+(Add|Update|Delete)\s+Id=(\d+)_\S+(?:\s+BagNum=(\d+))?\s+in\s+PageId=(\d+)\s+SlotId=(\d+)`,
)

// ItemChangeParser emits one event per item slot change line.
type ItemChangeParser struct {
	lookup ItemLookup
}

func NewItemChangeParser(lookup ItemLookup) *ItemChangeParser {
	return &ItemChangeParser{lookup: lookup}
}

func (p *ItemChangeParser) Name() string { return "item_change" }

func (p *ItemChangeParser) Reset() {}

func (p *ItemChangeParser) Recognizes(line string) bool {
	return itemChangePattern.MatchString(line)
}

func (p *ItemChangeParser) Feed(line string) (*event.Event, error) {
	m := itemChangePattern.FindStringSubmatch(line)
	if m == nil {
		return nil, nil
	}
	ts, err := parseTimestamp(line)
	if err != nil {
		return nil, nil
	}

	itemID, _ := strconv.Atoi(m[2])
	amount := 0
	if m[3] != "" {
		amount, _ = strconv.Atoi(m[3])
	}
	page, _ := strconv.Atoi(m[4])
	slot, _ := strconv.Atoi(m[5])

	name, category := lookup(p.lookup, itemID)
	ev := event.New(ts, event.ItemChangeData{
		ItemID:   itemID,
		Action:   m[1],
		Amount:   amount,
		Page:     page,
		Slot:     slot,
		Name:     name,
		Category: category,
	})
	return &ev, nil
}
