package oracle

import (
	"github.com/oraclelog/oracle-go/internal/parsers"
	"github.com/oraclelog/oracle-go/pkg/oracle/event"
)

// Parser is the capability every line parser implements.
//
// Recognizes reports whether the parser will consume the line given its
// current state; Feed consumes it and returns an event once a complete
// sequence has been assembled. Single-line parsers emit in the same
// call that recognizes; multi-line parsers accumulate state across
// calls. Reset returns the parser to its initial state and is invoked
// on a stream discontinuity.
type Parser interface {
	Name() string
	Recognizes(line string) bool
	Feed(line string) (*event.Event, error)
	Reset()
}

// ItemLookup resolves a game item id to display name and category for
// parsers that enrich their events with item metadata.
type ItemLookup = parsers.ItemLookup

// DefaultParsers returns the full parser set in registration order.
//
// Order matters: a few parsers have overlapping trigger patterns and
// the more specific one must come first. The game view parser matches
// loosely and is therefore last.
func DefaultParsers(lookup ItemLookup) []Parser {
	return []Parser{
		parsers.NewEnterLevelParser(),
		parsers.NewStageAffixParser(),
		parsers.NewExitLevelParser(),
		parsers.NewItemChangeParser(lookup),
		parsers.NewBagModifyParser(lookup),
		parsers.NewExpUpdateParser(),
		parsers.NewPlayerJoinParser(),
		parsers.NewGamePauseParser(),
		parsers.NewGameMessageParser(),
		parsers.NewMapLoadedParser(),
		parsers.NewLoadingProgressParser(),
		parsers.NewPingParser(),
		parsers.NewS12GameplayParser(),
		parsers.NewTransitionStyleParser(),
		parsers.NewWorldTransitionParser(),
		parsers.NewGameViewParser(),
	}
}
