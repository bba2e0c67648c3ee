package oracle

import (
	"strings"
	"sync/atomic"

	"github.com/oraclelog/oracle-go/pkg/oracle/event"
)

// Router feeds each log line to the first parser that recognizes it.
// It carries no parse state of its own; all state lives in the parsers.
type Router struct {
	parsers   []Parser
	matched   atomic.Uint64
	discarded atomic.Uint64
}

// NewRouter builds a router over an ordered parser list. The order is
// the dispatch priority.
func NewRouter(list []Parser) *Router {
	return &Router{parsers: list}
}

// Dispatch offers a line to the parsers in priority order. The first
// parser whose Recognizes returns true consumes the line; the line is
// never offered to a later parser. Returns the event the consuming
// parser emitted, if any.
//
// Lines matching no parser are discarded silently; most log lines are
// irrelevant noise, so this is counted rather than reported.
func (r *Router) Dispatch(line string) (*event.Event, error) {
	line = strings.TrimRight(line, "\r")
	for _, p := range r.parsers {
		if !p.Recognizes(line) {
			continue
		}
		r.matched.Add(1)
		return p.Feed(line)
	}
	r.discarded.Add(1)
	return nil, nil
}

// Reset returns every parser to its initial state. Called on a stream
// discontinuity (truncation or rotation).
func (r *Router) Reset() {
	for _, p := range r.parsers {
		p.Reset()
	}
}

// Matched returns the number of lines consumed by a parser.
func (r *Router) Matched() uint64 { return r.matched.Load() }

// Discarded returns the number of lines no parser recognized.
func (r *Router) Discarded() uint64 { return r.discarded.Load() }

// Parsers returns the registered parser names in priority order.
func (r *Router) Parsers() []string {
	names := make([]string, len(r.parsers))
	for i, p := range r.parsers {
		names[i] = p.Name()
	}
	return names
}
