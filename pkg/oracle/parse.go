package oracle

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/oraclelog/oracle-go/pkg/oracle/event"
)

// maxLineBytes bounds a single log line when parsing offline; the game
// never writes lines close to this.
const maxLineBytes = 1 << 20

// ParseReader runs the parser set over r line by line and calls emit
// for every event. Parser state carries across lines, so multi-line
// sequences assemble exactly as they would live. A non-nil error from
// emit stops the scan and is returned.
func ParseReader(r io.Reader, emit func(event.Event) error, opts ...Option) error {
	cfg := applyOptions(opts)
	parsers := cfg.parsers
	if parsers == nil {
		parsers = DefaultParsers(cfg.lookup)
	}
	router := NewRouter(parsers)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)
	for sc.Scan() {
		line := sc.Text()
		ev, err := router.Dispatch(line)
		if err != nil {
			return err
		}
		if ev == nil {
			continue
		}
		if cfg.includeRawLine {
			ev.RawLine = line
		}
		if err := emit(*ev); err != nil {
			return err
		}
	}
	return sc.Err()
}

// ParseFile parses a complete log file and returns its events.
func ParseFile(path string, opts ...Option) ([]event.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	defer f.Close()

	var events []event.Event
	err = ParseReader(f, func(ev event.Event) error {
		events = append(events, ev)
		return nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	return events, nil
}
