// Package parsers provides the family of line parsers that recognize
// game log lines and assemble them into typed events. Single-line
// parsers emit in the same call that recognizes; multi-line parsers run
// a small explicit state machine across consecutive lines.
package parsers

import (
	"fmt"
	"regexp"
	"time"
)

// Game log timestamps look like "[2025.11.26-20.02.54:023][713]".
// The second bracket is the frame counter and may be space padded.
const timestampLayout = "2006.01.02-15.04.05"

var timestampPattern = regexp.MustCompile(
	`^\[(\d{4}\.\d{2}\.\d{2}-\d{2}\.\d{2}\.\d{2}):(\d{3})\]`,
)

// parseTimestamp extracts the leading timestamp of a log line.
// Timestamps are wall-clock local time, matching what the game writes.
func parseTimestamp(line string) (time.Time, error) {
	m := timestampPattern.FindStringSubmatch(line)
	if m == nil {
		return time.Time{}, fmt.Errorf("no timestamp in line")
	}
	ts, err := time.ParseInLocation(timestampLayout, m[1], time.Local)
	if err != nil {
		return time.Time{}, err
	}
	var ms int
	fmt.Sscanf(m[2], "%d", &ms)
	return ts.Add(time.Duration(ms) * time.Millisecond), nil
}

// ItemLookup resolves a game item id to display name and category.
// Parsers that enrich events with item metadata receive one at
// construction; a nil lookup leaves the fields empty.
type ItemLookup func(itemID int) (name, category string)

func lookup(fn ItemLookup, itemID int) (string, string) {
	if fn == nil {
		return "", ""
	}
	return fn(itemID)
}
