package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/oraclelog/oracle-go/pkg/oracle/event"
)

// ValidFormats lists all valid output formats.
var ValidFormats = map[string]bool{
	"jsonl":  true,
	"pretty": true,
}

// OutputEvent writes an event in the specified format to the writer.
func OutputEvent(format string, ev event.Event, out io.Writer) error {
	switch format {
	case "jsonl":
		return OutputJSON(ev, out)
	case "pretty":
		return OutputPretty(ev, out)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// OutputJSON writes an event as JSON Lines format.
func OutputJSON(ev event.Event, out io.Writer) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}

// OutputPretty writes an event in human-readable format.
func OutputPretty(ev event.Event, out io.Writer) error {
	ts := ev.Timestamp.Format("15:04:05")

	var err error
	switch data := ev.Data.(type) {
	case event.EnterLevelData:
		_, err = fmt.Fprintf(out, "[%s] > Entered level %d (uid %d, type %d)\n",
			ts, data.LevelID, data.LevelUID, data.LevelType)
	case event.ExitLevelData:
		_, err = fmt.Fprintf(out, "[%s] < Left level\n", ts)
	case event.ItemChangeData:
		name := data.Name
		if name == "" {
			name = fmt.Sprintf("item %d", data.ItemID)
		}
		_, err = fmt.Fprintf(out, "[%s] * %s %s x%d (page %d slot %d)\n",
			ts, strings.ToLower(data.Action), name, data.Amount, data.Page, data.Slot)
	case event.PlayerJoinData:
		_, err = fmt.Fprintf(out, "[%s] + %s joined (mode %d)\n",
			ts, data.PlayerName, data.Mode)
	case event.ExpUpdateData:
		_, err = fmt.Fprintf(out, "[%s] ^ exp %d at level %d\n",
			ts, data.Experience, data.Level)
	case event.GamePauseData:
		state := "resumed"
		if data.Paused {
			state = "paused"
		}
		_, err = fmt.Fprintf(out, "[%s] | game %s\n", ts, state)
	case event.GameMessageData:
		_, err = fmt.Fprintf(out, "[%s] ! %s\n", ts, data.Message)
	case event.GameViewData:
		_, err = fmt.Fprintf(out, "[%s] @ view %s\n", ts, data.View)
	case event.PingData:
		_, err = fmt.Fprintf(out, "[%s] ~ ping %dms\n", ts, data.Ping)
	case event.StageAffixData:
		_, err = fmt.Fprintf(out, "[%s] # level %d affixes: %s\n",
			ts, data.LevelID, formatAffixes(data.Affixes))
	case event.MapStartedData:
		name := data.MapName
		if name == "" {
			name = fmt.Sprintf("map %d", data.LevelID)
		}
		_, err = fmt.Fprintf(out, "[%s] > Started %s %s\n", ts, name, data.Difficulty)
	case event.MapFinishedData:
		_, err = fmt.Fprintf(out, "[%s] < Finished %s in %s\n",
			ts, data.MapName, formatDuration(data.Duration))
	case event.StatsUpdateData:
		_, err = fmt.Fprintf(out, "[%s] = %d maps, %.1f currency (%.1f/h)\n",
			ts, data.TotalMaps, data.CurrencyTotal, data.CurrencyPerHour)
	default:
		_, err = fmt.Fprintf(out, "[%s] ? %s\n", ts, ev.Type)
	}

	return err
}

// formatAffixes renders affixes as "id:description" pairs.
func formatAffixes(affixes []event.Affix) string {
	parts := make([]string, 0, len(affixes))
	for _, a := range affixes {
		if a.Description == "" {
			parts = append(parts, fmt.Sprintf("%d", a.ID))
			continue
		}
		parts = append(parts, fmt.Sprintf("%d:%s", a.ID, a.Description))
	}
	return strings.Join(parts, ", ")
}

// formatDuration renders seconds as m:ss.
func formatDuration(seconds float64) string {
	d := time.Duration(seconds * float64(time.Second)).Round(time.Second)
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}
