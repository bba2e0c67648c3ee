package oracle

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oraclelog/oracle-go/internal/bus"
	"github.com/oraclelog/oracle-go/pkg/oracle/event"
)

const stamp = "[2025.11.26-20.02.54:023][713]"

var sampleLog = strings.Join([]string{
	stamp + "GameLog: Display: [Game] SwitchBattleAreaUtil:_JoinFight Eryndor#7291:1100",
	stamp + "GameLog: Display: [Game] LevelMgr@ EnterLevel",
	stamp + "GameLog: Display: [Game] LevelMgr@ LevelUid, LevelType, LevelId = 1121002 3 5302",
	stamp + "GameLog: Display: [Game] LevelMgr@:LevelPath, Model = /Game/Maps/Vault M1",
	stamp + "GameLog: Display: [Game] ItemChange@ Add Id=5028_50ace21f BagNum=10 in PageId=102 SlotId=21",
	stamp + "GameLog: Display: irrelevant chatter",
	stamp + "GameLog: Display: [Game] UGameMgr::ExitLevel()",
	"",
}, "\n")

func TestParseReaderOrderAndTypes(t *testing.T) {
	var types []event.Type
	err := ParseReader(strings.NewReader(sampleLog), func(ev event.Event) error {
		types = append(types, ev.Type)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []event.Type{
		event.PlayerJoin, event.EnterLevel, event.ItemChange, event.ExitLevel,
	}, types)
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "game.log")
	require.NoError(t, os.WriteFile(path, []byte(sampleLog), 0o644))

	events, err := ParseFile(path, WithIncludeRawLine(true))
	require.NoError(t, err)
	require.Len(t, events, 4)
	assert.Contains(t, events[0].RawLine, "_JoinFight")

	enter := events[1].Data.(event.EnterLevelData)
	assert.Equal(t, 5302, enter.LevelID)
}

func TestRouterCountsAndReset(t *testing.T) {
	r := NewRouter(DefaultParsers(nil))

	ev, err := r.Dispatch(stamp + "GameLog: Display: [Game] LevelMgr@ EnterLevel")
	require.NoError(t, err)
	assert.Nil(t, ev, "sequence incomplete")

	_, err = r.Dispatch("noise")
	require.NoError(t, err)
	assert.EqualValues(t, 1, r.Matched())
	assert.EqualValues(t, 1, r.Discarded())

	// Reset drops the partial sequence; the info line no longer
	// matches from the idle state.
	r.Reset()
	ev, err = r.Dispatch(stamp + "GameLog: Display: [Game] LevelMgr@ LevelUid, LevelType, LevelId = 1 2 3")
	require.NoError(t, err)
	assert.Nil(t, ev)
}

// recordingParser consumes every line containing its trigger and
// records what it saw.
type recordingParser struct {
	name    string
	trigger string
	fed     []string
}

func (p *recordingParser) Name() string { return p.name }
func (p *recordingParser) Recognizes(line string) bool {
	return strings.Contains(line, p.trigger)
}
func (p *recordingParser) Feed(line string) (*event.Event, error) {
	p.fed = append(p.fed, line)
	return nil, nil
}
func (p *recordingParser) Reset() {}

func TestRouterPriority(t *testing.T) {
	// Both recognize the same line; only the first registered parser
	// may consume it.
	specific := &recordingParser{name: "specific", trigger: "Ping Result: 42"}
	loose := &recordingParser{name: "loose", trigger: "Ping"}
	r := NewRouter([]Parser{specific, loose})

	_, err := r.Dispatch("TCP Ping Result: 42")
	require.NoError(t, err)

	assert.Len(t, specific.fed, 1)
	assert.Empty(t, loose.fed)
}

func TestPipelineLive(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "game.log")
	require.NoError(t, os.WriteFile(logPath, []byte(""), 0o644))

	b := bus.New()
	defer b.Close()
	var seen []event.Type
	b.Subscribe("probe", func(ev event.Event) error {
		seen = append(seen, ev.Type)
		return nil
	}, event.Ping)

	p, err := NewPipeline(logPath,
		WithPollInterval(20*time.Millisecond),
		WithFromStart(true),
		WithBus(b),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	events, errs, err := p.Run(ctx)
	require.NoError(t, err)

	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(stamp + "GameLog: Display: [Game] TCP Ping Result: 42\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	select {
	case ev := <-events:
		assert.Equal(t, event.Ping, ev.Type)
		assert.Equal(t, 42, ev.Data.(event.PingData).Ping)
	case err := <-errs:
		t.Fatalf("unexpected error: %v", err)
	case <-ctx.Done():
		t.Fatal("timed out waiting for event")
	}

	require.NoError(t, b.Drain(ctx))
	assert.Equal(t, []event.Type{event.Ping}, seen)

	require.NoError(t, p.Close())
	_, _, err = p.Run(ctx)
	assert.ErrorIs(t, err, ErrPipelineClosed)
}

func TestPipelineDiscontinuityResetsParsers(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "game.log")
	require.NoError(t, os.WriteFile(logPath, []byte(""), 0o644))

	p, err := NewPipeline(logPath,
		WithPollInterval(20*time.Millisecond),
		WithFromStart(true),
	)
	require.NoError(t, err)
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	events, _, err := p.Run(ctx)
	require.NoError(t, err)

	appendLines := func(lines ...string) {
		f, err := os.OpenFile(logPath, os.O_APPEND|os.O_WRONLY, 0o644)
		require.NoError(t, err)
		for _, l := range lines {
			_, err = f.WriteString(l + "\n")
			require.NoError(t, err)
		}
		require.NoError(t, f.Close())
	}

	// Start a multi-line sequence, then truncate mid-flight.
	appendLines(stamp + "GameLog: Display: [Game] LevelMgr@ EnterLevel")

	// Give the tailer a moment to read the partial sequence before
	// truncating under it.
	time.Sleep(200 * time.Millisecond)
	require.NoError(t, os.Truncate(logPath, 0))

	var ev event.Event
	select {
	case ev = <-events:
	case <-ctx.Done():
		t.Fatal("timed out waiting for discontinuity")
	}
	require.Equal(t, event.Discontinuity, ev.Type)

	// After the reset, the orphaned info line must not complete the
	// pre-truncation sequence, but a fresh full sequence parses.
	appendLines(
		stamp+"GameLog: Display: [Game] LevelMgr@ LevelUid, LevelType, LevelId = 9 9 9999",
		stamp+"GameLog: Display: [Game] LevelMgr@ EnterLevel",
		stamp+"GameLog: Display: [Game] LevelMgr@ LevelUid, LevelType, LevelId = 1121002 3 5302",
		stamp+"GameLog: Display: [Game] LevelMgr@:LevelPath, Model = /Game/Maps/Vault M1",
	)

	select {
	case ev = <-events:
		require.Equal(t, event.EnterLevel, ev.Type)
		assert.Equal(t, 5302, ev.Data.(event.EnterLevelData).LevelID)
	case <-ctx.Done():
		t.Fatal("timed out waiting for enter level")
	}
}
