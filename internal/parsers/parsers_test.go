package parsers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oraclelog/oracle-go/pkg/oracle/event"
)

const stamp = "[2025.11.26-20.02.54:023][713]"

// feedAll runs lines through a parser the way the router would: only
// recognized lines are fed. Returns every event emitted.
func feedAll(t *testing.T, p interface {
	Recognizes(string) bool
	Feed(string) (*event.Event, error)
}, lines []string) []event.Event {
	t.Helper()
	var out []event.Event
	for _, line := range lines {
		if !p.Recognizes(line) {
			continue
		}
		ev, err := p.Feed(line)
		require.NoError(t, err)
		if ev != nil {
			out = append(out, *ev)
		}
	}
	return out
}

func TestParseTimestamp(t *testing.T) {
	ts, err := parseTimestamp(stamp + "GameLog: whatever")
	require.NoError(t, err)
	want := time.Date(2025, 11, 26, 20, 2, 54, 23_000_000, time.Local)
	assert.Equal(t, want, ts)

	_, err = parseTimestamp("no timestamp here")
	assert.Error(t, err)
}

func TestEnterLevelSequence(t *testing.T) {
	p := NewEnterLevelParser()
	events := feedAll(t, p, []string{
		stamp + "GameLog: Display: [Game] LevelMgr@ EnterLevel",
		stamp + "GameLog: Display: [Game] some unrelated line",
		stamp + "GameLog: Display: [Game] LevelMgr@ LevelUid, LevelType, LevelId = 1121002 3 5302",
		stamp + "GameLog: Display: [Game] LevelMgr@:LevelPath, Model = /Game/Maps/Vault M1",
	})
	require.Len(t, events, 1)
	data := events[0].Data.(event.EnterLevelData)
	assert.Equal(t, 5302, data.LevelID)
	assert.Equal(t, 1121002, data.LevelUID)
	assert.Equal(t, 3, data.LevelType)
	assert.Equal(t, event.EnterLevel, events[0].Type)
}

func TestEnterLevelMisspelledVariant(t *testing.T) {
	p := NewEnterLevelParser()
	events := feedAll(t, p, []string{
		stamp + "GameLog: Display: [Game] LevelMgr@ EnterLevel",
		stamp + "GameLog: Display: [Game] LeevelLinkData: 1121002 3 5302",
		stamp + "GameLog: Display: [Game] LevelMgr@:LevelPath, Model = /Game/Maps/Vault M1",
	})
	require.Len(t, events, 1)
	assert.Equal(t, 5302, events[0].Data.(event.EnterLevelData).LevelID)
}

// The entry sequence has no staleness window: however far apart the
// line timestamps are, a pending sequence completes when its next line
// arrives. Replayed historical logs cover hours of wall-clock time in
// one pass, so only a stream discontinuity may reset the machine.
func TestEnterLevelSurvivesLongGaps(t *testing.T) {
	later := "[2025.11.26-23.30.01:500][999]"
	p := NewEnterLevelParser()
	events := feedAll(t, p, []string{
		stamp + "GameLog: Display: [Game] LevelMgr@ EnterLevel",
		later + "GameLog: Display: [Game] LevelMgr@ LevelUid, LevelType, LevelId = 1121002 3 5302",
		later + "GameLog: Display: [Game] LevelMgr@:LevelPath, Model = /Game/Maps/Vault M1",
	})
	require.Len(t, events, 1)
	assert.Equal(t, 5302, events[0].Data.(event.EnterLevelData).LevelID)
	// The event carries the timestamp of the line that opened the
	// sequence, not of the line that completed it.
	assert.Equal(t, time.Date(2025, 11, 26, 20, 2, 54, 23_000_000, time.Local), events[0].Timestamp)

	// A reset from outside discards the pending sequence entirely.
	p.Feed(stamp + "GameLog: Display: [Game] LevelMgr@ EnterLevel")
	p.Reset()
	events = feedAll(t, p, []string{
		later + "GameLog: Display: [Game] LevelMgr@ LevelUid, LevelType, LevelId = 1121002 3 5302",
		later + "GameLog: Display: [Game] LevelMgr@:LevelPath, Model = /Game/Maps/Vault M1",
	})
	assert.Empty(t, events)
}

func TestExitLevel(t *testing.T) {
	p := NewExitLevelParser()
	events := feedAll(t, p, []string{
		stamp + "GameLog: Display: [Game] UGameMgr::ExitLevel()",
	})
	require.Len(t, events, 1)
	assert.Equal(t, event.ExitLevel, events[0].Type)
}

func TestItemChangeVariants(t *testing.T) {
	lookupFn := func(itemID int) (string, string) {
		if itemID == 5028 {
			return "Flame Sand", "currency"
		}
		return "", ""
	}
	p := NewItemChangeParser(lookupFn)

	events := feedAll(t, p, []string{
		stamp + "GameLog: Display: [Game] ItemChange@ Update Id=5028_50ace21f BagNum=796 in PageId=102 SlotId=21",
		stamp + "GameLog: Display: [Game] ItemChange@ Add Id=261005_27c4b in PageId=100 SlotId=9",
		stamp + "GameLog: Display: [Game] ItemChange@ Delete Id=5028_50ace21f in PageId=102 SlotId=21",
	})
	require.Len(t, events, 3)

	update := events[0].Data.(event.ItemChangeData)
	assert.Equal(t, "Update", update.Action)
	assert.Equal(t, 5028, update.ItemID)
	assert.Equal(t, 796, update.Amount)
	assert.Equal(t, 102, update.Page)
	assert.Equal(t, 21, update.Slot)
	assert.Equal(t, "Flame Sand", update.Name)

	add := events[1].Data.(event.ItemChangeData)
	assert.Equal(t, "Add", add.Action)
	assert.Zero(t, add.Amount, "missing BagNum reads as zero")

	del := events[2].Data.(event.ItemChangeData)
	assert.Equal(t, "Delete", del.Action)
	assert.Zero(t, del.Amount)
}

func TestBagModify(t *testing.T) {
	p := NewBagModifyParser(nil)
	events := feedAll(t, p, []string{
		stamp + "GameLog: Display: [Game] BagMgr@:Modfy BagItem PageId = 100 SlotId = 9 ConfigBaseId = 5028 Num = 12",
	})
	require.Len(t, events, 1)
	data := events[0].Data.(event.BagModifyData)
	assert.Equal(t, 100, data.Page)
	assert.Equal(t, 9, data.Slot)
	assert.Equal(t, 5028, data.ItemID)
	assert.Equal(t, 12, data.Quantity)
}

func TestExpUpdate(t *testing.T) {
	p := NewExpUpdateParser()
	events := feedAll(t, p, []string{
		stamp + "GameLog: Display: [Game] ExpMgr@UpdateExp Percent:10272028 97",
	})
	require.Len(t, events, 1)
	data := events[0].Data.(event.ExpUpdateData)
	assert.EqualValues(t, 10272028, data.Experience)
	assert.Equal(t, 97, data.Level)
}

func TestPlayerJoin(t *testing.T) {
	p := NewPlayerJoinParser()
	events := feedAll(t, p, []string{
		stamp + "GameLog: Display: [Game] SwitchBattleAreaUtil:_JoinFight Eryndor#7291:1100",
	})
	require.Len(t, events, 1)
	data := events[0].Data.(event.PlayerJoinData)
	assert.Equal(t, "Eryndor#7291", data.PlayerName)
	assert.Equal(t, 1100, data.Mode)
}

func TestGamePauseToggles(t *testing.T) {
	p := NewGamePauseParser()
	events := feedAll(t, p, []string{
		stamp + "GameLog: Display: [Game] UGameMgr::AddGamePausedForUI()",
		stamp + "GameLog: Display: [Game] UGameMgr::RemovePausedForUI()",
	})
	require.Len(t, events, 2)
	assert.True(t, events[0].Data.(event.GamePauseData).Paused)
	assert.False(t, events[1].Data.(event.GamePauseData).Paused)
}

func TestGameViewSuppressesRepeats(t *testing.T) {
	p := NewGameViewParser()
	events := feedAll(t, p, []string{
		stamp + "GameLog: Display: PageStack@ CurRunView = 1321_FightCtrl",
		stamp + "GameLog: Display: PageStack@      CurRunView == 1321_FightCtrl Calling OnLeaveHide!",
		stamp + "GameLog: Display: PageStack@ CurRunView = 3216_SettingCtrl",
	})
	require.Len(t, events, 2)
	assert.Equal(t, "1321_FightCtrl", events[0].Data.(event.GameViewData).View)
	assert.Equal(t, "3216_SettingCtrl", events[1].Data.(event.GameViewData).View)
}

func TestStageAffixBlock(t *testing.T) {
	p := NewStageAffixParser()
	events := feedAll(t, p, []string{
		stamp + "GameLog: Display: [Game] AreaMgr@ EnterLevel(5302)",
		stamp + "GameLog: Display: [Game] AffixInfos",
		stamp + "GameLog: Display: [Game] +DangerNumbers",
		stamp + "GameLog: Display: [Game] +Id [17]",
		stamp + "GameLog: Display: [Game] +Description [<color=#f00>Deadly</color> foes]",
		stamp + "GameLog: Display: [Game] +DangerNumbers",
		stamp + "GameLog: Display: [Game] +Id [23]",
		stamp + "GameLog: Display: [Game] OnEnterAreaEnd()",
	})
	require.Len(t, events, 1)
	data := events[0].Data.(event.StageAffixData)
	assert.Equal(t, 5302, data.LevelID)
	require.Len(t, data.Affixes, 2)
	assert.Equal(t, 17, data.Affixes[0].ID)
	assert.Equal(t, "<color=#f00>Deadly</color> foes", data.Affixes[0].Description)
	assert.Equal(t, 23, data.Affixes[1].ID)
	assert.Empty(t, data.Affixes[1].Description)
}

func TestStageAffixEmptyBlockDiscarded(t *testing.T) {
	p := NewStageAffixParser()
	events := feedAll(t, p, []string{
		stamp + "GameLog: Display: [Game] AreaMgr@ EnterLevel(5302)",
		stamp + "GameLog: Display: [Game] AffixInfos",
		stamp + "GameLog: Display: [Game] OnEnterAreaEnd()",
	})
	assert.Empty(t, events)
}

func TestSingleLineParsers(t *testing.T) {
	cases := []struct {
		name  string
		line  string
		check func(t *testing.T, ev event.Event)
	}{
		{
			name: "game message",
			line: stamp + "GameLog: Display: [Game] MsgMgr@:Show MsgValue = Not enough space",
			check: func(t *testing.T, ev event.Event) {
				assert.Equal(t, "Not enough space", ev.Data.(event.GameMessageData).Message)
			},
		},
		{
			name: "map loaded",
			line: stamp + "GameLog: Display: [Game] SceneLevelMgr@ OpenMainWorld END! InMainLevelPath = /Game/Art/Maps/Town01",
			check: func(t *testing.T, ev event.Event) {
				assert.Equal(t, "/Game/Art/Maps/Town01", ev.Data.(event.MapLoadedData).MapPath)
			},
		},
		{
			name: "loading progress",
			line: stamp + "GameLog: Display: [Game] Loading@ P=3,S=Async 57%",
			check: func(t *testing.T, ev event.Event) {
				data := ev.Data.(event.LoadingProgressData)
				assert.Equal(t, 3, data.Primary)
				assert.Equal(t, "Async", data.SecondaryType)
				assert.Equal(t, 57, data.SecondaryProgress)
			},
		},
		{
			name: "ping",
			line: stamp + "GameLog: Display: [Game] TCP Ping Result: 48",
			check: func(t *testing.T, ev event.Event) {
				assert.Equal(t, 48, ev.Data.(event.PingData).Ping)
			},
		},
		{
			name: "s12 gameplay",
			line: stamp + "GameLog: Display: [Game] UGamePlayMgr::PlayS12GamePlayBGM layer=1",
			check: func(t *testing.T, ev event.Event) {
				assert.Equal(t, 1, ev.Data.(event.S12GameplayData).Layer)
			},
		},
		{
			name: "transition style",
			line: stamp + "GameLog: Display: [Game] TransitionMgr@ShowTransition TransitionStyle = S12TransitionBlackItem",
			check: func(t *testing.T, ev event.Event) {
				assert.Equal(t, "S12TransitionBlackItem", ev.Data.(event.TransitionStyleData).Style)
			},
		},
		{
			name: "world transition",
			line: stamp + "GameLog: Display: [Game] PageApplyBase@ BackFlow0 IsSwitchingSubWorldToMainWorld = true",
			check: func(t *testing.T, ev event.Event) {
				data := ev.Data.(event.WorldTransitionData)
				assert.Equal(t, 0, data.BackFlowStep)
				assert.True(t, data.ToMainWorld)
			},
		},
	}

	parsers := map[string]interface {
		Recognizes(string) bool
		Feed(string) (*event.Event, error)
	}{
		"game message":     NewGameMessageParser(),
		"map loaded":       NewMapLoadedParser(),
		"loading progress": NewLoadingProgressParser(),
		"ping":             NewPingParser(),
		"s12 gameplay":     NewS12GameplayParser(),
		"transition style": NewTransitionStyleParser(),
		"world transition": NewWorldTransitionParser(),
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := parsers[tc.name]
			require.True(t, p.Recognizes(tc.line))
			ev, err := p.Feed(tc.line)
			require.NoError(t, err)
			require.NotNil(t, ev)
			tc.check(t, *ev)
		})
	}
}
