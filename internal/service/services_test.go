package service

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"github.com/oraclelog/oracle-go/internal/bus"
	"github.com/oraclelog/oracle-go/internal/gamedata"
	"github.com/oraclelog/oracle-go/internal/store"
	"github.com/oraclelog/oracle-go/pkg/oracle/event"
)

const testPriceTable = `{
	"1001": {"name": "Flame Ember", "category": "currency", "price": 1},
	"2002": {"name": "Netherrealm Firecrystal", "category": "currency", "price": 10},
	"3003": {"name": "Clearing Invitation", "category": "consumable", "price": 0.5}
}`

const testMapTable = `{
	"5105": {"name": "Ancient Vault", "asset": "vault", "area": "netherrealm", "difficulty": "T8_1"}
}`

// harness runs the full service set against a real bus and an
// in-memory store, collecting every published event.
type harness struct {
	bus       *bus.Bus
	store     *store.Store
	inventory *InventoryService
	mapsvc    *MapService
	session   *SessionService
	stats     *StatsService
	market    *MarketService
	registry  *Registry

	mu     sync.Mutex
	events []event.Event
}

func newHarness(t *testing.T, seed func(*store.Store)) *harness {
	t.Helper()

	dir := t.TempDir()
	pricePath := filepath.Join(dir, "price_table.json")
	mapPath := filepath.Join(dir, "map_table.json")
	require.NoError(t, os.WriteFile(pricePath, []byte(testPriceTable), 0o644))
	require.NoError(t, os.WriteFile(mapPath, []byte(testMapTable), 0o644))

	st, err := store.Open(store.Config{Path: ":memory:", MaxConns: 1, LogLevel: logger.Silent})
	require.NoError(t, err)
	if seed != nil {
		seed(st)
	}

	items, err := gamedata.NewItemDB(pricePath)
	require.NoError(t, err)
	maps, err := gamedata.NewMapDB(mapPath, nil)
	require.NoError(t, err)

	h := &harness{bus: bus.New(), store: st}
	h.inventory = NewInventoryService(h.bus, st, nil)
	h.mapsvc = NewMapService(h.bus, st, items, maps, h.inventory, nil)
	h.session = NewSessionService(h.bus, st, nil)
	h.stats = NewStatsService(h.bus, items, h.inventory, nil)
	h.market = NewMarketService(h.bus, st, h.inventory, nil)

	h.bus.SubscribeAll("collector", func(ev event.Event) error {
		h.mu.Lock()
		h.events = append(h.events, ev)
		h.mu.Unlock()
		return nil
	})

	h.registry = NewRegistry(nil)
	h.registry.Register(h.inventory, h.mapsvc, h.session, h.stats, h.market)
	require.NoError(t, h.registry.Start(context.Background()))

	t.Cleanup(func() {
		_ = h.registry.Shutdown(context.Background())
		h.bus.Close()
		_ = st.Close()
	})
	return h
}

func (h *harness) publish(t *testing.T, ts time.Time, data event.Payload) {
	t.Helper()
	h.bus.Publish(event.New(ts, data))
	h.drain(t)
}

func (h *harness) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.bus.Drain(ctx))
}

func (h *harness) eventsOf(typ event.Type) []event.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []event.Event
	for _, ev := range h.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func TestPlayerJoinStartsSession(t *testing.T) {
	h := newHarness(t, nil)
	ts := time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC)

	h.publish(t, ts, event.PlayerJoinData{PlayerName: "Kael", Mode: 1})

	started := h.eventsOf(event.SessionStarted)
	require.Len(t, started, 1)
	data := started[0].Data.(event.SessionStartedData)
	assert.Equal(t, "Kael", data.Player)
	assert.Equal(t, ts, data.StartedAt)

	changed := h.eventsOf(event.PlayerChanged)
	require.Len(t, changed, 1)
	assert.Empty(t, changed[0].Data.(event.PlayerChangedData).OldPlayer)

	// The same player joining again must not roll the session.
	h.publish(t, ts.Add(time.Minute), event.PlayerJoinData{PlayerName: "Kael", Mode: 1})
	assert.Len(t, h.eventsOf(event.SessionStarted), 1)

	// A different player closes the old session and starts a new one.
	h.publish(t, ts.Add(2*time.Minute), event.PlayerJoinData{PlayerName: "Mira", Mode: 1})
	assert.Len(t, h.eventsOf(event.SessionStarted), 2)
	assert.Len(t, h.eventsOf(event.SessionFinished), 1)
}

func TestFullMapRun(t *testing.T) {
	h := newHarness(t, nil)
	ts := time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC)

	h.publish(t, ts, event.PlayerJoinData{PlayerName: "Kael", Mode: 1})

	// Three invitations in the bag, one consumed opening the map.
	h.publish(t, ts, event.ItemChangeData{ItemID: 3003, Action: "Add", Amount: 3, Page: 1, Slot: 0})
	h.publish(t, ts, event.GameViewData{View: "UIRoot/MysteryAreaCtrl"})
	h.publish(t, ts, event.ItemChangeData{ItemID: 3003, Action: "Update", Amount: 2, Page: 1, Slot: 0})

	enter := ts.Add(10 * time.Second)
	h.publish(t, enter, event.EnterLevelData{LevelID: 5105, LevelUID: 42, LevelType: 2})
	h.publish(t, enter, event.StageAffixData{
		LevelID: 5105,
		Affixes: []event.Affix{{ID: 7, Description: "<color=#ff0000>Deadly</color> monsters"}},
	})

	started := h.eventsOf(event.MapStarted)
	require.Len(t, started, 1)
	startData := started[0].Data.(event.MapStartedData)
	assert.Equal(t, "Ancient Vault", startData.MapName)
	assert.Equal(t, "T8_1", startData.Difficulty)
	require.Len(t, startData.Consumed, 1)
	assert.Equal(t, 3003, startData.Consumed[0].ItemID)
	assert.Equal(t, 1, startData.Consumed[0].Quantity)

	// Loot drops during the run.
	h.publish(t, enter.Add(time.Minute), event.ItemChangeData{ItemID: 2002, Action: "Add", Amount: 5, Page: 1, Slot: 5})

	exit := enter.Add(5 * time.Minute)
	h.publish(t, exit, event.ExitLevelData{})

	finished := h.eventsOf(event.MapFinished)
	require.Len(t, finished, 1)
	finData := finished[0].Data.(event.MapFinishedData)
	assert.Equal(t, 5105, finData.LevelID)
	assert.InDelta(t, 300.0, finData.Duration, 0.001)
	assert.Equal(t, map[int]int{2002: 5}, finData.Changes)
	assert.False(t, finData.Anomalous)
	require.Len(t, finData.Affixes, 1)
	assert.Equal(t, "Deadly monsters", finData.Affixes[0].Description)

	records := h.eventsOf(event.MapRecord)
	require.Len(t, records, 1)
	rec := records[0].Data.(event.MapRecordData)
	assert.Equal(t, "Kael", rec.Player)
	assert.NotZero(t, rec.SessionID)
	// 5 firecrystals at 10 minus one invitation at 0.5.
	assert.InDelta(t, 49.5, rec.CurrencyGained, 0.001)

	completions, err := h.store.RecentMapCompletions(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, completions, 1)
	assert.Equal(t, 5105, completions[0].MapID)
	assert.Len(t, completions[0].Items, 2)

	sess, err := h.store.LatestOpenSession(context.Background())
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, 1, sess.TotalMaps)
	assert.InDelta(t, 49.5, sess.CurrencyTotal, 0.001)

	assert.Equal(t, MapIdle, h.mapsvc.State())
}

func TestLootBurstCountedInMapDiff(t *testing.T) {
	h := newHarness(t, nil)
	ts := time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC)

	h.publish(t, ts, event.PlayerJoinData{PlayerName: "Kael", Mode: 1})

	// Entry, a dense loot burst, and the exit land on the bus with no
	// pauses in between. The inventory service folds changes on its own
	// queue, so the map service must see the inventory as it stood at
	// each boundary event, not whatever happens to be folded when its
	// own handler runs.
	const drops = 2000
	enter := ts.Add(10 * time.Second)
	h.bus.Publish(event.New(enter, event.EnterLevelData{LevelID: 5105, LevelUID: 1, LevelType: 2}))
	for i := 1; i <= drops; i++ {
		h.bus.Publish(event.New(enter.Add(time.Duration(i)*time.Millisecond),
			event.ItemChangeData{ItemID: 2002, Action: "Update", Amount: i, Page: 1, Slot: 5}))
	}
	h.bus.Publish(event.New(enter.Add(5*time.Minute), event.ExitLevelData{}))
	h.drain(t)

	finished := h.eventsOf(event.MapFinished)
	require.Len(t, finished, 1)
	finData := finished[0].Data.(event.MapFinishedData)
	assert.Equal(t, map[int]int{2002: drops}, finData.Changes)

	completions, err := h.store.RecentMapCompletions(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, completions, 1)
	// 2000 firecrystals at 10 each.
	assert.InDelta(t, 20000.0, completions[0].CurrencyGained, 0.001)
}

func TestPauseExcludedFromDuration(t *testing.T) {
	h := newHarness(t, nil)
	ts := time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC)

	h.publish(t, ts, event.EnterLevelData{LevelID: 5105, LevelUID: 1, LevelType: 2})
	h.publish(t, ts.Add(time.Minute), event.GamePauseData{Paused: true})
	h.publish(t, ts.Add(2*time.Minute), event.GamePauseData{Paused: false})
	h.publish(t, ts.Add(5*time.Minute), event.ExitLevelData{})

	finished := h.eventsOf(event.MapFinished)
	require.Len(t, finished, 1)
	assert.InDelta(t, 240.0, finished[0].Data.(event.MapFinishedData).Duration, 0.001)
}

func TestReentrantMapEntryForcesClose(t *testing.T) {
	h := newHarness(t, nil)
	ts := time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC)

	h.publish(t, ts, event.EnterLevelData{LevelID: 5105, LevelUID: 1, LevelType: 2})
	// A new map without exiting the first closes it as anomalous.
	h.publish(t, ts.Add(time.Minute), event.EnterLevelData{LevelID: 5205, LevelUID: 2, LevelType: 2})

	finished := h.eventsOf(event.MapFinished)
	require.Len(t, finished, 1)
	assert.True(t, finished[0].Data.(event.MapFinishedData).Anomalous)
	assert.Equal(t, MapFarming, h.mapsvc.State())

	// Entering town closes the second map normally.
	h.publish(t, ts.Add(10*time.Minute), event.EnterLevelData{LevelID: 103, LevelUID: 3, LevelType: 0})
	finished = h.eventsOf(event.MapFinished)
	require.Len(t, finished, 2)
	assert.False(t, finished[1].Data.(event.MapFinishedData).Anomalous)
	assert.Equal(t, MapIdle, h.mapsvc.State())
}

func TestDiscontinuityClosesOpenMap(t *testing.T) {
	h := newHarness(t, nil)
	ts := time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC)

	h.publish(t, ts, event.EnterLevelData{LevelID: 5105, LevelUID: 1, LevelType: 2})
	h.publish(t, ts.Add(time.Minute), event.DiscontinuityData{Reason: "file truncated"})

	finished := h.eventsOf(event.MapFinished)
	require.Len(t, finished, 1)
	assert.True(t, finished[0].Data.(event.MapFinishedData).Anomalous)
	assert.Equal(t, MapIdle, h.mapsvc.State())
}

func TestSessionRestoreAfterRestart(t *testing.T) {
	ts := time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC)
	h := newHarness(t, func(st *store.Store) {
		ctx := context.Background()
		p, err := st.GetOrCreatePlayer(ctx, "Kael")
		require.NoError(t, err)
		sess, err := st.CreateSession(ctx, &p.ID, p.Name, ts)
		require.NoError(t, err)
		_, err = st.CreateMapCompletion(ctx, store.MapCompletion{
			PlayerID:       p.ID,
			SessionID:      &sess.ID,
			MapID:          5105,
			StartedAt:      ts,
			CompletedAt:    ts.Add(5 * time.Minute),
			Duration:       300,
			CurrencyGained: 60,
		}, nil)
		require.NoError(t, err)
	})
	h.drain(t)

	restores := h.eventsOf(event.SessionRestore)
	require.Len(t, restores, 1, "restore must announce exactly once")
	data := restores[0].Data.(event.SessionRestoreData)
	assert.Equal(t, "Kael", data.Player)
	assert.Equal(t, 1, data.TotalMaps)
	assert.InDelta(t, 60.0, data.CurrencyTotal, 0.001)

	totals := h.stats.Totals()
	assert.Equal(t, 1, totals.TotalMaps)
	assert.InDelta(t, 60.0, totals.CurrencyTotal, 0.001)
}

func TestInventoryFlushOnFightView(t *testing.T) {
	h := newHarness(t, nil)
	ts := time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC)

	h.publish(t, ts, event.PlayerJoinData{PlayerName: "Kael", Mode: 1})
	h.publish(t, ts, event.ItemChangeData{ItemID: 1001, Action: "Add", Amount: 40, Page: 1, Slot: 2, Name: "Flame Ember"})
	h.publish(t, ts, event.BagModifyData{Page: 1, Slot: 3, ItemID: 2002, Quantity: 7})
	h.publish(t, ts, event.GameViewData{View: "UIRoot/FightCtrl"})

	player, err := h.store.GetOrCreatePlayer(context.Background(), "Kael")
	require.NoError(t, err)
	rows, err := h.store.LoadInventory(context.Background(), player.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 1001, rows[0].ItemID)
	assert.Equal(t, 40, rows[0].Quantity)
	assert.Equal(t, 7, rows[1].Quantity)

	// Emptying the slot flushes as a delete.
	h.publish(t, ts, event.ItemChangeData{ItemID: 1001, Action: "Delete", Amount: 0, Page: 1, Slot: 2})
	h.publish(t, ts, event.GameViewData{View: "UIRoot/FightCtrl"})

	rows, err = h.store.LoadInventory(context.Background(), player.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 2002, rows[0].ItemID)
}

func TestMarketTransactionInference(t *testing.T) {
	h := newHarness(t, func(st *store.Store) {
		require.NoError(t, st.SeedItems(context.Background(), []store.Item{
			{ItemID: 2002, Name: "Netherrealm Firecrystal", Category: "currency", Price: 10},
		}, store.PriceSourceLocal))
	})
	ts := time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC)

	h.publish(t, ts, event.PlayerJoinData{PlayerName: "Kael", Mode: 1})
	h.publish(t, ts, event.ItemChangeData{ItemID: 2002, Action: "Add", Amount: 5, Page: 1, Slot: 5})

	h.publish(t, ts, event.GameViewData{View: "UIRoot/AuctionHouseCtrl"})
	opens := h.eventsOf(event.MarketAction)
	require.Len(t, opens, 1)
	assert.True(t, opens[0].Data.(event.MarketActionData).Open)

	// Confirmation popups do not leave the market.
	h.publish(t, ts, event.GameViewData{View: "UIRoot/AuctionHouseConfirmCtrl"})
	assert.True(t, h.market.Open())

	// Selling the stack empties the slot.
	h.publish(t, ts.Add(time.Second), event.ItemChangeData{ItemID: 2002, Action: "Update", Amount: 0, Page: 1, Slot: 5})

	h.publish(t, ts.Add(2*time.Second), event.GameViewData{View: "UIRoot/FightCtrl"})
	assert.False(t, h.market.Open())

	sessID := h.session.Active().ID
	txns, err := h.store.MarketTransactions(context.Background(), sessID)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, store.ActionLost, txns[0].Action)
	assert.Equal(t, 5, txns[0].Quantity)

	published := h.eventsOf(event.MarketTransaction)
	require.Len(t, published, 1)
	assert.Equal(t, 5, published[0].Data.(event.MarketTransactionData).Quantity)

	// The transaction rolls into the session totals: 5 lost at 10 each.
	sess, err := h.store.LatestOpenSession(context.Background())
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.InDelta(t, -50.0, sess.CurrencyTotal, 0.001)
}

func TestStatsEntryCostCharged(t *testing.T) {
	h := newHarness(t, nil)
	ts := time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC)

	h.publish(t, ts, event.PlayerJoinData{PlayerName: "Kael", Mode: 1})
	h.publish(t, ts, event.ItemChangeData{ItemID: 3003, Action: "Add", Amount: 2, Page: 1, Slot: 0})
	h.publish(t, ts, event.GameViewData{View: "UIRoot/MysteryAreaCtrl"})
	h.publish(t, ts, event.ItemChangeData{ItemID: 3003, Action: "Update", Amount: 1, Page: 1, Slot: 0})
	h.publish(t, ts, event.EnterLevelData{LevelID: 5105, LevelUID: 1, LevelType: 2})

	totals := h.stats.Totals()
	assert.InDelta(t, -0.5, totals.CurrencyTotal, 0.001, "one invitation at 0.5")

	h.publish(t, ts.Add(4*time.Minute), event.ExitLevelData{})
	totals = h.stats.Totals()
	assert.Equal(t, 1, totals.TotalMaps)
	assert.InDelta(t, 240.0, totals.TotalTime, 0.001)
}

func TestStatsExpTracking(t *testing.T) {
	h := newHarness(t, nil)
	ts := time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC)

	h.publish(t, ts, event.PlayerJoinData{PlayerName: "Kael", Mode: 1})
	// Baseline reading contributes nothing.
	h.publish(t, ts, event.ExpUpdateData{Experience: 1000, Level: 10})
	h.publish(t, ts, event.ExpUpdateData{Experience: 4000, Level: 10})
	// Level up resets the raw counter; the new value is the gain.
	h.publish(t, ts, event.ExpUpdateData{Experience: 500, Level: 11})

	totals := h.stats.Totals()
	assert.InDelta(t, 3500.0, totals.ExpTotal, 0.001)
}
