package service

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/oraclelog/oracle-go/internal/bus"
	"github.com/oraclelog/oracle-go/internal/gamedata"
	"github.com/oraclelog/oracle-go/internal/store"
	"github.com/oraclelog/oracle-go/pkg/oracle/event"
)

// MapState is the map service FSM state.
type MapState string

const (
	MapIdle    MapState = "idle"
	MapFarming MapState = "farming"
	MapPaused  MapState = "paused"
)

// townLevelThreshold separates hub/town level ids from farmable maps.
const townLevelThreshold = 1000

// persistAttempts bounds the retries for saving a completion before
// the failure is surfaced as a notification.
const persistAttempts = 3

var htmlTagPattern = regexp.MustCompile(`<[^>]+>`)

// MapService tracks the open map run: entry, exit, pauses, consumed
// entry items, item deltas, exp gained, and the first affix block. On
// exit it publishes the finished and record events and persists the
// completion idempotently.
type MapService struct {
	Base
	store     *store.Store
	items     *gamedata.ItemDB
	maps      *gamedata.MapDB
	inventory *InventoryService

	state       MapState
	levelID     int
	levelUID    int
	mapInfo     *gamedata.MapInfo
	startTime   time.Time
	pausedAt    time.Time
	pausedTotal time.Duration

	preEnter *Snapshot // captured when the map device view opens
	entry    *Snapshot // captured at map start
	consumed []event.ItemDelta
	affixes  []event.Affix // first block per map only

	lastExp   int64
	lastLevel int
	expGained float64
}

// NewMapService wires the service against its peers.
func NewMapService(b *bus.Bus, st *store.Store, items *gamedata.ItemDB, maps *gamedata.MapDB, inv *InventoryService, log *slog.Logger) *MapService {
	return &MapService{
		Base:      newBase("map", b, log),
		store:     st,
		items:     items,
		maps:      maps,
		inventory: inv,
		state:     MapIdle,
	}
}

func (s *MapService) Manifest() Manifest {
	return Manifest{
		Name:     "map",
		Version:  "1.0.0",
		Requires: map[string]string{"inventory": ">=1.0.0"},
	}
}

func (s *MapService) Startup(ctx context.Context) error {
	s.subscribe(ctx, s.handle, withTracked(
		event.EnterLevel,
		event.ExitLevel,
		event.GamePause,
		event.StageAffix,
		event.GameView,
		event.ExpUpdate,
		event.Discontinuity,
	)...)
	return nil
}

func (s *MapService) PostStartup(ctx context.Context) error { return nil }

// Shutdown force-closes an open run so its deltas are not lost. The
// bus is drained before services shut down, so a live snapshot is
// already positioned.
func (s *MapService) Shutdown(ctx context.Context) error {
	s.unsubscribe()
	if s.state != MapIdle {
		s.endMap(time.Now(), true, s.inventory.Snapshot())
	}
	return nil
}

// State reports the current FSM state.
func (s *MapService) State() MapState { return s.state }

func (s *MapService) handle(ev event.Event) error {
	s.track(ev)
	switch data := ev.Data.(type) {
	case event.EnterLevelData:
		s.onEnterLevel(ev, data)
	case event.ExitLevelData:
		if s.state != MapIdle {
			s.endMap(ev.Timestamp, false, s.snapshotFor(ev))
		}
	case event.GamePauseData:
		s.onPause(ev.Timestamp, data.Paused)
	case event.StageAffixData:
		s.onStageAffix(data)
	case event.GameViewData:
		// The map device view precedes entry; its snapshot is the
		// baseline for entry-cost calculation.
		if strings.HasSuffix(data.View, "MysteryAreaCtrl") {
			snap := s.snapshotFor(ev)
			s.preEnter = &snap
			s.log.Debug("pre-enter snapshot captured", "slots", len(snap.Inventory.Slots))
		}
	case event.ExpUpdateData:
		s.onExpUpdate(data)
	case event.DiscontinuityData:
		if s.state != MapIdle {
			s.log.Warn("log discontinuity with open map, closing as anomalous", "reason", data.Reason)
			s.endMap(ev.Timestamp, true, s.snapshotFor(ev))
		}
	}
	return nil
}

// snapshotFor reads the inventory as of ev's position in the event
// stream, so loot that arrived on the bus before ev is counted and loot
// still queued behind it is not. The inventory service folds changes on
// its own subscription, which is why a plain Snapshot at the moment ev
// is handled here could be arbitrarily early or late.
func (s *MapService) snapshotFor(ev event.Event) Snapshot {
	snap, err := s.inventory.SnapshotAt(s.ctx, ev)
	if err != nil {
		s.log.Warn("positioned snapshot unavailable, using live inventory", "error", err)
		return s.inventory.Snapshot()
	}
	return snap
}

func (s *MapService) onEnterLevel(ev event.Event, data event.EnterLevelData) {
	ts := ev.Timestamp
	town := data.LevelID < townLevelThreshold
	switch s.state {
	case MapIdle:
		if town {
			s.log.Debug("entered town level", "level_id", data.LevelID)
			return
		}
		s.startMap(ts, data, s.snapshotFor(ev))
	case MapFarming, MapPaused:
		switch {
		case data.LevelID == s.levelID:
			s.log.Debug("re-entered current level", "level_id", data.LevelID)
		case town:
			s.endMap(ts, false, s.snapshotFor(ev))
		default:
			// A different map without an exit in between: close the
			// open run with what accumulated and start the new one.
			// The checkpoint for ev is consumed on first read, so one
			// snapshot serves as both the close and the new entry.
			s.log.Warn("re-entrant map entry, force-closing open run",
				"open_level", s.levelID, "new_level", data.LevelID)
			snap := s.snapshotFor(ev)
			s.endMap(ts, true, snap)
			s.startMap(ts, data, snap)
		}
	}
}

func (s *MapService) startMap(ts time.Time, data event.EnterLevelData, entry Snapshot) {
	s.state = MapFarming
	s.levelID = data.LevelID
	s.levelUID = data.LevelUID
	s.startTime = ts
	s.pausedTotal = 0
	s.affixes = nil
	s.expGained = 0

	s.mapInfo = nil
	if info, ok := s.maps.Get(data.LevelID); ok {
		s.mapInfo = &info
	}

	s.entry = &entry
	s.consumed = s.consumedItems()

	started := event.MapStartedData{
		LevelID:   data.LevelID,
		LevelUID:  data.LevelUID,
		LevelType: data.LevelType,
		Consumed:  s.consumed,
	}
	if s.mapInfo != nil {
		started.MapName = s.mapInfo.Name
		started.Difficulty = s.mapInfo.Difficulty
	}
	s.publishAt(ts, started)
	s.log.Info("map started", "level_id", data.LevelID, "map", started.MapName)
}

// consumedItems compares the pre-enter snapshot with the entry
// snapshot; negative deltas are the entry cost.
func (s *MapService) consumedItems() []event.ItemDelta {
	if s.preEnter == nil || s.entry == nil {
		return nil
	}
	var consumed []event.ItemDelta
	for itemID, delta := range Diff(*s.entry, *s.preEnter) {
		if delta >= 0 {
			continue
		}
		name, category := s.items.Lookup(itemID)
		consumed = append(consumed, event.ItemDelta{
			ItemID:   itemID,
			Quantity: -delta,
			Name:     name,
			Category: category,
		})
	}
	return consumed
}

func (s *MapService) onPause(ts time.Time, paused bool) {
	switch {
	case paused && s.state == MapFarming:
		s.state = MapPaused
		s.pausedAt = ts
	case !paused && s.state == MapPaused:
		s.state = MapFarming
		s.pausedTotal += ts.Sub(s.pausedAt)
	}
}

func (s *MapService) onStageAffix(data event.StageAffixData) {
	if s.affixes != nil {
		return // only the first block per map counts
	}
	affixes := make([]event.Affix, 0, len(data.Affixes))
	for _, a := range data.Affixes {
		a.Description = htmlTagPattern.ReplaceAllString(a.Description, "")
		affixes = append(affixes, a)
	}
	s.affixes = affixes
	s.log.Debug("affixes captured", "count", len(affixes))
}

func (s *MapService) onExpUpdate(data event.ExpUpdateData) {
	if s.lastLevel != 0 && s.state != MapIdle {
		switch {
		case data.Level > s.lastLevel:
			// Level up resets the counter; the new value is what was
			// gained into the new level.
			s.expGained += float64(data.Experience)
		case data.Level == s.lastLevel:
			if d := data.Experience - s.lastExp; d > 0 {
				s.expGained += float64(d)
			}
		}
	}
	s.lastExp = data.Experience
	s.lastLevel = data.Level
}

func (s *MapService) endMap(ts time.Time, anomalous bool, post Snapshot) {
	if s.state == MapPaused {
		s.pausedTotal += ts.Sub(s.pausedAt)
	}
	duration := ts.Sub(s.startTime) - s.pausedTotal
	if duration < 0 {
		duration = 0
	}

	changes := map[int]int{}
	if s.entry != nil {
		changes = Diff(post, *s.entry)
	}

	finished := event.MapFinishedData{
		LevelID:   s.levelID,
		Duration:  duration.Seconds(),
		Changes:   changes,
		Affixes:   s.affixes,
		Anomalous: anomalous,
	}
	if s.mapInfo != nil {
		finished.MapName = s.mapInfo.Name
		finished.Difficulty = s.mapInfo.Difficulty
	}
	s.publishAt(ts, finished)
	s.log.Info("map finished",
		"level_id", s.levelID, "duration_s", duration.Seconds(), "anomalous", anomalous)

	s.persistCompletion(ts, finished)

	s.state = MapIdle
	s.levelID = 0
	s.levelUID = 0
	s.mapInfo = nil
	s.entry = nil
	s.preEnter = nil
	s.consumed = nil
	s.affixes = nil
	s.expGained = 0
}

func (s *MapService) persistCompletion(ts time.Time, finished event.MapFinishedData) {
	playerName := s.PlayerName()
	if playerName == "" {
		s.log.Debug("no player known, skipping completion persist")
		return
	}

	entryCost := 0.0
	items := make([]store.MapCompletionItem, 0, len(finished.Changes)+len(s.consumed))
	currencyDrops := 0.0
	itemsGained := 0
	for itemID, delta := range finished.Changes {
		value := s.items.Price(itemID) * float64(delta)
		currencyDrops += value
		if delta > 0 {
			itemsGained++
		}
		items = append(items, store.MapCompletionItem{ItemID: itemID, Delta: delta, TotalPrice: value})
	}
	for _, c := range s.consumed {
		cost := s.items.Price(c.ItemID) * float64(c.Quantity)
		entryCost += cost
		items = append(items, store.MapCompletionItem{
			ItemID: c.ItemID, Delta: -c.Quantity, TotalPrice: -cost, Consumed: true,
		})
	}

	completion := store.MapCompletion{
		MapID:          s.levelID,
		MapName:        finished.MapName,
		MapDifficulty:  finished.Difficulty,
		StartedAt:      s.startTime,
		CompletedAt:    ts,
		Duration:       finished.Duration,
		CurrencyGained: currencyDrops - entryCost,
		ExpGained:      s.expGained,
		ItemsGained:    itemsGained,
		Anomalous:      finished.Anomalous,
		Items:          items,
	}

	affixes := make([]store.AffixEntry, 0, len(s.affixes))
	for _, a := range s.affixes {
		affixes = append(affixes, store.AffixEntry{AffixID: a.ID, Description: a.Description})
	}

	player, err := s.store.GetOrCreatePlayer(s.ctx, playerName)
	if err != nil {
		s.notifyPersistFailure(err)
		return
	}
	completion.PlayerID = player.ID
	if sessionID := s.SessionID(); sessionID != 0 {
		completion.SessionID = &sessionID
	}

	var saved *store.MapCompletion
	for attempt := 1; attempt <= persistAttempts; attempt++ {
		saved, err = s.store.CreateMapCompletion(s.ctx, completion, affixes)
		if err == nil {
			break
		}
		s.log.Warn("completion persist failed", "attempt", attempt, "error", err)
	}
	if err != nil {
		s.notifyPersistFailure(err)
		return
	}

	record := event.MapRecordData{
		CompletionID:   saved.ID,
		Player:         playerName,
		MapID:          completion.MapID,
		MapName:        completion.MapName,
		Difficulty:     completion.MapDifficulty,
		StartedAt:      completion.StartedAt,
		CompletedAt:    completion.CompletedAt,
		Duration:       completion.Duration,
		CurrencyGained: completion.CurrencyGained,
		ExpGained:      completion.ExpGained,
		ItemsGained:    completion.ItemsGained,
	}
	if completion.SessionID != nil {
		record.SessionID = *completion.SessionID
	}
	s.publish(record)
}

func (s *MapService) notifyPersistFailure(err error) {
	s.log.Error("failed to save map completion", "error", err)
	s.publish(event.NotificationData{
		Severity: event.SeverityError,
		Message:  "failed to save map completion: " + err.Error(),
	})
}
