package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/oraclelog/oracle-go/internal/bus"
	"github.com/oraclelog/oracle-go/internal/gamedata"
	"github.com/oraclelog/oracle-go/pkg/oracle/event"
)

// snapshotThrottle bounds how often inventory deltas are valued while
// fighting; ItemChange lines arrive in bursts.
const snapshotThrottle = time.Second

// StatsService maintains the rolling session aggregates: currency and
// experience totals with per-hour and per-map rates. Currency gains
// are valued from inventory snapshot diffs while the fight view is
// active, so vendoring in town does not count as farming income.
type StatsService struct {
	Base
	items     *gamedata.ItemDB
	inventory *InventoryService

	sessionStart time.Time
	totalMaps    int
	totalTime    float64 // seconds in maps
	currency     float64
	exp          float64

	view         string
	lastSnapshot *Snapshot
	lastValued   time.Time

	lastExp   int64
	lastLevel int
}

func NewStatsService(b *bus.Bus, items *gamedata.ItemDB, inv *InventoryService, log *slog.Logger) *StatsService {
	return &StatsService{
		Base:      newBase("stats", b, log),
		items:     items,
		inventory: inv,
	}
}

func (s *StatsService) Manifest() Manifest {
	return Manifest{
		Name:    "stats",
		Version: "1.0.0",
		Requires: map[string]string{
			"inventory": ">=1.0.0",
			"map":       ">=1.0.0",
			"session":   ">=1.0.0",
		},
	}
}

func (s *StatsService) Startup(ctx context.Context) error {
	s.subscribe(ctx, s.handle, withTracked(
		event.MapStarted,
		event.MapFinished,
		event.GameView,
		event.ItemChange,
		event.ExpUpdate,
	)...)
	return nil
}

func (s *StatsService) PostStartup(ctx context.Context) error { return nil }

func (s *StatsService) Shutdown(ctx context.Context) error {
	s.unsubscribe()
	return nil
}

func (s *StatsService) handle(ev event.Event) error {
	s.track(ev)
	switch data := ev.Data.(type) {
	case event.SessionStartedData:
		s.reset(data.StartedAt)
		s.publishUpdate()
	case event.SessionRestoreData:
		s.restore(data)
		s.publishUpdate()
	case event.MapStartedData:
		s.onMapStarted(data)
	case event.MapFinishedData:
		s.totalMaps++
		s.totalTime += data.Duration
		s.publishUpdate()
	case event.GameViewData:
		s.view = data.View
	case event.ItemChangeData:
		s.onItemChange(ev)
	case event.ExpUpdateData:
		s.onExpUpdate(data)
	}
	return nil
}

func (s *StatsService) reset(start time.Time) {
	s.sessionStart = start
	s.totalMaps = 0
	s.totalTime = 0
	s.currency = 0
	s.exp = 0
	s.lastSnapshot = nil
	s.lastValued = time.Time{}
}

func (s *StatsService) restore(data event.SessionRestoreData) {
	s.sessionStart = data.StartedAt
	s.totalMaps = data.TotalMaps
	s.totalTime = data.TotalTime
	s.currency = data.CurrencyTotal
	s.exp = data.ExpTotal
	s.lastSnapshot = nil
}

// onMapStarted charges the entry cost up front so an abandoned map
// still shows its spend.
func (s *StatsService) onMapStarted(data event.MapStartedData) {
	cost := 0.0
	for _, c := range data.Consumed {
		cost += s.items.Price(c.ItemID) * float64(c.Quantity)
	}
	if cost != 0 {
		s.currency -= cost
		s.publishUpdate()
	}
}

// onItemChange values the inventory delta since the last valued
// snapshot. Only fight-view changes count; the first snapshot after a
// view switch or session boundary is a baseline and contributes
// nothing. The read is synchronized to the triggering event so the
// inventory service has folded at least this change; consecutive diffs
// chain, so a read that also includes later changes only shifts where
// the valuation lands, not its total.
func (s *StatsService) onItemChange(ev event.Event) {
	ts := ev.Timestamp
	if !strings.Contains(s.view, "FightCtrl") {
		return
	}
	if !s.lastValued.IsZero() && ts.Sub(s.lastValued) < snapshotThrottle {
		return
	}
	s.lastValued = ts

	snap, err := s.inventory.SnapshotSynced(s.ctx, ev)
	if err != nil {
		return
	}
	if s.lastSnapshot == nil {
		s.lastSnapshot = &snap
		return
	}
	gained := 0.0
	for itemID, delta := range Diff(snap, *s.lastSnapshot) {
		gained += s.items.Price(itemID) * float64(delta)
	}
	s.lastSnapshot = &snap
	if gained != 0 {
		s.currency += gained
		s.publishUpdate()
	}
}

func (s *StatsService) onExpUpdate(data event.ExpUpdateData) {
	if s.lastLevel != 0 {
		switch {
		case data.Level > s.lastLevel:
			s.exp += float64(data.Experience)
		case data.Level == s.lastLevel:
			if d := data.Experience - s.lastExp; d > 0 {
				s.exp += float64(d)
			}
		}
		s.publishUpdate()
	}
	s.lastExp = data.Experience
	s.lastLevel = data.Level
}

// Totals reports the current aggregates without publishing.
func (s *StatsService) Totals() event.StatsUpdateData {
	return s.snapshot()
}

func (s *StatsService) snapshot() event.StatsUpdateData {
	out := event.StatsUpdateData{
		TotalMaps:     s.totalMaps,
		TotalTime:     s.totalTime,
		CurrencyTotal: s.currency,
		ExpTotal:      s.exp,
	}
	if !s.sessionStart.IsZero() {
		elapsed := time.Since(s.sessionStart).Hours()
		if elapsed > 0 {
			out.CurrencyPerHour = s.currency / elapsed
			out.ExpPerHour = s.exp / elapsed
		}
	}
	if s.totalMaps > 0 {
		out.CurrencyPerMap = s.currency / float64(s.totalMaps)
	}
	return out
}

func (s *StatsService) publishUpdate() {
	s.publish(s.snapshot())
}
