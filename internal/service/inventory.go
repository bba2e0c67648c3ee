package service

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/oraclelog/oracle-go/internal/bus"
	"github.com/oraclelog/oracle-go/internal/store"
	"github.com/oraclelog/oracle-go/pkg/oracle/event"
)

// checkpointLimit caps how many in-stream checkpoints are retained.
// View changes arrive far more often than anyone reads them back, so
// the oldest are evicted first.
const checkpointLimit = 64

// InventoryService maintains the slot-indexed inventory projection
// folded from item change events, hands out snapshots to peers, and
// persists dirty slots to the store. Slots are flushed when the view
// returns to combat, on a player change, and on shutdown.
//
// Peers consume events on their own bus queues, so a plain read of the
// projection can run ahead of or behind the event that prompted it. The
// service therefore subscribes to the boundary events its peers care
// about and records a checkpoint of the projection while processing
// each one; SnapshotAt hands that checkpoint back, positioned exactly
// at the event's place in the published stream.
type InventoryService struct {
	Base
	store *store.Store

	mu       sync.Mutex
	inv      *Inventory
	dirty    map[SlotKey]struct{}
	playerID uint

	appliedSeq  uint64
	appliedCh   chan struct{} // closed and replaced when appliedSeq advances
	checkpoints map[uint64]*Inventory
	checkOrder  []uint64
}

// NewInventoryService wires the service; subscriptions happen in
// Startup.
func NewInventoryService(b *bus.Bus, st *store.Store, log *slog.Logger) *InventoryService {
	return &InventoryService{
		Base:        newBase("inventory", b, log),
		store:       st,
		inv:         NewInventory(),
		dirty:       map[SlotKey]struct{}{},
		appliedCh:   make(chan struct{}),
		checkpoints: map[uint64]*Inventory{},
	}
}

func (s *InventoryService) Manifest() Manifest {
	return Manifest{Name: "inventory", Version: "1.0.0"}
}

func (s *InventoryService) Startup(ctx context.Context) error {
	s.subscribe(ctx, s.handle, withTracked(
		event.ItemChange,
		event.BagModify,
		event.GameView,
		event.EnterLevel,
		event.ExitLevel,
		event.Discontinuity,
	)...)
	return nil
}

func (s *InventoryService) PostStartup(ctx context.Context) error { return nil }

// Shutdown flushes remaining dirty slots and unsubscribes.
func (s *InventoryService) Shutdown(ctx context.Context) error {
	s.unsubscribe()
	return s.Flush(ctx)
}

func (s *InventoryService) handle(ev event.Event) error {
	s.track(ev)
	err := s.apply(ev)
	s.markApplied(ev.Seq)
	return err
}

func (s *InventoryService) apply(ev event.Event) error {
	switch data := ev.Data.(type) {
	case event.ItemChangeData:
		s.applyChange(data.Page, data.Slot, data.ItemID, data.Amount, data.Name, data.Category)
	case event.BagModifyData:
		s.applyChange(data.Page, data.Slot, data.ItemID, data.Quantity, data.Name, data.Category)
	case event.EnterLevelData, event.ExitLevelData, event.DiscontinuityData:
		s.checkpoint(ev.Seq)
	case event.GameViewData:
		s.checkpoint(ev.Seq)
		// Combat view means all bag menus are closed; a quiet moment
		// to persist.
		if strings.Contains(data.View, "FightCtrl") {
			return s.Flush(s.ctx)
		}
	case event.PlayerChangedData:
		return s.loadFor(data.NewPlayer)
	case event.SessionRestoreData:
		return s.loadFor(data.Player)
	}
	return nil
}

func (s *InventoryService) applyChange(page, slot, itemID, quantity int, name, category string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inv.ChangeItem(page, slot, itemID, quantity, name, category)
	s.dirty[SlotKey{Page: page, Slot: slot}] = struct{}{}
	s.log.Debug("slot updated", "page", page, "slot", slot, "item_id", itemID, "quantity", quantity)
}

// checkpoint copies the projection as it stands at the given sequence
// number. Runs on the subscription goroutine, so every item change
// published before the checkpointed event has already been folded and
// none published after it has.
func (s *InventoryService) checkpoint(seq uint64) {
	if seq == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoints[seq] = s.inv.Copy()
	s.checkOrder = append(s.checkOrder, seq)
	for len(s.checkOrder) > checkpointLimit {
		old := s.checkOrder[0]
		s.checkOrder = s.checkOrder[1:]
		delete(s.checkpoints, old)
	}
}

// markApplied advances the applied watermark and wakes waiters.
func (s *InventoryService) markApplied(seq uint64) {
	if seq == 0 {
		return
	}
	s.mu.Lock()
	if seq > s.appliedSeq {
		s.appliedSeq = seq
		close(s.appliedCh)
		s.appliedCh = make(chan struct{})
	}
	s.mu.Unlock()
}

// waitApplied blocks until the service has processed ev's sequence
// number, which requires seq to belong to a subscribed event type.
func (s *InventoryService) waitApplied(ctx context.Context, seq uint64) error {
	for {
		s.mu.Lock()
		if s.appliedSeq >= seq {
			s.mu.Unlock()
			return nil
		}
		ch := s.appliedCh
		s.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Snapshot returns an immutable copy of the projection as it stands
// right now, with no stream positioning.
func (s *InventoryService) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SnapshotOf(s.inv)
}

// SnapshotAt returns the projection positioned exactly at ev's place in
// the published stream: every item change published before ev is
// included, none published after it. The checkpoint for ev is consumed
// on first read; a second call for the same event, or a call for an
// event type the service does not checkpoint, falls back to a live copy
// taken after ev was applied.
func (s *InventoryService) SnapshotAt(ctx context.Context, ev event.Event) (Snapshot, error) {
	if ev.Seq == 0 {
		return s.Snapshot(), nil
	}
	if err := s.waitApplied(ctx, ev.Seq); err != nil {
		return Snapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if inv, ok := s.checkpoints[ev.Seq]; ok {
		delete(s.checkpoints, ev.Seq)
		return Snapshot{Time: ev.Timestamp, Inventory: inv}, nil
	}
	return SnapshotOf(s.inv), nil
}

// SnapshotSynced returns a live copy taken no earlier than ev: every
// item change published before ev is included, and later ones may be
// too. Cheaper than SnapshotAt for callers whose arithmetic tolerates
// overshoot, such as chained consecutive diffs.
func (s *InventoryService) SnapshotSynced(ctx context.Context, ev event.Event) (Snapshot, error) {
	if ev.Seq != 0 {
		if err := s.waitApplied(ctx, ev.Seq); err != nil {
			return Snapshot{}, err
		}
	}
	return s.Snapshot(), nil
}

// Flush persists the dirty slots. Empty slots become deletes. A store
// failure restores the dirty set so the next flush retries.
func (s *InventoryService) Flush(ctx context.Context) error {
	s.mu.Lock()
	if len(s.dirty) == 0 || s.playerID == 0 {
		s.mu.Unlock()
		return nil
	}
	dirty := s.dirty
	s.dirty = map[SlotKey]struct{}{}
	playerID := s.playerID

	slots := make([]store.InventorySlot, 0, len(dirty))
	for key := range dirty {
		row := store.InventorySlot{PlayerID: playerID, Page: key.Page, Slot: key.Slot}
		if item, ok := s.inv.Slots[key]; ok {
			row.ItemID = item.ItemID
			row.Quantity = item.Quantity
		}
		slots = append(slots, row)
	}
	s.mu.Unlock()

	if err := s.store.SaveSlots(ctx, playerID, slots); err != nil {
		s.mu.Lock()
		for key := range dirty {
			s.dirty[key] = struct{}{}
		}
		s.mu.Unlock()
		return err
	}
	s.log.Debug("inventory flushed", "slots", len(slots))
	return nil
}

// loadFor replaces the projection with the persisted inventory of the
// named player. Checkpoints belong to the previous projection and are
// dropped.
func (s *InventoryService) loadFor(playerName string) error {
	player, err := s.store.GetOrCreatePlayer(s.ctx, playerName)
	if err != nil {
		return err
	}
	rows, err := s.store.LoadInventory(s.ctx, player.ID)
	if err != nil {
		return err
	}

	inv := NewInventory()
	for _, row := range rows {
		name, category := "", ""
		if item, err := s.store.GetItem(s.ctx, row.ItemID); err == nil {
			name, category = item.Name, item.Category
		}
		inv.ChangeItem(row.Page, row.Slot, row.ItemID, row.Quantity, name, category)
	}

	s.mu.Lock()
	s.inv = inv
	s.dirty = map[SlotKey]struct{}{}
	s.playerID = player.ID
	s.checkpoints = map[uint64]*Inventory{}
	s.checkOrder = nil
	s.mu.Unlock()

	s.log.Info("inventory loaded", "player", playerName, "slots", len(rows))
	return nil
}
