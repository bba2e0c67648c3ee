package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/oraclelog/oracle-go/internal/bus"
	"github.com/oraclelog/oracle-go/internal/store"
	"github.com/oraclelog/oracle-go/pkg/oracle/event"
)

// marketQuietPeriod flushes a pending transaction once slot updates
// for it stop arriving; a single buy or sell lands as a burst.
const marketQuietPeriod = time.Second

// MarketService infers auction house trades. While the market view is
// open it mirrors inventory changes against a baseline taken at open;
// the per-item net delta is recorded as a gained or lost transaction.
type MarketService struct {
	Base
	store     *store.Store
	inventory *InventoryService

	open     bool
	tracking *Inventory

	pendingItem int
	pendingQty  int
	pendingAt   time.Time
}

func NewMarketService(b *bus.Bus, st *store.Store, inv *InventoryService, log *slog.Logger) *MarketService {
	return &MarketService{
		Base:      newBase("market", b, log),
		store:     st,
		inventory: inv,
	}
}

func (s *MarketService) Manifest() Manifest {
	return Manifest{
		Name:     "market",
		Version:  "1.0.0",
		Requires: map[string]string{"inventory": ">=1.0.0"},
	}
}

func (s *MarketService) Startup(ctx context.Context) error {
	s.subscribe(ctx, s.handle, withTracked(
		event.GameView,
		event.ItemChange,
		event.BagModify,
	)...)
	return nil
}

func (s *MarketService) PostStartup(ctx context.Context) error { return nil }

func (s *MarketService) Shutdown(ctx context.Context) error {
	s.unsubscribe()
	if s.open {
		s.closeMarket()
	}
	return nil
}

// Open reports whether the auction house view is active.
func (s *MarketService) Open() bool { return s.open }

func (s *MarketService) handle(ev event.Event) error {
	s.track(ev)
	switch data := ev.Data.(type) {
	case event.GameViewData:
		s.onView(ev, data.View)
	case event.ItemChangeData:
		if s.open {
			s.onChange(ev.Timestamp, data.Page, data.Slot, data.ItemID, changeQuantity(data))
		}
	case event.BagModifyData:
		if s.open {
			s.onChange(ev.Timestamp, data.Page, data.Slot, data.ItemID, data.Quantity)
		}
	}
	return nil
}

func (s *MarketService) onView(ev event.Event, view string) {
	// Confirmation dialogs open on top of the market without leaving
	// it; they must not close the tracking window.
	if strings.Contains(view, "Confirm") {
		return
	}
	isMarket := strings.Contains(view, "AuctionHouse")
	switch {
	case isMarket && !s.open:
		s.openMarket(ev)
	case isMarket && s.open:
		// Still in the market; a view refresh is a flush point for a
		// pending transaction that went quiet.
		s.flushIfQuiet(time.Now())
	case !isMarket && s.open:
		s.closeMarket()
	}
}

// openMarket takes the tracking baseline synchronized to the view
// event, so item changes still queued at the inventory service are not
// misread as trades. Slot updates carry absolute quantities, so a
// baseline that already includes a change simply yields a zero delta
// when the change is mirrored.
func (s *MarketService) openMarket(ev event.Event) {
	s.open = true
	snap, err := s.inventory.SnapshotSynced(s.ctx, ev)
	if err != nil {
		snap = s.inventory.Snapshot()
	}
	s.tracking = snap.Inventory
	s.pendingItem = 0
	s.pendingQty = 0
	s.log.Debug("auction house opened", "baseline_slots", len(s.tracking.Slots))
	s.publish(event.MarketActionData{Open: true})
}

func (s *MarketService) closeMarket() {
	s.flushPending()
	s.open = false
	s.tracking = nil
	s.log.Debug("auction house closed")
	s.publish(event.MarketActionData{Open: false})
}

func (s *MarketService) onChange(ts time.Time, page, slot, itemID, quantity int) {
	delta := s.tracking.ChangeItem(page, slot, itemID, quantity, "", "")
	if delta == 0 {
		return
	}
	changedItem := itemID
	if changedItem == 0 {
		changedItem = s.pendingItem
	}
	// A different item ends the current batch; one trade touches one
	// item id across possibly many slots.
	if s.pendingItem != 0 && changedItem != s.pendingItem {
		s.flushPending()
	}
	if s.pendingItem != 0 && ts.Sub(s.pendingAt) > marketQuietPeriod {
		s.flushPending()
	}
	s.pendingItem = changedItem
	s.pendingQty += delta
	s.pendingAt = ts
}

func (s *MarketService) flushIfQuiet(now time.Time) {
	if s.pendingItem != 0 && now.Sub(s.pendingAt) > marketQuietPeriod {
		s.flushPending()
	}
}

func (s *MarketService) flushPending() {
	if s.pendingItem == 0 || s.pendingQty == 0 {
		s.pendingItem = 0
		s.pendingQty = 0
		return
	}
	action := store.ActionGained
	qty := s.pendingQty
	if qty < 0 {
		action = store.ActionLost
		qty = -qty
	}

	txn := store.MarketTransaction{
		Timestamp: s.pendingAt,
		ItemID:    s.pendingItem,
		Quantity:  qty,
		Action:    action,
	}
	if sessionID := s.SessionID(); sessionID != 0 {
		txn.SessionID = &sessionID
	}
	if name := s.PlayerName(); name != "" {
		if player, err := s.store.GetOrCreatePlayer(s.ctx, name); err == nil {
			txn.PlayerID = &player.ID
		}
	}

	saved, err := s.store.CreateMarketTransaction(s.ctx, txn)
	if err != nil {
		s.log.Error("failed to save market transaction",
			"item_id", txn.ItemID, "error", err)
		s.pendingItem = 0
		s.pendingQty = 0
		return
	}
	s.log.Info("market transaction",
		"item_id", saved.ItemID, "quantity", saved.Quantity, "action", saved.Action)

	data := event.MarketTransactionData{
		TransactionID: saved.ID,
		ItemID:        saved.ItemID,
		Quantity:      saved.Quantity,
		Action:        saved.Action,
	}
	if saved.SessionID != nil {
		data.SessionID = *saved.SessionID
	}
	s.publish(data)

	s.pendingItem = 0
	s.pendingQty = 0
}

// changeQuantity maps an ItemChange action to the slot's new quantity.
func changeQuantity(data event.ItemChangeData) int {
	if data.Action == "Delete" {
		return 0
	}
	return data.Amount
}
