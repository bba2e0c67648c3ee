package service

import "time"

// SlotKey addresses one bag slot.
type SlotKey struct {
	Page int
	Slot int
}

// SlotItem is the content of one occupied slot.
type SlotItem struct {
	ItemID   int
	Quantity int
	Name     string
	Category string
}

// Inventory is the slot-indexed projection of the player's bags folded
// from item change events. Not safe for concurrent use; owners lock.
type Inventory struct {
	Slots map[SlotKey]SlotItem
}

// NewInventory returns an empty projection.
func NewInventory() *Inventory {
	return &Inventory{Slots: map[SlotKey]SlotItem{}}
}

// ChangeItem sets or clears a slot and returns the signed change in the
// total quantity of that item id across all slots. Quantity zero or
// below empties the slot.
func (inv *Inventory) ChangeItem(page, slot, itemID, quantity int, name, category string) int {
	key := SlotKey{Page: page, Slot: slot}

	before := inv.totalOf(itemID)
	if quantity <= 0 {
		delete(inv.Slots, key)
	} else {
		inv.Slots[key] = SlotItem{ItemID: itemID, Quantity: quantity, Name: name, Category: category}
	}
	return inv.totalOf(itemID) - before
}

func (inv *Inventory) totalOf(itemID int) int {
	total := 0
	for _, item := range inv.Slots {
		if item.ItemID == itemID {
			total += item.Quantity
		}
	}
	return total
}

// Copy returns a deep copy.
func (inv *Inventory) Copy() *Inventory {
	out := NewInventory()
	for key, item := range inv.Slots {
		out.Slots[key] = item
	}
	return out
}

// Totals folds the slots into item id totals.
func (inv *Inventory) Totals() map[int]int {
	totals := map[int]int{}
	for _, item := range inv.Slots {
		totals[item.ItemID] += item.Quantity
	}
	return totals
}

// Snapshot is an immutable copy of the projection at one instant.
type Snapshot struct {
	Time      time.Time
	Inventory *Inventory
}

// SnapshotOf copies inv into a snapshot stamped now.
func SnapshotOf(inv *Inventory) Snapshot {
	return Snapshot{Time: time.Now(), Inventory: inv.Copy()}
}

// Diff returns signed per-item deltas from old to new: positive means
// gained, negative lost. Items absent on one side count as zero; zero
// deltas are omitted.
func Diff(newer, older Snapshot) map[int]int {
	diff := map[int]int{}
	newTotals := newer.Inventory.Totals()
	oldTotals := older.Inventory.Totals()

	for id, qty := range newTotals {
		if d := qty - oldTotals[id]; d != 0 {
			diff[id] = d
		}
	}
	for id, qty := range oldTotals {
		if _, seen := newTotals[id]; !seen {
			diff[id] = -qty
		}
	}
	return diff
}
