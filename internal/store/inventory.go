package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LoadInventory returns every occupied slot for a player.
func (s *Store) LoadInventory(ctx context.Context, playerID uint) ([]InventorySlot, error) {
	var slots []InventorySlot
	err := s.db.WithContext(ctx).
		Where("player_id = ?", playerID).
		Order("page, slot").
		Find(&slots).Error
	if err != nil {
		return nil, fmt.Errorf("load inventory for player %d: %w", playerID, err)
	}
	return slots, nil
}

// SaveSlots writes the dirty slots of a player's projection. Slots
// with zero quantity are deleted, the rest upserted on
// (player, page, slot). Runs in one transaction so a flush is all or
// nothing.
func (s *Store) SaveSlots(ctx context.Context, playerID uint, slots []InventorySlot) error {
	if len(slots) == 0 {
		return nil
	}
	now := time.Now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, slot := range slots {
			slot.PlayerID = playerID
			slot.UpdatedAt = now
			if slot.Quantity <= 0 {
				err := tx.Where("player_id = ? AND page = ? AND slot = ?",
					playerID, slot.Page, slot.Slot).
					Delete(&InventorySlot{}).Error
				if err != nil {
					return err
				}
				continue
			}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "player_id"}, {Name: "page"}, {Name: "slot"}},
				DoUpdates: clause.AssignmentColumns([]string{"item_id", "quantity", "updated_at"}),
			}).Create(&slot).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save %d slots for player %d: %w", len(slots), playerID, err)
	}
	return nil
}
