package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm/clause"
)

// UpsertItem inserts or refreshes one item's metadata and price,
// keyed by the game item id.
func (s *Store) UpsertItem(ctx context.Context, item Item) error {
	item.UpdatedAt = time.Now()
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "item_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "category", "price", "updated_at"}),
	}).Create(&item).Error
	if err != nil {
		return fmt.Errorf("upsert item %d: %w", item.ItemID, err)
	}
	return nil
}

// SeedItems bulk-upserts a freshly loaded price table and records the
// revision with its source.
func (s *Store) SeedItems(ctx context.Context, items []Item, source string) error {
	if len(items) > 0 {
		now := time.Now()
		for i := range items {
			items[i].UpdatedAt = now
		}
		err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "item_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "category", "price", "updated_at"}),
		}).CreateInBatches(items, 200).Error
		if err != nil {
			return fmt.Errorf("seed items: %w", err)
		}
	}
	rev := PriceRevision{Source: source, ItemCount: len(items)}
	if err := s.db.WithContext(ctx).Create(&rev).Error; err != nil {
		return fmt.Errorf("record price revision: %w", err)
	}
	return nil
}

// GetItem returns the item row for a game item id.
func (s *Store) GetItem(ctx context.Context, itemID int) (*Item, error) {
	var item Item
	if err := s.db.WithContext(ctx).Where("item_id = ?", itemID).First(&item).Error; err != nil {
		return nil, fmt.Errorf("lookup item %d: %w", itemID, err)
	}
	return &item, nil
}
