package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AffixEntry is one affix attached to a completion being recorded.
type AffixEntry struct {
	AffixID     int
	Description string
}

// CreateMapCompletion persists a finished map run with its item deltas
// and affixes in one transaction. The operation is idempotent on
// (player, started_at): replaying a log segment returns the existing
// row untouched.
func (s *Store) CreateMapCompletion(ctx context.Context, completion MapCompletion, affixes []AffixEntry) (*MapCompletion, error) {
	var existing MapCompletion
	err := s.db.WithContext(ctx).
		Where("player_id = ? AND started_at = ?", completion.PlayerID, completion.StartedAt).
		First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("check existing completion: %w", err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Items", "Affixes").Create(&completion).Error; err != nil {
			return err
		}
		for i := range completion.Items {
			completion.Items[i].MapCompletionID = completion.ID
			if err := tx.Create(&completion.Items[i]).Error; err != nil {
				return err
			}
		}
		for _, entry := range affixes {
			affix := Affix{AffixID: entry.AffixID, Description: entry.Description}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "affix_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"description"}),
			}).Create(&affix).Error
			if err != nil {
				return err
			}
			// OnConflict-updated rows keep their original primary key;
			// fetch it for the link row.
			if err := tx.Where("affix_id = ?", entry.AffixID).First(&affix).Error; err != nil {
				return err
			}
			link := MapAffix{MapCompletionID: completion.ID, AffixID: affix.ID}
			err = tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&link).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create map completion: %w", err)
	}
	return &completion, nil
}

// UpdateMapCompletionDescription sets the user-editable note on a
// completion. The rest of the row stays immutable after creation.
func (s *Store) UpdateMapCompletionDescription(ctx context.Context, id uint, description string) error {
	res := s.db.WithContext(ctx).
		Model(&MapCompletion{}).
		Where("id = ?", id).
		Update("description", description)
	if res.Error != nil {
		return fmt.Errorf("update completion description: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// RecentMapCompletions returns the newest completions with their item
// rows, for the query surface.
func (s *Store) RecentMapCompletions(ctx context.Context, limit int) ([]MapCompletion, error) {
	if limit <= 0 {
		limit = 20
	}
	var completions []MapCompletion
	err := s.db.WithContext(ctx).
		Preload("Items").
		Order("completed_at DESC").
		Limit(limit).
		Find(&completions).Error
	if err != nil {
		return nil, fmt.Errorf("list map completions: %w", err)
	}
	return completions, nil
}
