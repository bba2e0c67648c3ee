package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// GetOrCreatePlayer returns the player with the given name, creating
// the row on first sight.
func (s *Store) GetOrCreatePlayer(ctx context.Context, name string) (*Player, error) {
	var p Player
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		p = Player{Name: name, Level: 1, LastSeen: time.Now()}
		if err := s.db.WithContext(ctx).Create(&p).Error; err != nil {
			return nil, fmt.Errorf("create player %q: %w", name, err)
		}
		return &p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup player %q: %w", name, err)
	}
	return &p, nil
}

// UpdatePlayerProgress records the player's current level and
// experience plus a last-seen touch.
func (s *Store) UpdatePlayerProgress(ctx context.Context, playerID uint, level int, experience int64) error {
	err := s.db.WithContext(ctx).Model(&Player{}).Where("id = ?", playerID).Updates(map[string]any{
		"level":      level,
		"experience": experience,
		"last_seen":  time.Now(),
	}).Error
	if err != nil {
		return fmt.Errorf("update player %d progress: %w", playerID, err)
	}
	return nil
}
