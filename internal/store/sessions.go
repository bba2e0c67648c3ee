package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// CreateSession opens a new active session. startedAt comes from the
// log event that triggered it, not the wall clock.
func (s *Store) CreateSession(ctx context.Context, playerID *uint, playerName string, startedAt time.Time) (*Session, error) {
	sess := Session{
		PlayerID:   playerID,
		PlayerName: playerName,
		IsActive:   true,
		StartedAt:  startedAt,
	}
	if err := s.db.WithContext(ctx).Create(&sess).Error; err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return &sess, nil
}

// LatestOpenSession returns the most recent active session, or nil
// when none is open.
func (s *Store) LatestOpenSession(ctx context.Context) (*Session, error) {
	var sess Session
	err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("started_at DESC").
		First(&sess).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find open session: %w", err)
	}
	return &sess, nil
}

// SessionTotals are the aggregates recomputed from persisted rows.
type SessionTotals struct {
	TotalMaps       int
	TotalTime       float64
	CurrencyTotal   float64
	ExpTotal        float64
	CurrencyPerHour float64
	CurrencyPerMap  float64
	ExpPerHour      float64
}

// RecomputeSessionTotals aggregates a session's completions and market
// transactions. A gained transaction adds its quantity valued at the
// item's price, a lost one subtracts; items without a known price
// contribute zero. Rates derive from total map time; an empty session
// yields all zeros.
func (s *Store) RecomputeSessionTotals(ctx context.Context, sessionID uint) (SessionTotals, error) {
	var row struct {
		Count    int
		Duration float64
		Currency float64
		Exp      float64
	}
	err := s.db.WithContext(ctx).Model(&MapCompletion{}).
		Select("COUNT(*) AS count, COALESCE(SUM(duration), 0) AS duration, "+
			"COALESCE(SUM(currency_gained), 0) AS currency, COALESCE(SUM(exp_gained), 0) AS exp").
		Where("session_id = ?", sessionID).
		Scan(&row).Error
	if err != nil {
		return SessionTotals{}, fmt.Errorf("recompute totals for session %d: %w", sessionID, err)
	}

	var market struct {
		Currency float64
	}
	err = s.db.WithContext(ctx).Model(&MarketTransaction{}).
		Select("COALESCE(SUM(CASE WHEN market_transactions.action = ? THEN 1 ELSE -1 END "+
			"* market_transactions.quantity * COALESCE(items.price, 0)), 0) AS currency", ActionGained).
		Joins("LEFT JOIN items ON items.item_id = market_transactions.item_id").
		Where("market_transactions.session_id = ?", sessionID).
		Scan(&market).Error
	if err != nil {
		return SessionTotals{}, fmt.Errorf("recompute market totals for session %d: %w", sessionID, err)
	}

	currency := row.Currency + market.Currency
	totals := SessionTotals{
		TotalMaps:     row.Count,
		TotalTime:     row.Duration,
		CurrencyTotal: currency,
		ExpTotal:      row.Exp,
	}
	if row.Duration > 0 {
		totals.CurrencyPerHour = currency / row.Duration * 3600
		totals.ExpPerHour = row.Exp / row.Duration * 3600
	}
	if row.Count > 0 {
		totals.CurrencyPerMap = currency / float64(row.Count)
	}
	return totals, nil
}

// UpdateSessionTotals writes recomputed totals back to the session row.
func (s *Store) UpdateSessionTotals(ctx context.Context, sessionID uint, t SessionTotals) error {
	err := s.db.WithContext(ctx).Model(&Session{}).Where("id = ?", sessionID).Updates(map[string]any{
		"total_maps":        t.TotalMaps,
		"total_time":        t.TotalTime,
		"currency_total":    t.CurrencyTotal,
		"currency_per_hour": t.CurrencyPerHour,
		"currency_per_map":  t.CurrencyPerMap,
		"exp_total":         t.ExpTotal,
		"exp_per_hour":      t.ExpPerHour,
	}).Error
	if err != nil {
		return fmt.Errorf("update totals for session %d: %w", sessionID, err)
	}
	return nil
}

// CloseSession marks a session inactive with its end time.
func (s *Store) CloseSession(ctx context.Context, sessionID uint, endedAt time.Time) error {
	err := s.db.WithContext(ctx).Model(&Session{}).Where("id = ?", sessionID).Updates(map[string]any{
		"is_active": false,
		"ended_at":  endedAt,
	}).Error
	if err != nil {
		return fmt.Errorf("close session %d: %w", sessionID, err)
	}
	return nil
}

// RecentSessions returns the newest sessions for the query surface.
func (s *Store) RecentSessions(ctx context.Context, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 20
	}
	var sessions []Session
	err := s.db.WithContext(ctx).Order("started_at DESC").Limit(limit).Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}
