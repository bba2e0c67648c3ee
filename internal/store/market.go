package store

import (
	"context"
	"fmt"
)

// CreateMarketTransaction appends one row to the market ledger.
func (s *Store) CreateMarketTransaction(ctx context.Context, txn MarketTransaction) (*MarketTransaction, error) {
	if err := s.db.WithContext(ctx).Create(&txn).Error; err != nil {
		return nil, fmt.Errorf("create market transaction: %w", err)
	}
	return &txn, nil
}

// MarketTransactions returns a session's ledger rows, oldest first.
func (s *Store) MarketTransactions(ctx context.Context, sessionID uint) ([]MarketTransaction, error) {
	var txns []MarketTransaction
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("timestamp").
		Find(&txns).Error
	if err != nil {
		return nil, fmt.Errorf("list market transactions for session %d: %w", sessionID, err)
	}
	return txns, nil
}
