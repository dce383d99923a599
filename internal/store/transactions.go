package store

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"bookkeeping-go/internal/models"
)

const insertBatchSize = 500

// SaveTransactions inserts txs as one unit. Nothing is kept if any insert fails.
func (s *Store) SaveTransactions(ctx context.Context, txs []models.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(&txs, insertBatchSize).Error
	})
	if err != nil {
		return fmt.Errorf("save %d transactions: %w", len(txs), err)
	}
	return nil
}

type TransactionFilter struct {
	AccountID uint
	From      *time.Time
	To        *time.Time
	MinAmount *decimal.Decimal
	MaxAmount *decimal.Decimal
	Limit     int
}

func (s *Store) ListTransactions(ctx context.Context, userID uint, f TransactionFilter) ([]models.Transaction, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("date desc, id desc")
	if f.AccountID != 0 {
		q = q.Where("account_id = ?", f.AccountID)
	}
	if f.From != nil {
		q = q.Where("date >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("date <= ?", *f.To)
	}
	if f.MinAmount != nil {
		q = q.Where("amount >= ?", *f.MinAmount)
	}
	if f.MaxAmount != nil {
		q = q.Where("amount <= ?", *f.MaxAmount)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var txs []models.Transaction
	if err := q.Find(&txs).Error; err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

// ExplainedTransactions returns the user's transactions that carry a
// non-empty explanation, newest first.
func (s *Store) ExplainedTransactions(ctx context.Context, userID uint) ([]models.Transaction, error) {
	var txs []models.Transaction
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND explanation IS NOT NULL AND explanation <> ''", userID).
		Order("date desc, id desc").
		Find(&txs).Error
	if err != nil {
		return nil, fmt.Errorf("explained transactions: %w", err)
	}
	return txs, nil
}

func (s *Store) GetTransaction(ctx context.Context, userID, id uint) (*models.Transaction, error) {
	var t models.Transaction
	if err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&t).Error; err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

// EnrichTransaction writes the mutable enrichment fields of t. Date,
// description and amount are never touched.
func (s *Store) EnrichTransaction(ctx context.Context, t *models.Transaction) error {
	err := s.db.WithContext(ctx).Model(t).
		Select("Explanation", "Category", "AccountID").
		Updates(t).Error
	if err != nil {
		return fmt.Errorf("enrich transaction %d: %w", t.ID, err)
	}
	return nil
}
