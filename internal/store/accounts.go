package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"bookkeeping-go/internal/models"
)

func (s *Store) ListAccounts(ctx context.Context, userID uint) ([]models.Account, error) {
	var accts []models.Account
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("category, name").Find(&accts).Error; err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return accts, nil
}

func (s *Store) ActiveAccounts(ctx context.Context, userID uint) ([]models.Account, error) {
	var accts []models.Account
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("id").
		Find(&accts).Error
	if err != nil {
		return nil, fmt.Errorf("active accounts: %w", err)
	}
	return accts, nil
}

func (s *Store) GetAccount(ctx context.Context, userID, id uint) (*models.Account, error) {
	var a models.Account
	if err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&a).Error; err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

func (s *Store) CreateAccount(ctx context.Context, a *models.Account) error {
	if err := s.db.WithContext(ctx).Create(a).Error; err != nil {
		return fmt.Errorf("create account: %w", duplicate(err))
	}
	return nil
}

func (s *Store) UpdateAccount(ctx context.Context, a *models.Account) error {
	err := s.db.WithContext(ctx).Model(a).
		Select("Name", "Category", "SubCategory", "Code", "Link", "IsActive").
		Updates(a).Error
	if err != nil {
		return fmt.Errorf("update account %d: %w", a.ID, duplicate(err))
	}
	return nil
}

// UpsertAccount creates a or updates the user's account of the same name.
func (s *Store) UpsertAccount(ctx context.Context, a *models.Account) (created bool, err error) {
	var existing models.Account
	err = s.db.WithContext(ctx).Where("user_id = ? AND name = ?", a.UserID, a.Name).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		a.IsActive = true
		return true, s.CreateAccount(ctx, a)
	case err != nil:
		return false, fmt.Errorf("lookup account %q: %w", a.Name, err)
	}
	a.ID = existing.ID
	a.IsActive = existing.IsActive
	return false, s.UpdateAccount(ctx, a)
}
