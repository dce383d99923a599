package models

import (
	"strings"
	"time"
)

// Account categories of the chart of accounts.
const (
	CategoryAssets      = "Assets"
	CategoryLiabilities = "Liabilities"
	CategoryEquity      = "Equity"
	CategoryIncome      = "Income"
	CategoryExpenses    = "Expenses"
)

var accountCategories = []string{
	CategoryAssets, CategoryLiabilities, CategoryEquity, CategoryIncome, CategoryExpenses,
}

type Account struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"uniqueIndex:idx_account_user_name" json:"user_id"`
	Name        string    `gorm:"size:100;not null;uniqueIndex:idx_account_user_name" json:"name"`
	Category    string    `gorm:"size:20;not null" json:"category"`
	SubCategory string    `gorm:"size:100" json:"sub_category,omitempty"`
	Code        string    `gorm:"size:20" json:"code,omitempty"`
	Link        string    `gorm:"size:50" json:"link,omitempty"`
	IsActive    bool      `gorm:"default:true" json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NormalizeAccountCategory maps s onto the chart of accounts enumeration,
// case-insensitively. ok is false for anything outside it.
func NormalizeAccountCategory(s string) (string, bool) {
	s = strings.TrimSpace(s)
	for _, c := range accountCategories {
		if strings.EqualFold(c, s) {
			return c, true
		}
	}
	return "", false
}
