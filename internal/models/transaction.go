package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const MaxDescriptionLength = 200

// AmountLimit bounds the magnitude of a numeric(12,2) amount, exclusive.
var AmountLimit = decimal.New(1, 10)

type Transaction struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	Date        time.Time       `gorm:"type:date;not null;index" json:"date"`
	Description string          `gorm:"size:200;not null" json:"description"`
	Amount      decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	Category    *string         `gorm:"size:100" json:"category,omitempty"`
	Explanation *string         `json:"explanation,omitempty"`

	UserID    uint `gorm:"index" json:"user_id"`
	AccountID uint `gorm:"index" json:"account_id"`
	FileID    uint `gorm:"index" json:"file_id"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsDebit reports money leaving the account.
func (t Transaction) IsDebit() bool { return t.Amount.IsNegative() }

func (t Transaction) IsCredit() bool { return t.Amount.IsPositive() }

func (t Transaction) ExplanationText() string {
	if t.Explanation == nil {
		return ""
	}
	return *t.Explanation
}
