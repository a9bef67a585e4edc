package models

import "time"

// TransactionType classifies ledger entries.
type TransactionType string

const (
	TxDeposit  TransactionType = "deposit"
	TxRefund   TransactionType = "refund"
	TxDailyFee TransactionType = "daily_fee"
)

// Transaction is one ledger entry against a user's balance.
type Transaction struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	UserID      uint            `gorm:"not null;index" json:"user_id"`
	Amount      float64         `gorm:"not null" json:"amount"`
	Type        TransactionType `gorm:"not null" json:"type"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"created_at"`

	User User `json:"user,omitempty"`
}

// BillingLog records that the daily fee was charged for a given day, making
// the daily billing pass idempotent.
type BillingLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_user_date" json:"user_id"`
	Date      string    `gorm:"not null;uniqueIndex:idx_user_date" json:"date"`
	TotalFee  float64   `json:"total_fee"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName overrides the table name for Transaction
func (Transaction) TableName() string {
	return "transactions"
}

// TableName overrides the table name for BillingLog
func (BillingLog) TableName() string {
	return "billing_logs"
}
