package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType represents the type of transaction
type TransactionType string

const (
	TransactionTypeIncome  TransactionType = "income"
	TransactionTypeExpense TransactionType = "expense"
)

// Transaction is a ledger entry. PaymentScheduleID and PaymentEntryID are set
// when the transaction was produced by marking a budget payment as paid.
type Transaction struct {
	Base
	UserID      string          `gorm:"type:uuid;not null;index" json:"user_id"`
	CategoryID  *string         `gorm:"type:uuid;index" json:"category_id,omitempty"`
	Type        TransactionType `gorm:"not null" json:"type"`
	Amount      decimal.Decimal `gorm:"type:DECIMAL(20,2);not null" json:"amount"`
	Description string          `json:"description"`
	Date        time.Time       `gorm:"not null;index" json:"date"`

	PaymentScheduleID *string `gorm:"type:uuid;index" json:"payment_schedule_id,omitempty"`
	PaymentEntryID    *string `gorm:"type:uuid;index" json:"payment_entry_id,omitempty"`

	// Relationships
	Category *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
}

// IsPaymentLinked reports whether the transaction was created by paying a
// budget payment entry. Such transactions belong to that entry alone.
func (t *Transaction) IsPaymentLinked() bool {
	return (t.PaymentScheduleID != nil && *t.PaymentScheduleID != "") ||
		(t.PaymentEntryID != nil && *t.PaymentEntryID != "")
}
