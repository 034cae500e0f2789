package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus is the lifecycle state of a scheduled payment.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusOverdue PaymentStatus = "overdue"
)

// Recurrence describes how often a scheduled payment repeats. Generating the
// next occurrence is done outside this service.
type Recurrence string

const (
	RecurrenceNone     Recurrence = "none"
	RecurrenceWeekly   Recurrence = "weekly"
	RecurrenceBiweekly Recurrence = "biweekly"
	RecurrenceMonthly  Recurrence = "monthly"
	RecurrenceYearly   Recurrence = "yearly"
)

// PaymentSchedule is the source of truth for a planned payment. Budget payment
// entries are a projection of these rows.
type PaymentSchedule struct {
	Base
	UserID         string          `gorm:"type:uuid;not null;index" json:"user_id"`
	Name           string          `gorm:"not null" json:"name"`
	Amount         decimal.Decimal `gorm:"type:DECIMAL(20,2);not null" json:"amount"`
	CategoryID     string          `gorm:"type:uuid;not null" json:"category_id"`
	DueDate        time.Time       `gorm:"not null;index" json:"due_date"`
	Status         PaymentStatus   `gorm:"not null;default:'pending'" json:"status"`
	Recurrence     Recurrence      `gorm:"not null;default:'none'" json:"recurrence"`
	Notes          string          `json:"notes,omitempty"`
	WeeklyBudgetID *string         `gorm:"type:uuid;index" json:"weekly_budget_id,omitempty"`
	PaidBy         *string         `gorm:"type:uuid" json:"paid_by,omitempty"`
	PaidAt         *time.Time      `json:"paid_at,omitempty"`
}

// IsPending reports whether the schedule still awaits payment. Overdue
// schedules are pending ones past their due date.
func (p *PaymentSchedule) IsPending() bool {
	return p.Status == PaymentStatusPending || p.Status == PaymentStatusOverdue
}
