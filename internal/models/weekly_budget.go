package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// CreationMode records how a weekly budget came into existence.
type CreationMode string

const (
	CreationModeAuto     CreationMode = "auto"
	CreationModeManual   CreationMode = "manual"
	CreationModeTemplate CreationMode = "template"
	CreationModeSmart    CreationMode = "smart"
)

// RefKind tags what a payment entry's source reference points at.
type RefKind string

const (
	RefKindNone        RefKind = "none"
	RefKindSchedule    RefKind = "schedule"
	RefKindTransaction RefKind = "transaction"
)

// SourceRef is a tagged reference to the record a payment entry was
// projected from.
type SourceRef struct {
	Kind RefKind `json:"kind"`
	ID   string  `json:"id,omitempty"`
}

// ScheduleRef returns a reference to a payment schedule.
func ScheduleRef(id string) SourceRef { return SourceRef{Kind: RefKindSchedule, ID: id} }

// TransactionRef returns a reference to a ledger transaction.
func TransactionRef(id string) SourceRef { return SourceRef{Kind: RefKindTransaction, ID: id} }

// PaymentEntry is one obligation or paid item inside a budget category.
type PaymentEntry struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Amount        decimal.Decimal `json:"amount"`
	ScheduledDate time.Time       `json:"scheduled_date"`
	Status        PaymentStatus   `json:"status"`
	Notes         string          `json:"notes,omitempty"`
	PaidBy        *string         `json:"paid_by,omitempty"`
	PaidAt        *time.Time      `json:"paid_at,omitempty"`
	Source        SourceRef       `json:"source"`
	TransactionID *string         `json:"transaction_id,omitempty"`
}

// FromTransaction reports whether the entry was materialized from a raw
// ledger transaction rather than a payment schedule.
func (e *PaymentEntry) FromTransaction() bool {
	return e.Source.Kind == RefKindTransaction
}

// ScheduleID returns the linked payment schedule id, or "" when the entry has
// no schedule behind it.
func (e *PaymentEntry) ScheduleID() string {
	if e.Source.Kind == RefKindSchedule {
		return e.Source.ID
	}
	return ""
}

// IsPaid reports whether the entry has been paid.
func (e *PaymentEntry) IsPaid() bool {
	return e.Status == PaymentStatusPaid
}

// BudgetCategory is a category's allocation and payment entries within a
// weekly budget. Spent is a cache of the paid entry total.
type BudgetCategory struct {
	ID           string          `json:"id"`
	CategoryID   string          `json:"category_id"`
	CategoryName string          `json:"category_name"`
	Allocated    decimal.Decimal `json:"allocated"`
	Spent        decimal.Decimal `json:"spent"`
	Payments     []PaymentEntry  `json:"payments"`
}

// PaymentTotal sums every entry regardless of status.
func (c *BudgetCategory) PaymentTotal() decimal.Decimal {
	total := decimal.Zero
	for i := range c.Payments {
		total = total.Add(c.Payments[i].Amount)
	}
	return total
}

// PaidTotal sums paid entries. This is the canonical spent figure.
func (c *BudgetCategory) PaidTotal() decimal.Decimal {
	total := decimal.Zero
	for i := range c.Payments {
		if c.Payments[i].IsPaid() {
			total = total.Add(c.Payments[i].Amount)
		}
	}
	return total
}

// BudgetCategories is stored as a single JSON document column so the whole
// category list is versioned together with its budget row.
type BudgetCategories []BudgetCategory

// Scan implements sql.Scanner.
func (bc *BudgetCategories) Scan(value interface{}) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		*bc = BudgetCategories{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for budget categories", value)
	}
	if len(data) == 0 {
		*bc = BudgetCategories{}
		return nil
	}
	return json.Unmarshal(data, bc)
}

// Value implements driver.Valuer.
func (bc BudgetCategories) Value() (driver.Value, error) {
	if bc == nil {
		return "[]", nil
	}
	data, err := json.Marshal(bc)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// GormDataType defines the generic data type used by gorm.
func (BudgetCategories) GormDataType() string {
	return "json"
}

// GormDBDataType picks jsonb on PostgreSQL and text elsewhere.
func (BudgetCategories) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "jsonb"
	}
	return "text"
}

// WeeklyBudget is a user's spending envelope for one Monday-Sunday week.
type WeeklyBudget struct {
	Base
	UserID              string           `gorm:"type:uuid;not null;uniqueIndex:idx_weekly_budget_user_week" json:"user_id"`
	WeekStart           time.Time        `gorm:"not null;uniqueIndex:idx_weekly_budget_user_week" json:"week_start"`
	WeekEnd             time.Time        `gorm:"not null" json:"week_end"`
	TotalAllocation     decimal.Decimal  `gorm:"type:DECIMAL(20,2);not null" json:"total_allocation"`
	Mode                CreationMode     `gorm:"not null;default:'auto'" json:"mode"`
	SharedWithHousehold bool             `gorm:"default:false" json:"shared_with_household"`
	HouseholdID         *string          `gorm:"type:uuid;index" json:"household_id,omitempty"`
	Version             int64            `gorm:"not null;default:1" json:"version"`
	Categories          BudgetCategories `json:"categories"`
}

// AfterFind normalizes the week bounds to UTC alongside the base timestamps.
func (b *WeeklyBudget) AfterFind(tx *gorm.DB) error {
	if err := b.Base.AfterFind(tx); err != nil {
		return err
	}
	b.WeekStart = b.WeekStart.UTC()
	b.WeekEnd = b.WeekEnd.UTC()
	return nil
}

// RecomputeSpent refreshes the cached spent figure of every category.
func (b *WeeklyBudget) RecomputeSpent() {
	for i := range b.Categories {
		b.Categories[i].Spent = b.Categories[i].PaidTotal()
	}
}

// TotalSpent sums paid entries across all categories.
func (b *WeeklyBudget) TotalSpent() decimal.Decimal {
	total := decimal.Zero
	for i := range b.Categories {
		total = total.Add(b.Categories[i].PaidTotal())
	}
	return total
}

// FindCategory returns the index of the budget category with the given id.
func (b *WeeklyBudget) FindCategory(id string) int {
	for i := range b.Categories {
		if b.Categories[i].ID == id {
			return i
		}
	}
	return -1
}

// FindCategoryByCategoryID returns the index of the budget category that
// tracks the given category, or -1.
func (b *WeeklyBudget) FindCategoryByCategoryID(categoryID string) int {
	for i := range b.Categories {
		if b.Categories[i].CategoryID == categoryID {
			return i
		}
	}
	return -1
}

// FindPayment locates a payment entry by id and returns its category and
// entry indexes.
func (b *WeeklyBudget) FindPayment(paymentID string) (int, int, bool) {
	for ci := range b.Categories {
		for pi := range b.Categories[ci].Payments {
			if b.Categories[ci].Payments[pi].ID == paymentID {
				return ci, pi, true
			}
		}
	}
	return -1, -1, false
}

// LinkedTransactionIDs is the exclusion set: every transaction id already
// referenced by a payment entry of this budget.
func (b *WeeklyBudget) LinkedTransactionIDs() map[string]struct{} {
	ids := make(map[string]struct{})
	for ci := range b.Categories {
		for pi := range b.Categories[ci].Payments {
			if id := b.Categories[ci].Payments[pi].TransactionID; id != nil && *id != "" {
				ids[*id] = struct{}{}
			}
		}
	}
	return ids
}

// Contains reports whether t falls inside the budget's week.
func (b *WeeklyBudget) Contains(t time.Time) bool {
	return !t.Before(b.WeekStart) && t.Before(b.WeekEnd.AddDate(0, 0, 1))
}

// Clone returns a deep copy so views can be merged without touching the
// loaded record.
func (b *WeeklyBudget) Clone() *WeeklyBudget {
	out := *b
	out.Categories = make(BudgetCategories, len(b.Categories))
	for i, c := range b.Categories {
		c.Payments = append([]PaymentEntry(nil), c.Payments...)
		out.Categories[i] = c
	}
	return &out
}
