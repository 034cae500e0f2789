package reconcile

import (
	"time"

	"github.com/shopspring/decimal"

	"tally/internal/models"
	"tally/internal/uuid"
)

// Transition is the side effect a status change requires.
type Transition int

const (
	TransitionNone Transition = iota
	TransitionPay
	TransitionRevert
)

func (t Transition) String() string {
	switch t {
	case TransitionPay:
		return "pay"
	case TransitionRevert:
		return "revert"
	}
	return "none"
}

// PlanTransition classifies a status change. Overdue counts as pending.
func PlanTransition(from, to models.PaymentStatus) Transition {
	wasPaid := from == models.PaymentStatusPaid
	isPaid := to == models.PaymentStatusPaid
	switch {
	case !wasPaid && isPaid:
		return TransitionPay
	case wasPaid && !isPaid:
		return TransitionRevert
	}
	return TransitionNone
}

// MarkPaid records the payment on the entry and links the transaction.
func MarkPaid(e *models.PaymentEntry, payer string, at time.Time, transactionID string) {
	e.Status = models.PaymentStatusPaid
	e.PaidBy = &payer
	e.PaidAt = &at
	e.TransactionID = &transactionID
}

// MarkPending clears the paid fields and the transaction link.
func MarkPending(e *models.PaymentEntry) {
	e.Status = models.PaymentStatusPending
	e.PaidBy = nil
	e.PaidAt = nil
	e.TransactionID = nil
}

// EnsureCategory returns the index of the budget category tracking
// categoryID, appending an empty one when missing.
func EnsureCategory(b *models.WeeklyBudget, categoryID, name string) int {
	if ci := b.FindCategoryByCategoryID(categoryID); ci >= 0 {
		return ci
	}
	b.Categories = append(b.Categories, models.BudgetCategory{
		ID:           uuid.New(),
		CategoryID:   categoryID,
		CategoryName: name,
		Allocated:    decimal.Zero,
		Payments:     []models.PaymentEntry{},
	})
	return len(b.Categories) - 1
}

// RemoveEntry deletes the entry at (ci, pi) and returns it.
func RemoveEntry(b *models.WeeklyBudget, ci, pi int) models.PaymentEntry {
	payments := b.Categories[ci].Payments
	entry := payments[pi]
	b.Categories[ci].Payments = append(payments[:pi:pi], payments[pi+1:]...)
	b.RecomputeSpent()
	return entry
}

// MoveEntry moves the entry at (ci, pi) into the budget category tracking
// targetCategoryID, creating it when needed. The entry keeps its id and
// links. It returns the entry's new position.
func MoveEntry(b *models.WeeklyBudget, ci, pi int, targetCategoryID, targetName string) (int, int) {
	if b.Categories[ci].CategoryID == targetCategoryID {
		return ci, pi
	}
	entry := RemoveEntry(b, ci, pi)
	ti := EnsureCategory(b, targetCategoryID, targetName)
	b.Categories[ti].Payments = append(b.Categories[ti].Payments, entry)
	b.RecomputeSpent()
	return ti, len(b.Categories[ti].Payments) - 1
}

// RemoveCategory deletes the budget category at ci and returns it.
func RemoveCategory(b *models.WeeklyBudget, ci int) models.BudgetCategory {
	removed := b.Categories[ci]
	b.Categories = append(b.Categories[:ci:ci], b.Categories[ci+1:]...)
	return removed
}

// AllocationChange is one row of a replace-categories request.
type AllocationChange struct {
	CategoryID   string
	CategoryName string
	Allocated    decimal.Decimal
}

// ReplaceAllocations applies a full allocation list. Categories present in
// both keep their entries with the new allocation, missing ones are removed
// and returned, and new ones are added empty in request order.
func ReplaceAllocations(b *models.WeeklyBudget, changes []AllocationChange) []models.BudgetCategory {
	wanted := make(map[string]AllocationChange, len(changes))
	for _, c := range changes {
		wanted[c.CategoryID] = c
	}

	var removed []models.BudgetCategory
	kept := make(models.BudgetCategories, 0, len(changes))
	present := make(map[string]struct{})
	for _, bc := range b.Categories {
		change, ok := wanted[bc.CategoryID]
		if !ok {
			removed = append(removed, bc)
			continue
		}
		bc.Allocated = change.Allocated
		kept = append(kept, bc)
		present[bc.CategoryID] = struct{}{}
	}
	for _, c := range changes {
		if _, ok := present[c.CategoryID]; ok {
			continue
		}
		kept = append(kept, models.BudgetCategory{
			ID:           uuid.New(),
			CategoryID:   c.CategoryID,
			CategoryName: c.CategoryName,
			Allocated:    c.Allocated,
			Payments:     []models.PaymentEntry{},
		})
		present[c.CategoryID] = struct{}{}
	}
	b.Categories = kept
	b.RecomputeSpent()
	return removed
}

// AllocationSum totals the category allocations of the budget.
func AllocationSum(b *models.WeeklyBudget) decimal.Decimal {
	total := decimal.Zero
	for i := range b.Categories {
		total = total.Add(b.Categories[i].Allocated)
	}
	return total
}
