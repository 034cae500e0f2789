// Package reconcile holds the pure budget projection rules: folding ledger
// transactions into a budget view, rebuilding categories from payment
// schedules, moving entries and planning status transitions. Nothing here
// touches the database.
package reconcile

import (
	"time"

	"github.com/shopspring/decimal"

	"tally/internal/models"
	"tally/internal/uuid"
	"tally/internal/week"
)

// UncategorizedName labels the bucket for transactions without a category.
const UncategorizedName = "Uncategorized"

// Merge appends a paid entry for every expense transaction in the budget's
// week that no entry references yet, creating budget categories as needed.
// Transactions in excludeCategoryID are skipped, and so are transactions
// created by paying an entry: they belong to that entry, which may sit in
// another week's budget. A category that receives an entry and had no
// allocation is set to its payment total. It returns the number of entries
// added; calling it again with the same input adds none.
func Merge(b *models.WeeklyBudget, txs []models.Transaction, excludeCategoryID string) int {
	linked := b.LinkedTransactionIDs()
	unallocated := make(map[int]bool, len(b.Categories))
	for i := range b.Categories {
		unallocated[i] = b.Categories[i].Allocated.IsZero()
	}
	touched := make(map[int]struct{})

	added := 0
	for i := range txs {
		tx := &txs[i]
		if tx.Type != models.TransactionTypeExpense || !b.Contains(tx.Date) {
			continue
		}
		categoryID := ""
		if tx.CategoryID != nil {
			categoryID = *tx.CategoryID
		}
		if excludeCategoryID != "" && categoryID == excludeCategoryID {
			continue
		}
		if _, ok := linked[tx.ID]; ok || tx.IsPaymentLinked() {
			continue
		}

		ci := b.FindCategoryByCategoryID(categoryID)
		if ci < 0 {
			b.Categories = append(b.Categories, models.BudgetCategory{
				ID:           uuid.New(),
				CategoryID:   categoryID,
				CategoryName: transactionCategoryName(tx),
				Allocated:    decimal.Zero,
				Payments:     []models.PaymentEntry{},
			})
			ci = len(b.Categories) - 1
			unallocated[ci] = true
		}

		b.Categories[ci].Payments = append(b.Categories[ci].Payments, materialize(tx))
		linked[tx.ID] = struct{}{}
		touched[ci] = struct{}{}
		added++
	}

	for ci := range touched {
		if unallocated[ci] {
			b.Categories[ci].Allocated = b.Categories[ci].PaymentTotal()
		}
	}
	b.RecomputeSpent()
	return added
}

func materialize(tx *models.Transaction) models.PaymentEntry {
	id := tx.ID
	payer := tx.UserID
	paidAt := tx.Date
	name := tx.Description
	if name == "" {
		name = transactionCategoryName(tx)
	}
	return models.PaymentEntry{
		ID:            id,
		Name:          name,
		Amount:        tx.Amount,
		ScheduledDate: week.Day(tx.Date),
		Status:        models.PaymentStatusPaid,
		PaidBy:        &payer,
		PaidAt:        &paidAt,
		Source:        models.TransactionRef(id),
		TransactionID: &id,
	}
}

func transactionCategoryName(tx *models.Transaction) string {
	if tx.Category != nil && tx.Category.Name != "" {
		return tx.Category.Name
	}
	return UncategorizedName
}

// DuplicateTransactionRefs lists transaction ids referenced by more than one
// entry of the budget. A consistent budget returns none.
func DuplicateTransactionRefs(b *models.WeeklyBudget) []string {
	seen := make(map[string]int)
	var dups []string
	for ci := range b.Categories {
		for pi := range b.Categories[ci].Payments {
			id := b.Categories[ci].Payments[pi].TransactionID
			if id == nil || *id == "" {
				continue
			}
			seen[*id]++
			if seen[*id] == 2 {
				dups = append(dups, *id)
			}
		}
	}
	return dups
}

// StripMaterialized removes entries that were derived from ledger
// transactions, leaving only what is persisted for the budget.
func StripMaterialized(b *models.WeeklyBudget) {
	for ci := range b.Categories {
		kept := b.Categories[ci].Payments[:0]
		for _, e := range b.Categories[ci].Payments {
			if !e.FromTransaction() {
				kept = append(kept, e)
			}
		}
		b.Categories[ci].Payments = kept
	}
	b.RecomputeSpent()
}

// inWeek reports whether t falls within the budget's week.
func inWeek(b *models.WeeklyBudget, t time.Time) bool {
	return b.Contains(week.Day(t))
}
