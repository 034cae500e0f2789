package reconcile

import (
	"sort"

	"github.com/shopspring/decimal"

	"tally/internal/models"
	"tally/internal/uuid"
	"tally/internal/week"
)

// RebuildInput carries what Rebuild needs beyond the budget itself.
type RebuildInput struct {
	// Schedules are the user's payment schedules. Ones due outside the
	// budget's week are ignored.
	Schedules []models.PaymentSchedule
	// CategoryNames resolves display names for categories the budget has
	// not seen before.
	CategoryNames map[string]string
	// TransactionsBySchedule maps a schedule id to the ledger transaction
	// created when it was paid.
	TransactionsBySchedule map[string]string
}

// Rebuild replaces the budget's categories with a projection of the payment
// schedules due in its week. Entries whose schedule was already projected
// keep their id, linked transaction and paid history. Categories seen before
// keep their id and allocation; new ones start at the sum of their
// schedules. Entries are ordered by due date, categories by name.
// Materialized transaction entries are dropped.
func Rebuild(b *models.WeeklyBudget, in RebuildInput) {
	priorEntries := make(map[string]models.PaymentEntry)
	priorCategories := make(map[string]models.BudgetCategory)
	for _, c := range b.Categories {
		priorCategories[c.CategoryID] = c
		for _, e := range c.Payments {
			if sid := e.ScheduleID(); sid != "" {
				priorEntries[sid] = e
			}
		}
	}

	grouped := make(map[string][]models.PaymentSchedule)
	var order []string
	for _, s := range in.Schedules {
		if !inWeek(b, s.DueDate) {
			continue
		}
		if _, ok := grouped[s.CategoryID]; !ok {
			order = append(order, s.CategoryID)
		}
		grouped[s.CategoryID] = append(grouped[s.CategoryID], s)
	}

	categories := make(models.BudgetCategories, 0, len(order))
	for _, categoryID := range order {
		schedules := grouped[categoryID]
		sort.SliceStable(schedules, func(i, j int) bool {
			return schedules[i].DueDate.Before(schedules[j].DueDate)
		})

		entries := make([]models.PaymentEntry, 0, len(schedules))
		sum := decimal.Zero
		for i := range schedules {
			entry := projectSchedule(&schedules[i], priorEntries, in.TransactionsBySchedule)
			entries = append(entries, entry)
			sum = sum.Add(entry.Amount)
		}

		bc, existed := priorCategories[categoryID]
		if !existed {
			bc = models.BudgetCategory{
				ID:           uuid.New(),
				CategoryID:   categoryID,
				CategoryName: in.CategoryNames[categoryID],
				Allocated:    sum,
			}
			if bc.CategoryName == "" {
				bc.CategoryName = UncategorizedName
			}
		}
		bc.Payments = entries
		categories = append(categories, bc)
	}

	sort.SliceStable(categories, func(i, j int) bool {
		return categories[i].CategoryName < categories[j].CategoryName
	})
	b.Categories = categories
	b.RecomputeSpent()
}

func projectSchedule(s *models.PaymentSchedule, prior map[string]models.PaymentEntry, txBySchedule map[string]string) models.PaymentEntry {
	entry, matched := prior[s.ID]
	if !matched {
		entry = models.PaymentEntry{
			ID:     uuid.New(),
			Source: models.ScheduleRef(s.ID),
			Status: s.Status,
			PaidBy: s.PaidBy,
			PaidAt: s.PaidAt,
		}
		if s.Status == models.PaymentStatusOverdue {
			entry.Status = models.PaymentStatusPending
		}
	}

	entry.Name = s.Name
	entry.Amount = s.Amount
	entry.ScheduledDate = week.Day(s.DueDate)
	entry.Notes = s.Notes

	if entry.IsPaid() {
		if entry.TransactionID == nil {
			if txID, ok := txBySchedule[s.ID]; ok {
				entry.TransactionID = &txID
			}
		}
	} else {
		entry.TransactionID = nil
		entry.PaidBy = nil
		entry.PaidAt = nil
	}
	return entry
}
