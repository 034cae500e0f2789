package analytics

import (
	"fmt"
	"math"
	"sort"

	"github.com/shopspring/decimal"
)

// AllocationSource says which pass produced an allocation.
type AllocationSource string

const (
	SourceScheduled  AllocationSource = "scheduled"
	SourceHistorical AllocationSource = "historical"
)

// ScheduledPayment is a pending payment due in the target week.
type ScheduledPayment struct {
	CategoryID   string
	CategoryName string
	Amount       decimal.Decimal
}

// AllocationItem is the amount planned for one category.
type AllocationItem struct {
	CategoryID   string           `json:"category_id"`
	CategoryName string           `json:"category_name"`
	Amount       decimal.Decimal  `json:"amount"`
	Confidence   float64          `json:"confidence"`
	Source       AllocationSource `json:"source"`
	Reason       string           `json:"reason"`
}

// AllocationPlan is the result of Optimize.
type AllocationPlan struct {
	TotalBudget decimal.Decimal  `json:"total_budget"`
	Allocated   decimal.Decimal  `json:"allocated"`
	Remaining   decimal.Decimal  `json:"remaining"`
	Utilization float64          `json:"utilization"`
	Items       []AllocationItem `json:"items"`
}

// Optimize splits total across categories in two passes. Scheduled payments
// are covered in full first. The rest goes to historical categories by
// frequency, each getting a confidence-weighted blend of median and Q1,
// until the budget runs out.
func Optimize(total decimal.Decimal, scheduled []ScheduledPayment, patterns map[string]*Pattern) AllocationPlan {
	plan := AllocationPlan{TotalBudget: total, Items: []AllocationItem{}}
	allocated := decimal.Zero

	sums := make(map[string]*AllocationItem)
	var order []string
	for _, s := range scheduled {
		item, ok := sums[s.CategoryID]
		if !ok {
			item = &AllocationItem{
				CategoryID:   s.CategoryID,
				CategoryName: s.CategoryName,
				Amount:       decimal.Zero,
				Confidence:   1.0,
				Source:       SourceScheduled,
			}
			sums[s.CategoryID] = item
			order = append(order, s.CategoryID)
		}
		item.Amount = item.Amount.Add(s.Amount)
	}
	for _, id := range order {
		item := sums[id]
		item.Reason = "Covers payments scheduled this week"
		plan.Items = append(plan.Items, *item)
		allocated = allocated.Add(item.Amount)
	}

	candidates := make([]*Pattern, 0, len(patterns))
	for _, p := range patterns {
		if _, done := sums[p.CategoryID]; !done {
			candidates = append(candidates, p)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Frequency() != candidates[j].Frequency() {
			return candidates[i].Frequency() > candidates[j].Frequency()
		}
		return candidates[i].CategoryName < candidates[j].CategoryName
	})

	for _, p := range candidates {
		remaining := total.Sub(allocated)
		if !remaining.IsPositive() {
			break
		}
		c := math.Min(float64(p.Count)/10, 1)
		amount := money(p.Median*c + p.Q1*(1-c))
		if amount.GreaterThan(remaining) {
			amount = remaining
		}
		if !amount.IsPositive() {
			continue
		}
		plan.Items = append(plan.Items, AllocationItem{
			CategoryID:   p.CategoryID,
			CategoryName: p.CategoryName,
			Amount:       amount,
			Confidence:   c,
			Source:       SourceHistorical,
			Reason:       fmt.Sprintf("Based on %d transactions in the analysis window", p.Count),
		})
		allocated = allocated.Add(amount)
	}

	plan.Allocated = allocated
	plan.Remaining = decimal.Max(decimal.Zero, total.Sub(allocated))
	if total.IsPositive() {
		plan.Utilization = allocated.Div(total).InexactFloat64()
	}
	return plan
}
