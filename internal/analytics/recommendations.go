package analytics

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// RecommendationType names the rule that produced a recommendation.
type RecommendationType string

const (
	RecommendationOverallocated   RecommendationType = "overallocated"
	RecommendationUnderallocated  RecommendationType = "underallocated"
	RecommendationHighVariance    RecommendationType = "high_variance"
	RecommendationIncreasingTrend RecommendationType = "increasing_trend"
	RecommendationMissingCategory RecommendationType = "missing_category"
)

// Priority orders recommendations; lower values come first.
type Priority int

const (
	PriorityHigh Priority = iota + 1
	PriorityMedium
	PriorityLow
)

func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	}
	return "low"
}

// MarshalText renders the priority by name.
func (p Priority) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Allocation is a budget category's current allocation.
type Allocation struct {
	CategoryID   string
	CategoryName string
	Amount       decimal.Decimal
}

// Recommendation suggests a new allocation for one category.
type Recommendation struct {
	Type                RecommendationType `json:"type"`
	Priority            Priority           `json:"priority"`
	CategoryID          string             `json:"category_id"`
	CategoryName        string             `json:"category_name"`
	CurrentAllocation   decimal.Decimal    `json:"current_allocation"`
	SuggestedAllocation decimal.Decimal    `json:"suggested_allocation"`
	PotentialSavings    *decimal.Decimal   `json:"potential_savings,omitempty"`
	Reason              string             `json:"reason"`
}

func (r Recommendation) change() decimal.Decimal {
	return r.SuggestedAllocation.Sub(r.CurrentAllocation).Abs()
}

// Recommend compares allocations against the spending patterns.
func Recommend(allocations []Allocation, patterns map[string]*Pattern) []Recommendation {
	var recs []Recommendation
	allocated := make(map[string]decimal.Decimal, len(allocations))

	for _, a := range allocations {
		allocated[a.CategoryID] = allocated[a.CategoryID].Add(a.Amount)
	}

	for _, a := range allocations {
		p, ok := patterns[a.CategoryID]
		if !ok || a.Amount.IsZero() {
			continue
		}
		current := a.Amount.InexactFloat64()
		name := a.CategoryName
		if name == "" {
			name = p.CategoryName
		}
		base := Recommendation{CategoryID: a.CategoryID, CategoryName: name, CurrentAllocation: a.Amount}

		switch {
		case current > p.Q3*1.2:
			r := base
			r.Type = RecommendationOverallocated
			r.Priority = PriorityMedium
			r.SuggestedAllocation = money(p.Q3)
			savings := a.Amount.Sub(r.SuggestedAllocation)
			r.PotentialSavings = &savings
			r.Reason = fmt.Sprintf("Allocation is well above typical spending of %.2f", p.Q3)
			recs = append(recs, r)
		case current < p.Median*0.9:
			r := base
			r.Type = RecommendationUnderallocated
			r.Priority = PriorityHigh
			r.SuggestedAllocation = money(p.Median)
			r.Reason = fmt.Sprintf("Allocation is below median spending of %.2f", p.Median)
			recs = append(recs, r)
		}

		if p.StdDev > p.Mean*0.5 {
			r := base
			r.Type = RecommendationHighVariance
			r.Priority = PriorityLow
			r.SuggestedAllocation = a.Amount.Add(money(p.StdDev))
			r.Reason = fmt.Sprintf("Spending varies widely; keep a buffer of %.2f", p.StdDev)
			recs = append(recs, r)
		}

		if p.Trend > 0.1 {
			r := base
			r.Type = RecommendationIncreasingTrend
			r.Priority = PriorityMedium
			r.SuggestedAllocation = money(current * (1 + p.Trend))
			r.Reason = fmt.Sprintf("Spending is rising about %.0f%% per transaction", p.Trend*100)
			recs = append(recs, r)
		}
	}

	for _, p := range Sorted(patterns) {
		if p.Count < 5 {
			continue
		}
		if amount, ok := allocated[p.CategoryID]; ok && !amount.IsZero() {
			continue
		}
		recs = append(recs, Recommendation{
			Type:                RecommendationMissingCategory,
			Priority:            PriorityHigh,
			CategoryID:          p.CategoryID,
			CategoryName:        p.CategoryName,
			CurrentAllocation:   decimal.Zero,
			SuggestedAllocation: money(p.Median),
			Reason:              fmt.Sprintf("%d transactions in this category but nothing allocated", p.Count),
		})
	}

	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].Priority != recs[j].Priority {
			return recs[i].Priority < recs[j].Priority
		}
		return recs[i].change().GreaterThan(recs[j].change())
	})
	return recs
}
