package analytics

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

const topCategoryCount = 5

// CategorySummary condenses a pattern for reporting.
type CategorySummary struct {
	CategoryID   string          `json:"category_id"`
	CategoryName string          `json:"category_name"`
	Total        decimal.Decimal `json:"total"`
	Count        int             `json:"count"`
	Average      decimal.Decimal `json:"average"`
	Median       decimal.Decimal `json:"median"`
	Trend        float64         `json:"trend"`
	Share        float64         `json:"share"`
}

// Insights summarizes spending over a window.
type Insights struct {
	From             time.Time         `json:"from"`
	To               time.Time         `json:"to"`
	Days             int               `json:"days"`
	TotalSpent       decimal.Decimal   `json:"total_spent"`
	DailyAverage     decimal.Decimal   `json:"daily_average"`
	TransactionCount int               `json:"transaction_count"`
	BusiestWeekday   string            `json:"busiest_weekday,omitempty"`
	WeekdayTotals    [7]float64        `json:"weekday_totals"`
	TopCategories    []CategorySummary `json:"top_categories"`
	Categories       []CategorySummary `json:"categories"`
	Patterns         []*Pattern        `json:"patterns"`
}

// BuildInsights reports totals and per-category summaries for the points
// between from and to.
func BuildInsights(points []Point, from, to time.Time) Insights {
	patterns := ExtractPatterns(points)
	sorted := Sorted(patterns)

	days := int(math.Ceil(to.Sub(from).Hours() / 24))
	if days < 1 {
		days = 1
	}

	out := Insights{
		From:       from,
		To:         to,
		Days:       days,
		Categories: make([]CategorySummary, 0, len(sorted)),
		Patterns:   sorted,
	}

	var total float64
	for _, p := range sorted {
		total += p.Total
		out.TransactionCount += p.Count
		for d := 0; d < 7; d++ {
			out.WeekdayTotals[d] += p.WeekdayTotals[d]
		}
	}
	out.TotalSpent = money(total)
	out.DailyAverage = money(total / float64(days))

	busiest := -1
	for d := 0; d < 7; d++ {
		if out.WeekdayTotals[d] > 0 && (busiest < 0 || out.WeekdayTotals[d] > out.WeekdayTotals[busiest]) {
			busiest = d
		}
	}
	if busiest >= 0 {
		out.BusiestWeekday = time.Weekday(busiest).String()
	}

	for _, p := range sorted {
		s := CategorySummary{
			CategoryID:   p.CategoryID,
			CategoryName: p.CategoryName,
			Total:        money(p.Total),
			Count:        p.Count,
			Average:      money(p.Mean),
			Median:       money(p.Median),
			Trend:        p.Trend,
		}
		if total > 0 {
			s.Share = p.Total / total
		}
		out.Categories = append(out.Categories, s)
	}

	n := len(out.Categories)
	if n > topCategoryCount {
		n = topCategoryCount
	}
	out.TopCategories = out.Categories[:n]
	return out
}
