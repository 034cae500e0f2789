// Package analytics derives per-category spending profiles from ledger
// history and turns them into recommendations, anomaly reports, allocation
// plans and forecasts. All functions are pure; loading history is the
// caller's job.
package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Point is one expense transaction in the analysis window.
type Point struct {
	TransactionID string
	CategoryID    string
	CategoryName  string
	Description   string
	Amount        float64
	Date          time.Time
}

// Pattern is the statistical profile of one category.
type Pattern struct {
	CategoryID    string      `json:"category_id"`
	CategoryName  string      `json:"category_name"`
	Total         float64     `json:"total"`
	Count         int         `json:"count"`
	Amounts       []float64   `json:"-"`
	WeekdayTotals [7]float64  `json:"weekday_totals"`
	MonthTotals   [12]float64 `json:"month_totals"`
	Q1            float64     `json:"q1"`
	Q3            float64     `json:"q3"`
	IQR           float64     `json:"iqr"`
	Median        float64     `json:"median"`
	Mean          float64     `json:"mean"`
	StdDev        float64     `json:"std_dev"`
	Trend         float64     `json:"trend"`

	// Points in chronological order.
	Points []Point `json:"-"`
}

// Frequency is the average number of transactions per 30 days.
func (p *Pattern) Frequency() float64 {
	return float64(p.Count) / 30
}

// Bounds returns the Tukey fences [Q1 - 1.5 IQR, Q3 + 1.5 IQR].
func (p *Pattern) Bounds() (low, high float64) {
	return p.Q1 - 1.5*p.IQR, p.Q3 + 1.5*p.IQR
}

// ExtractPatterns groups points by category and profiles each group.
func ExtractPatterns(points []Point) map[string]*Pattern {
	patterns := make(map[string]*Pattern)
	for _, pt := range points {
		p, ok := patterns[pt.CategoryID]
		if !ok {
			p = &Pattern{CategoryID: pt.CategoryID, CategoryName: pt.CategoryName}
			patterns[pt.CategoryID] = p
		}
		p.Points = append(p.Points, pt)
		p.Total += pt.Amount
		p.Count++
		p.WeekdayTotals[int(pt.Date.Weekday())] += pt.Amount
		p.MonthTotals[int(pt.Date.Month())-1] += pt.Amount
	}

	for _, p := range patterns {
		sort.SliceStable(p.Points, func(i, j int) bool {
			return p.Points[i].Date.Before(p.Points[j].Date)
		})
		series := make([]float64, len(p.Points))
		for i, pt := range p.Points {
			series[i] = pt.Amount
		}

		p.Amounts = append([]float64(nil), series...)
		sort.Float64s(p.Amounts)
		p.Q1 = quantile(p.Amounts, 0.25)
		p.Q3 = quantile(p.Amounts, 0.75)
		p.IQR = p.Q3 - p.Q1
		p.Median = median(p.Amounts)
		p.Mean = mean(series)
		p.StdDev = stdDev(series, p.Mean)
		p.Trend = trend(series, p.Mean)
	}
	return patterns
}

// Sorted returns the patterns ordered by total spent, largest first, with
// ties broken by name.
func Sorted(patterns map[string]*Pattern) []*Pattern {
	out := make([]*Pattern, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].CategoryName < out[j].CategoryName
	})
	return out
}

// quantile picks sorted[floor(n*q)].
func quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	idx := int(math.Floor(float64(n) * q))
	if idx >= n {
		idx = n - 1
	}
	return sorted[idx]
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stdDev is the population standard deviation.
func stdDev(values []float64, m float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)))
}

// trend is the least squares slope of the series against its index, divided
// by the mean. Series shorter than three points have no trend.
func trend(series []float64, m float64) float64 {
	if len(series) < 3 || m == 0 {
		return 0
	}
	n := float64(len(series))
	var sumX, sumY, sumXY, sumX2 float64
	for i, y := range series {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumX2 += x * x
	}
	denom := n*sumX2 - sumX*sumX
	if denom == 0 {
		return 0
	}
	slope := (n*sumXY - sumX*sumY) / denom
	return slope / m
}

// money rounds a float amount to cents.
func money(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(2)
}
