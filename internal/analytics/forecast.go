package analytics

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

const (
	DefaultForecastWeeks = 4
	MaxForecastWeeks     = 12
	minForecastPoints    = 5
)

// Rand is the random source used for forecast noise. *math/rand.Rand
// satisfies it.
type Rand interface {
	Float64() float64
}

// ForecastPoint is one projected week.
type ForecastPoint struct {
	Week       int             `json:"week"`
	WeekStart  time.Time       `json:"week_start"`
	Amount     decimal.Decimal `json:"amount"`
	Confidence float64         `json:"confidence"`
}

// CategoryForecast projects one category.
type CategoryForecast struct {
	CategoryID   string          `json:"category_id"`
	CategoryName string          `json:"category_name"`
	Weeks        []ForecastPoint `json:"weeks"`
}

// Forecast holds per-category projections and their weekly totals.
type Forecast struct {
	Weeks      int                `json:"weeks"`
	Categories []CategoryForecast `json:"categories"`
	Totals     []ForecastPoint    `json:"totals"`
}

// ClampWeeks applies the default and upper bound to a requested horizon.
func ClampWeeks(weeks int) int {
	if weeks <= 0 {
		return DefaultForecastWeeks
	}
	if weeks > MaxForecastWeeks {
		return MaxForecastWeeks
	}
	return weeks
}

// Confidence decays by 0.1 per week ahead and never drops below 0.5.
func Confidence(week int) float64 {
	return math.Max(0.5, 1.0-0.1*float64(week-1))
}

// Project forecasts weeks ahead starting at firstWeek for every category
// with enough history.
func Project(patterns map[string]*Pattern, weeks int, firstWeek time.Time, rnd Rand) Forecast {
	weeks = ClampWeeks(weeks)
	out := Forecast{
		Weeks:      weeks,
		Categories: []CategoryForecast{},
		Totals:     make([]ForecastPoint, weeks),
	}
	for w := 1; w <= weeks; w++ {
		out.Totals[w-1] = ForecastPoint{
			Week:       w,
			WeekStart:  firstWeek.AddDate(0, 0, 7*(w-1)),
			Amount:     decimal.Zero,
			Confidence: Confidence(w),
		}
	}

	for _, p := range Sorted(patterns) {
		if p.Count < minForecastPoints {
			continue
		}
		cf := CategoryForecast{
			CategoryID:   p.CategoryID,
			CategoryName: p.CategoryName,
			Weeks:        make([]ForecastPoint, 0, weeks),
		}
		for w := 1; w <= weeks; w++ {
			noise := (rnd.Float64()*2 - 1) * p.StdDev / 2
			amount := math.Max(0, p.Median+p.Trend*p.Median*float64(w)+noise)
			pt := ForecastPoint{
				Week:       w,
				WeekStart:  out.Totals[w-1].WeekStart,
				Amount:     money(amount),
				Confidence: Confidence(w),
			}
			cf.Weeks = append(cf.Weeks, pt)
			out.Totals[w-1].Amount = out.Totals[w-1].Amount.Add(pt.Amount)
		}
		out.Categories = append(out.Categories, cf)
	}
	return out
}
