package analytics

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

const (
	minAnomalyPoints = 5
	maxAnomalies     = 10
)

// Direction says which Tukey fence a transaction crossed.
type Direction string

const (
	UnusuallyHigh Direction = "unusually_high"
	UnusuallyLow  Direction = "unusually_low"
)

// Anomaly is a transaction outside its category's expected range.
type Anomaly struct {
	TransactionID string          `json:"transaction_id"`
	CategoryID    string          `json:"category_id"`
	CategoryName  string          `json:"category_name"`
	Description   string          `json:"description"`
	Amount        decimal.Decimal `json:"amount"`
	Date          time.Time       `json:"date"`
	Direction     Direction       `json:"direction"`
	ExpectedLow   decimal.Decimal `json:"expected_low"`
	ExpectedHigh  decimal.Decimal `json:"expected_high"`
}

// Classify places amount relative to the pattern's fences. ok is false when
// the amount is within range.
func (p *Pattern) Classify(amount float64) (Direction, bool) {
	low, high := p.Bounds()
	switch {
	case amount > high:
		return UnusuallyHigh, true
	case amount < low:
		return UnusuallyLow, true
	}
	return "", false
}

// DetectAnomalies flags outliers in every category with enough history and
// returns the most recent ones first.
func DetectAnomalies(patterns map[string]*Pattern) []Anomaly {
	var out []Anomaly
	for _, p := range Sorted(patterns) {
		if p.Count < minAnomalyPoints {
			continue
		}
		low, high := p.Bounds()
		for _, pt := range p.Points {
			dir, ok := p.Classify(pt.Amount)
			if !ok {
				continue
			}
			out = append(out, Anomaly{
				TransactionID: pt.TransactionID,
				CategoryID:    p.CategoryID,
				CategoryName:  p.CategoryName,
				Description:   pt.Description,
				Amount:        money(pt.Amount),
				Date:          pt.Date,
				Direction:     dir,
				ExpectedLow:   money(low),
				ExpectedHigh:  money(high),
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.After(out[j].Date)
	})
	if len(out) > maxAnomalies {
		out = out[:maxAnomalies]
	}
	return out
}
