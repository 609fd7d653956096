// Package forecast projects monthly revenue forward using an ordinary
// least-squares trend adjusted by month-of-year seasonal factors. Given the
// same history it always produces the same projection.
package forecast

import (
	"context"
	"errors"
	"time"
)

const historyMonths = 24

var ErrInvalidMonths = errors.New("forecast months must be positive")

type MonthPoint struct {
	Month   string  `json:"month"` // "YYYY-MM"
	Revenue float64 `json:"revenue"`
}

type Model struct {
	Intercept       float64     `json:"intercept"`
	Slope           float64     `json:"slope"`
	SeasonalFactors [12]float64 `json:"seasonal_factors"` // index 0 = January
}

type Projection struct {
	History  []MonthPoint `json:"history"`
	Forecast []MonthPoint `json:"forecast"`
	Model    Model        `json:"model"`
}

// HistoryReader returns revenue summed per month key "YYYY-MM" for the
// requested tenant scope. Months with no revenue may be absent.
type HistoryReader interface {
	MonthlyRevenue(ctx context.Context, companyID, unitID, staffID string, from, to time.Time) (map[string]float64, error)
}

type Engine struct {
	history HistoryReader
}

func NewEngine(history HistoryReader) *Engine {
	return &Engine{history: history}
}

// RevenueProjection builds a 24-month history ending at the month of asOf
// and projects months periods beyond it.
func (e *Engine) RevenueProjection(ctx context.Context, companyID, unitID, staffID string, months int, asOf time.Time) (Projection, error) {
	if months <= 0 {
		return Projection{}, ErrInvalidMonths
	}

	end := time.Date(asOf.Year(), asOf.Month(), 1, 0, 0, 0, 0, time.UTC)
	start := end.AddDate(0, -(historyMonths - 1), 0)

	revenue, err := e.history.MonthlyRevenue(ctx, companyID, unitID, staffID, start, end.AddDate(0, 1, 0))
	if err != nil {
		return Projection{}, err
	}

	history := make([]MonthPoint, 0, historyMonths)
	for m := start; !m.After(end); m = m.AddDate(0, 1, 0) {
		key := m.Format("2006-01")
		history = append(history, MonthPoint{Month: key, Revenue: revenue[key]})
	}
	return Project(history, months), nil
}

// Project fits the model over the given history and extends it. History
// months must be consecutive and formatted "YYYY-MM"; missing months should
// already be zero-filled by the caller.
func Project(history []MonthPoint, months int) Projection {
	p := Projection{History: history}
	p.Model.Intercept, p.Model.Slope = fitLinear(history)
	p.Model.SeasonalFactors = seasonalFactors(history)

	if len(history) == 0 || months <= 0 {
		return p
	}

	last, err := time.Parse("2006-01", history[len(history)-1].Month)
	if err != nil {
		return p
	}

	n := len(history)
	for k := 1; k <= months; k++ {
		target := last.AddDate(0, k, 0)
		trend := p.Model.Intercept + p.Model.Slope*float64(n-1+k)
		if trend < 0 {
			trend = 0
		}
		factor := p.Model.SeasonalFactors[int(target.Month())-1]
		p.Forecast = append(p.Forecast, MonthPoint{
			Month:   target.Format("2006-01"),
			Revenue: trend * factor,
		})
	}
	return p
}

// fitLinear returns the least-squares line revenue(i) = a + b*i over the
// history indices. Fewer than two points degenerate to a flat line.
func fitLinear(history []MonthPoint) (a, b float64) {
	n := float64(len(history))
	if len(history) == 0 {
		return 0, 0
	}
	if len(history) == 1 {
		return history[0].Revenue, 0
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, p := range history {
		x := float64(i)
		sumX += x
		sumY += p.Revenue
		sumXY += x * p.Revenue
		sumXX += x * x
	}
	den := n*sumXX - sumX*sumX
	if den == 0 {
		return sumY / n, 0
	}
	b = (n*sumXY - sumX*sumY) / den
	a = (sumY - b*sumX) / n
	return a, b
}

// seasonalFactors computes, per calendar month, the ratio of that month's
// average revenue to the global average of months that saw any revenue.
// Months never observed keep a neutral factor of 1.
func seasonalFactors(history []MonthPoint) [12]float64 {
	var factors [12]float64
	for i := range factors {
		factors[i] = 1
	}

	var sums [12]float64
	var counts [12]int
	for _, p := range history {
		t, err := time.Parse("2006-01", p.Month)
		if err != nil {
			continue
		}
		idx := int(t.Month()) - 1
		sums[idx] += p.Revenue
		counts[idx]++
	}

	var avgTotal float64
	var avgCount int
	var avgs [12]float64
	for i := range sums {
		if counts[i] == 0 {
			continue
		}
		avgs[i] = sums[i] / float64(counts[i])
		if avgs[i] != 0 {
			avgTotal += avgs[i]
			avgCount++
		}
	}
	if avgCount == 0 {
		return factors
	}
	global := avgTotal / float64(avgCount)
	if global == 0 {
		return factors
	}

	for i := range factors {
		if counts[i] > 0 {
			factors[i] = avgs[i] / global
		}
	}
	return factors
}
