package period

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/iva-margem/iva-margem/internal/margin"
)

// Compensate is the pure period transition: given the incoming carry-forward
// (always ≤ 0) and the period margin, it returns the VAT due and the
// outgoing carry-forward (≤ 0 by construction). VAT is only ever charged on
// a positive compensated margin.
func Compensate(carryIn, periodMargin, rate decimal.Decimal) (vat, carryOut decimal.Decimal) {
	compensated := periodMargin.Add(carryIn)
	if compensated.IsPositive() {
		return compensated.Mul(rate).Div(decimal.NewFromInt(100)).Round(2), decimal.Zero
	}
	return decimal.Zero, compensated
}

// Engine aggregates transaction-level margins into fiscal periods. Amounts
// cross into decimal arithmetic here so chained carry-forwards do not
// accumulate float error.
type Engine struct {
	rate decimal.Decimal
}

// NewEngine validates the rate and returns a period engine.
func NewEngine(rate float64) (*Engine, error) {
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate < 0 || rate > 100 {
		return nil, fmt.Errorf("%w: vat rate %v outside [0,100]", margin.ErrValidation, rate)
	}
	return &Engine{rate: decimal.NewFromFloat(rate)}, nil
}

// Calculate computes the compensated margin and VAT for one period.
// carryIn is the carry-forward persisted from the preceding period (≤ 0,
// zero for the first period). An empty sale window is a normal case that
// yields a zero period margin.
func (e *Engine) Calculate(p FiscalPeriod, sales []*margin.Sale, costs map[string]*margin.Cost, carryIn float64) (Result, error) {
	if err := p.Validate(); err != nil {
		return Result{}, err
	}
	if carryIn > 0 {
		return Result{}, fmt.Errorf("%w: carry-forward %v must not be positive", margin.ErrValidation, carryIn)
	}

	totalSales := decimal.Zero
	totalAllocated := decimal.Zero
	count := 0
	for _, sale := range sales {
		if !p.Contains(sale.Date) {
			continue
		}
		count++
		totalSales = totalSales.Add(decimal.NewFromFloat(sale.Amount))
		totalAllocated = totalAllocated.Add(decimal.NewFromFloat(margin.AllocatedCost(sale, costs)).Round(2))
	}

	periodMargin := totalSales.Sub(totalAllocated)
	in := decimal.NewFromFloat(carryIn)
	vat, carryOut := Compensate(in, periodMargin, e.rate)

	rate, _ := e.rate.Float64()
	return Result{
		Period:            p,
		VATRate:           rate,
		TotalSales:        f64(totalSales),
		TotalAllocated:    f64(totalAllocated),
		GrossMargin:       f64(periodMargin),
		CarryForwardIn:    f64(in),
		CompensatedMargin: f64(periodMargin.Add(in)),
		VATAmount:         f64(vat),
		CarryForwardOut:   f64(carryOut),
		SaleCount:         count,
	}, nil
}

func f64(d decimal.Decimal) float64 {
	v, _ := d.Round(2).Float64()
	return v
}
