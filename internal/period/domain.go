// Package period implements the fiscal-period compensation mode of the
// margin scheme: negative margins carry forward to reduce the taxable
// margin of later periods instead of being dropped.
package period

import (
	"errors"
	"fmt"
	"time"

	"github.com/iva-margem/iva-margem/internal/margin"
)

var (
	// ErrInvalidWindow indicates an inverted or malformed period window.
	ErrInvalidWindow = fmt.Errorf("%w: invalid period window", margin.ErrValidation)
	// ErrUnknownRegion indicates a region with no configured VAT rate.
	ErrUnknownRegion = fmt.Errorf("%w: unknown vat region", margin.ErrValidation)
	// ErrBalanceNotFound indicates no stored carry-forward for a period key.
	ErrBalanceNotFound = errors.New("period balance not found")
)

// Regional VAT rates (percent) for the Portuguese margin scheme.
const (
	RegionContinental  = "continental"
	RegionMadeira      = "madeira"
	RegionAzores       = "azores"
	RegionIntermediate = "intermediate"
	RegionReduced      = "reduced"
)

var regionRates = map[string]float64{
	RegionContinental:  23,
	RegionMadeira:      22,
	RegionAzores:       18,
	RegionIntermediate: 13,
	RegionReduced:      6,
}

// RegionRate returns the VAT percentage for a named region.
func RegionRate(region string) (float64, error) {
	rate, ok := regionRates[region]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownRegion, region)
	}
	return rate, nil
}

// FiscalPeriod is a bounded date window over which margins are aggregated.
type FiscalPeriod struct {
	Year    int         `json:"year"`
	Quarter int         `json:"quarter,omitempty"`
	Start   margin.Date `json:"start"`
	End     margin.Date `json:"end"`
}

// Quarter builds the fiscal period for a calendar quarter.
func Quarter(year, quarter int) (FiscalPeriod, error) {
	if quarter < 1 || quarter > 4 {
		return FiscalPeriod{}, fmt.Errorf("%w: quarter %d", ErrInvalidWindow, quarter)
	}
	startMonth := time.Month((quarter-1)*3 + 1)
	start := margin.NewDate(year, startMonth, 1)
	end := margin.Date{Time: start.AddDate(0, 3, -1)}
	return FiscalPeriod{Year: year, Quarter: quarter, Start: start, End: end}, nil
}

// Validate rejects inverted windows.
func (p FiscalPeriod) Validate() error {
	if p.Start.IsZero() || p.End.IsZero() || p.End.Before(p.Start.Time) {
		return fmt.Errorf("%w: %s..%s", ErrInvalidWindow, p.Start, p.End)
	}
	return nil
}

// Contains reports whether a document date falls inside the window.
func (p FiscalPeriod) Contains(d margin.Date) bool {
	if d.IsZero() {
		return false
	}
	return !d.Before(p.Start.Time) && !d.After(p.End.Time)
}

// Result is the period-mode calculation outcome. Field names are stable;
// exporters and the period store read them by name.
type Result struct {
	Period            FiscalPeriod `json:"period"`
	VATRate           float64      `json:"vat_rate"`
	TotalSales        float64      `json:"total_sales"`
	TotalAllocated    float64      `json:"total_allocated_costs"`
	GrossMargin       float64      `json:"gross_margin"`
	CarryForwardIn    float64      `json:"carry_forward_in"`
	CompensatedMargin float64      `json:"compensated_margin"`
	VATAmount         float64      `json:"vat_amount"`
	CarryForwardOut   float64      `json:"carry_forward_out"`
	SaleCount         int          `json:"sale_count"`
}
