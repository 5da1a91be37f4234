package margin

import (
	"fmt"
	"math"
)

// Calculator produces the transaction-mode margin and VAT computation: per
// sale, VAT is charged on the positive margin only, never on gross revenue
// and never on a loss.
type Calculator struct {
	rate float64
}

// NewCalculator validates the rate and returns a calculator. The rate is a
// percentage and must be a finite value in [0,100].
func NewCalculator(rate float64) (*Calculator, error) {
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate < 0 || rate > 100 {
		return nil, fmt.Errorf("%w: vat rate %v outside [0,100]", ErrValidation, rate)
	}
	return &Calculator{rate: rate}, nil
}

// Rate returns the configured VAT percentage.
func (c *Calculator) Rate() float64 { return c.rate }

// CalculateSale computes margin and VAT for one sale against the current
// link graph. A sale with zero amount is still computed (its margin is the
// negated allocated cost) so session aggregates stay complete.
func (c *Calculator) CalculateSale(sale *Sale, costs map[string]*Cost) CalculationResult {
	details := make([]LinkedCostDetail, 0, len(sale.LinkedCosts))
	var allocated float64
	for _, cid := range sale.LinkedCosts {
		cost, ok := costs[cid]
		if !ok {
			continue
		}
		share := CostContribution(cost)
		allocated += share
		details = append(details, LinkedCostDetail{
			CostID:          cost.ID,
			Supplier:        cost.Supplier,
			Description:     cost.Description,
			DocumentNumber:  cost.DocumentNumber,
			Date:            cost.Date,
			TotalAmount:     cost.Amount,
			AllocatedAmount: Round2(share),
			SharedWith:      len(cost.LinkedSales),
		})
	}

	grossMargin := sale.Amount - allocated

	var vat float64
	if grossMargin > 0 {
		vat = grossMargin * c.rate / 100
	}
	netMargin := grossMargin - vat

	var marginPct float64
	if sale.Amount > 0 {
		marginPct = grossMargin / sale.Amount * 100
	}

	return CalculationResult{
		SaleID:         sale.ID,
		InvoiceNumber:  sale.Number,
		InvoiceType:    DocumentType(sale.Number),
		Date:           sale.Date,
		Client:         sale.Client,
		SaleAmount:     sale.Amount,
		AllocatedCosts: Round2(allocated),
		GrossMargin:    Round2(grossMargin),
		VATRate:        c.rate,
		VATAmount:      Round2(vat),
		NetMargin:      Round2(netMargin),
		MarginPercent:  Round2(marginPct),
		LinkedCosts:    details,
		CostCount:      len(details),
	}
}

// CalculateAll runs the transaction-mode computation for every sale in the
// session and aggregates the session totals. It never mutates association
// state; each run is a fresh derivation from the current graph.
func (c *Calculator) CalculateAll(sales []*Sale, costs map[string]*Cost) ([]CalculationResult, Summary) {
	results := make([]CalculationResult, 0, len(sales))
	var sum Summary
	for _, sale := range sales {
		res := c.CalculateSale(sale, costs)
		results = append(results, res)

		sum.TotalSales += res.SaleAmount
		sum.TotalAllocatedCost += res.AllocatedCosts
		sum.GrossMargin += res.GrossMargin
		sum.TotalVAT += res.VATAmount
		sum.NetMargin += res.NetMargin
		switch {
		case res.GrossMargin > 0:
			sum.DocumentsWithGain++
		case res.GrossMargin < 0:
			sum.DocumentsWithLoss++
		}
	}
	sum.DocumentsProcessed = len(results)
	if sum.TotalSales > 0 {
		sum.AverageMarginPct = Round2(sum.GrossMargin / sum.TotalSales * 100)
	}
	sum.TotalSales = Round2(sum.TotalSales)
	sum.TotalAllocatedCost = Round2(sum.TotalAllocatedCost)
	sum.GrossMargin = Round2(sum.GrossMargin)
	sum.TotalVAT = Round2(sum.TotalVAT)
	sum.NetMargin = Round2(sum.NetMargin)
	return results, sum
}

// ReviewResults flags rows worth a second look: sales without linked costs,
// negative margins and unusually high margins. Issues never abort the batch;
// they ride alongside the results.
func ReviewResults(results []CalculationResult) []Issue {
	var issues []Issue
	for _, res := range results {
		if res.CostCount == 0 && res.SaleAmount > 0 {
			issues = append(issues, Issue{
				Severity: IssueWarning,
				Invoice:  res.InvoiceNumber,
				Message:  "venda sem custos associados - margem 100%",
			})
		}
		if res.GrossMargin < 0 {
			issues = append(issues, Issue{
				Severity: IssueWarning,
				Invoice:  res.InvoiceNumber,
				Message:  fmt.Sprintf("margem negativa: %.2f", res.GrossMargin),
			})
		}
		if res.MarginPercent > 80 {
			issues = append(issues, Issue{
				Severity: IssueInfo,
				Invoice:  res.InvoiceNumber,
				Message:  fmt.Sprintf("margem elevada: %.2f%%", res.MarginPercent),
			})
		}
	}
	return issues
}
