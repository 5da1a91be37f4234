package margin

import "math"

// Round2 rounds a monetary value to two decimal places. Results are rounded
// at the boundary only; intermediate sums run at full float precision.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// CostContribution is the share of a cost carried by each sale that links
// it: an equal split across all currently linked sales. A cost with no
// linked sales contributes nothing rather than dividing by zero.
func CostContribution(cost *Cost) float64 {
	n := len(cost.LinkedSales)
	if n == 0 {
		return 0
	}
	return cost.Amount / float64(n)
}

// AllocatedCost sums, over every cost linked to the sale, that cost's
// per-sale share. It depends only on the current link graph; repeated calls
// over an unchanged graph return identical results.
func AllocatedCost(sale *Sale, costs map[string]*Cost) float64 {
	var total float64
	for _, cid := range sale.LinkedCosts {
		cost, ok := costs[cid]
		if !ok {
			// Dangling reference; skip rather than abort the batch.
			continue
		}
		total += CostContribution(cost)
	}
	return total
}
