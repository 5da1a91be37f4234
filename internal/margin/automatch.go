package margin

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Auto-match scoring weights. The rule is a fixed weighted heuristic, kept
// as named constants so each signal stays auditable on its own.
const (
	// Date proximity: full weight within a week, half band within a month.
	ScoreDateNear     = 40.0
	ScoreDateFar      = 20.0
	dateNearWindow    = 7
	dateFarWindow     = 30
	// Name containment: one counterparty name contains the other.
	ScoreName = 30.0
	// Amount similarity: min/max ratio of absolute amounts.
	ScoreAmountMax = 30.0

	// MaxScore is the sum of all signal weights.
	MaxScore = ScoreDateNear + ScoreName + ScoreAmountMax
)

// ScorePair rates a sale/cost pair on a 0–100 scale from three independent
// signals: banded date proximity, lower-cased name containment and absolute
// amount similarity.
func ScorePair(sale *Sale, cost *Cost) float64 {
	score := dateScore(sale.Date, cost.Date)
	score += nameScore(sale.Client, cost.Supplier)
	score += amountScore(sale.Amount, cost.Amount)
	return score
}

func dateScore(saleDate, costDate Date) float64 {
	if saleDate.IsZero() || costDate.IsZero() {
		return 0
	}
	switch days := DaysBetween(saleDate, costDate); {
	case days <= dateNearWindow:
		return ScoreDateNear
	case days <= dateFarWindow:
		return ScoreDateFar
	default:
		return 0
	}
}

func nameScore(client, supplier string) float64 {
	a := strings.ToLower(strings.TrimSpace(client))
	b := strings.ToLower(strings.TrimSpace(supplier))
	if a == "" || b == "" {
		return 0
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return ScoreName
	}
	return 0
}

func amountScore(saleAmount, costAmount float64) float64 {
	a := math.Abs(saleAmount)
	b := math.Abs(costAmount)
	if a == 0 || b == 0 {
		return 0
	}
	ratio := math.Min(a, b) / math.Max(a, b)
	return ratio * ScoreAmountMax
}

// MatchAll scores every sale against every cost and keeps the pairs at or
// above threshold. The relation is many-to-many: one sale may match several
// costs and one cost several sales. Output ordering is total — descending
// score, then ascending cost id, then ascending sale id — so identical
// inputs always produce identical lists. Empty inputs yield an empty,
// non-error result.
func MatchAll(sales []*Sale, costs []*Cost, threshold int) ([]Match, error) {
	if threshold < 0 || threshold > 100 {
		return nil, fmt.Errorf("%w: threshold %d outside [0,100]", ErrValidation, threshold)
	}
	var matches []Match
	for _, sale := range sales {
		for _, cost := range costs {
			score := ScorePair(sale, cost)
			if score >= float64(threshold) {
				matches = append(matches, Match{SaleID: sale.ID, CostID: cost.ID, Score: score})
			}
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		if matches[i].CostID != matches[j].CostID {
			return matches[i].CostID < matches[j].CostID
		}
		return matches[i].SaleID < matches[j].SaleID
	})
	return matches, nil
}

// CommitMatches materialises accepted matches through the index and returns
// the number of links that were actually new. Pairs that are already linked
// are re-proposed harmlessly; Associate does not recreate them.
func CommitMatches(ix *Index, matches []Match) (int, error) {
	created := 0
	for _, m := range matches {
		n, err := ix.Associate([]string{m.SaleID}, []string{m.CostID})
		if err != nil {
			return created, err
		}
		created += n
	}
	return created, nil
}
