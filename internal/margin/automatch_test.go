package margin

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScorePairWeightedSignals(t *testing.T) {
	sale := &Sale{
		ID:     "s1",
		Date:   NewDate(2025, time.March, 10),
		Client: "Silva",
		Amount: 1000,
	}
	cost := &Cost{
		ID:       "c1",
		Date:     NewDate(2025, time.March, 13),
		Supplier: "Silva Travel",
		Amount:   900,
	}

	// 40 (3 days apart) + 30 (name containment) + 27 (900/1000 ratio).
	assert.InDelta(t, 97.0, ScorePair(sale, cost), 1e-9)
}

func TestDateScoreBands(t *testing.T) {
	base := NewDate(2025, time.March, 10)
	tests := []struct {
		name string
		cost Date
		want float64
	}{
		{"same day", base, ScoreDateNear},
		{"within a week", NewDate(2025, time.March, 17), ScoreDateNear},
		{"within a month", NewDate(2025, time.March, 25), ScoreDateFar},
		{"cost before sale", NewDate(2025, time.February, 20), ScoreDateFar},
		{"too far", NewDate(2025, time.May, 1), 0},
		{"missing date", Date{}, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, dateScore(base, tc.cost))
		})
	}
}

func TestNameScoreContainment(t *testing.T) {
	assert.Equal(t, ScoreName, nameScore("Silva", "SILVA TRAVEL"))
	assert.Equal(t, ScoreName, nameScore("Agência Costa Lda", "costa"))
	assert.Zero(t, nameScore("Silva", "Pereira"))
	assert.Zero(t, nameScore("", "Silva"))
	assert.Zero(t, nameScore("Silva", "  "))
}

func TestAmountScoreRatio(t *testing.T) {
	assert.InDelta(t, ScoreAmountMax, amountScore(500, 500), 1e-9)
	assert.InDelta(t, 15.0, amountScore(1000, 500), 1e-9)
	// Credit notes score on absolute value.
	assert.InDelta(t, ScoreAmountMax, amountScore(-200, 200), 1e-9)
	assert.Zero(t, amountScore(0, 100))
	assert.Zero(t, amountScore(100, 0))
}

func TestMatchAllThresholdValidation(t *testing.T) {
	_, err := MatchAll(nil, nil, -1)
	require.ErrorIs(t, err, ErrValidation)
	_, err = MatchAll(nil, nil, 101)
	require.ErrorIs(t, err, ErrValidation)

	matches, err := MatchAll(nil, nil, 60)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestMatchAllManyToManyAndOrdering(t *testing.T) {
	sales := []*Sale{
		{ID: "s1", Date: NewDate(2025, time.March, 10), Client: "Silva", Amount: 1000},
		{ID: "s2", Date: NewDate(2025, time.March, 11), Client: "Silva", Amount: 1000},
	}
	costs := []*Cost{
		{ID: "c1", Date: NewDate(2025, time.March, 12), Supplier: "Silva Travel", Amount: 1000},
		{ID: "c2", Date: NewDate(2025, time.March, 12), Supplier: "Silva Travel", Amount: 800},
	}

	matches, err := MatchAll(sales, costs, 60)
	require.NoError(t, err)
	require.Len(t, matches, 4, "one cost may match several sales and vice versa")

	// Descending score, then cost id, then sale id.
	for i := 1; i < len(matches); i++ {
		prev, cur := matches[i-1], matches[i]
		if prev.Score != cur.Score {
			assert.Greater(t, prev.Score, cur.Score)
			continue
		}
		if prev.CostID != cur.CostID {
			assert.Less(t, prev.CostID, cur.CostID)
			continue
		}
		assert.Less(t, prev.SaleID, cur.SaleID)
	}

	again, err := MatchAll(sales, costs, 60)
	require.NoError(t, err)
	assert.Equal(t, matches, again, "same inputs must yield the same ordered list")
}

func TestCommitMatchesSkipsExistingLinks(t *testing.T) {
	s1 := testSale("s1", 1000)
	c1, c2 := testCost("c1", 900), testCost("c2", 800)
	ix := NewIndex([]*Sale{s1}, []*Cost{c1, c2})

	_, err := ix.Associate([]string{"s1"}, []string{"c1"})
	require.NoError(t, err)

	created, err := CommitMatches(ix, []Match{
		{SaleID: "s1", CostID: "c1", Score: 90},
		{SaleID: "s1", CostID: "c2", Score: 80},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, created)
	assert.Equal(t, []string{"c1", "c2"}, s1.LinkedCosts)
}
