package margin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCostContributionSplitsEqually(t *testing.T) {
	c := testCost("c1", 300)
	c.LinkedSales = []string{"s1", "s2"}
	assert.InDelta(t, 150.0, CostContribution(c), 1e-9)

	c.LinkedSales = []string{"s1", "s2", "s3"}
	assert.InDelta(t, 100.0, CostContribution(c), 1e-9)
}

func TestCostContributionZeroWhenUnlinked(t *testing.T) {
	c := testCost("c1", 300)
	assert.Zero(t, CostContribution(c))
}

func TestAllocatedCostFollowsLinkChanges(t *testing.T) {
	s1, s2 := testSale("s1", 1000), testSale("s2", 500)
	c1 := testCost("c1", 300)
	ix := NewIndex([]*Sale{s1, s2}, []*Cost{c1})
	costs := map[string]*Cost{"c1": c1}

	_, err := ix.Associate([]string{"s1", "s2"}, []string{"c1"})
	require.NoError(t, err)
	assert.InDelta(t, 150.0, AllocatedCost(s1, costs), 1e-9)
	assert.InDelta(t, 150.0, AllocatedCost(s2, costs), 1e-9)

	// Dropping one link shifts the whole cost onto the remaining sale.
	ix.Unlink("s2", "c1")
	assert.InDelta(t, 300.0, AllocatedCost(s1, costs), 1e-9)
	assert.Zero(t, AllocatedCost(s2, costs))
}

func TestAllocatedCostSkipsDanglingReference(t *testing.T) {
	s := testSale("s1", 1000)
	s.LinkedCosts = []string{"gone", "c1"}
	c1 := testCost("c1", 200)
	c1.LinkedSales = []string{"s1"}

	got := AllocatedCost(s, map[string]*Cost{"c1": c1})
	assert.InDelta(t, 200.0, got, 1e-9)
}

func TestAllocationConservesCostTotals(t *testing.T) {
	sales := []*Sale{testSale("s1", 100), testSale("s2", 200), testSale("s3", 300)}
	costs := []*Cost{testCost("c1", 90), testCost("c2", 45), testCost("c3", 33.33)}
	ix := NewIndex(sales, costs)

	_, err := ix.Associate([]string{"s1", "s2", "s3"}, []string{"c1"})
	require.NoError(t, err)
	_, err = ix.Associate([]string{"s1", "s2"}, []string{"c2"})
	require.NoError(t, err)
	_, err = ix.Associate([]string{"s3"}, []string{"c3"})
	require.NoError(t, err)

	costMap := map[string]*Cost{"c1": costs[0], "c2": costs[1], "c3": costs[2]}
	var allocated, total float64
	for _, s := range sales {
		allocated += AllocatedCost(s, costMap)
	}
	for _, c := range costs {
		total += c.Amount
	}
	assert.InDelta(t, total, allocated, 1e-9, "every linked cost must be fully distributed")
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 1.23, Round2(1.2345))
	assert.Equal(t, 1.24, Round2(1.2351))
	assert.Equal(t, -10274.16, Round2(-10274.156))
	assert.Equal(t, 0.0, Round2(0))
}
