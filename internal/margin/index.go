package margin

import (
	"fmt"
	"sort"
)

// Index is the single mutation path for the sale/cost link graph. Every link
// is written to both sides in the same call, so the symmetry invariant
// (s ∈ cost.LinkedSales ⇔ c ∈ sale.LinkedCosts) holds after every operation.
type Index struct {
	sales map[string]*Sale
	costs map[string]*Cost
}

// NewIndex builds an index over the session's records. The index mutates the
// records it is given; callers keep ownership of the slices.
func NewIndex(sales []*Sale, costs []*Cost) *Index {
	ix := &Index{
		sales: make(map[string]*Sale, len(sales)),
		costs: make(map[string]*Cost, len(costs)),
	}
	// Link slices are kept sorted so lookups can binary search; records
	// arriving from JSON are normalised here.
	for _, s := range sales {
		sort.Strings(s.LinkedCosts)
		ix.sales[s.ID] = s
	}
	for _, c := range costs {
		sort.Strings(c.LinkedSales)
		ix.costs[c.ID] = c
	}
	return ix
}

// Sale returns the sale with the given id, or nil.
func (ix *Index) Sale(id string) *Sale { return ix.sales[id] }

// Cost returns the cost with the given id, or nil.
func (ix *Index) Cost(id string) *Cost { return ix.costs[id] }

// Costs returns the cost map keyed by id, for allocation lookups.
func (ix *Index) Costs() map[string]*Cost { return ix.costs }

// Associate links every sale in saleIDs with every cost in costIDs and
// returns the number of links that did not exist before. Re-linking an
// existing pair is a no-op, so the call is idempotent. All ids are checked
// before any mutation happens.
func (ix *Index) Associate(saleIDs, costIDs []string) (int, error) {
	for _, id := range saleIDs {
		if _, ok := ix.sales[id]; !ok {
			return 0, fmt.Errorf("%w: sale %s", ErrNotFound, id)
		}
	}
	for _, id := range costIDs {
		if _, ok := ix.costs[id]; !ok {
			return 0, fmt.Errorf("%w: cost %s", ErrNotFound, id)
		}
	}

	created := 0
	for _, sid := range saleIDs {
		sale := ix.sales[sid]
		for _, cid := range costIDs {
			cost := ix.costs[cid]
			added := false
			sale.LinkedCosts, added = insertID(sale.LinkedCosts, cid)
			cost.LinkedSales, _ = insertID(cost.LinkedSales, sid)
			if added {
				created++
			}
		}
	}
	return created, nil
}

// Unlink removes the link between one sale and one cost on both sides.
// Removing a link that does not exist is a no-op.
func (ix *Index) Unlink(saleID, costID string) {
	if sale, ok := ix.sales[saleID]; ok {
		sale.LinkedCosts = removeID(sale.LinkedCosts, costID)
	}
	if cost, ok := ix.costs[costID]; ok {
		cost.LinkedSales = removeID(cost.LinkedSales, saleID)
	}
}

// ClearAll removes every link in the graph and returns how many were dropped.
func (ix *Index) ClearAll() int {
	removed := 0
	for _, s := range ix.sales {
		removed += len(s.LinkedCosts)
		s.LinkedCosts = nil
	}
	for _, c := range ix.costs {
		c.LinkedSales = nil
	}
	return removed
}

// LinkedCosts returns the ids of costs linked to the given sale, sorted.
func (ix *Index) LinkedCosts(saleID string) []string {
	sale, ok := ix.sales[saleID]
	if !ok {
		return nil
	}
	out := make([]string, len(sale.LinkedCosts))
	copy(out, sale.LinkedCosts)
	return out
}

// LinkedSales returns the ids of sales linked to the given cost, sorted.
func (ix *Index) LinkedSales(costID string) []string {
	cost, ok := ix.costs[costID]
	if !ok {
		return nil
	}
	out := make([]string, len(cost.LinkedSales))
	copy(out, cost.LinkedSales)
	return out
}

// VerifyIntegrity walks both sides of the graph and reports the first
// asymmetric or dangling link it finds. A healthy graph returns nil.
func (ix *Index) VerifyIntegrity() error {
	for _, s := range ix.sales {
		for _, cid := range s.LinkedCosts {
			c, ok := ix.costs[cid]
			if !ok {
				return fmt.Errorf("%w: sale %s references unknown cost %s", ErrIntegrity, s.ID, cid)
			}
			if !containsID(c.LinkedSales, s.ID) {
				return fmt.Errorf("%w: sale %s links cost %s without back-link", ErrIntegrity, s.ID, cid)
			}
		}
	}
	for _, c := range ix.costs {
		for _, sid := range c.LinkedSales {
			s, ok := ix.sales[sid]
			if !ok {
				return fmt.Errorf("%w: cost %s references unknown sale %s", ErrIntegrity, c.ID, sid)
			}
			if !containsID(s.LinkedCosts, c.ID) {
				return fmt.Errorf("%w: cost %s links sale %s without back-link", ErrIntegrity, c.ID, sid)
			}
		}
	}
	return nil
}

// insertID adds id to a sorted id slice, reporting whether it was new.
func insertID(ids []string, id string) ([]string, bool) {
	i := sort.SearchStrings(ids, id)
	if i < len(ids) && ids[i] == id {
		return ids, false
	}
	ids = append(ids, "")
	copy(ids[i+1:], ids[i:])
	ids[i] = id
	return ids, true
}

func removeID(ids []string, id string) []string {
	i := sort.SearchStrings(ids, id)
	if i < len(ids) && ids[i] == id {
		return append(ids[:i], ids[i+1:]...)
	}
	return ids
}

func containsID(ids []string, id string) bool {
	i := sort.SearchStrings(ids, id)
	return i < len(ids) && ids[i] == id
}
