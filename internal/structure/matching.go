package structure

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Pair is one matched equation and the slot it determines.
type Pair struct {
	Equation string `json:"equation"`
	Slot     Slot   `json:"slot"`
}

// Matching assigns equations to the unknown slots they determine. A maximum
// matching that leaves equations or slots unassigned describes a structurally
// singular system.
type Matching struct {
	inc          *Incidence
	equationSlot []int // equation index → slot index or -1
	slotEquation []int // slot index → equation index or -1
}

// Slot returns the slot index assigned to equation eq.
func (m *Matching) Slot(eq int) (int, bool) {
	s := m.equationSlot[eq]
	return s, s >= 0
}

// Equation returns the equation index assigned to slot s.
func (m *Matching) Equation(s int) (int, bool) {
	e := m.slotEquation[s]
	return e, e >= 0
}

// Pairs returns the matched pairs in equation declaration order.
func (m *Matching) Pairs() []Pair {
	var out []Pair
	for e, s := range m.equationSlot {
		if s >= 0 {
			out = append(out, Pair{Equation: m.inc.Equations[e].ID, Slot: m.inc.Slots[s]})
		}
	}
	return out
}

// UnmatchedEquations returns the IDs of equations left without a slot.
func (m *Matching) UnmatchedEquations() []string {
	var out []string
	for e, s := range m.equationSlot {
		if s < 0 {
			out = append(out, m.inc.Equations[e].ID)
		}
	}
	return out
}

// UnmatchedSlots returns the slots no equation determines.
func (m *Matching) UnmatchedSlots() []Slot {
	var out []Slot
	for s, e := range m.slotEquation {
		if e < 0 {
			out = append(out, m.inc.Slots[s])
		}
	}
	return out
}

// IsTotal reports whether the matching is a bijection.
func (m *Matching) IsTotal() bool {
	return len(m.equationSlot) == len(m.slotEquation) &&
		!slices.Contains(m.equationSlot, -1) &&
		!slices.Contains(m.slotEquation, -1)
}

// Match computes a maximum matching between the equations and unknown slots
// of inc with augmenting-path search.
//
// The result is deterministic and does not depend on the order in which
// equations are declared. Equations are processed by ascending incidence
// size, then by ID, so that smaller equations claim their slots first. An equation tries free derivative slots before free value slots,
// each in slot declaration order, before displacing an earlier assignment.
// Connected components of the bipartite graph share nothing and are matched
// concurrently, up to opts.Parallelism at a time.
func Match(ctx context.Context, inc *Incidence, opts Options) (*Matching, error) {
	m := &Matching{
		inc:          inc,
		equationSlot: make([]int, len(inc.Equations)),
		slotEquation: make([]int, len(inc.Slots)),
	}
	for i := range m.equationSlot {
		m.equationSlot[i] = -1
	}
	for i := range m.slotEquation {
		m.slotEquation[i] = -1
	}

	candidates := make([][]int, len(inc.Equations))
	for e := range inc.Equations {
		c := slices.Clone(inc.Equations[e].slots)
		slices.SortStableFunc(c, func(a, b int) int {
			da, db := inc.Slots[a].Derivative, inc.Slots[b].Derivative
			if da != db {
				if da {
					return -1
				}
				return 1
			}
			return cmp.Compare(a, b)
		})
		candidates[e] = c
	}

	var steps atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.parallelism())
	for _, comp := range bipartiteComponents(inc) {
		g.Go(func() error {
			cm := &componentMatcher{
				m:          m,
				candidates: candidates,
				visited:    make(map[int]int),
				steps:      &steps,
				limit:      int64(opts.MaxAugmentSteps),
			}
			return cm.run(gctx, comp)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return m, nil
}

// componentMatcher runs Kuhn's algorithm over one connected component. Its
// writes to the shared matching touch only the component's own indices.
type componentMatcher struct {
	m          *Matching
	candidates [][]int
	visited    map[int]int // slot → stamp of the last search that visited it
	stamp      int
	steps      *atomic.Int64
	limit      int64
}

func (cm *componentMatcher) run(ctx context.Context, equations []int) error {
	inc := cm.m.inc
	order := slices.Clone(equations)
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Or(
			cmp.Compare(len(inc.Equations[a].slots), len(inc.Equations[b].slots)),
			cmp.Compare(inc.Equations[a].ID, inc.Equations[b].ID),
			cmp.Compare(a, b),
		)
	})
	for _, e := range order {
		if err := ctx.Err(); err != nil {
			return err
		}
		cm.stamp++
		if _, err := cm.augment(e); err != nil {
			return fmt.Errorf("matching equation %s: %w", inc.Equations[e].ID, err)
		}
	}
	return nil
}

// augment searches for an augmenting path starting at equation e and flips
// it when found.
func (cm *componentMatcher) augment(e int) (bool, error) {
	m := cm.m
	for _, s := range cm.candidates[e] {
		if m.slotEquation[s] < 0 && cm.visited[s] != cm.stamp {
			if err := cm.step(); err != nil {
				return false, err
			}
			cm.visited[s] = cm.stamp
			cm.assign(e, s)
			return true, nil
		}
	}
	for _, s := range cm.candidates[e] {
		if cm.visited[s] == cm.stamp {
			continue
		}
		if err := cm.step(); err != nil {
			return false, err
		}
		cm.visited[s] = cm.stamp
		ok, err := cm.augment(m.slotEquation[s])
		if err != nil {
			return false, err
		}
		if ok {
			cm.assign(e, s)
			return true, nil
		}
	}
	return false, nil
}

func (cm *componentMatcher) assign(e, s int) {
	cm.m.equationSlot[e] = s
	cm.m.slotEquation[s] = e
}

func (cm *componentMatcher) step() error {
	n := cm.steps.Add(1)
	if cm.limit > 0 && n > cm.limit {
		return ErrSearchLimit
	}
	return nil
}

// bipartiteComponents groups equations that are connected through shared
// slots. Components are ordered by their first equation; equations within a
// component keep declaration order.
func bipartiteComponents(inc *Incidence) [][]int {
	parent := make([]int, len(inc.Equations))
	for i := range parent {
		parent[i] = i
	}
	find := func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra == rb {
			return
		}
		if rb < ra {
			ra, rb = rb, ra
		}
		parent[rb] = ra
	}

	owner := make(map[int]int, len(inc.Slots))
	for e := range inc.Equations {
		for _, s := range inc.Equations[e].slots {
			if first, ok := owner[s]; ok {
				union(first, e)
			} else {
				owner[s] = e
			}
		}
	}

	index := make(map[int]int)
	var comps [][]int
	for e := range inc.Equations {
		root := find(e)
		k, ok := index[root]
		if !ok {
			k = len(comps)
			index[root] = k
			comps = append(comps, nil)
		}
		comps[k] = append(comps[k], e)
	}
	return comps
}
