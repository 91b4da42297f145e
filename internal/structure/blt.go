package structure

import (
	"container/heap"
	"encoding/json"
	"fmt"
	"slices"
)

// BlockKind tags a block of the BLT result.
type BlockKind int

const (
	// Scalar is a single equation solved for its assigned slot.
	Scalar BlockKind = iota
	// AlgebraicLoop is a set of equations that must be solved simultaneously.
	AlgebraicLoop
)

var blockKindNames = [...]string{
	Scalar:        "scalar",
	AlgebraicLoop: "algebraic_loop",
}

func (k BlockKind) String() string {
	if k < 0 || int(k) >= len(blockKindNames) {
		return fmt.Sprintf("block_kind(%d)", int(k))
	}
	return blockKindNames[k]
}

// MarshalJSON writes the kind name.
func (k BlockKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON reads a kind name.
func (k *BlockKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for i, name := range blockKindNames {
		if name == s {
			*k = BlockKind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown block kind %q", s)
}

// Block is one unit of the evaluation plan. Equations and Variables are
// parallel: Variables[i] is the slot assigned to Equations[i]. Loop members
// are listed in declaration order, which carries no evaluation meaning.
type Block struct {
	Kind      BlockKind `json:"kind"`
	Equations []string  `json:"equations"`
	Variables []string  `json:"variables"`
}

// Size returns the number of equations in the block.
func (b Block) Size() int { return len(b.Equations) }

// dependencyGraph maps a matched equation to the matched equations whose
// incidence contains its assigned slot.
type dependencyGraph struct {
	nodes []int
	succ  map[int][]int
}

// buildDependencyGraph adds an edge u → v for every slot assigned to u that
// occurs in equation v, u ≠ v. Successor lists come out in declaration order.
func buildDependencyGraph(inc *Incidence, mt *Matching) dependencyGraph {
	g := dependencyGraph{succ: make(map[int][]int)}
	for v := range inc.Equations {
		assigned, ok := mt.Slot(v)
		if !ok {
			continue
		}
		g.nodes = append(g.nodes, v)
		for _, s := range inc.Equations[v].slots {
			if s == assigned {
				continue
			}
			if u, ok := mt.Equation(s); ok {
				g.succ[u] = append(g.succ[u], v)
			}
		}
	}
	return g
}

// hasSelfLoop reports whether equation e depends on its own assigned slot
// beyond the single occurrence that defines it.
func hasSelfLoop(inc *Incidence, mt *Matching, e int) bool {
	s, ok := mt.Slot(e)
	return ok && inc.Equations[e].count(s) > 1
}

// Decompose orders the matched equations of mt into Block-Lower-Triangular
// form. Unmatched equations are left out.
//
// Strongly connected components of the dependency graph become blocks. The
// blocks are sorted topologically; among blocks with no path between them the
// one whose earliest equation was declared first comes first, so the output
// is reproducible and an already sorted model keeps its order.
func Decompose(inc *Incidence, mt *Matching) []Block {
	g := buildDependencyGraph(inc, mt)
	sccs := tarjanSCC(g)

	comp := make(map[int]int, len(g.nodes))
	for i, scc := range sccs {
		slices.Sort(scc)
		for _, e := range scc {
			comp[e] = i
		}
	}

	// condensation edges and in-degrees
	indegree := make([]int, len(sccs))
	next := make([][]int, len(sccs))
	seen := make(map[[2]int]bool)
	for _, u := range g.nodes {
		for _, v := range g.succ[u] {
			cu, cv := comp[u], comp[v]
			if cu == cv || seen[[2]int{cu, cv}] {
				continue
			}
			seen[[2]int{cu, cv}] = true
			next[cu] = append(next[cu], cv)
			indegree[cv]++
		}
	}

	q := &componentQueue{sccs: sccs}
	for i := range sccs {
		if indegree[i] == 0 {
			heap.Push(q, i)
		}
	}
	blocks := make([]Block, 0, len(sccs))
	for q.Len() > 0 {
		c := heap.Pop(q).(int)
		blocks = append(blocks, newBlock(inc, mt, sccs[c]))
		for _, d := range next[c] {
			indegree[d]--
			if indegree[d] == 0 {
				heap.Push(q, d)
			}
		}
	}
	return blocks
}

func newBlock(inc *Incidence, mt *Matching, members []int) Block {
	b := Block{Kind: Scalar}
	if len(members) > 1 || hasSelfLoop(inc, mt, members[0]) {
		b.Kind = AlgebraicLoop
	}
	for _, e := range members {
		s, _ := mt.Slot(e)
		b.Equations = append(b.Equations, inc.Equations[e].ID)
		b.Variables = append(b.Variables, inc.Slots[s].String())
	}
	return b
}

// componentQueue is a min-heap of component indices keyed on each
// component's earliest equation.
type componentQueue struct {
	sccs  [][]int
	items []int
}

func (q *componentQueue) Len() int { return len(q.items) }
func (q *componentQueue) Less(i, j int) bool {
	return q.sccs[q.items[i]][0] < q.sccs[q.items[j]][0]
}
func (q *componentQueue) Swap(i, j int) { q.items[i], q.items[j] = q.items[j], q.items[i] }
func (q *componentQueue) Push(x any)   { q.items = append(q.items, x.(int)) }
func (q *componentQueue) Pop() any {
	n := len(q.items)
	x := q.items[n-1]
	q.items = q.items[:n-1]
	return x
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
//
// Nodes are visited in declaration order. Returns a list of SCCs, each a
// list of equation indices.
func tarjanSCC(g dependencyGraph) [][]int {
	var (
		index   = 0
		stack   []int
		indices = make(map[int]int)
		lowlink = make(map[int]int)
		onStack = make(map[int]bool)
		sccs    [][]int
	)

	var strongConnect func(int)
	strongConnect = func(v int) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g.succ[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// v is a root node: pop the stack and emit an SCC
		if lowlink[v] == indices[v] {
			var scc []int
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, node := range g.nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}
