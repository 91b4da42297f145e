// Package spy renders the incidence matrix of a model in block
// lower-triangular order. Rows are equations and columns are unknowns, both
// permuted into the order of the evaluation plan, so every block sits on the
// diagonal and every off-diagonal entry lies below it.
package spy

import (
	"strings"

	"github.com/CogniPilot/modelica-ir/internal/structure"
)

// Cell is a nonzero entry of the matrix.
type Cell struct {
	Row      int  `json:"row"`
	Col      int  `json:"col"`
	Assigned bool `json:"assigned"` // the row equation is solved for this column
}

// Span is the diagonal square covered by one block.
type Span struct {
	Start int                 `json:"start"`
	Size  int                 `json:"size"`
	Kind  structure.BlockKind `json:"kind"`
}

// Matrix is the permuted incidence structure.
type Matrix struct {
	Model  string   `json:"model"`
	Rows   []string `json:"rows"`
	Cols   []string `json:"cols"`
	Cells  []Cell   `json:"cells"`
	Blocks []Span   `json:"blocks"`
}

// Permute orders the rows and columns of inc by the blocks of res.
// Equations and unknowns left out of the plan follow in declaration order.
func Permute(inc *structure.Incidence, res *structure.Result) Matrix {
	m := Matrix{Model: inc.Model, Cells: []Cell{}, Blocks: []Span{}}
	rowOf := make(map[string]int, len(inc.Equations))
	colOf := make(map[string]int, len(inc.Slots))
	assigned := make(map[string]string, len(inc.Equations))

	for _, b := range res.Blocks {
		m.Blocks = append(m.Blocks, Span{Start: len(m.Rows), Size: b.Size(), Kind: b.Kind})
		for i, id := range b.Equations {
			rowOf[id] = len(m.Rows)
			m.Rows = append(m.Rows, id)
			colOf[b.Variables[i]] = len(m.Cols)
			m.Cols = append(m.Cols, b.Variables[i])
			assigned[id] = b.Variables[i]
		}
	}
	for _, eq := range inc.Equations {
		if _, ok := rowOf[eq.ID]; !ok {
			rowOf[eq.ID] = len(m.Rows)
			m.Rows = append(m.Rows, eq.ID)
		}
	}
	for _, s := range inc.Slots {
		name := s.String()
		if _, ok := colOf[name]; !ok {
			colOf[name] = len(m.Cols)
			m.Cols = append(m.Cols, name)
		}
	}

	for _, eq := range inc.Equations {
		row := rowOf[eq.ID]
		for _, e := range eq.Entries {
			name := e.Slot.String()
			m.Cells = append(m.Cells, Cell{Row: row, Col: colOf[name], Assigned: assigned[eq.ID] == name})
		}
	}
	return m
}

// Text draws the matrix as a character grid: '#' marks the assigned unknown
// of a row, 'x' any other incidence and '.' an empty cell.
func (m Matrix) Text() string {
	grid := make([][]byte, len(m.Rows))
	for i := range grid {
		grid[i] = []byte(strings.Repeat(".", len(m.Cols)))
	}
	for _, c := range m.Cells {
		if c.Assigned {
			grid[c.Row][c.Col] = '#'
		} else {
			grid[c.Row][c.Col] = 'x'
		}
	}

	width := 0
	for _, r := range m.Rows {
		width = max(width, len(r))
	}
	var b strings.Builder
	for i, r := range m.Rows {
		b.WriteString(r)
		b.WriteString(strings.Repeat(" ", width-len(r)+1))
		b.Write(grid[i])
		b.WriteByte('\n')
	}
	return b.String()
}
