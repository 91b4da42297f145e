package spy

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/plot/vg"

	"github.com/CogniPilot/modelica-ir/internal/dae"
	"github.com/CogniPilot/modelica-ir/internal/structure"
	"github.com/CogniPilot/modelica-ir/internal/testutil"
)

func permute(t *testing.T, m *dae.Model) Matrix {
	t.Helper()
	inc, err := structure.BuildIncidence(m)
	require.NoError(t, err)
	res, err := structure.Analyze(m)
	require.NoError(t, err)
	return Permute(inc, res)
}

func TestPermute_AlgebraicLoop(t *testing.T) {
	m := permute(t, testutil.AlgebraicLoop())

	assert.Equal(t, []string{"continuous[1]", "continuous[2]"}, m.Rows)
	assert.Equal(t, []string{"x", "y"}, m.Cols)
	assert.Equal(t, []Span{{Start: 0, Size: 2, Kind: structure.AlgebraicLoop}}, m.Blocks)
	assert.ElementsMatch(t, []Cell{
		{Row: 0, Col: 0, Assigned: true},
		{Row: 0, Col: 1},
		{Row: 1, Col: 0},
		{Row: 1, Col: 1, Assigned: true},
	}, m.Cells)
	assert.Equal(t, "continuous[1] #x\ncontinuous[2] x#\n", m.Text())
}

func TestPermute_ScalarBlocksOnDiagonal(t *testing.T) {
	m := permute(t, testutil.FallingBody())

	assert.Equal(t, []string{"der(h)", "der(v)"}, m.Cols)
	assert.Len(t, m.Blocks, 2)
	assert.Equal(t, "continuous[1] #.\ncontinuous[2] .#\n", m.Text())
}

func TestPermute_LowerTriangular(t *testing.T) {
	m := permute(t, testutil.Ladder(6))

	blockOf := make([]int, len(m.Rows))
	for b, span := range m.Blocks {
		for i := span.Start; i < span.Start+span.Size; i++ {
			blockOf[i] = b
		}
	}
	for _, c := range m.Cells {
		assert.LessOrEqual(t, blockOf[c.Col], blockOf[c.Row],
			"cell (%s, %s) lies above the block diagonal", m.Rows[c.Row], m.Cols[c.Col])
	}
}

func TestPermute_UnmatchedRowsFollowPlan(t *testing.T) {
	m := permute(t, testutil.OverDetermined())

	assert.Equal(t, []string{"continuous[1]", "continuous[2]"}, m.Rows)
	assert.Equal(t, []string{"y"}, m.Cols)
	assert.Equal(t, "continuous[1] #\ncontinuous[2] x\n", m.Text())
}

func TestRender(t *testing.T) {
	m := permute(t, testutil.LoopChain())

	var svg bytes.Buffer
	require.NoError(t, Render(&svg, m, "svg", 10*vg.Centimeter, 10*vg.Centimeter))
	assert.Contains(t, svg.String(), "<svg")

	var png bytes.Buffer
	require.NoError(t, Render(&png, m, ".PNG", 4*vg.Centimeter, 4*vg.Centimeter))
	assert.True(t, bytes.HasPrefix(png.Bytes(), []byte("\x89PNG")))
}

func TestRender_EmptyModel(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, Matrix{Model: "Empty"}, "svg", 4*vg.Centimeter, 4*vg.Centimeter))
	assert.Contains(t, buf.String(), "<svg")
}

func TestRender_UnknownFormat(t *testing.T) {
	err := Render(&bytes.Buffer{}, permute(t, testutil.SelfLoop()), "bmp", vg.Centimeter, vg.Centimeter)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bmp")
}
