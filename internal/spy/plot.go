package spy

import (
	"fmt"
	"image/color"
	"io"
	"math"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/CogniPilot/modelica-ir/internal/structure"
)

var (
	assignedColor = color.RGBA{R: 0xc0, G: 0x20, B: 0x20, A: 0xff}
	incidentColor = color.RGBA{R: 0x30, G: 0x30, B: 0x30, A: 0xff}
	loopColor     = color.RGBA{R: 0x20, G: 0x60, B: 0xc0, A: 0xff}
	blockColor    = color.RGBA{R: 0xa0, G: 0xa0, B: 0xa0, A: 0xff}
)

// Formats lists the image formats Render accepts.
var Formats = []string{"svg", "png", "pdf", "eps", "jpg", "jpeg", "tif", "tiff"}

// Plot builds the spy plot of m. Row 0 is drawn at the top. Each block is
// outlined; algebraic loops use a distinct outline color.
func Plot(m Matrix) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = m.Model
	p.X.Label.Text = "unknowns"
	p.Y.Label.Text = "equations"
	p.Y.Scale = plot.InvertedScale{Normalizer: plot.LinearScale{}}
	p.X.Tick.Marker = labelTicks(m.Cols)
	p.Y.Tick.Marker = labelTicks(m.Rows)
	p.X.Tick.Label.Rotation = math.Pi / 2
	p.X.Tick.Label.XAlign = draw.XRight
	p.X.Tick.Label.YAlign = draw.YCenter

	for _, span := range m.Blocks {
		outline, err := plotter.NewLine(square(span))
		if err != nil {
			return nil, fmt.Errorf("block outline: %w", err)
		}
		outline.LineStyle.Color = blockColor
		if span.Kind == structure.AlgebraicLoop {
			outline.LineStyle.Color = loopColor
		}
		outline.LineStyle.Width = vg.Points(0.75)
		p.Add(outline)
	}

	if len(m.Cells) > 0 {
		pts := make(plotter.XYs, len(m.Cells))
		for i, c := range m.Cells {
			pts[i] = plotter.XY{X: float64(c.Col), Y: float64(c.Row)}
		}
		sc, err := plotter.NewScatter(pts)
		if err != nil {
			return nil, fmt.Errorf("incidence points: %w", err)
		}
		sc.GlyphStyleFunc = func(i int) draw.GlyphStyle {
			sty := draw.GlyphStyle{Radius: vg.Points(3), Shape: draw.BoxGlyph{}, Color: incidentColor}
			if m.Cells[i].Assigned {
				sty.Color = assignedColor
			}
			return sty
		}
		p.Add(sc)
	}

	p.X.Min, p.X.Max = -0.5, float64(max(len(m.Cols), 1))-0.5
	p.Y.Min, p.Y.Max = -0.5, float64(max(len(m.Rows), 1))-0.5
	return p, nil
}

// Render draws the spy plot of m to w in the given image format.
func Render(w io.Writer, m Matrix, format string, width, height vg.Length) error {
	format = strings.ToLower(strings.TrimPrefix(format, "."))
	p, err := Plot(m)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(width, height, format)
	if err != nil {
		return fmt.Errorf("render %s: %w", format, err)
	}
	_, err = wt.WriteTo(w)
	return err
}

// square returns the closed outline of a block, padded by half a cell.
func square(span Span) plotter.XYs {
	lo := float64(span.Start) - 0.5
	hi := float64(span.Start+span.Size) - 0.5
	return plotter.XYs{{X: lo, Y: lo}, {X: hi, Y: lo}, {X: hi, Y: hi}, {X: lo, Y: hi}, {X: lo, Y: lo}}
}

func labelTicks(labels []string) plot.ConstantTicks {
	ticks := make(plot.ConstantTicks, len(labels))
	for i, l := range labels {
		ticks[i] = plot.Tick{Value: float64(i), Label: l}
	}
	return ticks
}
