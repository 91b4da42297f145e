package structure

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/CogniPilot/modelica-ir/internal/ctxlog"
	"github.com/CogniPilot/modelica-ir/internal/dae"
)

// Options tunes an analysis run. The zero value is ready to use.
type Options struct {
	// Parallelism bounds how many bipartite components are matched at once.
	// Zero or negative means GOMAXPROCS.
	Parallelism int

	// MaxAugmentSteps bounds the total number of slot visits made by the
	// augmenting-path search. Zero means unbounded.
	MaxAugmentSteps int

	// Logger receives stage-level debug records. When nil the logger carried
	// by the context is used, if any.
	Logger *slog.Logger
}

func (o Options) parallelism() int {
	if o.Parallelism > 0 {
		return o.Parallelism
	}
	return runtime.GOMAXPROCS(0)
}

func (o Options) logger(ctx context.Context) *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return ctxlog.FromContext(ctx)
}

// Analyze runs the structural analysis of m with default options.
func Analyze(m *dae.Model) (*Result, error) {
	return AnalyzeContext(context.Background(), m, Options{})
}

// AnalyzeContext builds the incidence of m, matches equations to unknowns,
// decomposes the matching into ordered blocks and checks well-posedness.
//
// Only malformed input is returned as an error: a *ReferenceError for an
// undeclared name, ErrSearchLimit when the search bound is hit, or the
// context's error. Singular systems and algebraic loops are reported in the
// Result.
func AnalyzeContext(ctx context.Context, m *dae.Model, opts Options) (*Result, error) {
	log := opts.logger(ctx).With("model", m.Name())

	inc, err := BuildIncidence(m)
	if err != nil {
		return nil, err
	}
	log.Debug("incidence built", "equations", len(inc.Equations), "unknowns", len(inc.Slots))

	mt, err := Match(ctx, inc, opts)
	if err != nil {
		return nil, fmt.Errorf("match %s: %w", m.Name(), err)
	}
	log.Debug("matching computed",
		"matched", len(mt.Pairs()),
		"unmatched_equations", len(mt.UnmatchedEquations()),
		"unmatched_unknowns", len(mt.UnmatchedSlots()))

	blocks := Decompose(inc, mt)
	log.Debug("blocks ordered", "blocks", len(blocks))

	diags := CheckWellPosed(inc, mt, blocks)
	res := newResult(m.Name(), inc, mt, blocks, diags)
	log.Debug("analysis finished",
		"well_posed", res.IsWellPosed,
		"algebraic_loops", res.Stats.LoopBlocks,
		"diagnostics", len(res.Diagnostics))
	return res, nil
}
