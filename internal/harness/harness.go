package harness

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/CogniPilot/modelica-ir/internal/ctxlog"
	"github.com/CogniPilot/modelica-ir/internal/loader"
	"github.com/CogniPilot/modelica-ir/internal/structure"
)

// Run loads the scenario's model, analyzes it and checks the expectations.
//
// The returned error covers problems with the scenario itself, such as an
// unreadable model. A failing analysis is an error too, unless the scenario
// expects it. Failed checks are reported in Result.Errors.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	logger := ctxlog.FromContext(ctx).With(slog.String("scenario", scenario.Name))

	m, err := loader.Load(ctx, scenario.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to load model: %w", err)
	}

	opts := scenario.Options.analysis()
	opts.Logger = logger
	result := NewResult()

	analysis, err := structure.AnalyzeContext(ctx, m, opts)
	switch {
	case err != nil && scenario.Expect.Error == "":
		return nil, fmt.Errorf("failed to analyze %s: %w", m.Name(), err)
	case err != nil:
		if !strings.Contains(err.Error(), scenario.Expect.Error) {
			result.AddError(fmt.Sprintf("expected error containing %q, got %q", scenario.Expect.Error, err.Error()))
		}
		return result, nil
	case scenario.Expect.Error != "":
		result.AddError(fmt.Sprintf("expected error containing %q, analysis succeeded", scenario.Expect.Error))
	}

	result.Analysis = analysis
	for _, msg := range EvaluateExpect(analysis, scenario.Expect) {
		result.AddError(msg)
	}
	for _, msg := range EvaluateAssertions(analysis, scenario.Assertions) {
		result.AddError(msg)
	}
	logger.Debug("scenario finished", "pass", result.Pass, "errors", len(result.Errors))
	return result, nil
}
