package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/CogniPilot/modelica-ir/internal/ctxlog"
	"github.com/CogniPilot/modelica-ir/internal/loader"
	"github.com/CogniPilot/modelica-ir/internal/structure"
)

// AnalyzeOptions holds flags for the analyze command.
type AnalyzeOptions struct {
	*RootOptions
	analysisFlags
	Output string // canonical JSON result file
}

// AnalyzeReport is the payload of the analyze command.
type AnalyzeReport struct {
	Result      *structure.Result `json:"result"`
	Fingerprint string            `json:"fingerprint"`
}

// String renders the evaluation plan for text output.
func (r AnalyzeReport) String() string {
	res := r.Result
	var b strings.Builder

	summary := fmt.Sprintf("%d equation(s), %d unknown(s), %d block(s)",
		res.Stats.Equations, res.Stats.Unknowns, len(res.Blocks))
	if loops := res.Loops(); len(loops) > 0 {
		summary += fmt.Sprintf(", %d algebraic loop(s)", len(loops))
	}
	if res.IsWellPosed {
		b.WriteString(passLine("%s is well-posed: %s", res.Model, summary))
	} else {
		b.WriteString(failLine("%s is not well-posed: %s", res.Model, summary))
	}
	b.WriteByte('\n')

	for i, blk := range res.Blocks {
		if blk.Kind == structure.AlgebraicLoop {
			fmt.Fprintf(&b, "  %d. %s {%s} -> {%s}\n", i+1, warnMark("loop"),
				strings.Join(blk.Equations, ", "), strings.Join(blk.Variables, ", "))
			continue
		}
		fmt.Fprintf(&b, "  %d. %s -> %s\n", i+1, blk.Equations[0], blk.Variables[0])
	}
	if len(res.UnmatchedEquations) > 0 {
		fmt.Fprintf(&b, "  unmatched equations: %s\n", strings.Join(res.UnmatchedEquations, ", "))
	}
	if len(res.UnmatchedVariables) > 0 {
		fmt.Fprintf(&b, "  unmatched unknowns: %s\n", strings.Join(res.UnmatchedVariables, ", "))
	}
	if len(res.Diagnostics) > 0 {
		b.WriteString("Diagnostics:\n")
		for _, d := range res.Diagnostics {
			line := d.String()
			if d.IsError() {
				line = failMark(line)
			} else {
				line = warnMark(line)
			}
			fmt.Fprintf(&b, "  %s\n", line)
		}
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// NewAnalyzeCommand creates the analyze command.
func NewAnalyzeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AnalyzeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "analyze <model-file>",
		Short: "Compute the BLT evaluation plan of a model",
		Long: `Match equations to unknowns, order them into Block-Lower-Triangular
form and check that the model is well-posed.

Exit codes:
  0 - Model is well-posed (algebraic loops are warnings)
  1 - Model is not well-posed
  2 - Command error (unreadable model, undeclared reference, search limit)

Examples:
  daeblt analyze pendulum.yaml
  daeblt analyze circuit.cue --format json
  daeblt analyze thermostat.hcl -o plan.json --max-steps 100000`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(opts, args[0], cmd)
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the canonical JSON result to a file")

	return cmd
}

func runAnalyze(opts *AnalyzeOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	ctx := commandContext(cmd)

	analysisOpts, err := opts.options(cmd, opts.Settings())
	if err != nil {
		return err
	}

	m, err := loadModel(ctx, path)
	if err != nil {
		return reportError(formatter, "loading model", err)
	}
	formatter.VerboseLog("Loaded %s: %d variable(s), %d residual(s)", m.Name(), len(m.Variables()), len(m.Residuals()))

	res, err := structure.AnalyzeContext(ctx, m, analysisOpts)
	if err != nil {
		return reportError(formatter, "analysis failed", err)
	}
	fingerprint, err := res.Fingerprint()
	if err != nil {
		return reportError(formatter, "fingerprinting result", err)
	}
	ctxlog.FromContext(ctx).Info("analysis complete",
		"model", res.Model,
		"well_posed", res.IsWellPosed,
		"fingerprint", fingerprint,
		"trace_id", formatter.TraceID)

	if opts.Output != "" {
		if err := writeCanonical(opts.Output, res); err != nil {
			_ = formatter.Error(loader.ErrCodeWriteFailed, err.Error(), nil)
			return WrapExitError(ExitCommandError, "writing result", err)
		}
		formatter.VerboseLog("Wrote %s", opts.Output)
	}

	report := AnalyzeReport{Result: res, Fingerprint: fingerprint}
	if !res.IsWellPosed {
		msg := fmt.Sprintf("model %s is not well-posed", res.Model)
		if err := formatter.Failure(ErrCodeIllPosed, msg, report); err != nil {
			return err
		}
		return NewExitError(ExitFailure, msg)
	}
	return formatter.Success(report)
}

// writeCanonical writes the canonical JSON encoding of res to path.
func writeCanonical(path string, res *structure.Result) error {
	data, err := res.Canonical()
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}
