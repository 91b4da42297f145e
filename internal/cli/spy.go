package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"gonum.org/v1/plot/vg"

	"github.com/CogniPilot/modelica-ir/internal/dae"
	"github.com/CogniPilot/modelica-ir/internal/loader"
	"github.com/CogniPilot/modelica-ir/internal/spy"
	"github.com/CogniPilot/modelica-ir/internal/structure"
)

// SpyOptions holds flags for the spy command.
type SpyOptions struct {
	*RootOptions
	analysisFlags
	Output string  // image file; the extension selects the format
	Width  float64 // centimeters, overrides spy.width
	Height float64 // centimeters, overrides spy.height
}

// SpyReport describes a rendered plot.
type SpyReport struct {
	Model  string `json:"model"`
	Output string `json:"output"`
	Format string `json:"format"`
	Rows   int    `json:"rows"`
	Cols   int    `json:"cols"`
	Blocks int    `json:"blocks"`
}

func (r SpyReport) String() string {
	return passLine("Wrote %s spy plot of %s (%dx%d, %d block(s)) to %s",
		r.Format, r.Model, r.Rows, r.Cols, r.Blocks, r.Output)
}

// NewSpyCommand creates the spy command.
func NewSpyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SpyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "spy <model-file> -o <image>",
		Short: "Plot the BLT-permuted incidence matrix",
		Long: `Render the incidence matrix in BLT order as an image.

Blocks are outlined on the diagonal and algebraic loops are highlighted.
The output format follows the file extension (` + strings.Join(spy.Formats, ", ") + `).

Examples:
  daeblt spy circuit.cue -o circuit.svg
  daeblt spy circuit.cue -o circuit.png --width 20 --height 20`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSpy(opts, args[0], cmd)
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "image file to write (required)")
	cmd.Flags().Float64Var(&opts.Width, "width", 0, "image width in cm (default from config)")
	cmd.Flags().Float64Var(&opts.Height, "height", 0, "image height in cm (default from config)")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}

func runSpy(opts *SpyOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	ctx := commandContext(cmd)
	cfg := opts.Settings()

	format := strings.ToLower(strings.TrimPrefix(filepath.Ext(opts.Output), "."))
	if !slices.Contains(spy.Formats, format) {
		err := &loader.LoadError{
			Code:    loader.ErrCodeFormat,
			Message: fmt.Sprintf("unsupported image format %q (want one of %s)", format, strings.Join(spy.Formats, ", ")),
		}
		return reportError(formatter, "choosing image format", err)
	}
	width, height := cfg.Spy.Width, cfg.Spy.Height
	if opts.Width > 0 {
		width = opts.Width
	}
	if opts.Height > 0 {
		height = opts.Height
	}

	analysisOpts, err := opts.options(cmd, cfg)
	if err != nil {
		return err
	}
	m, err := loadModel(ctx, path)
	if err != nil {
		return reportError(formatter, "loading model", err)
	}
	inc, err := structure.BuildIncidence(m)
	if err != nil {
		return reportError(formatter, "building incidence", err)
	}
	matrix, err := permutedMatrix(ctx, m, inc, analysisOpts)
	if err != nil {
		return reportError(formatter, "analysis failed", err)
	}

	var buf bytes.Buffer
	if err := spy.Render(&buf, matrix, format, vg.Length(width)*vg.Centimeter, vg.Length(height)*vg.Centimeter); err != nil {
		return reportError(formatter, "rendering plot", err)
	}
	if err := os.WriteFile(opts.Output, buf.Bytes(), 0o644); err != nil {
		_ = formatter.Error(loader.ErrCodeWriteFailed, fmt.Sprintf("failed to write output file: %v", err), nil)
		return WrapExitError(ExitCommandError, "writing plot", err)
	}

	return formatter.Success(SpyReport{
		Model:  matrix.Model,
		Output: opts.Output,
		Format: format,
		Rows:   len(matrix.Rows),
		Cols:   len(matrix.Cols),
		Blocks: len(matrix.Blocks),
	})
}

// permutedMatrix analyzes m and orders inc by the resulting plan.
func permutedMatrix(ctx context.Context, m *dae.Model, inc *structure.Incidence, opts structure.Options) (spy.Matrix, error) {
	res, err := structure.AnalyzeContext(ctx, m, opts)
	if err != nil {
		return spy.Matrix{}, err
	}
	return spy.Permute(inc, res), nil
}
