package cli

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/CogniPilot/modelica-ir/internal/structure"
)

// ModelStatus is the validation outcome of one model file.
type ModelStatus struct {
	File  string    `json:"file"`
	Model string    `json:"model,omitempty"`
	Valid bool      `json:"valid"`
	Error *CLIError `json:"error,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool          `json:"valid"`
	Models []ModelStatus `json:"models"`
}

// String renders the result for text output.
func (r ValidationResult) String() string {
	var b strings.Builder
	for _, m := range r.Models {
		if m.Valid {
			fmt.Fprintf(&b, "%s\n", passLine("%s (%s)", m.File, m.Model))
			continue
		}
		fmt.Fprintf(&b, "%s\n", failLine("%s", m.File))
		fmt.Fprintf(&b, "  [%s] %s\n", m.Error.Code, m.Error.Message)
	}
	invalid := 0
	for _, m := range r.Models {
		if !m.Valid {
			invalid++
		}
	}
	if r.Valid {
		fmt.Fprintf(&b, "%s", passLine("All %d model(s) valid", len(r.Models)))
	} else {
		fmt.Fprintf(&b, "%s", failLine("Validation failed: %d of %d model(s) invalid", invalid, len(r.Models)))
	}
	return b.String()
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <model-file-or-dir>",
		Short: "Validate models without analyzing them",
		Long: `Load model files and check every equation reference.

Performs syntax checking, schema validation, model construction and
reference resolution without matching. A directory is searched
recursively for .cue, .yaml, .yml, .json and .hcl files, which are
loaded concurrently.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	ctx := commandContext(cmd)

	files, err := resolveModelFiles(path)
	if err != nil {
		return reportError(formatter, "resolving models", err)
	}
	formatter.VerboseLog("Validating %d model file(s)", len(files))

	result := ValidationResult{
		Valid:  true,
		Models: validateFiles(ctx, files, opts.Settings().Parallelism),
	}
	for _, m := range result.Models {
		if !m.Valid {
			result.Valid = false
		}
	}

	if !result.Valid {
		msg := "validation failed"
		if err := formatter.Failure(loaderCodeOf(result), msg, result); err != nil {
			return err
		}
		return NewExitError(ExitFailure, msg)
	}
	return formatter.Success(result)
}

// validateFiles loads every file and resolves its references, up to limit
// files at a time. Statuses keep the order of files.
func validateFiles(ctx context.Context, files []string, limit int) []ModelStatus {
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	statuses := make([]ModelStatus, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, file := range files {
		g.Go(func() error {
			statuses[i] = validateFile(gctx, file)
			return nil
		})
	}
	_ = g.Wait()
	return statuses
}

func validateFile(ctx context.Context, file string) ModelStatus {
	status := ModelStatus{File: file}
	m, err := loadModel(ctx, file)
	if err == nil {
		status.Model = m.Name()
		_, err = structure.BuildIncidence(m)
	}
	if err != nil {
		status.Error = &CLIError{Code: errorCode(err), Message: err.Error(), Details: errorDetails(err)}
		return status
	}
	status.Valid = true
	return status
}

// loaderCodeOf returns the code of the first invalid model.
func loaderCodeOf(r ValidationResult) string {
	for _, m := range r.Models {
		if m.Error != nil {
			return m.Error.Code
		}
	}
	return ""
}
