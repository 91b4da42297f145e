package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/CogniPilot/modelica-ir/internal/harness"
	"github.com/CogniPilot/modelica-ir/internal/loader"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // scenario filter (glob pattern)
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run analysis scenarios",
		Long: `Run scenario files through the analysis and check their expectations.

Each scenario names a model file, relative to the scenario, plus the
expected outcome and assertions about the plan. When
<scenarios-dir>/golden/<name>.golden exists the canonical JSON result
must match it byte for byte.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  daeblt test ./scenarios
  daeblt test ./scenarios --filter "loop_*"
  daeblt test ./scenarios --update
  daeblt test ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runTests(opts *TestOptions, scenariosDir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	// Validate directory
	if info, err := os.Stat(scenariosDir); err != nil || !info.IsDir() {
		msg := fmt.Sprintf("scenarios directory not found: %s", scenariosDir)
		_ = formatter.Error(loader.ErrCodeNotFound, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}

	// Find scenario files
	scenarioFiles, err := findScenarioFiles(scenariosDir, opts.Filter)
	if err != nil {
		_ = formatter.Error(loader.ErrCodeScanError, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	result := TestResult{
		Scenarios: make([]ScenarioResult, 0, len(scenarioFiles)),
		Total:     len(scenarioFiles),
	}
	if len(scenarioFiles) == 0 {
		if formatter.IsJSON() {
			return formatter.Success(result)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No scenarios found.")
		return nil
	}

	// Run scenarios
	for _, scenarioFile := range scenarioFiles {
		scenResult := runScenario(commandContext(cmd), scenarioFile, opts)
		if !formatter.IsJSON() {
			printScenario(cmd, scenResult)
		}
		result.Scenarios = append(result.Scenarios, scenResult)

		if scenResult.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	// Output results
	if formatter.IsJSON() {
		return outputTestJSON(formatter, result)
	}
	return outputTestText(cmd, result)
}

// findScenarioFiles lists the scenario files in dir whose base name matches
// filter.
func findScenarioFiles(dir string, filter string) ([]string, error) {
	files, err := harness.FindScenarios(dir)
	if err != nil || filter == "" {
		return files, err
	}
	var out []string
	for _, path := range files {
		base := filepath.Base(path)
		name := strings.TrimSuffix(base, filepath.Ext(base))
		matched, err := filepath.Match(filter, name)
		if err != nil {
			return nil, fmt.Errorf("invalid filter pattern: %w", err)
		}
		if matched {
			out = append(out, path)
		}
	}
	return out, nil
}

// runScenario executes a single scenario and returns the result.
func runScenario(ctx context.Context, scenarioFile string, opts *TestOptions) ScenarioResult {
	name := filepath.Base(scenarioFile)

	scenario, err := harness.LoadScenario(scenarioFile)
	if err != nil {
		return ScenarioResult{Name: name, Errors: []string{fmt.Sprintf("failed to load scenario: %v", err)}}
	}
	name = scenario.Name

	result, err := harness.Run(ctx, scenario)
	if err != nil {
		return ScenarioResult{Name: name, Errors: []string{fmt.Sprintf("execution failed: %v", err)}}
	}

	goldenPath := goldenFilePath(scenarioFile)
	switch {
	case result.Analysis == nil:
		// Expected errors leave no plan to compare.
	case opts.Update:
		if err := updateGoldenFile(result, goldenPath); err != nil {
			return ScenarioResult{Name: name, Errors: []string{fmt.Sprintf("failed to update golden file: %v", err)}}
		}
	default:
		match, err := compareWithGolden(result, goldenPath)
		if err != nil {
			return ScenarioResult{Name: name, Errors: []string{fmt.Sprintf("golden comparison failed: %v", err)}}
		}
		if !match {
			result.AddError("result does not match golden file (run with --update to regenerate)")
		}
	}

	return ScenarioResult{Name: name, Pass: result.Pass, Errors: result.Errors}
}

func printScenario(cmd *cobra.Command, r ScenarioResult) {
	w := cmd.OutOrStdout()
	if r.Pass {
		fmt.Fprintln(w, passLine("%s", r.Name))
		return
	}
	fmt.Fprintln(w, failLine("%s", r.Name))
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
}

// goldenFilePath returns the path to the golden file for a scenario.
func goldenFilePath(scenarioFile string) string {
	dir := filepath.Dir(scenarioFile)
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, "golden", name+".golden")
}

// updateGoldenFile writes the canonical result as the golden file.
func updateGoldenFile(result *harness.Result, goldenPath string) error {
	if err := os.MkdirAll(filepath.Dir(goldenPath), 0o755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	data, err := result.Analysis.Canonical()
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	if err := os.WriteFile(goldenPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}

// compareWithGolden compares the canonical result against the golden file.
// A missing golden file is not a mismatch.
func compareWithGolden(result *harness.Result, goldenPath string) (bool, error) {
	goldenData, err := os.ReadFile(goldenPath)
	if errors.Is(err, os.ErrNotExist) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read golden file: %w", err)
	}
	currentData, err := result.Analysis.Canonical()
	if err != nil {
		return false, fmt.Errorf("failed to marshal current result: %w", err)
	}
	return bytes.Equal(goldenData, currentData), nil
}

// outputTestJSON outputs the test result as JSON.
func outputTestJSON(formatter *OutputFormatter, result TestResult) error {
	if result.Failed > 0 {
		msg := fmt.Sprintf("%d scenario(s) failed", result.Failed)
		if err := formatter.Failure(ErrCodeTestsFailed, msg, result); err != nil {
			return err
		}
		// Test failures = exit code 1
		return NewExitError(ExitFailure, msg)
	}
	return formatter.Success(result)
}

// outputTestText outputs the test result as text.
func outputTestText(cmd *cobra.Command, result TestResult) error {
	w := cmd.OutOrStdout()

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)

	if result.Failed > 0 {
		// Test failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}

	fmt.Fprintln(w, passLine("All scenarios passed"))
	return nil
}
