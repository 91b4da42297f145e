package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/CogniPilot/modelica-ir/internal/structure"
)

// Scenario defines one analysis test case.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Model is the path of the model file to analyze.
	// Relative paths are resolved against the scenario file location.
	Model string `yaml:"model"`

	// Options tunes the analysis run.
	Options Options `yaml:"options,omitempty"`

	// Expect holds the top-level flags of the analysis result.
	Expect Expect `yaml:"expect"`

	// Assertions check the structure of the evaluation plan.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Options mirrors structure.Options for scenario files.
type Options struct {
	Parallelism     int `yaml:"parallelism,omitempty"`
	MaxAugmentSteps int `yaml:"max_augment_steps,omitempty"`
}

func (o Options) analysis() structure.Options {
	return structure.Options{Parallelism: o.Parallelism, MaxAugmentSteps: o.MaxAugmentSteps}
}

// Expect specifies the expected analysis outcome. Nil fields are not
// checked.
type Expect struct {
	// WellPosed is the expected IsWellPosed flag.
	WellPosed *bool `yaml:"well_posed,omitempty"`

	// AlgebraicLoops is the expected HasAlgebraicLoops flag.
	AlgebraicLoops *bool `yaml:"algebraic_loops,omitempty"`

	// Error, when set, is a substring of the error the analysis must fail
	// with. Assertions are skipped for failing runs.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates part of the evaluation plan.
type Assertion struct {
	// Type specifies the assertion type:
	// - "block_count": Count blocks
	// - "block_order": blocks holding Equations appear in this order
	// - "block": one block holds exactly Equations, of Kind, solving Variables
	// - "assigned": Equation is solved for Variable
	// - "diagnostic": Code appears Count times (at least once if Count is 0)
	// - "unmatched": Equations and Variables are exactly the unmatched ones
	Type string `yaml:"type"`

	Equations []string `yaml:"equations,omitempty"`
	Variables []string `yaml:"variables,omitempty"`
	Equation  string   `yaml:"equation,omitempty"`
	Variable  string   `yaml:"variable,omitempty"`
	Kind      string   `yaml:"kind,omitempty"`
	Code      string   `yaml:"code,omitempty"`
	Count     int      `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertBlockCount = "block_count"
	AssertBlockOrder = "block_order"
	AssertBlock      = "block"
	AssertAssigned   = "assigned"
	AssertDiagnostic = "diagnostic"
	AssertUnmatched  = "unmatched"
)

// LoadScenario reads and parses a scenario YAML file, resolving the model
// path relative to the scenario's directory.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file, resolving
// the model path relative to basePath.
// Returns an error if the file doesn't exist, is malformed, contains unknown
// fields (typos), or is missing required fields.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict decoding catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Model != "" && !filepath.IsAbs(scenario.Model) && basePath != "" {
		scenario.Model = filepath.Join(basePath, scenario.Model)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// FindScenarios returns the scenario files (*.yaml, *.yml) directly inside
// dir, in lexical order.
func FindScenarios(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario directory: %w", err)
	}
	var out []string
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if !e.IsDir() && (ext == ".yaml" || ext == ".yml") {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	slices.Sort(out)
	return out, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Model == "" {
		return fmt.Errorf("model is required")
	}
	if _, err := os.Stat(s.Model); os.IsNotExist(err) {
		return fmt.Errorf("model file not found: %s", s.Model)
	}
	if s.Options.Parallelism < 0 || s.Options.MaxAugmentSteps < 0 {
		return fmt.Errorf("options must be non-negative")
	}
	if s.Expect.Error == "" && s.Expect.WellPosed == nil && s.Expect.AlgebraicLoops == nil && len(s.Assertions) == 0 {
		return fmt.Errorf("scenario checks nothing: set expect or assertions")
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertBlockCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for block_count", index)
		}
	case AssertBlockOrder:
		if len(a.Equations) < 2 {
			return fmt.Errorf("assertions[%d]: block_order needs at least two equations", index)
		}
	case AssertBlock:
		if len(a.Equations) == 0 {
			return fmt.Errorf("assertions[%d]: equations list is required for block", index)
		}
		if a.Kind != "" && a.Kind != structure.Scalar.String() && a.Kind != structure.AlgebraicLoop.String() {
			return fmt.Errorf("assertions[%d]: unknown block kind %q", index, a.Kind)
		}
		if len(a.Variables) > 0 && len(a.Variables) != len(a.Equations) {
			return fmt.Errorf("assertions[%d]: block lists %d equations but %d variables", index, len(a.Equations), len(a.Variables))
		}
	case AssertAssigned:
		if a.Equation == "" || a.Variable == "" {
			return fmt.Errorf("assertions[%d]: equation and variable are required for assigned", index)
		}
	case AssertDiagnostic:
		if a.Code == "" {
			return fmt.Errorf("assertions[%d]: code is required for diagnostic", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for diagnostic", index)
		}
	case AssertUnmatched:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
