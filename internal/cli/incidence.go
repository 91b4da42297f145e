package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/CogniPilot/modelica-ir/internal/spy"
	"github.com/CogniPilot/modelica-ir/internal/structure"
)

// IncidenceOptions holds flags for the incidence command.
type IncidenceOptions struct {
	*RootOptions
	analysisFlags
	Matrix bool // print the BLT-permuted matrix instead of the per-equation list
}

// incidenceList renders an incidence structure one equation per line.
type incidenceList struct {
	*structure.Incidence
}

func (l incidenceList) String() string {
	var b strings.Builder
	slots := make([]string, len(l.Slots))
	for i, s := range l.Slots {
		slots[i] = s.String()
	}
	fmt.Fprintf(&b, "%s: %d equation(s), %d unknown(s)\n", l.Model, len(l.Equations), len(l.Slots))
	fmt.Fprintf(&b, "unknowns: %s\n", strings.Join(slots, ", "))
	for _, eq := range l.Equations {
		refs := make([]string, len(eq.Entries))
		for i, e := range eq.Entries {
			refs[i] = e.Slot.String()
			if e.Count > 1 {
				refs[i] += fmt.Sprintf("×%d", e.Count)
			}
		}
		fmt.Fprintf(&b, "  %s [%s]: %s\n", eq.ID, eq.Section, strings.Join(refs, ", "))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// matrixText renders a permuted matrix for text output.
type matrixText struct {
	spy.Matrix
}

func (m matrixText) String() string {
	return strings.TrimSuffix(m.Text(), "\n")
}

// NewIncidenceCommand creates the incidence command.
func NewIncidenceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IncidenceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "incidence <model-file>",
		Short: "Show which unknowns each equation references",
		Long: `Print the incidence structure of a model.

By default every residual equation is listed with the unknowns it
references. With --matrix the incidence matrix is printed with rows and
columns permuted into BLT order: '#' marks the unknown an equation is
solved for, 'x' any other reference.

Examples:
  daeblt incidence pendulum.yaml
  daeblt incidence pendulum.yaml --matrix`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIncidence(opts, args[0], cmd)
		},
	}

	opts.register(cmd)
	cmd.Flags().BoolVar(&opts.Matrix, "matrix", false, "print the BLT-permuted incidence matrix")

	return cmd
}

func runIncidence(opts *IncidenceOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	ctx := commandContext(cmd)

	m, err := loadModel(ctx, path)
	if err != nil {
		return reportError(formatter, "loading model", err)
	}
	inc, err := structure.BuildIncidence(m)
	if err != nil {
		return reportError(formatter, "building incidence", err)
	}
	if !opts.Matrix {
		if formatter.IsJSON() {
			return formatter.Success(inc)
		}
		return formatter.Success(incidenceList{inc})
	}

	analysisOpts, err := opts.options(cmd, opts.Settings())
	if err != nil {
		return err
	}
	matrix, err := permutedMatrix(ctx, m, inc, analysisOpts)
	if err != nil {
		return reportError(formatter, "analysis failed", err)
	}
	if formatter.IsJSON() {
		return formatter.Success(matrix)
	}
	return formatter.Success(matrixText{matrix})
}
