package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/CogniPilot/modelica-ir/internal/config"
	"github.com/CogniPilot/modelica-ir/internal/ctxlog"
	"github.com/CogniPilot/modelica-ir/internal/structure"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"; empty defers to the config
	Config  string // config file path; empty looks for .daeblt.yaml
	NoColor bool

	// TraceIDs stamps JSON responses. Nil uses UUIDv7Generator.
	TraceIDs TraceIDGenerator

	settings *config.Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the daeblt CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daeblt",
		Short: "daeblt - structural analysis of DAE models",
		Long: `Structural analysis of classified differential-algebraic models.

Matches every equation to the unknown it determines, orders the equations
into Block-Lower-Triangular form and reports whether the model is
well-posed. Algebraic loops are flagged as blocks that must be solved
simultaneously.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.prepare(cmd); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
				return err
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "", "output format (json|text), overrides the config")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "config file (default "+config.DefaultFile+" when present)")
	cmd.PersistentFlags().BoolVar(&opts.NoColor, "no-color", false, "disable colored output")

	// Add subcommands
	cmd.AddCommand(NewAnalyzeCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewIncidenceCommand(opts))
	cmd.AddCommand(NewSpyCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// prepare loads the config, applies flag overrides and installs the logger
// on the command context.
func (o *RootOptions) prepare(cmd *cobra.Command) error {
	cfg, err := config.Load(o.Config)
	if err != nil {
		return WrapExitError(ExitCommandError, "loading config", err)
	}
	if o.Format == "" {
		o.Format = cfg.Format
	}
	if !isValidFormat(o.Format) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", o.Format, ValidFormats))
	}
	cfg.Format = o.Format
	o.settings = cfg

	// Only ever switch color off; fatih/color already disables it for
	// non-terminal output.
	if o.NoColor || !cfg.Color {
		color.NoColor = true
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(ctxlog.WithLogger(ctx, o.newLogger(cmd.ErrOrStderr())))
	return nil
}

func (o *RootOptions) newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if o.Verbose {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	if o.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

// Settings returns the resolved config. Commands run without the root
// command's pre-run see the built-in defaults.
func (o *RootOptions) Settings() *config.Config {
	if o.settings != nil {
		return o.settings
	}
	cfg := config.Default()
	if o.Format != "" {
		cfg.Format = o.Format
	}
	return &cfg
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Settings().Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   o.Verbose,
		TraceID:   o.traceID(),
	}
}

func (o *RootOptions) traceID() string {
	if o.TraceIDs == nil {
		o.TraceIDs = UUIDv7Generator{}
	}
	return o.TraceIDs.Generate()
}

// analysisFlags are the per-command overrides of the analysis settings.
type analysisFlags struct {
	Parallelism int
	MaxSteps    int
}

func (a *analysisFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&a.Parallelism, "parallelism", 0, "components matched concurrently (0 = GOMAXPROCS)")
	cmd.Flags().IntVar(&a.MaxSteps, "max-steps", 0, "bound on augmenting-path search steps (0 = unbounded)")
}

// options merges the config with any flags set on cmd. An invalid value is
// reported on cmd's error stream.
func (a *analysisFlags) options(cmd *cobra.Command, cfg *config.Config) (structure.Options, error) {
	opts := structure.Options{
		Parallelism:     cfg.Parallelism,
		MaxAugmentSteps: cfg.MaxAugmentSteps,
	}
	if cmd.Flags().Changed("parallelism") {
		opts.Parallelism = a.Parallelism
	}
	if cmd.Flags().Changed("max-steps") {
		opts.MaxAugmentSteps = a.MaxSteps
	}
	if opts.Parallelism < 0 || opts.MaxAugmentSteps < 0 {
		err := NewExitError(ExitCommandError, "--parallelism and --max-steps must be >= 0")
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		return opts, err
	}
	return opts, nil
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// commandContext returns the context installed by the root pre-run, or a
// background context for commands executed on their own.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
