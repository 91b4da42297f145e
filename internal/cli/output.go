package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Analysis or test failure (ill-posed model, failed scenarios)
	ExitCommandError = 2 // Command error (invalid paths, unreadable models, etc.)
)

// Error codes raised by the CLI itself. Loading errors carry the loader's
// codes (E001-E011).
const (
	ErrCodeReference   = "E012" // equation references an undeclared name
	ErrCodeAnalysis    = "E013" // analysis aborted (search limit, cancellation)
	ErrCodeIllPosed    = "E014" // model is not well-posed
	ErrCodeTestsFailed = "E015" // one or more scenarios failed
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitSuccess for nil and ExitFailure if the error is not an
// ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// Text markers. fatih/color drops the escape codes when color.NoColor is
// set or the output is not a terminal.
var (
	okMark   = color.New(color.FgGreen, color.Bold).SprintFunc()
	failMark = color.New(color.FgRed, color.Bold).SprintFunc()
	warnMark = color.New(color.FgYellow).SprintFunc()
)

func passLine(format string, args ...any) string {
	return okMark("✓") + " " + fmt.Sprintf(format, args...)
}

func failLine(format string, args ...any) string {
	return failMark("✗") + " " + fmt.Sprintf(format, args...)
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
	TraceID   string // stamped on JSON responses
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status  string    `json:"status"`             // "ok" or "error"
	Data    any       `json:"data,omitempty"`     // success payload
	Error   *CLIError `json:"error,omitempty"`    // error details
	TraceID string    `json:"trace_id,omitempty"` // correlates a run with its log records
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // "E001", "E002", etc.
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

func (f *OutputFormatter) encode(resp CLIResponse) error {
	resp.TraceID = f.TraceID
	enc := json.NewEncoder(f.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

// IsJSON reports whether output is JSON.
func (f *OutputFormatter) IsJSON() bool {
	return f.Format == "json"
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.IsJSON() {
		return f.encode(CLIResponse{Status: "ok", Data: data})
	}

	// Human-readable text output
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Failure outputs a result that carries data and an error at once, such as
// an analysis that completed but found the model ill-posed.
func (f *OutputFormatter) Failure(code, message string, data any) error {
	if f.IsJSON() {
		return f.encode(CLIResponse{
			Status: "error",
			Data:   data,
			Error:  &CLIError{Code: code, Message: message},
		})
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.IsJSON() {
		return f.encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	// Human-readable error
	fmt.Fprintf(f.Writer, "%s [%s]: %s\n", failMark("Error"), code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
