package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/tableshard/internal/report"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Run completed but some shard statements failed
	ExitCommandError = 2 // Command error (bad config, unreadable plan, source migration failed, etc.)
)

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric      = "E001" // Generic/unknown error
	ErrCodeConfig       = "E002" // Config file unreadable or invalid
	ErrCodePlan         = "E003" // Plan or model registry unreadable or invalid
	ErrCodeDatabase     = "E004" // Database unreachable
	ErrCodeNotFound     = "E005" // Table or run not found
	ErrCodeJournal      = "E006" // Journal unavailable
	ErrCodeSource       = "E007" // Source migration failed
	ErrCodeUsage        = "E008" // Invalid command usage
	ErrCodeShardFailure = "E101" // Shard reconciliation reported failures
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	ErrCode string // E-code, when one applies
	Message string // Error message
	Err     error  // Underlying error (optional)

	// Reported is set once an OutputFormatter has written the error.
	Reported bool
}

func (e *ExitError) Error() string {
	msg := e.Message
	if e.ErrCode != "" {
		msg = fmt.Sprintf("[%s] %s", e.ErrCode, msg)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
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

// IsReported reports whether err was already written to the user.
func IsReported(err error) bool {
	var exitErr *ExitError
	return errors.As(err, &exitErr) && exitErr.Reported
}

// GetExitCode extracts the exit code from an error.
// Returns ExitSuccess for nil and ExitFailure if the error is not an ExitError.
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

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for progress/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // "E001", "E002", etc.
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// Success outputs a successful result in the configured format. In text
// mode a []string is written one element per line.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	if lines, ok := data.([]string); ok {
		for _, l := range lines {
			fmt.Fprintln(f.Writer, l)
		}
		return nil
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Fail writes the error and returns it as an ExitError.
func (f *OutputFormatter) Fail(exitCode int, code, message string, err error) error {
	var details any
	if err != nil {
		details = err.Error()
	}
	_ = f.Error(code, message, details)
	return &ExitError{Code: exitCode, ErrCode: code, Message: message, Err: err, Reported: true}
}

// VerboseLog outputs a message only if verbose mode is enabled.
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

// ProgressWriter returns where progress lines go: stdout for text, the
// diagnostic writer for JSON.
func (f *OutputFormatter) ProgressWriter() io.Writer {
	if f.Format == "json" {
		return f.GetErrWriter()
	}
	return f.Writer
}

// Report writes a run report. JSON output is the canonical report; text
// output is the per-category summary followed by the entries that need
// attention, or every entry when all is set.
func (f *OutputFormatter) Report(rep *report.Report, all bool) error {
	if f.Format == "json" {
		return f.Success(rep)
	}

	var lines []string
	if !all {
		lines = append(lines, "Run "+rep.RunID)
		lines = append(lines, rep.Summarize().Lines()...)
	}
	for _, e := range rep.Entries {
		if !all && (e.Status == report.StatusApplied || e.Status == report.StatusPlanned) {
			continue
		}
		lines = append(lines, FormatEntry(e))
	}
	return f.Success(lines)
}

// FormatEntry renders one report entry as a key=value line.
func FormatEntry(e report.Entry) string {
	line := fmt.Sprintf("%s %s %s", e.Status, e.Category, e.Table)
	if e.Shard != "" {
		line += " shard=" + e.Shard
	}
	if e.Field != "" {
		line += " field=" + e.Field
	}
	if e.ErrorKind != "" {
		line += " kind=" + string(e.ErrorKind)
	}
	if e.Statement != "" {
		line += " sql=" + e.Statement
	}
	if e.Error != "" {
		line += " error=" + e.Error
	}
	return line
}
