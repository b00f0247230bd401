package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/roach88/dynaql/internal/canonical"
	"github.com/roach88/dynaql/internal/fault"
	"github.com/roach88/dynaql/internal/fixture"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Filter could not be pushed down, or the store failed mid-read
	ExitCommandError = 2 // Command error (bad config, unreadable filter, unknown table, etc.)
)

// Error codes reported alongside fault codes.
const (
	ErrCodeGeneric  = "ERROR"
	ErrCodeConfig   = "CONFIG"
	ErrCodeStore    = "STORE"
	ErrCodeFilter   = "FILTER"
	ErrCodeNotFound = "NOT_FOUND"
	ErrCodeFixture  = "FIXTURE"
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
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// errorCode picks the code reported for err: the fault code of a failed
// translation, FIXTURE for fixture errors, fallback otherwise.
func errorCode(err error, fallback string) string {
	var fe *fault.Error
	if errors.As(err, &fe) {
		return string(fe.Code)
	}
	var xe *fixture.Error
	if errors.As(err, &xe) {
		return ErrCodeFixture
	}
	return fallback
}

// OutputFormatter handles JSON vs text output for CLI commands.
//
// JSON responses are canonical: keys sorted, no insignificant whitespace, one
// response per line. Data must be built from maps, slices and scalars.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// Success outputs data as a JSON response, or text in text format.
func (f *OutputFormatter) Success(data any, text string) error {
	if f.Format == "json" {
		return f.writeJSON(map[string]any{
			"status": "ok",
			"data":   data,
		})
	}

	fmt.Fprintln(f.Writer, text)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		e := map[string]any{"code": code, "message": message}
		if details != nil {
			e["details"] = details
		}
		return f.writeJSON(map[string]any{
			"status": "error",
			"error":  e,
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Fail reports err and returns the ExitError the command should return.
func (f *OutputFormatter) Fail(exitCode int, code string, err error) error {
	if outErr := f.Error(errorCode(err, code), err.Error(), nil); outErr != nil {
		return outErr
	}
	return WrapExitError(exitCode, code, err)
}

func (f *OutputFormatter) writeJSON(v map[string]any) error {
	data, err := canonical.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	data = append(data, '\n')
	_, err = f.Writer.Write(data)
	return err
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
