package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // the data service refused or the operation was rolled back
	ExitCommandError = 2 // bad arguments, no session, unreadable config
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
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

func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error. Errors that are not
// an ExitError map to ExitFailure.
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

// OutputFormatter writes command results as text or as one JSON document
// per result.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer
}

func NewOutputFormatter(format string, w, errW io.Writer) *OutputFormatter {
	if errW == nil {
		errW = w
	}
	return &OutputFormatter{Format: format, Writer: w, ErrWriter: errW}
}

func (f *OutputFormatter) JSON() bool {
	return f.Format == "json"
}

// Result prints data as JSON, or calls text to render it for humans.
func (f *OutputFormatter) Result(data any, text func(w io.Writer)) error {
	if f.JSON() {
		return json.NewEncoder(f.Writer).Encode(data)
	}
	text(f.Writer)
	return nil
}

// Notice writes a line of side-channel output (toasts, inbox entries) to
// ErrWriter so JSON on Writer stays parseable.
func (f *OutputFormatter) Notice(format string, args ...any) {
	fmt.Fprintf(f.ErrWriter, format+"\n", args...)
}
