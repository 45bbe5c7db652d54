package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Exit codes.
const (
	ExitCodeFailure = 1
	ExitCodeUsage   = 2
)

// ExitError carries a process exit code. Printed means the message already
// reached the user.
type ExitError struct {
	Code    int
	Err     error
	Printed bool
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// Exitf builds an ExitError from a format string.
func Exitf(code int, format string, args ...any) error {
	return &ExitError{Code: code, Err: fmt.Errorf(format, args...)}
}

func usageError(cmd *cobra.Command, msg string) error {
	fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s\n\n%s", msg, cmd.UsageString())
	return &ExitError{Code: ExitCodeUsage, Err: fmt.Errorf("%s", msg), Printed: true}
}
