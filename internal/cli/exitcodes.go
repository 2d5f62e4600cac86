// Package cli provides shared utilities for the skytoml command.
package cli

import "fmt"

// Standard exit codes.
//
// These follow Unix conventions:
//   - 0: Success
//   - 1: General error (script failures, I/O errors, etc.)
//   - 2: Check failures (golden output mismatch)
const (
	// ExitOK indicates successful execution with no issues.
	ExitOK = 0

	// ExitError indicates a fatal error occurred.
	ExitError = 1

	// ExitWarning indicates the run completed but its output did not match
	// the expected golden file.
	ExitWarning = 2
)

// ExitCodeError carries a process exit code through an error return.
type ExitCodeError int

func (e ExitCodeError) Error() string {
	return fmt.Sprintf("exit status %d", int(e))
}
