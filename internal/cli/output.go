package cli

import (
	"fmt"
	"io"
)

// Output helpers for skytoml's stdout and stderr. Write errors are dropped:
// once either stream is broken there is nowhere left to report them, and
// the exit code still carries the outcome.

// Writef writes formatted output to w.
func Writef(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}

// Writeln writes its operands and a newline to w.
func Writeln(w io.Writer, args ...any) {
	_, _ = fmt.Fprintln(w, args...)
}

// Write writes s to w unchanged.
func Write(w io.Writer, s string) {
	_, _ = io.WriteString(w, s)
}

// FileHeader writes the "# <file>" line that precedes each file's output
// when a command prints several files.
func FileHeader(w io.Writer, file string) {
	Writef(w, "# %s\n", file)
}
