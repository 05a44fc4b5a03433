// Package clix provides the Command/IO scaffolding used by the
// pwned-mirror binary's subcommands, adapted from the teacher ticket
// CLI's internal/cli package: unified --help rendering and a consistent
// error-then-usage-then-exit-1 flow.
package clix

import (
	"fmt"
	"io"
)

// IO handles command output.
type IO struct {
	out    io.Writer
	errOut io.Writer
}

// NewIO creates an IO writing to out/errOut.
func NewIO(out, errOut io.Writer) *IO {
	return &IO{out: out, errOut: errOut}
}

func (o *IO) Println(a ...any) {
	_, _ = fmt.Fprintln(o.out, a...)
}

func (o *IO) Printf(format string, a ...any) {
	_, _ = fmt.Fprintf(o.out, format, a...)
}

func (o *IO) ErrPrintln(a ...any) {
	_, _ = fmt.Fprintln(o.errOut, a...)
}
