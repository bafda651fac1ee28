package app

import (
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/zurustar/scic/pkg/compiler"
)

const (
	colorRed    = "\x1b[31m"
	colorYellow = "\x1b[33m"
	colorReset  = "\x1b[0m"
)

// reporter prints diagnostics, coloured when the output is a terminal.
type reporter struct {
	w     io.Writer
	color bool
}

func newReporter(w io.Writer) *reporter {
	return &reporter{w: w, color: isColorTerminal(w)}
}

// isColorTerminal NO_COLOR が設定されていれば色を付けない
func isColorTerminal(w io.Writer) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

func (r *reporter) report(res compiler.CompileResult) {
	if res.Output != nil {
		for _, w := range res.Output.Warnings {
			r.print(colorYellow, fmt.Sprintf("%s: %v", res.FileName, w))
		}
	}
	for _, err := range res.Errors {
		var ce *compiler.CompileError
		if errors.As(err, &ce) && ce.IsWarning() {
			// -werror で昇格した警告
			r.print(colorYellow, err.Error())
			continue
		}
		r.print(colorRed, err.Error())
	}
}

func (r *reporter) print(color, msg string) {
	if r.color {
		fmt.Fprintf(r.w, "%s%s%s\n", color, msg, colorReset)
		return
	}
	fmt.Fprintln(r.w, msg)
}
