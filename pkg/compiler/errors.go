package compiler

import (
	"fmt"
	"strings"

	"github.com/zurustar/scic/pkg/compiler/compiler"
)

// CompileError is a diagnostic rendered for people: its location, the
// message with any suggestion, and the surrounding source lines.
type CompileError struct {
	// Severity is "error", "warning" or "internal error".
	Severity string

	// Message is the human-readable error description.
	Message string

	// Suggestion is an optional hint such as a missing use.
	Suggestion string

	// Line and Column are 1-indexed; 0 means unknown.
	Line   int
	Column int

	// Context contains the source code around the error location.
	// This includes 2 lines before and after the error line,
	// with a pointer (^) indicating the error column.
	Context string
}

// Error implements the error interface.
func (e *CompileError) Error() string {
	msg := e.Message
	if e.Suggestion != "" {
		msg += " " + e.Suggestion
	}
	var s string
	if e.Line > 0 {
		s = fmt.Sprintf("%s at line %d, column %d: %s", e.Severity, e.Line, e.Column, msg)
	} else {
		s = fmt.Sprintf("%s: %s", e.Severity, msg)
	}
	if e.Context != "" {
		s += "\n" + e.Context
	}
	return s
}

// IsWarning reports whether the error is only a warning.
func (e *CompileError) IsWarning() bool {
	return e.Severity == compiler.SeverityWarning.String()
}

// NewDiagnosticError converts a compiler diagnostic, taking context lines
// from source when it is available.
func NewDiagnosticError(d *compiler.Diagnostic, source string) *CompileError {
	return &CompileError{
		Severity:   d.Severity.String(),
		Message:    d.Message,
		Suggestion: d.Suggestion,
		Line:       d.Line,
		Column:     d.Column,
		Context:    GenerateErrorContext(source, d.Line, d.Column),
	}
}

// GenerateErrorContext generates source code context around an error location.
// It includes 2 lines before and 2 lines after the error line, with line numbers
// and a pointer (^) indicating the error column.
//
// Example output:
//
//	  2 |       - {kind: assign, name: i, value: 0}
//	  3 |       - kind: while
//	> 4 |         cond: nothing
//	    |               ^
//	  5 |         body: [x]
func GenerateErrorContext(source string, line, column int) string {
	if source == "" || line <= 0 {
		return ""
	}

	lines := strings.Split(source, "\n")
	if line > len(lines) {
		return ""
	}

	start := max(line-3, 0)
	end := min(line+2, len(lines))

	var buf strings.Builder
	lineNumWidth := len(fmt.Sprintf("%d", end))

	for i := start; i < end; i++ {
		lineNum := i + 1
		if lineNum != line {
			fmt.Fprintf(&buf, "  %*d | %s\n", lineNumWidth, lineNum, lines[i])
			continue
		}
		fmt.Fprintf(&buf, "> %*d | %s\n", lineNumWidth, lineNum, lines[i])
		// "> " + 行番号 + " | " の分だけずらす
		indent := 2 + lineNumWidth + 3
		if column > 0 {
			indent += column - 1
		}
		buf.WriteString(strings.Repeat(" ", indent) + "^\n")
	}

	return buf.String()
}
