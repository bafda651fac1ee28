package compiler

import (
	"strings"
	"testing"

	"github.com/zurustar/scic/pkg/compiler/compiler"
)

func TestCompileError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *CompileError
		contains []string
		missing  []string
	}{
		{
			name:     "error with location",
			err:      &CompileError{Severity: "error", Message: "Unknown variable 'zz'.", Line: 5, Column: 10},
			contains: []string{"error at line 5, column 10", "Unknown variable 'zz'."},
		},
		{
			name:     "suggestion is appended",
			err:      &CompileError{Severity: "error", Message: "Unknown procedure 'Print'.", Suggestion: `Did you forget to use "PrintScr"?`, Line: 2, Column: 1},
			contains: []string{"Unknown procedure 'Print'. Did you forget"},
		},
		{
			name:     "without location",
			err:      &CompileError{Severity: "internal error", Message: "dangling"},
			contains: []string{"internal error: dangling"},
			missing:  []string{"line"},
		},
		{
			name:     "with context",
			err:      &CompileError{Severity: "warning", Message: "empty send call.", Line: 3, Column: 5, Context: "> 3 | - {kind: send, target: gEgo}\n"},
			contains: []string{"warning at line 3", "> 3 |"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errStr := tt.err.Error()
			for _, substr := range tt.contains {
				if !strings.Contains(errStr, substr) {
					t.Errorf("Error() = %q, want to contain %q", errStr, substr)
				}
			}
			for _, substr := range tt.missing {
				if strings.Contains(errStr, substr) {
					t.Errorf("Error() = %q, should not contain %q", errStr, substr)
				}
			}
		})
	}
}

func TestNewDiagnosticError(t *testing.T) {
	source := "name: s\nprocedures:\n  - name: f\n    body: [nothing]\n"
	d := &compiler.Diagnostic{Severity: compiler.SeverityWarning, Line: 4, Column: 12, Message: "msg", Suggestion: "hint"}

	err := NewDiagnosticError(d, source)
	if err.Severity != "warning" || !err.IsWarning() {
		t.Errorf("Severity = %q", err.Severity)
	}
	if err.Message != "msg" || err.Suggestion != "hint" || err.Line != 4 || err.Column != 12 {
		t.Errorf("fields not copied: %+v", err)
	}
	if !strings.Contains(err.Context, "> 4 |     body: [nothing]") {
		t.Errorf("Context = %q", err.Context)
	}

	d.Severity = compiler.SeverityInternal
	if NewDiagnosticError(d, "").IsWarning() {
		t.Error("internal error reported as warning")
	}
}

func TestGenerateErrorContext(t *testing.T) {
	source := `a: 1
b: 2
c: 3
d: [
e: 5
f: 6
g: 7`

	tests := []struct {
		name        string
		line        int
		column      int
		contains    []string
		notContains []string
	}{
		{
			name:        "error in middle of file",
			line:        4,
			column:      4,
			contains:    []string{"2 | b: 2", "3 | c: 3", "> 4 | d: [", "^", "5 | e: 5", "6 | f: 6"},
			notContains: []string{"1 |", "7 |"},
		},
		{
			name:        "error at beginning of file",
			line:        1,
			column:      1,
			contains:    []string{"> 1 | a: 1", "2 | b: 2", "3 | c: 3"},
			notContains: []string{"4 |"},
		},
		{
			name:        "error at end of file",
			line:        7,
			column:      2,
			contains:    []string{"5 | e: 5", "6 | f: 6", "> 7 | g: 7"},
			notContains: []string{"4 |"},
		},
		{name: "invalid line number", line: 0, column: 1},
		{name: "line number exceeds source", line: 100, column: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			context := GenerateErrorContext(source, tt.line, tt.column)
			if len(tt.contains) == 0 && context != "" {
				t.Errorf("GenerateErrorContext() = %q, want empty", context)
			}
			for _, substr := range tt.contains {
				if !strings.Contains(context, substr) {
					t.Errorf("GenerateErrorContext() = %q, want to contain %q", context, substr)
				}
			}
			for _, substr := range tt.notContains {
				if strings.Contains(context, substr) {
					t.Errorf("GenerateErrorContext() = %q, should not contain %q", context, substr)
				}
			}
		})
	}

	if got := GenerateErrorContext("", 1, 1); got != "" {
		t.Errorf("empty source context = %q", got)
	}
}

func TestGenerateErrorContext_PointerPosition(t *testing.T) {
	source := "x: [1, 2"
	for _, column := range []int{1, 5, 9} {
		context := GenerateErrorContext(source, 1, column)
		lines := strings.Split(context, "\n")
		if len(lines) < 2 {
			t.Fatalf("context = %q", context)
		}
		// "> 1 | " の後ろに column-1 個の空白
		want := strings.Repeat(" ", 6+column-1) + "^"
		if lines[1] != want {
			t.Errorf("column %d: pointer line = %q, want %q", column, lines[1], want)
		}
	}
}
