// Package compiler lowers the syntax tree of one SCI script into p-code.
// It resolves names against the script and the project symbol database,
// type-checks as it goes, and writes instructions into a codegen.Code buffer.
//
// Errors never stop lowering: each problem becomes a Diagnostic and the
// offending expression is replaced by a neutral value, so one run reports
// as many problems as possible.
package compiler

import (
	"fmt"
	"log/slog"

	"github.com/zurustar/scic/pkg/compiler/ast"
	"github.com/zurustar/scic/pkg/compiler/codegen"
	"github.com/zurustar/scic/pkg/compiler/symbols"
	"github.com/zurustar/scic/pkg/compiler/types"
)

// Severity classifies a diagnostic.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
	// SeverityInternal means the compiler itself is at fault. The unit is rejected.
	SeverityInternal
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityInternal:
		return "internal error"
	}
	return "error"
}

// Diagnostic is an error or warning with its source location.
type Diagnostic struct {
	Severity   Severity
	Line       int
	Column     int
	Message    string
	Suggestion string
}

// Error implements the error interface.
func (d *Diagnostic) Error() string {
	msg := d.Message
	if d.Suggestion != "" {
		msg += " " + d.Suggestion
	}
	if d.Line > 0 {
		return fmt.Sprintf("%s at line %d, column %d: %s", d.Severity, d.Line, d.Column, msg)
	}
	return fmt.Sprintf("%s: %s", d.Severity, msg)
}

// CodeResult is what lowering an expression produced: the number of bytes
// it left on the stack and its static type.
type CodeResult struct {
	Bytes int
	Type  types.Species
}

// Options configures a Compiler.
type Options struct {
	// Logger receives debug output. nil means slog.Default().
	Logger *slog.Logger
}

// Compiler lowers one script at a time. It is not safe for concurrent use;
// compile scripts in parallel with one Compiler each.
type Compiler struct {
	db  symbols.Database
	log *slog.Logger

	script  *ast.Script
	code    *codegen.Code
	strings *codegen.StringTable
	diags   []*Diagnostic

	scope
	unit        *unit
	fn          *function
	procEntries map[string]codegen.Pos

	// switches and loops currently open, innermost last; true marks a switch
	breakables []bool
	last       CodeResult
}

// New creates a Compiler that resolves names against db.
func New(db symbols.Database, opts Options) *Compiler {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Compiler{db: db, log: log}
}

// Compile lowers script. The result always carries the diagnostics; it
// carries a finalized Program only when no errors were reported.
func (c *Compiler) Compile(script *ast.Script) *Result {
	c.script = script
	c.code = codegen.New()
	c.strings = codegen.NewStringTable()
	c.diags = nil
	c.scope = scope{}
	c.fn = nil
	c.breakables = nil
	c.procEntries = nil

	res := &Result{Script: script, Strings: c.strings}
	if script == nil {
		c.addInternal(ast.Pos{}, "script is nil")
		res.Diagnostics = c.diags
		return res
	}

	c.unit = c.prescan(script)
	c.emitScript(res)

	if !hasErrors(c.diags) {
		prog, err := c.code.Finalize()
		if err != nil {
			c.addInternal(ast.Pos{}, "%v", err)
		} else {
			res.Program = prog
			c.resolveAddresses(res)
		}
	}
	res.Diagnostics = c.diags
	c.log.Debug("compiled script",
		"script", script.Name,
		"instructions", c.code.Len(),
		"diagnostics", len(c.diags))
	return res
}

func (c *Compiler) addDiag(sev Severity, pos ast.Pos, suggestion, format string, args ...any) {
	c.diags = append(c.diags, &Diagnostic{
		Severity:   sev,
		Line:       pos.Line,
		Column:     pos.Column,
		Message:    fmt.Sprintf(format, args...),
		Suggestion: suggestion,
	})
}

// addError records a resolution, type, structural or control-flow error.
func (c *Compiler) addError(pos ast.Pos, format string, args ...any) {
	c.addDiag(SeverityError, pos, "", format, args...)
}

// addErrorHint is addError with a suggestion such as a missing "use".
func (c *Compiler) addErrorHint(pos ast.Pos, hint, format string, args ...any) {
	c.addDiag(SeverityError, pos, hint, format, args...)
}

func (c *Compiler) addWarning(pos ast.Pos, format string, args ...any) {
	c.addDiag(SeverityWarning, pos, "", format, args...)
}

// addInternal records a compiler defect. The unit gets no code.
func (c *Compiler) addInternal(pos ast.Pos, format string, args ...any) {
	c.addDiag(SeverityInternal, pos, "", format, args...)
}

func hasErrors(diags []*Diagnostic) bool {
	for _, d := range diags {
		if d.Severity != SeverityWarning {
			return true
		}
	}
	return false
}

// typeName names a species, including classes of this script.
func (c *Compiler) typeName(s types.Species) string {
	return types.Name(s, c)
}

// match checks assignability including classes of this script.
func (c *Compiler) match(dest, src types.Species) bool {
	return types.Match(dest, src, c)
}

// SuperSpecies implements types.Hierarchy over local and database classes.
func (c *Compiler) SuperSpecies(s types.Species) (types.Species, bool) {
	if c.unit != nil {
		if lc, ok := c.unit.bySpecies[s]; ok {
			if lc.super == nil {
				return 0, false
			}
			return types.Species(lc.super.Species), true
		}
	}
	return symbols.SuperSpecies(c.db, s)
}

// SpeciesName implements types.Hierarchy over local and database classes.
func (c *Compiler) SpeciesName(s types.Species) string {
	if c.unit != nil {
		if lc, ok := c.unit.bySpecies[s]; ok {
			return lc.decl.Name
		}
	}
	return symbols.SpeciesName(c.db, s)
}
