// Package compiler is the compilation pipeline for SCI script documents.
// It turns a document into an assembled p-code image in three phases:
// 1. Decode: YAML document to syntax tree (ast.Decode)
// 2. Lower: syntax tree to instructions, with diagnostics (compiler/compiler)
// 3. Assemble: finalized instructions and string table to bytes (codegen)
//
// Entry points:
// - Compile: compiles a decoded script
// - CompileSource: decodes and compiles a document
// - CompileFile: reads, decodes and compiles a document file
// - CompileScripts: compiles loaded documents in parallel and publishes exports
// - CompileDirectory: loads and compiles every document of a directory
package compiler

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/zurustar/scic/pkg/compiler/ast"
	"github.com/zurustar/scic/pkg/compiler/codegen"
	"github.com/zurustar/scic/pkg/compiler/compiler"
	"github.com/zurustar/scic/pkg/compiler/symbols"
	"github.com/zurustar/scic/pkg/script"
)

// CompileOptions provides configuration options for compilation.
type CompileOptions struct {
	// Encoding is the charset of the string table. Empty selects cp437.
	Encoding string
	// SourceEncoding is the charset of the documents. Empty means UTF-8.
	SourceEncoding string
	// WarningsAsErrors fails scripts that have only warnings.
	WarningsAsErrors bool
	// Workers bounds parallel compilation. 0 means GOMAXPROCS.
	Workers int
	// Logger receives debug output of the compiler. nil means slog.Default().
	Logger *slog.Logger
}

// Output is everything compiling one script produced.
type Output struct {
	Script *ast.Script
	Result *compiler.Result
	// Image is nil unless the script compiled without errors.
	Image    *codegen.Image
	Warnings []*CompileError
}

// LocalValues returns the initial script variables as words, with string
// and said references resolved to their offsets in the image.
func (o *Output) LocalValues() []uint16 {
	values := make([]uint16, len(o.Result.Locals))
	for i, k := range o.Result.Locals {
		values[i] = k.Value
		switch k.Reloc {
		case codegen.RelocString, codegen.RelocSaid:
			if o.Image != nil && int(k.Value) < len(o.Image.Strings) {
				values[i] = o.Image.Strings[k.Value].Offset
			}
		}
	}
	return values
}

// Compile lowers a decoded script against db and assembles it. The returned
// errors are the script's error diagnostics as *CompileError, or pipeline
// failures; warnings are kept on the Output.
func Compile(s *ast.Script, db symbols.Database, opts CompileOptions) (*Output, []error) {
	enc, err := codegen.LookupEncoding(opts.Encoding)
	if err != nil {
		return nil, []error{err}
	}

	res := compiler.New(db, compiler.Options{Logger: opts.Logger}).Compile(s)
	out := &Output{Script: s, Result: res}

	var errs []error
	for _, d := range res.Diagnostics {
		ce := NewDiagnosticError(d, s.Source)
		if ce.IsWarning() && !opts.WarningsAsErrors {
			out.Warnings = append(out.Warnings, ce)
			continue
		}
		errs = append(errs, ce)
	}
	if len(errs) > 0 {
		return out, errs
	}
	if res.Program == nil {
		return out, []error{fmt.Errorf("%s: no program was produced", s.Name)}
	}

	img, err := codegen.Assemble(res.Program, res.Strings, enc)
	if err != nil {
		return out, []error{fmt.Errorf("%s: %w", s.Name, err)}
	}
	out.Image = img
	return out, nil
}

// CompileSource decodes a YAML document and compiles it. The document text
// serves as the error context unless it carries its own source.
func CompileSource(data []byte, db symbols.Database, opts CompileOptions) (*Output, []error) {
	s, err := ast.Decode(data)
	if err != nil {
		return nil, []error{err}
	}
	if s.Source == "" {
		s.Source = string(data)
	}
	return Compile(s, db, opts)
}

// CompileFile reads a document from path and compiles it.
func CompileFile(path string, db symbols.Database, opts CompileOptions) (*Output, []error) {
	if _, err := os.Stat(path); err != nil {
		return nil, []error{fmt.Errorf("failed to read file %s: %w", path, err)}
	}
	loader := script.NewLoader(filepath.Dir(path))
	if err := withSourceCharset(loader, opts); err != nil {
		return nil, []error{err}
	}
	doc, err := loader.LoadScript(filepath.Base(path))
	if err != nil {
		return nil, []error{fmt.Errorf("failed to read file %s: %w", path, err)}
	}
	r := compileLoaded(doc, db, nil, opts)
	return r.Output, r.Errors
}

// CompileResult is the compilation result for a single document.
type CompileResult struct {
	// FileName is the name of the document file
	FileName string
	// Output is nil when the document could not be decoded
	Output *Output
	// Errors contains any compilation errors (empty if successful)
	Errors []error
}

// OK reports whether the document compiled to an image.
func (r CompileResult) OK() bool {
	return len(r.Errors) == 0 && r.Output != nil && r.Output.Image != nil
}

// CompileScripts compiles documents in parallel, one Compiler each, against
// the shared read-only db. Scripts that compile cleanly publish their export
// tables to reg when it is not nil. Results keep the order of scripts.
// The context is checked between scripts only.
func CompileScripts(ctx context.Context, scripts []script.Script, db symbols.Database, reg *symbols.Registry, opts CompileOptions) ([]CompileResult, error) {
	results := make([]CompileResult, len(scripts))
	g, ctx := errgroup.WithContext(ctx)
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g.SetLimit(workers)

	for i := range scripts {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = compileLoaded(&scripts[i], db, reg, opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, fmt.Errorf("compilation interrupted: %w", err)
	}
	return results, nil
}

// CompileDirectory loads all documents below dir and compiles them.
func CompileDirectory(ctx context.Context, dir string, db symbols.Database, reg *symbols.Registry, opts CompileOptions) ([]CompileResult, error) {
	loader := script.NewLoader(dir)
	if err := withSourceCharset(loader, opts); err != nil {
		return nil, err
	}
	scripts, err := loader.LoadAllScripts()
	if err != nil {
		return nil, fmt.Errorf("failed to load scripts from %s: %w", dir, err)
	}
	return CompileScripts(ctx, scripts, db, reg, opts)
}

func compileLoaded(s *script.Script, db symbols.Database, reg *symbols.Registry, opts CompileOptions) CompileResult {
	r := CompileResult{FileName: s.FileName}
	doc, err := s.Decode()
	if err != nil {
		r.Errors = []error{err}
		return r
	}
	if doc.Source == "" {
		doc.Source = string(s.Content)
	}
	out, errs := Compile(doc, db, opts)
	r.Output = out
	for _, err := range errs {
		r.Errors = append(r.Errors, fmt.Errorf("%s: %w", s.FileName, err))
	}
	if len(r.Errors) == 0 && reg != nil {
		reg.Publish(doc.Number, out.Result.Exports)
	}
	return r
}

func withSourceCharset(l *script.Loader, opts CompileOptions) error {
	if opts.SourceEncoding == "" {
		return nil
	}
	enc, err := codegen.LookupEncoding(opts.SourceEncoding)
	if err != nil {
		return fmt.Errorf("source encoding: %w", err)
	}
	l.WithCharset(enc)
	return nil
}
