package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding"

	"github.com/zurustar/scic/pkg/cli"
	"github.com/zurustar/scic/pkg/compiler"
	"github.com/zurustar/scic/pkg/compiler/codegen"
	"github.com/zurustar/scic/pkg/compiler/symbols"
	"github.com/zurustar/scic/pkg/fileutil"
	"github.com/zurustar/scic/pkg/listing"
	"github.com/zurustar/scic/pkg/logger"
	"github.com/zurustar/scic/pkg/script"
	"github.com/zurustar/scic/pkg/vm"
)

// runMaxSteps bounds procedures executed with --run.
const runMaxSteps = 1_000_000

// Application はアプリケーションのメインロジックを管理する
type Application struct {
	config   *cli.Config
	log      *slog.Logger
	stdout   io.Writer
	stderr   io.Writer
	registry *symbols.Registry
}

// New Applicationを作成
func New() *Application {
	return NewWithOutput(os.Stdout, os.Stderr)
}

// NewWithOutput creates an Application writing results to stdout and
// diagnostics to stderr.
func NewWithOutput(stdout, stderr io.Writer) *Application {
	return &Application{
		stdout:   stdout,
		stderr:   stderr,
		registry: symbols.NewRegistry(),
	}
}

// Registry returns the export tables published by the last run.
func (app *Application) Registry() *symbols.Registry { return app.registry }

// Run アプリケーションを実行
func (app *Application) Run(ctx context.Context, args []string) error {
	// 1. コマンドライン引数の解析
	if err := app.parseArgs(args); err != nil {
		return fmt.Errorf("failed to parse args: %w", err)
	}

	if app.config.ShowHelp || len(app.config.Inputs) == 0 {
		cli.PrintHelp(app.stdout)
		return nil
	}

	// 2. ロガーの初期化
	if err := app.initLogger(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if app.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, app.config.Timeout)
		defer cancel()
	}

	// 3. シンボルデータベースの読み込み
	db, err := app.loadSymbols()
	if err != nil {
		return fmt.Errorf("failed to load symbols: %w", err)
	}

	// 4. スクリプト文書の読み込み
	scripts, err := app.loadScripts()
	if err != nil {
		return fmt.Errorf("failed to load scripts: %w", err)
	}

	app.log.Info("Scripts loaded", "count", len(scripts))
	for _, s := range scripts {
		app.log.Debug("Script file", "name", s.FileName, "path", s.Path, "size", s.Size)
	}

	// 5. コンパイル
	results, err := compiler.CompileScripts(ctx, scripts, db, app.registry, app.compileOptions())
	if err != nil {
		return err
	}

	// 6. 診断の表示と出力
	rep := newReporter(app.stderr)
	failed := 0
	for _, r := range results {
		rep.report(r)
		if !r.OK() {
			failed++
			continue
		}
		if err := app.emit(r); err != nil {
			return err
		}
	}
	app.log.Info("Compilation finished", "scripts", len(results), "failed", failed, "published", len(app.registry.Scripts()))

	if failed > 0 {
		return fmt.Errorf("%d of %d scripts failed to compile", failed, len(results))
	}

	// 7. 手続きの実行
	if app.config.Run != nil {
		return app.runProcedure(ctx, results)
	}
	return nil
}

// parseArgs コマンドライン引数を解析
func (app *Application) parseArgs(args []string) error {
	config, err := cli.ParseArgs(args)
	if err != nil {
		return err
	}
	app.config = config
	return nil
}

// initLogger ロガーを初期化
func (app *Application) initLogger() error {
	if err := logger.InitLoggerTo(app.stderr, app.config.LogLevel); err != nil {
		return err
	}
	app.log = logger.GetLogger()
	return nil
}

func (app *Application) compileOptions() compiler.CompileOptions {
	return compiler.CompileOptions{
		Encoding:         app.config.Encoding,
		SourceEncoding:   app.config.SourceEncoding,
		WarningsAsErrors: app.config.WarningsAsErrors,
		Workers:          app.config.Workers,
		Logger:           app.log,
	}
}

// loadSymbols reads the symbol database named on the command line, or
// looks for symbols.yaml next to the first input.
func (app *Application) loadSymbols() (*symbols.Store, error) {
	path := app.config.SymbolsPath
	if path == "" {
		dir := app.config.Inputs[0]
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			dir = filepath.Dir(dir)
		}
		found, err := fileutil.FindFileCaseInsensitive(dir, cli.DefaultSymbols)
		if err != nil {
			return nil, fmt.Errorf("no %s in %s: %w", cli.DefaultSymbols, dir, err)
		}
		path = found
	}
	app.log.Info("Loading symbols", "path", path)
	return symbols.LoadFile(path)
}

// loadScripts スクリプト文書を読み込む
func (app *Application) loadScripts() ([]script.Script, error) {
	var charset encoding.Encoding
	if app.config.SourceEncoding != "" {
		enc, err := codegen.LookupEncoding(app.config.SourceEncoding)
		if err != nil {
			return nil, err
		}
		charset = enc
	}
	newLoader := func(dir string) *script.Loader {
		l := script.NewLoader(dir)
		if charset != nil {
			l.WithCharset(charset)
		}
		return l
	}

	var scripts []script.Script
	for _, in := range app.config.Inputs {
		info, err := os.Stat(in)
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			found, err := newLoader(in).LoadAllScripts()
			if err != nil {
				return nil, err
			}
			scripts = append(scripts, found...)
			continue
		}
		s, err := newLoader(filepath.Dir(in)).LoadScript(filepath.Base(in))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", in, err)
		}
		scripts = append(scripts, *s)
	}
	return scripts, nil
}

// emit writes the image and listing of a compiled script.
func (app *Application) emit(r compiler.CompileResult) error {
	out := r.Output
	if app.config.List {
		fmt.Fprint(app.stdout, listing.Render(out.Result, out.Image))
	}
	if app.config.OutDir == "" {
		return nil
	}
	if err := os.MkdirAll(app.config.OutDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(app.config.OutDir, ImageName(out.Script.Number))
	if err := os.WriteFile(path, out.Image.Bytes, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	app.log.Info("Image written", "file", r.FileName, "path", path, "bytes", len(out.Image.Bytes))
	return nil
}

// ImageName is the file an assembled script is written to.
func ImageName(number uint16) string {
	return fmt.Sprintf("script.%03d", number)
}

// runProcedure executes the requested procedure of the first script that
// defines it and prints the accumulator.
func (app *Application) runProcedure(ctx context.Context, results []compiler.CompileResult) error {
	spec := app.config.Run
	for _, r := range results {
		entry, ok := r.Output.Result.Procedures[spec.Procedure]
		if !ok {
			continue
		}
		m := vm.New(r.Output.Image.Bytes, vm.Options{
			Locals:   r.Output.LocalValues(),
			MaxSteps: runMaxSteps,
			Logger:   app.log,
		})
		got, err := m.Run(ctx, entry, spec.Args...)
		if err != nil {
			return fmt.Errorf("%s: %w", r.FileName, err)
		}
		fmt.Fprintf(app.stdout, "%s(%s) = %d\n", spec.Procedure, joinArgs(spec.Args), int16(got))
		return nil
	}
	return fmt.Errorf("procedure %s not found", spec.Procedure)
}

func joinArgs(args []uint16) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = fmt.Sprint(int16(a))
	}
	return strings.Join(parts, ", ")
}
