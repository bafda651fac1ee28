package cli

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/zurustar/scic/pkg/compiler/codegen"
)

// DefaultSymbols はシンボルデータベースの既定のファイル名
const DefaultSymbols = "symbols.yaml"

// Config はコマンドライン引数から解析された設定を保持する
type Config struct {
	Inputs           []string      // スクリプト文書またはディレクトリ
	SymbolsPath      string        // シンボルデータベース（空なら入力ディレクトリから探す）
	OutDir           string        // イメージの出力先（空なら書き出さない）
	Encoding         string        // 文字列テーブルの文字コード
	SourceEncoding   string        // スクリプト文書の文字コード（空ならUTF-8）
	List             bool          // 命令リストを表示
	Run              *RunSpec      // コンパイル後に実行する手続き
	WarningsAsErrors bool          // 警告をエラーとして扱う
	Workers          int           // 並列コンパイル数（0はCPU数）
	Timeout          time.Duration // タイムアウト時間（0は無制限）
	LogLevel         string        // ログレベル（debug, info, warn, error）
	ShowHelp         bool          // ヘルプ表示フラグ
}

// RunSpec names a procedure to execute on the reference VM, with its arguments.
type RunSpec struct {
	Procedure string
	Args      []uint16
}

// ParseArgs コマンドライン引数を解析してConfigを返す
func ParseArgs(args []string) (*Config, error) {
	fs := flag.NewFlagSet("scic", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	config := &Config{}

	var timeoutSec int
	var run string
	fs.StringVar(&config.SymbolsPath, "symbols", "", "シンボルデータベースのパス")
	fs.StringVar(&config.SymbolsPath, "s", "", "シンボルデータベースのパス（短縮形）")
	fs.StringVar(&config.OutDir, "out", "", "イメージの出力先ディレクトリ")
	fs.StringVar(&config.OutDir, "o", "", "イメージの出力先ディレクトリ（短縮形）")
	fs.StringVar(&config.Encoding, "encoding", "", "文字列テーブルの文字コード")
	fs.StringVar(&config.SourceEncoding, "source-encoding", "", "スクリプト文書の文字コード")
	fs.BoolVar(&config.List, "list", false, "命令リストを表示")
	fs.StringVar(&run, "run", "", "実行する手続き（name[:arg,...]）")
	fs.BoolVar(&config.WarningsAsErrors, "werror", false, "警告をエラーとして扱う")
	fs.IntVar(&config.Workers, "workers", 0, "並列コンパイル数")
	fs.IntVar(&timeoutSec, "timeout", 0, "タイムアウト時間（秒）")
	fs.IntVar(&timeoutSec, "t", 0, "タイムアウト時間（秒）（短縮形）")
	fs.StringVar(&config.LogLevel, "log-level", "info", "ログレベル（debug, info, warn, error）")
	fs.StringVar(&config.LogLevel, "l", "info", "ログレベル（短縮形）")
	fs.BoolVar(&config.ShowHelp, "help", false, "ヘルプを表示")
	fs.BoolVar(&config.ShowHelp, "h", false, "ヘルプを表示（短縮形）")

	// 引数を並べ替え：フラグを前に、位置引数を後ろに
	if err := fs.Parse(reorderArgs(fs, args)); err != nil {
		return nil, err
	}

	// 環境変数からの設定（コマンドラインフラグが優先）
	if config.SymbolsPath == "" {
		config.SymbolsPath = os.Getenv("SCIC_SYMBOLS")
	}
	if config.Encoding == "" {
		config.Encoding = os.Getenv("SCIC_ENCODING")
	}
	if config.LogLevel == "info" {
		if logLevelEnv := os.Getenv("LOG_LEVEL"); logLevelEnv != "" {
			config.LogLevel = strings.ToLower(logLevelEnv)
		}
	}

	// タイムアウトの検証
	if timeoutSec < 0 {
		return nil, fmt.Errorf("timeout must be non-negative, got %d", timeoutSec)
	}
	config.Timeout = time.Duration(timeoutSec) * time.Second

	if config.Workers < 0 {
		return nil, fmt.Errorf("workers must be non-negative, got %d", config.Workers)
	}

	// ログレベルの検証
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[config.LogLevel] {
		return nil, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.LogLevel)
	}

	// 文字コードの検証
	if _, err := codegen.LookupEncoding(config.Encoding); err != nil {
		return nil, err
	}
	if config.SourceEncoding != "" {
		if _, err := codegen.LookupEncoding(config.SourceEncoding); err != nil {
			return nil, fmt.Errorf("source encoding: %w", err)
		}
	}

	if run != "" {
		spec, err := ParseRunSpec(run)
		if err != nil {
			return nil, err
		}
		config.Run = spec
	}

	if fs.NArg() > 0 {
		config.Inputs = fs.Args()
	}
	return config, nil
}

// ParseRunSpec parses "name" or "name:arg,arg,...". Arguments are 16-bit
// integers in any base strconv accepts; negative values wrap.
func ParseRunSpec(s string) (*RunSpec, error) {
	name, rest, hasArgs := strings.Cut(s, ":")
	if name == "" {
		return nil, fmt.Errorf("run: missing procedure name in %q", s)
	}
	spec := &RunSpec{Procedure: name}
	if !hasArgs || rest == "" {
		return spec, nil
	}
	for _, a := range strings.Split(rest, ",") {
		n, err := strconv.ParseInt(strings.TrimSpace(a), 0, 32)
		if err != nil || n < -32768 || n > 65535 {
			return nil, fmt.Errorf("run: invalid argument %q", a)
		}
		spec.Args = append(spec.Args, uint16(n))
	}
	return spec, nil
}

// reorderArgs 引数を並べ替えて、フラグを前に、位置引数を後ろに配置する
func reorderArgs(fs *flag.FlagSet, args []string) []string {
	var flags []string
	var positional []string

	for i := 0; i < len(args); i++ {
		arg := args[i]

		// "--" 以降はすべて位置引数
		if arg == "--" {
			positional = append(positional, args[i+1:]...)
			break
		}

		// フラグかどうかを判定（-または--で始まる）
		if len(arg) < 2 || arg[0] != '-' {
			positional = append(positional, arg)
			continue
		}
		flags = append(flags, arg)

		name := strings.TrimLeft(arg, "-")
		if strings.Contains(name, "=") || isBoolFlag(fs, name) {
			continue
		}
		// -o out のように値が続く場合
		if i+1 < len(args) {
			i++
			flags = append(flags, args[i])
		}
	}

	// フラグを前に、位置引数を後ろに配置
	flags = append(flags, "--")
	return append(flags, positional...)
}

func isBoolFlag(fs *flag.FlagSet, name string) bool {
	f := fs.Lookup(name)
	if f == nil {
		return false
	}
	b, ok := f.Value.(interface{ IsBoolFlag() bool })
	return ok && b.IsBoolFlag()
}

// PrintHelp ヘルプメッセージを表示
func PrintHelp(w io.Writer) {
	fmt.Fprintf(w, `scic - SCI script compiler

Usage:
  scic [options] <script.sc.yaml | directory>...

Arguments:
  script.sc.yaml  コンパイルするスクリプト文書
  directory       配下の *.sc.yaml をすべてコンパイル

Options:
  -s, --symbols <path>        シンボルデータベース（デフォルト: 入力ディレクトリの %s）
  -o, --out <dir>             イメージ（.scr）の出力先
  --encoding <name>           文字列テーブルの文字コード: cp437, cp850, windows-1252, shift-jis（デフォルト: cp437）
  --source-encoding <name>    スクリプト文書の文字コード（デフォルト: UTF-8）
  --list                      命令リストを表示
  --run <name[:args]>         コンパイル後に手続きを実行（例: --run Clamp:5,0,10）
  --werror                    警告をエラーとして扱う
  --workers <n>               並列コンパイル数（デフォルト: CPU数）
  -t, --timeout <seconds>     指定秒数でコンパイルを打ち切る（デフォルト: 無制限）
  -l, --log-level <level>     ログレベル: debug, info, warn, error（デフォルト: info）
  -h, --help                  このヘルプを表示

Environment Variables:
  SCIC_SYMBOLS=<path>         シンボルデータベース
  SCIC_ENCODING=<name>        文字列テーブルの文字コード
  LOG_LEVEL=<level>           ログレベル

Examples:
  scic game/                          ディレクトリ内の全スクリプトをコンパイル
  scic -o out game/                   イメージを out/ に書き出す
  scic --list game/main.sc.yaml       命令リストを表示
  scic --run Clamp:15,0,10 main.sc.yaml  手続きを実行して結果を表示
`, DefaultSymbols)
}
