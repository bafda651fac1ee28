package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const symbolsYAML = `
selectors: {species: 0, superClass: 1, name: 2}
kernels: {Printf: 7}
scripts: {0: Main}
globals:
  - {name: gLimit, index: 0, type: int}
`

const mainYAML = `
number: 0
name: Main
variables:
  - {name: greeting, init: [{kind: string, text: "hi"}]}
procedures:
  - name: Clamp
    public: true
    params: [v, lo, hi]
    body:
      - {kind: if, cond: {kind: binary, op: "<", left: v, right: lo}, then: {kind: return, value: lo}}
      - {kind: if, cond: {kind: binary, op: ">", left: v, right: hi}, then: {kind: return, value: hi}}
      - {kind: return, value: v}
`

const brokenYAML = `
number: 5
procedures:
  - name: f
    body: [{kind: assign, name: missing, value: 1}]
`

func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func run(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	t.Setenv("SCIC_SYMBOLS", "")
	t.Setenv("SCIC_ENCODING", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("NO_COLOR", "1")

	var out, errOut bytes.Buffer
	err = NewWithOutput(&out, &errOut).Run(context.Background(), args)
	return out.String(), errOut.String(), err
}

func TestRun_Help(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"help flag", []string{"--help"}},
		{"no arguments", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, _, err := run(t, tt.args...)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !strings.Contains(stdout, "scic - SCI script compiler") {
				t.Errorf("help output = %q", stdout)
			}
		})
	}
}

func TestRun_CompileDirectory(t *testing.T) {
	dir := writeProject(t, map[string]string{
		"SYMBOLS.YAML":  symbolsYAML,
		"main.sc.yaml":  mainYAML,
		"notes/readme":  "not a script",
		"extra.sc.yaml": "number: 7\nprocedures: [{name: seven, body: [{kind: return, value: 7}]}]",
	})
	outDir := filepath.Join(t.TempDir(), "build")

	a := NewWithOutput(&bytes.Buffer{}, &bytes.Buffer{})
	t.Setenv("SCIC_SYMBOLS", "")
	t.Setenv("LOG_LEVEL", "")
	if err := a.Run(context.Background(), []string{dir, "-o", outDir, "--workers", "2"}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	for _, name := range []string{ImageName(0), ImageName(7)} {
		info, err := os.Stat(filepath.Join(outDir, name))
		if err != nil {
			t.Errorf("image %s: %v", name, err)
			continue
		}
		if info.Size() == 0 {
			t.Errorf("image %s is empty", name)
		}
	}
	if exports, ok := a.Registry().Exports(0); !ok || len(exports) != 1 || exports[0].Name != "Clamp" {
		t.Errorf("exports of script 0 = %+v", exports)
	}
}

// シンボルデータベースは入力の隣から探す（相対パスでも）
func TestRun_DefaultSymbolsLookup(t *testing.T) {
	root := writeProject(t, map[string]string{
		"proj/symbols.yaml": symbolsYAML,
		"proj/main.sc.yaml": mainYAML,
	})
	t.Chdir(root)

	tests := []struct {
		name string
		args []string
	}{
		{"relative directory", []string{"proj"}},
		{"relative file", []string{filepath.Join("proj", "main.sc.yaml")}},
		{"absolute directory", []string{filepath.Join(root, "proj")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, stderr, err := run(t, tt.args...); err != nil {
				t.Fatalf("Run() error = %v\n%s", err, stderr)
			}
		})
	}
}

func TestRun_ListAndRun(t *testing.T) {
	dir := writeProject(t, map[string]string{"symbols.yaml": symbolsYAML, "main.sc.yaml": mainYAML})

	stdout, _, err := run(t, filepath.Join(dir, "main.sc.yaml"), "--list", "--run", "Clamp:15,0,10")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	for _, want := range []string{"script 0 (Main)", "Clamp", "Exports", "Clamp(15, 0, 10) = 10"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("stdout does not contain %q:\n%s", want, stdout)
		}
	}

	stdout, _, err = run(t, filepath.Join(dir, "main.sc.yaml"), "--run", "Clamp:-4,0,10")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.Contains(stdout, "Clamp(-4, 0, 10) = 0") {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestRun_Failures(t *testing.T) {
	dir := writeProject(t, map[string]string{"symbols.yaml": symbolsYAML, "bad.sc.yaml": brokenYAML})
	noDB := writeProject(t, map[string]string{"main.sc.yaml": mainYAML})

	tests := []struct {
		name       string
		args       []string
		errContain string
		stderr     string
	}{
		{
			name:       "compile error",
			args:       []string{dir},
			errContain: "1 of 1 scripts failed to compile",
			stderr:     "bad.sc.yaml: error at line 5",
		},
		{
			name:       "missing symbol database",
			args:       []string{noDB},
			errContain: "failed to load symbols",
		},
		{
			name:       "explicit symbol database",
			args:       []string{"-s", filepath.Join(dir, "nowhere.yaml"), noDB},
			errContain: "failed to load symbols",
		},
		{
			name:       "missing input",
			args:       []string{"-s", filepath.Join(dir, "symbols.yaml"), filepath.Join(dir, "gone.sc.yaml")},
			errContain: "failed to load scripts",
		},
		{
			name:       "unknown procedure",
			args:       []string{"-s", filepath.Join(dir, "symbols.yaml"), "--run", "nothing", noDB},
			errContain: "procedure nothing not found",
		},
		{
			name:       "bad flag",
			args:       []string{"--log-level", "loud", dir},
			errContain: "failed to parse args",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, stderr, err := run(t, tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.errContain) {
				t.Fatalf("error = %v, want to contain %q", err, tt.errContain)
			}
			if tt.stderr != "" && !strings.Contains(stderr, tt.stderr) {
				t.Errorf("stderr does not contain %q:\n%s", tt.stderr, stderr)
			}
		})
	}
}

func TestReporter_Color(t *testing.T) {
	var buf bytes.Buffer
	r := &reporter{w: &buf, color: true}
	r.print(colorRed, "boom")
	if buf.String() != "\x1b[31mboom\x1b[0m\n" {
		t.Errorf("output = %q", buf.String())
	}

	t.Setenv("NO_COLOR", "")
	if isColorTerminal(&buf) {
		t.Error("a buffer is not a terminal")
	}
}
