package compiler

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/google/go-cmp/cmp"

	"github.com/zurustar/scic/pkg/compiler/ast"
	"github.com/zurustar/scic/pkg/compiler/codegen"
	"github.com/zurustar/scic/pkg/compiler/symbols"
	"github.com/zurustar/scic/pkg/compiler/types"
	"github.com/zurustar/scic/pkg/vm"
)

const execScript = `
name: exec
variables:
  - {name: arr, size: 4}
procedures:
  - name: sumTo
    params: [n]
    temps: [{name: i}, {name: sum}]
    body:
      - kind: for
        init: [{kind: assign, name: i, value: 0}]
        cond: {kind: binary, op: "<", left: i, right: n}
        step: [{kind: unary, op: "++", operand: i}]
        body:
          - {kind: if, cond: {kind: binary, op: "==", left: i, right: 2}, then: {kind: continue}}
          - {kind: if, cond: {kind: binary, op: "==", left: i, right: 5}, then: {kind: break}}
          - {kind: assign, op: "+=", name: sum, value: i}
      - {kind: return, value: sum}

  - name: nested
    temps: [{name: i}, {name: j}, {name: total}]
    body:
      - kind: while
        cond: {kind: binary, op: "<", left: i, right: 5}
        body:
          - {kind: unary, op: "++", operand: i}
          - {kind: assign, name: j, value: 0}
          - kind: while
            cond: {kind: binary, op: "<", left: j, right: 10}
            body:
              - {kind: unary, op: "++", operand: j}
              - {kind: if, cond: {kind: binary, op: "==", left: i, right: 2}, then: {kind: continue, levels: 2}}
              - {kind: if, cond: {kind: binary, op: "==", left: i, right: 4}, then: {kind: break, levels: 2}}
              - {kind: assign, op: "+=", name: total, value: j}
          - {kind: assign, op: "+=", name: total, value: 1000}
      - {kind: return, value: total}

  - name: classify
    params: [v]
    temps: [{name: r}]
    body:
      - kind: switch
        value: v
        cases:
          - {value: 1, body: [{kind: assign, name: r, value: 10}]}
          - {value: 2, body: [{kind: assign, name: r, value: 20}]}
          - {default: true, body: [{kind: assign, name: r, value: 99}]}
      - {kind: return, value: r}

  - name: cycle
    params: [n]
    temps: [{name: i}, {name: total}]
    body:
      - kind: while
        cond: {kind: binary, op: "<", left: i, right: n}
        body:
          - {kind: unary, op: "++", operand: i}
          - kind: switch
            value: {kind: binary, op: mod, left: i, right: 3}
            cases:
              - {value: 0, body: [{kind: continue}]}
              - {value: 1, body: [{kind: assign, op: "+=", name: total, value: 10}]}
              - default: true
                body:
                  - {kind: if, cond: {kind: binary, op: ">", left: i, right: 20}, then: {kind: break, levels: 2}}
                  - {kind: assign, op: "+=", name: total, value: 1}
      - {kind: return, value: total}

  - name: bump
    params: [k]
    body:
      - {kind: assign, op: "+=", name: arr, index: k, value: 3}
      - {kind: return, value: {kind: token, name: arr, index: k}}

  - name: inRange
    params: [x]
    body:
      - {kind: return, value: {kind: nary, op: "<", operands: [10, x, 20]}}

  - name: chain
    params: [a, b, c]
    body:
      - {kind: return, value: {kind: nary, op: "<", operands: [a, b, c]}}

  - name: either
    params: [a, b]
    body:
      - {kind: return, value: {kind: binary, op: "||", left: a, right: b}}

  - name: both
    params: [a, b]
    body:
      - {kind: return, value: {kind: binary, op: "&&", left: a, right: b}}

  - name: pick
    params: [a, b]
    body:
      - kind: if
        cond: {kind: binary, op: "&&", left: a, right: {kind: binary, op: "||", left: b, right: {kind: binary, op: ">", left: a, right: 5}}}
        then: {kind: return, value: 1}
        else: {kind: return, value: 2}

  - name: viaLocal
    body:
      - {kind: return, value: {kind: binary, op: "+", left: {kind: call, name: sumTo, args: [10]}, right: 1}}

  - name: square
    params: [x]
    body:
      - {kind: return, value: {kind: call, name: Printf, args: [x]}}

  - name: countDo
    params: [n]
    temps: [{name: i}]
    body:
      - kind: do
        body:
          - {kind: unary, op: "++", operand: i}
          - {kind: if, cond: {kind: binary, op: "==", left: i, right: 7}, then: {kind: break}}
        cond: {kind: binary, op: "<", left: i, right: n}
      - {kind: return, value: i}

  - name: dupSwitch
    params: [v]
    temps: [{name: r}]
    body:
      - kind: switch
        value: v
        cases:
          - {value: 0, body: [{kind: assign, name: r, value: 1}]}
          - {value: 1, body: [{kind: assign, name: r, value: 10}]}
          - {value: 0, body: [{kind: assign, name: r, value: 100}]}
          - {default: true, body: [{kind: assign, name: r, value: 1000}]}
      - {kind: return, value: r}

  - name: asmSum
    params: [n]
    temps: [{name: total}]
    body:
      - kind: asm
        code:
          - {label: top, op: lap, args: [n]}
          - {op: bnt, args: [done]}
          - {op: lst, args: [total]}
          - {op: lap, args: [n]}
          - {op: add}
          - {op: sat, args: [total]}
          - {op: "-ap", args: [n]}
          - {op: jmp, args: [top]}
          - {label: done, op: lat, args: [total]}
      - {kind: return, value: total}

  - name: asmSquare
    params: [x]
    body:
      - kind: asm
        code:
          - {op: push1}
          - {op: lsp, args: [x]}
          - {op: callk, args: [Printf, 2]}
          - {op: ret}
`

func compileExec(t *testing.T) *Result {
	t.Helper()
	res := compileSource(t, execScript)
	if res.HasErrors() || res.Program == nil {
		t.Fatalf("diagnostics: %v", messages(res))
	}
	return res
}

func TestExecution(t *testing.T) {
	res := compileExec(t)
	enc, err := codegen.LookupEncoding("")
	if err != nil {
		t.Fatalf("LookupEncoding() error = %v", err)
	}
	img, err := codegen.Assemble(res.Program, res.Strings, enc)
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}

	tests := []struct {
		proc     string
		args     []uint16
		want     uint16
		maxStack int
	}{
		{"sumTo", []uint16{10}, 8, 0},
		{"sumTo", []uint16{3}, 1, 0},
		{"nested", nil, 2110, 0},
		{"classify", []uint16{1}, 10, 0},
		{"classify", []uint16{2}, 20, 0},
		{"classify", []uint16{7}, 99, 0},
		// leaked switch values would overflow the small stack
		{"cycle", []uint16{9}, 33, 8},
		{"cycle", []uint16{300}, 87, 8},
		{"inRange", []uint16{15}, 1, 0},
		{"inRange", []uint16{5}, 0, 0},
		{"inRange", []uint16{25}, 0, 0},
		{"chain", []uint16{1, 2, 3}, 1, 0},
		{"chain", []uint16{1, 3, 2}, 0, 0},
		{"chain", []uint16{3, 2, 1}, 0, 0},
		{"either", []uint16{0, 0}, 0, 0},
		{"either", []uint16{0, 5}, 1, 0},
		{"either", []uint16{3, 0}, 1, 0},
		{"both", []uint16{1, 0}, 0, 0},
		{"both", []uint16{2, 3}, 1, 0},
		{"pick", []uint16{1, 1}, 1, 0},
		{"pick", []uint16{1, 0}, 2, 0},
		{"pick", []uint16{7, 0}, 1, 0},
		{"pick", []uint16{0, 1}, 2, 0},
		{"viaLocal", nil, 9, 0},
		{"square", []uint16{12}, 144, 0},
		{"countDo", []uint16{0}, 1, 0},
		{"countDo", []uint16{3}, 3, 0},
		{"countDo", []uint16{10}, 7, 0},
		// the second case 0 never runs
		{"dupSwitch", []uint16{0}, 1, 8},
		{"dupSwitch", []uint16{1}, 10, 8},
		{"dupSwitch", []uint16{5}, 1000, 8},
		{"asmSum", []uint16{4}, 10, 0},
		{"asmSum", []uint16{0}, 0, 0},
		{"asmSquare", []uint16{9}, 81, 0},
	}
	for _, tt := range tests {
		t.Run(tt.proc, func(t *testing.T) {
			entry, ok := res.Procedures[tt.proc]
			if !ok {
				t.Fatalf("no entry for %s", tt.proc)
			}
			m := vm.New(img.Bytes, vm.Options{
				Locals:   make([]uint16, 4),
				MaxStack: tt.maxStack,
				Kernels: map[uint16]vm.Kernel{7: func(args []uint16) uint16 {
					return args[0] * args[0]
				}},
			})
			got, err := m.Run(context.Background(), entry, tt.args...)
			if err != nil {
				t.Fatalf("Run(%v) error = %v", tt.args, err)
			}
			if got != tt.want {
				t.Errorf("%s(%v) = %d, want %d", tt.proc, tt.args, got, tt.want)
			}
		})
	}
}

func TestDuplicateCaseWarnsOnce(t *testing.T) {
	res := compileExec(t)
	n := 0
	for _, d := range res.Diagnostics {
		if strings.HasPrefix(d.Message, "Duplicate case values.") {
			n++
			if d.Severity != SeverityWarning {
				t.Errorf("severity = %s, want warning", d.Severity)
			}
		}
	}
	if n != 1 {
		t.Errorf("duplicate case warnings = %d, want 1; got %v", n, messages(res))
	}
}

func TestContinueInDoRejectsUnit(t *testing.T) {
	res := compileSource(t, `
name: rejected
procedures:
  - name: foo
    params: [p]
    body:
      - {kind: do, body: [{kind: continue}], cond: p}
`)
	if !res.Rejected() {
		t.Fatalf("unit not rejected: %v", messages(res))
	}
	if res.Program != nil {
		t.Error("a rejected unit must not carry a program")
	}
	var internal int
	for _, d := range res.Diagnostics {
		if d.Severity == SeverityInternal {
			internal++
		}
	}
	if internal != 1 {
		t.Errorf("internal diagnostics = %d, want 1: %v", internal, messages(res))
	}
}

// 引数フレームは1バイトに収まらなければならない
func TestFrameLimit(t *testing.T) {
	args := strings.TrimSuffix(strings.Repeat("1, ", 128), ", ")
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "call",
			body: `[{kind: call, name: Printf, args: [` + args + `]}]`,
			want: "Too many parameters for 'Printf': 256 bytes do not fit in a 255 byte frame.",
		},
		{
			name: "send",
			body: `[{kind: send, target: gEgo, params: [{selector: doit, call: true, args: [` + args + `]}]}]`,
			want: "Too many parameters for 'send': 260 bytes do not fit in a 255 byte frame.",
		},
		{
			name: "asm call",
			body: `[{kind: asm, code: [{op: callk, args: [Printf, 300]}]}]`,
			want: "Too many parameters for 'Printf': 300 bytes do not fit in a 255 byte frame.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := compileSource(t, "name: frames\nprocedures:\n  - name: foo\n    body: "+tt.body+"\n")
			if diff := cmp.Diff([]string{tt.want}, messages(res)); diff != "" {
				t.Errorf("diagnostics mismatch (-want +got):\n%s", diff)
			}
		})
	}

	// 127個なら収まる
	ok := strings.TrimSuffix(strings.Repeat("1, ", 127), ", ")
	res := compileSource(t, "name: frames\nprocedures:\n  - name: foo\n    body: [{kind: call, name: Printf, args: ["+ok+"]}]\n")
	if res.HasErrors() {
		t.Errorf("254 byte frame rejected: %v", messages(res))
	}
}

func TestIndexedCompoundAssign(t *testing.T) {
	res := compileExec(t)
	enc, _ := codegen.LookupEncoding("")
	img, err := codegen.Assemble(res.Program, res.Strings, enc)
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	m := vm.New(img.Bytes, vm.Options{Locals: []uint16{0, 0, 5, 0}})
	got, err := m.Run(context.Background(), res.Procedures["bump"], 2)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got != 8 || m.Locals[2] != 8 {
		t.Errorf("bump(2) = %d, arr = %v", got, m.Locals)
	}
	if diff := cmp.Diff([]uint16{0, 0, 8, 0}, m.Locals); diff != "" {
		t.Errorf("locals (-want +got):\n%s", diff)
	}
}

func TestExecutionStackOverflowWithoutRoom(t *testing.T) {
	res := compileExec(t)
	enc, _ := codegen.LookupEncoding("")
	img, err := codegen.Assemble(res.Program, res.Strings, enc)
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	m := vm.New(img.Bytes, vm.Options{MaxStack: 3})
	_, err = m.Run(context.Background(), res.Procedures["cycle"], 9)
	var rerr *vm.RuntimeError
	if !errors.As(err, &rerr) || rerr.Type != vm.ErrorStackOverflow {
		t.Errorf("error = %v, want stack overflow", err)
	}
}

func TestCompileIsDeterministic(t *testing.T) {
	a := compileExec(t)
	b := compileExec(t)
	var la, lb []string
	for _, in := range a.Program.Instructions {
		la = append(la, in.String())
	}
	for _, in := range b.Program.Instructions {
		lb = append(lb, in.String())
	}
	if diff := cmp.Diff(la, lb); diff != "" {
		t.Errorf("listings differ (-first +second):\n%s", diff)
	}
	if a.Program.Size != b.Program.Size {
		t.Errorf("sizes differ: %d vs %d", a.Program.Size, b.Program.Size)
	}
	if a.Code.HasDanglingBranches() {
		t.Error("dangling branches left after compile")
	}
	if a.Rejected() {
		t.Errorf("internal diagnostics: %v", messages(a))
	}
}

func TestCallKinds(t *testing.T) {
	ctrl := gomock.NewController(t)
	db := NewMockDatabase(ctrl)

	db.EXPECT().Kernel("Kern").Return(uint16(4), true).AnyTimes()
	db.EXPECT().Procedure("MainProc").Return(&symbols.Procedure{Name: "MainProc", Script: 0, Index: 3, ReturnType: types.Any}, true).AnyTimes()
	db.EXPECT().Procedure("ExtProc").Return(&symbols.Procedure{Name: "ExtProc", Script: 12, Index: 1, ReturnType: types.Any}, true).AnyTimes()
	db.EXPECT().ScriptName(uint16(0)).Return("Main", true).AnyTimes()
	db.EXPECT().ScriptName(uint16(12)).Return("Ext", true).AnyTimes()
	db.EXPECT().NextSpecies().Return(uint16(10)).AnyTimes()

	db.EXPECT().Kernel(gomock.Any()).Return(uint16(0), false).AnyTimes()
	db.EXPECT().Procedure(gomock.Any()).Return(nil, false).AnyTimes()
	db.EXPECT().ScriptName(gomock.Any()).Return("", false).AnyTimes()
	db.EXPECT().Selector(gomock.Any()).Return(uint16(0), false).AnyTimes()
	db.EXPECT().SelectorName(gomock.Any()).Return("", false).AnyTimes()
	db.EXPECT().Class(gomock.Any()).Return(nil, false).AnyTimes()
	db.EXPECT().ClassBySpecies(gomock.Any()).Return(nil, false).AnyTimes()
	db.EXPECT().Define(gomock.Any()).Return(uint16(0), false).AnyTimes()
	db.EXPECT().Global(gomock.Any()).Return(nil, false).AnyTimes()
	db.EXPECT().Instance(gomock.Any()).Return(nil, false).AnyTimes()

	tests := []struct {
		call string
		want string
	}{
		{"Kern", "callk $4 $0"},
		{"MainProc", "callb $3 $0"},
		{"ExtProc", "calle $c $1 $0"},
	}
	for _, tt := range tests {
		t.Run(tt.call, func(t *testing.T) {
			script := &ast.Script{Number: 5, Name: "calls", Uses: []string{"Main", "Ext"}, Procedures: []*ast.Procedure{{Function: ast.Function{
				Name: "foo",
				Body: []ast.Expr{&ast.Call{Name: tt.call}},
			}}}}
			res := New(db, Options{}).Compile(script)
			if res.HasErrors() {
				t.Fatalf("diagnostics: %v", messages(res))
			}
			want := []string{"push0", tt.want, "ret"}
			if diff := cmp.Diff(want, listing(t, res, "foo")); diff != "" {
				t.Errorf("listing mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
