package codegen

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/zurustar/scic/pkg/opcode"
)

func ops(c *Code) []string {
	var out []string
	c.Each(func(_ Pos, in Instruction) { out = append(out, in.Op.String()) })
	return out
}

func TestInsertionPoint(t *testing.T) {
	c := New()
	a := c.Emit(opcode.PUSH0)
	b := c.Emit(opcode.SEND, 0)

	c.PushInsertionPoint(b)
	if c.Last() != a {
		t.Errorf("Last() with insertion point = %d, want %d", c.Last(), a)
	}
	c.Emit(opcode.PUSH1)
	c.Emit(opcode.PUSH2)
	c.PopInsertionPoint()
	c.Emit(opcode.RET)

	want := []string{"push0", "push1", "push2", "send", "ret"}
	if diff := cmp.Diff(want, ops(c)); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
	// handles stay valid after insertion
	if c.At(b).Op != opcode.SEND || c.At(a).Op != opcode.PUSH0 {
		t.Error("handles moved")
	}
}

func TestBlockPatchesNextInstruction(t *testing.T) {
	c := New()
	fail := c.EnterBlock(Failure)
	j := fail.Jump(opcode.BNT)
	c.Emit(opcode.PUSH1)
	if !c.HasDanglingBranches() {
		t.Error("open block with jumps should dangle")
	}
	fail.Leave()
	fail.Leave() // no-op
	if !c.HasDanglingBranches() {
		t.Error("jump waiting for next instruction should dangle")
	}
	target := c.Emit(opcode.RET)
	if c.HasDanglingBranches() {
		t.Error("jump should be resolved")
	}
	if c.At(j).Target != target {
		t.Errorf("target = %d, want %d", c.At(j).Target, target)
	}

	prog, err := c.Finalize()
	if err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
	// bnt(3) push1(1) ret: offset from end of bnt to ret is 1
	if got := prog.Instructions[0].Operands[0]; got != 1 {
		t.Errorf("branch offset = %d, want 1", got)
	}
}

func TestBackwardJump(t *testing.T) {
	c := New()
	top := c.Emit(opcode.PUSH0)
	c.Emit(opcode.TOSS)
	c.JumpTo(opcode.JMP, top)
	prog, err := c.Finalize()
	if err != nil {
		t.Fatal(err)
	}
	// jmp at 2, size 3, next = 5, target 0
	if got := int16(prog.Instructions[2].Operands[0]); got != -5 {
		t.Errorf("backward offset = %d, want -5", got)
	}
}

func TestBlockLevels(t *testing.T) {
	c := New()
	outer := c.EnterBlock(Break)
	inner := c.EnterBlock(Break)
	j2, ok := c.Jump(opcode.JMP, Break, 2)
	if !ok {
		t.Fatal("level 2 should exist")
	}
	if _, ok := c.Jump(opcode.JMP, Break, 3); ok {
		t.Error("level 3 should not exist")
	}
	if !c.InBlock(Break, 2) || c.InBlock(Break, 3) {
		t.Error("InBlock levels wrong")
	}
	inner.Leave()
	innerEnd := c.Emit(opcode.PUSH0)
	outer.Leave()
	outerEnd := c.Emit(opcode.RET)
	if c.At(j2).Target != outerEnd || c.At(j2).Target == innerEnd {
		t.Errorf("level-2 break targets %d, want %d", c.At(j2).Target, outerEnd)
	}
}

func TestLeaveOutOfOrderPanics(t *testing.T) {
	c := New()
	outer := c.EnterBlock(Success)
	c.EnterBlock(Success)
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	outer.Leave()
}

func TestContinueFrames(t *testing.T) {
	c := New()
	if _, err := c.Continue(1); !errors.Is(err, ErrNotInLoop) {
		t.Errorf("Continue outside loop err = %v", err)
	}

	test := c.Emit(opcode.PUSH0)
	outer := c.EnterContinueFrame(test)
	inner := c.EnterForwardContinueFrame()
	j1, err := c.Continue(1)
	if err != nil {
		t.Fatal(err)
	}
	j2, err := c.Continue(2)
	if err != nil {
		t.Fatal(err)
	}
	inner.Leave()
	looper := c.Emit(opcode.TOSS)
	outer.Leave()

	if c.At(j1).Target != looper {
		t.Errorf("level-1 continue targets %d, want looper %d", c.At(j1).Target, looper)
	}
	if c.At(j2).Target != test {
		t.Errorf("level-2 continue targets %d, want test %d", c.At(j2).Target, test)
	}

	do := c.EnterDoFrame()
	if _, err := c.Continue(1); !errors.Is(err, ErrContinueInDo) {
		t.Errorf("Continue in do err = %v", err)
	}
	do.Leave()
}

func TestFinalizeErrors(t *testing.T) {
	t.Run("placeholder", func(t *testing.T) {
		c := New()
		c.Emit(opcode.Indeterminate)
		if _, err := c.Finalize(); err == nil {
			t.Error("expected error")
		}
	})
	t.Run("dangling", func(t *testing.T) {
		c := New()
		b := c.EnterBlock(Failure)
		b.Jump(opcode.BNT)
		b.Leave()
		if _, err := c.Finalize(); err == nil {
			t.Error("expected error")
		}
	})
	t.Run("undefined local procedure", func(t *testing.T) {
		c := New()
		in := Instr(opcode.CALL, 0, 0)
		in.Reloc = Reloc{Kind: RelocLocalProc, Name: "nowhere"}
		c.Append(in)
		if _, err := c.Finalize(); err == nil {
			t.Error("expected error")
		}
	})
}

func TestLocalCall(t *testing.T) {
	c := New()
	in := Instr(opcode.CALL, 0, 0)
	in.Reloc = Reloc{Kind: RelocLocalProc, Name: "helper"}
	c.Append(in)
	c.Emit(opcode.RET)
	entry := c.Emit(opcode.LDI, 5)
	c.Emit(opcode.RET)
	c.Label("helper", entry)

	prog, err := c.Finalize()
	if err != nil {
		t.Fatal(err)
	}
	// call(4) ret(1) -> helper at 5, offset from 4 is 1
	if prog.Labels["helper"] != 5 {
		t.Errorf("helper at %d, want 5", prog.Labels["helper"])
	}
	if prog.Instructions[0].Operands[0] != 1 {
		t.Errorf("call offset = %d, want 1", prog.Instructions[0].Operands[0])
	}
	if addr, ok := prog.Address(entry); !ok || addr != 5 {
		t.Errorf("Address(entry) = %d %v", addr, ok)
	}
}

func TestAssembleStrings(t *testing.T) {
	c := New()
	table := NewStringTable()
	idx := table.Add(RelocString, "テスト")
	if table.Add(RelocString, "テスト") != idx {
		t.Error("identical strings should share an entry")
	}
	in := Instr(opcode.LOFSA, uint16(idx))
	in.Reloc = Reloc{Kind: RelocString}
	c.Append(in)
	obj := Instr(opcode.LOFSS, 0)
	obj.Reloc = Reloc{Kind: RelocObject, Name: "ego"}
	c.Append(obj)
	c.Emit(opcode.RET)

	prog, err := c.Finalize()
	if err != nil {
		t.Fatal(err)
	}
	enc, err := LookupEncoding("shift-jis")
	if err != nil {
		t.Fatal(err)
	}
	img, err := Assemble(prog, table, enc)
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	if img.CodeSize != 7 {
		t.Errorf("CodeSize = %d, want 7", img.CodeSize)
	}
	// three double-byte characters and a terminator
	if len(img.Bytes) != 7+7 {
		t.Errorf("image size = %d, want 14", len(img.Bytes))
	}
	// lofsa at 0, size 3: string at 7, offset 4
	if img.Bytes[1] != 4 || img.Bytes[2] != 0 {
		t.Errorf("lofsa operand = % x", img.Bytes[1:3])
	}
	want := []Relocation{{Offset: 4, Kind: RelocObject, Name: "ego", Index: 0}}
	if diff := cmp.Diff(want, img.Relocations); diff != "" {
		t.Errorf("relocations mismatch (-want +got):\n%s", diff)
	}

	cp437, _ := LookupEncoding("")
	if _, err := Assemble(prog, table, cp437); err == nil {
		t.Error("expected error encoding Japanese in cp437")
	}
	if _, err := LookupEncoding("ebcdic"); err == nil {
		t.Error("expected unknown encoding error")
	}
}

// 任意の挿入順でもハンドルは同じ命令を指し続ける
func TestPropertyHandlesAreStable(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("handles survive insertions", prop.ForAll(
		func(choices []int) bool {
			c := New()
			var handles []Pos
			var values []uint16
			for i, ch := range choices {
				in := Instr(opcode.PUSHI, uint16(i))
				var p Pos
				if len(handles) > 0 && ch%2 == 1 {
					p = c.InsertBefore(handles[ch%len(handles)], in)
				} else {
					p = c.Append(in)
				}
				handles = append(handles, p)
				values = append(values, uint16(i))
			}
			for i, h := range handles {
				if c.At(h).Operands[0] != values[i] {
					return false
				}
			}
			n := 0
			c.Each(func(Pos, Instruction) { n++ })
			return n == len(choices)
		},
		gen.SliceOf(gen.IntRange(0, 50)),
	))

	properties.Property("finalized addresses are contiguous", prop.ForAll(
		func(values []int) bool {
			c := New()
			for _, v := range values {
				c.Emit(opcode.VarOp(opcode.Temp, opcode.Load, false, false), uint16(v))
			}
			prog, err := c.Finalize()
			if err != nil {
				return false
			}
			addr := 0
			for _, in := range prog.Instructions {
				if int(in.Address) != addr {
					return false
				}
				addr += in.Size
			}
			return addr == prog.Size
		},
		gen.SliceOf(gen.IntRange(0, 600)),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestRetarget(t *testing.T) {
	c := New()
	fail := c.EnterBlock(Failure)
	j := fail.Jump(opcode.BNT)
	c.Emit(opcode.PUSH1)
	fail.Leave()
	send := c.Emit(opcode.SEND, 0)
	if c.At(j).Target != send {
		t.Fatalf("bnt target = %d, want %d", c.At(j).Target, send)
	}

	// selector pushes written in front of the send
	c.PushInsertionPoint(send)
	head := c.Emit(opcode.PUSHI, 6)
	c.Emit(opcode.PUSH0)
	c.PopInsertionPoint()
	c.Retarget(send, head)
	c.Emit(opcode.RET)

	if c.At(j).Target != head {
		t.Errorf("bnt target after Retarget = %d, want %d", c.At(j).Target, head)
	}
	prog, err := c.Finalize()
	if err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
	// bnt skips push1 only
	if got := prog.Instructions[0].Operands[0]; got != 1 {
		t.Errorf("bnt offset = %d, want 1", got)
	}
}
