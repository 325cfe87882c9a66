package bytecode

import (
	"errors"
	"testing"

	"github.com/chazu/mpdump/pkg/dump"
	"github.com/chazu/mpdump/pkg/textbuf"
	"github.com/chazu/mpdump/vm"
)

func program(payload vm.Value) *vm.Program {
	return NewProgram(vm.String("test.mpsl:1"), payload)
}

func decompile(t *testing.T, payload vm.Value) string {
	t.Helper()
	got, ok := DecompileProgram(program(payload))
	if !ok {
		t.Fatal("DecompileProgram reported a non-program")
	}
	return string(got)
}

func TestDecompileLiteral(t *testing.T) {
	tests := []struct {
		name    string
		payload vm.Value
		want    string
	}{
		{"integer", Lit(vm.Integer(1)), "LITERAL(1)"},
		{"real", Lit(vm.Real(2.5)), "LITERAL(2.5)"},
		{"string", Lit(vm.String("a\nb")), `LITERAL("a\nb")`},
		{"null", Lit(vm.Nil), "LITERAL(NULL)"},
		{"missing operand", vm.NewArray(vm.Integer(0)), "LITERAL(NULL)"},
		{"array operand", Lit(vm.NewArray(vm.Integer(1), vm.Integer(2))), "LITERAL([\n1,\n2\n])"},
	}

	for _, tt := range tests {
		if got := decompile(t, tt.payload); got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestDecompileCompound(t *testing.T) {
	tests := []struct {
		name    string
		payload vm.Value
		want    string
	}{
		{
			"two literals",
			Ins(OpAdd, Lit(vm.Integer(1)), Lit(vm.Integer(2))),
			"ADD(\n  LITERAL(1),\n  LITERAL(2)\n)",
		},
		{
			"nested",
			Ins(OpMul, Ins(OpAdd, Lit(vm.Integer(1)), Lit(vm.Integer(2))), Lit(vm.Integer(3))),
			"MUL(\n  ADD(\n    LITERAL(1),\n    LITERAL(2)\n  ),\n  LITERAL(3)\n)",
		},
		{
			"no operands",
			Ins(OpBreak),
			"BREAK(\n)",
		},
		{
			"no operands nested",
			Ins(OpMulti, Ins(OpBreak)),
			"MULTI(\n  BREAK(\n  )\n)",
		},
		{
			"real opcode",
			vm.NewArray(vm.Real(31), Lit(vm.Integer(1))),
			"ADD(\n  LITERAL(1)\n)",
		},
		{
			"fractional opcode keeps every operand",
			vm.NewArray(vm.Real(1.5), Lit(vm.Integer(7)), Lit(vm.Integer(8))),
			"NULL /* unknown opcode 1.5 */(\n  LITERAL(7),\n  LITERAL(8)\n)",
		},
		{
			"fraction below one is a literal",
			vm.NewArray(vm.Real(0.5), vm.Integer(7), vm.Integer(8)),
			"NULL /* unknown opcode 0.5 */(7)",
		},
		{
			"program node as instruction",
			vm.NewProgram(vm.Integer(OpReturn), Lit(vm.String("x"))),
			"RETURN(\n  LITERAL(\"x\")\n)",
		},
	}

	for _, tt := range tests {
		if got := decompile(t, tt.payload); got != tt.want {
			t.Errorf("%s: got\n%s\nwant\n%s", tt.name, got, tt.want)
		}
	}
}

func TestDecompileCustomNames(t *testing.T) {
	names := NewNameTable(map[Opcode]string{0: "NUMBER", 31: "ADD"})
	prg := program(Ins(OpAdd, Lit(vm.Integer(1)), Lit(vm.Integer(2))))

	got, ok := Decompile(prg, names)
	if !ok {
		t.Fatal("Decompile reported a non-program")
	}
	if want := "ADD(\n  NUMBER(1),\n  NUMBER(2)\n)"; string(got) != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestDecompileNonProgram(t *testing.T) {
	var nilProgram *vm.Program
	inputs := []vm.Value{
		nil,
		vm.Nil,
		vm.Integer(0),
		vm.String("ADD"),
		vm.NewArray(vm.Integer(0), Lit(vm.Integer(1))),
		vm.NewObject(),
		vm.NewFunction("f"),
		vm.NewOther("x", "y"),
		nilProgram,
	}

	for _, in := range inputs {
		if got, ok := DecompileProgram(in); ok || got != "" {
			t.Errorf("DecompileProgram(%v) = %q, %v; want absent", in, got, ok)
		}
	}
}

func TestDecompileIgnoresMetadata(t *testing.T) {
	payload := Ins(OpNot, Lit(vm.Integer(0)))
	a, _ := DecompileProgram(NewProgram(vm.String("a.mpsl:1"), payload))
	b, _ := DecompileProgram(NewProgram(vm.NewArray(vm.Integer(7)), payload))
	if a != b {
		t.Errorf("metadata changed output: %q vs %q", a, b)
	}
}

// ---------------------------------------------------------------------------
// Unknown and malformed instructions
// ---------------------------------------------------------------------------

func TestDecompileUnknownOpcode(t *testing.T) {
	got := decompile(t, Ins(Opcode(99), Lit(vm.Integer(1))))
	want := "NULL /* unknown opcode 99 */(\n  LITERAL(1)\n)"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestDecompileMalformedInstruction(t *testing.T) {
	want := "NULL /* unknown opcode NULL */(NULL)"
	tests := []struct {
		name    string
		payload vm.Value
	}{
		{"empty node", vm.NewArray()},
		{"scalar node", vm.Integer(5)},
		{"missing payload", nil},
	}

	for _, tt := range tests {
		if got := decompile(t, tt.payload); got != want {
			t.Errorf("%s: got %q, want %q", tt.name, got, want)
		}
	}

	if got, ok := DecompileProgram(vm.NewProgram(vm.Integer(0))); !ok || string(got) != want {
		t.Errorf("program without payload: got %q, %v", got, ok)
	}
}

func TestStrictDecompiler(t *testing.T) {
	d := NewDecompiler(Default().NameTable(), DecompileOptions{Strict: true})

	if _, _, err := d.Decompile(program(Ins(OpAdd, Lit(vm.Integer(1))))); err != nil {
		t.Errorf("known opcodes: %v", err)
	}

	_, ok, err := d.Decompile(program(Ins(OpAdd, Ins(Opcode(99)))))
	if !ok || !errors.Is(err, ErrUnknownOpcode) {
		t.Errorf("ok = %v, err = %v; want true, ErrUnknownOpcode", ok, err)
	}

	if _, _, err := d.Decompile(program(vm.NewArray())); !errors.Is(err, ErrUnknownOpcode) {
		t.Errorf("empty node: err = %v, want ErrUnknownOpcode", err)
	}
}

func TestDecompilerMaxDepth(t *testing.T) {
	prg := program(Ins(OpMul, Ins(OpAdd, Lit(vm.Integer(1)), Lit(vm.Integer(2))), Lit(vm.Integer(3))))

	if _, _, err := NewDecompiler(Default().NameTable(), DecompileOptions{MaxDepth: 3}).Decompile(prg); err != nil {
		t.Errorf("limit 3: %v", err)
	}
	if _, _, err := NewDecompiler(Default().NameTable(), DecompileOptions{MaxDepth: 2}).Decompile(prg); !errors.Is(err, dump.ErrMaxDepth) {
		t.Errorf("limit 2: err = %v, want ErrMaxDepth", err)
	}
}

func TestDecompilerHardensLiterals(t *testing.T) {
	cyclic := vm.NewArray()
	cyclic.Append(cyclic)

	d := NewDecompiler(Default().NameTable(), DecompileOptions{Dump: dump.Options{DetectCycles: true}})
	if _, _, err := d.Decompile(program(Lit(cyclic))); !errors.Is(err, dump.ErrCycle) {
		t.Errorf("err = %v, want ErrCycle", err)
	}
}

func TestDecompileToAppends(t *testing.T) {
	d := NewDecompiler(Default().NameTable(), DecompileOptions{})
	buf := textbuf.New()
	buf.Append("=> ")
	if err := d.DecompileTo(buf, Ins(OpUMinus, Lit(vm.Integer(4))), 1); err != nil {
		t.Fatal(err)
	}
	want := "=>   UMINUS(\n    LITERAL(4)\n  )"
	if got := string(buf.Finalize()); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestDecompileIsDeterministic(t *testing.T) {
	obj := vm.NewObject()
	obj.Set(vm.String("b"), vm.Integer(2))
	obj.Set(vm.String("a"), vm.Integer(1))
	prg := program(Ins(OpMulti,
		Ins(OpAssign, Lit(vm.String("x")), Lit(obj)),
		Ins(OpIf, Ins(OpNumLt, Lit(vm.Real(0.5)), Lit(vm.Integer(1))), Ins(OpBreak)),
	))

	first, _ := DecompileProgram(prg)
	for i := 0; i < 10; i++ {
		if again, _ := DecompileProgram(prg); again != first {
			t.Fatalf("run %d differs", i)
		}
	}

	before := program(Ins(OpMulti,
		Ins(OpAssign, Lit(vm.String("x")), Lit(obj)),
		Ins(OpIf, Ins(OpNumLt, Lit(vm.Real(0.5)), Lit(vm.Integer(1))), Ins(OpBreak)),
	))
	if !vm.Equal(prg, before) {
		t.Error("decompile modified its input")
	}
}

func TestOpcodeOf(t *testing.T) {
	if op, ok := OpcodeOf(Ins(OpAdd)); !ok || op != OpAdd {
		t.Errorf("OpcodeOf(ADD node) = %d, %v", op, ok)
	}
	if _, ok := OpcodeOf(vm.NewArray(vm.String("ADD"))); ok {
		t.Error("string opcode reported as numeric")
	}
	if _, ok := OpcodeOf(vm.NewArray(vm.Real(1.5))); ok {
		t.Error("fractional opcode reported as numeric")
	}
	if _, ok := OpcodeOf(vm.Integer(3)); ok {
		t.Error("scalar instruction reported an opcode")
	}
}
