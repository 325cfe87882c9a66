package bytecode

import (
	"math"

	"github.com/chazu/mpdump/vm"
)

// Lit builds a literal instruction carrying v.
func Lit(v vm.Value) *vm.Array {
	return vm.NewArray(vm.Integer(OpLiteral), v)
}

// Ins builds an instruction with the given sub-instructions as operands.
func Ins(op Opcode, operands ...vm.Value) *vm.Array {
	elems := make([]vm.Value, 0, len(operands)+1)
	elems = append(elems, vm.Integer(op))
	elems = append(elems, operands...)
	return vm.NewArray(elems...)
}

// NewProgram wraps an instruction payload and its metadata in a program
// node.
func NewProgram(meta, payload vm.Value) *vm.Program {
	return vm.NewProgram(meta, payload)
}

// Payload returns the instruction payload of prg, or nil when prg is not a
// program.
func Payload(prg vm.Value) (vm.Value, bool) {
	p, ok := prg.(*vm.Program)
	if !ok || p == nil {
		return nil, false
	}
	return p.At(1), true
}

// OpcodeOf extracts the opcode of an instruction. It reports false when the
// instruction has no element 0 or element 0 is not an integral number.
func OpcodeOf(ins vm.Value) (Opcode, bool) {
	elems := elements(ins)
	if len(elems) == 0 {
		return 0, false
	}
	return toOpcode(elems[0])
}

// ival reads v as an integer the way the instruction walker decides between
// the literal and compound forms: reals truncate toward zero, and anything
// absent or non-numeric reads as 0.
func ival(v vm.Value) int64 {
	switch x := v.(type) {
	case vm.Integer:
		return int64(x)
	case vm.Real:
		f := float64(x)
		switch {
		case math.IsNaN(f):
			return 0
		case f >= math.MaxInt64:
			return math.MaxInt64
		case f <= math.MinInt64:
			return math.MinInt64
		}
		return int64(f)
	}
	return 0
}

func toOpcode(v vm.Value) (Opcode, bool) {
	switch x := v.(type) {
	case vm.Integer:
		return Opcode(x), true
	case vm.Real:
		if float64(x) == float64(int64(x)) {
			return Opcode(int64(x)), true
		}
	}
	return 0, false
}

// elements returns the elements of an instruction node. Anything that is
// not an ordered container behaves as an empty node.
func elements(ins vm.Value) []vm.Value {
	switch x := ins.(type) {
	case *vm.Array:
		if x != nil {
			return x.Values()
		}
	case *vm.Program:
		if x != nil {
			return x.Values()
		}
	}
	return nil
}
