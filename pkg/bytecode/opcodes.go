package bytecode

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
)

// Opcode identifies an instruction in a compiled program node. It is stored
// as an Integer in element 0 of the node.
type Opcode int64

const (
	// ========================================================================
	// Literals and sequencing
	// ========================================================================

	OpLiteral Opcode = 0 // [LITERAL, value]: the operand is the value itself
	OpMulti   Opcode = 1 // [MULTI, a, b]: evaluate a then b
	OpIMulti  Opcode = 2 // [IMULTI, a, b]: evaluate a then b, yield a

	// ========================================================================
	// Symbols and frames
	// ========================================================================

	OpSymval   Opcode = 10 // [SYMVAL, name]: value of a symbol
	OpAssign   Opcode = 11 // [ASSIGN, name, value]
	OpExec     Opcode = 12 // [EXEC, callee, args]
	OpSubframe Opcode = 13 // [SUBFRAME, body]: function-level frame
	OpBlkframe Opcode = 14 // [BLKFRAME, body]: block-level frame
	OpLocal    Opcode = 15 // [LOCAL, names]
	OpGlobal   Opcode = 16 // [GLOBAL, names]
	OpArgs     Opcode = 17 // [ARGS, names]: bind call arguments
	OpFunction Opcode = 18 // [FUNCTION, body]: anonymous function

	// ========================================================================
	// Control flow
	// ========================================================================

	OpWhile   Opcode = 20 // [WHILE, cond, body]
	OpIf      Opcode = 21 // [IF, cond, then] or [IF, cond, then, else]
	OpForeach Opcode = 22 // [FOREACH, name, iterable, body]
	OpBreak   Opcode = 23 // [BREAK]
	OpReturn  Opcode = 24 // [RETURN, value]

	// ========================================================================
	// Arithmetic
	// ========================================================================

	OpUMinus Opcode = 30
	OpAdd    Opcode = 31
	OpSub    Opcode = 32
	OpMul    Opcode = 33
	OpDiv    Opcode = 34
	OpMod    Opcode = 35
	OpPow    Opcode = 36

	// ========================================================================
	// Logic and comparison
	// ========================================================================

	OpNot   Opcode = 40
	OpAnd   Opcode = 41
	OpOr    Opcode = 42
	OpNumEq Opcode = 43
	OpNumLt Opcode = 44
	OpNumLe Opcode = 45
	OpNumGt Opcode = 46
	OpNumGe Opcode = 47

	// ========================================================================
	// Strings and bits
	// ========================================================================

	OpStrCat Opcode = 50
	OpStrEq  Opcode = 51
	OpBitAnd Opcode = 52
	OpBitOr  Opcode = 53
	OpBitXor Opcode = 54
	OpShl    Opcode = 55
	OpShr    Opcode = 56

	// ========================================================================
	// Constructors
	// ========================================================================

	OpList  Opcode = 60 // [LIST, elem...]
	OpHash  Opcode = 61 // [HASH, key, value, ...]
	OpRange Opcode = 62 // [RANGE, from, to]
)

// standardNames maps every built-in opcode to its symbolic name.
var standardNames = map[Opcode]string{
	OpLiteral: "LITERAL",
	OpMulti:   "MULTI",
	OpIMulti:  "IMULTI",

	OpSymval:   "SYMVAL",
	OpAssign:   "ASSIGN",
	OpExec:     "EXEC",
	OpSubframe: "SUBFRAME",
	OpBlkframe: "BLKFRAME",
	OpLocal:    "LOCAL",
	OpGlobal:   "GLOBAL",
	OpArgs:     "ARGS",
	OpFunction: "FUNCTION",

	OpWhile:   "WHILE",
	OpIf:      "IF",
	OpForeach: "FOREACH",
	OpBreak:   "BREAK",
	OpReturn:  "RETURN",

	OpUMinus: "UMINUS",
	OpAdd:    "ADD",
	OpSub:    "SUB",
	OpMul:    "MUL",
	OpDiv:    "DIV",
	OpMod:    "MOD",
	OpPow:    "POW",

	OpNot:   "NOT",
	OpAnd:   "AND",
	OpOr:    "OR",
	OpNumEq: "NUMEQ",
	OpNumLt: "NUMLT",
	OpNumLe: "NUMLE",
	OpNumGt: "NUMGT",
	OpNumGe: "NUMGE",

	OpStrCat: "STRCAT",
	OpStrEq:  "STREQ",
	OpBitAnd: "BITAND",
	OpBitOr:  "BITOR",
	OpBitXor: "BITXOR",
	OpShl:    "SHL",
	OpShr:    "SHR",

	OpList:  "LIST",
	OpHash:  "HASH",
	OpRange: "RANGE",
}

// String returns the built-in name of an opcode, or UNKNOWN(n) for opcodes
// outside the standard set.
func (op Opcode) String() string {
	if name, ok := standardNames[op]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", int64(op))
}

// IsLiteral reports whether op marks a literal instruction.
func (op Opcode) IsLiteral() bool {
	return op == OpLiteral
}

// AllOpcodes returns the standard opcodes in ascending order.
func AllOpcodes() []Opcode {
	return slices.Sorted(maps.Keys(standardNames))
}

// OpcodeCount returns the number of standard opcodes.
func OpcodeCount() int {
	return len(standardNames)
}

// ---------------------------------------------------------------------------
// Registry
// ---------------------------------------------------------------------------

var (
	// ErrDuplicateOpcode is returned when a name or identifier is registered
	// twice with different partners.
	ErrDuplicateOpcode = errors.New("bytecode: duplicate opcode")

	// ErrEmptyOpcodeName is returned when registering an empty name.
	ErrEmptyOpcodeName = errors.New("bytecode: empty opcode name")
)

// Registry maps symbolic opcode names to identifiers, the direction the
// compiler needs. Decompilation uses the inverse, see NameTable.
//
// A Registry is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]Opcode
	byID   map[Opcode]string
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]Opcode),
		byID:   make(map[Opcode]string),
	}
}

// NewStandardRegistry returns a Registry holding the built-in opcodes.
func NewStandardRegistry() *Registry {
	r := &Registry{
		byName: make(map[string]Opcode, OpcodeCount()),
		byID:   make(map[Opcode]string, OpcodeCount()),
	}
	for _, op := range AllOpcodes() {
		name := op.String()
		r.byName[name] = op
		r.byID[op] = name
	}
	return r
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the process-wide registry, created with the built-in
// opcodes on first use.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewStandardRegistry()
	})
	return defaultRegistry
}

// Register adds name -> op. Registering an identical pair again is a no-op;
// reusing either side with a different partner fails with
// ErrDuplicateOpcode.
func (r *Registry) Register(name string, op Opcode) error {
	if name == "" {
		return ErrEmptyOpcodeName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byName[name]; ok {
		if existing == op {
			return nil
		}
		return fmt.Errorf("%w: %s is already %d", ErrDuplicateOpcode, name, int64(existing))
	}
	if existing, ok := r.byID[op]; ok {
		return fmt.Errorf("%w: %d is already %s", ErrDuplicateOpcode, int64(op), existing)
	}

	r.byName[name] = op
	r.byID[op] = name
	return nil
}

// Lookup returns the identifier registered for name.
func (r *Registry) Lookup(name string) (Opcode, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	op, ok := r.byName[name]
	return op, ok
}

// Len returns the number of registered opcodes.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName)
}

// NameTable returns an immutable identifier -> name snapshot of the
// registry. Later registrations do not affect the returned table.
func (r *Registry) NameTable() NameTable {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return NameTable{names: maps.Clone(r.byID)}
}

// ---------------------------------------------------------------------------
// NameTable
// ---------------------------------------------------------------------------

// NameTable is a read-only mapping from opcode identifier to symbolic name.
// The zero NameTable is empty.
type NameTable struct {
	names map[Opcode]string
}

// NewNameTable builds a NameTable from a copy of names.
func NewNameTable(names map[Opcode]string) NameTable {
	return NameTable{names: maps.Clone(names)}
}

// Name returns the symbolic name of op.
func (t NameTable) Name(op Opcode) (string, bool) {
	name, ok := t.names[op]
	return name, ok
}

// Len returns the number of entries.
func (t NameTable) Len() int { return len(t.names) }

// Opcodes returns the identifiers in the table in ascending order.
func (t NameTable) Opcodes() []Opcode {
	return slices.Sorted(maps.Keys(t.names))
}
