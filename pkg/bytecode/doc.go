// Package bytecode names and renders compiled program trees.
//
// A compiled program is a *vm.Program whose element 0 holds metadata and
// whose element 1 holds the instruction payload. Every instruction is an
// ordered container:
//
//	[opcode, operand...]
//
// The opcode is an Integer. Opcode 0 (LITERAL) is reserved: its single
// operand is a value, not a sub-instruction. All other opcodes take
// sub-instructions as operands.
//
// # Names
//
// The Registry maps symbolic names to opcode identifiers, which is the
// direction a compiler needs. Decompilation needs the inverse, so each
// decompile call takes an immutable NameTable snapshot of a registry and
// passes it through the walk. Default returns the process-wide registry,
// seeded with the scripting language's instruction set.
//
// # Decompiling
//
// Decompile turns the payload back into nested call syntax:
//
//	MUL(
//	  ADD(
//	    LITERAL(1),
//	    LITERAL(2)
//	  ),
//	  LITERAL(3)
//	)
//
// Literal operands are rendered inline by package dump. The output is
// meant for people and tests, and is stable across runs.
//
// An opcode missing from the name table renders as the commented null
// placeholder NULL /* unknown opcode N */, unless the Decompiler is strict,
// in which case the call fails with ErrUnknownOpcode.
package bytecode
