package bytecode

import (
	"errors"
	"fmt"

	"github.com/chazu/mpdump/pkg/dump"
	"github.com/chazu/mpdump/pkg/textbuf"
	"github.com/chazu/mpdump/vm"
)

// ErrUnknownOpcode is returned by a strict Decompiler when an instruction's
// opcode is absent or has no name in the table.
var ErrUnknownOpcode = errors.New("bytecode: unknown opcode")

// DecompileOptions configures a Decompiler. The zero value matches the plain
// Decompile function.
type DecompileOptions struct {
	// Strict turns unknown opcodes into ErrUnknownOpcode instead of a
	// placeholder name.
	Strict bool

	// MaxDepth limits instruction nesting. Zero means unlimited. Exceeding
	// it fails with dump.ErrMaxDepth.
	MaxDepth int

	// Dump hardens the rendering of literal operands.
	Dump dump.Options
}

// Decompiler renders program payloads as nested call text using a fixed
// name table.
type Decompiler struct {
	names  NameTable
	opts   DecompileOptions
	dumper *dump.Dumper
}

// NewDecompiler creates a Decompiler over names.
func NewDecompiler(names NameTable, opts DecompileOptions) *Decompiler {
	return &Decompiler{
		names:  names,
		opts:   opts,
		dumper: dump.New(opts.Dump),
	}
}

// Names returns the decompiler's name table.
func (d *Decompiler) Names() NameTable { return d.names }

// Decompile renders the instruction payload of prg. It reports false, with
// no error, when prg is not a program.
func (d *Decompiler) Decompile(prg vm.Value) (vm.String, bool, error) {
	payload, ok := Payload(prg)
	if !ok {
		return "", false, nil
	}

	buf := textbuf.New()
	if err := d.DecompileTo(buf, payload, 0); err != nil {
		return "", true, err
	}
	return buf.Finalize(), true, nil
}

// DecompileTo appends the rendering of one instruction at depth to buf. On
// error, buf holds a partial rendering.
func (d *Decompiler) DecompileTo(buf *textbuf.Buffer, ins vm.Value, depth int) error {
	return d.render(buf, ins, depth)
}

func (d *Decompiler) render(buf *textbuf.Buffer, ins vm.Value, depth int) error {
	if d.opts.MaxDepth > 0 && depth >= d.opts.MaxDepth {
		return fmt.Errorf("%w (limit %d)", dump.ErrMaxDepth, d.opts.MaxDepth)
	}

	elems := elements(ins)
	var head vm.Value
	if len(elems) > 0 {
		head = elems[0]
	}
	op, numeric := toOpcode(head)

	buf.AppendIndent(depth)
	if err := d.name(buf, head, op, numeric); err != nil {
		return err
	}
	buf.AppendRune('(')

	// Names need an exact opcode, but the form follows the truncated
	// value: 1.5 is compound, and an absent or non-numeric head is literal.
	if Opcode(ival(head)).IsLiteral() {
		var operand vm.Value
		if len(elems) > 1 {
			operand = elems[1]
		}
		if err := d.dumper.DumpTo(buf, operand, dump.InlineDepth); err != nil {
			return err
		}
		buf.AppendRune(')')
		return nil
	}

	buf.Append("\n")
	operands := elems[1:]
	for i, sub := range operands {
		if i > 0 {
			buf.Append(",\n")
		}
		if err := d.render(buf, sub, depth+1); err != nil {
			return err
		}
	}
	if len(operands) > 0 {
		buf.Append("\n")
	}
	buf.AppendIndent(depth)
	buf.AppendRune(')')
	return nil
}

func (d *Decompiler) name(buf *textbuf.Buffer, head vm.Value, op Opcode, numeric bool) error {
	if numeric {
		if name, ok := d.names.Name(op); ok {
			buf.Append(name)
			return nil
		}
	}

	desc := vm.Describe(head)
	if d.opts.Strict {
		return fmt.Errorf("%w: %s", ErrUnknownOpcode, desc)
	}
	dump.DumpTo(buf, vm.NewOther("opcode", "unknown opcode "+desc), dump.InlineDepth)
	return nil
}

// Decompile renders the instruction payload of prg with names. Unknown
// opcodes render as placeholders and nesting is unlimited. It reports false
// when prg is not a program.
func Decompile(prg vm.Value, names NameTable) (vm.String, bool) {
	s, ok, _ := NewDecompiler(names, DecompileOptions{}).Decompile(prg)
	return s, ok
}

// DecompileProgram is Decompile with a name table freshly inverted from the
// default registry.
func DecompileProgram(prg vm.Value) (vm.String, bool) {
	return Decompile(prg, Default().NameTable())
}
