// Package dump renders dynamic values as nested, re-readable literal text.
//
// Output shape:
//
//	NULL                          null
//	42  0.5                       integers and reals, canonical form
//	"a\tb\x{e9}"                  strings, escaped
//	[\n  1,\n  2\n]               arrays and programs
//	{\n  value => key\n}          objects, value first
//	bincall('<identity>')         functions
//	NULL /* description */        anything else
//
// Each nesting level is indented by two spaces. A value rendered at depth 0
// is a standalone statement and is followed by ";\n". A negative depth, such
// as InlineDepth, renders the value inline: no terminator and no
// indentation, for embedding inside other output.
package dump

import (
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/chazu/mpdump/pkg/textbuf"
	"github.com/chazu/mpdump/vm"
)

// InlineDepth is the depth sentinel for values embedded in other output.
const InlineDepth = -1000

const terminator = ";\n"

var (
	// ErrMaxDepth is returned when a value nests deeper than Options.MaxDepth.
	ErrMaxDepth = errors.New("dump: maximum nesting depth exceeded")

	// ErrCycle is returned when Options.DetectCycles is set and a container
	// contains itself.
	ErrCycle = errors.New("dump: value contains itself")
)

// Options hardens the dumper against hostile value graphs. The zero Options
// reproduces the unguarded behavior: no depth limit and no cycle check, so a
// cyclic or extremely deep value exhausts the goroutine stack.
type Options struct {
	// MaxDepth limits container nesting. Zero means unlimited.
	MaxDepth int

	// DetectCycles makes the dumper fail with ErrCycle instead of recursing
	// forever when a container is reachable from itself.
	DetectCycles bool
}

// Dumper renders values with a fixed set of Options. A Dumper holds no
// per-call state and may be shared between goroutines.
type Dumper struct {
	opts Options
}

// New creates a Dumper.
func New(opts Options) *Dumper {
	return &Dumper{opts: opts}
}

// Options returns the dumper's options.
func (d *Dumper) Options() Options { return d.opts }

// Dump renders v as a top-level statement.
func (d *Dumper) Dump(v vm.Value) (vm.String, error) {
	return d.render(v, 0)
}

// DumpInline renders v without a statement terminator.
func (d *Dumper) DumpInline(v vm.Value) (vm.String, error) {
	return d.render(v, InlineDepth)
}

func (d *Dumper) render(v vm.Value, depth int) (vm.String, error) {
	buf := textbuf.New()
	if err := d.DumpTo(buf, v, depth); err != nil {
		return "", err
	}
	return buf.Finalize(), nil
}

// DumpTo appends the rendering of v at the given depth to buf. On error,
// buf holds a partial rendering.
func (d *Dumper) DumpTo(buf *textbuf.Buffer, v vm.Value, depth int) error {
	w := &walker{buf: buf, opts: d.opts}
	if d.opts.DetectCycles {
		w.path = make(map[vm.Value]struct{})
	}
	return w.value(v, depth)
}

// Dump renders v as a top-level statement with no hardening.
func Dump(v vm.Value) vm.String {
	s, _ := New(Options{}).Dump(v)
	return s
}

// DumpInline renders v inline with no hardening.
func DumpInline(v vm.Value) vm.String {
	s, _ := New(Options{}).DumpInline(v)
	return s
}

// DumpTo appends the rendering of v at depth to buf with no hardening.
func DumpTo(buf *textbuf.Buffer, v vm.Value, depth int) {
	_ = New(Options{}).DumpTo(buf, v, depth)
}

// ---------------------------------------------------------------------------
// Walker
// ---------------------------------------------------------------------------

// walker carries the state of one render call.
type walker struct {
	buf     *textbuf.Buffer
	opts    Options
	nesting int
	path    map[vm.Value]struct{}
}

func (w *walker) value(v vm.Value, depth int) error {
	var err error

	switch x := v.(type) {
	case nil, vm.Null:
		w.buf.Append("NULL")
	case vm.Integer, vm.Real:
		w.buf.Append(x.String())
	case vm.String:
		w.buf.Append(Quote(string(x)))
	case *vm.Array:
		if x == nil {
			w.buf.Append("NULL")
			break
		}
		err = w.sequence(x, x.Len(), x.All(), depth)
	case *vm.Program:
		if x == nil {
			w.buf.Append("NULL")
			break
		}
		err = w.sequence(x, x.Len(), x.All(), depth)
	case *vm.Object:
		if x == nil {
			w.buf.Append("NULL")
			break
		}
		err = w.object(x, depth)
	case *vm.Function:
		if x == nil {
			w.buf.Append("NULL")
			break
		}
		w.buf.Append("bincall('" + x.Identity() + "')")
	default:
		w.other(v)
	}
	if err != nil {
		return err
	}

	if depth == 0 {
		w.buf.Append(terminator)
	}
	return nil
}

func (w *walker) sequence(ref vm.Value, n int, elems iter.Seq2[int, vm.Value], depth int) error {
	if err := w.enter(ref); err != nil {
		return err
	}
	defer w.leave(ref)

	w.buf.AppendRune('[')
	if n > 0 {
		w.buf.Append("\n")
		for i, e := range elems {
			if i > 0 {
				w.buf.Append(",\n")
			}
			w.buf.AppendIndent(depth + 1)
			if err := w.value(e, inner(depth)); err != nil {
				return err
			}
		}
		w.buf.Append("\n")
		w.buf.AppendIndent(depth)
	}
	w.buf.AppendRune(']')
	return nil
}

func (w *walker) object(o *vm.Object, depth int) error {
	if err := w.enter(o); err != nil {
		return err
	}
	defer w.leave(o)

	w.buf.AppendRune('{')
	if o.Len() > 0 {
		w.buf.Append("\n")
		n := 0
		for k, v := range o.All() {
			if n > 0 {
				w.buf.Append(",\n")
			}
			n++
			w.buf.AppendIndent(depth + 1)
			if err := w.value(v, inner(depth)); err != nil {
				return err
			}
			w.buf.Append(" => ")
			if err := w.value(k, inner(depth)); err != nil {
				return err
			}
		}
		w.buf.Append("\n")
		w.buf.AppendIndent(depth)
	}
	w.buf.AppendRune('}')
	return nil
}

// other renders a value of an unmodelled kind as a null literal followed by
// a comment holding its description.
func (w *walker) other(v vm.Value) {
	w.buf.Appendf("NULL /* %s */", commentSafe(vm.Describe(v)))
}

func (w *walker) enter(ref vm.Value) error {
	w.nesting++
	if w.opts.MaxDepth > 0 && w.nesting > w.opts.MaxDepth {
		return fmt.Errorf("%w (limit %d)", ErrMaxDepth, w.opts.MaxDepth)
	}
	if w.path != nil {
		if _, ok := w.path[ref]; ok {
			return fmt.Errorf("%w: %s", ErrCycle, ref.String())
		}
		w.path[ref] = struct{}{}
	}
	return nil
}

func (w *walker) leave(ref vm.Value) {
	w.nesting--
	if w.path != nil {
		delete(w.path, ref)
	}
}

// inner returns the depth for the elements of a container rendered at depth.
// Inline rendering stays inline all the way down.
func inner(depth int) int {
	if depth < 0 {
		return depth
	}
	return depth + 1
}

// commentSafe keeps a description from terminating the surrounding comment.
func commentSafe(s string) string {
	return strings.ReplaceAll(s, "*/", "*\\/")
}
