package vm

import (
	"fmt"
	"iter"
	"strconv"
)

// Kind identifies the shape of a dynamic Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindInteger
	KindReal
	KindString
	KindArray
	KindProgram
	KindObject
	KindFunction
	KindOther
)

var kindNames = [...]string{
	KindNull:     "null",
	KindInteger:  "integer",
	KindReal:     "real",
	KindString:   "string",
	KindArray:    "array",
	KindProgram:  "program",
	KindObject:   "object",
	KindFunction: "function",
	KindOther:    "other",
}

// String returns the lower-case name of the kind.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Value is a dynamic runtime value.
//
// The set of implementations is closed: Null, Integer, Real, String, *Array,
// *Program, *Object, *Function and *Other. A nil Value is treated as Null
// everywhere, the same way the runtime treats a missing value.
type Value interface {
	// Kind returns the value's type tag.
	Kind() Kind

	// String returns the value's own textual description. For scalars this
	// is the canonical textual form.
	String() string

	value()
}

// KindOf returns the kind of v, reporting KindNull for a nil Value and for
// typed nil container pointers.
func KindOf(v Value) Kind {
	if isNil(v) {
		return KindNull
	}
	return v.Kind()
}

// Describe returns the textual description of v, treating nil as Null.
func Describe(v Value) string {
	if isNil(v) {
		return Nil.String()
	}
	return v.String()
}

func isNil(v Value) bool {
	switch x := v.(type) {
	case nil:
		return true
	case *Array:
		return x == nil
	case *Program:
		return x == nil
	case *Object:
		return x == nil
	case *Function:
		return x == nil
	case *Other:
		return x == nil
	}
	return false
}

// ---------------------------------------------------------------------------
// Scalars
// ---------------------------------------------------------------------------

// Null is the absent value.
type Null struct{}

// Nil is the canonical Null value.
var Nil Value = Null{}

func (Null) Kind() Kind     { return KindNull }
func (Null) String() string { return "NULL" }
func (Null) value()         {}

// Integer is a signed 64-bit integer value.
type Integer int64

func (Integer) Kind() Kind       { return KindInteger }
func (i Integer) String() string { return strconv.FormatInt(int64(i), 10) }
func (Integer) value()           {}

// Real is a floating point value.
type Real float64

func (Real) Kind() Kind { return KindReal }

// String returns the shortest decimal form that reads back as the same
// float64, without an exponent. Integral reals print without a fraction.
func (r Real) String() string { return strconv.FormatFloat(float64(r), 'f', -1, 64) }
func (Real) value()           {}

// String is an immutable character sequence.
type String string

func (String) Kind() Kind       { return KindString }
func (s String) String() string { return string(s) }
func (String) value()           {}

// ---------------------------------------------------------------------------
// Sequences
// ---------------------------------------------------------------------------

// list is the ordered storage shared by Array and Program.
type list struct {
	elems []Value
}

// Len returns the number of elements.
func (l *list) Len() int { return len(l.elems) }

// At returns the element at index i, or nil if i is out of range.
func (l *list) At(i int) Value {
	if i < 0 || i >= len(l.elems) {
		return nil
	}
	return l.elems[i]
}

// All iterates over (index, element) pairs in order.
func (l *list) All() iter.Seq2[int, Value] {
	return func(yield func(int, Value) bool) {
		for i, e := range l.elems {
			if !yield(i, e) {
				return
			}
		}
	}
}

// Append adds elements at the end.
func (l *list) Append(vs ...Value) {
	l.elems = append(l.elems, vs...)
}

// Values returns a copy of the elements.
func (l *list) Values() []Value {
	out := make([]Value, len(l.elems))
	copy(out, l.elems)
	return out
}

// Array is an ordered sequence of values.
type Array struct {
	list
}

// NewArray creates an Array holding elems.
func NewArray(elems ...Value) *Array {
	a := &Array{}
	a.Append(elems...)
	return a
}

func (*Array) Kind() Kind       { return KindArray }
func (a *Array) String() string { return fmt.Sprintf("array(%d)", a.Len()) }
func (*Array) value()           {}

// Program is a compiled instruction node. Element 0 is the opcode identifier
// and the remaining elements are operands or sub-nodes. A top-level program
// keeps metadata in element 0 and its instruction payload in element 1.
//
// Program is structurally identical to Array but carries its own tag.
type Program struct {
	list
}

// NewProgram creates a Program holding elems.
func NewProgram(elems ...Value) *Program {
	p := &Program{}
	p.Append(elems...)
	return p
}

func (*Program) Kind() Kind       { return KindProgram }
func (p *Program) String() string { return fmt.Sprintf("program(%d)", p.Len()) }
func (*Program) value()           {}

// ---------------------------------------------------------------------------
// Other
// ---------------------------------------------------------------------------

// Other stands for a value whose tag this package does not model. It keeps
// the foreign tag name and a free-form description so it can still be shown.
type Other struct {
	Tag         string
	Description string
}

// NewOther creates an Other value.
func NewOther(tag, description string) *Other {
	return &Other{Tag: tag, Description: description}
}

func (*Other) Kind() Kind { return KindOther }

func (o *Other) String() string {
	if o.Description == "" {
		return o.Tag
	}
	return o.Description
}

func (*Other) value() {}
