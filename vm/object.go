package vm

import (
	"fmt"
	"iter"
)

// Object is an ordered key/value collection. Keys and values are both
// dynamic values; enumeration order is insertion order, and replacing the
// value of an existing key keeps its position.
type Object struct {
	keys  []Value
	vals  []Value
	index map[string]int
}

// NewObject creates an empty Object.
func NewObject() *Object {
	return &Object{index: make(map[string]int)}
}

func (*Object) Kind() Kind       { return KindObject }
func (o *Object) String() string { return fmt.Sprintf("object(%d)", o.Len()) }
func (*Object) value()           {}

// Len returns the number of entries.
func (o *Object) Len() int { return len(o.keys) }

// Set stores v under k.
func (o *Object) Set(k, v Value) {
	if o.index == nil {
		o.index = make(map[string]int)
	}
	id := keyID(k)
	if i, ok := o.index[id]; ok {
		o.vals[i] = v
		return
	}
	o.index[id] = len(o.keys)
	o.keys = append(o.keys, k)
	o.vals = append(o.vals, v)
}

// Get returns the value stored under k.
func (o *Object) Get(k Value) (Value, bool) {
	i, ok := o.index[keyID(k)]
	if !ok {
		return nil, false
	}
	return o.vals[i], true
}

// Delete removes k, reporting whether it was present. The relative order of
// the remaining entries is unchanged.
func (o *Object) Delete(k Value) bool {
	id := keyID(k)
	i, ok := o.index[id]
	if !ok {
		return false
	}
	o.keys = append(o.keys[:i], o.keys[i+1:]...)
	o.vals = append(o.vals[:i], o.vals[i+1:]...)
	delete(o.index, id)
	for j := i; j < len(o.keys); j++ {
		o.index[keyID(o.keys[j])] = j
	}
	return true
}

// All iterates over (key, value) pairs in enumeration order.
func (o *Object) All() iter.Seq2[Value, Value] {
	return func(yield func(Value, Value) bool) {
		for i, k := range o.keys {
			if !yield(k, o.vals[i]) {
				return
			}
		}
	}
}

// Keys returns a copy of the keys in enumeration order.
func (o *Object) Keys() []Value {
	out := make([]Value, len(o.keys))
	copy(out, o.keys)
	return out
}

// keyID maps a key to its identity inside the index. Scalars and strings
// compare by kind and content; containers and functions by identity.
func keyID(k Value) string {
	switch KindOf(k) {
	case KindNull:
		return "null"
	case KindInteger, KindReal, KindString, KindOther:
		return KindOf(k).String() + ":" + k.String()
	default:
		return fmt.Sprintf("%s:%p", k.Kind(), k)
	}
}
