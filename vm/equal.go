package vm

import "math"

// Equal reports whether a and b are the same dynamic value. Containers
// compare element by element (objects also compare enumeration order),
// functions compare by identity and reals compare NaN equal to NaN.
func Equal(a, b Value) bool {
	if KindOf(a) != KindOf(b) {
		return false
	}

	switch x := a.(type) {
	case nil, Null:
		return true
	case Integer:
		return x == b.(Integer)
	case Real:
		y := b.(Real)
		if math.IsNaN(float64(x)) && math.IsNaN(float64(y)) {
			return true
		}
		return x == y
	case String:
		return x == b.(String)
	case *Array:
		if x == nil {
			return true
		}
		return equalLists(&x.list, &b.(*Array).list)
	case *Program:
		if x == nil {
			return true
		}
		return equalLists(&x.list, &b.(*Program).list)
	case *Object:
		if x == nil {
			return true
		}
		y := b.(*Object)
		if x.Len() != y.Len() {
			return false
		}
		for i := range x.keys {
			if !Equal(x.keys[i], y.keys[i]) || !Equal(x.vals[i], y.vals[i]) {
				return false
			}
		}
		return true
	case *Function:
		if x == nil {
			return true
		}
		return x.id == b.(*Function).id
	case *Other:
		if x == nil {
			return true
		}
		y := b.(*Other)
		return x.Tag == y.Tag && x.Description == y.Description
	}
	return false
}

func equalLists(a, b *list) bool {
	if a.Len() != b.Len() {
		return false
	}
	for i := range a.elems {
		if !Equal(a.elems[i], b.elems[i]) {
			return false
		}
	}
	return true
}
