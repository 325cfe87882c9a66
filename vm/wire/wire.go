// Package wire encodes dynamic values as CBOR.
//
// Scalars and arrays map onto their native CBOR types. The kinds CBOR has no
// type for travel as tagged arrays in the private tag range:
//
//	28160  program   [elem...]
//	28161  object    [[key, value]...]
//	28162  function  [identity, name]
//	28163  other     [tag, description]
//
// Objects are not CBOR maps because their keys are arbitrary values and
// their enumeration order matters. Encoding is canonical, so equal values
// encode to identical bytes.
//
// Decoding accepts any well-formed CBOR, not only what Marshal produces.
// Booleans become Integer 1 or 0, byte strings become String, and integers
// outside the int64 range become Real. Plain CBOR maps become objects with
// keys in canonical encoding order. Unknown tags become Other.
package wire

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"math/big"
	"slices"
	"time"

	"github.com/chazu/mpdump/vm"
	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

// Private CBOR tags for kinds without a native CBOR representation.
const (
	TagProgram  uint64 = 28160
	TagObject   uint64 = 28161
	TagFunction uint64 = 28162
	TagOther    uint64 = 28163
)

// MaxNestedLevels bounds the CBOR nesting accepted in either direction. An
// object costs three levels (tag, pair list, pair), programs, functions and
// others two, arrays one.
const MaxNestedLevels = 4096

var (
	// ErrTooDeep is returned when a value nests deeper than MaxNestedLevels.
	// A value that contains itself always ends here.
	ErrTooDeep = errors.New("wire: value nested too deeply")

	// ErrMalformed is returned when a private tag carries content of the
	// wrong shape.
	ErrMalformed = errors.New("wire: malformed tagged value")
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("wire: failed to create CBOR enc mode: %v", err))
	}
	encMode = em

	dm, err := cbor.DecOptions{MaxNestedLevels: MaxNestedLevels}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("wire: failed to create CBOR dec mode: %v", err))
	}
	decMode = dm
}

// Marshal serializes any CBOR-encodable Go value, including structs holding
// an Envelope, in canonical form.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal deserializes CBOR data into v.
func Unmarshal(data []byte, v any) error {
	if err := decMode.Unmarshal(data, v); err != nil {
		return fmt.Errorf("wire: unmarshal: %w", err)
	}
	return nil
}

// MarshalValue serializes a dynamic value.
func MarshalValue(v vm.Value) ([]byte, error) {
	raw, err := toRaw(v, 0)
	if err != nil {
		return nil, err
	}
	return encMode.Marshal(raw)
}

// UnmarshalValue deserializes a dynamic value.
func UnmarshalValue(data []byte) (vm.Value, error) {
	var raw any
	if err := decMode.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("wire: unmarshal value: %w", err)
	}
	return fromRaw(raw)
}

// Envelope carries a dynamic value inside other CBOR-encoded structures.
type Envelope struct {
	Value vm.Value
}

// MarshalCBOR implements cbor.Marshaler.
func (e Envelope) MarshalCBOR() ([]byte, error) {
	return MarshalValue(e.Value)
}

// UnmarshalCBOR implements cbor.Unmarshaler.
func (e *Envelope) UnmarshalCBOR(data []byte) error {
	v, err := UnmarshalValue(data)
	if err != nil {
		return err
	}
	e.Value = v
	return nil
}

// ---------------------------------------------------------------------------
// Encoding
// ---------------------------------------------------------------------------

func toRaw(v vm.Value, level int) (any, error) {
	if level > MaxNestedLevels {
		return nil, fmt.Errorf("%w (limit %d)", ErrTooDeep, MaxNestedLevels)
	}

	switch x := v.(type) {
	case nil, vm.Null:
		return nil, nil
	case vm.Integer:
		return int64(x), nil
	case vm.Real:
		return float64(x), nil
	case vm.String:
		return string(x), nil
	case *vm.Array:
		if x == nil {
			return nil, nil
		}
		return rawList(x.Values(), level+1)
	case *vm.Program:
		if x == nil {
			return nil, nil
		}
		elems, err := rawList(x.Values(), level+2)
		if err != nil {
			return nil, err
		}
		return cbor.Tag{Number: TagProgram, Content: elems}, nil
	case *vm.Object:
		if x == nil {
			return nil, nil
		}
		pairs := make([]any, 0, x.Len())
		for k, val := range x.All() {
			rk, err := toRaw(k, level+3)
			if err != nil {
				return nil, err
			}
			rv, err := toRaw(val, level+3)
			if err != nil {
				return nil, err
			}
			pairs = append(pairs, []any{rk, rv})
		}
		return cbor.Tag{Number: TagObject, Content: pairs}, nil
	case *vm.Function:
		if x == nil {
			return nil, nil
		}
		return cbor.Tag{Number: TagFunction, Content: []any{x.Identity(), x.Name()}}, nil
	case *vm.Other:
		if x == nil {
			return nil, nil
		}
		return cbor.Tag{Number: TagOther, Content: []any{x.Tag, x.Description}}, nil
	default:
		return cbor.Tag{Number: TagOther, Content: []any{fmt.Sprintf("%T", v), vm.Describe(v)}}, nil
	}
}

func rawList(elems []vm.Value, level int) ([]any, error) {
	out := make([]any, len(elems))
	for i, e := range elems {
		r, err := toRaw(e, level)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Decoding
// ---------------------------------------------------------------------------

func fromRaw(raw any) (vm.Value, error) {
	switch x := raw.(type) {
	case nil:
		return vm.Nil, nil
	case bool:
		if x {
			return vm.Integer(1), nil
		}
		return vm.Integer(0), nil
	case uint64:
		if x > math.MaxInt64 {
			return vm.Real(float64(x)), nil
		}
		return vm.Integer(int64(x)), nil
	case int64:
		return vm.Integer(x), nil
	case float32:
		return vm.Real(float64(x)), nil
	case float64:
		return vm.Real(x), nil
	case big.Int:
		f, _ := new(big.Float).SetInt(&x).Float64()
		return vm.Real(f), nil
	case *big.Int:
		f, _ := new(big.Float).SetInt(x).Float64()
		return vm.Real(f), nil
	case string:
		return vm.String(x), nil
	case []byte:
		return vm.String(x), nil
	case time.Time:
		return vm.String(x.Format(time.RFC3339Nano)), nil
	case []any:
		elems, err := valueList(x)
		if err != nil {
			return nil, err
		}
		return vm.NewArray(elems...), nil
	case map[any]any:
		return fromMap(x)
	case map[string]any:
		m := make(map[any]any, len(x))
		for k, v := range x {
			m[k] = v
		}
		return fromMap(m)
	case cbor.Tag:
		return fromTag(x)
	default:
		return vm.NewOther(fmt.Sprintf("%T", raw), fmt.Sprint(raw)), nil
	}
}

func valueList(raw []any) ([]vm.Value, error) {
	out := make([]vm.Value, len(raw))
	for i, r := range raw {
		v, err := fromRaw(r)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// fromMap builds an object from a plain CBOR map. Go maps have no order, so
// entries are sorted by the canonical encoding of their keys.
func fromMap(m map[any]any) (vm.Value, error) {
	type entry struct {
		enc      []byte
		key, val vm.Value
	}
	entries := make([]entry, 0, len(m))
	for rk, rv := range m {
		k, err := fromRaw(rk)
		if err != nil {
			return nil, err
		}
		v, err := fromRaw(rv)
		if err != nil {
			return nil, err
		}
		enc, err := MarshalValue(k)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry{enc: enc, key: k, val: v})
	}
	slices.SortFunc(entries, func(a, b entry) int {
		if len(a.enc) != len(b.enc) {
			return len(a.enc) - len(b.enc)
		}
		return bytes.Compare(a.enc, b.enc)
	})

	o := vm.NewObject()
	for _, e := range entries {
		o.Set(e.key, e.val)
	}
	return o, nil
}

func fromTag(t cbor.Tag) (vm.Value, error) {
	switch t.Number {
	case TagProgram:
		raw, ok := t.Content.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: program content is %T", ErrMalformed, t.Content)
		}
		elems, err := valueList(raw)
		if err != nil {
			return nil, err
		}
		return vm.NewProgram(elems...), nil

	case TagObject:
		raw, ok := t.Content.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: object content is %T", ErrMalformed, t.Content)
		}
		o := vm.NewObject()
		for i, p := range raw {
			pair, ok := p.([]any)
			if !ok || len(pair) != 2 {
				return nil, fmt.Errorf("%w: object entry %d is not a pair", ErrMalformed, i)
			}
			k, err := fromRaw(pair[0])
			if err != nil {
				return nil, err
			}
			v, err := fromRaw(pair[1])
			if err != nil {
				return nil, err
			}
			o.Set(k, v)
		}
		return o, nil

	case TagFunction:
		id, name, err := stringPair(t)
		if err != nil {
			return nil, err
		}
		uid, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("%w: function identity: %v", ErrMalformed, err)
		}
		return vm.FunctionWithID(uid, name), nil

	case TagOther:
		tag, desc, err := stringPair(t)
		if err != nil {
			return nil, err
		}
		return vm.NewOther(tag, desc), nil

	default:
		return vm.NewOther(fmt.Sprintf("cbor tag %d", t.Number), fmt.Sprint(t.Content)), nil
	}
}

func stringPair(t cbor.Tag) (string, string, error) {
	raw, ok := t.Content.([]any)
	if !ok || len(raw) != 2 {
		return "", "", fmt.Errorf("%w: tag %d wants a two element array", ErrMalformed, t.Number)
	}
	a, ok1 := raw[0].(string)
	b, ok2 := raw[1].(string)
	if !ok1 || !ok2 {
		return "", "", fmt.Errorf("%w: tag %d wants strings", ErrMalformed, t.Number)
	}
	return a, b, nil
}
