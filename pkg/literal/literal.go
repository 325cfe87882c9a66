// Package literal reads dynamic values from YAML documents.
//
// YAML maps onto dynamic values as follows:
//
//	null, ~              Null
//	true / false         Integer 1 / 0
//	42, 0x2a             Integer (Real when out of int64 range)
//	1.5, .inf            Real
//	strings, !!binary    String
//	sequences            Array
//	mappings             Object, in document order, << merges applied
//	!program [...]       Program
//	!function name       Function with a fresh identity
//	!other description   Other
//
// Any other local tag on a scalar, such as !handle "fd 3", produces an Other
// whose tag is the YAML tag without its leading "!".
package literal

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chazu/mpdump/vm"
	"gopkg.in/yaml.v3"
)

// Local YAML tags understood by the decoder.
const (
	TagProgram  = "!program"
	TagFunction = "!function"
	TagOther    = "!other"
)

// MaxDepth bounds collection nesting, including nesting reached through
// aliases.
const MaxDepth = 4096

// MaxNodes bounds the size of a document with every alias expanded. Aliases
// share the value of their anchor, but renderers still walk each occurrence.
const MaxNodes = 1 << 20

var (
	// ErrUnsupportedTag is returned for a tag the decoder cannot map.
	ErrUnsupportedTag = errors.New("literal: unsupported tag")

	// ErrTooDeep is returned when a document nests deeper than MaxDepth.
	ErrTooDeep = errors.New("literal: document nested too deeply")

	// ErrTooLarge is returned when a document expands to more than MaxNodes
	// nodes.
	ErrTooLarge = errors.New("literal: document expands too far")
)

// Decode reads the first document in data. Empty input decodes to Null.
func Decode(data []byte) (vm.Value, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("literal: %w", err)
	}
	if doc.Kind == 0 {
		return vm.Nil, nil
	}
	return FromNode(&doc)
}

// DecodeAll reads every document in a multi-document stream.
func DecodeAll(r io.Reader) ([]vm.Value, error) {
	dec := yaml.NewDecoder(r)

	var out []vm.Value
	for {
		var doc yaml.Node
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("literal: document %d: %w", len(out)+1, err)
		}
		v, err := FromNode(&doc)
		if err != nil {
			return nil, fmt.Errorf("literal: document %d: %w", len(out)+1, err)
		}
		out = append(out, v)
	}
}

// DecodeString is Decode for a string.
func DecodeString(s string) (vm.Value, error) {
	return Decode([]byte(s))
}

// FromNode converts a parsed YAML node. Every alias of an anchor yields the
// same value as the anchor itself.
func FromNode(n *yaml.Node) (vm.Value, error) {
	d := &decoder{anchors: make(map[*yaml.Node]anchored)}
	return d.convert(n, 0)
}

// decoder carries the state of one FromNode call.
type decoder struct {
	anchors map[*yaml.Node]anchored
	nodes   int
}

// anchored is a converted anchor and its expanded node count.
type anchored struct {
	value vm.Value
	nodes int
}

func (d *decoder) convert(n *yaml.Node, depth int) (vm.Value, error) {
	if n == nil {
		return vm.Nil, nil
	}
	if depth > MaxDepth {
		return nil, fmt.Errorf("%w (line %d)", ErrTooDeep, n.Line)
	}

	if n.Kind == yaml.AliasNode {
		if a, ok := d.anchors[n.Alias]; ok {
			if err := d.count(n, a.nodes); err != nil {
				return nil, err
			}
			return a.value, nil
		}
		// The anchor is still being converted: the alias refers to one of
		// its own ancestors.
		return d.convert(n.Alias, depth+1)
	}

	if err := d.count(n, 1); err != nil {
		return nil, err
	}
	start := d.nodes

	var (
		v   vm.Value
		err error
	)
	switch n.Kind {
	case yaml.DocumentNode:
		v = vm.Nil
		if len(n.Content) > 0 {
			v, err = d.convert(n.Content[0], depth)
		}
	case yaml.ScalarNode:
		v, err = scalar(n)
	case yaml.SequenceNode:
		v, err = d.sequence(n, depth)
	case yaml.MappingNode:
		v, err = d.mapping(n, depth)
	default:
		err = fmt.Errorf("literal: line %d: unexpected node kind %d", n.Line, n.Kind)
	}
	if err != nil {
		return nil, err
	}

	if n.Anchor != "" {
		d.anchors[n] = anchored{value: v, nodes: d.nodes - start + 1}
	}
	return v, nil
}

func (d *decoder) count(n *yaml.Node, nodes int) error {
	d.nodes += nodes
	if d.nodes > MaxNodes {
		return fmt.Errorf("%w: more than %d nodes (line %d)", ErrTooLarge, MaxNodes, n.Line)
	}
	return nil
}

func scalar(n *yaml.Node) (vm.Value, error) {
	switch tag := n.ShortTag(); tag {
	case "!!null":
		return vm.Nil, nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return nil, nodeError(n, err)
		}
		if b {
			return vm.Integer(1), nil
		}
		return vm.Integer(0), nil
	case "!!int":
		var i int64
		if err := n.Decode(&i); err == nil {
			return vm.Integer(i), nil
		}
		var f float64
		if err := n.Decode(&f); err != nil {
			return nil, nodeError(n, err)
		}
		return vm.Real(f), nil
	case "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return nil, nodeError(n, err)
		}
		return vm.Real(f), nil
	case "!!str", "!!binary":
		var s string
		if err := n.Decode(&s); err != nil {
			return nil, nodeError(n, err)
		}
		return vm.String(s), nil
	case "!!timestamp", "!!merge":
		return vm.String(n.Value), nil
	case TagFunction:
		return vm.NewFunction(n.Value), nil
	case TagOther:
		return vm.NewOther("other", n.Value), nil
	default:
		if local, ok := strings.CutPrefix(tag, "!"); ok && !strings.HasPrefix(local, "!") && local != "" {
			return vm.NewOther(local, n.Value), nil
		}
		return nil, fmt.Errorf("%w %s (line %d)", ErrUnsupportedTag, tag, n.Line)
	}
}

func (d *decoder) sequence(n *yaml.Node, depth int) (vm.Value, error) {
	elems := make([]vm.Value, 0, len(n.Content))
	for _, c := range n.Content {
		v, err := d.convert(c, depth+1)
		if err != nil {
			return nil, err
		}
		elems = append(elems, v)
	}

	switch tag := n.ShortTag(); tag {
	case "!!seq":
		return vm.NewArray(elems...), nil
	case TagProgram:
		return vm.NewProgram(elems...), nil
	default:
		return nil, fmt.Errorf("%w %s on a sequence (line %d)", ErrUnsupportedTag, tag, n.Line)
	}
}

func (d *decoder) mapping(n *yaml.Node, depth int) (vm.Value, error) {
	if tag := n.ShortTag(); tag != "!!map" {
		return nil, fmt.Errorf("%w %s on a mapping (line %d)", ErrUnsupportedTag, tag, n.Line)
	}

	o := vm.NewObject()
	var merges []*yaml.Node
	for i := 0; i+1 < len(n.Content); i += 2 {
		kn, vn := n.Content[i], n.Content[i+1]
		if kn.Kind == yaml.ScalarNode && kn.ShortTag() == "!!merge" {
			merges = append(merges, vn)
			continue
		}
		k, err := d.convert(kn, depth+1)
		if err != nil {
			return nil, err
		}
		v, err := d.convert(vn, depth+1)
		if err != nil {
			return nil, err
		}
		o.Set(k, v)
	}

	// Explicit keys win over merged ones, and earlier merges win over
	// later ones.
	for _, m := range merges {
		if err := d.merge(o, m, depth+1); err != nil {
			return nil, err
		}
	}
	return o, nil
}

func (d *decoder) merge(o *vm.Object, n *yaml.Node, depth int) error {
	src, err := d.convert(n, depth)
	if err != nil {
		return err
	}
	switch x := src.(type) {
	case *vm.Object:
		for k, v := range x.All() {
			if _, ok := o.Get(k); !ok {
				o.Set(k, v)
			}
		}
	case *vm.Array:
		for _, e := range x.All() {
			m, ok := e.(*vm.Object)
			if !ok {
				return fmt.Errorf("literal: line %d: merge list holds %s, want mappings", n.Line, vm.KindOf(e))
			}
			for k, v := range m.All() {
				if _, ok := o.Get(k); !ok {
					o.Set(k, v)
				}
			}
		}
	default:
		return fmt.Errorf("literal: line %d: cannot merge %s", n.Line, vm.KindOf(src))
	}
	return nil
}

func nodeError(n *yaml.Node, err error) error {
	return fmt.Errorf("literal: line %d: %w", n.Line, err)
}

// Encode renders v back to YAML using the same tags Decode understands.
// Functions keep only their name and others only their description.
func Encode(v vm.Value) ([]byte, error) {
	n, err := ToNode(v)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(n); err != nil {
		return nil, fmt.Errorf("literal: encode: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("literal: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// ToNode converts v into a YAML node tree.
func ToNode(v vm.Value) (*yaml.Node, error) {
	return toNode(v, 0)
}

func toNode(v vm.Value, depth int) (*yaml.Node, error) {
	if depth > MaxDepth {
		return nil, ErrTooDeep
	}

	switch x := v.(type) {
	case nil, vm.Null:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}, nil
	case vm.Integer:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: x.String()}, nil
	case vm.Real:
		n := &yaml.Node{}
		if err := n.Encode(float64(x)); err != nil {
			return nil, err
		}
		return n, nil
	case vm.String:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: string(x)}, nil
	case *vm.Array:
		if x == nil {
			return toNode(nil, depth)
		}
		return seqNode("!!seq", x.Values(), depth)
	case *vm.Program:
		if x == nil {
			return toNode(nil, depth)
		}
		return seqNode(TagProgram, x.Values(), depth)
	case *vm.Object:
		if x == nil {
			return toNode(nil, depth)
		}
		n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for k, val := range x.All() {
			kn, err := toNode(k, depth+1)
			if err != nil {
				return nil, err
			}
			vn, err := toNode(val, depth+1)
			if err != nil {
				return nil, err
			}
			n.Content = append(n.Content, kn, vn)
		}
		return n, nil
	case *vm.Function:
		if x == nil {
			return toNode(nil, depth)
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: TagFunction, Value: x.Name()}, nil
	case *vm.Other:
		if x == nil {
			return toNode(nil, depth)
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: TagOther, Value: x.String()}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedTag, vm.KindOf(v))
}

func seqNode(tag string, elems []vm.Value, depth int) (*yaml.Node, error) {
	n := &yaml.Node{Kind: yaml.SequenceNode, Tag: tag}
	for _, e := range elems {
		c, err := toNode(e, depth+1)
		if err != nil {
			return nil, err
		}
		n.Content = append(n.Content, c)
	}
	return n, nil
}
