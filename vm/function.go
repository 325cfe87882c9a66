package vm

import (
	"github.com/google/uuid"
)

// Function is an opaque callable reference. It has no textual form of its
// own; renderers show it through its identity token, which is stable for
// the life of the process but carries no meaning across processes.
type Function struct {
	id   uuid.UUID
	name string
}

// NewFunction creates a Function with a fresh identity.
func NewFunction(name string) *Function {
	return &Function{id: uuid.New(), name: name}
}

// FunctionWithID recreates a Function with a known identity, as needed when
// decoding a value that was encoded elsewhere.
func FunctionWithID(id uuid.UUID, name string) *Function {
	return &Function{id: id, name: name}
}

func (*Function) Kind() Kind { return KindFunction }
func (*Function) value()     {}

// ID returns the function's identity.
func (f *Function) ID() uuid.UUID { return f.id }

// Name returns the name the function was created with, which may be empty.
func (f *Function) Name() string { return f.name }

// Identity returns the opaque identity token used when rendering.
func (f *Function) Identity() string { return f.id.String() }

func (f *Function) String() string {
	if f.name == "" {
		return "function " + f.id.String()
	}
	return "function " + f.name
}
