package server

import (
	"context"
	"errors"
	"fmt"

	"connectrpc.com/connect"

	"github.com/chazu/mpdump/pkg/bytecode"
	"github.com/chazu/mpdump/pkg/dump"
	"github.com/chazu/mpdump/vm"
	"github.com/chazu/mpdump/vm/wire"
)

// RenderServiceName is the fully qualified name of the render service.
const RenderServiceName = "mpdump.v1.RenderService"

// Procedure paths of the render service.
const (
	DumpProcedure      = "/" + RenderServiceName + "/Dump"
	DecompileProcedure = "/" + RenderServiceName + "/Decompile"
	OpcodesProcedure   = "/" + RenderServiceName + "/Opcodes"
	StoreProcedure     = "/" + RenderServiceName + "/Store"
	ReleaseProcedure   = "/" + RenderServiceName + "/Release"
)

// ---------------------------------------------------------------------------
// Messages
// ---------------------------------------------------------------------------

// DumpRequest asks for the rendering of Value, or of the stored value named
// by Handle when Handle is set.
type DumpRequest struct {
	Value  wire.Envelope `cbor:"1,keyasint"`
	Handle string        `cbor:"2,keyasint,omitempty"`
	Inline bool          `cbor:"3,keyasint,omitempty"`
}

type DumpResponse struct {
	Text string `cbor:"1,keyasint"`
}

// DecompileRequest asks for the decompilation of Program, or of the stored
// value named by Handle when Handle is set.
type DecompileRequest struct {
	Program wire.Envelope `cbor:"1,keyasint"`
	Handle  string        `cbor:"2,keyasint,omitempty"`
}

// DecompileResponse carries the rendered text. Ok is false when the input
// was not a program.
type DecompileResponse struct {
	Text string `cbor:"1,keyasint"`
	Ok   bool   `cbor:"2,keyasint"`
}

type OpcodesRequest struct{}

type OpcodeEntry struct {
	ID   int64  `cbor:"1,keyasint"`
	Name string `cbor:"2,keyasint"`
}

type OpcodesResponse struct {
	Opcodes []OpcodeEntry `cbor:"1,keyasint"`
}

type StoreRequest struct {
	Value wire.Envelope `cbor:"1,keyasint"`
}

type StoreResponse struct {
	Handle string `cbor:"1,keyasint"`
}

type ReleaseRequest struct {
	Handle string `cbor:"1,keyasint"`
}

type ReleaseResponse struct {
	Released bool `cbor:"1,keyasint"`
}

// ---------------------------------------------------------------------------
// Service
// ---------------------------------------------------------------------------

// RenderService implements the render service handlers.
type RenderService struct {
	pool       *RenderPool
	handles    *HandleStore
	registry   *bytecode.Registry
	dumper     *dump.Dumper
	decompOpts bytecode.DecompileOptions
}

// NewRenderService creates a RenderService.
func NewRenderService(pool *RenderPool, handles *HandleStore, registry *bytecode.Registry, dumpOpts dump.Options, decompOpts bytecode.DecompileOptions) *RenderService {
	return &RenderService{
		pool:       pool,
		handles:    handles,
		registry:   registry,
		dumper:     dump.New(dumpOpts),
		decompOpts: decompOpts,
	}
}

// Dump renders a value.
func (s *RenderService) Dump(
	ctx context.Context,
	req *connect.Request[DumpRequest],
) (*connect.Response[DumpResponse], error) {
	v, err := s.resolve(req.Msg.Handle, req.Msg.Value.Value)
	if err != nil {
		return nil, err
	}
	log.Debugf("Dump %s (inline=%t)", vm.KindOf(v), req.Msg.Inline)

	result, err := s.pool.Do(ctx, func() (any, error) {
		if req.Msg.Inline {
			return s.dumper.DumpInline(v)
		}
		return s.dumper.Dump(v)
	})
	if err != nil {
		return nil, renderError("Dump", err)
	}
	return connect.NewResponse(&DumpResponse{Text: string(result.(vm.String))}), nil
}

// Decompile renders the instruction payload of a program. A non-program
// input is not an error: the response has Ok set to false.
func (s *RenderService) Decompile(
	ctx context.Context,
	req *connect.Request[DecompileRequest],
) (*connect.Response[DecompileResponse], error) {
	v, err := s.resolve(req.Msg.Handle, req.Msg.Program.Value)
	if err != nil {
		return nil, err
	}
	log.Debugf("Decompile %s", vm.KindOf(v))

	// The name table is taken per call so that opcodes registered while
	// serving show up in later requests.
	d := bytecode.NewDecompiler(s.registry.NameTable(), s.decompOpts)

	result, err := s.pool.Do(ctx, func() (any, error) {
		text, ok, err := d.Decompile(v)
		return &DecompileResponse{Text: string(text), Ok: ok}, err
	})
	if err != nil {
		return nil, renderError("Decompile", err)
	}
	return connect.NewResponse(result.(*DecompileResponse)), nil
}

// Opcodes lists the opcode name table in identifier order.
func (s *RenderService) Opcodes(
	ctx context.Context,
	req *connect.Request[OpcodesRequest],
) (*connect.Response[OpcodesResponse], error) {
	names := s.registry.NameTable()

	resp := &OpcodesResponse{Opcodes: make([]OpcodeEntry, 0, names.Len())}
	for _, op := range names.Opcodes() {
		name, _ := names.Name(op)
		resp.Opcodes = append(resp.Opcodes, OpcodeEntry{ID: int64(op), Name: name})
	}
	return connect.NewResponse(resp), nil
}

// Store keeps a value on the server and returns a handle for it.
func (s *RenderService) Store(
	ctx context.Context,
	req *connect.Request[StoreRequest],
) (*connect.Response[StoreResponse], error) {
	id := s.handles.Create(req.Msg.Value.Value)
	log.Debugf("Store %s as %s", vm.KindOf(req.Msg.Value.Value), id)
	return connect.NewResponse(&StoreResponse{Handle: id}), nil
}

// Release drops a stored value.
func (s *RenderService) Release(
	ctx context.Context,
	req *connect.Request[ReleaseRequest],
) (*connect.Response[ReleaseResponse], error) {
	if req.Msg.Handle == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("handle is required"))
	}
	released := s.handles.Release(req.Msg.Handle)
	return connect.NewResponse(&ReleaseResponse{Released: released}), nil
}

// resolve returns the stored value for handle, or inline when handle is
// empty.
func (s *RenderService) resolve(handle string, inline vm.Value) (vm.Value, error) {
	if handle == "" {
		return inline, nil
	}
	v, ok := s.handles.Lookup(handle)
	if !ok {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("handle %q not found", handle))
	}
	return v, nil
}

// renderError maps a render failure onto a Connect error code.
func renderError(method string, err error) error {
	switch {
	case errors.Is(err, dump.ErrMaxDepth),
		errors.Is(err, dump.ErrCycle),
		errors.Is(err, bytecode.ErrUnknownOpcode):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	case errors.Is(err, ErrPoolStopped):
		return connect.NewError(connect.CodeUnavailable, err)
	}
	log.Errorf("%s failed: %s", method, err.Error())
	return connect.NewError(connect.CodeInternal, err)
}
