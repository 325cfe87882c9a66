package server

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/chazu/mpdump/vm"
	"github.com/chazu/mpdump/vm/wire"
)

// RenderClient calls a remote render service.
type RenderClient struct {
	dump      *connect.Client[DumpRequest, DumpResponse]
	decompile *connect.Client[DecompileRequest, DecompileResponse]
	opcodes   *connect.Client[OpcodesRequest, OpcodesResponse]
	store     *connect.Client[StoreRequest, StoreResponse]
	release   *connect.Client[ReleaseRequest, ReleaseResponse]
}

// NewRenderClient creates a client for the service at baseURL, for example
// "http://localhost:4567". A nil httpClient means http.DefaultClient.
func NewRenderClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *RenderClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(Codec())}, opts...)

	return &RenderClient{
		dump:      connect.NewClient[DumpRequest, DumpResponse](httpClient, baseURL+DumpProcedure, opts...),
		decompile: connect.NewClient[DecompileRequest, DecompileResponse](httpClient, baseURL+DecompileProcedure, opts...),
		opcodes:   connect.NewClient[OpcodesRequest, OpcodesResponse](httpClient, baseURL+OpcodesProcedure, opts...),
		store:     connect.NewClient[StoreRequest, StoreResponse](httpClient, baseURL+StoreProcedure, opts...),
		release:   connect.NewClient[ReleaseRequest, ReleaseResponse](httpClient, baseURL+ReleaseProcedure, opts...),
	}
}

// Dump renders v remotely.
func (c *RenderClient) Dump(ctx context.Context, v vm.Value, inline bool) (string, error) {
	resp, err := c.dump.CallUnary(ctx, connect.NewRequest(&DumpRequest{
		Value:  wire.Envelope{Value: v},
		Inline: inline,
	}))
	if err != nil {
		return "", err
	}
	return resp.Msg.Text, nil
}

// DumpHandle renders a stored value remotely.
func (c *RenderClient) DumpHandle(ctx context.Context, handle string, inline bool) (string, error) {
	resp, err := c.dump.CallUnary(ctx, connect.NewRequest(&DumpRequest{
		Handle: handle,
		Inline: inline,
	}))
	if err != nil {
		return "", err
	}
	return resp.Msg.Text, nil
}

// Decompile decompiles prg remotely. It reports false when prg is not a
// program.
func (c *RenderClient) Decompile(ctx context.Context, prg vm.Value) (string, bool, error) {
	resp, err := c.decompile.CallUnary(ctx, connect.NewRequest(&DecompileRequest{
		Program: wire.Envelope{Value: prg},
	}))
	if err != nil {
		return "", false, err
	}
	return resp.Msg.Text, resp.Msg.Ok, nil
}

// Opcodes fetches the remote opcode name table.
func (c *RenderClient) Opcodes(ctx context.Context) ([]OpcodeEntry, error) {
	resp, err := c.opcodes.CallUnary(ctx, connect.NewRequest(&OpcodesRequest{}))
	if err != nil {
		return nil, err
	}
	return resp.Msg.Opcodes, nil
}

// Store uploads v and returns its handle.
func (c *RenderClient) Store(ctx context.Context, v vm.Value) (string, error) {
	resp, err := c.store.CallUnary(ctx, connect.NewRequest(&StoreRequest{
		Value: wire.Envelope{Value: v},
	}))
	if err != nil {
		return "", err
	}
	return resp.Msg.Handle, nil
}

// Release drops a stored value.
func (c *RenderClient) Release(ctx context.Context, handle string) (bool, error) {
	resp, err := c.release.CallUnary(ctx, connect.NewRequest(&ReleaseRequest{Handle: handle}))
	if err != nil {
		return false, err
	}
	return resp.Msg.Released, nil
}
