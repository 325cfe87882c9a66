// Package server exposes the dumper and decompiler over Connect.
//
// All procedures of mpdump.v1.RenderService are unary and use the CBOR codec
// returned by Codec. Values travel as wire Envelopes. The same port serves
// the Connect, gRPC and gRPC-Web protocols.
package server

import (
	"context"
	"errors"
	"net/http"
	"runtime"
	"time"

	"connectrpc.com/connect"
	"github.com/tliron/commonlog"

	"github.com/chazu/mpdump/pkg/bytecode"
	"github.com/chazu/mpdump/pkg/dump"
)

var log = commonlog.GetLogger("mpdump.server")

// RenderServer serves the render service.
type RenderServer struct {
	pool    *RenderPool
	handles *HandleStore
	service *RenderService
	mux     *http.ServeMux

	stopSweeper func()
}

// ServerOption configures a RenderServer.
type ServerOption func(*serverConfig)

type serverConfig struct {
	registry      *bytecode.Registry
	dumpOpts      dump.Options
	decompOpts    bytecode.DecompileOptions
	workers       int
	sweepInterval time.Duration
	handleTTL     time.Duration
}

// WithRegistry sets the opcode registry used for decompiling. Without this,
// the process-wide default registry is used.
func WithRegistry(r *bytecode.Registry) ServerOption {
	return func(c *serverConfig) { c.registry = r }
}

// WithDumpOptions sets the hardening applied to Dump.
func WithDumpOptions(opts dump.Options) ServerOption {
	return func(c *serverConfig) { c.dumpOpts = opts }
}

// WithDecompileOptions sets the options applied to Decompile.
func WithDecompileOptions(opts bytecode.DecompileOptions) ServerOption {
	return func(c *serverConfig) { c.decompOpts = opts }
}

// WithWorkers sets the number of concurrent renders. The default is
// GOMAXPROCS.
func WithWorkers(n int) ServerOption {
	return func(c *serverConfig) { c.workers = n }
}

// WithHandleTTL sets how long an unused stored value is kept.
func WithHandleTTL(ttl time.Duration) ServerOption {
	return func(c *serverConfig) { c.handleTTL = ttl }
}

// New creates a RenderServer.
func New(opts ...ServerOption) *RenderServer {
	cfg := &serverConfig{
		registry:      bytecode.Default(),
		workers:       runtime.GOMAXPROCS(0),
		sweepInterval: 5 * time.Minute,
		handleTTL:     30 * time.Minute,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	pool := NewRenderPool(cfg.workers)
	handles := NewHandleStore()

	s := &RenderServer{
		pool:    pool,
		handles: handles,
		service: NewRenderService(pool, handles, cfg.registry, cfg.dumpOpts, cfg.decompOpts),
		mux:     http.NewServeMux(),
	}

	codec := connect.WithCodec(Codec())
	svc := s.service
	s.mux.Handle(DumpProcedure, connect.NewUnaryHandler(DumpProcedure, svc.Dump, codec))
	s.mux.Handle(DecompileProcedure, connect.NewUnaryHandler(DecompileProcedure, svc.Decompile, codec))
	s.mux.Handle(OpcodesProcedure, connect.NewUnaryHandler(OpcodesProcedure, svc.Opcodes, codec))
	s.mux.Handle(StoreProcedure, connect.NewUnaryHandler(StoreProcedure, svc.Store, codec))
	s.mux.Handle(ReleaseProcedure, connect.NewUnaryHandler(ReleaseProcedure, svc.Release, codec))

	s.stopSweeper = handles.StartSweeper(cfg.sweepInterval, cfg.handleTTL)

	return s
}

// Handler returns the HTTP handler serving all procedures.
func (s *RenderServer) Handler() http.Handler {
	return s.mux
}

// Handles returns the store of uploaded values.
func (s *RenderServer) Handles() *HandleStore {
	return s.handles
}

// ListenAndServe starts the HTTP server on the given address.
// The address should be in the form "host:port" or ":port".
func (s *RenderServer) ListenAndServe(addr string) error {
	return s.Serve(context.Background(), addr)
}

// Serve runs the HTTP server on addr until ctx is done, then shuts it down
// gracefully.
func (s *RenderServer) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Noticef("render server listening on %s", addr)
		log.Infof("  Connect: http://%s%s", addr, DumpProcedure)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.Notice("render server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// Stop shuts down the server.
func (s *RenderServer) Stop() {
	if s.stopSweeper != nil {
		s.stopSweeper()
	}
	s.pool.Stop()
}
