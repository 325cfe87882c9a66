package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/chazu/mpdump/server"
)

func serveCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "serve the render service over Connect and gRPC",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "listen `ADDRESS` (default from configuration)"},
			&cli.IntFlag{Name: "workers", Usage: "concurrent renders (default GOMAXPROCS)"},
		},
		Action: func(cCtx *cli.Context) error {
			addr := e.manifest.Server.Addr
			if cCtx.IsSet("addr") {
				addr = cCtx.String("addr")
			}

			opts := []server.ServerOption{
				server.WithRegistry(e.registry),
				server.WithDumpOptions(e.manifest.DumpOptions()),
				server.WithDecompileOptions(e.manifest.DecompileOptions()),
			}
			if n := cCtx.Int("workers"); n > 0 {
				opts = append(opts, server.WithWorkers(n))
			}

			srv := server.New(opts...)
			defer srv.Stop()

			ctx, stop := signal.NotifyContext(cCtx.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.Serve(ctx, addr)
		},
	}
}
