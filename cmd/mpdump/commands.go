package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/chazu/mpdump/pkg/bytecode"
	"github.com/chazu/mpdump/pkg/dump"
	"github.com/chazu/mpdump/pkg/literal"
	"github.com/chazu/mpdump/server"
	"github.com/chazu/mpdump/vm"
	"github.com/chazu/mpdump/vm/wire"
)

func serverFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "server",
		Usage: "render on a remote mpdump server at `URL` instead of locally",
	}
}

// ---------------------------------------------------------------------------
// dump
// ---------------------------------------------------------------------------

func dumpCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:      "dump",
		Usage:     "render values as literal text",
		ArgsUsage: "[file...]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "inline", Usage: "render without indentation or terminator"},
			serverFlag(),
		},
		Action: func(cCtx *cli.Context) error {
			inline := cCtx.Bool("inline")
			render := e.localDump(inline)
			if url := cCtx.String("server"); url != "" {
				client := server.NewRenderClient(nil, url)
				render = func(v vm.Value) (string, error) {
					return client.Dump(cCtx.Context, v, inline)
				}
			}

			for _, path := range inputArgs(cCtx.Args().Slice()) {
				vals, err := readValues(path, e.stdin)
				if err != nil {
					return err
				}
				for _, v := range vals {
					text, err := render(v)
					if err != nil {
						return fmt.Errorf("%s: %w", displayName(path), err)
					}
					fmt.Fprint(e.stdout, text)
					if inline {
						fmt.Fprintln(e.stdout)
					}
				}
			}
			return nil
		},
	}
}

func (e *env) localDump(inline bool) func(vm.Value) (string, error) {
	d := dump.New(e.manifest.DumpOptions())
	return func(v vm.Value) (string, error) {
		var (
			s   vm.String
			err error
		)
		if inline {
			s, err = d.DumpInline(v)
		} else {
			s, err = d.Dump(v)
		}
		return string(s), err
	}
}

// ---------------------------------------------------------------------------
// decompile
// ---------------------------------------------------------------------------

func decompileCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:      "decompile",
		Usage:     "render compiled programs as nested calls",
		ArgsUsage: "[file...]",
		Flags:     []cli.Flag{serverFlag()},
		Action: func(cCtx *cli.Context) error {
			decompile := e.localDecompile()
			if url := cCtx.String("server"); url != "" {
				client := server.NewRenderClient(nil, url)
				decompile = func(v vm.Value) (string, bool, error) {
					return client.Decompile(cCtx.Context, v)
				}
			}

			skipped := 0
			for _, path := range inputArgs(cCtx.Args().Slice()) {
				vals, err := readValues(path, e.stdin)
				if err != nil {
					return err
				}
				for i, v := range vals {
					text, ok, err := decompile(v)
					if err != nil {
						return fmt.Errorf("%s: %w", displayName(path), err)
					}
					if !ok {
						log.Warningf("%s: value %d is a %s, nothing to decompile", displayName(path), i+1, vm.KindOf(v))
						skipped++
						continue
					}
					fmt.Fprintln(e.stdout, text)
				}
			}
			if skipped > 0 {
				return fmt.Errorf("%d input value(s) skipped: %w", skipped, errNotProgram)
			}
			return nil
		},
	}
}

func (e *env) localDecompile() func(vm.Value) (string, bool, error) {
	// A fresh name table per run picks up the [opcodes] section.
	d := bytecode.NewDecompiler(e.registry.NameTable(), e.manifest.DecompileOptions())
	return func(v vm.Value) (string, bool, error) {
		s, ok, err := d.Decompile(v)
		return string(s), ok, err
	}
}

// ---------------------------------------------------------------------------
// encode / decode
// ---------------------------------------------------------------------------

func encodeCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:      "encode",
		Usage:     "convert a YAML value to CBOR",
		ArgsUsage: "[file]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "write to `FILE` instead of stdout"},
		},
		Action: func(cCtx *cli.Context) error {
			path := stdinName
			if cCtx.NArg() > 0 {
				path = cCtx.Args().First()
			}
			vals, err := readValues(path, e.stdin)
			if err != nil {
				return err
			}
			if len(vals) != 1 {
				return fmt.Errorf("%s: encode wants exactly one value, found %d", displayName(path), len(vals))
			}

			data, err := wire.MarshalValue(vals[0])
			if err != nil {
				return err
			}
			return writeOutput(cCtx.String("output"), e.stdout, data)
		},
	}
}

func decodeCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:      "decode",
		Usage:     "convert a CBOR value to YAML",
		ArgsUsage: "[file]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "write to `FILE` instead of stdout"},
		},
		Action: func(cCtx *cli.Context) error {
			path := stdinName
			if cCtx.NArg() > 0 {
				path = cCtx.Args().First()
			}
			data, err := readInput(path, e.stdin)
			if err != nil {
				return err
			}
			v, err := wire.UnmarshalValue(data)
			if err != nil {
				return fmt.Errorf("%s: %w", displayName(path), err)
			}

			out, err := literal.Encode(v)
			if err != nil {
				return err
			}
			return writeOutput(cCtx.String("output"), e.stdout, out)
		},
	}
}

// ---------------------------------------------------------------------------
// opcodes
// ---------------------------------------------------------------------------

func opcodesCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:  "opcodes",
		Usage: "list the opcode name table",
		Flags: []cli.Flag{serverFlag()},
		Action: func(cCtx *cli.Context) error {
			if url := cCtx.String("server"); url != "" {
				entries, err := server.NewRenderClient(nil, url).Opcodes(cCtx.Context)
				if err != nil {
					return err
				}
				for _, ent := range entries {
					fmt.Fprintf(e.stdout, "%4d  %s\n", ent.ID, ent.Name)
				}
				return nil
			}

			names := e.registry.NameTable()
			for _, op := range names.Opcodes() {
				name, _ := names.Name(op)
				fmt.Fprintf(e.stdout, "%4d  %s\n", int64(op), name)
			}
			return nil
		},
	}
}
