// mpdump renders dynamic values and compiled programs as text.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
	"github.com/urfave/cli/v2"

	"github.com/chazu/mpdump/manifest"
	"github.com/chazu/mpdump/pkg/bytecode"
)

var log = commonlog.GetLogger("mpdump.cli")

// getwd is replaced in tests.
var getwd = os.Getwd

func main() {
	if err := newApp(os.Stdin, os.Stdout, os.Stderr).Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// env is the state shared by all commands, filled in by the app's Before
// hook.
type env struct {
	manifest *manifest.Manifest
	registry *bytecode.Registry
	stdin    io.Reader
	stdout   io.Writer
	stderr   io.Writer
}

func newApp(stdin io.Reader, stdout, stderr io.Writer) *cli.App {
	e := &env{stdin: stdin, stdout: stdout, stderr: stderr}

	return &cli.App{
		Name:      "mpdump",
		Usage:     "render dynamic values and decompile programs",
		Reader:    stdin,
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "configuration file (default: nearest " + manifest.FileName + ")",
			},
			&cli.IntFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "log verbosity, 0 to 2 (overrides the configuration file)",
			},
		},
		Before: e.setup,
		Commands: []*cli.Command{
			dumpCommand(e),
			decompileCommand(e),
			encodeCommand(e),
			decodeCommand(e),
			opcodesCommand(e),
			serveCommand(e),
			replCommand(e),
		},
	}
}

// setup loads the configuration, configures logging and builds the opcode
// registry.
func (e *env) setup(cCtx *cli.Context) error {
	m, err := loadManifest(cCtx.String("config"))
	if err != nil {
		return err
	}
	if cCtx.IsSet("verbose") {
		m.Log.Verbosity = cCtx.Int("verbose")
	}
	commonlog.Configure(m.Log.Verbosity, m.LogPath())

	if m.Dir != "" {
		log.Infof("loaded configuration from %s", m.Dir)
	}

	r, err := m.Registry()
	if err != nil {
		return fmt.Errorf("configuration: %w", err)
	}

	e.manifest = m
	e.registry = r
	return nil
}

func loadManifest(path string) (*manifest.Manifest, error) {
	if path != "" {
		return manifest.LoadFile(path)
	}
	wd, err := getwd()
	if err != nil {
		log.Warningf("cannot find %s, using defaults: %s", manifest.FileName, err.Error())
		return manifest.Default(), nil
	}
	m, err := manifest.FindAndLoad(wd)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return manifest.Default(), nil
	}
	return m, nil
}

// errNotProgram marks inputs that decompile skipped.
var errNotProgram = errors.New("not a program")
