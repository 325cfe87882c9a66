// Package manifest handles mpdump.toml configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"
	"github.com/chazu/mpdump/pkg/bytecode"
	"github.com/chazu/mpdump/pkg/dump"
)

// FileName is the name of the configuration file.
const FileName = "mpdump.toml"

// Defaults for settings absent from the file.
const (
	DefaultMaxDepth  = 4096
	DefaultAddr      = ":4567"
	DefaultVerbosity = 1
)

// Manifest represents an mpdump.toml configuration.
type Manifest struct {
	Render  Render           `toml:"render"`
	Opcodes map[string]int64 `toml:"opcodes"`
	Server  Server           `toml:"server"`
	Log     Log              `toml:"log"`

	// Dir is the directory containing the file (set at load time). Empty
	// for the built-in defaults.
	Dir string `toml:"-"`
}

// Render configures the dumper and decompiler.
type Render struct {
	MaxDepth      int  `toml:"max-depth"`
	DetectCycles  bool `toml:"detect-cycles"`
	StrictOpcodes bool `toml:"strict-opcodes"`
}

// Server configures the render server.
type Server struct {
	Addr string `toml:"addr"`
}

// Log configures logging.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Default returns the configuration used when no file is present.
func Default() *Manifest {
	return &Manifest{
		Render: Render{
			MaxDepth:     DefaultMaxDepth,
			DetectCycles: true,
		},
		Server: Server{Addr: DefaultAddr},
		Log:    Log{Verbosity: DefaultVerbosity},
	}
}

// Load parses the mpdump.toml file in dir.
func Load(dir string) (*Manifest, error) {
	return LoadFile(filepath.Join(dir, FileName))
}

// LoadFile parses the configuration file at path.
func LoadFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	m := Default()
	md, err := toml.Decode(string(data), m)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%s: unknown setting %s", path, undecoded[0])
	}

	m.Dir, err = filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}

	// Defaults
	if !md.IsDefined("server", "addr") || m.Server.Addr == "" {
		m.Server.Addr = DefaultAddr
	}

	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// FindAndLoad walks up from startDir to find an mpdump.toml file, then loads
// and returns it. Returns nil if no file is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// Validate checks settings that the TOML types alone cannot.
func (m *Manifest) Validate() error {
	if m.Render.MaxDepth < 0 {
		return fmt.Errorf("render.max-depth must not be negative, got %d", m.Render.MaxDepth)
	}
	if m.Log.Verbosity < 0 {
		return fmt.Errorf("log.verbosity must not be negative, got %d", m.Log.Verbosity)
	}
	for name, id := range m.Opcodes {
		if name == "" {
			return fmt.Errorf("opcodes: empty name for %d", id)
		}
	}
	return nil
}

// DumpOptions returns the dumper hardening configured in [render].
func (m *Manifest) DumpOptions() dump.Options {
	return dump.Options{
		MaxDepth:     m.Render.MaxDepth,
		DetectCycles: m.Render.DetectCycles,
	}
}

// DecompileOptions returns the decompiler configuration from [render].
func (m *Manifest) DecompileOptions() bytecode.DecompileOptions {
	return bytecode.DecompileOptions{
		Strict:   m.Render.StrictOpcodes,
		MaxDepth: m.Render.MaxDepth,
		Dump:     m.DumpOptions(),
	}
}

// Registry returns the standard opcode registry extended with [opcodes].
// Entries are registered in name order so conflicts report consistently.
func (m *Manifest) Registry() (*bytecode.Registry, error) {
	r := bytecode.NewStandardRegistry()
	if err := m.RegisterOpcodes(r); err != nil {
		return nil, err
	}
	return r, nil
}

// RegisterOpcodes adds the [opcodes] entries to r.
func (m *Manifest) RegisterOpcodes(r *bytecode.Registry) error {
	names := make([]string, 0, len(m.Opcodes))
	for name := range m.Opcodes {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := r.Register(name, bytecode.Opcode(m.Opcodes[name])); err != nil {
			return fmt.Errorf("opcodes.%s: %w", name, err)
		}
	}
	return nil
}

// LogPath returns the log file path for commonlog, or nil to log to stderr.
// Relative paths are resolved against Dir.
func (m *Manifest) LogPath() *string {
	if m.Log.File == "" {
		return nil
	}
	path := m.Log.File
	if !filepath.IsAbs(path) && m.Dir != "" {
		path = filepath.Join(m.Dir, path)
	}
	return &path
}
