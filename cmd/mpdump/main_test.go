package main

import (
	"bytes"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/mpdump/manifest"
	"github.com/chazu/mpdump/pkg/bytecode"
	"github.com/chazu/mpdump/server"
	"github.com/chazu/mpdump/vm"
	"github.com/chazu/mpdump/vm/wire"
)

// run executes the CLI with the given arguments and stdin, using an empty
// configuration file so the test does not depend on the working directory.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cfg := filepath.Join(t.TempDir(), manifest.FileName)
	if err := os.WriteFile(cfg, []byte("[log]\nverbosity = 0\n"), 0644); err != nil {
		t.Fatal(err)
	}
	return runWithConfig(t, cfg, stdin, args...)
}

func runWithConfig(t *testing.T, cfg, stdin string, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	app := newApp(strings.NewReader(stdin), &stdout, &stderr)
	err := app.Run(append([]string{"mpdump", "--config", cfg}, args...))
	return stdout.String(), err
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

const programYAML = `!program
- main.mpsl
- [31, [0, 1], [0, 2]]
`

// ---------------------------------------------------------------------------
// dump / decompile
// ---------------------------------------------------------------------------

func TestDumpCommand(t *testing.T) {
	out, err := run(t, "[1, 2]\n", "dump")
	if err != nil {
		t.Fatalf("dump: %v", err)
	}
	if want := "[\n  1,\n  2\n];\n"; out != want {
		t.Errorf("dump = %q, want %q", out, want)
	}
}

func TestDumpCommandMultipleDocuments(t *testing.T) {
	path := writeFile(t, "values.yaml", []byte("a: 1\n---\n\"x\"\n"))
	out, err := run(t, "", "dump", path)
	if err != nil {
		t.Fatal(err)
	}
	if want := "{\n  1 => \"a\"\n};\n\"x\";\n"; out != want {
		t.Errorf("dump = %q, want %q", out, want)
	}
}

func TestDumpCommandInline(t *testing.T) {
	out, err := run(t, "[1, [2]]", "dump", "--inline")
	if err != nil {
		t.Fatal(err)
	}
	if want := "[\n1,\n[\n2\n]\n]\n"; out != want {
		t.Errorf("dump --inline = %q, want %q", out, want)
	}
}

func TestDumpCommandCBORInput(t *testing.T) {
	data, err := wire.MarshalValue(vm.NewArray(vm.String("é")))
	if err != nil {
		t.Fatal(err)
	}
	path := writeFile(t, "value.cbor", data)

	out, err := run(t, "", "dump", path)
	if err != nil {
		t.Fatal(err)
	}
	if want := "[\n  \"\\x{e9}\"\n];\n"; out != want {
		t.Errorf("dump = %q, want %q", out, want)
	}
}

func TestDumpCommandMaxDepth(t *testing.T) {
	cfg := writeFile(t, manifest.FileName, []byte("[render]\nmax-depth = 1\n[log]\nverbosity = 0\n"))
	if _, err := runWithConfig(t, cfg, "[[1]]", "dump"); err == nil {
		t.Error("expected depth error")
	}
}

func TestDecompileCommand(t *testing.T) {
	out, err := run(t, programYAML, "decompile")
	if err != nil {
		t.Fatalf("decompile: %v", err)
	}
	if want := "ADD(\n  LITERAL(1),\n  LITERAL(2)\n)\n"; out != want {
		t.Errorf("decompile = %q, want %q", out, want)
	}
}

func TestDecompileCommandNonProgram(t *testing.T) {
	_, err := run(t, "[31, [0, 1]]", "decompile")
	if !errors.Is(err, errNotProgram) {
		t.Errorf("err = %v, want errNotProgram", err)
	}
}

func TestDecompileCommandConfiguredOpcodes(t *testing.T) {
	cfg := writeFile(t, manifest.FileName, []byte("[opcodes]\nTRACE = 200\n[log]\nverbosity = 0\n"))
	out, err := runWithConfig(t, cfg, "!program [m, [200]]", "decompile")
	if err != nil {
		t.Fatal(err)
	}
	if out != "TRACE(\n)\n" {
		t.Errorf("decompile = %q", out)
	}
}

// ---------------------------------------------------------------------------
// encode / decode / opcodes
// ---------------------------------------------------------------------------

func TestEncodeDecodeCommands(t *testing.T) {
	dir := t.TempDir()
	cborPath := filepath.Join(dir, "prog.cbor")

	if _, err := run(t, programYAML, "encode", "-o", cborPath); err != nil {
		t.Fatalf("encode: %v", err)
	}

	out, err := run(t, "", "decompile", cborPath)
	if err != nil {
		t.Fatalf("decompile cbor: %v", err)
	}
	if !strings.HasPrefix(out, "ADD(") {
		t.Errorf("decompile of encoded program = %q", out)
	}

	yamlOut, err := run(t, "", "decode", cborPath)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.Contains(yamlOut, "!program") {
		t.Errorf("decode output lacks !program tag:\n%s", yamlOut)
	}
}

func TestEncodeRejectsStreams(t *testing.T) {
	if _, err := run(t, "1\n---\n2\n", "encode"); err == nil {
		t.Error("expected error for two documents")
	}
}

func TestOpcodesCommand(t *testing.T) {
	out, err := run(t, "", "opcodes")
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != bytecode.OpcodeCount() {
		t.Errorf("got %d lines, want %d", len(lines), bytecode.OpcodeCount())
	}
	if lines[0] != "   0  LITERAL" {
		t.Errorf("first line = %q", lines[0])
	}
}

func TestRemoteCommands(t *testing.T) {
	srv := server.New()
	ts := httptest.NewServer(srv.Handler())
	defer func() {
		ts.Close()
		srv.Stop()
	}()

	out, err := run(t, "[1, 2]", "dump", "--server", ts.URL)
	if err != nil {
		t.Fatalf("remote dump: %v", err)
	}
	if want := "[\n  1,\n  2\n];\n"; out != want {
		t.Errorf("remote dump = %q, want %q", out, want)
	}

	out, err = run(t, programYAML, "decompile", "--server", ts.URL)
	if err != nil {
		t.Fatalf("remote decompile: %v", err)
	}
	if want := "ADD(\n  LITERAL(1),\n  LITERAL(2)\n)\n"; out != want {
		t.Errorf("remote decompile = %q, want %q", out, want)
	}

	local, _ := run(t, "", "opcodes")
	remote, err := run(t, "", "opcodes", "--server", ts.URL)
	if err != nil || remote != local {
		t.Errorf("remote opcodes differ from local: %v", err)
	}
}

func TestBadConfig(t *testing.T) {
	cfg := writeFile(t, manifest.FileName, []byte("[opcodes]\nPLUS = 31\n"))
	if _, err := runWithConfig(t, cfg, "", "opcodes"); !errors.Is(err, bytecode.ErrDuplicateOpcode) {
		t.Errorf("err = %v, want ErrDuplicateOpcode", err)
	}
}

// ---------------------------------------------------------------------------
// REPL session
// ---------------------------------------------------------------------------

func newTestSession(t *testing.T) *session {
	t.Helper()
	m := manifest.Default()
	r, err := m.Registry()
	if err != nil {
		t.Fatal(err)
	}
	return newSession(&env{manifest: m, registry: r})
}

func TestSessionEval(t *testing.T) {
	s := newTestSession(t)

	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"42", "42;\n"},
		{"{k: v}", "{\n  \"v\" => \"k\"\n};\n"},
		{":inline [1]", "[\n1\n]\n"},
		{":decompile !program [m, [0, x]]", "LITERAL(\"x\")\n"},
	}

	for _, tt := range tests {
		got, err := s.eval(tt.in)
		if err != nil {
			t.Errorf("eval(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("eval(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSessionCommands(t *testing.T) {
	s := newTestSession(t)

	if _, err := s.eval(":quit"); !errors.Is(err, errQuit) {
		t.Errorf(":quit err = %v", err)
	}
	if out, _ := s.eval(":help"); !strings.Contains(out, ":decompile") {
		t.Error(":help does not list :decompile")
	}
	if out, _ := s.eval(":opcodes"); !strings.Contains(out, "LITERAL") {
		t.Error(":opcodes does not list LITERAL")
	}
	if _, err := s.eval(":decompile [0, 1]"); !errors.Is(err, errNotProgram) {
		t.Errorf(":decompile of an array: err = %v", err)
	}
	if _, err := s.eval(":bogus"); err == nil {
		t.Error("unknown command accepted")
	}
	if _, err := s.eval("[1, 2"); err == nil {
		t.Error("bad YAML accepted")
	}
}

func TestLoadManifestWithoutWorkingDirectory(t *testing.T) {
	saved := getwd
	getwd = func() (string, error) { return "", errors.New("getwd: no such file or directory") }
	defer func() { getwd = saved }()

	m, err := loadManifest("")
	if err != nil {
		t.Fatalf("loadManifest: %v", err)
	}
	if m.Render.MaxDepth != manifest.DefaultMaxDepth || m.Dir != "" {
		t.Errorf("got %+v, want the defaults", m)
	}
}
