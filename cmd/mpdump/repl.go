package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/urfave/cli/v2"

	"github.com/chazu/mpdump/pkg/bytecode"
	"github.com/chazu/mpdump/pkg/dump"
	"github.com/chazu/mpdump/pkg/literal"
	"github.com/chazu/mpdump/vm"
)

const (
	historyFile = ".mpdump_history"
	promptMain  = "mpdump> "
	promptCont  = "......> "
)

const replHelp = `Enter a YAML value to dump it. End a line with \ to continue it.

  :inline <yaml>      dump without indentation or terminator
  :decompile <yaml>   decompile a !program value
  :opcodes            list the opcode name table
  :help               show this text
  :quit               leave
`

func replCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:  "repl",
		Usage: "dump and decompile values interactively",
		Action: func(cCtx *cli.Context) error {
			return runREPL(newSession(e), e.stdout, e.stderr)
		},
	}
}

// session evaluates REPL input. It is separate from the terminal handling so
// it can be driven by tests.
type session struct {
	dumper     *dump.Dumper
	decompiler *bytecode.Decompiler
}

func newSession(e *env) *session {
	return &session{
		dumper:     dump.New(e.manifest.DumpOptions()),
		decompiler: bytecode.NewDecompiler(e.registry.NameTable(), e.manifest.DecompileOptions()),
	}
}

// errQuit ends the session.
var errQuit = errors.New("quit")

// eval runs one complete input and returns the text to print.
func (s *session) eval(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", nil
	}

	if !strings.HasPrefix(input, ":") {
		return s.dump(input, false)
	}

	cmd, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)
	switch strings.ToLower(cmd) {
	case ":quit", ":q":
		return "", errQuit
	case ":help", ":h":
		return replHelp, nil
	case ":inline":
		out, err := s.dump(arg, true)
		if err != nil {
			return "", err
		}
		return out + "\n", nil
	case ":decompile", ":d":
		return s.decompile(arg)
	case ":opcodes":
		var sb strings.Builder
		names := s.decompiler.Names()
		for _, op := range names.Opcodes() {
			name, _ := names.Name(op)
			fmt.Fprintf(&sb, "%4d  %s\n", int64(op), name)
		}
		return sb.String(), nil
	}
	return "", fmt.Errorf("unknown command %s, type :help", cmd)
}

func (s *session) dump(src string, inline bool) (string, error) {
	v, err := literal.DecodeString(src)
	if err != nil {
		return "", err
	}
	var out vm.String
	if inline {
		out, err = s.dumper.DumpInline(v)
	} else {
		out, err = s.dumper.Dump(v)
	}
	return string(out), err
}

func (s *session) decompile(src string) (string, error) {
	v, err := literal.DecodeString(src)
	if err != nil {
		return "", err
	}
	out, ok, err := s.decompiler.Decompile(v)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%s is %w; tag it !program", vm.KindOf(v), errNotProgram)
	}
	return string(out) + "\n", nil
}

// runREPL drives a session from the terminal with line editing and history.
func runREPL(s *session, stdout, stderr io.Writer) error {
	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	histPath := ""
	if home, err := os.UserHomeDir(); err == nil {
		histPath = filepath.Join(home, historyFile)
		if f, err := os.Open(histPath); err == nil {
			_, _ = ln.ReadHistory(f)
			_ = f.Close()
		}
	}
	defer func() {
		if histPath == "" {
			return
		}
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	fmt.Fprintln(stdout, "mpdump repl, :help for commands")
	for {
		input, ok := readInputLines(ln)
		if !ok {
			fmt.Fprintln(stdout)
			return nil
		}

		out, err := s.eval(input)
		if errors.Is(err, errQuit) {
			return nil
		}
		if strings.TrimSpace(input) != "" {
			ln.AppendHistory(strings.ReplaceAll(input, "\n", " "))
		}
		if err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			continue
		}
		fmt.Fprint(stdout, out)
	}
}

// readInputLines reads one input, joining lines that end in a backslash.
// It reports false at end of input or when the prompt is aborted.
func readInputLines(ln *liner.State) (string, bool) {
	var b strings.Builder
	prompt := promptMain
	for {
		line, err := ln.Prompt(prompt)
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) && b.Len() > 0 {
				return "", true
			}
			return "", false
		}
		if cont, ok := strings.CutSuffix(line, `\`); ok {
			b.WriteString(cont)
			b.WriteByte('\n')
			prompt = promptCont
			continue
		}
		b.WriteString(line)
		return b.String(), true
	}
}
