package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chazu/mpdump/pkg/literal"
	"github.com/chazu/mpdump/vm"
	"github.com/chazu/mpdump/vm/wire"
)

// stdinName is the argument that reads from standard input.
const stdinName = "-"

// inputArgs returns the paths given on the command line, or stdin when
// there are none.
func inputArgs(args []string) []string {
	if len(args) == 0 {
		return []string{stdinName}
	}
	return args
}

// readValues reads every value in the input at path. Files ending in .cbor
// hold one wire-encoded value. Anything else is a YAML stream, one value per
// document.
func readValues(path string, stdin io.Reader) ([]vm.Value, error) {
	data, err := readInput(path, stdin)
	if err != nil {
		return nil, err
	}

	if isCBOR(path) {
		v, err := wire.UnmarshalValue(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return []vm.Value{v}, nil
	}

	vals, err := literal.DecodeAll(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	log.Infof("read %d value(s) from %s", len(vals), displayName(path))
	return vals, nil
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == stdinName {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("cannot read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	return data, nil
}

func isCBOR(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".cbor")
}

func displayName(path string) string {
	if path == stdinName {
		return "stdin"
	}
	return path
}

// writeOutput writes data to path, or to w when path is empty or "-".
func writeOutput(path string, w io.Writer, data []byte) error {
	if path == "" || path == stdinName {
		_, err := w.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("cannot write %s: %w", path, err)
	}
	return nil
}
