// Package textbuf provides the growable, append-only text buffer the
// renderers write into.
//
// A Buffer belongs to exactly one render call. When the render finishes the
// buffer is finalized into an immutable string value and must not be used
// again.
package textbuf

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/chazu/mpdump/vm"
)

// Indent is the text emitted for one nesting level.
const Indent = "  "

// Buffer accumulates rendered text.
type Buffer struct {
	sb        strings.Builder
	runes     int
	finalized bool
}

// New returns an empty Buffer.
func New() *Buffer {
	return &Buffer{}
}

// Append adds text to the end of the buffer and returns the buffer length in
// characters.
func (b *Buffer) Append(text string) int {
	b.mustBeOpen()
	b.sb.WriteString(text)
	b.runes += utf8.RuneCountInString(text)
	return b.runes
}

// AppendRune adds a single character.
func (b *Buffer) AppendRune(r rune) int {
	b.mustBeOpen()
	b.sb.WriteRune(r)
	b.runes++
	return b.runes
}

// Appendf formats according to a format specifier and appends the result.
func (b *Buffer) Appendf(format string, args ...any) int {
	return b.Append(fmt.Sprintf(format, args...))
}

// AppendIndent appends levels copies of Indent. Zero or negative levels
// append nothing.
func (b *Buffer) AppendIndent(levels int) int {
	for i := 0; i < levels; i++ {
		b.Append(Indent)
	}
	return b.runes
}

// Len returns the number of characters appended so far.
func (b *Buffer) Len() int { return b.runes }

// Finalize hands the accumulated text over as a string value. Any further
// use of the buffer panics.
func (b *Buffer) Finalize() vm.String {
	b.mustBeOpen()
	b.finalized = true
	s := vm.String(b.sb.String())
	b.sb = strings.Builder{}
	return s
}

func (b *Buffer) mustBeOpen() {
	if b.finalized {
		panic("textbuf: buffer used after Finalize")
	}
}
