package dump

import (
	"strconv"
	"strings"
)

// Quote returns s as a double-quoted string literal.
//
// Double and single quotes, backslash, carriage return, newline and tab are
// backslash-escaped. Any character at or above code point 127 is written as
// \x{hex} with lowercase digits and no padding. Everything else is copied
// as is. Invalid UTF-8 bytes are read as U+FFFD.
func Quote(s string) string {
	var sb strings.Builder
	sb.Grow(len(s) + 2)

	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			sb.WriteString(`\"`)
		case '\'':
			sb.WriteString(`\'`)
		case '\r':
			sb.WriteString(`\r`)
		case '\n':
			sb.WriteString(`\n`)
		case '\t':
			sb.WriteString(`\t`)
		case '\\':
			sb.WriteString(`\\`)
		default:
			if r >= 127 {
				sb.WriteString(`\x{`)
				sb.WriteString(strconv.FormatInt(int64(r), 16))
				sb.WriteByte('}')
			} else {
				sb.WriteRune(r)
			}
		}
	}
	sb.WriteByte('"')

	return sb.String()
}
