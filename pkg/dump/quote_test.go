package dump

import (
	"fmt"
	"strconv"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/chazu/mpdump/vm"
)

func TestQuote(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{``, `""`},
		{`plain text`, `"plain text"`},
		{`say "hi"`, `"say \"hi\""`},
		{`it's`, `"it\'s"`},
		{"a\r\nb", `"a\r\nb"`},
		{"tab\there", `"tab\there"`},
		{`back\slash`, `"back\\slash"`},
		{"\x7f", `"\x{7f}"`},
		{"é", `"\x{e9}"`},
		{"€", `"\x{20ac}"`},
		{"😀", `"\x{1f600}"`},
		{"\x01\x1f~", "\"\x01\x1f~\""},
	}

	for _, tt := range tests {
		if got := Quote(tt.in); got != tt.want {
			t.Errorf("Quote(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestQuoteHexHasNoPadding(t *testing.T) {
	got := Quote("\u0080\u0100")
	if got != `"\x{80}\x{100}"` {
		t.Errorf("Quote = %s, want unpadded lowercase hex", got)
	}
}

// unquote reverses Quote.
func unquote(s string) (string, error) {
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return "", fmt.Errorf("not a quoted string: %q", s)
	}
	body := s[1 : len(s)-1]

	var sb strings.Builder
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' {
			sb.WriteByte(c)
			continue
		}
		i++
		if i >= len(body) {
			return "", fmt.Errorf("dangling backslash in %q", s)
		}
		switch body[i] {
		case '"', '\'', '\\':
			sb.WriteByte(body[i])
		case 'r':
			sb.WriteByte('\r')
		case 'n':
			sb.WriteByte('\n')
		case 't':
			sb.WriteByte('\t')
		case 'x':
			end := strings.IndexByte(body[i:], '}')
			if end < 0 || i+1 >= len(body) || body[i+1] != '{' {
				return "", fmt.Errorf("bad \\x escape in %q", s)
			}
			hex := body[i+2 : i+end]
			if strings.HasPrefix(hex, "0") {
				return "", fmt.Errorf("padded hex %q", hex)
			}
			n, err := strconv.ParseInt(hex, 16, 32)
			if err != nil {
				return "", err
			}
			sb.WriteRune(rune(n))
			i += end
		default:
			return "", fmt.Errorf("unknown escape \\%c", body[i])
		}
	}
	return sb.String(), nil
}

func TestQuoteRoundTrip(t *testing.T) {
	inputs := []string{
		"",
		"simple",
		"\"'\\\r\n\t",
		"mixed é and 日本 and 🎉",
		"\x00\x7f\u0080\uffff",
	}

	for _, in := range inputs {
		out, err := unquote(Quote(in))
		if err != nil {
			t.Errorf("unquote(Quote(%q)): %v", in, err)
			continue
		}
		if out != in {
			t.Errorf("round trip of %q gave %q", in, out)
		}
	}
}

func TestDumpStringRoundTrip(t *testing.T) {
	in := "line1\nline2 \"q\" ü"
	got := strings.TrimSuffix(string(Dump(vm.String(in))), ";\n")
	out, err := unquote(got)
	if err != nil {
		t.Fatal(err)
	}
	if out != in {
		t.Errorf("round trip gave %q, want %q", out, in)
	}
}

func FuzzQuoteRoundTrip(f *testing.F) {
	f.Add("")
	f.Add("hello")
	f.Add("\"\\'\t\r\n")
	f.Add("ünïcødé ☃ 𝄞")

	f.Fuzz(func(t *testing.T, s string) {
		if !utf8.ValidString(s) {
			t.Skip()
		}
		q := Quote(s)
		for _, r := range q {
			if r >= 127 {
				t.Fatalf("Quote(%q) contains non-ASCII %U", s, r)
			}
		}
		out, err := unquote(q)
		if err != nil {
			t.Fatalf("unquote(%s): %v", q, err)
		}
		if out != s {
			t.Fatalf("round trip of %q gave %q", s, out)
		}
	})
}
