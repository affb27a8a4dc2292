package render

import (
	"bytes"
	"strings"

	"github.com/fatih/color"
)

// Styles for the colorized format variants. fatih/color honors the global
// color.NoColor switch, so --no-color and non-TTY stdout strip these
// automatically.
var (
	keyStyle     = color.New(color.FgCyan)
	stringStyle  = color.New(color.FgGreen)
	numberStyle  = color.New(color.FgYellow)
	literalStyle = color.New(color.FgMagenta)
	punctStyle   = color.New(color.FgHiBlack)
)

// colorizeJSON walks an already-encoded JSON document and wraps keys,
// strings, numbers, literals, and punctuation in ANSI styles. Operating on
// the encoded bytes keeps the layout byte-identical to the plain json
// format.
func colorizeJSON(src []byte) []byte {
	var out bytes.Buffer
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == '"':
			j := endOfJSONString(src, i)
			seg := string(src[i:j])
			if nextNonSpace(src, j) == ':' {
				out.WriteString(keyStyle.Sprint(seg))
			} else {
				out.WriteString(stringStyle.Sprint(seg))
			}
			i = j
		case c == '-' || (c >= '0' && c <= '9'):
			j := i
			for j < len(src) && isNumberByte(src[j]) {
				j++
			}
			out.WriteString(numberStyle.Sprint(string(src[i:j])))
			i = j
		case c == 't' || c == 'f' || c == 'n':
			j := i
			for j < len(src) && src[j] >= 'a' && src[j] <= 'z' {
				j++
			}
			out.WriteString(literalStyle.Sprint(string(src[i:j])))
			i = j
		case bytes.IndexByte([]byte("{}[],:"), c) >= 0:
			out.WriteString(punctStyle.Sprint(string(c)))
			i++
		default:
			out.WriteByte(c)
			i++
		}
	}
	return out.Bytes()
}

// endOfJSONString returns the index just past the string starting at the
// opening quote at position i.
func endOfJSONString(src []byte, i int) int {
	j := i + 1
	for j < len(src) {
		switch src[j] {
		case '\\':
			j += 2
		case '"':
			return j + 1
		default:
			j++
		}
	}
	return j
}

func nextNonSpace(src []byte, i int) byte {
	for ; i < len(src); i++ {
		switch src[i] {
		case ' ', '\t', '\n', '\r':
		default:
			return src[i]
		}
	}
	return 0
}

func isNumberByte(c byte) bool {
	return (c >= '0' && c <= '9') || c == '+' || c == '-' || c == '.' || c == 'e' || c == 'E'
}

// colorizeYAML applies styles line by line: keys cyan, scalar values styled
// by kind. Block-structure characters are left alone so the output stays
// valid YAML when the codes are stripped.
func colorizeYAML(src []byte) []byte {
	lines := strings.Split(string(src), "\n")
	for idx, line := range lines {
		body := strings.TrimLeft(line, " ")
		indent := line[:len(line)-len(body)]
		dash := ""
		for strings.HasPrefix(body, "- ") {
			dash += "- "
			body = body[2:]
		}
		if body == "" {
			continue
		}
		if key, val, ok := cutYAMLKey(body); ok {
			colored := keyStyle.Sprint(key) + ":"
			if val != "" {
				colored += " " + scalarStyle(val).Sprint(val)
			}
			lines[idx] = indent + dash + colored
		} else {
			lines[idx] = indent + dash + scalarStyle(body).Sprint(body)
		}
	}
	return []byte(strings.Join(lines, "\n"))
}

// cutYAMLKey splits "key: value" or "key:"; quoted scalars that merely
// contain colons are not treated as keys.
func cutYAMLKey(body string) (key, val string, ok bool) {
	if strings.HasPrefix(body, "\"") || strings.HasPrefix(body, "'") {
		return "", "", false
	}
	if k, v, found := strings.Cut(body, ": "); found {
		return k, v, true
	}
	if k, found := strings.CutSuffix(body, ":"); found && !strings.Contains(k, ": ") {
		return k, "", true
	}
	return "", "", false
}

func scalarStyle(val string) *color.Color {
	switch {
	case val == "true" || val == "false" || val == "null" || val == "~":
		return literalStyle
	case looksNumeric(val):
		return numberStyle
	default:
		return stringStyle
	}
}

func looksNumeric(val string) bool {
	if val == "" {
		return false
	}
	for i := 0; i < len(val); i++ {
		if !isNumberByte(val[i]) {
			return false
		}
	}
	return true
}
