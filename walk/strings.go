package walk

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// decodeString returns the value of a quoted string literal. Malformed escapes decode to the
// escaped character.
func decodeString(raw string) string {
	if len(raw) < 2 {
		return ""
	}
	s := raw[1 : len(raw)-1]
	if strings.IndexByte(s, '\\') == -1 {
		return s
	}

	sb := strings.Builder{}
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 == len(s) {
			sb.WriteByte(s[i])
			continue
		}
		i++
		switch c := s[i]; c {
		case 'n':
			sb.WriteByte('\n')
		case 't':
			sb.WriteByte('\t')
		case 'r':
			sb.WriteByte('\r')
		case 'b':
			sb.WriteByte('\b')
		case 'f':
			sb.WriteByte('\f')
		case 'v':
			sb.WriteByte('\v')
		case '0':
			sb.WriteByte(0)
		case '\r':
			// line continuation
			if i+1 < len(s) && s[i+1] == '\n' {
				i++
			}
		case '\n':
		case 'x':
			if r, ok := hexRune(s, i+1, i+3); ok {
				sb.WriteRune(r)
				i += 2
			} else {
				sb.WriteByte(c)
			}
		case 'u':
			if i+1 < len(s) && s[i+1] == '{' {
				if j := strings.IndexByte(s[i:], '}'); j != -1 {
					if r, ok := hexRune(s, i+2, i+j); ok {
						sb.WriteRune(r)
						i += j
						break
					}
				}
			} else if r, ok := hexRune(s, i+1, i+5); ok {
				sb.WriteRune(r)
				i += 4
				break
			}
			sb.WriteByte(c)
		default:
			r, n := utf8.DecodeRuneInString(s[i:])
			if r != '\u2028' && r != '\u2029' {
				sb.WriteRune(r)
			}
			i += n - 1
		}
	}
	return sb.String()
}

// decodeIdentifier resolves the \uXXXX and \u{X} escapes of an identifier, so that \u0044 and D
// are the same name.
func decodeIdentifier(raw string) string {
	if strings.IndexByte(raw, '\\') == -1 {
		return raw
	}

	sb := strings.Builder{}
	sb.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		if raw[i] != '\\' || i+1 == len(raw) || raw[i+1] != 'u' {
			sb.WriteByte(raw[i])
			continue
		}
		if i+2 < len(raw) && raw[i+2] == '{' {
			if j := strings.IndexByte(raw[i:], '}'); j != -1 {
				if r, ok := hexRune(raw, i+3, i+j); ok {
					sb.WriteRune(r)
					i += j
					continue
				}
			}
		} else if r, ok := hexRune(raw, i+2, i+6); ok {
			sb.WriteRune(r)
			i += 5
			continue
		}
		sb.WriteByte(raw[i])
	}
	return sb.String()
}

func hexRune(s string, lo, hi int) (rune, bool) {
	if hi > len(s) || hi <= lo {
		return 0, false
	}
	v, err := strconv.ParseUint(s[lo:hi], 16, 32)
	if err != nil || utf8.MaxRune < v {
		return 0, false
	}
	return rune(v), true
}
