package wire

import "strings"

// Quote renders s as a double-quoted wire string, backslash-escaping only
// '"' and '\', per spec.md §4.2's qstring grammar.
func Quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '"' || c == '\\' {
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}
	b.WriteByte('"')
	return b.String()
}

// unquote decodes a double-quoted wire string starting at s[0] == '"',
// returning the decoded value and the byte offset of the character following
// the closing quote. A leading backslash in front of any character is
// ignored and the next character is treated literally, matching the
// decoder's documented tolerance in §4.2; the first unescaped '"' closes the
// string.
func unquote(s string) (string, int, error) {
	if len(s) == 0 || s[0] != '"' {
		return "", 0, errExpectedQuote
	}
	var b strings.Builder
	i := 1
	for i < len(s) {
		c := s[i]
		if c == '"' {
			return b.String(), i + 1, nil
		}
		if c == '\\' {
			i++
			if i >= len(s) {
				return "", 0, errUnterminatedString
			}
			b.WriteByte(s[i])
			i++
			continue
		}
		b.WriteByte(c)
		i++
	}
	return "", 0, errUnterminatedString
}
