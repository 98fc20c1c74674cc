package merge

import "strings"

type header struct {
	name      string
	start     int
	bodyStart int
}

const byteOrderMark = "\ufeff"

// scanHeaders finds section headers line by line. A keyword is a header only
// when it opens a line (indentation allowed) and is followed by whitespace
// or the end of input. A leading byte order mark counts as indentation.
func scanHeaders(doc string) []header {
	var out []header
	for off := 0; off < len(doc); {
		lineEnd := len(doc)
		if nl := strings.IndexByte(doc[off:], '\n'); nl >= 0 {
			lineEnd = off + nl
		}
		line := doc[off:lineEnd]
		trimmed := line
		if off == 0 {
			trimmed = strings.TrimPrefix(trimmed, byteOrderMark)
		}
		trimmed = strings.TrimLeft(trimmed, " \t")
		for _, name := range canonical {
			if !strings.HasPrefix(trimmed, name) {
				continue
			}
			rest := trimmed[len(name):]
			if rest != "" && !isSpace(rest[0]) {
				continue
			}
			start := off + len(line) - len(trimmed)
			out = append(out, header{name: name, start: start, bodyStart: start + len(name)})
			break
		}
		off = lineEnd + 1
	}
	return out
}

// lastWord returns the offset of the last whole-word occurrence of w in s,
// or -1.
func lastWord(s, w string) int {
	for i := strings.LastIndex(s, w); i >= 0; i = strings.LastIndex(s[:i], w) {
		before := i == 0 || !isWordByte(s[i-1])
		after := i+len(w) == len(s) || !isWordByte(s[i+len(w)])
		if before && after {
			return i
		}
	}
	return -1
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\v' || b == '\f'
}

func isWordByte(b byte) bool {
	return b == '_' || b >= 0x80 ||
		('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z') || ('0' <= b && b <= '9')
}
