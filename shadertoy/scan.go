package shadertoy

import (
	"regexp"
	"strings"
)

var (
	identRe        = regexp.MustCompile(`^[A-Za-z_]\w*$`)
	mainImageDefRe = regexp.MustCompile(`\bvoid\s+mainImage\s*\(`)
)

var closers = map[byte]byte{'(': ')', '[': ']', '{': '}'}

// matchClose returns the index of the bracket that closes the one at open, or
// -1 if it is unbalanced.
func matchClose(s string, open int) int {
	opening, closing := s[open], closers[s[open]]
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case opening:
			depth++
		case closing:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// matchOpen is the reverse of matchClose for a closing parenthesis.
func matchOpen(s string, close int) int {
	depth := 0
	for i := close; i >= 0; i-- {
		switch s[i] {
		case ')':
			depth++
		case '(':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// splitTopLevel splits s at every sep that is not nested in brackets.
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth, last := 0, 0
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '(' || c == '[' || c == '{':
			depth++
		case c == ')' || c == ']' || c == '}':
			depth--
		case c == sep && depth == 0:
			parts = append(parts, s[last:i])
			last = i + 1
		}
	}
	return append(parts, s[last:])
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// startsStatement reports whether pos is the first token of a statement, that
// is, only whitespace and comments separate it from a preceding ';', '{', '}'
// or the start of the text.
func startsStatement(text string, pos int) bool {
	i := pos
	for {
		for i > 0 && isSpace(text[i-1]) {
			i--
		}
		if i == 0 {
			return true
		}
		if strings.HasSuffix(text[:i], "*/") {
			if j := strings.LastIndex(text[:i-2], "/*"); j >= 0 {
				i = j
				continue
			}
		}
		lineStart := strings.LastIndexByte(text[:i], '\n') + 1
		if k := strings.Index(text[lineStart:i], "//"); k >= 0 {
			i = lineStart + k
			continue
		}
		c := text[i-1]
		return c == ';' || c == '{' || c == '}'
	}
}

// withInitializer appends init to a declarator, keeping trailing whitespace
// where it was.
func withInitializer(decl, init string) string {
	trimmed := strings.TrimRight(decl, " \t\r\n")
	return trimmed + init + decl[len(trimmed):]
}

func wordRe(word string) *regexp.Regexp {
	return regexp.MustCompile(`\b` + regexp.QuoteMeta(word) + `\b`)
}

func inSpans(pos int, spans [][]int) bool {
	for _, s := range spans {
		if s[0] <= pos && pos < s[1] {
			return true
		}
	}
	return false
}

// function locates the parameter list and body of a function definition.
type function struct {
	params    string
	bodyStart int // just past the opening brace
	bodyEnd   int // the closing brace
}

// findFunction returns the first definition (not prototype) matched by re,
// where re must match up to and including the opening parenthesis.
func findFunction(src string, re *regexp.Regexp) (function, bool) {
	comments := commentRe.FindAllStringIndex(src, -1)
	for _, loc := range re.FindAllStringIndex(src, -1) {
		if inSpans(loc[0], comments) {
			continue
		}
		open := loc[1] - 1
		close := matchClose(src, open)
		if close < 0 {
			break
		}
		i := close + 1
		for i < len(src) && isSpace(src[i]) {
			i++
		}
		if i >= len(src) || src[i] != '{' {
			continue
		}
		end := matchClose(src, i)
		if end < 0 {
			break
		}
		return function{params: src[open+1 : close], bodyStart: i + 1, bodyEnd: end}, true
	}
	return function{}, false
}

// imageFunction locates the function that produces the pixel color. Direct
// source has no function of its own: all of it ends up in the body of the
// synthesized mainImage.
func imageFunction(src string, dialect Dialect) (function, bool) {
	switch dialect {
	case Complete:
		return findFunction(src, mainRe)
	case MainImageStyle:
		return findFunction(src, mainImageDefRe)
	}
	return function{bodyStart: 0, bodyEnd: len(src)}, true
}

// insertAtEntry inserts statements at the top of a function body.
func insertAtEntry(src string, fn function, stmts []string) string {
	return src[:fn.bodyStart] + "\n\t" + strings.Join(stmts, "\n\t") + src[fn.bodyStart:]
}
