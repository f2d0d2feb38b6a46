package parse

import (
	"strings"
	"unicode/utf8"
)

// scanner reads string-literal structures (pairs, lists) from generation
// output. The accepted literal syntax is the Python string subset models
// emit: single, double and triple quotes, an optional r/u prefix, backslash
// escapes, and implicit concatenation of adjacent literals.
type scanner struct {
	src     string
	pos     int
	grammar string
}

func newScanner(grammar, src string) *scanner {
	return &scanner{src: StripFences(src), grammar: grammar}
}

func (s *scanner) errorf(format string, args ...any) error {
	return syntaxErr(s.grammar, s.pos, format, args...)
}

func (s *scanner) eof() bool { return s.pos >= len(s.src) }

func (s *scanner) peek() byte {
	if s.eof() {
		return 0
	}
	return s.src[s.pos]
}

func (s *scanner) skipSpace() {
	for !s.eof() {
		switch s.src[s.pos] {
		case ' ', '\t', '\r', '\n':
			s.pos++
		default:
			return
		}
	}
}

// expect consumes c after optional whitespace.
func (s *scanner) expect(c byte) error {
	s.skipSpace()
	if s.peek() != c {
		if s.eof() {
			return s.errorf("expected %q, got end of input", c)
		}
		return s.errorf("expected %q, got %q", c, s.peek())
	}
	s.pos++
	return nil
}

// accept consumes c after optional whitespace if present.
func (s *scanner) accept(c byte) bool {
	s.skipSpace()
	if s.peek() == c {
		s.pos++
		return true
	}
	return false
}

func (s *scanner) end() error {
	s.skipSpace()
	if !s.eof() {
		return s.errorf("unexpected trailing text %q", excerpt(s.src[s.pos:]))
	}
	return nil
}

// atString reports whether a string literal (with optional prefix) starts
// at the current position.
func (s *scanner) atString() bool {
	i := s.pos
	if i < len(s.src) && strings.ContainsRune("rRuU", rune(s.src[i])) {
		i++
	}
	return i < len(s.src) && (s.src[i] == '\'' || s.src[i] == '"')
}

// str reads one or more adjacent string literals and returns their
// concatenated value.
func (s *scanner) str() (string, error) {
	s.skipSpace()
	if !s.atString() {
		if s.eof() {
			return "", s.errorf("expected string literal, got end of input")
		}
		return "", s.errorf("expected string literal, got %q", s.peek())
	}
	var b strings.Builder
	for {
		if err := s.literal(&b); err != nil {
			return "", err
		}
		save := s.pos
		s.skipSpace()
		if !s.atString() {
			s.pos = save
			return b.String(), nil
		}
	}
}

func (s *scanner) literal(b *strings.Builder) error {
	start := s.pos
	raw := false
	switch s.peek() {
	case 'r', 'R':
		raw = true
		s.pos++
	case 'u', 'U':
		s.pos++
	}

	quote := s.src[s.pos]
	triple := strings.HasPrefix(s.src[s.pos:], strings.Repeat(string(quote), 3))
	if triple {
		s.pos += 3
	} else {
		s.pos++
	}

	for {
		if s.eof() {
			s.pos = start
			return s.errorf("unterminated string literal")
		}
		c := s.src[s.pos]
		switch {
		case c == quote && !triple:
			s.pos++
			return nil
		case c == quote && triple && strings.HasPrefix(s.src[s.pos:], strings.Repeat(string(quote), 3)):
			s.pos += 3
			return nil
		case c == '\n' && !triple:
			return s.errorf("newline inside single-quoted string literal")
		case c == '\\':
			if s.pos+1 >= len(s.src) {
				s.pos = start
				return s.errorf("unterminated string literal")
			}
			next := s.src[s.pos+1]
			s.pos += 2
			if raw {
				b.WriteByte('\\')
				b.WriteByte(next)
				continue
			}
			switch next {
			case '\\', '\'', '"':
				b.WriteByte(next)
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case '\n':
				// line continuation
			default:
				b.WriteByte('\\')
				b.WriteByte(next)
			}
		default:
			_, size := utf8.DecodeRuneInString(s.src[s.pos:])
			b.WriteString(s.src[s.pos : s.pos+size])
			s.pos += size
		}
	}
}

// Pair parses a two-element literal such as ('caption', 'analysis').
func Pair(text string) (string, string, error) {
	s := newScanner("pair", text)
	if err := s.expect('('); err != nil {
		return "", "", err
	}
	first, err := s.str()
	if err != nil {
		return "", "", err
	}
	if err := s.expect(','); err != nil {
		return "", "", err
	}
	second, err := s.str()
	if err != nil {
		return "", "", err
	}
	s.accept(',')
	if err := s.expect(')'); err != nil {
		return "", "", err
	}
	if err := s.end(); err != nil {
		return "", "", err
	}
	return first, second, nil
}

// List parses a list literal of strings such as ["a", "b"].
func List(text string) ([]string, error) {
	s := newScanner("list", text)
	if err := s.expect('['); err != nil {
		return nil, err
	}
	items := []string{}
	if s.accept(']') {
		return finish(s, items)
	}
	for {
		item, err := s.str()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		if s.accept(']') {
			break
		}
		if err := s.expect(','); err != nil {
			return nil, err
		}
		if s.accept(']') {
			break
		}
	}
	return finish(s, items)
}

func finish(s *scanner, items []string) ([]string, error) {
	if err := s.end(); err != nil {
		return nil, err
	}
	return items, nil
}

// ListN parses a list literal and requires exactly n non-empty items.
func ListN(text string, n int) ([]string, error) {
	items, err := List(text)
	if err != nil {
		return nil, err
	}
	if len(items) != n {
		return nil, syntaxErr("list", -1, "expected %d items, got %d", n, len(items))
	}
	for i, item := range items {
		if strings.TrimSpace(item) == "" {
			return nil, syntaxErr("list", -1, "item %d is empty", i+1)
		}
	}
	return items, nil
}

func excerpt(s string) string {
	const limit = 24
	if len(s) <= limit {
		return s
	}
	n := limit
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
