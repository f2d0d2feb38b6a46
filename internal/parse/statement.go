package parse

import (
	"strings"
)

// allowedLeading are the statement kinds query synthesis may produce.
var allowedLeading = map[string]bool{"SELECT": true, "WITH": true}

// forbiddenWords may not appear as bare words anywhere in a synthesized
// statement, which rules out data-modifying CTEs and stacked DDL.
var forbiddenWords = map[string]bool{
	"INSERT": true, "UPDATE": true, "DELETE": true, "MERGE": true, "INTO": true,
	"DROP": true, "ALTER": true, "CREATE": true, "TRUNCATE": true, "VACUUM": true,
	"ATTACH": true, "DETACH": true, "PRAGMA": true, "GRANT": true, "REVOKE": true,
}

// Statement validates generated SQL and returns it without its terminator.
// The text must hold exactly one statement: a second top-level ';', or any
// text after the terminator, is rejected, as is anything not starting with
// SELECT or WITH. Quotes, quoted identifiers, dollar quotes and comments are
// lexed so their content is never mistaken for structure.
//
// Engines disagree on whether a backslash escapes a quote inside a string
// (MySQL and PostgreSQL E-prefixed strings do, SQLite and standard PostgreSQL
// strings do not). The text is lexed both ways and must pass both, with the
// same statement, so no engine can read a second statement into it.
func Statement(text string) (string, error) {
	src := StripFences(text)
	if src == "" {
		return "", syntaxErr("statement", -1, "empty statement")
	}

	literal, err := statement(src, false)
	if err != nil {
		return "", err
	}
	escaped, err := statement(src, true)
	if err != nil {
		return "", err
	}
	if literal != escaped {
		return "", syntaxErr("statement", -1, "ambiguous backslash in quoted text")
	}
	return literal, nil
}

func statement(src string, backslash bool) (string, error) {
	lx := sqlLexer{src: src, backslash: backslash}
	if err := lx.run(); err != nil {
		return "", err
	}

	switch {
	case len(lx.terminators) > 1:
		return "", syntaxErr("statement", lx.terminators[1], "multiple statements (%d terminators)", len(lx.terminators))
	case len(lx.terminators) == 1 && lx.trailing:
		return "", syntaxErr("statement", lx.terminators[0], "text after statement terminator")
	}
	if len(lx.words) == 0 {
		return "", syntaxErr("statement", -1, "no statement keyword")
	}

	lead := strings.ToUpper(lx.words[0])
	if !allowedLeading[lead] {
		return "", syntaxErr("statement", -1, "statement must begin with SELECT or WITH, got %s", lead)
	}
	for _, w := range lx.words {
		if forbiddenWords[strings.ToUpper(w)] {
			return "", syntaxErr("statement", -1, "forbidden keyword %s", strings.ToUpper(w))
		}
	}

	stmt := src
	if len(lx.terminators) == 1 {
		stmt = src[:lx.terminators[0]]
	}
	return strings.TrimSpace(stmt), nil
}

// sqlLexer records top-level terminators and bare words of a SQL text.
type sqlLexer struct {
	src         string
	pos         int
	terminators []int
	words       []string
	trailing    bool // significant text after the first terminator
	backslash   bool // backslash escapes the next byte in single quotes
}

func (l *sqlLexer) run() error {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == '\'' || c == '"' || c == '`':
			if err := l.quoted(c); err != nil {
				return err
			}
			l.markSignificant()
		case c == '-' && l.next() == '-':
			l.lineComment()
		case c == '/' && l.next() == '*':
			if err := l.blockComment(); err != nil {
				return err
			}
		case c == '$' && l.dollarTag() != "":
			if err := l.dollarQuoted(); err != nil {
				return err
			}
			l.markSignificant()
		case c == ';':
			l.terminators = append(l.terminators, l.pos)
			l.pos++
		case isWordStart(c):
			start := l.pos
			for l.pos < len(l.src) && isWordPart(l.src[l.pos]) {
				l.pos++
			}
			l.words = append(l.words, l.src[start:l.pos])
			l.markSignificant()
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			l.pos++
		default:
			l.pos++
			l.markSignificant()
		}
	}
	return nil
}

func (l *sqlLexer) markSignificant() {
	if len(l.terminators) > 0 {
		l.trailing = true
	}
}

func (l *sqlLexer) next() byte {
	if l.pos+1 < len(l.src) {
		return l.src[l.pos+1]
	}
	return 0
}

// quoted consumes a quoted string or identifier. A doubled quote escapes
// itself; in backslash mode a backslash escapes the next byte of a single
// quoted string.
func (l *sqlLexer) quoted(q byte) error {
	start := l.pos
	l.pos++
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == '\\' && q == '\'' && l.backslash:
			l.pos += 2
		case c == q && l.next() == q:
			l.pos += 2
		case c == q:
			l.pos++
			return nil
		default:
			l.pos++
		}
	}
	return syntaxErr("statement", start, "unterminated quoted text")
}

func (l *sqlLexer) lineComment() {
	for l.pos < len(l.src) && l.src[l.pos] != '\n' {
		l.pos++
	}
}

func (l *sqlLexer) blockComment() error {
	start := l.pos
	end := strings.Index(l.src[l.pos+2:], "*/")
	if end < 0 {
		return syntaxErr("statement", start, "unterminated block comment")
	}
	l.pos += 2 + end + 2
	return nil
}

// dollarTag returns the $tag$ opener at the current position, or "".
func (l *sqlLexer) dollarTag() string {
	i := l.pos + 1
	for i < len(l.src) && isWordPart(l.src[i]) && !(l.src[i] >= '0' && l.src[i] <= '9' && i == l.pos+1) {
		i++
	}
	if i < len(l.src) && l.src[i] == '$' {
		return l.src[l.pos : i+1]
	}
	return ""
}

func (l *sqlLexer) dollarQuoted() error {
	start := l.pos
	tag := l.dollarTag()
	l.pos += len(tag)
	end := strings.Index(l.src[l.pos:], tag)
	if end < 0 {
		return syntaxErr("statement", start, "unterminated dollar-quoted text")
	}
	l.pos += end + len(tag)
	return nil
}

func isWordStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isWordPart(c byte) bool {
	return isWordStart(c) || (c >= '0' && c <= '9')
}
