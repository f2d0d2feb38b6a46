// Package parse holds the strict grammars applied to generation output.
// Nothing here evaluates response text; malformed input yields an error
// wrapping ErrMalformed.
package parse

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrMalformed is wrapped by every grammar violation.
var ErrMalformed = errors.New("malformed generation")

// SyntaxError describes where a response violated a grammar.
type SyntaxError struct {
	Grammar string // "statement", "pair", "list", "template"
	Offset  int    // byte offset into the cleaned input, -1 when not positional
	Msg     string
}

func (e *SyntaxError) Error() string {
	if e.Offset < 0 {
		return fmt.Sprintf("%s: %s", e.Grammar, e.Msg)
	}
	return fmt.Sprintf("%s: %s at offset %d", e.Grammar, e.Msg, e.Offset)
}

func (e *SyntaxError) Is(target error) bool { return target == ErrMalformed }

func syntaxErr(grammar string, offset int, format string, args ...any) error {
	return &SyntaxError{Grammar: grammar, Offset: offset, Msg: fmt.Sprintf(format, args...)}
}

// fenceRe matches a whole response wrapped in a Markdown code fence with an
// optional language tag.
var fenceRe = regexp.MustCompile("(?s)^```[A-Za-z0-9_+-]*[ \t]*\r?\n(.*?)\r?\n?```$")

// StripFences removes a surrounding Markdown code fence, if present, and
// trims whitespace.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if m := fenceRe.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return s
}
