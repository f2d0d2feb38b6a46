// Package llmtest provides scripted generators for tests.
package llmtest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/dusk-indust/chartwise/internal/llm"
)

// Compile-time interface checks.
var (
	_ llm.Generator = (*Scripted)(nil)
	_ llm.Generator = (*Router)(nil)
)

// Reply is one canned generation outcome.
type Reply struct {
	Text      string
	Rationale string
	Err       error
}

func (r Reply) response() (*llm.Response, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	return &llm.Response{Text: r.Text, Rationale: r.Rationale}, nil
}

// Scripted replays replies in order and records every request.
type Scripted struct {
	mu      sync.Mutex
	replies []Reply
	calls   []llm.Request
}

// NewScripted returns a generator that answers with replies in order.
func NewScripted(replies ...Reply) *Scripted {
	return &Scripted{replies: replies}
}

// Generate pops the next reply. Running out of replies is an error.
func (s *Scripted) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, req)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(s.replies) == 0 {
		return nil, fmt.Errorf("llmtest: no scripted reply for call %d", len(s.calls))
	}
	r := s.replies[0]
	s.replies = s.replies[1:]
	return r.response()
}

// Calls returns a copy of the recorded requests.
func (s *Scripted) Calls() []llm.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]llm.Request(nil), s.calls...)
}

// Rule answers requests it matches.
type Rule struct {
	Match func(llm.Request) bool
	Reply func(llm.Request) Reply
}

// Router answers each request with the first matching rule. It is safe for
// concurrent use, so fan-out tests can route by request content instead of
// call order.
type Router struct {
	mu    sync.Mutex
	rules []Rule
	calls []llm.Request
}

// NewRouter returns a Router with the given rules.
func NewRouter(rules ...Rule) *Router {
	return &Router{rules: rules}
}

// Generate answers with the first matching rule.
func (r *Router) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	r.mu.Lock()
	r.calls = append(r.calls, req)
	rules := r.rules
	r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, rule := range rules {
		if rule.Match(req) {
			return rule.Reply(req).response()
		}
	}
	return nil, fmt.Errorf("llmtest: no rule matches request %q", UserText(req))
}

// Calls returns a copy of the recorded requests.
func (r *Router) Calls() []llm.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]llm.Request(nil), r.calls...)
}

// When matches requests whose system prompt contains system and whose user
// text contains user. Empty strings match anything.
func When(system, user string) func(llm.Request) bool {
	return func(req llm.Request) bool {
		return strings.Contains(SystemText(req), system) && strings.Contains(UserText(req), user)
	}
}

// Fixed returns a reply function that always answers text.
func Fixed(text string) func(llm.Request) Reply {
	return func(llm.Request) Reply { return Reply{Text: text} }
}

// Fail returns a reply function that always fails with err.
func Fail(err error) func(llm.Request) Reply {
	return func(llm.Request) Reply { return Reply{Err: err} }
}

// SystemText joins the text of all system messages.
func SystemText(req llm.Request) string {
	return join(req, llm.RoleSystem)
}

// UserText joins the text of all user messages.
func UserText(req llm.Request) string {
	return join(req, llm.RoleUser)
}

// HasImage reports whether any message carries an image part.
func HasImage(req llm.Request) bool {
	for _, m := range req.Messages {
		for _, p := range m.Parts {
			if p.IsImage() {
				return true
			}
		}
	}
	return false
}

func join(req llm.Request, role llm.Role) string {
	var parts []string
	for _, m := range req.Messages {
		if m.Role == role {
			parts = append(parts, m.Text())
		}
	}
	return strings.Join(parts, "\n")
}
