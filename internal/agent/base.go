package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/dusk-indust/chartwise/internal/llm"
	"github.com/dusk-indust/chartwise/internal/parse"
)

// Compile-time interface checks.
var (
	_ Agent = (*BaseAgent)(nil)
	_ Agent = (*QueryWriter)(nil)
	_ Agent = (*ChartWriter)(nil)
	_ Agent = (*Captioner)(nil)
	_ Agent = (*Summarizer)(nil)
	_ Agent = (*KPISuggester)(nil)
	_ Agent = (*IdeaWriter)(nil)
	_ Agent = (*TemplateWriter)(nil)
)

// BaseAgent provides the shared call path of the specialist agents: it
// prepends the system prompt, pins the model and temperature, and wraps
// failures with the agent's role. Specialists embed BaseAgent and add the
// stage-specific message layout and response grammar.
type BaseAgent struct {
	gen         llm.Generator
	card        Card
	system      string
	temperature *float64
}

// NewBaseAgent creates a BaseAgent serving card with the given system prompt.
func NewBaseAgent(gen llm.Generator, card Card, system string, temperature *float64) *BaseAgent {
	return &BaseAgent{gen: gen, card: card, system: system, temperature: temperature}
}

// Card returns the agent's card.
func (b *BaseAgent) Card() Card {
	return b.card
}

// SystemPrompt returns the system prompt sent with every call.
func (b *BaseAgent) SystemPrompt() string {
	return b.system
}

// Call sends the system prompt followed by msgs and returns the response.
func (b *BaseAgent) Call(ctx context.Context, msgs ...llm.Message) (*llm.Response, error) {
	req := llm.Request{
		Model:       b.card.Model,
		Messages:    append([]llm.Message{llm.System(b.system)}, msgs...),
		Temperature: b.temperature,
	}
	resp, err := b.gen.Generate(ctx, req)
	if err != nil {
		return nil, b.errorf("generate: %w", err)
	}
	return resp, nil
}

// CallText is Call for responses that must be non-empty free text.
func (b *BaseAgent) CallText(ctx context.Context, msgs ...llm.Message) (string, error) {
	resp, err := b.Call(ctx, msgs...)
	if err != nil {
		return "", err
	}
	text := parse.StripFences(resp.Text)
	if text == "" {
		return "", b.errorf("empty response: %w", parse.ErrMalformed)
	}
	return text, nil
}

func (b *BaseAgent) errorf(format string, args ...any) error {
	return fmt.Errorf("agent: %s: "+format, append([]any{b.card.Role}, args...)...)
}

// schemaText formats the schema document with optional graph context
// (subject areas and relations) appended.
func schemaText(doc, relations string) string {
	relations = strings.TrimSpace(relations)
	if relations == "" {
		return doc
	}
	return doc + "\n\n" + relations
}
