package agent

import (
	"context"
	"strconv"
	"strings"

	"github.com/dusk-indust/chartwise/internal/llm"
	"github.com/dusk-indust/chartwise/internal/parse"
	"github.com/dusk-indust/chartwise/internal/prompts"
	"github.com/dusk-indust/chartwise/internal/store"
)

// Placeholders of the dashboard templates.
const (
	PlaceholderCards    = "cards"
	PlaceholderData     = "data"
	PlaceholderCaption  = "caption"
	PlaceholderAnalysis = "analysis"
)

// DefaultIdeaCount is the number of chart ideas of a dashboard.
const DefaultIdeaCount = 5

// ---------------------------------------------------------------------------
// IdeaWriter
// ---------------------------------------------------------------------------

// IdeaWriter proposes chart ideas for an overview dashboard.
type IdeaWriter struct {
	*BaseAgent
}

// NewIdeaWriter creates an IdeaWriter.
func NewIdeaWriter(gen llm.Generator, model string, temperature *float64) *IdeaWriter {
	card := Card{
		Role:        RoleIdeas,
		Name:        "idea-writer",
		Description: "Proposes chart ideas covering the tables and subject areas of a schema.",
		Model:       model,
	}
	return &IdeaWriter{BaseAgent: NewBaseAgent(gen, card, prompts.Get(prompts.Ideas), temperature)}
}

// Ideas asks for exactly n ideas. relations is optional schema-graph context.
func (w *IdeaWriter) Ideas(ctx context.Context, schema store.Schema, relations string, n int) ([]string, error) {
	if n <= 0 {
		n = DefaultIdeaCount
	}
	system := strings.ReplaceAll(w.system, "{count}", strconv.Itoa(n))
	resp, err := w.gen.Generate(ctx, llm.Request{
		Model: w.card.Model,
		Messages: []llm.Message{
			llm.System(system),
			llm.User("Here is the schema: " + schemaText(schema.Document(), relations)),
		},
		Temperature: w.temperature,
	})
	if err != nil {
		return nil, w.errorf("generate: %w", err)
	}
	ideas, err := parse.ListN(resp.Text, n)
	if err != nil {
		return nil, w.errorf("%w", err)
	}
	for i := range ideas {
		ideas[i] = strings.TrimSpace(ideas[i])
	}
	return ideas, nil
}

// ---------------------------------------------------------------------------
// TemplateWriter
// ---------------------------------------------------------------------------

// TemplateWriter designs the page and card templates of a dashboard.
type TemplateWriter struct {
	*BaseAgent
}

// NewTemplateWriter creates a TemplateWriter.
func NewTemplateWriter(gen llm.Generator, model string, temperature *float64) *TemplateWriter {
	card := Card{
		Role:        RoleTemplates,
		Name:        "template-writer",
		Description: "Designs the HTML page and card templates of a dashboard.",
		Model:       model,
	}
	return &TemplateWriter{BaseAgent: NewBaseAgent(gen, card, prompts.Get(prompts.Templates), temperature)}
}

// Templates returns a validated (page, card) template pair. The page must
// hold {cards} once; the card must hold {data}, {caption} and {analysis}
// once each; neither may hold any other placeholder.
func (w *TemplateWriter) Templates(ctx context.Context, schema store.Schema, ideas []string) (page, card string, err error) {
	var b strings.Builder
	b.WriteString("Here is the schema: ")
	b.WriteString(schema.Document())
	b.WriteString("\n\nThe dashboard shows these charts:")
	for _, idea := range ideas {
		b.WriteString("\n- ")
		b.WriteString(idea)
	}

	resp, err := w.Call(ctx, llm.User(b.String()))
	if err != nil {
		return "", "", err
	}
	page, card, err = parse.Pair(resp.Text)
	if err != nil {
		return "", "", w.errorf("%w", err)
	}
	if err := parse.Template("page", page, PlaceholderCards); err != nil {
		return "", "", w.errorf("%w", err)
	}
	if err := parse.Template("card", card, PlaceholderData, PlaceholderCaption, PlaceholderAnalysis); err != nil {
		return "", "", w.errorf("%w", err)
	}
	return page, card, nil
}
