package agent

import (
	"context"
	"strings"

	"github.com/dusk-indust/chartwise/internal/llm"
	"github.com/dusk-indust/chartwise/internal/parse"
	"github.com/dusk-indust/chartwise/internal/prompts"
	"github.com/dusk-indust/chartwise/internal/store"
)

// Captioner looks at a rendered chart and writes its caption and analysis.
// It is served by the multimodal model.
type Captioner struct {
	*BaseAgent
}

// NewCaptioner creates a Captioner backed by the vision model.
func NewCaptioner(gen llm.Generator, model string, temperature *float64) *Captioner {
	card := Card{
		Role:        RoleCaption,
		Name:        "captioner",
		Description: "Writes a short caption and an analysis for a chart image.",
		Model:       model,
		Multimodal:  true,
	}
	return &Captioner{BaseAgent: NewBaseAgent(gen, card, prompts.Get(prompts.Caption), temperature)}
}

// Caption sends the PNG inline with the schema and parses the
// ('caption', 'analysis') pair.
func (c *Captioner) Caption(ctx context.Context, png []byte, schema store.Schema) (caption, analysis string, err error) {
	resp, err := c.Call(ctx, llm.UserImage("Here is the schema: "+schema.Document(), png, "image/png"))
	if err != nil {
		return "", "", err
	}
	caption, analysis, err = parse.Pair(resp.Text)
	if err != nil {
		return "", "", c.errorf("%w", err)
	}
	return strings.TrimSpace(caption), strings.TrimSpace(analysis), nil
}
