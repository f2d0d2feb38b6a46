package agent

import (
	"context"
	"strconv"

	"github.com/dusk-indust/chartwise/internal/llm"
	"github.com/dusk-indust/chartwise/internal/parse"
	"github.com/dusk-indust/chartwise/internal/prompts"
	"github.com/dusk-indust/chartwise/internal/store"
)

// ---------------------------------------------------------------------------
// Summarizer
// ---------------------------------------------------------------------------

// Summarizer describes a schema in plain text.
type Summarizer struct {
	*BaseAgent
}

// NewSummarizer creates a Summarizer.
func NewSummarizer(gen llm.Generator, model string, temperature *float64) *Summarizer {
	card := Card{
		Role:        RoleSummary,
		Name:        "schema-summarizer",
		Description: "Describes every table, the relations between tables and every column of a schema.",
		Model:       model,
	}
	return &Summarizer{BaseAgent: NewBaseAgent(gen, card, prompts.Get(prompts.Summary), temperature)}
}

// Summarize returns the summary of schema. relations is optional context
// from the schema graph.
func (s *Summarizer) Summarize(ctx context.Context, schema store.Schema, relations string) (string, error) {
	return s.CallText(ctx, llm.User("Here is the schema: "+schemaText(schema.Document(), relations)))
}

// ---------------------------------------------------------------------------
// KPISuggester
// ---------------------------------------------------------------------------

// DefaultKPICount is the number of KPIs requested when none is configured.
const DefaultKPICount = 3

// KPISuggester proposes plottable KPIs for a schema and a set of goals.
type KPISuggester struct {
	*BaseAgent
	count int
}

// NewKPISuggester creates a KPISuggester asking for exactly count KPIs.
func NewKPISuggester(gen llm.Generator, model string, temperature *float64, count int) *KPISuggester {
	if count <= 0 {
		count = DefaultKPICount
	}
	card := Card{
		Role:        RoleKPI,
		Name:        "kpi-suggester",
		Description: "Suggests the most relevant plottable KPIs for the schema and the stated goals.",
		Model:       model,
	}
	system := prompts.Render(prompts.KPI, map[string]string{"count": strconv.Itoa(count)})
	return &KPISuggester{BaseAgent: NewBaseAgent(gen, card, system, temperature), count: count}
}

// Count returns the number of KPIs every Suggest call yields.
func (k *KPISuggester) Count() int { return k.count }

// Suggest sends the schema and the goals as two user messages and parses a
// list of exactly Count strings.
func (k *KPISuggester) Suggest(ctx context.Context, schema store.Schema, goals string) ([]string, error) {
	resp, err := k.Call(ctx,
		llm.User("Here is the schema: "+schema.Document()),
		llm.User("Here are the goals: "+goals),
	)
	if err != nil {
		return nil, err
	}
	kpis, err := parse.ListN(resp.Text, k.count)
	if err != nil {
		return nil, k.errorf("%w", err)
	}
	return kpis, nil
}
