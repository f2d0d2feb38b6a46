package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/dusk-indust/chartwise/internal/llm"
	"github.com/dusk-indust/chartwise/internal/parse"
	"github.com/dusk-indust/chartwise/internal/prompts"
	"github.com/dusk-indust/chartwise/internal/store"
)

// QueryWriter translates a question into one read-only SQL statement.
type QueryWriter struct {
	*BaseAgent
}

// NewQueryWriter creates a QueryWriter backed by gen and model.
func NewQueryWriter(gen llm.Generator, model string, temperature *float64) *QueryWriter {
	card := Card{
		Role:        RoleQuery,
		Name:        "query-writer",
		Description: "Translates a natural-language question into one SQL query over the schema.",
		Model:       model,
	}
	return &QueryWriter{BaseAgent: NewBaseAgent(gen, card, prompts.Get(prompts.Query), temperature)}
}

// Query is a synthesized statement and the model's reasoning, when exposed.
type Query struct {
	SQL       string
	Rationale string
}

// Write asks for a statement answering question over schema in the given
// dialect. The response must pass parse.Statement.
func (w *QueryWriter) Write(ctx context.Context, question string, schema store.Schema, engine store.Engine) (*Query, error) {
	system := strings.ReplaceAll(w.system, "{dialect}", dialectName(engine))
	req := llm.Request{
		Model: w.card.Model,
		Messages: []llm.Message{
			llm.System(system),
			llm.User(fmt.Sprintf("Here is the natural language query: %s. Here is the database schema in JSON format: %s",
				question, schema.Document())),
		},
		Temperature: w.temperature,
	}
	resp, err := w.gen.Generate(ctx, req)
	if err != nil {
		return nil, w.errorf("generate: %w", err)
	}
	stmt, err := parse.Statement(resp.Text)
	if err != nil {
		return nil, w.errorf("%w", err)
	}
	return &Query{SQL: stmt, Rationale: strings.TrimSpace(resp.Rationale)}, nil
}

func dialectName(engine store.Engine) string {
	switch engine {
	case store.EnginePostgres:
		return "PostgreSQL"
	case store.EngineMySQL:
		return "MySQL"
	case store.EngineSQLite:
		return "SQLite"
	default:
		return "standard SQL"
	}
}
