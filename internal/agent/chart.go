package agent

import (
	"context"
	"fmt"

	"github.com/dusk-indust/chartwise/internal/llm"
	"github.com/dusk-indust/chartwise/internal/prompts"
	"github.com/dusk-indust/chartwise/internal/store"
)

// DefaultTableRows caps the rows of a result table sent to the chart writer.
const DefaultTableRows = 200

// ChartWriter writes a matplotlib program charting a result table.
type ChartWriter struct {
	*BaseAgent
	rows int
}

// NewChartWriter creates a ChartWriter. At most rows result rows are sent;
// rows <= 0 selects DefaultTableRows.
func NewChartWriter(gen llm.Generator, model string, temperature *float64, rows int) *ChartWriter {
	if rows <= 0 {
		rows = DefaultTableRows
	}
	card := Card{
		Role:        RoleChart,
		Name:        "chart-writer",
		Description: "Writes a matplotlib program that charts a query result and binds the figure to fig.",
		Model:       model,
	}
	return &ChartWriter{BaseAgent: NewBaseAgent(gen, card, prompts.Get(prompts.Chart), temperature), rows: rows}
}

// Write returns the program text for question and its result table. Fences
// are stripped; an empty program is malformed.
func (w *ChartWriter) Write(ctx context.Context, question string, result *store.Result) (string, error) {
	return w.CallText(ctx, llm.User(fmt.Sprintf("Here is the query: %s. Here is the table: %s", question, result.Table(w.rows))))
}
