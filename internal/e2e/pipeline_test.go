//go:build e2e

package e2e

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/chartwise/internal/agent"
	"github.com/dusk-indust/chartwise/internal/chart"
	"github.com/dusk-indust/chartwise/internal/export"
	"github.com/dusk-indust/chartwise/internal/llm/llmtest"
	"github.com/dusk-indust/chartwise/internal/orchestrator"
	"github.com/dusk-indust/chartwise/internal/store"
)

const (
	revenueProgram = `import matplotlib.pyplot as plt
fig, ax = plt.subplots()
ax.bar(["east", "north", "south"], [13.0, 86.0, 48.0])
ax.set_title("Revenue by region")`

	page = `<html><body><main class="grid">{cards}</main></body></html>`
	card = `<section><img src="data:image/png;base64,{data}"/><h3>{caption}</h3><p>{analysis}</p></section>`
)

// shopDB loads testdata/fixtures/shop.sql into a fresh SQLite file.
func shopDB(t *testing.T) string {
	t.Helper()
	ddl, err := os.ReadFile(filepath.Join("..", "..", "testdata", "fixtures", "shop.sql"))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "shop.db")
	raw, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = raw.Exec(string(ddl))
	require.NoError(t, err)
	require.NoError(t, raw.Close())
	return "sqlite:///" + path
}

// requirePython skips the test when no interpreter with matplotlib exists.
func requirePython(t *testing.T) string {
	t.Helper()
	python := os.Getenv("CHARTWISE_PYTHON")
	if python == "" {
		python = "python3"
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := chart.Probe(ctx, python); err != nil {
		t.Skipf("rendering environment unavailable: %v", err)
	}
	return python
}

func stageRules(program string) []llmtest.Rule {
	return []llmtest.Rule{
		{Match: llmtest.When("SQL generating agent", ""), Reply: llmtest.Fixed(
			"SELECT c.region AS region, SUM(o.total) AS revenue FROM orders o JOIN customers c ON c.id = o.customer_id GROUP BY c.region ORDER BY c.region")},
		{Match: llmtest.When("matplotlib code generating agent", ""), Reply: llmtest.Fixed("```python\n" + program + "\n```")},
		{Match: llmtest.When("caption and analysis generating agent", ""), Reply: llmtest.Fixed(
			`('North leads revenue', 'The north region brings in the most revenue, ahead of south and east.')`)},
		{Match: llmtest.When("dashboard planning agent", ""), Reply: llmtest.Fixed(`['Revenue by region', 'Orders per month', 'Best selling products']`)},
		{Match: llmtest.When("HTML dashboard designer", ""), Reply: llmtest.Fixed("('" + page + "', '" + card + "')")},
	}
}

type env struct {
	conn   string
	pools  *store.Pools
	schema store.Schema
	svc    *orchestrator.Service
}

func newEnv(t *testing.T, program string) *env {
	t.Helper()
	python := requirePython(t)
	conn := shopDB(t)

	pools := store.NewPools()
	t.Cleanup(func() { _ = pools.Close() })

	ctx := context.Background()
	schema, err := pools.Introspect(ctx, conn)
	require.NoError(t, err)

	set, err := agent.NewRegistry(llmtest.NewRouter(stageRules(program)...), agent.Options{
		TextModel:   "text",
		VisionModel: "vision",
	}).Set()
	require.NoError(t, err)

	svc := orchestrator.New(orchestrator.Deps{
		Agents:   set,
		Executor: pools,
		Renderer: chart.NewPythonRenderer(python, time.Minute),
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Config:   orchestrator.Config{RunTimeout: 2 * time.Minute, Workers: 2, IdeaCount: 3},
	})
	t.Cleanup(svc.Close)

	// Drain progress events in the background so emitters never block.
	go func() {
		for range svc.Progress() {
		}
	}()

	return &env{conn: conn, pools: pools, schema: schema, svc: svc}
}

// TestE2E_Ask runs one question through real SQL execution and real
// sandboxed rendering.
func TestE2E_Ask(t *testing.T) {
	e := newEnv(t, revenueProgram)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	res, err := e.svc.Ask(ctx, orchestrator.Request{
		Question: "What is the revenue per region?",
		Conn:     e.conn,
		Schema:   e.schema,
	})
	require.NoError(t, err)

	require.NotNil(t, res.Result)
	assert.Equal(t, []string{"region", "revenue"}, res.Result.Columns)
	require.Len(t, res.Result.Rows, 3)
	assert.Equal(t, "east", res.Result.Rows[0]["region"])

	assert.True(t, chart.IsPNG(res.Image), "renderer output is a PNG")
	assert.Equal(t, "North leads revenue", res.Caption)

	dir, err := export.Write(t.TempDir(), export.AskBundle(res))
	require.NoError(t, err)
	png, err := os.ReadFile(filepath.Join(dir, "chart-01.png"))
	require.NoError(t, err)
	assert.Equal(t, res.Image, png)
}

// TestE2E_SandboxRejectsForbiddenModule checks that a generated program
// importing a forbidden module never runs.
func TestE2E_SandboxRejectsForbiddenModule(t *testing.T) {
	e := newEnv(t, "import os\nos.system('touch pwned')")

	_, err := e.svc.Ask(context.Background(), orchestrator.Request{
		Question: "What is the revenue per region?",
		Conn:     e.conn,
		Schema:   e.schema,
	})
	require.Error(t, err)

	var se *orchestrator.StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, orchestrator.StageChartRendering, se.Stage)
	assert.NoFileExists(t, "pwned")
}

// TestE2E_Dashboard composes a dashboard from real renders and exports it.
func TestE2E_Dashboard(t *testing.T) {
	e := newEnv(t, revenueProgram)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	d, err := e.svc.Dashboard(ctx, orchestrator.DashboardRequest{Conn: e.conn, Schema: e.schema})
	require.NoError(t, err)

	assert.Len(t, d.Ideas, 3)
	require.Len(t, d.Cards, 3)
	assert.Empty(t, d.Failures)
	assert.Empty(t, d.Issues)
	assert.Equal(t, 3, strings.Count(d.Markup, "data:image/png;base64,"))

	dir, err := export.Write(t.TempDir(), export.DashboardBundle(d))
	require.NoError(t, err)
	html, err := os.ReadFile(filepath.Join(dir, export.IndexFile))
	require.NoError(t, err)
	assert.Equal(t, d.Markup, string(html))
}
