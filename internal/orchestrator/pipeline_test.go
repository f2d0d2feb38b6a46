package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/chartwise/internal/agent"
	"github.com/dusk-indust/chartwise/internal/chart"
	"github.com/dusk-indust/chartwise/internal/llm"
	"github.com/dusk-indust/chartwise/internal/llm/llmtest"
	"github.com/dusk-indust/chartwise/internal/runs"
	"github.com/dusk-indust/chartwise/internal/store"
)

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

const (
	querySystem    = "SQL generating agent"
	chartSystem    = "matplotlib code generating agent"
	captionSystem  = "caption and analysis generating agent"
	ideasSystem    = "dashboard planning agent"
	templateSystem = "HTML dashboard designer"
	summarySystem  = "schema summary agent"
	kpiSystem      = "KPI generating agent"

	testProgram = "import matplotlib.pyplot as plt\nfig, ax = plt.subplots()\nax.bar(['EU', 'US'], [10, 20])\nplt.close(fig)"
)

func shopSchema() store.Schema {
	return store.Schema{
		"customers": {
			{Name: "id", Type: "INTEGER", PrimaryKey: true},
			{Name: "name", Type: "TEXT"},
		},
		"orders": {
			{Name: "id", Type: "INTEGER", PrimaryKey: true},
			{Name: "customer_id", Type: "INTEGER", References: "customers.id"},
			{Name: "region", Type: "TEXT"},
			{Name: "total", Type: "REAL", Nullable: true},
		},
	}
}

// mockExecutor implements Executor with a configurable function.
type mockExecutor struct {
	execute func(ctx context.Context, conn, stmt string) (*store.Result, error)
}

func (m *mockExecutor) Execute(ctx context.Context, conn, stmt string) (*store.Result, error) {
	return m.execute(ctx, conn, stmt)
}

func regionRows() *store.Result {
	return &store.Result{
		Columns: []string{"region", "total"},
		Rows:    []store.Row{{"region": "EU", "total": 10.0}, {"region": "US", "total": 20.0}},
	}
}

func okExecutor() *mockExecutor {
	return &mockExecutor{execute: func(context.Context, string, string) (*store.Result, error) {
		return regionRows(), nil
	}}
}

// fakePNG returns deterministic PNG-signed bytes derived from the program.
func fakePNG(program string) []byte {
	return append([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, program...)
}

func okRenderer() chart.Renderer {
	return chart.RendererFunc(func(_ context.Context, program string) ([]byte, error) {
		return fakePNG(program), nil
	})
}

// stageRules answers every pipeline stage successfully.
func stageRules() []llmtest.Rule {
	return []llmtest.Rule{
		{Match: llmtest.When(querySystem, ""), Reply: func(llm.Request) llmtest.Reply {
			return llmtest.Reply{Text: "SELECT region, SUM(total) AS total FROM orders GROUP BY region;", Rationale: "sum per region"}
		}},
		{Match: llmtest.When(chartSystem, ""), Reply: llmtest.Fixed("```python\n" + testProgram + "\n```")},
		{Match: llmtest.When(captionSystem, ""), Reply: llmtest.Fixed(`('Sales by region', 'The US sells twice as much as the EU.')`)},
	}
}

func newSet(t *testing.T, gen llm.Generator) *agent.Set {
	t.Helper()
	set, err := agent.NewRegistry(gen, agent.Options{TextModel: "text", VisionModel: "vision", KPICount: 3}).Set()
	require.NoError(t, err)
	return set
}

func newPipeline(t *testing.T, gen llm.Generator, exec Executor, renderer chart.Renderer, timeout time.Duration) (*Pipeline, *runs.Ledger) {
	t.Helper()
	ledger := runs.NewLedger(0)
	return NewPipeline(newSet(t, gen), exec, renderer, ledger, nil, discardLogger(), timeout), ledger
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRequest() Request {
	return Request{Question: "total sales per region", Conn: "sqlite:///shop.db", Schema: shopSchema()}
}

// ---------------------------------------------------------------------------
// Run
// ---------------------------------------------------------------------------

func TestPipeline_Run_FullyPopulated(t *testing.T) {
	gen := llmtest.NewRouter(stageRules()...)
	var executed string
	exec := &mockExecutor{execute: func(_ context.Context, conn, stmt string) (*store.Result, error) {
		executed = conn + " | " + stmt
		return regionRows(), nil
	}}
	p, ledger := newPipeline(t, gen, exec, okRenderer(), time.Minute)

	got, err := p.Run(context.Background(), testRequest())
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, "total sales per region", got.Question)
	assert.Equal(t, "SELECT region, SUM(total) AS total FROM orders GROUP BY region", got.SQL)
	assert.Equal(t, "sum per region", got.Rationale)
	assert.Equal(t, "sqlite:///shop.db | "+got.SQL, executed)
	assert.Equal(t, regionRows(), got.Result)
	assert.Equal(t, testProgram, got.Program)
	assert.Equal(t, fakePNG(testProgram), got.Image)
	assert.NotEmpty(t, got.ImageBase64())
	assert.Equal(t, "Sales by region", got.Caption)
	assert.Equal(t, "The US sells twice as much as the EU.", got.Analysis)

	rec, err := ledger.Get(got.RunID)
	require.NoError(t, err)
	assert.Equal(t, runs.StateSucceeded, rec.State)
	assert.Equal(t, StateCaptioned.String(), rec.Stage)
	assert.Equal(t, runs.KindAsk, rec.Kind)

	calls := gen.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, "vision", calls[2].Model, "captions come from the multimodal model")
	assert.True(t, llmtest.HasImage(calls[2]))
}

func TestPipeline_Run_FailedStages(t *testing.T) {
	queryErr := &store.QueryError{Statement: "SELECT", Err: errors.New("no such table: sales")}

	tests := []struct {
		name      string
		rules     []llmtest.Rule
		exec      *mockExecutor
		renderer  chart.Renderer
		wantStage Stage
		wantKind  ErrorKind
		wantState string
	}{
		{
			name:      "multiple statements are rejected, not executed",
			rules:     []llmtest.Rule{{Match: llmtest.When(querySystem, ""), Reply: llmtest.Fixed("SELECT 1; SELECT 2;")}},
			wantStage: StageQuerySynthesis,
			wantKind:  KindMalformedGeneration,
		},
		{
			name:      "generation service unavailable",
			rules:     []llmtest.Rule{{Match: llmtest.When(querySystem, ""), Reply: llmtest.Fail(fmt.Errorf("%w: status 503", llm.ErrUnavailable))}},
			wantStage: StageQuerySynthesis,
			wantKind:  KindConnectivity,
		},
		{
			name: "store rejects statement",
			exec: &mockExecutor{execute: func(context.Context, string, string) (*store.Result, error) {
				return nil, queryErr
			}},
			wantStage: StageQueryExecution,
			wantKind:  KindQueryExecution,
			wantState: StateQuerySynthesized.String(),
		},
		{
			name: "store unreachable",
			exec: &mockExecutor{execute: func(context.Context, string, string) (*store.Result, error) {
				return nil, fmt.Errorf("store: open: %w", store.ErrUnreachable)
			}},
			wantStage: StageQueryExecution,
			wantKind:  KindConnectivity,
		},
		{
			name:      "empty chart program",
			rules:     []llmtest.Rule{{Match: llmtest.When(chartSystem, ""), Reply: llmtest.Fixed("```python\n```")}},
			wantStage: StageChartProgramSynthesis,
			wantKind:  KindMalformedGeneration,
			wantState: StateQueryExecuted.String(),
		},
		{
			name: "program never binds fig",
			renderer: chart.RendererFunc(func(context.Context, string) ([]byte, error) {
				return nil, fmt.Errorf("chart: %w", chart.ErrBinding)
			}),
			wantStage: StageChartRendering,
			wantKind:  KindChartBinding,
			wantState: StateChartProgramSynthesized.String(),
		},
		{
			name: "program raises",
			renderer: chart.RendererFunc(func(context.Context, string) ([]byte, error) {
				return nil, fmt.Errorf("chart: %w: ZeroDivisionError", chart.ErrExecution)
			}),
			wantStage: StageChartRendering,
			wantKind:  KindChartExecution,
		},
		{
			name:      "caption missing closing quote",
			rules:     []llmtest.Rule{{Match: llmtest.When(captionSystem, ""), Reply: llmtest.Fixed(`('Sales rising steadily', 'Revenue grew)`)}},
			wantStage: StageCaptionSynthesis,
			wantKind:  KindMalformedGeneration,
			wantState: StateChartRendered.String(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := llmtest.NewRouter(append(tt.rules, stageRules()...)...)
			exec := tt.exec
			if exec == nil {
				exec = okExecutor()
			}
			renderer := tt.renderer
			if renderer == nil {
				renderer = okRenderer()
			}
			p, ledger := newPipeline(t, gen, exec, renderer, time.Minute)

			got, err := p.Run(context.Background(), testRequest())
			assert.Nil(t, got, "no partial result on failure")
			require.Error(t, err)

			var se *StageError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.wantStage, se.Stage)
			assert.Equal(t, tt.wantKind, se.Kind)
			assert.NotEmpty(t, se.RunID)
			assert.Contains(t, se.UserMessage(), tt.wantStage.Title())

			rec, err := ledger.Get(se.RunID)
			require.NoError(t, err)
			assert.Equal(t, runs.StateFailed, rec.State)
			assert.Equal(t, tt.wantStage.String(), rec.FailedStage)
			assert.Equal(t, string(tt.wantKind), rec.ErrorKind)
			if tt.wantState != "" {
				assert.Equal(t, tt.wantState, rec.Stage)
			}
		})
	}
}

func TestPipeline_Run_MultipleStatementsNeverExecuted(t *testing.T) {
	gen := llmtest.NewRouter(llmtest.Rule{Match: llmtest.When(querySystem, ""), Reply: llmtest.Fixed("SELECT 1; SELECT 2;")})
	exec := &mockExecutor{execute: func(context.Context, string, string) (*store.Result, error) {
		t.Fatal("statement must not reach the store")
		return nil, nil
	}}
	p, _ := newPipeline(t, gen, exec, okRenderer(), time.Minute)

	_, err := p.Run(context.Background(), testRequest())
	require.Error(t, err)
}

func TestPipeline_Run_TimeoutAtStageInFlight(t *testing.T) {
	router := llmtest.NewRouter(stageRules()...)
	gen := llm.GeneratorFunc(func(ctx context.Context, req llm.Request) (*llm.Response, error) {
		if strings.Contains(llmtest.SystemText(req), chartSystem) {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return router.Generate(ctx, req)
	})
	p, ledger := newPipeline(t, gen, okExecutor(), okRenderer(), 50*time.Millisecond)

	_, err := p.Run(context.Background(), testRequest())
	var se *StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, StageChartProgramSynthesis, se.Stage)
	assert.Equal(t, KindTimeout, se.Kind)

	rec, err := ledger.Get(se.RunID)
	require.NoError(t, err)
	assert.Equal(t, string(KindTimeout), rec.ErrorKind)
}

func TestPipeline_Run_Idempotent(t *testing.T) {
	run := func() *Captioned {
		gen := llmtest.NewRouter(stageRules()...)
		p, _ := newPipeline(t, gen, okExecutor(), okRenderer(), time.Minute)
		got, err := p.Run(context.Background(), testRequest())
		require.NoError(t, err)
		return got
	}

	first, second := run(), run()
	assert.Equal(t, first.Image, second.Image)
	assert.Equal(t, first.Caption, second.Caption)
	assert.Equal(t, first.Analysis, second.Analysis)
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestPipeline_Run_EmitsProgress(t *testing.T) {
	gen := llmtest.NewRouter(stageRules()...)
	progress := NewProgressReporter()
	p := NewPipeline(newSet(t, gen), okExecutor(), okRenderer(), nil, progress, discardLogger(), 0)

	got, err := p.Run(context.Background(), testRequest())
	require.NoError(t, err)
	progress.Close()

	var complete []Stage
	for ev := range progress.Subscribe() {
		assert.Equal(t, got.RunID, ev.RunID)
		if ev.Status == ProgressComplete {
			complete = append(complete, ev.Stage)
		}
	}
	assert.Equal(t, []Stage{
		StageQuerySynthesis, StageQueryExecution, StageChartProgramSynthesis,
		StageChartRendering, StageCaptionSynthesis,
	}, complete)
}

func TestPipeline_Run_UsesDialectOfDescriptor(t *testing.T) {
	gen := llmtest.NewRouter(stageRules()...)
	p, _ := newPipeline(t, gen, okExecutor(), okRenderer(), time.Minute)

	req := testRequest()
	req.Conn = "postgres://u:p@localhost:5432/shop"
	_, err := p.Run(context.Background(), req)
	require.NoError(t, err)
	assert.Contains(t, llmtest.SystemText(gen.Calls()[0]), "PostgreSQL dialect")
}

// ---------------------------------------------------------------------------
// Enums
// ---------------------------------------------------------------------------

func TestStageAndStateNames(t *testing.T) {
	assert.Equal(t, "query-synthesis", StageQuerySynthesis.String())
	assert.Equal(t, "kpi-suggestion", StageKPISuggestion.String())
	assert.Equal(t, "unknown", Stage(99).String())
	assert.Equal(t, "Chart rendering", StageChartRendering.Title())

	assert.Equal(t, StateQuerySynthesized, StageQuerySynthesis.reached())
	assert.Equal(t, StateCaptioned, StageCaptionSynthesis.reached())
	assert.True(t, StateCaptioned.IsTerminal())
	assert.True(t, StateFailed.IsTerminal())
	assert.False(t, StateChartRendered.IsTerminal())
	assert.Equal(t, "Unknown", State(-1).String())
}
