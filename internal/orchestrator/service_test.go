package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/chartwise/internal/llm"
	"github.com/dusk-indust/chartwise/internal/llm/llmtest"
	"github.com/dusk-indust/chartwise/internal/runs"
)

func newService(t *testing.T, gen llm.Generator) *Service {
	t.Helper()
	s := New(Deps{
		Agents:   newSet(t, gen),
		Executor: okExecutor(),
		Renderer: okRenderer(),
		Logger:   discardLogger(),
		Config:   Config{RunTimeout: time.Minute, Workers: 2},
	})
	t.Cleanup(s.Close)
	return s
}

func TestService_Defaults(t *testing.T) {
	s := newService(t, llmtest.NewRouter())
	cfg := s.Config()
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, 5, cfg.IdeaCount)
	assert.Equal(t, "For the given KPI, plot a graph highlighting the specific datapoints", cfg.KPITemplate)
	assert.NotNil(t, s.Ledger())
}

func TestService_Ask(t *testing.T) {
	s := newService(t, llmtest.NewRouter(stageRules()...))
	events := s.Progress()

	got, err := s.Ask(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "Sales by region", got.Caption)

	rec, err := s.Ledger().Get(got.RunID)
	require.NoError(t, err)
	assert.Equal(t, runs.KindAsk, rec.Kind)
	assert.Equal(t, runs.StateSucceeded, rec.State)

	select {
	case ev := <-events:
		assert.Equal(t, got.RunID, ev.RunID)
	default:
		t.Fatal("expected progress events")
	}
}

func TestService_Summarize(t *testing.T) {
	gen := llmtest.NewRouter(llmtest.Rule{
		Match: llmtest.When(summarySystem, "orders.customer_id = customers.id"),
		Reply: llmtest.Fixed("A shop: customers place orders."),
	})
	s := newService(t, gen)

	text, err := s.Summarize(context.Background(), shopSchema())
	require.NoError(t, err)
	assert.Equal(t, "A shop: customers place orders.", text)

	page, err := s.Ledger().List(runs.Filter{Kind: runs.KindSummary})
	require.NoError(t, err)
	require.Len(t, page.Runs, 1)
	assert.Equal(t, runs.StateSucceeded, page.Runs[0].State)
}

func TestService_SummarizeFailure(t *testing.T) {
	s := newService(t, llmtest.NewRouter(llmtest.Rule{
		Match: llmtest.When(summarySystem, ""),
		Reply: llmtest.Fail(llm.ErrUnavailable),
	}))

	_, err := s.Summarize(context.Background(), shopSchema())
	var se *StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, StageSchemaSummary, se.Stage)
	assert.Equal(t, KindConnectivity, se.Kind)

	rec, err := s.Ledger().Get(se.RunID)
	require.NoError(t, err)
	assert.Equal(t, runs.StateFailed, rec.State)
	assert.Equal(t, string(KindConnectivity), rec.ErrorKind)
}

func TestService_SuggestKPIs(t *testing.T) {
	s := newService(t, llmtest.NewRouter(llmtest.Rule{
		Match: llmtest.When(kpiSystem, "grow repeat purchases"),
		Reply: llmtest.Fixed(`['Repeat customers per month', 'Average order value', 'Orders per customer']`),
	}))

	kpis, err := s.SuggestKPIs(context.Background(), shopSchema(), "grow repeat purchases")
	require.NoError(t, err)
	assert.Equal(t, []string{"Repeat customers per month", "Average order value", "Orders per customer"}, kpis)

	page, err := s.Ledger().List(runs.Filter{Kind: runs.KindKPI})
	require.NoError(t, err)
	require.Len(t, page.Runs, 1)
	assert.Equal(t, "3 KPIs", page.Runs[0].Message)
}

func TestService_SuggestKPIs_WrongCount(t *testing.T) {
	s := newService(t, llmtest.NewRouter(llmtest.Rule{
		Match: llmtest.When(kpiSystem, ""),
		Reply: llmtest.Fixed(`['Average order value']`),
	}))

	_, err := s.SuggestKPIs(context.Background(), shopSchema(), "growth")
	var se *StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, StageKPISuggestion, se.Stage)
	assert.Equal(t, KindMalformedGeneration, se.Kind)
}

func TestService_KPICharts(t *testing.T) {
	rules := append([]llmtest.Rule{{
		Match: llmtest.When(kpiSystem, ""),
		Reply: llmtest.Fixed(`['Average order value', 'Orders per region', 'Revenue per customer']`),
	}}, stageRules()...)
	s := newService(t, llmtest.NewRouter(rules...))

	kpis, res, err := s.KPICharts(context.Background(), "sqlite:///shop.db", shopSchema(), "growth")
	require.NoError(t, err)
	require.Len(t, kpis, 3)
	require.Len(t, res.Charts, 3)
	assert.Empty(t, res.Failures)
	assert.Equal(t,
		"For the given KPI, plot a graph highlighting the specific datapoints Orders per region",
		res.Charts[1].Question)
}

func TestService_Dashboard(t *testing.T) {
	s := newService(t, llmtest.NewRouter(dashboardRules()...))

	d, err := s.Dashboard(context.Background(), dashboardRequest())
	require.NoError(t, err)
	assert.Len(t, d.Cards, 3)
	assert.Empty(t, d.Issues)
}

func TestDescribeSchema(t *testing.T) {
	text, err := DescribeSchema(context.Background(), shopSchema())
	require.NoError(t, err)
	assert.Contains(t, text, "Relations:")
	assert.Contains(t, text, "orders.customer_id = customers.id")
}
