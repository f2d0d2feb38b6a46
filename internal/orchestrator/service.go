package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dusk-indust/chartwise/internal/agent"
	"github.com/dusk-indust/chartwise/internal/chart"
	"github.com/dusk-indust/chartwise/internal/graph"
	"github.com/dusk-indust/chartwise/internal/runs"
	"github.com/dusk-indust/chartwise/internal/store"
)

var _ Orchestrator = (*Service)(nil)

// Deps are the collaborators of a Service.
type Deps struct {
	Agents   *agent.Set
	Executor Executor
	Renderer chart.Renderer
	Ledger   *runs.Ledger // nil: a fresh ledger
	Logger   *slog.Logger // nil: slog.Default()
	Config   Config
}

// Service wires the pipeline, fan-out, composer and the single-call agents
// behind one Orchestrator.
type Service struct {
	cfg      Config
	agents   *agent.Set
	pipeline *Pipeline
	fanout   *FanOut
	composer *Composer
	ledger   *runs.Ledger
	progress *ProgressReporter
	logger   *slog.Logger
}

// New creates a Service.
func New(d Deps) *Service {
	cfg := d.Config.withDefaults()
	ledger := d.Ledger
	if ledger == nil {
		ledger = runs.NewLedger(0)
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	progress := NewProgressReporter()
	pipeline := NewPipeline(d.Agents, d.Executor, d.Renderer, ledger, progress, logger, cfg.RunTimeout)
	fanout := NewFanOut(pipeline, cfg.Workers, ledger, logger)
	return &Service{
		cfg:      cfg,
		agents:   d.Agents,
		pipeline: pipeline,
		fanout:   fanout,
		composer: NewComposer(d.Agents, fanout, cfg.IdeaCount, cfg.RunTimeout, ledger, logger),
		ledger:   ledger,
		progress: progress,
		logger:   logger,
	}
}

// Ask runs one pipeline.
func (s *Service) Ask(ctx context.Context, req Request) (*Captioned, error) {
	return s.pipeline.Run(ctx, req)
}

// Charts runs one pipeline per topic.
func (s *Service) Charts(ctx context.Context, batch Batch) *BatchResult {
	return s.fanout.Run(ctx, batch)
}

// Dashboard composes a dashboard. When req.Relations is empty it is derived
// from the schema graph.
func (s *Service) Dashboard(ctx context.Context, req DashboardRequest) (*Dashboard, error) {
	if req.Relations == "" {
		req.Relations = s.relations(ctx, req.Schema)
	}
	return s.composer.Compose(ctx, req)
}

// Summarize describes the schema, with subject areas and relations from the
// schema graph as extra context.
func (s *Service) Summarize(ctx context.Context, schema store.Schema) (string, error) {
	id := s.ledger.Start(runs.KindSummary, "", "")
	ctx, cancel := s.bound(ctx)
	defer cancel()

	text, err := s.agents.Summary.Summarize(ctx, schema, s.relations(ctx, schema))
	if err != nil {
		return "", s.fail(ctx, id, StageSchemaSummary, err)
	}
	_ = s.ledger.Succeed(id, "")
	return text, nil
}

// SuggestKPIs proposes plottable KPIs for goals.
func (s *Service) SuggestKPIs(ctx context.Context, schema store.Schema, goals string) ([]string, error) {
	id := s.ledger.Start(runs.KindKPI, goals, "")
	ctx, cancel := s.bound(ctx)
	defer cancel()

	kpis, err := s.agents.KPI.Suggest(ctx, schema, goals)
	if err != nil {
		return nil, s.fail(ctx, id, StageKPISuggestion, err)
	}
	_ = s.ledger.Succeed(id, fmt.Sprintf("%d KPIs", len(kpis)))
	return kpis, nil
}

// KPICharts suggests KPIs for goals and charts each one with the configured
// KPI template.
func (s *Service) KPICharts(ctx context.Context, conn string, schema store.Schema, goals string) ([]string, *BatchResult, error) {
	kpis, err := s.SuggestKPIs(ctx, schema, goals)
	if err != nil {
		return nil, nil, err
	}
	res := s.fanout.Run(ctx, Batch{Topics: kpis, Template: s.cfg.KPITemplate, Conn: conn, Schema: schema})
	return kpis, res, nil
}

// Progress returns a channel that emits progress events of every run.
func (s *Service) Progress() <-chan ProgressEvent {
	return s.progress.Subscribe()
}

// Ledger returns the run ledger.
func (s *Service) Ledger() *runs.Ledger {
	return s.ledger
}

// Config returns the effective configuration.
func (s *Service) Config() Config {
	return s.cfg
}

// Close shuts down the progress reporter.
func (s *Service) Close() {
	s.progress.Close()
}

func (s *Service) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.RunTimeout > 0 {
		return context.WithTimeout(ctx, s.cfg.RunTimeout)
	}
	return context.WithCancel(ctx)
}

func (s *Service) fail(ctx context.Context, runID string, stage Stage, err error) error {
	se := classify(ctx, stage, err)
	se.RunID = runID
	_ = s.ledger.Fail(runID, stage.String(), string(se.Kind), se.UserMessage())
	return se
}

// relations describes the schema graph; failures only lose the context.
func (s *Service) relations(ctx context.Context, schema store.Schema) string {
	text, err := DescribeSchema(ctx, schema)
	if err != nil {
		s.logger.Warn("schema graph unavailable", "error", err)
		return ""
	}
	return text
}

// DescribeSchema loads schema into a fresh schema graph and returns its
// subject areas and relations, or "" when it has none.
func DescribeSchema(ctx context.Context, schema store.Schema) (string, error) {
	g, err := graph.Open()
	if err != nil {
		return "", fmt.Errorf("orchestrator: open schema graph: %w", err)
	}
	defer g.Close()

	if _, err := graph.Build(ctx, g, schema); err != nil {
		return "", fmt.Errorf("orchestrator: build schema graph: %w", err)
	}
	return graph.Describe(ctx, g)
}
