// Package orchestrator runs the chart pipeline: query synthesis, query
// execution, chart program synthesis, sandboxed rendering and caption
// synthesis. It also fans the pipeline out over many topics and composes
// dashboards from the results.
package orchestrator

import (
	"context"
	"time"

	"github.com/dusk-indust/chartwise/internal/store"
)

// Stage identifies a unit of work that can fail on its own. The first five
// are the stages of one pipeline run.
type Stage int

const (
	StageQuerySynthesis Stage = iota
	StageQueryExecution
	StageChartProgramSynthesis
	StageChartRendering
	StageCaptionSynthesis
	StageIdeaSynthesis
	StageTemplateSynthesis
	StageSchemaSummary
	StageKPISuggestion
)

func (s Stage) String() string {
	names := [...]string{
		"query-synthesis",
		"query-execution",
		"chart-program-synthesis",
		"chart-rendering",
		"caption-synthesis",
		"idea-synthesis",
		"template-synthesis",
		"schema-summary",
		"kpi-suggestion",
	}
	if s >= 0 && int(s) < len(names) {
		return names[s]
	}
	return "unknown"
}

// Title is the stage name as shown to users.
func (s Stage) Title() string {
	titles := [...]string{
		"Query synthesis",
		"Query execution",
		"Chart program synthesis",
		"Chart rendering",
		"Caption synthesis",
		"Idea synthesis",
		"Template synthesis",
		"Schema summary",
		"KPI suggestion",
	}
	if s >= 0 && int(s) < len(titles) {
		return titles[s]
	}
	return "Unknown stage"
}

// State is the position of a pipeline run in its linear state machine.
type State int

const (
	StateStart State = iota
	StateQuerySynthesized
	StateQueryExecuted
	StateChartProgramSynthesized
	StateChartRendered
	StateCaptioned
	StateFailed
)

func (s State) String() string {
	names := [...]string{
		"Start",
		"QuerySynthesized",
		"QueryExecuted",
		"ChartProgramSynthesized",
		"ChartRendered",
		"Captioned",
		"Failed",
	}
	if s >= 0 && int(s) < len(names) {
		return names[s]
	}
	return "Unknown"
}

// IsTerminal reports whether the run can make no further transition.
func (s State) IsTerminal() bool {
	return s == StateCaptioned || s == StateFailed
}

// reached returns the state a run is in after stage s succeeds.
func (s Stage) reached() State {
	if s >= StageQuerySynthesis && s <= StageCaptionSynthesis {
		return State(int(s) + 1)
	}
	return StateFailed
}

// ProgressEvent is emitted while a run, batch or dashboard is executing.
type ProgressEvent struct {
	RunID   string
	Stage   Stage
	Status  ProgressStatus
	Message string
}

// ProgressStatus is the state of a stage within a run.
type ProgressStatus string

const (
	ProgressPending  ProgressStatus = "pending"
	ProgressWorking  ProgressStatus = "working"
	ProgressComplete ProgressStatus = "complete"
	ProgressFailed   ProgressStatus = "failed"
)

// Config holds the runtime limits of the orchestrator.
type Config struct {
	// RunTimeout bounds one pipeline run, and each single-call operation
	// (summary, KPIs, ideas, templates). Zero disables the bound.
	RunTimeout time.Duration

	// Workers bounds concurrent pipeline runs in a batch.
	Workers int

	// IdeaCount is the default number of dashboard ideas.
	IdeaCount int

	// KPITemplate is the question template used to chart suggested KPIs.
	KPITemplate string
}

const (
	defaultWorkers     = 4
	defaultIdeaCount   = 5
	defaultKPITemplate = "For the given KPI, plot a graph highlighting the specific datapoints"
)

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = defaultWorkers
	}
	if c.IdeaCount <= 0 {
		c.IdeaCount = defaultIdeaCount
	}
	if c.KPITemplate == "" {
		c.KPITemplate = defaultKPITemplate
	}
	return c
}

// Orchestrator is the surface the front-ends drive.
type Orchestrator interface {
	// Ask runs one pipeline.
	Ask(ctx context.Context, req Request) (*Captioned, error)

	// Charts runs one pipeline per topic. It never fails as a whole.
	Charts(ctx context.Context, batch Batch) *BatchResult

	// Dashboard synthesizes ideas, charts them and composes the page.
	Dashboard(ctx context.Context, req DashboardRequest) (*Dashboard, error)

	// Summarize describes a schema in plain text.
	Summarize(ctx context.Context, schema store.Schema) (string, error)

	// SuggestKPIs proposes plottable KPIs for the stated goals.
	SuggestKPIs(ctx context.Context, schema store.Schema, goals string) ([]string, error)

	// Progress returns a channel that emits progress events.
	Progress() <-chan ProgressEvent
}
