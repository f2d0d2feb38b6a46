package mcptools

import (
	"time"

	"github.com/dusk-indust/chartwise/internal/graph"
	"github.com/dusk-indust/chartwise/internal/runs"
	"github.com/dusk-indust/chartwise/internal/store"
)

// --- MCP tool types ---
// Every tool taking a conn falls back to the store configured at startup.

// DescribeSchemaInput is the input for the describe_schema tool.
type DescribeSchemaInput struct {
	Conn string `json:"conn,omitempty" jsonschema:"store descriptor, e.g. sqlite:///shop.db or postgres://... (default: configured database)"`
}

// DescribeSchemaOutput is the result of the describe_schema tool.
type DescribeSchemaOutput struct {
	Tables    []string     `json:"tables"`
	Schema    store.Schema `json:"schema"`
	Relations string       `json:"relations,omitempty"`
}

// AskInput is the input for the ask tool.
type AskInput struct {
	Question string `json:"question" jsonschema:"natural-language question about the data"`
	Conn     string `json:"conn,omitempty" jsonschema:"store descriptor (default: configured database)"`
}

// AskOutput is the result of the ask tool. The chart itself is returned as
// PNG image content.
type AskOutput struct {
	RunID     string   `json:"runId"`
	SQL       string   `json:"sql"`
	Rationale string   `json:"rationale,omitempty"`
	Columns   []string `json:"columns"`
	RowCount  int      `json:"rowCount"`
	Caption   string   `json:"caption"`
	Analysis  string   `json:"analysis"`
}

// SummarizeSchemaInput is the input for the summarize_schema tool.
type SummarizeSchemaInput struct {
	Conn string `json:"conn,omitempty" jsonschema:"store descriptor (default: configured database)"`
}

// SummarizeSchemaOutput is the result of the summarize_schema tool.
type SummarizeSchemaOutput struct {
	Summary string `json:"summary"`
}

// SuggestKPIsInput is the input for the suggest_kpis tool.
type SuggestKPIsInput struct {
	Goals string `json:"goals" jsonschema:"business goals the KPIs should measure"`
	Conn  string `json:"conn,omitempty" jsonschema:"store descriptor (default: configured database)"`
}

// SuggestKPIsOutput is the result of the suggest_kpis tool.
type SuggestKPIsOutput struct {
	KPIs []string `json:"kpis"`
}

// ChartTopicsInput is the input for the chart_topics tool.
type ChartTopicsInput struct {
	Topics   []string `json:"topics" jsonschema:"one chart is produced per topic"`
	Template string   `json:"template,omitempty" jsonschema:"question template; {topic} is replaced by the topic, otherwise the topic is appended"`
	Conn     string   `json:"conn,omitempty" jsonschema:"store descriptor (default: configured database)"`
}

// ChartTopicsOutput is the result of the chart_topics tool. Chart images
// follow as image content in topic order.
type ChartTopicsOutput struct {
	RunID    string           `json:"runId"`
	Charts   []ChartSummary   `json:"charts"`
	Failures []FailureSummary `json:"failures,omitempty"`
}

// ChartSummary describes one rendered chart.
type ChartSummary struct {
	RunID    string `json:"runId"`
	Question string `json:"question"`
	SQL      string `json:"sql"`
	Caption  string `json:"caption"`
	Analysis string `json:"analysis"`
}

// FailureSummary describes one topic that produced no chart.
type FailureSummary struct {
	Index   int    `json:"index"`
	Topic   string `json:"topic"`
	Stage   string `json:"stage"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// BuildDashboardInput is the input for the build_dashboard tool.
type BuildDashboardInput struct {
	Ideas int    `json:"ideas,omitempty" jsonschema:"number of chart ideas (default: configured idea count)"`
	Conn  string `json:"conn,omitempty" jsonschema:"store descriptor (default: configured database)"`
}

// BuildDashboardOutput is the result of the build_dashboard tool.
type BuildDashboardOutput struct {
	RunID    string           `json:"runId"`
	Ideas    []string         `json:"ideas"`
	Cards    int              `json:"cards"`
	Failures []FailureSummary `json:"failures,omitempty"`
	Issues   []string         `json:"issues,omitempty"`
	HTML     string           `json:"html"`
}

// JoinPathInput is the input for the join_path tool.
type JoinPathInput struct {
	From string `json:"from" jsonschema:"table to start from"`
	To   string `json:"to" jsonschema:"table to reach"`
	Conn string `json:"conn,omitempty" jsonschema:"store descriptor (default: configured database)"`
}

// JoinPathOutput is the result of the join_path tool.
type JoinPathOutput struct {
	Tables     []string `json:"tables"`
	Conditions []string `json:"conditions"`
	Depth      int      `json:"depth"`
}

// SchemaClustersInput is the input for the schema_clusters tool.
type SchemaClustersInput struct {
	Conn string `json:"conn,omitempty" jsonschema:"store descriptor (default: configured database)"`
}

// SchemaClustersOutput is the result of the schema_clusters tool.
type SchemaClustersOutput struct {
	Clusters []graph.ClusterNode `json:"clusters"`
	Stats    graph.GraphStats    `json:"stats"`
}

// ListRunsInput is the input for the list_runs tool.
type ListRunsInput struct {
	Kind      string `json:"kind,omitempty" jsonschema:"ask, batch, dashboard, summary or kpi"`
	State     string `json:"state,omitempty" jsonschema:"running, succeeded or failed"`
	ParentID  string `json:"parentId,omitempty" jsonschema:"only runs started by this batch or dashboard"`
	PageToken string `json:"pageToken,omitempty" jsonschema:"nextPageToken of the previous page"`
	PageSize  int    `json:"pageSize,omitempty" jsonschema:"maximum runs per page (default: all)"`
}

// ListRunsOutput is the result of the list_runs tool.
type ListRunsOutput struct {
	Runs          []RunSummary `json:"runs"`
	TotalSize     int          `json:"totalSize"`
	NextPageToken string       `json:"nextPageToken,omitempty"`
}

// RunSummary is a ledger record with RFC 3339 timestamps.
type RunSummary struct {
	ID          string `json:"id"`
	ParentID    string `json:"parentId,omitempty"`
	Kind        string `json:"kind"`
	Question    string `json:"question,omitempty"`
	State       string `json:"state"`
	Stage       string `json:"stage,omitempty"`
	FailedStage string `json:"failedStage,omitempty"`
	ErrorKind   string `json:"errorKind,omitempty"`
	Message     string `json:"message,omitempty"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
	DurationMS  int64  `json:"durationMs"`
}

func summarizeRun(r runs.Record) RunSummary {
	return RunSummary{
		ID:          r.ID,
		ParentID:    r.ParentID,
		Kind:        string(r.Kind),
		Question:    r.Question,
		State:       string(r.State),
		Stage:       r.Stage,
		FailedStage: r.FailedStage,
		ErrorKind:   r.ErrorKind,
		Message:     r.Message,
		CreatedAt:   r.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt:   r.UpdatedAt.Format(time.RFC3339Nano),
		DurationMS:  r.Duration().Milliseconds(),
	}
}

// GetRunInput is the input for the get_run tool.
type GetRunInput struct {
	ID string `json:"id" jsonschema:"run ID"`
}

// GetRunOutput is the result of the get_run tool.
type GetRunOutput struct {
	Run RunSummary `json:"run"`
}
