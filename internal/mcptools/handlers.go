package mcptools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dusk-indust/chartwise/internal/graph"
	"github.com/dusk-indust/chartwise/internal/orchestrator"
	"github.com/dusk-indust/chartwise/internal/runs"
	"github.com/dusk-indust/chartwise/internal/store"
)

// SchemaSource introspects the store named by a descriptor.
type SchemaSource interface {
	Introspect(ctx context.Context, conn string) (store.Schema, error)
}

var _ SchemaSource = (*store.Pools)(nil)

// ChartService handles MCP tool calls. It wraps an Orchestrator for the
// generation tools and builds a fresh schema graph for the graph tools.
type ChartService struct {
	orch    orchestrator.Orchestrator
	schemas SchemaSource
	ledger  *runs.Ledger
	conn    string
	logger  *slog.Logger
}

// NewChartService creates a ChartService. conn is the default store
// descriptor; logger may be nil.
func NewChartService(orch orchestrator.Orchestrator, schemas SchemaSource, ledger *runs.Ledger, conn string, logger *slog.Logger) *ChartService {
	if ledger == nil {
		ledger = runs.NewLedger(0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ChartService{orch: orch, schemas: schemas, ledger: ledger, conn: conn, logger: logger}
}

// DescribeSchema introspects the store and returns its Schema Document.
func (s *ChartService) DescribeSchema(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input DescribeSchemaInput,
) (*mcp.CallToolResult, DescribeSchemaOutput, error) {
	conn, schema, err := s.schema(ctx, input.Conn)
	if err != nil {
		return nil, DescribeSchemaOutput{}, err
	}
	relations, err := orchestrator.DescribeSchema(ctx, schema)
	if err != nil {
		s.logger.Warn("schema graph unavailable", "conn", conn, "error", err)
	}
	return nil, DescribeSchemaOutput{
		Tables:    schema.TableNames(),
		Schema:    schema,
		Relations: relations,
	}, nil
}

// Ask runs one pipeline and returns the chart as PNG image content.
func (s *ChartService) Ask(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	if input.Question == "" {
		return nil, AskOutput{}, fmt.Errorf("question is required")
	}
	conn, schema, err := s.schema(ctx, input.Conn)
	if err != nil {
		return nil, AskOutput{}, err
	}

	c, err := s.orch.Ask(ctx, orchestrator.Request{Question: input.Question, Conn: conn, Schema: schema})
	if err != nil {
		return nil, AskOutput{}, userError(err)
	}

	out := AskOutput{
		RunID:     c.RunID,
		SQL:       c.SQL,
		Rationale: c.Rationale,
		Columns:   c.Result.Columns,
		RowCount:  len(c.Result.Rows),
		Caption:   c.Caption,
		Analysis:  c.Analysis,
	}
	res := &mcp.CallToolResult{Content: []mcp.Content{
		&mcp.TextContent{Text: c.Caption + "\n\n" + c.Analysis},
		&mcp.ImageContent{Data: c.Image, MIMEType: "image/png"},
	}}
	return res, out, nil
}

// SummarizeSchema describes the store's schema in plain text.
func (s *ChartService) SummarizeSchema(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SummarizeSchemaInput,
) (*mcp.CallToolResult, SummarizeSchemaOutput, error) {
	_, schema, err := s.schema(ctx, input.Conn)
	if err != nil {
		return nil, SummarizeSchemaOutput{}, err
	}
	text, err := s.orch.Summarize(ctx, schema)
	if err != nil {
		return nil, SummarizeSchemaOutput{}, userError(err)
	}
	return nil, SummarizeSchemaOutput{Summary: text}, nil
}

// SuggestKPIs proposes KPIs for the given goals.
func (s *ChartService) SuggestKPIs(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SuggestKPIsInput,
) (*mcp.CallToolResult, SuggestKPIsOutput, error) {
	if input.Goals == "" {
		return nil, SuggestKPIsOutput{}, fmt.Errorf("goals is required")
	}
	_, schema, err := s.schema(ctx, input.Conn)
	if err != nil {
		return nil, SuggestKPIsOutput{}, err
	}
	kpis, err := s.orch.SuggestKPIs(ctx, schema, input.Goals)
	if err != nil {
		return nil, SuggestKPIsOutput{}, userError(err)
	}
	return nil, SuggestKPIsOutput{KPIs: kpis}, nil
}

// ChartTopics charts every topic. Failed topics are reported, not returned
// as a tool error.
func (s *ChartService) ChartTopics(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ChartTopicsInput,
) (*mcp.CallToolResult, ChartTopicsOutput, error) {
	if len(input.Topics) == 0 {
		return nil, ChartTopicsOutput{}, fmt.Errorf("topics is required")
	}
	conn, schema, err := s.schema(ctx, input.Conn)
	if err != nil {
		return nil, ChartTopicsOutput{}, err
	}

	batch := s.orch.Charts(ctx, orchestrator.Batch{
		Topics:   input.Topics,
		Template: input.Template,
		Conn:     conn,
		Schema:   schema,
	})

	out := ChartTopicsOutput{RunID: batch.RunID, Charts: []ChartSummary{}, Failures: failures(batch.Failures)}
	res := &mcp.CallToolResult{Content: []mcp.Content{
		&mcp.TextContent{Text: fmt.Sprintf("%d of %d charts rendered", len(batch.Charts), len(input.Topics))},
	}}
	for _, c := range batch.Charts {
		out.Charts = append(out.Charts, ChartSummary{
			RunID:    c.RunID,
			Question: c.Question,
			SQL:      c.SQL,
			Caption:  c.Caption,
			Analysis: c.Analysis,
		})
		res.Content = append(res.Content, &mcp.ImageContent{Data: c.Image, MIMEType: "image/png"})
	}
	return res, out, nil
}

// BuildDashboard composes an overview dashboard and returns its markup.
func (s *ChartService) BuildDashboard(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input BuildDashboardInput,
) (*mcp.CallToolResult, BuildDashboardOutput, error) {
	conn, schema, err := s.schema(ctx, input.Conn)
	if err != nil {
		return nil, BuildDashboardOutput{}, err
	}
	d, err := s.orch.Dashboard(ctx, orchestrator.DashboardRequest{Conn: conn, Schema: schema, Ideas: input.Ideas})
	if err != nil {
		return nil, BuildDashboardOutput{}, userError(err)
	}

	out := BuildDashboardOutput{
		RunID:    d.RunID,
		Ideas:    d.Ideas,
		Cards:    len(d.Cards),
		Failures: failures(d.Failures),
		HTML:     d.Markup,
	}
	for _, issue := range d.Issues {
		out.Issues = append(out.Issues, issue.Check+": "+issue.Description)
	}
	return nil, out, nil
}

// JoinPath finds the shortest foreign-key chain between two tables.
func (s *ChartService) JoinPath(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input JoinPathInput,
) (*mcp.CallToolResult, JoinPathOutput, error) {
	if input.From == "" || input.To == "" {
		return nil, JoinPathOutput{}, fmt.Errorf("from and to are required")
	}
	_, schema, err := s.schema(ctx, input.Conn)
	if err != nil {
		return nil, JoinPathOutput{}, err
	}

	var out JoinPathOutput
	err = withGraph(ctx, schema, func(g graph.Store) error {
		path, err := graph.FindJoinPath(ctx, g, input.From, input.To)
		if err != nil {
			return err
		}
		out = JoinPathOutput{Tables: path.Tables, Conditions: []string{}, Depth: path.Depth}
		for _, e := range path.Joins {
			out.Conditions = append(out.Conditions, e.Condition())
		}
		return nil
	})
	if err != nil {
		return nil, JoinPathOutput{}, fmt.Errorf("join path: %w", err)
	}
	return nil, out, nil
}

// SchemaClusters returns the subject areas of the schema.
func (s *ChartService) SchemaClusters(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SchemaClustersInput,
) (*mcp.CallToolResult, SchemaClustersOutput, error) {
	_, schema, err := s.schema(ctx, input.Conn)
	if err != nil {
		return nil, SchemaClustersOutput{}, err
	}

	var out SchemaClustersOutput
	err = withGraph(ctx, schema, func(g graph.Store) error {
		clusters, err := g.GetClusters(ctx)
		if err != nil {
			return err
		}
		stats, err := g.Stats(ctx)
		if err != nil {
			return err
		}
		out = SchemaClustersOutput{Clusters: clusters, Stats: *stats}
		return nil
	})
	if err != nil {
		return nil, SchemaClustersOutput{}, fmt.Errorf("schema clusters: %w", err)
	}
	if out.Clusters == nil {
		out.Clusters = []graph.ClusterNode{}
	}
	return nil, out, nil
}

// ListRuns lists ledger records, filtered and paginated.
func (s *ChartService) ListRuns(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input ListRunsInput,
) (*mcp.CallToolResult, ListRunsOutput, error) {
	page, err := s.ledger.List(runs.Filter{
		Kind:      runs.Kind(input.Kind),
		State:     runs.State(input.State),
		ParentID:  input.ParentID,
		PageToken: input.PageToken,
		PageSize:  input.PageSize,
	})
	if err != nil {
		return nil, ListRunsOutput{}, err
	}
	out := ListRunsOutput{Runs: make([]RunSummary, 0, len(page.Runs)), TotalSize: page.TotalSize, NextPageToken: page.NextPageToken}
	for _, r := range page.Runs {
		out.Runs = append(out.Runs, summarizeRun(r))
	}
	return nil, out, nil
}

// GetRun returns one ledger record.
func (s *ChartService) GetRun(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input GetRunInput,
) (*mcp.CallToolResult, GetRunOutput, error) {
	if input.ID == "" {
		return nil, GetRunOutput{}, fmt.Errorf("id is required")
	}
	rec, err := s.ledger.Get(input.ID)
	if err != nil {
		return nil, GetRunOutput{}, err
	}
	return nil, GetRunOutput{Run: summarizeRun(*rec)}, nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (s *ChartService) schema(ctx context.Context, conn string) (string, store.Schema, error) {
	if conn == "" {
		conn = s.conn
	}
	if conn == "" {
		return "", nil, fmt.Errorf("conn is required: no database configured")
	}
	schema, err := s.schemas.Introspect(ctx, conn)
	if err != nil {
		return "", nil, fmt.Errorf("introspect: %w", err)
	}
	return conn, schema, nil
}

// withGraph loads schema into a fresh graph store for the duration of fn.
func withGraph(ctx context.Context, schema store.Schema, fn func(graph.Store) error) error {
	g, err := graph.Open()
	if err != nil {
		return err
	}
	defer g.Close()
	if _, err := graph.Build(ctx, g, schema); err != nil {
		return err
	}
	return fn(g)
}

// userError replaces a stage failure with its user-facing message.
func userError(err error) error {
	var se *orchestrator.StageError
	if errors.As(err, &se) {
		return fmt.Errorf("%s (run %s)", se.UserMessage(), se.RunID)
	}
	return err
}

func failures(fs []orchestrator.Failure) []FailureSummary {
	var out []FailureSummary
	for _, f := range fs {
		out = append(out, FailureSummary{
			Index:   f.Index,
			Topic:   f.Topic,
			Stage:   f.Err.Stage.String(),
			Kind:    string(f.Err.Kind),
			Message: f.Message(),
		})
	}
	return out
}
