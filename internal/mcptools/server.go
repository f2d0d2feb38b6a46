package mcptools

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// version is set by the linker at build time.
var version = "dev"

// NewChartMCPServer creates an MCP server with all chart tools registered.
func NewChartMCPServer(svc *ChartService) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "chartwise",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "describe_schema",
		Description: "Introspect a database and return its schema: every table with its ordered columns, types, nullability, defaults and foreign keys, plus the foreign-key relations.",
	}, svc.DescribeSchema)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ask",
		Description: "Answer a natural-language question with a chart: generate SQL, run it, generate and render a matplotlib program, and caption the image. Returns the PNG and the SQL, caption and analysis.",
	}, svc.Ask)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "summarize_schema",
		Description: "Describe the tables, relations and columns of a database in plain text.",
	}, svc.SummarizeSchema)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "suggest_kpis",
		Description: "Propose plottable KPIs for business goals, given the database schema.",
	}, svc.SuggestKPIs)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "chart_topics",
		Description: "Produce one chart per topic, concurrently. Topics that fail are reported and do not affect the others.",
	}, svc.ChartTopics)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "build_dashboard",
		Description: "Propose chart ideas for the database, chart each one and compose them into a single HTML dashboard page.",
	}, svc.BuildDashboard)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "join_path",
		Description: "Find the shortest chain of foreign keys joining two tables, with the join conditions.",
	}, svc.JoinPath)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "schema_clusters",
		Description: "Return the subject areas of the schema: groups of tables connected by foreign keys, with cohesion scores.",
	}, svc.SchemaClusters)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_runs",
		Description: "List pipeline runs, batches and dashboards of this server, filtered by kind, state or parent, with pagination.",
	}, svc.ListRuns)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_run",
		Description: "Get one run by ID: its state, the stage it reached or failed at, and its message.",
	}, svc.GetRun)

	return server
}

// RunStdio runs the MCP server on stdio transport, blocking until stdin is
// closed or the context is cancelled.
func RunStdio(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}

// RunHTTP serves the MCP server over streamable HTTP on addr until ctx is
// cancelled.
func RunHTTP(ctx context.Context, server *mcp.Server, addr string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	handler := mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Shutdown gracefully when context is cancelled.
	go func() {
		<-ctx.Done()
		if err := httpServer.Shutdown(context.Background()); err != nil {
			logger.Warn("mcp http shutdown", "error", err)
		}
	}()

	logger.Info("mcp server listening", "addr", addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
