package main

import "github.com/alecthomas/kong"

// Globals are flags shared by every command.
type Globals struct {
	Dir     string `default:"." help:"Project directory holding chartwise.yml"`
	DB      string `name:"db" short:"d" help:"Store descriptor, e.g. sqlite:///shop.db (overrides config and CHARTWISE_DB)"`
	Python  string `help:"Python interpreter used to render charts (overrides config)"`
	Workers int    `help:"Concurrent chart pipelines (overrides config)"`
	Verbose bool   `short:"v" help:"Debug logging and per-stage progress"`
	LogJSON bool   `name:"log-json" help:"Log as JSON"`
}

// CLI defines the command-line interface.
type CLI struct {
	Globals

	Ask       AskCmd       `cmd:"" help:"Answer a question with a chart"`
	Schema    SchemaCmd    `cmd:"" help:"Print the schema document"`
	Summary   SummaryCmd   `cmd:"" help:"Describe the schema in plain text"`
	KPIs      KPIsCmd      `cmd:"" name:"kpis" help:"Suggest KPIs for business goals"`
	Charts    ChartsCmd    `cmd:"" help:"Chart several topics concurrently"`
	Dashboard DashboardCmd `cmd:"" help:"Compose an overview dashboard"`
	Diagram   DiagramCmd   `cmd:"" help:"Print a Mermaid ER diagram of the schema"`
	History   HistoryCmd   `cmd:"" help:"List exported charts and dashboards"`
	Doctor    DoctorCmd    `cmd:"" help:"Check the rendering environment, store and configuration"`
	Serve     ServeCmd     `cmd:"" help:"Run the MCP tool server"`
	Version   VersionCmd   `cmd:"" help:"Show version information"`
}

// AskCmd runs one pipeline.
type AskCmd struct {
	Question string `arg:"" help:"Natural-language question"`
	Out      string `short:"o" help:"Also write the PNG to this path"`
	NoExport bool   `help:"Do not write a bundle to the output directory"`
}

// SchemaCmd prints the schema document.
type SchemaCmd struct{}

// SummaryCmd runs the schema summarizer.
type SummaryCmd struct{}

// KPIsCmd suggests KPIs and optionally charts them.
type KPIsCmd struct {
	Goals    string `help:"Business goals the KPIs should measure" default:"${default_goals}"`
	Chart    bool   `help:"Chart every suggested KPI"`
	NoExport bool   `help:"Do not write a bundle to the output directory"`
}

// ChartsCmd charts explicit topics.
type ChartsCmd struct {
	Topics   []string `arg:"" help:"Topics to chart, one chart each"`
	Template string   `help:"Question template; {topic} is replaced by the topic, otherwise the topic is appended"`
	NoExport bool     `help:"Do not write a bundle to the output directory"`
}

// DashboardCmd composes a dashboard.
type DashboardCmd struct {
	Ideas int `help:"Number of chart ideas (default: config ideaCount)"`
}

// DiagramCmd prints a Mermaid ER diagram.
type DiagramCmd struct{}

// HistoryCmd lists exports.
type HistoryCmd struct {
	Kind   string `help:"Only list exports of this kind (ask, batch, dashboard)"`
	Latest bool   `help:"Print only the directory of the newest export"`
}

// DoctorCmd checks the environment.
type DoctorCmd struct{}

// ServeCmd runs the MCP server.
type ServeCmd struct {
	HTTP string `name:"http" help:"Serve streamable HTTP on this address instead of stdio, e.g. :8080"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

const defaultGoals = "Understand overall business performance and its main drivers"

// kongVars returns variables for kong.
func kongVars() kong.Vars {
	return kong.Vars{
		"version":       version,
		"default_goals": defaultGoals,
	}
}
