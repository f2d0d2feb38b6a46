package main

import (
	"github.com/dusk-indust/chartwise/internal/chart"
	"github.com/dusk-indust/chartwise/internal/mcptools"
)

// Run serves the chart tools over MCP until the context is cancelled.
func (c *ServeCmd) Run(app *App) error {
	svc, err := app.service()
	if err != nil {
		return err
	}

	if probe, err := chart.Probe(app.ctx, app.Config.Render.Python); err != nil {
		app.Logger.Warn("chart rendering unavailable", "error", err)
	} else {
		app.Logger.Info("chart rendering ready", "python", probe.Python, "version", probe.Version, "matplotlib", probe.Matplotlib)
	}

	tools := mcptools.NewChartService(svc, app.pools, svc.Ledger(), app.Config.Database, app.Logger)
	server := mcptools.NewChartMCPServer(tools)

	if c.HTTP != "" {
		return mcptools.RunHTTP(app.ctx, server, c.HTTP, app.Logger)
	}
	app.Logger.Debug("mcp server on stdio")
	return mcptools.RunStdio(app.ctx, server)
}

// Run prints the version.
func (c *VersionCmd) Run(app *App) error {
	_, err := app.Stdout.Write([]byte("chartwise " + version + "\n"))
	return err
}
