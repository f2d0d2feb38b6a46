package main

import (
	"fmt"
	"path/filepath"

	"github.com/dusk-indust/chartwise/internal/export"
	"github.com/dusk-indust/chartwise/internal/orchestrator"
)

// Run composes a dashboard and exports it with its page.
func (c *DashboardCmd) Run(app *App) error {
	conn, schema, err := app.schema()
	if err != nil {
		return err
	}
	svc, err := app.service()
	if err != nil {
		return err
	}

	d, err := svc.Dashboard(app.ctx, orchestrator.DashboardRequest{
		Conn:   conn,
		Schema: schema,
		Ideas:  c.Ideas,
	})
	if err != nil {
		return userError(err)
	}

	fmt.Fprintf(app.Stdout, "Dashboard %s: %d of %d cards\n", d.RunID, len(d.Cards), len(d.Ideas))
	for i, idea := range d.Ideas {
		fmt.Fprintf(app.Stdout, "  %d. %s\n", i+1, idea)
	}
	for _, f := range d.Failures {
		fmt.Fprintf(app.Stdout, "  ✗ %s: %s\n", f.Topic, f.Message())
	}
	for _, issue := range d.Issues {
		app.Logger.Warn("dashboard markup", "check", issue.Check, "issue", issue.Description)
	}

	dir, err := export.Write(app.outputDir(), export.DashboardBundle(d))
	if err != nil {
		return err
	}
	fmt.Fprintf(app.Stdout, "\nOpen %s\n", filepath.Join(dir, export.IndexFile))
	return nil
}
