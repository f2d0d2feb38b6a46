package main

import (
	"fmt"

	"github.com/dusk-indust/chartwise/internal/export"
	"github.com/dusk-indust/chartwise/internal/graph"
)

// Run prints the schema document.
func (c *SchemaCmd) Run(app *App) error {
	_, schema, err := app.schema()
	if err != nil {
		return err
	}
	fmt.Fprintln(app.Stdout, schema.Document())
	return nil
}

// Run prints the schema summary.
func (c *SummaryCmd) Run(app *App) error {
	_, schema, err := app.schema()
	if err != nil {
		return err
	}
	svc, err := app.service()
	if err != nil {
		return err
	}
	text, err := svc.Summarize(app.ctx, schema)
	if err != nil {
		return userError(err)
	}
	fmt.Fprintln(app.Stdout, text)
	return nil
}

// Run prints the Mermaid ER diagram.
func (c *DiagramCmd) Run(app *App) error {
	_, schema, err := app.schema()
	if err != nil {
		return err
	}

	g, err := graph.Open()
	if err != nil {
		return fmt.Errorf("open graph: %w", err)
	}
	defer g.Close()

	if _, err := graph.Build(app.ctx, g, schema); err != nil {
		return err
	}
	mermaid, err := export.GenerateMermaid(app.ctx, g, schema.TableNames())
	if err != nil {
		return err
	}
	fmt.Fprint(app.Stdout, mermaid)
	return nil
}
