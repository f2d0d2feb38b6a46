package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/dusk-indust/chartwise/internal/export"
	"github.com/dusk-indust/chartwise/internal/orchestrator"
)

// Run answers one question.
func (c *AskCmd) Run(app *App) error {
	conn, schema, err := app.schema()
	if err != nil {
		return err
	}
	svc, err := app.service()
	if err != nil {
		return err
	}

	res, err := svc.Ask(app.ctx, orchestrator.Request{
		Question: c.Question,
		Conn:     conn,
		Schema:   schema,
	})
	if err != nil {
		return userError(err)
	}

	printChart(app.Stdout, res)

	if c.Out != "" {
		if err := writeFile(c.Out, res.Image); err != nil {
			return fmt.Errorf("write %s: %w", c.Out, err)
		}
		fmt.Fprintf(app.Stdout, "\nChart written to %s\n", c.Out)
	}
	if c.NoExport {
		return nil
	}
	return exportBundle(app, export.AskBundle(res))
}

// Run charts every topic.
func (c *ChartsCmd) Run(app *App) error {
	conn, schema, err := app.schema()
	if err != nil {
		return err
	}
	svc, err := app.service()
	if err != nil {
		return err
	}

	res := svc.Charts(app.ctx, orchestrator.Batch{
		Topics:   c.Topics,
		Template: c.Template,
		Conn:     conn,
		Schema:   schema,
	})
	printBatch(app.Stdout, res)
	if c.NoExport {
		return nil
	}
	return exportBundle(app, export.BatchBundle(res))
}

// Run suggests KPIs and, with --chart, charts them.
func (c *KPIsCmd) Run(app *App) error {
	conn, schema, err := app.schema()
	if err != nil {
		return err
	}
	svc, err := app.service()
	if err != nil {
		return err
	}

	if !c.Chart {
		kpis, err := svc.SuggestKPIs(app.ctx, schema, c.Goals)
		if err != nil {
			return userError(err)
		}
		printKPIs(app.Stdout, kpis)
		return nil
	}

	kpis, res, err := svc.KPICharts(app.ctx, conn, schema, c.Goals)
	if err != nil {
		return userError(err)
	}
	printKPIs(app.Stdout, kpis)
	fmt.Fprintln(app.Stdout)
	printBatch(app.Stdout, res)
	if c.NoExport {
		return nil
	}
	return exportBundle(app, export.BatchBundle(res))
}

func printChart(w io.Writer, c *orchestrator.Captioned) {
	fmt.Fprintln(w, orchestrator.FormatRunHeader(c.RunID, c.Question))
	fmt.Fprintf(w, "\nSQL:\n  %s\n", strings.ReplaceAll(c.SQL, "\n", "\n  "))
	if c.Rationale != "" {
		fmt.Fprintf(w, "\nRationale: %s\n", c.Rationale)
	}
	if c.Result != nil {
		fmt.Fprintf(w, "\nRows: %d\n", len(c.Result.Rows))
	}
	fmt.Fprintf(w, "\nCaption: %s\n", c.Caption)
	fmt.Fprintf(w, "\nAnalysis: %s\n", c.Analysis)
}

func printBatch(w io.Writer, res *orchestrator.BatchResult) {
	total := len(res.Charts) + len(res.Failures)
	fmt.Fprintf(w, "%d of %d charts rendered\n", len(res.Charts), total)
	for _, c := range res.Charts {
		fmt.Fprintf(w, "\n%s\n  %s\n", orchestrator.FormatRunHeader(c.RunID, c.Question), c.Caption)
	}
	for _, f := range res.Failures {
		fmt.Fprintf(w, "\n  ✗ %s: %s\n", f.Topic, f.Message())
	}
}

func printKPIs(w io.Writer, kpis []string) {
	fmt.Fprintln(w, "Suggested KPIs:")
	for i, k := range kpis {
		fmt.Fprintf(w, "  %d. %s\n", i+1, k)
	}
}

func exportBundle(app *App, b *export.Bundle) error {
	dir, err := export.Write(app.outputDir(), b)
	if err != nil {
		return err
	}
	fmt.Fprintf(app.Stdout, "\nExported to %s\n", dir)
	return nil
}
