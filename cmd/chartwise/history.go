package main

import (
	"errors"
	"fmt"

	"github.com/dusk-indust/chartwise/internal/status"
)

// Run lists exports, newest first.
func (c *HistoryCmd) Run(app *App) error {
	entries, err := status.History(app.outputDir())
	if err != nil {
		return err
	}

	if c.Latest {
		e, ok := status.Latest(entries, c.Kind)
		if !ok {
			return errors.New("no exports found")
		}
		fmt.Fprintln(app.Stdout, e.Dir)
		return nil
	}

	n := 0
	for _, e := range entries {
		if c.Kind != "" && e.Kind != c.Kind {
			continue
		}
		n++
		line := fmt.Sprintf("%s  %-9s  %d chart(s)", e.ExportedAt.Local().Format("2006-01-02 15:04"), e.Kind, e.Charts)
		if e.Failures > 0 {
			line += fmt.Sprintf(", %d failed", e.Failures)
		}
		fmt.Fprintf(app.Stdout, "%s  %s\n    %s\n", line, e.Label(), e.Dir)
	}
	if n == 0 {
		fmt.Fprintln(app.Stdout, "No exports found.")
		fmt.Fprintln(app.Stdout, "Run 'chartwise ask <question>' or 'chartwise dashboard' to create one.")
	}
	return nil
}
