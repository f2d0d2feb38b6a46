package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/dusk-indust/chartwise/internal/chart"
)

// Run checks configuration, the rendering environment and the store.
func (c *DoctorCmd) Run(app *App) error {
	cfg := app.Config
	failed := 0
	check := func(name string, err error, ok string) {
		if err != nil {
			failed++
			fmt.Fprintf(app.Stdout, "  ✗ %-10s %v\n", name, err)
			return
		}
		fmt.Fprintf(app.Stdout, "  ✓ %-10s %s\n", name, ok)
	}

	fmt.Fprintf(app.Stdout, "chartwise %s\n\n", version)

	var keyErr error
	if cfg.LLM.APIKey == "" {
		keyErr = errors.New("no API key in CHARTWISE_API_KEY, GROQ_API_KEY or OPENAI_API_KEY")
	}
	check("llm", keyErr, fmt.Sprintf("%s (text %s, vision %s)", cfg.LLM.BaseURL, cfg.LLM.TextModel, cfg.LLM.VisionModel))

	probe, err := chart.Probe(app.ctx, cfg.Render.Python)
	if err == nil {
		check("python", nil, fmt.Sprintf("%s %s, matplotlib %s", probe.Python, probe.Version, probe.Matplotlib))
	} else {
		check("python", err, "")
	}

	conn, err := app.conn()
	if err == nil {
		start := time.Now()
		_, err = app.pools.Get(app.ctx, conn)
		if err == nil {
			check("database", nil, fmt.Sprintf("%s (%s)", conn, time.Since(start).Round(time.Millisecond)))
		} else {
			check("database", err, "")
		}
	} else {
		check("database", err, "")
	}

	fmt.Fprintf(app.Stdout, "\n  workers %d, ideas %d, KPIs %d, run timeout %s, output %s\n",
		cfg.Workers, cfg.IdeaCount, cfg.KPICount, time.Duration(cfg.RunTimeout), app.outputDir())

	if failed > 0 {
		return fmt.Errorf("%d check(s) failed", failed)
	}
	return nil
}
