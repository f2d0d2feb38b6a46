package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/joho/godotenv"

	"github.com/dusk-indust/chartwise/internal/agent"
	"github.com/dusk-indust/chartwise/internal/chart"
	"github.com/dusk-indust/chartwise/internal/config"
	"github.com/dusk-indust/chartwise/internal/llm"
	"github.com/dusk-indust/chartwise/internal/orchestrator"
	"github.com/dusk-indust/chartwise/internal/store"
)

// App carries the process-wide collaborators of a command. Generator and
// Renderer may be preset; otherwise they are built from the configuration
// the first time a command needs them.
type App struct {
	Stdout    io.Writer
	Stderr    io.Writer
	Logger    *slog.Logger
	Generator llm.Generator
	Renderer  chart.Renderer

	Config *config.ProjectConfig

	ctx      context.Context
	dir      string
	verbose  bool
	pools    *store.Pools
	svc      *orchestrator.Service
	progress sync.WaitGroup
}

// init loads .env and the project configuration, applies the global flags
// and sets up logging.
func (a *App) init(ctx context.Context, g *Globals) error {
	a.ctx = ctx
	a.dir = g.Dir
	a.verbose = g.Verbose

	if a.Logger == nil {
		level := slog.LevelInfo
		if g.Verbose {
			level = slog.LevelDebug
		}
		opts := &slog.HandlerOptions{Level: level}
		if g.LogJSON {
			a.Logger = slog.New(slog.NewJSONHandler(a.Stderr, opts))
		} else {
			a.Logger = slog.New(slog.NewTextHandler(a.Stderr, opts))
		}
	}

	envPath := filepath.Join(g.Dir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		a.Logger.Debug("no .env loaded", "path", envPath, "error", err)
	}

	cfg, err := config.Load(g.Dir)
	if err != nil {
		return err
	}
	if g.DB != "" {
		cfg.Database = g.DB
	}
	if g.Python != "" {
		cfg.Render.Python = g.Python
	}
	if g.Workers > 0 {
		cfg.Workers = g.Workers
	}
	a.Config = cfg
	a.pools = store.NewPools()
	return nil
}

// Close releases the store pools and stops progress output.
func (a *App) Close() {
	if a.svc != nil {
		a.svc.Close()
		a.progress.Wait()
	}
	if a.pools != nil {
		if err := a.pools.Close(); err != nil {
			a.Logger.Warn("close store pools", "error", err)
		}
	}
}

// conn returns the configured store descriptor.
func (a *App) conn() (string, error) {
	if a.Config.Database == "" {
		return "", errors.New("no database configured: pass --db, set CHARTWISE_DB or add database to chartwise.yml")
	}
	return a.Config.Database, nil
}

// schema introspects the configured store.
func (a *App) schema() (string, store.Schema, error) {
	conn, err := a.conn()
	if err != nil {
		return "", nil, err
	}
	schema, err := a.pools.Introspect(a.ctx, conn)
	if err != nil {
		return "", nil, fmt.Errorf("introspect: %w", err)
	}
	return conn, schema, nil
}

// outputDir resolves the export directory against the project directory.
func (a *App) outputDir() string {
	if filepath.IsAbs(a.Config.OutputDir) {
		return a.Config.OutputDir
	}
	return filepath.Join(a.dir, a.Config.OutputDir)
}

// service builds the orchestrator on first use.
func (a *App) service() (*orchestrator.Service, error) {
	if a.svc != nil {
		return a.svc, nil
	}
	cfg := a.Config

	gen := a.Generator
	if gen == nil {
		if cfg.LLM.APIKey == "" {
			return nil, errors.New("no API key: set CHARTWISE_API_KEY, GROQ_API_KEY or OPENAI_API_KEY")
		}
		gen = llm.NewOpenAI(llm.OpenAIConfig{
			BaseURL:        cfg.LLM.BaseURL,
			APIKey:         cfg.LLM.APIKey,
			MaxRetries:     cfg.LLM.MaxRetries,
			RequestTimeout: time.Duration(cfg.LLM.RequestTimeout),
		})
	}

	renderer := a.Renderer
	if renderer == nil {
		r := chart.NewPythonRenderer(cfg.Render.Python, time.Duration(cfg.Render.Timeout))
		r.Logger = a.Logger
		renderer = r
	}

	agents, err := agent.NewRegistry(gen, agent.Options{
		TextModel:   cfg.LLM.TextModel,
		VisionModel: cfg.LLM.VisionModel,
		Temperature: cfg.LLM.Temperature,
		KPICount:    cfg.KPICount,
	}).Set()
	if err != nil {
		return nil, err
	}

	a.svc = orchestrator.New(orchestrator.Deps{
		Agents:   agents,
		Executor: a.pools,
		Renderer: renderer,
		Logger:   a.Logger,
		Config: orchestrator.Config{
			RunTimeout:  time.Duration(cfg.RunTimeout),
			Workers:     cfg.Workers,
			IdeaCount:   cfg.IdeaCount,
			KPITemplate: cfg.KPITemplate,
		},
	})

	// The progress channel is drained even when quiet so emitters never
	// see a full buffer for long.
	a.progress.Add(1)
	go func() {
		defer a.progress.Done()
		for ev := range a.svc.Progress() {
			if a.verbose {
				fmt.Fprintln(a.Stderr, orchestrator.FormatProgress(ev))
			}
		}
	}()
	return a.svc, nil
}

// userError replaces a stage failure with its user-facing message.
func userError(err error) error {
	var se *orchestrator.StageError
	if errors.As(err, &se) {
		if se.RunID != "" {
			return fmt.Errorf("%s (run %s)", se.UserMessage(), se.RunID)
		}
		return errors.New(se.UserMessage())
	}
	return err
}

// writeFile writes data to path, creating parent directories.
func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}
