package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dusk-indust/chartwise/internal/agent"
	"github.com/dusk-indust/chartwise/internal/chart"
	"github.com/dusk-indust/chartwise/internal/runs"
	"github.com/dusk-indust/chartwise/internal/store"
)

// Executor runs a statement against the store named by conn.
// *store.Pools satisfies it.
type Executor interface {
	Execute(ctx context.Context, conn, stmt string) (*store.Result, error)
}

var _ Executor = (*store.Pools)(nil)

// Runner runs one pipeline to completion.
type Runner interface {
	Run(ctx context.Context, req Request) (*Captioned, error)
}

var _ Runner = (*Pipeline)(nil)

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, req Request) (*Captioned, error)

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context, req Request) (*Captioned, error) {
	return f(ctx, req)
}

// Pipeline is the five-stage state machine. Stages run strictly in order;
// the first failure is terminal and returned as a *StageError.
type Pipeline struct {
	query    *agent.QueryWriter
	program  *agent.ChartWriter
	caption  *agent.Captioner
	exec     Executor
	renderer chart.Renderer
	ledger   *runs.Ledger
	progress *ProgressReporter
	logger   *slog.Logger
	timeout  time.Duration
}

// NewPipeline wires a pipeline. ledger, progress and logger may be nil.
func NewPipeline(agents *agent.Set, exec Executor, renderer chart.Renderer, ledger *runs.Ledger, progress *ProgressReporter, logger *slog.Logger, timeout time.Duration) *Pipeline {
	if ledger == nil {
		ledger = runs.NewLedger(0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		query:    agents.Query,
		program:  agents.Chart,
		caption:  agents.Caption,
		exec:     exec,
		renderer: renderer,
		ledger:   ledger,
		progress: progress,
		logger:   logger,
		timeout:  timeout,
	}
}

// Run executes every stage for req. It returns either a fully populated
// *Captioned or a *StageError; never both, never a partial result.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Captioned, error) {
	runID := p.ledger.Start(runs.KindAsk, req.Question, req.ParentID)
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	for s := StageQuerySynthesis; s <= StageCaptionSynthesis; s++ {
		p.emit(runID, s, ProgressPending, "")
	}

	syn, err := step(ctx, p, runID, StageQuerySynthesis, func(ctx context.Context) (*Synthesized, error) {
		return p.synthesize(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	exe, err := step(ctx, p, runID, StageQueryExecution, func(ctx context.Context) (*Executed, error) {
		return p.execute(ctx, syn)
	})
	if err != nil {
		return nil, err
	}
	prog, err := step(ctx, p, runID, StageChartProgramSynthesis, func(ctx context.Context) (*Programmed, error) {
		return p.writeProgram(ctx, exe)
	})
	if err != nil {
		return nil, err
	}
	ren, err := step(ctx, p, runID, StageChartRendering, func(ctx context.Context) (*Rendered, error) {
		return p.render(ctx, prog)
	})
	if err != nil {
		return nil, err
	}
	capd, err := step(ctx, p, runID, StageCaptionSynthesis, func(ctx context.Context) (*Captioned, error) {
		return p.writeCaption(ctx, ren)
	})
	if err != nil {
		return nil, err
	}

	capd.RunID = runID
	_ = p.ledger.Succeed(runID, capd.Caption)
	p.logger.Debug("run captioned", "run", runID, "question", req.Question, "caption", capd.Caption)
	return capd, nil
}

// step runs one stage, recording the transition or the failure.
func step[T any](ctx context.Context, p *Pipeline, runID string, stage Stage, fn func(context.Context) (T, error)) (T, error) {
	p.emit(runID, stage, ProgressWorking, "")
	start := time.Now()

	out, err := fn(ctx)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err != nil {
		var zero T
		se := classify(ctx, stage, err)
		se.RunID = runID
		p.emit(runID, stage, ProgressFailed, se.UserMessage())
		_ = p.ledger.Fail(runID, stage.String(), string(se.Kind), se.UserMessage())
		p.logger.Debug("run failed", "run", runID, "stage", stage.String(), "kind", se.Kind, "error", err)
		return zero, se
	}

	p.emit(runID, stage, ProgressComplete, "")
	_ = p.ledger.Advance(runID, stage.reached().String())
	p.logger.Debug("stage complete", "run", runID, "stage", stage.String(), "elapsed", time.Since(start))
	return out, nil
}

func (p *Pipeline) emit(runID string, stage Stage, status ProgressStatus, msg string) {
	if p.progress == nil {
		return
	}
	p.progress.Emit(ProgressEvent{
		RunID:   runID,
		Stage:   stage,
		Status:  status,
		Message: msg,
	})
}

// ---------------------------------------------------------------------------
// Stages
// ---------------------------------------------------------------------------

func (p *Pipeline) synthesize(ctx context.Context, req Request) (*Synthesized, error) {
	var engine store.Engine
	if d, err := store.ParseDescriptor(req.Conn); err == nil {
		engine = d.Engine
	}
	q, err := p.query.Write(ctx, req.Question, req.Schema, engine)
	if err != nil {
		return nil, err
	}
	return &Synthesized{Request: req, SQL: q.SQL, Rationale: q.Rationale}, nil
}

func (p *Pipeline) execute(ctx context.Context, syn *Synthesized) (*Executed, error) {
	res, err := p.exec.Execute(ctx, syn.Conn, syn.SQL)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, fmt.Errorf("store: execute returned no result")
	}
	return &Executed{Synthesized: *syn, Result: res}, nil
}

func (p *Pipeline) writeProgram(ctx context.Context, exe *Executed) (*Programmed, error) {
	program, err := p.program.Write(ctx, exe.Question, exe.Result)
	if err != nil {
		return nil, err
	}
	return &Programmed{Executed: *exe, Program: program}, nil
}

func (p *Pipeline) render(ctx context.Context, prog *Programmed) (*Rendered, error) {
	img, err := p.renderer.Render(ctx, prog.Program)
	if err != nil {
		return nil, err
	}
	return &Rendered{Programmed: *prog, Image: img}, nil
}

func (p *Pipeline) writeCaption(ctx context.Context, ren *Rendered) (*Captioned, error) {
	caption, analysis, err := p.caption.Caption(ctx, ren.Image, ren.Schema)
	if err != nil {
		return nil, err
	}
	return &Captioned{Rendered: *ren, Caption: caption, Analysis: analysis}, nil
}
