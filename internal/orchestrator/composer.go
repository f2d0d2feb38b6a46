package orchestrator

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dusk-indust/chartwise/internal/agent"
	"github.com/dusk-indust/chartwise/internal/parse"
	"github.com/dusk-indust/chartwise/internal/runs"
	"github.com/dusk-indust/chartwise/internal/store"
)

// DashboardRequest asks for an overview dashboard of one store.
type DashboardRequest struct {
	Conn   string
	Schema store.Schema

	// Relations is optional schema-graph context for idea synthesis.
	Relations string

	// Ideas is the number of chart ideas; zero selects the default.
	Ideas int
}

// Dashboard is a composed dashboard and everything it was built from.
type Dashboard struct {
	RunID        string
	Schema       store.Schema
	Ideas        []string
	Cards        []*Captioned
	PageTemplate string
	CardTemplate string
	Markup       string
	Failures     []Failure
	Issues       []MarkupIssue
}

// Composer builds dashboards: idea synthesis, then chart fan-out and
// template synthesis concurrently, then literal template substitution.
type Composer struct {
	ideas     *agent.IdeaWriter
	templates *agent.TemplateWriter
	fanout    *FanOut
	ideaCount int
	timeout   time.Duration
	ledger    *runs.Ledger
	logger    *slog.Logger
}

// NewComposer wires a Composer. ledger and logger may be nil.
func NewComposer(agents *agent.Set, fanout *FanOut, ideaCount int, timeout time.Duration, ledger *runs.Ledger, logger *slog.Logger) *Composer {
	if ideaCount <= 0 {
		ideaCount = defaultIdeaCount
	}
	if ledger == nil {
		ledger = runs.NewLedger(0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Composer{
		ideas:     agents.Ideas,
		templates: agents.Templates,
		fanout:    fanout,
		ideaCount: ideaCount,
		timeout:   timeout,
		ledger:    ledger,
		logger:    logger,
	}
}

// Compose builds the dashboard for req. Idea or template synthesis failures
// fail the dashboard; chart failures only drop their card.
func (c *Composer) Compose(ctx context.Context, req DashboardRequest) (*Dashboard, error) {
	n := req.Ideas
	if n <= 0 {
		n = c.ideaCount
	}
	runID := c.ledger.Start(runs.KindDashboard, fmt.Sprintf("%d ideas", n), "")
	fail := func(ctx context.Context, stage Stage, err error) error {
		se := classify(ctx, stage, err)
		se.RunID = runID
		_ = c.ledger.Fail(runID, stage.String(), string(se.Kind), se.UserMessage())
		return se
	}

	ictx, cancel := c.bound(ctx)
	ideas, err := c.ideas.Ideas(ictx, req.Schema, req.Relations, n)
	if err != nil {
		err = fail(ictx, StageIdeaSynthesis, err)
		cancel()
		return nil, err
	}
	cancel()
	_ = c.ledger.Advance(runID, "IdeasSynthesized")

	var (
		batch      *BatchResult
		page, card string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		batch = c.fanout.Run(gctx, Batch{
			Topics:   ideas,
			Conn:     req.Conn,
			Schema:   req.Schema,
			ParentID: runID,
		})
		return nil
	})
	g.Go(func() error {
		tctx, cancel := c.bound(gctx)
		defer cancel()
		var err error
		page, card, err = c.templates.Templates(tctx, req.Schema, ideas)
		if err != nil {
			return fail(tctx, StageTemplateSynthesis, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	d := &Dashboard{
		RunID:        runID,
		Schema:       req.Schema,
		Ideas:        ideas,
		Cards:        batch.Charts,
		PageTemplate: page,
		CardTemplate: card,
		Failures:     batch.Failures,
	}
	d.Markup = Assemble(page, card, d.Cards)
	d.Issues = CheckMarkup(d.Markup, len(d.Cards))
	for _, issue := range d.Issues {
		c.logger.Warn("dashboard markup issue", "dashboard", runID, "check", issue.Check, "issue", issue.Description)
	}

	_ = c.ledger.Succeed(runID, fmt.Sprintf("%d of %d cards", len(d.Cards), len(ideas)))
	return d, nil
}

func (c *Composer) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout > 0 {
		return context.WithTimeout(ctx, c.timeout)
	}
	return context.WithCancel(ctx)
}

// Assemble fills card once per chart, in order, and substitutes the
// concatenated cards into page. Substitution is literal and single-pass.
func Assemble(page, card string, charts []*Captioned) string {
	cards := make([]string, len(charts))
	for i, ch := range charts {
		cards[i] = parse.Fill(card, map[string]string{
			agent.PlaceholderData:     ch.ImageBase64(),
			agent.PlaceholderCaption:  escapeText(ch.Caption),
			agent.PlaceholderAnalysis: escapeText(ch.Analysis),
		})
	}
	return parse.Fill(page, map[string]string{
		agent.PlaceholderCards: strings.Join(cards, "\n"),
	})
}

var braceEscaper = strings.NewReplacer("{", "&#123;", "}", "&#125;")

// escapeText makes generated text safe to insert into markup: HTML special
// characters and braces are entity-encoded.
func escapeText(s string) string {
	return braceEscaper.Replace(html.EscapeString(s))
}
