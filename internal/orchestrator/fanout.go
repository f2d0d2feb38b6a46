package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/dusk-indust/chartwise/internal/runs"
	"github.com/dusk-indust/chartwise/internal/store"
)

// TopicToken is replaced by the topic when it appears in a batch template.
const TopicToken = "{topic}"

// Batch is a set of topics charted with one question template.
type Batch struct {
	Topics   []string
	Template string
	Conn     string
	Schema   store.Schema

	// ParentID links the batch to the dashboard that started it.
	ParentID string
}

// Question combines the template with a topic: a {topic} token is replaced
// literally, otherwise the topic is appended after a space.
func (b Batch) Question(topic string) string {
	tmpl := strings.TrimSpace(b.Template)
	switch {
	case tmpl == "":
		return topic
	case strings.Contains(tmpl, TopicToken):
		return strings.ReplaceAll(tmpl, TopicToken, topic)
	default:
		return tmpl + " " + topic
	}
}

// Failure is one topic whose run failed.
type Failure struct {
	Index int         `json:"index"`
	Topic string      `json:"topic"`
	Err   *StageError `json:"-"`
}

// Message is the user-facing description of the failure.
func (f Failure) Message() string {
	return f.Err.UserMessage()
}

// BatchResult holds the successful charts in topic order and the failures.
type BatchResult struct {
	RunID    string
	Charts   []*Captioned
	Failures []Failure
}

// FanOut runs one pipeline per topic on a bounded worker pool. A failed item
// is logged and reported; it never cancels its siblings or the batch.
type FanOut struct {
	runner  Runner
	workers int
	ledger  *runs.Ledger
	logger  *slog.Logger
}

// NewFanOut creates a FanOut running at most workers pipelines at once.
func NewFanOut(runner Runner, workers int, ledger *runs.Ledger, logger *slog.Logger) *FanOut {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if ledger == nil {
		ledger = runs.NewLedger(0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FanOut{runner: runner, workers: workers, ledger: ledger, logger: logger}
}

// Run charts every topic of b. Results are written to index-addressed slots
// so successes keep the input order.
func (f *FanOut) Run(ctx context.Context, b Batch) *BatchResult {
	batchID := f.ledger.Start(runs.KindBatch, b.Template, b.ParentID)

	charts := make([]*Captioned, len(b.Topics))
	errs := make([]*StageError, len(b.Topics))

	var g errgroup.Group
	g.SetLimit(f.workers)
	for i, topic := range b.Topics {
		g.Go(func() error {
			req := Request{
				Question: b.Question(topic),
				Conn:     b.Conn,
				Schema:   b.Schema,
				ParentID: batchID,
			}
			c, err := f.runner.Run(ctx, req)
			if err != nil {
				errs[i] = classify(ctx, StageQuerySynthesis, err)
				return nil
			}
			charts[i] = c
			return nil
		})
	}
	_ = g.Wait()

	res := &BatchResult{RunID: batchID, Charts: []*Captioned{}}
	for i, topic := range b.Topics {
		if errs[i] != nil {
			res.Failures = append(res.Failures, Failure{Index: i, Topic: topic, Err: errs[i]})
			f.logger.Warn("chart failed",
				"batch", batchID, "topic", topic, "stage", errs[i].Stage.String(),
				"kind", errs[i].Kind, "error", errs[i].Err)
			continue
		}
		res.Charts = append(res.Charts, charts[i])
	}

	_ = f.ledger.Succeed(batchID, fmt.Sprintf("%d of %d charts rendered", len(res.Charts), len(b.Topics)))
	f.logger.Info("batch complete", "batch", batchID, "charts", len(res.Charts), "failed", len(res.Failures))
	return res
}
