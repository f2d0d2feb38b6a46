package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dusk-indust/chartwise/internal/chart"
	"github.com/dusk-indust/chartwise/internal/llm"
	"github.com/dusk-indust/chartwise/internal/parse"
	"github.com/dusk-indust/chartwise/internal/store"
)

// ErrorKind classifies a stage failure.
type ErrorKind string

const (
	KindMalformedGeneration ErrorKind = "MalformedGeneration"
	KindQueryExecution      ErrorKind = "QueryExecutionError"
	KindChartExecution      ErrorKind = "ChartExecutionError"
	KindChartBinding        ErrorKind = "ChartBindingError"
	KindTimeout             ErrorKind = "TimeoutError"
	KindConnectivity        ErrorKind = "ConnectivityError"
)

func (k ErrorKind) describe() string {
	switch k {
	case KindMalformedGeneration:
		return "the generated response was malformed"
	case KindQueryExecution:
		return "the database rejected the query"
	case KindChartExecution:
		return "the chart program failed"
	case KindChartBinding:
		return "the chart program produced no figure"
	case KindTimeout:
		return "the run timed out"
	case KindConnectivity:
		return "a service could not be reached"
	default:
		return string(k)
	}
}

// StageError is the terminal failure of a run, naming the stage it
// originated in.
type StageError struct {
	RunID string
	Stage Stage
	Kind  ErrorKind
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// maxDiagnostic bounds the diagnostic of UserMessage.
const maxDiagnostic = 240

// UserMessage names the stage and gives a one-line diagnostic.
func (e *StageError) UserMessage() string {
	diag := ""
	if e.Err != nil {
		diag = e.Err.Error()
	}
	if i := strings.IndexByte(diag, '\n'); i >= 0 {
		diag = diag[:i]
	}
	diag = strings.TrimSpace(diag)
	if len(diag) > maxDiagnostic {
		n := maxDiagnostic
		for n > 0 && !utf8.RuneStart(diag[n]) {
			n--
		}
		diag = diag[:n] + "..."
	}
	if diag == "" {
		return fmt.Sprintf("%s failed: %s.", e.Stage.Title(), e.Kind.describe())
	}
	return fmt.Sprintf("%s failed: %s (%s).", e.Stage.Title(), e.Kind.describe(), diag)
}

// defaultKind is the kind of an error no rule recognizes.
func (s Stage) defaultKind() ErrorKind {
	switch s {
	case StageQueryExecution:
		return KindQueryExecution
	case StageChartRendering:
		return KindChartExecution
	default:
		return KindConnectivity
	}
}

// classify wraps err as a StageError for stage. ctx is the run context; a
// run whose deadline passed fails with TimeoutError whatever the stage
// reported.
func classify(ctx context.Context, stage Stage, err error) *StageError {
	var se *StageError
	if errors.As(err, &se) {
		return se
	}

	var qe *store.QueryError
	kind := stage.defaultKind()
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		kind = KindTimeout
	case errors.Is(err, parse.ErrMalformed):
		kind = KindMalformedGeneration
	case errors.Is(err, store.ErrUnreachable), errors.Is(err, llm.ErrUnavailable):
		kind = KindConnectivity
	case errors.As(err, &qe):
		kind = KindQueryExecution
	case errors.Is(err, chart.ErrBinding):
		kind = KindChartBinding
	case errors.Is(err, chart.ErrExecution):
		kind = KindChartExecution
	}
	return &StageError{Stage: stage, Kind: kind, Err: err}
}
