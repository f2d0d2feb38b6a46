package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/dusk-indust/chartwise/internal/chart"
	"github.com/dusk-indust/chartwise/internal/llm"
	"github.com/dusk-indust/chartwise/internal/parse"
	"github.com/dusk-indust/chartwise/internal/store"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		stage Stage
		err   error
		want  ErrorKind
	}{
		{"deadline", StageQuerySynthesis, fmt.Errorf("generate: %w", context.DeadlineExceeded), KindTimeout},
		{"canceled", StageChartRendering, context.Canceled, KindTimeout},
		{"malformed", StageCaptionSynthesis, fmt.Errorf("agent: caption: %w", parse.ErrMalformed), KindMalformedGeneration},
		{"store unreachable", StageQueryExecution, fmt.Errorf("dial: %w", store.ErrUnreachable), KindConnectivity},
		{"model unavailable", StageChartProgramSynthesis, llm.ErrUnavailable, KindConnectivity},
		{"query error", StageQueryExecution, &store.QueryError{Statement: "SELECT x", Err: errors.New("no such column: x")}, KindQueryExecution},
		{"binding", StageChartRendering, fmt.Errorf("render: %w", chart.ErrBinding), KindChartBinding},
		{"execution", StageChartRendering, fmt.Errorf("render: %w", chart.ErrExecution), KindChartExecution},
		{"unknown at execution", StageQueryExecution, errors.New("boom"), KindQueryExecution},
		{"unknown at rendering", StageChartRendering, errors.New("boom"), KindChartExecution},
		{"unknown at generation", StageIdeaSynthesis, errors.New("boom"), KindConnectivity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			se := classify(context.Background(), tt.stage, tt.err)
			assert.Equal(t, tt.stage, se.Stage)
			assert.Equal(t, tt.want, se.Kind)
			assert.ErrorIs(t, se, tt.err)
		})
	}
}

func TestClassify_ExpiredRunIsTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	se := classify(ctx, StageQueryExecution, &store.QueryError{Statement: "SELECT 1", Err: errors.New("interrupted")})
	assert.Equal(t, KindTimeout, se.Kind)
}

func TestClassify_KeepsStageError(t *testing.T) {
	orig := &StageError{RunID: "r1", Stage: StageQueryExecution, Kind: KindQueryExecution, Err: errors.New("bad")}
	se := classify(context.Background(), StageQuerySynthesis, fmt.Errorf("wrapped: %w", orig))
	assert.Same(t, orig, se)
}

func TestStageError_UserMessage(t *testing.T) {
	se := &StageError{
		Stage: StageQueryExecution,
		Kind:  KindQueryExecution,
		Err:   errors.New("no such column: region\nat line 1"),
	}
	assert.Equal(t, "Query execution failed: the database rejected the query (no such column: region).", se.UserMessage())
	assert.Equal(t, "query-execution: QueryExecutionError: no such column: region\nat line 1", se.Error())

	long := &StageError{Stage: StageCaptionSynthesis, Kind: KindMalformedGeneration, Err: errors.New(strings.Repeat("x", 500))}
	msg := long.UserMessage()
	assert.Contains(t, msg, strings.Repeat("x", maxDiagnostic)+"...")
	assert.NotContains(t, msg, strings.Repeat("x", maxDiagnostic+1))

	accented := &StageError{Stage: StageCaptionSynthesis, Kind: KindMalformedGeneration, Err: errors.New(strings.Repeat("é", 200))}
	msg = accented.UserMessage()
	assert.True(t, utf8.ValidString(msg), msg)
	assert.Contains(t, msg, strings.Repeat("é", maxDiagnostic/2)+"...")

	bare := &StageError{Stage: StageChartRendering, Kind: KindChartBinding}
	assert.Equal(t, "Chart rendering failed: the chart program produced no figure.", bare.UserMessage())
}
