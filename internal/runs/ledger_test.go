package runs

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedger_Lifecycle(t *testing.T) {
	l := NewLedger(0)
	clock := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	l.now = func() time.Time { return clock }

	id := l.Start(KindAsk, "sales by region", "")
	_, err := uuid.Parse(id)
	require.NoError(t, err, "IDs are UUIDs")

	clock = clock.Add(2 * time.Second)
	require.NoError(t, l.Advance(id, "QuerySynthesized"))
	clock = clock.Add(3 * time.Second)
	require.NoError(t, l.Fail(id, "QueryExecution", "QueryExecutionError", "no such table: sales"))

	got, err := l.Get(id)
	require.NoError(t, err)
	assert.Equal(t, KindAsk, got.Kind)
	assert.Equal(t, "sales by region", got.Question)
	assert.Equal(t, StateFailed, got.State)
	assert.True(t, got.State.IsTerminal())
	assert.Equal(t, "QuerySynthesized", got.Stage)
	assert.Equal(t, "QueryExecution", got.FailedStage)
	assert.Equal(t, "QueryExecutionError", got.ErrorKind)
	assert.Equal(t, 5*time.Second, got.Duration())
}

func TestLedger_GetReturnsCopy(t *testing.T) {
	l := NewLedger(0)
	id := l.Start(KindAsk, "q", "")

	got, err := l.Get(id)
	require.NoError(t, err)
	got.State = StateSucceeded

	again, err := l.Get(id)
	require.NoError(t, err)
	assert.Equal(t, StateRunning, again.State)
	assert.False(t, again.State.IsTerminal())
}

func TestLedger_UnknownID(t *testing.T) {
	l := NewLedger(0)

	_, err := l.Get("nope")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(l.Succeed("nope", ""), ErrNotFound))
	assert.True(t, errors.Is(l.Advance("nope", "x"), ErrNotFound))
}

func TestLedger_ListFilterAndPaginate(t *testing.T) {
	l := NewLedger(0)
	batch := l.Start(KindBatch, "", "")
	var items []string
	for i := 0; i < 5; i++ {
		items = append(items, l.Start(KindAsk, fmt.Sprintf("topic %d", i), batch))
	}
	require.NoError(t, l.Succeed(items[0], ""))
	require.NoError(t, l.Succeed(items[3], "4 of 5 charts"))

	all, err := l.List(Filter{})
	require.NoError(t, err)
	assert.Equal(t, 6, all.TotalSize)
	assert.Len(t, all.Runs, 6)
	assert.Empty(t, all.NextPageToken)

	done, err := l.List(Filter{State: StateSucceeded})
	require.NoError(t, err)
	require.Len(t, done.Runs, 2)
	assert.Equal(t, items[0], done.Runs[0].ID)
	assert.Equal(t, items[3], done.Runs[1].ID)
	assert.Equal(t, "4 of 5 charts", done.Runs[1].Message)

	page1, err := l.List(Filter{ParentID: batch, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, page1.TotalSize)
	require.Len(t, page1.Runs, 2)
	assert.Equal(t, items[1], page1.NextPageToken)

	page2, err := l.List(Filter{ParentID: batch, PageSize: 2, PageToken: page1.NextPageToken})
	require.NoError(t, err)
	require.Len(t, page2.Runs, 2)
	assert.Equal(t, items[2], page2.Runs[0].ID)
	assert.Equal(t, 5, page2.TotalSize)

	page3, err := l.List(Filter{ParentID: batch, PageSize: 2, PageToken: page2.NextPageToken})
	require.NoError(t, err)
	require.Len(t, page3.Runs, 1)
	assert.Empty(t, page3.NextPageToken)

	_, err = l.List(Filter{PageToken: "bogus"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid page token")
}

func TestLedger_CapacityEvictsOldest(t *testing.T) {
	l := NewLedger(2)
	first := l.Start(KindAsk, "1", "")
	l.Start(KindAsk, "2", "")
	l.Start(KindAsk, "3", "")

	assert.Equal(t, 2, l.Len())
	_, err := l.Get(first)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestLedger_ConcurrentAccess(t *testing.T) {
	l := NewLedger(0)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := l.Start(KindAsk, "q", "")
			_ = l.Advance(id, "QuerySynthesized")
			_ = l.Succeed(id, "")
			_, _ = l.List(Filter{State: StateSucceeded})
		}()
	}
	wg.Wait()

	page, err := l.List(Filter{State: StateSucceeded})
	require.NoError(t, err)
	assert.Equal(t, 20, page.TotalSize)
}
