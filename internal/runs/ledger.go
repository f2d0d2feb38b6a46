// Package runs keeps an in-memory ledger of pipeline runs, batches and
// dashboards.
package runs

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned for unknown run IDs.
var ErrNotFound = errors.New("run not found")

// Kind classifies a run.
type Kind string

const (
	KindAsk       Kind = "ask"
	KindBatch     Kind = "batch"
	KindDashboard Kind = "dashboard"
	KindSummary   Kind = "summary"
	KindKPI       Kind = "kpi"
)

// State is the lifecycle state of a run.
type State string

const (
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// IsTerminal reports whether no further transitions are expected.
func (s State) IsTerminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Record is one ledger entry.
type Record struct {
	ID          string    `json:"id"`
	ParentID    string    `json:"parentId,omitempty"`
	Kind        Kind      `json:"kind"`
	Question    string    `json:"question,omitempty"`
	State       State     `json:"state"`
	Stage       string    `json:"stage,omitempty"`       // last pipeline state reached
	FailedStage string    `json:"failedStage,omitempty"` // stage that failed
	ErrorKind   string    `json:"errorKind,omitempty"`
	Message     string    `json:"message,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Duration is the time between creation and the last update.
func (r Record) Duration() time.Duration {
	return r.UpdatedAt.Sub(r.CreatedAt)
}

// Filter selects records for List. Zero fields match everything.
type Filter struct {
	Kind     Kind   `json:"kind,omitempty"`
	State    State  `json:"state,omitempty"`
	ParentID string `json:"parentId,omitempty"`

	// PageToken is the ID of the last record of the previous page.
	PageToken string `json:"pageToken,omitempty"`
	// PageSize <= 0 returns every match.
	PageSize int `json:"pageSize,omitempty"`
}

// Page is one page of List results.
type Page struct {
	Runs          []Record `json:"runs"`
	TotalSize     int      `json:"totalSize"`
	NextPageToken string   `json:"nextPageToken,omitempty"`
}

// DefaultCapacity bounds the ledger of a long-running server.
const DefaultCapacity = 1000

// Ledger is a concurrency-safe in-memory run ledger. Records are kept in a
// map keyed by ID with a separate slice maintaining insertion order for
// deterministic pagination. When capacity is exceeded the oldest record is
// evicted.
type Ledger struct {
	mu       sync.RWMutex
	records  map[string]*Record
	orderIDs []string
	capacity int
	now      func() time.Time
}

// NewLedger returns a ledger holding at most capacity records;
// capacity <= 0 selects DefaultCapacity.
func NewLedger(capacity int) *Ledger {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ledger{
		records:  make(map[string]*Record),
		capacity: capacity,
		now:      time.Now,
	}
}

// Start records a new running entry and returns its ID.
func (l *Ledger) Start(kind Kind, question, parentID string) string {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	rec := &Record{
		ID:        uuid.NewString(),
		ParentID:  parentID,
		Kind:      kind,
		Question:  question,
		State:     StateRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}
	l.records[rec.ID] = rec
	l.orderIDs = append(l.orderIDs, rec.ID)
	for len(l.orderIDs) > l.capacity {
		delete(l.records, l.orderIDs[0])
		l.orderIDs = l.orderIDs[1:]
	}
	return rec.ID
}

// Advance records that run id reached stage.
func (l *Ledger) Advance(id, stage string) error {
	return l.update(id, func(r *Record) {
		r.Stage = stage
	})
}

// Succeed marks run id as succeeded with an optional note.
func (l *Ledger) Succeed(id, message string) error {
	return l.update(id, func(r *Record) {
		r.State = StateSucceeded
		r.Message = message
	})
}

// Fail marks run id as failed at stage with the given error kind and
// user-facing message.
func (l *Ledger) Fail(id, stage, errorKind, message string) error {
	return l.update(id, func(r *Record) {
		r.State = StateFailed
		r.FailedStage = stage
		r.ErrorKind = errorKind
		r.Message = message
	})
}

// Get returns a copy of the record with the given ID.
func (l *Ledger) Get(id string) (*Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	r, ok := l.records[id]
	if !ok {
		return nil, fmt.Errorf("runs: %w: %q", ErrNotFound, id)
	}
	cp := *r
	return &cp, nil
}

// List returns records matching the filter in insertion order, with
// pagination support.
func (l *Ledger) List(filter Filter) (*Page, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	startIdx := 0
	if filter.PageToken != "" {
		found := false
		for i, id := range l.orderIDs {
			if id == filter.PageToken {
				startIdx = i + 1
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("runs: invalid page token %q", filter.PageToken)
		}
	}

	total := 0
	matched := []Record{}
	for i, id := range l.orderIDs {
		r := l.records[id]
		if !matches(r, filter) {
			continue
		}
		total++
		if i >= startIdx {
			matched = append(matched, *r)
		}
	}

	var next string
	if filter.PageSize > 0 && len(matched) > filter.PageSize {
		next = matched[filter.PageSize-1].ID
		matched = matched[:filter.PageSize]
	}
	return &Page{Runs: matched, TotalSize: total, NextPageToken: next}, nil
}

// Len returns the number of records held.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.orderIDs)
}

func (l *Ledger) update(id string, fn func(*Record)) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	r, ok := l.records[id]
	if !ok {
		return fmt.Errorf("runs: %w: %q", ErrNotFound, id)
	}
	fn(r)
	r.UpdatedAt = l.now()
	return nil
}

func matches(r *Record, f Filter) bool {
	if f.Kind != "" && r.Kind != f.Kind {
		return false
	}
	if f.State != "" && r.State != f.State {
		return false
	}
	if f.ParentID != "" && r.ParentID != f.ParentID {
		return false
	}
	return true
}
