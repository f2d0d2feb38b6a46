package orchestrator

import (
	"fmt"
	"sync"
)

// ProgressReporter fans progress events of every run into one buffered
// channel. Emit never blocks: when the consumer falls behind, events are
// dropped.
type ProgressReporter struct {
	mu     sync.Mutex
	ch     chan ProgressEvent
	closed bool
}

// progressBuffer is sized for a full dashboard: ideas times stages.
const progressBuffer = 64

// NewProgressReporter creates a ProgressReporter.
func NewProgressReporter() *ProgressReporter {
	return &ProgressReporter{ch: make(chan ProgressEvent, progressBuffer)}
}

// Emit queues event unless the channel is full or closed.
func (pr *ProgressReporter) Emit(event ProgressEvent) {
	pr.mu.Lock()
	defer pr.mu.Unlock()
	if pr.closed {
		return
	}
	select {
	case pr.ch <- event:
	default:
	}
}

// Subscribe returns the event channel. It is closed by Close.
func (pr *ProgressReporter) Subscribe() <-chan ProgressEvent {
	return pr.ch
}

// Close closes the event channel. Later calls and later emits are no-ops.
func (pr *ProgressReporter) Close() {
	pr.mu.Lock()
	defer pr.mu.Unlock()
	if !pr.closed {
		pr.closed = true
		close(pr.ch)
	}
}

// FormatProgress renders an event as one status line. The short run ID
// tells lines of concurrent runs apart:
//
//	✓ [0f8e4c1a] Query synthesis complete
func FormatProgress(event ProgressEvent) string {
	var symbol, suffix string
	switch event.Status {
	case ProgressPending:
		symbol, suffix = "○", " (pending)"
	case ProgressWorking:
		symbol, suffix = "●", "..."
	case ProgressComplete:
		symbol, suffix = "✓", " complete"
	case ProgressFailed:
		symbol, suffix = "✗", " failed: "+event.Message
	default:
		symbol, suffix = "?", " ("+string(event.Status)+")"
	}
	run := ""
	if event.RunID != "" {
		run = "[" + shortID(event.RunID) + "] "
	}
	return fmt.Sprintf("  %s %s%s%s", symbol, run, event.Stage.Title(), suffix)
}

// FormatRunHeader formats a run header as "[<short id>] <question>".
func FormatRunHeader(runID, question string) string {
	return fmt.Sprintf("[%s] %s", shortID(runID), question)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
