package orchestrator

import (
	"encoding/base64"

	"github.com/dusk-indust/chartwise/internal/store"
)

// Each stage result embeds its predecessor: a later stage carries every
// earlier field, and no value exists for a stage that has not succeeded.

// Request holds the immutable inputs of a run.
type Request struct {
	Question string
	Conn     string
	Schema   store.Schema

	// ParentID links the run to the batch that started it.
	ParentID string
}

// Synthesized is the result of query synthesis.
type Synthesized struct {
	Request
	SQL       string
	Rationale string
}

// Executed is the result of query execution.
type Executed struct {
	Synthesized
	Result *store.Result
}

// Programmed is the result of chart program synthesis.
type Programmed struct {
	Executed
	Program string
}

// Rendered is the result of chart rendering.
type Rendered struct {
	Programmed
	Image []byte // PNG
}

// ImageBase64 returns the PNG in standard base64, as embedded in data URLs.
func (r *Rendered) ImageBase64() string {
	return base64.StdEncoding.EncodeToString(r.Image)
}

// Captioned is a completed run.
type Captioned struct {
	Rendered
	RunID    string
	Caption  string
	Analysis string
}
