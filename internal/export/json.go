package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dusk-indust/chartwise/internal/orchestrator"
	"github.com/dusk-indust/chartwise/internal/store"
)

// BundleFile is the name of the JSON document in every export directory.
const BundleFile = "bundle.json"

// IndexFile is the dashboard page of a dashboard export.
const IndexFile = "index.html"

// Kinds of bundles.
const (
	KindAsk       = "ask"
	KindBatch     = "batch"
	KindDashboard = "dashboard"
)

// Bundle is the top-level JSON export structure.
type Bundle struct {
	Kind       string          `json:"kind"`
	ID         string          `json:"id"`
	ExportedAt string          `json:"exportedAt"`
	Question   string          `json:"question,omitempty"`
	Ideas      []string        `json:"ideas,omitempty"`
	Charts     []ChartExport   `json:"charts"`
	Failures   []FailureExport `json:"failures,omitempty"`
	Issues     []string        `json:"issues,omitempty"`

	// HTML is written to IndexFile, not to the bundle.
	HTML string `json:"-"`
}

// ChartExport describes one captioned chart.
type ChartExport struct {
	RunID       string      `json:"runId"`
	Question    string      `json:"question"`
	SQL         string      `json:"sql"`
	Rationale   string      `json:"rationale,omitempty"`
	Columns     []string    `json:"columns"`
	Rows        []store.Row `json:"rows"`
	Caption     string      `json:"caption"`
	Analysis    string      `json:"analysis"`
	Image       string      `json:"image"` // PNG file name within the export directory
	ImageBase64 string      `json:"imageBase64"`

	png []byte
}

// FailureExport describes one topic that produced no chart.
type FailureExport struct {
	Index   int    `json:"index"`
	Topic   string `json:"topic"`
	Stage   string `json:"stage"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// now is replaced in tests.
var now = time.Now

// AskBundle exports a single captioned run.
func AskBundle(c *orchestrator.Captioned) *Bundle {
	b := newBundle(KindAsk, c.RunID)
	b.Question = c.Question
	b.Charts = []ChartExport{chartExport(0, c)}
	return b
}

// BatchBundle exports the charts and failures of a batch.
func BatchBundle(res *orchestrator.BatchResult) *Bundle {
	b := newBundle(KindBatch, res.RunID)
	b.Charts = chartExports(res.Charts)
	b.Failures = failureExports(res.Failures)
	return b
}

// DashboardBundle exports a composed dashboard and its page.
func DashboardBundle(d *orchestrator.Dashboard) *Bundle {
	b := newBundle(KindDashboard, d.RunID)
	b.Ideas = d.Ideas
	b.Charts = chartExports(d.Cards)
	b.Failures = failureExports(d.Failures)
	for _, issue := range d.Issues {
		b.Issues = append(b.Issues, issue.Check+": "+issue.Description)
	}
	b.HTML = d.Markup
	return b
}

// Dir is the directory name of the bundle under the output directory:
// "<kind>-<timestamp>-<first 8 of ID>", so names sort by time.
func (b *Bundle) Dir() string {
	t, err := time.Parse(time.RFC3339, b.ExportedAt)
	if err != nil {
		t = now().UTC()
	}
	id := b.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("%s-%s-%s", b.Kind, t.Format("20060102T150405Z"), id)
}

// Write stores the bundle under outputDir: bundle.json, one PNG per chart
// and, for dashboards, index.html. It returns the export directory.
func Write(outputDir string, b *Bundle) (string, error) {
	dir := filepath.Join(outputDir, b.Dir())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("export: create %s: %w", dir, err)
	}

	for _, c := range b.Charts {
		if err := os.WriteFile(filepath.Join(dir, c.Image), c.png, 0o644); err != nil {
			return "", fmt.Errorf("export: write %s: %w", c.Image, err)
		}
	}

	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return "", fmt.Errorf("export: marshal bundle: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, BundleFile), append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("export: write %s: %w", BundleFile, err)
	}

	if b.HTML != "" {
		if err := os.WriteFile(filepath.Join(dir, IndexFile), []byte(b.HTML), 0o644); err != nil {
			return "", fmt.Errorf("export: write %s: %w", IndexFile, err)
		}
	}
	return dir, nil
}

// Read loads the bundle document of an export directory. Chart images are
// not loaded.
func Read(dir string) (*Bundle, error) {
	data, err := os.ReadFile(filepath.Join(dir, BundleFile))
	if err != nil {
		return nil, err
	}
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("export: parse %s: %w", filepath.Join(dir, BundleFile), err)
	}
	return &b, nil
}

func newBundle(kind, id string) *Bundle {
	return &Bundle{
		Kind:       kind,
		ID:         id,
		ExportedAt: now().UTC().Format(time.RFC3339),
		Charts:     []ChartExport{},
	}
}

func chartExports(charts []*orchestrator.Captioned) []ChartExport {
	out := make([]ChartExport, 0, len(charts))
	for i, c := range charts {
		out = append(out, chartExport(i, c))
	}
	return out
}

func chartExport(i int, c *orchestrator.Captioned) ChartExport {
	e := ChartExport{
		RunID:       c.RunID,
		Question:    c.Question,
		SQL:         c.SQL,
		Rationale:   c.Rationale,
		Caption:     c.Caption,
		Analysis:    c.Analysis,
		Image:       fmt.Sprintf("chart-%02d.png", i+1),
		ImageBase64: c.ImageBase64(),
		png:         c.Image,
	}
	if c.Result != nil {
		e.Columns = c.Result.Columns
		e.Rows = c.Result.Rows
	}
	return e
}

func failureExports(fs []orchestrator.Failure) []FailureExport {
	var out []FailureExport
	for _, f := range fs {
		out = append(out, FailureExport{
			Index:   f.Index,
			Topic:   f.Topic,
			Stage:   f.Err.Stage.String(),
			Kind:    string(f.Err.Kind),
			Message: f.Message(),
		})
	}
	return out
}
