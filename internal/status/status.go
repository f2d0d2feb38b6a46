// Package status reports the exports found in the output directory.
package status

import (
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/dusk-indust/chartwise/internal/export"
)

// Entry describes one export directory.
type Entry struct {
	Dir        string // absolute path
	Kind       string // "ask", "batch" or "dashboard"
	ID         string
	ExportedAt time.Time
	Question   string
	Charts     int
	Failures   int
	HasIndex   bool // index.html present
}

// Label is a one-line description of the entry.
func (e Entry) Label() string {
	switch {
	case e.Question != "":
		return e.Question
	case e.Kind == export.KindDashboard:
		return "dashboard"
	default:
		return e.Kind
	}
}

// History scans outputDir for export directories, newest first. A missing
// output directory has no history. Directories without a readable bundle
// are skipped.
func History(outputDir string) ([]Entry, error) {
	entries, err := os.ReadDir(outputDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(outputDir)
	if err != nil {
		abs = outputDir
	}

	var results []Entry
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(abs, entry.Name())
		b, err := export.Read(dir)
		if err != nil {
			continue
		}
		at, _ := time.Parse(time.RFC3339, b.ExportedAt)
		_, indexErr := os.Stat(filepath.Join(dir, export.IndexFile))
		results = append(results, Entry{
			Dir:        dir,
			Kind:       b.Kind,
			ID:         b.ID,
			ExportedAt: at,
			Question:   b.Question,
			Charts:     len(b.Charts),
			Failures:   len(b.Failures),
			HasIndex:   indexErr == nil,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if !results[i].ExportedAt.Equal(results[j].ExportedAt) {
			return results[i].ExportedAt.After(results[j].ExportedAt)
		}
		return results[i].Dir > results[j].Dir
	})
	return results, nil
}

// Latest returns the newest entry of the given kind, or false when there
// is none. An empty kind matches every entry.
func Latest(entries []Entry, kind string) (Entry, bool) {
	for _, e := range entries {
		if kind == "" || e.Kind == kind {
			return e, true
		}
	}
	return Entry{}, false
}
