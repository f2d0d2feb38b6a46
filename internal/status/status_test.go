package status

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/chartwise/internal/export"
)

func writeBundle(t *testing.T, outputDir string, b *export.Bundle) string {
	t.Helper()
	dir, err := export.Write(outputDir, b)
	require.NoError(t, err)
	return dir
}

func TestHistory(t *testing.T) {
	out := t.TempDir()

	writeBundle(t, out, &export.Bundle{Kind: export.KindAsk, ID: "run-1", ExportedAt: "2026-01-02T10:00:00Z", Question: "sales per region", Charts: []export.ChartExport{}})
	writeBundle(t, out, &export.Bundle{Kind: export.KindDashboard, ID: "dash-1", ExportedAt: "2026-01-03T10:00:00Z", Charts: []export.ChartExport{}, HTML: "<html></html>",
		Failures: []export.FailureExport{{Index: 0, Topic: "x"}}})
	writeBundle(t, out, &export.Bundle{Kind: export.KindBatch, ID: "batch-1", ExportedAt: "2026-01-01T10:00:00Z", Charts: []export.ChartExport{}})

	// Noise: a stray file and a directory without a bundle.
	require.NoError(t, os.WriteFile(filepath.Join(out, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(out, "scratch"), 0o755))

	entries, err := History(out)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, "dash-1", entries[0].ID)
	assert.True(t, entries[0].HasIndex)
	assert.Equal(t, 1, entries[0].Failures)
	assert.Equal(t, "dashboard", entries[0].Label())

	assert.Equal(t, "run-1", entries[1].ID)
	assert.False(t, entries[1].HasIndex)
	assert.Equal(t, "sales per region", entries[1].Label())

	assert.Equal(t, "batch-1", entries[2].ID)
	assert.Equal(t, "batch", entries[2].Label())

	latest, ok := Latest(entries, export.KindAsk)
	require.True(t, ok)
	assert.Equal(t, "run-1", latest.ID)

	_, ok = Latest(entries, "nope")
	assert.False(t, ok)
}

func TestHistory_MissingDir(t *testing.T) {
	entries, err := History(filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}
