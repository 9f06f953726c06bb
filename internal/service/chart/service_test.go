package chart_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/csvsage/backend/internal/analysis/tabular"
	"github.com/zhouzirui/csvsage/backend/internal/service/chart"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func TestRenderWritesHeatmapAndHistogram(t *testing.T) {
	dir := t.TempDir()
	svc, err := chart.NewService(dir)
	require.NoError(t, err)

	ds, err := tabular.Parse(strings.NewReader("label,units,price\na,1,2\nb,2,4\nc,3,7\nd,5,9\n"))
	require.NoError(t, err)

	names, err := svc.Render(context.Background(), "s1", ds)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1_heatmap.png", "s1_hist.png"}, names)

	for _, name := range names {
		path, err := svc.Path(name)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, name), path)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(data, pngMagic), name)
	}
}

func TestRenderWithoutNumericColumns(t *testing.T) {
	svc, err := chart.NewService(t.TempDir())
	require.NoError(t, err)

	ds, err := tabular.Parse(strings.NewReader("name\nann\nbob\n"))
	require.NoError(t, err)

	names, err := svc.Render(context.Background(), "s1", ds)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestPathRejectsUnknownOrUnsafeNames(t *testing.T) {
	dir := t.TempDir()
	svc, err := chart.NewService(dir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	for _, name := range []string{"", "missing.png", "../secret.png", "notes.txt", "sub/dir.png"} {
		_, err := svc.Path(name)
		assert.ErrorIs(t, err, chart.ErrPlotNotFound, name)
	}
}
