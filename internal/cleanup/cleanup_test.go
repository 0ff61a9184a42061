package cleanup

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string, age time.Duration) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	if age > 0 {
		old := time.Now().Add(-age)
		require.NoError(t, os.Chtimes(path, old, old))
	}
}

func TestRemoveStaleParts(t *testing.T) {
	dir := t.TempDir()

	stale := filepath.Join(dir, "Speaker", "Old Sermon.mp3.part")
	fresh := filepath.Join(dir, "Speaker", "In Progress.mp3.part")
	done := filepath.Join(dir, "Speaker", "Finished Sermon.mp3")

	writeFile(t, stale, 48*time.Hour)
	writeFile(t, fresh, 0)
	writeFile(t, done, 48*time.Hour)

	removed, err := RemoveStaleParts(context.Background(), dir, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	assert.NoFileExists(t, stale)
	assert.FileExists(t, fresh, "fresh partials belong to a live run")
	assert.FileExists(t, done, "completed files are never touched")
}

func TestRemoveStalePartsMissingDir(t *testing.T) {
	removed, err := RemoveStaleParts(context.Background(), filepath.Join(t.TempDir(), "nope"), time.Hour)
	require.NoError(t, err)
	assert.Zero(t, removed)
}
