package tagger

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	id3v2 "github.com/bogem/id3v2/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sermonarc/sermonarc/internal/transfer"
)

func TestID3TagsAudioFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Grace Abounding.mp3")
	audio := []byte("\xff\xfb\x90\x00fake audio frames")
	require.NoError(t, os.WriteFile(path, audio, 0o644))

	meta := transfer.Metadata{
		Title:   "Grace Abounding",
		Speaker: "John Bunyan",
		Series:  "Classic Sermons",
		Year:    "2024",
		Comment: "https://www.sermonaudio.com/sermons/100001",
	}
	require.NoError(t, NewID3().Tag(context.Background(), path, meta))

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	require.NoError(t, err)
	defer tag.Close()

	assert.Equal(t, "Grace Abounding", tag.Title())
	assert.Equal(t, "John Bunyan", tag.Artist())
	assert.Equal(t, "Classic Sermons", tag.Album())
	assert.Equal(t, "2024", tag.Year())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasSuffix(raw, audio), "audio payload must survive tagging")
}

func TestID3SkipsEmptyFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "untitled.mp3")
	require.NoError(t, os.WriteFile(path, []byte("\xff\xfb"), 0o644))

	require.NoError(t, NewID3().Tag(context.Background(), path, transfer.Metadata{Title: "Only Title"}))

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	require.NoError(t, err)
	defer tag.Close()

	assert.Equal(t, "Only Title", tag.Title())
	assert.Empty(t, tag.Artist())
	assert.Empty(t, tag.Album())
}

func TestID3IgnoresVideoFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Grace Abounding.mp4")
	require.NoError(t, os.WriteFile(path, []byte("video payload"), 0o644))

	require.NoError(t, NewID3().Tag(context.Background(), path, transfer.Metadata{Title: "Grace"}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "video payload", string(raw), "non-audio files must not be rewritten")
}
