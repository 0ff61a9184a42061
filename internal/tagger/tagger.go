// Package tagger stamps ID3v2 metadata on downloaded audio files.
package tagger

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	id3v2 "github.com/bogem/id3v2/v2"
	"github.com/sermonarc/sermonarc/internal/transfer"
)

// ID3 writes ID3v2 tags to MP3 files. Files with other extensions are left
// untouched.
type ID3 struct{}

var _ transfer.Tagger = (*ID3)(nil)

func NewID3() *ID3 {
	return &ID3{}
}

func (t *ID3) Tag(_ context.Context, path string, meta transfer.Metadata) error {
	if !strings.EqualFold(filepath.Ext(path), ".mp3") {
		return nil
	}

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("opening id3 tag: %w", err)
	}

	defer tag.Close()

	if meta.Title != "" {
		tag.SetTitle(meta.Title)
	}

	if meta.Speaker != "" {
		tag.SetArtist(meta.Speaker)
	}

	if meta.Series != "" {
		tag.SetAlbum(meta.Series)
	}

	if meta.Year != "" {
		tag.SetYear(meta.Year)
	}

	if meta.Comment != "" {
		tag.AddCommentFrame(id3v2.CommentFrame{
			Encoding: id3v2.EncodingUTF8,
			Language: "eng",
			Text:     meta.Comment,
		})
	}

	if err := tag.Save(); err != nil {
		return fmt.Errorf("saving id3 tag: %w", err)
	}

	return nil
}
