// Package transfer moves a single resolved asset from the catalog's media
// host onto local disk: temp file write, size check, atomic rename and
// best-effort metadata tagging.
package transfer

import "context"

// Asset is a resolved, fetchable rendition of a catalog item.
type Asset struct {
	ItemID       string
	Kind         string // audio or video
	Tier         string
	URL          string
	Ext          string // target extension including the dot
	ExpectedSize int64  // bytes, 0 when the catalog doesn't say
	Meta         Metadata
}

// Metadata is stamped on finished audio files by the Tagger.
type Metadata struct {
	Title   string
	Speaker string
	Series  string
	Year    string
	Comment string
}

// Result describes a finished fetch.
type Result struct {
	Path          string
	Bytes         int64
	AlreadyExists bool // destination already held the asset, nothing was fetched
}

// Tagger stamps metadata on a finished file. Tag failures never fail a
// transfer.
type Tagger interface {
	Tag(ctx context.Context, path string, meta Metadata) error
}

// TokenSource supplies the credential presented on media requests.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}
