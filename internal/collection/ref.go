// Package collection resolves user-supplied references (catalog URLs or bare
// IDs) into typed collection identifiers.
package collection

import "fmt"

// Kind says what a Ref points at.
type Kind string

const (
	KindSpeaker     Kind = "speaker"
	KindBroadcaster Kind = "broadcaster"
	KindSeries      Kind = "series"
	KindSermon      Kind = "sermon"
)

// Ref identifies a collection, or a single item when Kind is KindSermon.
type Ref struct {
	Kind Kind
	ID   string
}

func (r Ref) String() string {
	return string(r.Kind) + ":" + r.ID
}

// UnknownRefError reports input that matches no known reference shape.
type UnknownRefError struct {
	Input string
}

func (e *UnknownRefError) Error() string {
	return fmt.Sprintf("cannot tell what %q refers to, expected a catalog URL or a sermon ID", e.Input)
}
