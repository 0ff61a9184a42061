package download

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sermonarc/sermonarc/internal/catalog"
)

// maxSegment is the longest path component common filesystems accept.
const maxSegment = 255

var (
	// unsafeChars are characters that cannot appear in file names across the
	// filesystems the library may land on.
	unsafeChars = regexp.MustCompile(`[\\/*?"<>|]+`)
	spaceRun    = regexp.MustCompile(`\s+`)

	titleCaser = cases.Title(language.English)
)

// RelPath builds the library-relative destination for a sermon asset:
// Speaker/Series/Title.ext, with the series segment omitted when the sermon
// belongs to none.
func RelPath(s catalog.Sermon, ext string) string {
	speaker := cleanSegment(s.Speaker)
	if speaker == "" {
		speaker = "Unknown Speaker"
	}

	title := cleanSegment(displayTitle(s))
	if title == "" {
		title = s.ID
	}

	if title == "" {
		title = "Untitled"
	}

	parts := []string{trimSegment(speaker, maxSegment)}
	if series := cleanSegment(s.Series); series != "" {
		parts = append(parts, trimSegment(series, maxSegment))
	}

	parts = append(parts, trimSegment(title, maxSegment-len(ext))+ext)

	return filepath.Join(parts...)
}

// trimSegment cuts a path component down to limit bytes without splitting a
// rune.
func trimSegment(s string, limit int) string {
	if len(s) <= limit {
		return s
	}

	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}

	return strings.TrimSpace(s[:limit])
}

// displayTitle picks the human title of a sermon. Scream-case titles, common
// in older catalog entries, are folded to title case.
func displayTitle(s catalog.Sermon) string {
	title := s.Title
	if title == "" {
		title = s.FullTitle
	}

	if title != "" && title == strings.ToUpper(title) && strings.ContainsAny(title, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") {
		title = titleCaser.String(strings.ToLower(title))
	}

	return title
}

// cleanSegment strips filesystem-hostile characters from one path segment.
// Colons become " -" so titles like "Romans 8: Assurance" stay readable.
func cleanSegment(s string) string {
	s = strings.ReplaceAll(s, ":", " -")
	s = unsafeChars.ReplaceAllString(s, "")
	s = spaceRun.ReplaceAllString(s, " ")

	return strings.TrimSpace(s)
}
