// Package cleanup sweeps leftovers of interrupted runs out of the library.
package cleanup

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sermonarc/sermonarc/internal/logctx"
)

// partSuffix marks in-progress transfer files; completed downloads are
// renamed away from it atomically.
const partSuffix = ".part"

// RemoveStaleParts deletes .part files under dir whose last write is older
// than keep. Fresh .part files are left alone so a concurrent run is never
// disturbed. It returns how many files were removed; walk errors on
// individual entries are logged and skipped.
func RemoveStaleParts(ctx context.Context, dir string, keep time.Duration) (int, error) {
	logger := logctx.LoggerFromContext(ctx)
	cutoff := time.Now().Add(-keep)
	removed := 0

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}

			return err
		}

		if d.IsDir() || !strings.HasSuffix(d.Name(), partSuffix) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			logger.Warn("failed to stat partial file", "file", path, "err", err)

			return nil
		}

		if info.ModTime().After(cutoff) {
			return nil
		}

		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logger.Warn("failed to delete partial file", "file", path, "err", err)

			return nil
		}

		logger.Info("deleted stale partial file", "file", path, "age", time.Since(info.ModTime()).Round(time.Minute).String())

		removed++

		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return removed, nil
		}

		return removed, err
	}

	return removed, nil
}
