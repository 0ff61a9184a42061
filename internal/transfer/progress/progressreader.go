// Package progress wraps an io.Reader and reports cumulative byte counts to
// a callback.
package progress

import "io"

const defaultInterval = 1 << 20

// Reader reports progress while the underlying reader is consumed. The
// callback fires whenever at least interval bytes passed since the last
// report, and once more at EOF if bytes arrived since then.
type Reader struct {
	r        io.Reader
	total    int64
	interval int64
	cb       func(written, total int64)

	read      int64
	lastFired int64
}

// NewReader wraps r. total may be 0 when the full size is unknown; it is
// passed through to the callback untouched.
func NewReader(r io.Reader, total, interval int64, cb func(written, total int64)) *Reader {
	if interval <= 0 {
		interval = defaultInterval
	}

	return &Reader{r: r, total: total, interval: interval, cb: cb}
}

func (pr *Reader) Read(p []byte) (int, error) {
	n, err := pr.r.Read(p)
	if n > 0 {
		pr.read += int64(n)

		if pr.read-pr.lastFired >= pr.interval {
			pr.fire()
		}
	}

	if err == io.EOF && pr.read > pr.lastFired {
		pr.fire()
	}

	return n, err
}

func (pr *Reader) fire() {
	if pr.cb != nil {
		pr.cb(pr.read, pr.total)
	}

	pr.lastFired = pr.read
}
