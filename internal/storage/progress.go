package storage

import (
	"io"
	"log/slog"
)

// progressStep is the percentage between two progress log lines.
const progressStep = 10

// CountingReader wraps the file being uploaded and logs every progressStep
// percent read. The transfer manager reads the body from one goroutine.
type CountingReader struct {
	reader    io.Reader
	logger    *slog.Logger
	BytesRead int64
	Total     int64 // 0 if unknown

	lastLogged int
}

// NewCountingReader creates a counting reader. A nil logger disables logging.
func NewCountingReader(r io.Reader, total int64, logger *slog.Logger) *CountingReader {
	return &CountingReader{
		reader: r,
		logger: logger,
		Total:  total,
	}
}

// Read implements io.Reader.
func (r *CountingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.BytesRead += int64(n)

	if r.logger != nil {
		if pct := r.Progress(); pct >= r.lastLogged+progressStep {
			r.lastLogged = pct - pct%progressStep
			r.logger.Info("upload progress",
				"bytes_read", r.BytesRead,
				"bytes_total", r.Total,
				"percent", r.lastLogged,
			)
		}
	}
	return n, err
}

// Progress returns the read progress as a percentage (0-100).
// Returns 0 if total is unknown.
func (r *CountingReader) Progress() int {
	if r.Total <= 0 {
		return 0
	}
	return min(int(r.BytesRead*100/r.Total), 100)
}
