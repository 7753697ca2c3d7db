// Package shard appends canonical records to weekly NDJSON files named after
// the ISO calendar week.
package shard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/JakeFAU/eu-innovation-monitor/internal/document"
)

// DefaultDir is where shards land unless configured otherwise.
const DefaultDir = "outputs/docs"

// Writer appends records to the shard for the current UTC week. Each Append
// opens, writes one line and closes the file; no handle or content is cached.
type Writer struct {
	dir   string
	clock document.Clock
}

// New creates a Writer rooted at dir.
func New(dir string, clock document.Clock) (*Writer, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("shard directory is required")
	}
	if clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	return &Writer{dir: dir, clock: clock}, nil
}

// WeekPath returns <dir>/<ISO-year>-<ISO-week>.ndjson for t in UTC.
func WeekPath(dir string, t time.Time) string {
	year, week := t.UTC().ISOWeek()
	return filepath.Join(dir, fmt.Sprintf("%d-%02d.ndjson", year, week))
}

// CurrentPath is the shard the next Append would write to.
func (w *Writer) CurrentPath() string {
	return WeekPath(w.dir, w.clock.Now())
}

// Append writes record as one JSON line and returns the shard path.
func (w *Writer) Append(ctx context.Context, record document.Record) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	line, err := Encode(record)
	if err != nil {
		return "", err
	}

	path := w.CurrentPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return "", fmt.Errorf("create shard directory: %w", err)
	}
	// #nosec G304 -- path is derived from the configured shard directory.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640)
	if err != nil {
		return "", fmt.Errorf("open shard: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		closeErr := f.Close()
		if closeErr != nil {
			return "", fmt.Errorf("write shard: %w (close shard: %v)", err, closeErr)
		}
		return "", fmt.Errorf("write shard: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close shard: %w", err)
	}
	return path, nil
}

// Encode renders record as a newline-terminated JSON line with non-ASCII and
// HTML characters left unescaped.
func Encode(record document.Record) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(record); err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return buf.Bytes(), nil
}
