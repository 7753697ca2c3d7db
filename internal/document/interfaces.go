package document

import (
	"context"
	"io"
	"time"
)

// Fetcher retrieves raw HTML for a URL.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// HeadlessDetector decides whether a headless fetch is warranted.
type HeadlessDetector interface {
	ShouldPromote(probe FetchResponse) bool
}

// Hasher computes digests for deduplication.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run identifiers.
type IDGenerator interface {
	NewID() (string, error)
}

// RecordWriter appends canonical records to the weekly log.
type RecordWriter interface {
	Append(ctx context.Context, record Record) (string, error)
	CurrentPath() string
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher pushes record notifications to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// RecordIndex keeps an advisory catalog of written records.
type RecordIndex interface {
	IndexRecord(ctx context.Context, entry IndexEntry) error
}

// IndexEntry is the row stored per written record.
type IndexEntry struct {
	RunID           string
	DedupeSignature string
	URL             string
	Title           string
	DocType         string
	PublishedDate   time.Time
	FetchTime       time.Time
	ShardPath       string
}
