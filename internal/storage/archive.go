// Package storage selects the backend that archives raw HTML snapshots of
// fetched documents.
package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/JakeFAU/eu-innovation-monitor/internal/document"
	"github.com/JakeFAU/eu-innovation-monitor/internal/storage/gcs"
	"github.com/JakeFAU/eu-innovation-monitor/internal/storage/local"
	"github.com/JakeFAU/eu-innovation-monitor/internal/storage/memory"
)

// Supported archive backends.
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendLocal  = "local"
	BackendGCS    = "gcs"
)

// Archive is a BlobStore that owns resources.
type Archive interface {
	document.BlobStore
	Close() error
}

// Config selects and configures an archive backend.
type Config struct {
	Backend  string
	LocalDir string
	Bucket   string
	Prefix   string
}

// Open returns the configured archive, or nil for BackendNone.
func Open(ctx context.Context, cfg Config) (Archive, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendNone:
		return nil, nil
	case BackendMemory:
		return memory.NewBlobStore(), nil
	case BackendLocal:
		store, err := local.New(local.Config{BaseDir: cfg.LocalDir})
		if err != nil {
			return nil, fmt.Errorf("open local archive: %w", err)
		}
		return store, nil
	case BackendGCS:
		store, err := gcs.Open(ctx, gcs.Config{Bucket: cfg.Bucket, Prefix: cfg.Prefix})
		if err != nil {
			return nil, fmt.Errorf("open gcs archive: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown archive backend %q", cfg.Backend)
	}
}
