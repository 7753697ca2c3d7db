package storage_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/eu-innovation-monitor/internal/storage"
	"github.com/JakeFAU/eu-innovation-monitor/internal/storage/local"
	"github.com/JakeFAU/eu-innovation-monitor/internal/storage/memory"
)

func TestOpenSelectsBackend(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	archive, err := storage.Open(ctx, storage.Config{})
	require.NoError(t, err)
	assert.Nil(t, archive)

	archive, err = storage.Open(ctx, storage.Config{Backend: "none"})
	require.NoError(t, err)
	assert.Nil(t, archive)

	archive, err = storage.Open(ctx, storage.Config{Backend: " Memory "})
	require.NoError(t, err)
	assert.IsType(t, &memory.BlobStore{}, archive)

	archive, err = storage.Open(ctx, storage.Config{Backend: "local", LocalDir: filepath.Join(t.TempDir(), "raw")})
	require.NoError(t, err)
	assert.IsType(t, &local.BlobStore{}, archive)
	assert.NoError(t, archive.Close())
}

func TestOpenRejectsBadConfig(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	_, err := storage.Open(ctx, storage.Config{Backend: "s3"})
	require.ErrorContains(t, err, "unknown archive backend")

	_, err = storage.Open(ctx, storage.Config{Backend: "local"})
	require.ErrorContains(t, err, "open local archive")

	_, err = storage.Open(ctx, storage.Config{Backend: "gcs"})
	require.ErrorContains(t, err, "open gcs archive")
}
