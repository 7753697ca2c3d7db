package memory

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlobStorePutObjectCopiesData(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	payload := []byte("<html>content</html>")
	uri, err := store.PutObject(context.Background(), "raw/run-1/abc.html", "text/html", bytes.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, "memory://raw/run-1/abc.html", uri)

	payload[0] = 'X'
	got, contentType, ok := store.Object("raw/run-1/abc.html")
	require.True(t, ok)
	assert.Equal(t, "<html>content</html>", string(got))
	assert.Equal(t, "text/html", contentType)

	got[0] = 'Y'
	again, _, _ := store.Object("raw/run-1/abc.html")
	assert.Equal(t, byte('<'), again[0])
	assert.Equal(t, []string{"raw/run-1/abc.html"}, store.Paths())
}

func TestBlobStoreRejectsEmptyPathAndCancelledContext(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	_, err := store.PutObject(context.Background(), " ", "", bytes.NewReader(nil))
	require.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = store.PutObject(ctx, "a.html", "", bytes.NewReader([]byte("x")))
	require.ErrorIs(t, err, context.Canceled)

	_, _, ok := store.Object("a.html")
	assert.False(t, ok)
	assert.NoError(t, store.Close())
}
