package dedupe

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/eu-innovation-monitor/internal/hash/sha256"
)

func TestSignDeterministic(t *testing.T) {
	t.Parallel()

	signer := NewSigner(sha256.New())
	published := time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC)

	first, err := signer.Sign("https://example.eu/a", "Grant announced", published)
	require.NoError(t, err)
	second, err := signer.Sign("https://example.eu/a", "Grant announced", published)
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Len(t, first, 64)
}

func TestSignChangesWithEachInput(t *testing.T) {
	t.Parallel()

	signer := NewSigner(sha256.New())
	published := time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC)
	base, err := signer.Sign("https://example.eu/a", "Grant announced", published)
	require.NoError(t, err)

	variants := map[string]func() (string, error){
		"url": func() (string, error) {
			return signer.Sign("https://example.eu/b", "Grant announced", published)
		},
		"title": func() (string, error) {
			return signer.Sign("https://example.eu/a", "Grant awarded", published)
		},
		"date": func() (string, error) {
			return signer.Sign("https://example.eu/a", "Grant announced", published.Add(24*time.Hour))
		},
	}
	for name, fn := range variants {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			got, err := fn()
			require.NoError(t, err)
			require.NotEqual(t, base, got)
		})
	}
}

func TestSignMatchesConcatenatedDigest(t *testing.T) {
	t.Parallel()

	h := sha256.New()
	published := time.Date(2024, 11, 5, 9, 30, 0, 0, time.UTC)
	want := h.HashString("https://example.eu/a" + "Title" + "2024-11-05T09:30:00Z")

	got, err := NewSigner(h).Sign("https://example.eu/a", "Title", published)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestSignZeroDateUsesEmptyString(t *testing.T) {
	t.Parallel()

	h := sha256.New()
	got, err := NewSigner(h).Sign("https://example.eu/a", "Title", time.Time{})
	require.NoError(t, err)
	require.Equal(t, h.HashString("https://example.eu/aTitle"), got)
}

func TestSignPropagatesHasherError(t *testing.T) {
	t.Parallel()

	_, err := NewSigner(failingHasher{}).Sign("u", "t", time.Time{})
	require.Error(t, err)

	_, err = NewSigner(nil).Sign("u", "t", time.Time{})
	require.Error(t, err)
}

type failingHasher struct{}

func (failingHasher) Hash([]byte) (string, error) {
	return "", errors.New("boom")
}
