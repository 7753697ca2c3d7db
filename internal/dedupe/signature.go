// Package dedupe derives the advisory signature that identifies one logical
// document instance across pipeline runs.
package dedupe

import (
	"fmt"
	"time"

	"github.com/JakeFAU/eu-innovation-monitor/internal/document"
)

// Signer computes dedupe signatures over (url, title, published date).
type Signer struct {
	hasher document.Hasher
}

// NewSigner wraps the provided hasher.
func NewSigner(hasher document.Hasher) *Signer {
	return &Signer{hasher: hasher}
}

// Sign hashes url + title + the RFC 3339 published date (empty when unknown).
// Identical inputs always yield the same signature.
func (s *Signer) Sign(url, title string, published time.Time) (string, error) {
	if s == nil || s.hasher == nil {
		return "", fmt.Errorf("dedupe signer has no hasher")
	}
	sig, err := s.hasher.Hash([]byte(url + title + document.FormatTime(published)))
	if err != nil {
		return "", fmt.Errorf("hash signature input: %w", err)
	}
	return sig, nil
}
