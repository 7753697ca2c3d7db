// Package detector decides when a plain HTTP response should be re-fetched in
// a headless browser.
package detector

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/JakeFAU/eu-innovation-monitor/internal/document"
)

// Heuristic promotes empty, script-heavy, SPA shell and bot-challenge pages.
type Heuristic struct {
	BodyLengthThreshold int
}

// NewHeuristic creates a detector; threshold 0 selects 2048 bytes.
func NewHeuristic(threshold int) *Heuristic {
	if threshold <= 0 {
		threshold = 2048
	}
	return &Heuristic{BodyLengthThreshold: threshold}
}

var spaMarkers = [][]byte{
	[]byte("__next"),
	[]byte(`id="root"`),
	[]byte(`id="app"`),
	[]byte("data-reactroot"),
}

// Markers served by WAF interstitials instead of the requested document.
var challengeMarkers = [][]byte{
	[]byte("awswafintegration"),
	[]byte("challenge-platform"),
	[]byte("please enable javascript"),
	[]byte("javascript is disabled"),
	[]byte("request rejected"),
}

// ShouldPromote reports whether probe looks like a placeholder for content
// rendered by JavaScript.
func (h *Heuristic) ShouldPromote(probe document.FetchResponse) bool {
	switch probe.StatusCode {
	case http.StatusOK:
	case http.StatusAccepted:
		// WAF challenges answer 202 with a script that sets a token cookie.
		return true
	default:
		return false
	}
	body := probe.Body
	if len(body) == 0 {
		return true
	}
	lower := bytes.ToLower(body)
	for _, marker := range challengeMarkers {
		if bytes.Contains(lower, marker) {
			return true
		}
	}
	if len(body) < h.BodyLengthThreshold && scriptDensityHigh(string(lower)) {
		return true
	}
	if bytes.Contains(lower, []byte("<p")) {
		return false
	}
	for _, marker := range spaMarkers {
		if bytes.Contains(body, marker) {
			return true
		}
	}
	return false
}

// scriptDensityHigh expects lower-cased HTML.
func scriptDensityHigh(lower string) bool {
	total := len(lower)
	if total == 0 {
		return false
	}

	const (
		openTag  = "<script"
		closeTag = "</script>"
	)
	coverage := 0
	pos := 0
	for {
		rel := strings.Index(lower[pos:], openTag)
		if rel == -1 {
			break
		}
		start := pos + rel

		tagClose := strings.IndexByte(lower[start:], '>')
		if tagClose == -1 {
			coverage += total - start
			break
		}
		contentStart := start + tagClose + 1

		end := total
		if relEnd := strings.Index(lower[contentStart:], closeTag); relEnd != -1 {
			end = contentStart + relEnd + len(closeTag)
		}
		coverage += end - start
		pos = end
	}
	return coverage*100/total >= 25
}
