package detector

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/eu-innovation-monitor/internal/document"
)

func TestHeuristic_ShouldPromote(t *testing.T) {
	t.Parallel()

	article := "<html><body><main><p>" + strings.Repeat("Funding news. ", 300) + "</p></main></body></html>"
	tests := []struct {
		name   string
		status int
		body   string
		want   bool
	}{
		{"empty body", 200, "", true},
		{"spa shell", 200, `<html><body><div id="__next"></div></body></html>` + strings.Repeat(" ", 3000), true},
		{"script heavy", 200, `<html><script>var a=1;</script><p>t</p></html>`, true},
		{"waf challenge status", 202, `<html></html>`, true},
		{"waf challenge body", 200, `<html><script src="https://x.awswafintegration.com/ch.js"></script>` + strings.Repeat("x", 4000), true},
		{"enable javascript", 200, "<noscript>Please enable JavaScript to continue.</noscript>" + strings.Repeat(" ", 4000), true},
		{"regular article", 200, article, false},
		{"article inside react root", 200, `<div id="root">` + article + `</div>`, false},
		{"not found", 404, "not found", false},
		{"server error", 500, "", false},
	}
	h := NewHeuristic(0)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := h.ShouldPromote(document.FetchResponse{StatusCode: tc.status, Body: []byte(tc.body)})
			require.Equal(t, tc.want, got)
		})
	}
}

func TestNewHeuristicDefaultThreshold(t *testing.T) {
	t.Parallel()

	require.Equal(t, 2048, NewHeuristic(0).BodyLengthThreshold)
	require.Equal(t, 10, NewHeuristic(10).BodyLengthThreshold)
}
