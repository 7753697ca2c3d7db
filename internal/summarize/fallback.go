package summarize

import (
	"regexp"
	"strings"
)

const (
	// FallbackWordBudget bounds the sentences kept by Fallback.
	FallbackWordBudget = 520
	// FallbackCharBudget bounds the raw truncation used when no sentence fits.
	FallbackCharBudget = 3800
)

var sentenceEnd = regexp.MustCompile(`[.?!]\s+`)

// Fallback builds a summary from whole leading sentences of the body and a
// references block naming the source date and URL.
func Fallback(req Request) string {
	var (
		kept  []string
		words int
	)
	for _, sentence := range splitSentences(req.Body) {
		n := len(strings.Fields(sentence))
		if n == 0 {
			continue
		}
		if words+n > FallbackWordBudget {
			break
		}
		kept = append(kept, sentence)
		words += n
	}

	summary := strings.TrimSpace(strings.Join(kept, " "))
	if summary == "" {
		summary = req.Body
		if len([]rune(summary)) > FallbackCharBudget {
			summary = truncateRunes(summary, FallbackCharBudget) + "…"
		}
	}
	return summary + references(req)
}

func splitSentences(text string) []string {
	var out []string
	start := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(text, -1) {
		out = append(out, text[start:loc[0]+1])
		start = loc[1]
	}
	if start < len(text) {
		out = append(out, text[start:])
	}
	return out
}

func references(req Request) string {
	var b strings.Builder
	b.WriteString("\n\nReferences\n• Source")
	if date := referenceDate(req.Published); date != "" {
		b.WriteString(" — " + date)
	}
	if req.SourceURL != "" {
		b.WriteString(" — " + req.SourceURL)
	}
	return b.String()
}
