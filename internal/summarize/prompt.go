package summarize

import (
	"fmt"
	"strings"
	"time"
)

// MaxPromptBodyChars caps the article text sent to a generator.
const MaxPromptBodyChars = 6000

// ReferenceDateLayout formats dates in reference bullets.
const ReferenceDateLayout = "02 Jan 2006"

const systemPrompt = "You are a precise newsletter writer for EU policy and finance audiences."

const instructions = `Write a ~500-word newsletter-style summary for policy/finance readers tracking EU innovation, defence and capital markets. Be engaging but informative, crisp and precise (UK English). Connect the dots without hype. Include:
1) What happened and why it matters.
2) Programme/instrument links (e.g., EDF, EDIP, InvestEU, EIB/EIF, SAFE, CMU) only if present in the text. Do not invent any.
3) Any € amounts, timelines, eligibility/financing changes.
4) Implications for startups/SMEs, primes, and regulators.
5) One or two short 'so what' insights.

After the summary, add a 'References' block with 2-5 bullet points citing ONLY the source(s) in the provided text. Use this format per bullet: • <Site or Title> — <date if available> — <URL>. If you don't know the date, omit it. Do not fabricate sources or facts.`

// BuildPrompt renders the generator prompt for req.
func BuildPrompt(req Request) Prompt {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = "(untitled)"
	}
	url := req.SourceURL
	if url == "" {
		url = "N/A"
	}
	date := referenceDate(req.Published)
	if date == "" {
		date = "N/A"
	}

	var b strings.Builder
	b.WriteString(instructions)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "TITLE: %s\n", title)
	fmt.Fprintf(&b, "SOURCE_URL: %s\n", url)
	fmt.Fprintf(&b, "SOURCE_DATE: %s\n", date)
	b.WriteString("ARTICLE_TEXT:\n")
	b.WriteString(truncateRunes(req.Body, MaxPromptBodyChars))
	return Prompt{System: systemPrompt, User: b.String()}
}

func referenceDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(ReferenceDateLayout)
}

func truncateRunes(s string, limit int) string {
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}
