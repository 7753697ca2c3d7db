package extract

import (
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
)

// dateMetaSelectors are tried in order; the attribute holding the value differs
// per element.
var dateMetaSelectors = []struct {
	selector string
	attr     string
}{
	{`meta[property="article:published_time"]`, "content"},
	{`time[datetime]`, "datetime"},
	{`meta[name="date"]`, "content"},
}

var headerDatePattern = regexp.MustCompile(`\b(\d{1,2}\s+[A-Za-z]{3,9}\s+\d{4})\b`)

// Layouts for "DD Month YYYY" tokens that dateparse may not accept.
var dayFirstLayouts = []string{
	"2 January 2006",
	"2 Jan 2006",
}

// PublishedDate resolves the publish date through structured metadata, the
// caller's hint, a header/main text scan and finally now. A stage is only
// consulted when every earlier stage produced nothing parseable.
func PublishedDate(doc *goquery.Document, hint string, now time.Time) time.Time {
	for _, m := range dateMetaSelectors {
		val, ok := doc.Find(m.selector).First().Attr(m.attr)
		if !ok {
			continue
		}
		if t, ok := ParseDate(val); ok {
			return t
		}
	}
	if t, ok := ParseDate(hint); ok {
		return t
	}

	region := doc.Find("header, main, article").First()
	if region.Length() == 0 {
		region = doc.Selection
	}
	if m := headerDatePattern.FindStringSubmatch(text(region)); m != nil {
		if t, ok := ParseDate(m[1]); ok {
			return t
		}
	}
	return now.UTC()
}

// ParseDate parses a loosely formatted date with a day-first assumption.
// Strings without a zone are read as UTC; results are always UTC. Malformed
// or ambiguous input reports false rather than failing.
func ParseDate(raw string) (parsed time.Time, ok bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	defer func() {
		if recover() != nil {
			parsed, ok = time.Time{}, false
		}
	}()

	if t, err := dateparse.ParseIn(s, time.UTC, dateparse.PreferMonthFirst(false)); err == nil {
		return t.UTC(), true
	}
	for _, layout := range dayFirstLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
