// Package extract derives title, body text and publish date from fetched HTML
// using ordered selector fallback chains. Every chain ends in a safe default,
// so extraction ambiguity never surfaces as an error.
package extract

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/eu-innovation-monitor/internal/document"
)

// MaxBodyChars caps the body text handed to classifiers and the summarizer.
const MaxBodyChars = 50000

// Untitled is used when no title signal exists at all.
const Untitled = "(untitled)"

// Parse builds a ParsedDocument from raw HTML. The returned published date is
// never zero: it falls back to now.
func Parse(raw []byte, finalURL string, item document.DiscoveryItem, now time.Time) (document.ParsedDocument, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return document.ParsedDocument{}, fmt.Errorf("parse html: %w", err)
	}
	doc.Find("script, style, noscript, template").Remove()

	if finalURL == "" {
		finalURL = item.URL
	}
	return document.ParsedDocument{
		Title:         Title(doc, item.TitleHint),
		BodyText:      MainText(doc),
		PageText:      PageText(doc),
		PublishedDate: PublishedDate(doc, item.PublishedDateHint, now),
		FinalURL:      finalURL,
	}, nil
}

// Title tries the primary heading, the Open Graph title and the <title>
// element, then the caller's hint, then Untitled.
func Title(doc *goquery.Document, hint string) string {
	if t := text(doc.Find("h1").First()); t != "" {
		return t
	}
	if og, ok := doc.Find(`meta[property="og:title"]`).First().Attr("content"); ok {
		if t := strings.TrimSpace(og); t != "" {
			return t
		}
	}
	if t := text(doc.Find("title").First()); t != "" {
		return t
	}
	if h := strings.TrimSpace(hint); h != "" {
		return h
	}
	return Untitled
}

// MainText joins the non-empty paragraphs of the first main/article region
// (or the whole document) with newlines, capped at MaxBodyChars.
func MainText(doc *goquery.Document) string {
	root := doc.Find("main, article").First()
	if root.Length() == 0 {
		root = doc.Selection
	}
	var paragraphs []string
	root.Find("p").Each(func(_ int, p *goquery.Selection) {
		if t := text(p); t != "" {
			paragraphs = append(paragraphs, t)
		}
	})
	return truncateRunes(strings.Join(paragraphs, "\n"), MaxBodyChars)
}

// PageText returns the visible text of the whole document, whitespace collapsed.
func PageText(doc *goquery.Document) string {
	return text(doc.Selection)
}

// text joins every descendant text node with a single space, so adjacent
// elements never run together.
func text(sel *goquery.Selection) string {
	if sel.Length() == 0 {
		return ""
	}
	var words []string
	collectWords(sel, &words)
	return strings.Join(words, " ")
}

func collectWords(sel *goquery.Selection, words *[]string) {
	sel.Contents().Each(func(_ int, child *goquery.Selection) {
		if goquery.NodeName(child) == "#text" {
			*words = append(*words, strings.Fields(child.Text())...)
			return
		}
		collectWords(child, words)
	})
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	count := 0
	for i := range s {
		if count == limit {
			return s[:i]
		}
		count++
	}
	return s
}
