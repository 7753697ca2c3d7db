// Package document defines the types shared across the normalization pipeline:
// discovery input, parsed pages, classification labels and the document.v2 record.
package document

import (
	"net/http"
	"time"
)

// DiscoveryItem is one candidate URL produced by the discovery collaborator.
type DiscoveryItem struct {
	URL               string `json:"url"`
	TitleHint         string `json:"title_hint,omitempty"`
	PublishedDateHint string `json:"published_date_hint,omitempty"`
}

// ParsedDocument holds the fields extracted from one fetched page.
type ParsedDocument struct {
	Title         string
	BodyText      string
	PageText      string
	PublishedDate time.Time
	FinalURL      string
}

// MonetaryAmount is a currency mention with its magnitude multiplied out.
type MonetaryAmount struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	Label    string  `json:"label"`
}

// Labels carries the output of the four taxonomy classifiers.
type Labels struct {
	DocType    string
	Programme  []string
	Instrument []string
	TechArea   []string
}

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	URL         string
	UseHeadless bool
	Headers     http.Header
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL          string
	StatusCode   int
	Headers      http.Header
	Body         []byte
	Duration     time.Duration
	UsedHeadless bool
}
