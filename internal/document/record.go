package document

import "time"

// SchemaVersion tags every record written by the pipeline.
const SchemaVersion = "document.v2"

// Record is the canonical document.v2 shape. Reserved enrichment fields are
// part of the schema and are always emitted, as null or empty lists.
type Record struct {
	Schema          string           `json:"schema"`
	SourceID        string           `json:"source_id"`
	URL             string           `json:"url"`
	CanonicalURL    string           `json:"canonical_url"`
	FetchTime       string           `json:"fetch_time"`
	Language        string           `json:"language"`
	Title           string           `json:"title"`
	PublishedDate   string           `json:"published_date"`
	UpdatedDate     *string          `json:"updated_date"`
	DocType         string           `json:"doc_type"`
	Programme       []string         `json:"programme"`
	FinanceInstr    []string         `json:"finance_instrument"`
	Stage           *string          `json:"stage"`
	Actors          []string         `json:"actors"`
	TechArea        []string         `json:"tech_area"`
	MonetaryValues  []MonetaryAmount `json:"monetary_values"`
	Summary         string           `json:"summary_150w"`
	KeyPoints       []string         `json:"key_points"`
	Implications    Implications     `json:"implications"`
	Links           Links            `json:"links"`
	CelexID         *string          `json:"celex_id"`
	CallID          *string          `json:"call_id"`
	AwardID         *string          `json:"award_id"`
	Tags            []string         `json:"tags"`
	DedupeSignature string           `json:"dedupe_signature"`
	Embeddings      []float32        `json:"embeddings"`
	ExtractionNotes *string          `json:"extraction_notes"`
}

// Implications groups the reserved analysis lists.
type Implications struct {
	InnovationDirection []string `json:"innovation_direction"`
	CapitalStructure    []string `json:"capital_structure"`
	RegulatoryChange    []string `json:"regulatory_change"`
}

// Links groups the reserved outbound link lists.
type Links struct {
	PDF     []string `json:"pdf"`
	Dataset []string `json:"dataset"`
	Related []string `json:"related"`
}

// AssembleInput is everything the assembler needs for one record.
type AssembleInput struct {
	SourceID        string
	Language        string
	Document        ParsedDocument
	Labels          Labels
	Amounts         []MonetaryAmount
	Summary         string
	DedupeSignature string
	FetchTime       time.Time
}

// Assemble composes a Record from the pipeline outputs.
func Assemble(in AssembleInput) Record {
	return Record{
		Schema:         SchemaVersion,
		SourceID:       in.SourceID,
		URL:            in.Document.FinalURL,
		CanonicalURL:   in.Document.FinalURL,
		FetchTime:      FormatTime(in.FetchTime),
		Language:       in.Language,
		Title:          in.Document.Title,
		PublishedDate:  FormatTime(in.Document.PublishedDate),
		DocType:        in.Labels.DocType,
		Programme:      nonNil(in.Labels.Programme),
		FinanceInstr:   nonNil(in.Labels.Instrument),
		Actors:         []string{},
		TechArea:       nonNil(in.Labels.TechArea),
		MonetaryValues: nonNilAmounts(in.Amounts),
		Summary:        in.Summary,
		KeyPoints:      []string{},
		Implications: Implications{
			InnovationDirection: []string{},
			CapitalStructure:    []string{},
			RegulatoryChange:    []string{},
		},
		Links: Links{
			PDF:     []string{},
			Dataset: []string{},
			Related: []string{},
		},
		Tags:            []string{},
		DedupeSignature: in.DedupeSignature,
	}
}

// FormatTime renders timestamps the way records store them.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func nonNilAmounts(in []MonetaryAmount) []MonetaryAmount {
	if in == nil {
		return []MonetaryAmount{}
	}
	out := make([]MonetaryAmount, len(in))
	copy(out, in)
	return out
}
