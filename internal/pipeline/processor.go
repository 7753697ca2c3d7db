// Package pipeline runs discovery items through fetch, extraction,
// classification, summarization and the shard append, one item at a time.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/eu-innovation-monitor/internal/discovery"
	"github.com/JakeFAU/eu-innovation-monitor/internal/document"
	"github.com/JakeFAU/eu-innovation-monitor/internal/extract"
	"github.com/JakeFAU/eu-innovation-monitor/internal/metrics"
	"github.com/JakeFAU/eu-innovation-monitor/internal/money"
	"github.com/JakeFAU/eu-innovation-monitor/internal/summarize"
	"github.com/JakeFAU/eu-innovation-monitor/internal/telemetry"
)

// Stage names the step at which an item was skipped.
type Stage string

const (
	StageInput Stage = "input"
	StageFetch Stage = "fetch"
	StageParse Stage = "parse"
	StageSign  Stage = "sign"
	StageWrite Stage = "write"
	StagePanic Stage = "panic"
)

// Outcome is the terminal state of one item.
type Outcome string

const (
	OutcomeWritten Outcome = "written"
	OutcomeSkipped Outcome = "skipped"
)

// Defaults applied by NewProcessor.
const (
	DefaultSourceID      = "investeu_news"
	DefaultLanguage      = "en"
	DefaultArchivePrefix = "raw"
)

var errMissingURL = errors.New("discovery item has no url")

// Result describes what happened to one item. Record and Shard are set only
// for written items.
type Result struct {
	URL           string
	Outcome       Outcome
	Stage         Stage
	Reason        string
	Record        *document.Record
	Shard         string
	SummaryOrigin summarize.Origin
}

// Written reports whether the item produced a record.
func (r Result) Written() bool {
	return r.Outcome == OutcomeWritten
}

// Config controls record defaults and side-effect targets.
type Config struct {
	SourceID      string
	Language      string
	ArchivePrefix string
	Topic         string
}

// Classifier labels body text.
type Classifier interface {
	Classify(text, finalURL string) document.Labels
}

// Summarizer produces the summary field; it must not fail.
type Summarizer interface {
	Summarize(ctx context.Context, req summarize.Request) summarize.Summary
}

// Signer computes the dedupe signature.
type Signer interface {
	Sign(url, title string, published time.Time) (string, error)
}

// Deps are the collaborators of a Processor. Archive, Index and Publisher are
// optional.
type Deps struct {
	Fetcher    document.Fetcher
	Classifier Classifier
	Summarizer Summarizer
	Signer     Signer
	Writer     document.RecordWriter
	Clock      document.Clock
	Archive    document.BlobStore
	Index      document.RecordIndex
	Publisher  document.Publisher
	Logger     *zap.Logger
}

// Processor turns one discovery item into at most one written record.
type Processor struct {
	deps   Deps
	cfg    Config
	logger *zap.Logger
}

// NewProcessor validates deps and applies config defaults.
func NewProcessor(deps Deps, cfg Config) (*Processor, error) {
	switch {
	case deps.Fetcher == nil:
		return nil, fmt.Errorf("fetcher is required")
	case deps.Classifier == nil:
		return nil, fmt.Errorf("classifier is required")
	case deps.Summarizer == nil:
		return nil, fmt.Errorf("summarizer is required")
	case deps.Signer == nil:
		return nil, fmt.Errorf("signer is required")
	case deps.Writer == nil:
		return nil, fmt.Errorf("record writer is required")
	case deps.Clock == nil:
		return nil, fmt.Errorf("clock is required")
	}
	if cfg.SourceID == "" {
		cfg.SourceID = DefaultSourceID
	}
	if cfg.Language == "" {
		cfg.Language = DefaultLanguage
	}
	if cfg.ArchivePrefix == "" {
		cfg.ArchivePrefix = DefaultArchivePrefix
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{deps: deps, cfg: cfg, logger: logger.Named("pipeline")}, nil
}

// Process runs a single item. It never panics and never returns a partially
// written record: any failure before the append yields a skipped Result.
func (p *Processor) Process(ctx context.Context, runID string, item discovery.Item) (res Result) {
	start := time.Now()
	ctx, span := telemetry.Tracer().Start(ctx, "pipeline.Process", trace.WithAttributes(
		attribute.String("run_id", runID),
		attribute.String("url", item.URL),
	))
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("item panicked",
				zap.String("run_id", runID),
				zap.String("url", item.URL),
				zap.Any("panic", r),
			)
			res = skip(item.URL, StagePanic, fmt.Errorf("panic: %v", r))
		}
		span.SetAttributes(attribute.String("outcome", string(res.Outcome)))
		if !res.Written() {
			span.SetAttributes(attribute.String("stage", string(res.Stage)))
			span.SetStatus(codes.Error, res.Reason)
		}
		span.End()
		metrics.ObserveItem(item.URL, string(res.Outcome), string(res.Stage), time.Since(start))
	}()

	if strings.TrimSpace(item.URL) == "" {
		return skip(item.URL, StageInput, errMissingURL)
	}

	resp, err := p.deps.Fetcher.Fetch(ctx, document.FetchRequest{URL: item.URL})
	if err != nil {
		p.logger.Warn("fetch failed, skipping item",
			zap.String("run_id", runID), zap.String("url", item.URL), zap.Error(err))
		return skip(item.URL, StageFetch, fmt.Errorf("fetch: %w", err))
	}
	metrics.ObserveFetch(item.URL, resp.UsedHeadless, len(resp.Body))

	fetchTime := p.deps.Clock.Now().UTC()
	parsed, err := extract.Parse(resp.Body, resp.URL, item.DiscoveryItem, fetchTime)
	if err != nil {
		p.logger.Warn("parse failed, skipping item",
			zap.String("run_id", runID), zap.String("url", item.URL), zap.Error(err))
		return skip(item.URL, StageParse, err)
	}

	labels := p.deps.Classifier.Classify(parsed.BodyText, parsed.FinalURL)
	amounts := money.Extract(parsed.PageText)
	summary := p.deps.Summarizer.Summarize(ctx, summarize.Request{
		Title:     parsed.Title,
		Body:      parsed.BodyText,
		SourceURL: parsed.FinalURL,
		Published: parsed.PublishedDate,
	})

	signature, err := p.deps.Signer.Sign(parsed.FinalURL, parsed.Title, parsed.PublishedDate)
	if err != nil {
		return skip(item.URL, StageSign, fmt.Errorf("sign: %w", err))
	}

	sourceID := item.SourceID
	if sourceID == "" {
		sourceID = p.cfg.SourceID
	}
	record := document.Assemble(document.AssembleInput{
		SourceID:        sourceID,
		Language:        p.cfg.Language,
		Document:        parsed,
		Labels:          labels,
		Amounts:         amounts,
		Summary:         summary.Text,
		DedupeSignature: signature,
		FetchTime:       fetchTime,
	})

	shardPath, err := p.deps.Writer.Append(ctx, record)
	if err != nil {
		p.logger.Error("append record failed",
			zap.String("run_id", runID), zap.String("url", item.URL), zap.Error(err))
		return skip(item.URL, StageWrite, fmt.Errorf("append record: %w", err))
	}

	metrics.ObserveSummary(string(summary.Origin))
	metrics.ObserveAmounts(len(amounts))
	p.logger.Info("record written",
		zap.String("run_id", runID),
		zap.String("url", record.URL),
		zap.String("doc_type", record.DocType),
		zap.String("summary_origin", string(summary.Origin)),
		zap.String("shard", shardPath),
	)

	p.afterWrite(ctx, runID, record, resp.Body, parsed, fetchTime, shardPath)

	return Result{
		URL:           item.URL,
		Outcome:       OutcomeWritten,
		Record:        &record,
		Shard:         shardPath,
		SummaryOrigin: summary.Origin,
	}
}

// afterWrite runs the optional archive, index and notify steps. The record is
// already durable, so failures here are logged and counted only.
func (p *Processor) afterWrite(
	ctx context.Context,
	runID string,
	record document.Record,
	raw []byte,
	parsed document.ParsedDocument,
	fetchTime time.Time,
	shardPath string,
) {
	var blobURI string
	p.sideEffect("archive", record.URL, func() error {
		uri, err := p.archive(ctx, runID, record, raw)
		blobURI = uri
		return err
	})
	p.sideEffect("index", record.URL, func() error {
		if p.deps.Index == nil {
			return nil
		}
		return p.deps.Index.IndexRecord(ctx, document.IndexEntry{
			RunID:           runID,
			DedupeSignature: record.DedupeSignature,
			URL:             record.URL,
			Title:           record.Title,
			DocType:         record.DocType,
			PublishedDate:   parsed.PublishedDate,
			FetchTime:       fetchTime,
			ShardPath:       shardPath,
		})
	})
	p.sideEffect("notify", record.URL, func() error {
		return p.notify(ctx, runID, record, shardPath, blobURI)
	})
}

func (p *Processor) archive(ctx context.Context, runID string, record document.Record, raw []byte) (string, error) {
	if p.deps.Archive == nil || len(raw) == 0 {
		return "", nil
	}
	path := p.archivePath(runID, record.DedupeSignature)
	uri, err := p.deps.Archive.PutObject(ctx, path, "text/html; charset=utf-8", bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}
	return uri, nil
}

func (p *Processor) archivePath(runID, signature string) string {
	prefix := strings.Trim(p.cfg.ArchivePrefix, "/")
	if runID == "" {
		return fmt.Sprintf("%s/%s.html", prefix, signature)
	}
	return fmt.Sprintf("%s/%s/%s.html", prefix, runID, signature)
}

func (p *Processor) notify(ctx context.Context, runID string, record document.Record, shardPath, blobURI string) error {
	if p.cfg.Topic == "" || p.deps.Publisher == nil {
		return nil
	}
	payload := map[string]any{
		"run_id":           runID,
		"url":              record.URL,
		"title":            record.Title,
		"doc_type":         record.DocType,
		"published_date":   record.PublishedDate,
		"dedupe_signature": record.DedupeSignature,
		"shard":            shardPath,
		"blob_uri":         blobURI,
		"timestamp":        record.FetchTime,
	}
	if _, err := p.deps.Publisher.Publish(ctx, p.cfg.Topic, payload); err != nil {
		return fmt.Errorf("publish payload: %w", err)
	}
	return nil
}

// sideEffect runs fn, recovering panics.
func (p *Processor) sideEffect(step, url string, fn func() error) {
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return fn()
	}()
	if err != nil {
		metrics.ObserveSideEffectFailure(step)
		p.logger.Warn("post-write step failed",
			zap.String("step", step), zap.String("url", url), zap.Error(err))
	}
}

func skip(url string, stage Stage, err error) Result {
	return Result{URL: url, Outcome: OutcomeSkipped, Stage: stage, Reason: err.Error()}
}
