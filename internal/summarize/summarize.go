// Package summarize produces the newsletter-style summary for a document. A
// text generation collaborator is used when configured; otherwise, or when it
// fails, a deterministic local summary is returned instead.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrNoGenerator is the fallback reason when no collaborator is configured.
var ErrNoGenerator = errors.New("no summary generator configured")

// ErrEmptyResponse is returned by generators that produced no text.
var ErrEmptyResponse = errors.New("empty summary response")

// Prompt is the text exchanged with a generator.
type Prompt struct {
	System string
	User   string
}

// Generator is a text generation collaborator.
type Generator interface {
	Generate(ctx context.Context, prompt Prompt) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt Prompt) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, prompt Prompt) (string, error) {
	return f(ctx, prompt)
}

// Request describes the document to summarize.
type Request struct {
	Title     string
	Body      string
	SourceURL string
	Published time.Time
}

// Origin records which path produced a summary.
type Origin string

const (
	OriginGenerator Origin = "generator"
	OriginFallback  Origin = "fallback"
)

// Summary is the outcome of Summarize. Reason explains a fallback.
type Summary struct {
	Text   string
	Origin Origin
	Reason string
}

// Summarizer owns an optional generator.
type Summarizer struct {
	generator Generator
	logger    *zap.Logger
}

// New creates a Summarizer. A nil generator always yields fallback summaries.
func New(generator Generator, logger *zap.Logger) *Summarizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Summarizer{generator: generator, logger: logger}
}

// Summarize never fails: generator errors and panics degrade to Fallback.
func (s *Summarizer) Summarize(ctx context.Context, req Request) Summary {
	if s == nil || s.generator == nil {
		return Summary{Text: Fallback(req), Origin: OriginFallback, Reason: ErrNoGenerator.Error()}
	}
	text, err := s.generate(ctx, req)
	if err != nil {
		s.logger.Warn("summary generator failed, using fallback",
			zap.String("url", req.SourceURL), zap.Error(err))
		return Summary{Text: Fallback(req), Origin: OriginFallback, Reason: err.Error()}
	}
	return Summary{Text: text, Origin: OriginGenerator}
}

func (s *Summarizer) generate(ctx context.Context, req Request) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("summary generator panic: %v", r)
		}
	}()
	out, err := s.generator.Generate(ctx, BuildPrompt(req))
	if err != nil {
		return "", fmt.Errorf("generate summary: %w", err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", ErrEmptyResponse
	}
	return out, nil
}
