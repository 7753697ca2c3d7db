// Package api exposes the HTTP trigger for the document pipeline.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/eu-innovation-monitor/internal/discovery"
	"github.com/JakeFAU/eu-innovation-monitor/internal/document"
	"github.com/JakeFAU/eu-innovation-monitor/internal/metrics"
	"github.com/JakeFAU/eu-innovation-monitor/internal/pipeline"
)

const (
	defaultRequestTimeout = 5 * time.Minute
	maxRequestBody        = 1 << 20
)

// Runner runs a batch of items and reports its summary.
type Runner interface {
	Run(ctx context.Context, runID string, items []discovery.Item) pipeline.Summary
}

// RequestIDGenerator issues per-request correlation IDs.
type RequestIDGenerator interface {
	NewRequestID() string
}

// Options wires the server's collaborators. Index and Ready are optional.
type Options struct {
	Processor      pipeline.ItemProcessor
	Runner         Runner
	RunIDs         document.IDGenerator
	RequestIDs     RequestIDGenerator
	Index          DocumentLookup
	Ready          func(ctx context.Context) error
	DiscoveryPath  string
	DefaultLimit   int
	AuthEnabled    bool
	APIKey         string
	RequestTimeout time.Duration
	Logger         *zap.Logger
}

// Server wires HTTP handlers to the pipeline. Pipeline work is serialized so
// the shard writer keeps a single writer per process.
type Server struct {
	router chi.Router
	opts   Options
	logger *zap.Logger
	runMu  sync.Mutex
}

// NewServer constructs a Server with middleware and routes.
func NewServer(opts Options) (*Server, error) {
	if opts.Processor == nil || opts.Runner == nil {
		return nil, fmt.Errorf("processor and runner are required")
	}
	if opts.RunIDs == nil || opts.RequestIDs == nil {
		return nil, fmt.Errorf("id generators are required")
	}
	if opts.AuthEnabled && opts.APIKey == "" {
		return nil, fmt.Errorf("api key is required when auth is enabled")
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}
	if opts.DiscoveryPath == "" {
		opts.DiscoveryPath = discovery.DefaultPath
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{opts: opts, logger: logger.Named("api")}

	r := chi.NewRouter()
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		if opts.AuthEnabled {
			r.Use(apiKeyMiddleware(opts.APIKey))
		}
		r.Use(timeoutMiddleware(opts.RequestTimeout))
		r.Post("/documents", s.processDocument)
		r.Post("/runs", s.startRun)
		r.Get("/documents/{signature}", NewIndexHandler(opts.Index, logger).GetDocument)
	})

	s.router = r
	return s, nil
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.opts.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := s.opts.Ready(ctx); err != nil {
			s.logger.Warn("readiness check failed", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "not ready")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type documentRequest struct {
	URL               string `json:"url"`
	TitleHint         string `json:"title_hint"`
	PublishedDateHint string `json:"published_date_hint"`
	SourceID          string `json:"source_id"`
}

type documentResponse struct {
	RunID         string           `json:"run_id"`
	Outcome       pipeline.Outcome `json:"outcome"`
	Stage         pipeline.Stage   `json:"stage,omitempty"`
	Reason        string           `json:"reason,omitempty"`
	Shard         string           `json:"shard,omitempty"`
	SummaryOrigin string           `json:"summary_origin,omitempty"`
	Record        *document.Record `json:"record,omitempty"`
}

// processDocument runs one posted discovery item through the pipeline.
// 201 means a record was appended; 422 means the item was skipped.
func (s *Server) processDocument(w http.ResponseWriter, r *http.Request) {
	var req documentRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		writeError(w, http.StatusBadRequest, "url required")
		return
	}
	runID, err := s.opts.RunIDs.NewID()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "generate run id")
		return
	}
	item := discovery.Item{
		DiscoveryItem: document.DiscoveryItem{
			URL:               req.URL,
			TitleHint:         req.TitleHint,
			PublishedDateHint: req.PublishedDateHint,
		},
		SourceID: req.SourceID,
	}

	s.runMu.Lock()
	res := s.opts.Processor.Process(r.Context(), runID, item)
	s.runMu.Unlock()

	resp := documentResponse{
		RunID:         runID,
		Outcome:       res.Outcome,
		Stage:         res.Stage,
		Reason:        res.Reason,
		Shard:         res.Shard,
		SummaryOrigin: string(res.SummaryOrigin),
		Record:        res.Record,
	}
	if !res.Written() {
		writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

type runRequest struct {
	Limit *int `json:"limit"`
}

// startRun processes the configured discovery aggregate synchronously and
// returns the same summary the process command prints.
func (s *Server) startRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := decodeBody(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	limit := s.opts.DefaultLimit
	if req.Limit != nil {
		limit = *req.Limit
	}
	if limit < 0 {
		writeError(w, http.StatusBadRequest, "limit must be >= 0")
		return
	}

	agg, err := discovery.Load(s.opts.DiscoveryPath)
	if err != nil {
		s.logger.Warn("discovery aggregate unavailable", zap.String("path", s.opts.DiscoveryPath), zap.Error(err))
		writeJSON(w, http.StatusOK, pipeline.InputFailureFor(err))
		return
	}
	runID, err := s.opts.RunIDs.NewID()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "generate run id")
		return
	}

	s.runMu.Lock()
	summary := s.opts.Runner.Run(r.Context(), runID, agg.Items(limit))
	s.runMu.Unlock()

	writeJSON(w, http.StatusOK, summary)
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

type requestIDKey struct{}

// RequestID returns the correlation ID stored by the server middleware.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = s.opts.RequestIDs.NewRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("request_id", RequestID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered",
					zap.String("request_id", RequestID(r.Context())),
					zap.Any("panic", rec),
				)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, `{"error":"request timed out"}`)
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			}
			if subtle.ConstantTimeCompare([]byte(key), []byte(expected)) != 1 {
				writeError(w, http.StatusForbidden, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil && !errors.Is(err, http.ErrHandlerTimeout) {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
