package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/eu-innovation-monitor/internal/document"
	"github.com/JakeFAU/eu-innovation-monitor/internal/storage/postgres"
)

const lookupTimeout = 3 * time.Second

// DocumentLookup resolves a dedupe signature to its index row.
type DocumentLookup interface {
	Lookup(ctx context.Context, signature string) (postgres.Entry, error)
}

// IndexHandler exposes read-only access to the document index.
type IndexHandler struct {
	index   DocumentLookup
	timeout time.Duration
	logger  *zap.Logger
}

// NewIndexHandler wires the index and logger. A nil index makes every lookup
// answer 404.
func NewIndexHandler(index DocumentLookup, logger *zap.Logger) *IndexHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IndexHandler{
		index:   index,
		timeout: lookupTimeout,
		logger:  logger,
	}
}

type indexEntryDTO struct {
	DedupeSignature string  `json:"dedupe_signature"`
	URL             string  `json:"url"`
	Title           string  `json:"title"`
	DocType         string  `json:"doc_type"`
	PublishedDate   *string `json:"published_date"`
	RunID           string  `json:"run_id,omitempty"`
	FetchTime       string  `json:"fetch_time"`
	Shard           string  `json:"shard"`
	SeenCount       int     `json:"seen_count"`
}

// GetDocument handles GET /v1/documents/{signature}. It returns
// {"document": {...}} on success, 404 for unknown signatures or when no index
// is configured, and 500 for index errors.
func (h *IndexHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	signature := strings.TrimSpace(chi.URLParam(r, "signature"))
	if signature == "" {
		writeError(w, http.StatusBadRequest, "signature required")
		return
	}
	if h.index == nil {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	entry, err := h.index.Lookup(ctx, signature)
	if err != nil {
		if errors.Is(err, postgres.ErrNotIndexed) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		h.logger.Error("lookup document failed", zap.String("signature", signature), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load document")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"document": toIndexEntryDTO(entry)})
}

func toIndexEntryDTO(e postgres.Entry) indexEntryDTO {
	dto := indexEntryDTO{
		DedupeSignature: e.DedupeSignature,
		URL:             e.URL,
		Title:           e.Title,
		DocType:         e.DocType,
		RunID:           e.RunID,
		FetchTime:       document.FormatTime(e.FetchTime),
		Shard:           e.ShardPath,
		SeenCount:       e.SeenCount,
	}
	if !e.PublishedDate.IsZero() {
		published := e.PublishedDate.Format(time.DateOnly)
		dto.PublishedDate = &published
	}
	return dto
}
