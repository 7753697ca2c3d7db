package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/eu-innovation-monitor/internal/discovery"
	"github.com/JakeFAU/eu-innovation-monitor/internal/document"
	"github.com/JakeFAU/eu-innovation-monitor/internal/pipeline"
	"github.com/JakeFAU/eu-innovation-monitor/internal/storage/postgres"
)

func TestServer_ProcessDocument_Written(t *testing.T) {
	t.Parallel()

	proc := &fakeProcessor{result: pipeline.Result{
		URL:     "https://investeu.europa.eu/news/1",
		Outcome: pipeline.OutcomeWritten,
		Shard:   "outputs/docs/2025-11.ndjson",
		Record:  &document.Record{URL: "https://investeu.europa.eu/news/1", Title: "Grant announced"},
	}}
	server := newTestServer(t, func(o *Options) { o.Processor = proc })

	body := `{"url":"https://investeu.europa.eu/news/1","title_hint":"Hint","source_id":"manual"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/documents", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp documentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "run-1", resp.RunID)
	assert.Equal(t, pipeline.OutcomeWritten, resp.Outcome)
	require.NotNil(t, resp.Record)
	assert.Equal(t, "Grant announced", resp.Record.Title)

	items := proc.received()
	require.Len(t, items, 1)
	assert.Equal(t, "Hint", items[0].TitleHint)
	assert.Equal(t, "manual", items[0].SourceID)
}

func TestServer_ProcessDocument_Skipped(t *testing.T) {
	t.Parallel()

	proc := &fakeProcessor{result: pipeline.Result{
		URL:     "https://investeu.europa.eu/news/2",
		Outcome: pipeline.OutcomeSkipped,
		Stage:   pipeline.StageFetch,
		Reason:  "status 404",
	}}
	server := newTestServer(t, func(o *Options) { o.Processor = proc })

	req := httptest.NewRequest(http.MethodPost, "/v1/documents",
		bytes.NewBufferString(`{"url":"https://investeu.europa.eu/news/2"}`))
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Contains(t, rec.Body.String(), `"stage":"fetch"`)
	require.Contains(t, rec.Body.String(), "status 404")
}

func TestServer_ProcessDocument_InvalidJSON(t *testing.T) {
	t.Parallel()

	server := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/documents", bytes.NewBufferString("{invalid"))
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_ProcessDocument_MissingURL(t *testing.T) {
	t.Parallel()

	server := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/documents", bytes.NewBufferString(`{"url":"  "}`))
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "url required")
}

func TestServer_ProcessDocument_IDFailure(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, func(o *Options) { o.RunIDs = &fakeIDGen{err: errors.New("entropy")} })
	req := httptest.NewRequest(http.MethodPost, "/v1/documents", bytes.NewBufferString(`{"url":"https://a.eu"}`))
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestServer_StartRun_UsesDiscoveryAndLimit(t *testing.T) {
	t.Parallel()

	path := writeDiscovery(t, 3)
	runner := &fakeRunner{}
	server := newTestServer(t, func(o *Options) {
		o.Runner = runner
		o.DiscoveryPath = path
		o.DefaultLimit = 5
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/runs", bytes.NewBufferString(`{"limit":2}`))
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var summary pipeline.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, "run-1", summary.RunID)
	assert.Equal(t, 2, summary.Processed)

	runs := runner.received()
	require.Len(t, runs, 1)
	require.Len(t, runs[0], 2)
	assert.Equal(t, "investeu_news", runs[0][0].SourceID)
}

func TestServer_StartRun_DefaultLimitWithoutBody(t *testing.T) {
	t.Parallel()

	path := writeDiscovery(t, 4)
	runner := &fakeRunner{}
	server := newTestServer(t, func(o *Options) {
		o.Runner = runner
		o.DiscoveryPath = path
		o.DefaultLimit = 3
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/runs", http.NoBody)
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	runs := runner.received()
	require.Len(t, runs, 1)
	require.Len(t, runs[0], 3)
}

func TestServer_StartRun_MissingDiscovery(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{}
	server := newTestServer(t, func(o *Options) {
		o.Runner = runner
		o.DiscoveryPath = filepath.Join(t.TempDir(), "missing.json")
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/runs", http.NoBody)
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"processed":0,"reason":"no discovery file"}`, rec.Body.String())
	require.Empty(t, runner.received())
}

func TestServer_StartRun_NegativeLimit(t *testing.T) {
	t.Parallel()

	server := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/runs", bytes.NewBufferString(`{"limit":-1}`))
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_GetDocument(t *testing.T) {
	t.Parallel()

	published := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	lookup := &fakeLookup{entries: map[string]postgres.Entry{
		"abc": {
			IndexEntry: document.IndexEntry{
				DedupeSignature: "abc",
				URL:             "https://investeu.europa.eu/news/1",
				Title:           "Grant announced",
				DocType:         "Blog/News",
				PublishedDate:   published,
				FetchTime:       time.Date(2025, 3, 12, 9, 30, 0, 0, time.UTC),
				ShardPath:       "outputs/docs/2025-11.ndjson",
			},
			SeenCount: 2,
		},
	}}
	server := newTestServer(t, func(o *Options) { o.Index = lookup })

	tests := []struct {
		name   string
		sig    string
		status int
		want   string
	}{
		{name: "found", sig: "abc", status: http.StatusOK, want: `"published_date":"2025-03-10"`},
		{name: "unknown", sig: "zzz", status: http.StatusNotFound, want: "document not found"},
		{name: "failure", sig: "boom", status: http.StatusInternalServerError, want: "failed to load document"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodGet, "/v1/documents/"+tc.sig, http.NoBody)
			rec := httptest.NewRecorder()

			server.Handler().ServeHTTP(rec, req)

			require.Equal(t, tc.status, rec.Code)
			require.Contains(t, rec.Body.String(), tc.want)
		})
	}
}

func TestServer_GetDocument_NoIndex(t *testing.T) {
	t.Parallel()

	server := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/documents/abc", http.NoBody)
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_APIKeyMiddleware(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, func(o *Options) {
		o.AuthEnabled = true
		o.APIKey = "secret"
	})

	tests := []struct {
		name   string
		header string
		value  string
		status int
	}{
		{name: "missing", status: http.StatusForbidden},
		{name: "wrong", header: "X-API-Key", value: "nope", status: http.StatusForbidden},
		{name: "header", header: "X-API-Key", value: "secret", status: http.StatusCreated},
		{name: "bearer", header: "Authorization", value: "Bearer secret", status: http.StatusCreated},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodPost, "/v1/documents", bytes.NewBufferString(`{"url":"https://a.eu"}`))
			if tc.header != "" {
				req.Header.Set(tc.header, tc.value)
			}
			rec := httptest.NewRecorder()

			server.Handler().ServeHTTP(rec, req)

			require.Equal(t, tc.status, rec.Code)
		})
	}

	health := httptest.NewRecorder()
	server.Handler().ServeHTTP(health, httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))
	require.Equal(t, http.StatusOK, health.Code)
}

func TestServer_Readyz(t *testing.T) {
	t.Parallel()

	ready := newTestServer(t)
	rec := httptest.NewRecorder()
	ready.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)

	notReady := newTestServer(t, func(o *Options) {
		o.Ready = func(context.Context) error { return errors.New("db down") }
	})
	rec = httptest.NewRecorder()
	notReady.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", http.NoBody))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_MetricsEndpoint(t *testing.T) {
	t.Parallel()

	server := newTestServer(t)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestServer_RecoversFromPanic(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, func(o *Options) { o.Processor = panicProcessor{} })
	req := httptest.NewRequest(http.MethodPost, "/v1/documents", bytes.NewBufferString(`{"url":"https://a.eu"}`))
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRequestIDMiddlewareSetsHeader(t *testing.T) {
	t.Parallel()

	server := newTestServer(t)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))
	require.Equal(t, "req-1", rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody)
	req.Header.Set("X-Request-ID", "caller-id")
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, "caller-id", rec.Header().Get("X-Request-ID"))
}

func TestNewServerValidation(t *testing.T) {
	t.Parallel()

	_, err := NewServer(Options{})
	require.Error(t, err)

	_, err = NewServer(Options{Processor: &fakeProcessor{}, Runner: &fakeRunner{}})
	require.Error(t, err)

	_, err = NewServer(Options{
		Processor:   &fakeProcessor{},
		Runner:      &fakeRunner{},
		RunIDs:      &fakeIDGen{},
		RequestIDs:  &fakeIDGen{},
		AuthEnabled: true,
	})
	require.Error(t, err)
}

type fakeIDGen struct {
	mu   sync.Mutex
	runs int
	reqs int
	err  error
}

func (f *fakeIDGen) NewID() (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs++
	return fmt.Sprintf("run-%d", f.runs), nil
}

func (f *fakeIDGen) NewRequestID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs++
	return fmt.Sprintf("req-%d", f.reqs)
}

type fakeProcessor struct {
	mu     sync.Mutex
	items  []discovery.Item
	result pipeline.Result
}

func (p *fakeProcessor) Process(_ context.Context, _ string, item discovery.Item) pipeline.Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.items = append(p.items, item)
	res := p.result
	if res.Outcome == "" {
		res = pipeline.Result{URL: item.URL, Outcome: pipeline.OutcomeWritten, Record: &document.Record{URL: item.URL}}
	}
	return res
}

func (p *fakeProcessor) received() []discovery.Item {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]discovery.Item(nil), p.items...)
}

type panicProcessor struct{}

func (panicProcessor) Process(context.Context, string, discovery.Item) pipeline.Result {
	panic("boom")
}

type fakeRunner struct {
	mu   sync.Mutex
	runs [][]discovery.Item
}

func (r *fakeRunner) Run(_ context.Context, runID string, items []discovery.Item) pipeline.Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, items)
	urls := make([]string, 0, len(items))
	for _, it := range items {
		urls = append(urls, it.URL)
	}
	return pipeline.Summary{RunID: runID, Processed: len(items), NDJSON: "outputs/docs/2025-11.ndjson", URLs: urls}
}

func (r *fakeRunner) received() [][]discovery.Item {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]discovery.Item(nil), r.runs...)
}

type fakeLookup struct {
	entries map[string]postgres.Entry
}

func (f *fakeLookup) Lookup(_ context.Context, signature string) (postgres.Entry, error) {
	if signature == "boom" {
		return postgres.Entry{}, errors.New("connection reset")
	}
	entry, ok := f.entries[signature]
	if !ok {
		return postgres.Entry{}, postgres.ErrNotIndexed
	}
	return entry, nil
}

func writeDiscovery(t *testing.T, n int) string {
	t.Helper()
	items := make([]document.DiscoveryItem, 0, n)
	for i := range n {
		items = append(items, document.DiscoveryItem{URL: fmt.Sprintf("https://investeu.europa.eu/news/%d", i+1)})
	}
	agg := discovery.Aggregate{Sources: []discovery.Source{{ID: "investeu_news", Items: items}}}
	raw, err := json.Marshal(agg)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "latest_discovery.json")
	require.NoError(t, os.WriteFile(path, raw, 0o600))
	return path
}

func newTestServer(t *testing.T, mutators ...func(*Options)) *Server {
	t.Helper()
	ids := &fakeIDGen{}
	opts := Options{
		Processor:     &fakeProcessor{},
		Runner:        &fakeRunner{},
		RunIDs:        ids,
		RequestIDs:    ids,
		DiscoveryPath: filepath.Join(t.TempDir(), "latest_discovery.json"),
		Logger:        zap.NewNop(),
	}
	for _, m := range mutators {
		m(&opts)
	}
	server, err := NewServer(opts)
	require.NoError(t, err)
	return server
}
