package fetcher

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/eu-innovation-monitor/internal/document"
)

type fakeFetcher struct {
	resp  document.FetchResponse
	err   error
	calls []string
}

func (f *fakeFetcher) Fetch(_ context.Context, req document.FetchRequest) (document.FetchResponse, error) {
	f.calls = append(f.calls, req.URL)
	if f.err != nil {
		return document.FetchResponse{}, f.err
	}
	resp := f.resp
	if resp.URL == "" {
		resp.URL = req.URL
	}
	return resp, nil
}

type fakeDetector bool

func (d fakeDetector) ShouldPromote(document.FetchResponse) bool { return bool(d) }

func newRouter(t *testing.T, opts Options) *Router {
	t.Helper()
	opts.Logger = zap.NewNop()
	r, err := NewRouter(opts)
	require.NoError(t, err)
	return r
}

func TestRouterSendsJSDomainsToHeadless(t *testing.T) {
	t.Parallel()

	direct := &fakeFetcher{resp: document.FetchResponse{StatusCode: 200}}
	headless := &fakeFetcher{resp: document.FetchResponse{StatusCode: 200, UsedHeadless: true}}
	r := newRouter(t, Options{Direct: direct, Headless: headless, JSDomains: []string{" EUR-LEX.europa.eu "}})

	resp, err := r.Fetch(context.Background(), document.FetchRequest{URL: "https://eur-lex.europa.eu/legal-content/EN/TXT/?uri=CELEX:32024R1"})
	require.NoError(t, err)
	assert.True(t, resp.UsedHeadless)
	assert.Empty(t, direct.calls)

	assert.True(t, r.IsJSDomain("https://sub.eur-lex.europa.eu/x"))
	assert.False(t, r.IsJSDomain("https://noteur-lex.europa.eu/x"))
	assert.False(t, r.IsJSDomain("::bad"))
}

func TestRouterJSDomainFallsBackToDirectWithoutHeadless(t *testing.T) {
	t.Parallel()

	direct := &fakeFetcher{resp: document.FetchResponse{StatusCode: 200, Body: []byte("plain")}}
	r := newRouter(t, Options{Direct: direct, JSDomains: []string{"eur-lex.europa.eu"}})

	resp, err := r.Fetch(context.Background(), document.FetchRequest{URL: "https://eur-lex.europa.eu/"})
	require.NoError(t, err)
	assert.Equal(t, "plain", string(resp.Body))
	assert.False(t, resp.UsedHeadless)
	assert.Equal(t, []string{"https://eur-lex.europa.eu/"}, direct.calls)
}

func TestRouterPromotesWhenDetectorSaysSo(t *testing.T) {
	t.Parallel()

	direct := &fakeFetcher{resp: document.FetchResponse{StatusCode: 202}}
	headless := &fakeFetcher{resp: document.FetchResponse{StatusCode: 200, UsedHeadless: true, Body: []byte("rendered")}}
	r := newRouter(t, Options{Direct: direct, Headless: headless, Detector: fakeDetector(true)})

	resp, err := r.Fetch(context.Background(), document.FetchRequest{URL: "https://example.eu/a"})
	require.NoError(t, err)
	assert.Equal(t, "rendered", string(resp.Body))
	assert.Len(t, direct.calls, 1)
	assert.Len(t, headless.calls, 1)
}

func TestRouterKeepsDirectResponseWhenPromotionFails(t *testing.T) {
	t.Parallel()

	direct := &fakeFetcher{resp: document.FetchResponse{StatusCode: 200, Body: []byte("plain")}}
	headless := &fakeFetcher{err: errors.New("chrome missing")}
	r := newRouter(t, Options{Direct: direct, Headless: headless, Detector: fakeDetector(true)})

	resp, err := r.Fetch(context.Background(), document.FetchRequest{URL: "https://example.eu/a"})
	require.NoError(t, err)
	assert.Equal(t, "plain", string(resp.Body))
}

func TestRouterStatusAndErrors(t *testing.T) {
	t.Parallel()

	r := newRouter(t, Options{Direct: &fakeFetcher{resp: document.FetchResponse{StatusCode: 503}}})
	_, err := r.Fetch(context.Background(), document.FetchRequest{URL: "https://example.eu/a"})
	assert.ErrorIs(t, err, ErrStatus)

	boom := errors.New("connection refused")
	r = newRouter(t, Options{Direct: &fakeFetcher{err: boom}})
	_, err = r.Fetch(context.Background(), document.FetchRequest{URL: "https://example.eu/a"})
	assert.ErrorIs(t, err, boom)

	_, err = NewRouter(Options{})
	require.Error(t, err)
}
