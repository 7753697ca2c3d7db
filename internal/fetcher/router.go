// Package fetcher routes page fetches between the plain HTTP fetcher and the
// headless browser.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/eu-innovation-monitor/internal/document"
)

// ErrStatus marks responses outside the 2xx range.
var ErrStatus = errors.New("unexpected response status")

// StatusError wraps ErrStatus with the received code.
func StatusError(code int) error {
	return fmt.Errorf("%w: %d", ErrStatus, code)
}

// Router sends JS domains straight to the headless fetcher and promotes other
// pages when the detector says the plain response is not the real document.
type Router struct {
	direct    document.Fetcher
	headless  document.Fetcher
	detector  document.HeadlessDetector
	jsDomains []string
	logger    *zap.Logger
}

// Options configures a Router. Headless and Detector are optional.
type Options struct {
	Direct    document.Fetcher
	Headless  document.Fetcher
	Detector  document.HeadlessDetector
	JSDomains []string
	Logger    *zap.Logger
}

// NewRouter validates opts and builds a Router.
func NewRouter(opts Options) (*Router, error) {
	if opts.Direct == nil {
		return nil, fmt.Errorf("direct fetcher is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	domains := make([]string, 0, len(opts.JSDomains))
	for _, d := range opts.JSDomains {
		if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
			domains = append(domains, d)
		}
	}
	return &Router{
		direct:    opts.Direct,
		headless:  opts.Headless,
		detector:  opts.Detector,
		jsDomains: domains,
		logger:    logger.Named("fetcher"),
	}, nil
}

// Fetch retrieves request.URL. Non-2xx responses are returned as errors.
// Without a headless fetcher, JS domains are fetched directly.
func (r *Router) Fetch(ctx context.Context, request document.FetchRequest) (document.FetchResponse, error) {
	if request.UseHeadless || r.IsJSDomain(request.URL) {
		if r.headless != nil {
			return checkStatus(r.headless.Fetch(ctx, request))
		}
		r.logger.Debug("headless disabled, fetching JS domain directly", zap.String("url", request.URL))
	}

	resp, err := r.direct.Fetch(ctx, request)
	if err != nil {
		return document.FetchResponse{}, err
	}
	if r.headless != nil && r.detector != nil && r.detector.ShouldPromote(resp) {
		r.logger.Info("promoting fetch to headless", zap.String("url", request.URL), zap.Int("status", resp.StatusCode))
		rendered, herr := checkStatus(r.headless.Fetch(ctx, request))
		if herr == nil {
			return rendered, nil
		}
		r.logger.Warn("headless promotion failed", zap.String("url", request.URL), zap.Error(herr))
	}
	return checkStatus(resp, nil)
}

// IsJSDomain reports whether rawURL's host is, or is under, a JS domain.
func (r *Router) IsJSDomain(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, d := range r.jsDomains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func checkStatus(resp document.FetchResponse, err error) (document.FetchResponse, error) {
	if err != nil {
		return document.FetchResponse{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return document.FetchResponse{}, StatusError(resp.StatusCode)
	}
	return resp, nil
}
