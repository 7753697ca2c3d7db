// Package metrics exposes Prometheus collectors for the document pipeline.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

var (
	registry *prometheus.Registry

	pipelineItemsTotal          *prometheus.CounterVec
	pipelineBytesFetchedTotal   *prometheus.CounterVec
	pipelineItemDurationSeconds *prometheus.HistogramVec
	summariesTotal              *prometheus.CounterVec
	amountsExtractedTotal       prometheus.Counter
	sideEffectFailuresTotal     *prometheus.CounterVec
	rateLimitDelaySeconds       *prometheus.HistogramVec
	runsTotal                   prometheus.Counter
	lastRunTimestamp            prometheus.Gauge
	httpRequestsTotal           *prometheus.CounterVec
	httpRequestDurationSeconds  *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the collectors. It is safe to call multiple times.
func Init() {
	once.Do(func() {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		factory := promauto.With(registry)

		pipelineItemsTotal = factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "monitor_items_total",
				Help: "Discovery items processed, labeled by site, outcome and failing stage.",
			},
			[]string{"site", "outcome", "stage"},
		)

		pipelineBytesFetchedTotal = factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "monitor_bytes_fetched_total",
				Help: "Bytes of HTML fetched, labeled by site and renderer.",
			},
			[]string{"site", "renderer"},
		)

		pipelineItemDurationSeconds = factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "monitor_item_duration_seconds",
				Help:    "Time spent on one discovery item, labeled by outcome.",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"outcome"},
		)

		summariesTotal = factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "monitor_summaries_total",
				Help: "Summaries produced, labeled by origin (generator or fallback).",
			},
			[]string{"origin"},
		)

		amountsExtractedTotal = factory.NewCounter(
			prometheus.CounterOpts{
				Name: "monitor_monetary_values_total",
				Help: "Monetary amounts extracted across written records.",
			},
		)

		sideEffectFailuresTotal = factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "monitor_side_effect_failures_total",
				Help: "Failures of archive, index or notify steps after a record was written.",
			},
			[]string{"step"},
		)

		rateLimitDelaySeconds = factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "monitor_rate_limit_delay_seconds",
				Help:    "Time fetches waited for a per-host token, labeled by site.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"site"},
		)

		runsTotal = factory.NewCounter(
			prometheus.CounterOpts{
				Name: "monitor_runs_total",
				Help: "Batch runs completed.",
			},
		)

		lastRunTimestamp = factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "monitor_last_run_timestamp_seconds",
				Help: "Unix time the last batch run finished.",
			},
		)

		httpRequestsTotal = factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 30},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite extracts a lowercase hostname from a URL, or "unknown".
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler exposes the registry over HTTP.
func Handler() http.Handler {
	Init()
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
}

// Push sends the registry to a Pushgateway; batch runs exit before a scrape.
func Push(ctx context.Context, gatewayURL, job string) error {
	Init()
	if err := push.New(gatewayURL, job).Gatherer(registry).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}

// ObserveItem records the outcome of one discovery item. stage is empty for
// written items.
func ObserveItem(site, outcome, stage string, duration time.Duration) {
	Init()
	if stage == "" {
		stage = "none"
	}
	pipelineItemsTotal.WithLabelValues(SanitizeSite(site), outcome, stage).Inc()
	pipelineItemDurationSeconds.WithLabelValues(outcome).Observe(duration.Seconds())
}

// ObserveFetch records fetched bytes.
func ObserveFetch(site string, headless bool, bytesFetched int) {
	Init()
	if bytesFetched <= 0 {
		return
	}
	renderer := "http"
	if headless {
		renderer = "headless"
	}
	pipelineBytesFetchedTotal.WithLabelValues(SanitizeSite(site), renderer).Add(float64(bytesFetched))
}

// ObserveSummary counts a summary by origin.
func ObserveSummary(origin string) {
	Init()
	summariesTotal.WithLabelValues(origin).Inc()
}

// ObserveAmounts adds extracted monetary values.
func ObserveAmounts(n int) {
	Init()
	amountsExtractedTotal.Add(float64(n))
}

// ObserveSideEffectFailure counts a failed post-write step.
func ObserveSideEffectFailure(step string) {
	Init()
	sideEffectFailuresTotal.WithLabelValues(step).Inc()
}

// ObserveRateLimitDelay records time spent waiting for a host's token.
func ObserveRateLimitDelay(site string, waited time.Duration) {
	Init()
	rateLimitDelaySeconds.WithLabelValues(SanitizeSite(site)).Observe(waited.Seconds())
}

// ObserveRun marks a completed batch run.
func ObserveRun(finished time.Time) {
	Init()
	runsTotal.Inc()
	lastRunTimestamp.Set(float64(finished.Unix()))
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
