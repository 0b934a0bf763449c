// Package metrics exposes the Prometheus counters and histograms for the
// scraping core (spec §4.13).
package metrics

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	dto "github.com/prometheus/client_model/go"
)

const namespace = "scrape"

var (
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Total scrape runs by scope and status",
		},
		[]string{"scope", "status"},
	)

	RunDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "End-to-end scrape run duration",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 60, 120, 180, 300, 600},
		},
		[]string{"scope", "status"},
	)

	ProviderRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_runs_total",
			Help:      "Provider-level scrape runs",
		},
		[]string{"provider", "status"},
	)

	ProviderDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_duration_seconds",
			Help:      "Provider execution duration",
			Buckets:   []float64{0.2, 0.5, 1, 2, 5, 10, 20, 40, 60, 120, 300},
		},
		[]string{"provider", "status"},
	)

	ProviderArticlesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_articles_total",
			Help:      "Articles returned by each provider",
		},
		[]string{"provider"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by provider/domain/status code",
		},
		[]string{"provider", "domain", "status_code"},
	)

	HTTPErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_errors_total",
			Help:      "HTTP errors by provider/domain/error type",
		},
		[]string{"provider", "domain", "error_type"},
	)

	HTTPRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration by provider/domain",
			Buckets:   []float64{0.05, 0.1, 0.2, 0.5, 1, 2, 4, 6, 10, 20, 40},
		},
		[]string{"provider", "domain"},
	)

	ExtractionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractions_total",
			Help:      "Extraction outcomes by provider/domain",
		},
		[]string{"provider", "domain", "result"},
	)

	ExtractionContentLength = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extraction_content_length",
			Help:      "Extracted content length by provider/domain",
			Buckets:   []float64{0, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 20000},
		},
		[]string{"provider", "domain"},
	)

	DuplicatesRemovedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicates_removed_total",
			Help:      "Duplicates removed during the scraping pipeline",
		},
		[]string{"stage"},
	)

	GuardrailEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guardrail_events_total",
			Help:      "Guardrail events during the scraping pipeline",
		},
		[]string{"guardrail", "provider", "reason"},
	)

	CircuitBreakerOpenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_open_total",
			Help:      "Times a per-domain circuit breaker opened",
		},
		[]string{"domain"},
	)

	PlaywrightFallbackTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "playwright_fallback_total",
			Help:      "Times extraction fell through to the plain HTTP transport after a browser transport was unavailable or failed",
		},
		[]string{"domain", "result"},
	)
)

func label(value string) string {
	cleaned := strings.ToLower(strings.TrimSpace(value))
	if cleaned == "" {
		return "unknown"
	}
	if len(cleaned) > 120 {
		cleaned = cleaned[:120]
	}
	return cleaned
}

// ObserveRun records a completed scrape run's outcome and duration.
func ObserveRun(scope, status string, durationSeconds float64) {
	scope, status = label(scope), label(status)
	RunsTotal.WithLabelValues(scope, status).Inc()
	RunDurationSeconds.WithLabelValues(scope, status).Observe(max(durationSeconds, 0))
}

// ObserveProviderRun records one provider's contribution to a run.
func ObserveProviderRun(provider, status string, durationSeconds float64, articles int) {
	provider, status = label(provider), label(status)
	ProviderRunsTotal.WithLabelValues(provider, status).Inc()
	ProviderDurationSeconds.WithLabelValues(provider, status).Observe(max(durationSeconds, 0))
	if articles > 0 {
		ProviderArticlesTotal.WithLabelValues(provider).Add(float64(articles))
	}
}

// ObserveHTTPRequest records a single outbound HTTP request.
func ObserveHTTPRequest(provider, domain, statusCode string, durationSeconds float64) {
	provider, domain, statusCode = label(provider), label(domain), label(statusCode)
	HTTPRequestsTotal.WithLabelValues(provider, domain, statusCode).Inc()
	HTTPRequestDurationSeconds.WithLabelValues(provider, domain).Observe(max(durationSeconds, 0))
}

// ObserveHTTPError records a transport/timeout-level failure.
func ObserveHTTPError(provider, domain, errorType string) {
	HTTPErrorsTotal.WithLabelValues(label(provider), label(domain), label(errorType)).Inc()
}

// ObserveExtraction records an extraction attempt's outcome and, on
// success, the extracted content length.
func ObserveExtraction(provider, domain, result string, contentLength int) {
	provider, domain, result = label(provider), label(domain), label(result)
	ExtractionsTotal.WithLabelValues(provider, domain, result).Inc()
	if contentLength > 0 {
		ExtractionContentLength.WithLabelValues(provider, domain).Observe(float64(contentLength))
	}
}

// ObserveDuplicatesRemoved records how many candidates a dedup stage
// removed.
func ObserveDuplicatesRemoved(stage string, count int) {
	if count <= 0 {
		return
	}
	DuplicatesRemovedTotal.WithLabelValues(label(stage)).Add(float64(count))
}

// ObserveGuardrailEvent records a budget/limit enforcement event.
func ObserveGuardrailEvent(guardrail, provider, reason string, count int) {
	if count <= 0 {
		return
	}
	GuardrailEventsTotal.WithLabelValues(label(guardrail), label(provider), label(reason)).Add(float64(count))
}

// ObserveCircuitBreakerOpen records a domain's circuit breaker tripping.
func ObserveCircuitBreakerOpen(domain string) {
	CircuitBreakerOpenTotal.WithLabelValues(label(domain)).Inc()
}

// ObservePlaywrightFallback records a domain falling through the browser
// transport chain to HTTPTransport, and whether that fallback still
// extracted usable content.
func ObservePlaywrightFallback(domain, result string) {
	PlaywrightFallbackTotal.WithLabelValues(label(domain), label(result)).Inc()
}

// Handler returns the full-registry Prometheus exposition handler for
// GET /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// scrapingOnlyGatherer wraps the default registry's Gatherer, dropping
// every metric family that isn't namespaced under "scrape_" (the Go
// runtime and process collectors prometheus.DefaultRegisterer wires in by
// default). Backs the GET /metrics/scraping view.
type scrapingOnlyGatherer struct {
	prometheus.Gatherer
}

func (g scrapingOnlyGatherer) Gather() ([]*dto.MetricFamily, error) {
	families, err := g.Gatherer.Gather()
	if err != nil {
		return nil, err
	}
	filtered := make([]*dto.MetricFamily, 0, len(families))
	for _, f := range families {
		if f.Name != nil && strings.HasPrefix(*f.Name, namespace+"_") {
			filtered = append(filtered, f)
		}
	}
	return filtered, nil
}

// ScrapingHandler returns a Prometheus exposition handler restricted to
// this package's own metric families, for GET /metrics/scraping.
func ScrapingHandler() http.Handler {
	return promhttp.HandlerFor(scrapingOnlyGatherer{prometheus.DefaultGatherer}, promhttp.HandlerOpts{})
}

