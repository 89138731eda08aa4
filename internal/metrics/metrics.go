// Package metrics exposes Prometheus collectors for the scraper.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	casesTotal         *prometheus.CounterVec
	documentsTotal     *prometheus.CounterVec
	uploadsTotal       *prometheus.CounterVec
	captchaSolvesTotal *prometheus.CounterVec
	tokenRefreshTotal  *prometheus.CounterVec
	activeCaseWorkers  prometheus.Gauge
	captchaBuffered    prometheus.Gauge
	httpRequestsTotal  *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus collectors. Safe to call multiple times;
// the mutator helpers call it lazily.
func Init() {
	once.Do(func() {
		casesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_cases_total",
				Help: "Total number of cases processed, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		documentsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_documents_total",
				Help: "Total number of document downloads, labeled by result.",
			},
			[]string{"result"},
		)

		uploadsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_document_uploads_total",
				Help: "Total number of document uploads to the blob store, labeled by result.",
			},
			[]string{"result"},
		)

		captchaSolvesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_captcha_solves_total",
				Help: "Total number of captcha solve attempts, labeled by result.",
			},
			[]string{"result"},
		)

		tokenRefreshTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_token_refreshes_total",
				Help: "Total number of session token refresh attempts, labeled by result.",
			},
			[]string{"result"},
		)

		activeCaseWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "scraper_active_case_workers",
				Help: "Number of case workers currently processing a case.",
			},
		)

		captchaBuffered = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "scraper_captcha_buffered",
				Help: "Number of pre-solved captcha solutions currently buffered.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_http_requests_total",
				Help: "Total number of HTTP requests served, labeled by method, route, and status.",
			},
			[]string{"method", "route", "status"},
		)

		httpDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scraper_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds, labeled by method and route.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		)
	})
}

// CaseProcessed records one terminal case outcome.
func CaseProcessed(outcome string) {
	Init()
	casesTotal.WithLabelValues(outcome).Inc()
}

// DocumentDownload records one document download result.
func DocumentDownload(result string) {
	Init()
	documentsTotal.WithLabelValues(result).Inc()
}

// DocumentUpload records one blob-store upload result.
func DocumentUpload(result string) {
	Init()
	uploadsTotal.WithLabelValues(result).Inc()
}

// CaptchaSolve records one captcha solve attempt.
func CaptchaSolve(result string) {
	Init()
	captchaSolvesTotal.WithLabelValues(result).Inc()
}

// TokenRefresh records one session token refresh attempt.
func TokenRefresh(result string) {
	Init()
	tokenRefreshTotal.WithLabelValues(result).Inc()
}

// WorkerStarted increments the active case worker gauge.
func WorkerStarted() {
	Init()
	activeCaseWorkers.Inc()
}

// WorkerFinished decrements the active case worker gauge.
func WorkerFinished() {
	Init()
	activeCaseWorkers.Dec()
}

// SetCaptchaBuffered records the current captcha buffer depth.
func SetCaptchaBuffered(n int) {
	Init()
	captchaBuffered.Set(float64(n))
}

// ObserveHTTPRequest records one served HTTP request.
func ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}
