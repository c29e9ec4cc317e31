package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPServerMetrics instruments the API process. A nil *HTTPServerMetrics is
// valid and records nothing.
type HTTPServerMetrics struct {
	registry *prometheus.Registry
	service  string

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	chatAnswersTotal  *prometheus.CounterVec
	chatContextDocs   prometheus.Histogram
	llmTokensTotal    prometheus.Counter
	documentsUploaded prometheus.Counter
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"service": service}

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fiscal",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fiscal",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   "fiscal",
			Subsystem:   "http",
			Name:        "in_flight_requests",
			Help:        "Number of in-flight HTTP requests.",
			ConstLabels: constLabels,
		},
	)
	chatAnswersTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fiscal",
			Subsystem: "chat",
			Name:      "answers_total",
			Help:      "Total chat answers by outcome.",
		},
		[]string{"service", "outcome"},
	)
	chatContextDocs := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   "fiscal",
			Subsystem:   "chat",
			Name:        "context_documents",
			Help:        "Documents used as context per answer.",
			Buckets:     []float64{0, 1, 2, 3, 5, 8},
			ConstLabels: constLabels,
		},
	)
	llmTokensTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   "fiscal",
			Subsystem:   "llm",
			Name:        "tokens_total",
			Help:        "Tokens metered against user quotas.",
			ConstLabels: constLabels,
		},
	)
	documentsUploaded := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   "fiscal",
			Subsystem:   "documents",
			Name:        "uploaded_total",
			Help:        "Documents accepted for OCR.",
			ConstLabels: constLabels,
		},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		chatAnswersTotal,
		chatContextDocs,
		llmTokensTotal,
		documentsUploaded,
	)

	return &HTTPServerMetrics{
		registry:          registry,
		service:           service,
		requestTotal:      requestTotal,
		requestDuration:   requestDuration,
		requestInFlight:   requestInFlight,
		chatAnswersTotal:  chatAnswersTotal,
		chatContextDocs:   chatContextDocs,
		llmTokensTotal:    llmTokensTotal,
		documentsUploaded: documentsUploaded,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Middleware labels requests by their chi route pattern so ids do not blow
// up cardinality.
func (m *HTTPServerMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(ww, r)

		path := routePattern(r)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requestTotal.WithLabelValues(m.service, r.Method, path, strconv.Itoa(status)).Inc()
		m.requestDuration.WithLabelValues(m.service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return strings.TrimSuffix(p, "/*")
		}
	}
	return "unmatched"
}

func (m *HTTPServerMetrics) RecordChatAnswer(outcome string, contextDocs int, tokens int64) {
	if m == nil {
		return
	}
	m.chatAnswersTotal.WithLabelValues(m.service, outcome).Inc()
	m.chatContextDocs.Observe(float64(contextDocs))
	if tokens > 0 {
		m.llmTokensTotal.Add(float64(tokens))
	}
}

func (m *HTTPServerMetrics) RecordDocumentUploaded() {
	if m == nil {
		return
	}
	m.documentsUploaded.Inc()
}
