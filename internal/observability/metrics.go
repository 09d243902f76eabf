package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insightdeck_http_requests_total",
			Help: "HTTP requests by method, matched route pattern and status.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "insightdeck_http_request_duration_seconds",
			Help:    "HTTP request latency by route. Question generation and query runs dominate the upper buckets.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"method", "route", "status"},
	)
	httpRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "insightdeck_http_requests_in_flight",
			Help: "HTTP requests currently being served.",
		},
	)
	llmRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insightdeck_llm_requests_total",
			Help: "Question generation requests sent to the language model, by outcome.",
		},
		[]string{"model", "outcome"},
	)
	llmTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insightdeck_llm_tokens_total",
			Help: "Tokens reported by the language model, by kind.",
		},
		[]string{"model", "kind"},
	)
	llmLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "insightdeck_llm_latency_seconds",
			Help:    "Language model round-trip latency.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"model"},
	)
	warehouseQueryDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "insightdeck_warehouse_query_duration_seconds",
			Help:    "Warehouse round-trip latency by operation.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 90},
		},
		[]string{"dialect", "operation", "outcome"},
	)
	chartRendersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insightdeck_chart_renders_total",
			Help: "Rendered results by requested visualization kind and produced artifact.",
		},
		[]string{"requested", "rendered"},
	)
	exportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insightdeck_exports_total",
			Help: "Result exports to the object store, by outcome.",
		},
		[]string{"outcome"},
	)
	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "insightdeck_active_sessions",
			Help: "Sessions currently holding a warehouse connection.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDurationSeconds,
		httpRequestsInFlight,
		llmRequestsTotal,
		llmTokensTotal,
		llmLatencySeconds,
		warehouseQueryDurationSeconds,
		chartRendersTotal,
		exportsTotal,
		activeSessions,
	)
}

type TokenUsage struct {
	Prompt     int
	Completion int
	Total      int
}

func ObserveLLMRequest(model string, elapsed time.Duration, usage TokenUsage, err error) {
	llmRequestsTotal.WithLabelValues(model, outcome(err)).Inc()
	llmLatencySeconds.WithLabelValues(model).Observe(elapsed.Seconds())
	if usage.Prompt > 0 {
		llmTokensTotal.WithLabelValues(model, "prompt").Add(float64(usage.Prompt))
	}
	if usage.Completion > 0 {
		llmTokensTotal.WithLabelValues(model, "completion").Add(float64(usage.Completion))
	}
}

func ObserveWarehouseQuery(dialect, operation string, elapsed time.Duration, err error) {
	warehouseQueryDurationSeconds.WithLabelValues(dialect, operation, outcome(err)).Observe(elapsed.Seconds())
}

func ObserveChartRender(requested, rendered string) {
	chartRendersTotal.WithLabelValues(requested, rendered).Inc()
}

func ObserveExport(err error) {
	exportsTotal.WithLabelValues(outcome(err)).Inc()
}

func SetActiveSessions(n int) {
	if n < 0 {
		n = 0
	}
	activeSessions.Set(float64(n))
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
