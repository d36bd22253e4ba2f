package observability

import (
	"time"

	"github.com/boddenberg/oficina-assistant-go/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Cache label values.
const (
	CacheSnapshot = "snapshot"
	CacheLLM      = "llm"
)

// Metrics holds all Prometheus metrics for the oficina API.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	externalErrors  *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	tokensUsed      *prometheus.CounterVec
	consultas       *prometheus.CounterVec
	intents         *prometheus.CounterVec
	mutations       *prometheus.CounterVec
	fallbacks       prometheus.Counter
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "oficina_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oficina_external_errors_total",
				Help: "Total errors from external services (LLM, database).",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oficina_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oficina_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		tokensUsed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oficina_llm_tokens_total",
				Help: "Total LLM tokens consumed.",
			},
			[]string{"type"},
		),
		consultas: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oficina_consultas_total",
				Help: "Total assistant turns processed.",
			},
			[]string{"status"},
		),
		intents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oficina_intents_total",
				Help: "Classified assistant intents by kind.",
			},
			[]string{"kind"},
		),
		mutations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oficina_assistant_mutations_total",
				Help: "Confirmed create/edit/delete operations issued by the assistant.",
			},
			[]string{"entity", "op"},
		),
		fallbacks: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "oficina_llm_fallbacks_total",
				Help: "Replies replaced by a canned apology because the LLM failed.",
			},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// RecordTokens records prompt and completion token usage.
func (m *Metrics) RecordTokens(prompt, completion int) {
	m.tokensUsed.WithLabelValues("prompt").Add(float64(prompt))
	m.tokensUsed.WithLabelValues("completion").Add(float64(completion))
}

// IncrConsulta increments the assistant turn counter with a status label (success, error).
func (m *Metrics) IncrConsulta(status string) {
	m.consultas.WithLabelValues(status).Inc()
}

// IncrIntent counts a classified intent.
func (m *Metrics) IncrIntent(kind string) {
	m.intents.WithLabelValues(kind).Inc()
}

// IncrMutation counts a confirmed assistant mutation.
func (m *Metrics) IncrMutation(entity, op string) {
	m.mutations.WithLabelValues(entity, op).Inc()
}

// IncrFallback counts an LLM reply replaced by the canned apology.
func (m *Metrics) IncrFallback() {
	m.fallbacks.Inc()
}

// GetAssistantSnapshot returns a snapshot of assistant metrics suitable for the
// GET /metrics/assistente endpoint.
func (m *Metrics) GetAssistantSnapshot() *domain.AssistantMetrics {
	promptTokens := getCounterValue(m.tokensUsed, "prompt")
	completionTokens := getCounterValue(m.tokensUsed, "completion")
	errorCount := getCounterValue(m.consultas, "error")
	total := getCounterValue(m.consultas, "success") + errorCount
	llmCalls := getCounterValue(m.cacheMisses, CacheLLM)

	snap := &domain.AssistantMetrics{
		TotalConsultas:    int64(total),
		SnapshotHitRate:   hitRate(getCounterValue(m.cacheHits, CacheSnapshot), getCounterValue(m.cacheMisses, CacheSnapshot)),
		LLMCacheHitRate:   hitRate(getCounterValue(m.cacheHits, CacheLLM), llmCalls),
		IntentsByKind:     collectByLabel(m.intents, "kind"),
		MutationsByEntity: collectByLabel(m.mutations, "entity"),
		Period:            "all_time",
	}
	if total > 0 {
		snap.ErrorRate = errorCount / total
		snap.FallbackRate = counterValue(m.fallbacks) / total
	}
	if llmCalls > 0 {
		snap.AvgTokensPerCall = (promptTokens + completionTokens) / llmCalls
	}
	if sum, count := histogramTotals(m.requestDuration, "consulta"); count > 0 {
		snap.AvgLatencyMs = sum / float64(count) * 1000
	}
	return snap
}

func hitRate(hits, misses float64) float64 {
	if hits+misses == 0 {
		return 0
	}
	return hits / (hits + misses)
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	return counterValue(cv.WithLabelValues(label))
}

func counterValue(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

// collectByLabel sums every child of cv grouped by the value of label.
func collectByLabel(cv *prometheus.CounterVec, label string) map[string]int64 {
	out := map[string]int64{}
	ch := make(chan prometheus.Metric, 32)
	go func() {
		cv.Collect(ch)
		close(ch)
	}()
	for metric := range ch {
		m := &dto.Metric{}
		if err := metric.Write(m); err != nil || m.Counter == nil {
			continue
		}
		for _, lp := range m.GetLabel() {
			if lp.GetName() == label {
				out[lp.GetValue()] += int64(m.Counter.GetValue())
			}
		}
	}
	return out
}

func histogramTotals(hv *prometheus.HistogramVec, operation string) (float64, uint64) {
	obs, err := hv.GetMetricWithLabelValues(operation)
	if err != nil {
		return 0, 0
	}
	metric, ok := obs.(prometheus.Metric)
	if !ok {
		return 0, 0
	}
	m := &dto.Metric{}
	if err := metric.Write(m); err != nil || m.Histogram == nil {
		return 0, 0
	}
	return m.Histogram.GetSampleSum(), m.Histogram.GetSampleCount()
}
