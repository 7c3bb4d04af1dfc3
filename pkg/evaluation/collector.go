package evaluation

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "wealthadvisor"

const (
	StageEmbed    = "embed"
	StageRetrieve = "retrieve"
	StageLLM      = "llm"
	StageTotal    = "total"
)

// Collector exports serving counters and latency histograms to Prometheus.
type Collector struct {
	registry    *prometheus.Registry
	queries     *prometheus.CounterVec
	escalations prometheus.Counter
	feedback    *prometheus.CounterVec
	stage       *prometheus.HistogramVec
	cache       *prometheus.CounterVec
}

// NewCollector registers everything on a private registry so tests and
// multiple instances never collide on the global one.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Collector{
		registry: reg,
		queries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Answered queries by intent and retrieval strategy.",
		}, []string{"intent", "strategy"}),
		escalations: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ca_escalations_total",
			Help:      "Answers routed to chartered accountant review.",
		}),
		feedback: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feedback_total",
			Help:      "Feedback signals received.",
		}, []string{"signal"}),
		stage: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Latency of each serving stage.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"stage"}),
		cache: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_cache_lookups_total",
			Help:      "Embedding cache lookups by outcome.",
		}, []string{"result"}),
	}
}

func (c *Collector) Registry() *prometheus.Registry { return c.registry }

func (c *Collector) ObserveQuery(intent, strategy string) {
	c.queries.WithLabelValues(intent, strategy).Inc()
}

func (c *Collector) ObserveEscalation() { c.escalations.Inc() }

func (c *Collector) ObserveFeedback(signal string) {
	c.feedback.WithLabelValues(signal).Inc()
}

func (c *Collector) ObserveStage(stage string, d time.Duration) {
	c.stage.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveCache satisfies the embedding cache observer hook.
func (c *Collector) ObserveCache(hit bool) {
	if hit {
		c.cache.WithLabelValues("hit").Inc()
		return
	}
	c.cache.WithLabelValues("miss").Inc()
}

func (c *Collector) observeLatency(l Latency) {
	c.ObserveStage(StageEmbed, msDuration(l.EmbedMs))
	c.ObserveStage(StageRetrieve, msDuration(l.RetrieveMs))
	c.ObserveStage(StageLLM, msDuration(l.LLMMs))
	c.ObserveStage(StageTotal, msDuration(l.TotalMs))
}

func msDuration(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}
