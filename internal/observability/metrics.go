package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the ranking pipeline,
// organized by subsystem: ranking runs, the classifier stages, and the LLM
// citation scorer. Counters and histograms are registered via promauto with
// the default registry.
type Metrics struct {
	// RunsStarted counts ranking invocations initiated.
	RunsStarted prometheus.Counter

	// RunsCompleted counts ranking invocations that finished successfully.
	RunsCompleted prometheus.Counter

	// RunsFailed counts ranking invocations that ended in failure.
	RunsFailed prometheus.Counter

	// RunDuration observes end-to-end ranking duration in seconds.
	RunDuration prometheus.Histogram

	// PapersProcessed counts papers seen by Stage 1 across all runs.
	PapersProcessed prometheus.Counter

	// PapersRecalled counts papers that passed the Stage-1 threshold.
	PapersRecalled prometheus.Counter

	// PapersRanked counts papers that received a final rank.
	PapersRanked prometheus.Counter

	// StageDuration observes per-stage duration in seconds, labeled by stage
	// (features, stage1, scorer, stage2, aggregate).
	StageDuration *prometheus.HistogramVec

	// ScorerRequestsTotal counts LLM scoring requests, labeled by provider and model.
	ScorerRequestsTotal *prometheus.CounterVec

	// ScorerRequestsFailed counts failed LLM scoring requests, labeled by
	// provider, model, and failure kind (rate_limited, transient, parse, other).
	ScorerRequestsFailed *prometheus.CounterVec

	// ScorerRequestDuration observes LLM request duration in seconds,
	// labeled by provider and model.
	ScorerRequestDuration *prometheus.HistogramVec

	// ScorerRetries counts retry attempts across all items.
	ScorerRetries prometheus.Counter

	// ScorerExhausted counts items that fell back to the zero-score default
	// after exhausting the retry budget.
	ScorerExhausted prometheus.Counter

	// CacheHits counts scoring requests served from the persistent cache.
	CacheHits prometheus.Counter

	// CacheMisses counts scoring requests that required a provider call.
	CacheMisses prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		RunsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_started_total",
			Help:      "Total number of ranking runs started",
		}),
		RunsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_completed_total",
			Help:      "Total number of ranking runs completed successfully",
		}),
		RunsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_failed_total",
			Help:      "Total number of ranking runs that failed",
		}),
		RunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "End-to-end ranking run duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		PapersProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_processed_total",
			Help:      "Total number of papers scored by Stage 1",
		}),
		PapersRecalled: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_recalled_total",
			Help:      "Total number of papers that passed the recall threshold",
		}),
		PapersRanked: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_ranked_total",
			Help:      "Total number of papers assigned a final rank",
		}),
		StageDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		}, []string{"stage"}),
		ScorerRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scorer_requests_total",
			Help:      "Total number of LLM citation scoring requests",
		}, []string{"provider", "model"}),
		ScorerRequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scorer_requests_failed_total",
			Help:      "Total number of failed LLM citation scoring requests",
		}, []string{"provider", "model", "kind"}),
		ScorerRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scorer_request_duration_seconds",
			Help:      "LLM citation scoring request duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"provider", "model"}),
		ScorerRetries: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scorer_retries_total",
			Help:      "Total number of scoring retry attempts",
		}),
		ScorerExhausted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scorer_exhausted_total",
			Help:      "Total number of items resolved to the fail-soft default",
		}),
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scorer_cache_hits_total",
			Help:      "Total number of scoring requests served from cache",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scorer_cache_misses_total",
			Help:      "Total number of scoring requests requiring a provider call",
		}),
	}
}
