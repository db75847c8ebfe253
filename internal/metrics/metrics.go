package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// once guards registration; the default registry panics on duplicates.
	once sync.Once

	// HTTPRequestsTotal counts finished requests.
	// route is the mux pattern, never the raw path, to keep label cardinality bounded.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "showcase_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDurationSeconds observes request latency.
	HTTPRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "showcase_http_request_duration_seconds",
			Help:    "HTTP request latency distributions.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// LinkResolutions counts resolver strategy attempts.
	// outcome is one of hit, miss, error.
	LinkResolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "showcase_link_resolve_total",
			Help: "Link resolver strategy attempts by outcome.",
		},
		[]string{"strategy", "outcome"},
	)

	// LinkCacheOperations counts resolved link cache lookups (hit, miss, error, store).
	LinkCacheOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "showcase_link_cache_operations_total",
			Help: "Resolved link cache operations.",
		},
		[]string{"result"},
	)

	// PublicationTransitions counts state changes persisted by the lifecycle manager.
	PublicationTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "showcase_publication_transitions_total",
			Help: "Publication state transitions by path and resulting state.",
		},
		[]string{"path", "state"},
	)

	// PublishFailures counts automated publish attempts that returned an error.
	PublishFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "showcase_publish_failures_total",
			Help: "Failed automated publish attempts by error kind.",
		},
		[]string{"kind"},
	)

	// BestEffortFailures counts swallowed failures of remote cleanup calls.
	BestEffortFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "showcase_best_effort_failures_total",
			Help: "Swallowed failures of best-effort remote operations.",
		},
		[]string{"operation"},
	)
)

// Init registers every collector with the default registry. Safe to call more than once.
func Init() {
	once.Do(func() {
		prometheus.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDurationSeconds,
			LinkResolutions,
			LinkCacheOperations,
			PublicationTransitions,
			PublishFailures,
			BestEffortFailures,
		)
	})
}
