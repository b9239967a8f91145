package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "nearby_search"

// Metrics holds the Prometheus counters, histograms, and gauges for the service.
type Metrics struct {
	// Search controller metrics.
	FetchRequests  *prometheus.CounterVec // labels: outcome={started,joined}
	SearchOutcomes *prometheus.CounterVec // labels: result={success,error,invariant_violation,discarded}
	SearchDuration prometheus.Histogram

	// Location tracker metrics.
	LocationUpdates      *prometheus.CounterVec // labels: kind={located,failed}
	AuthorizationChanges *prometheus.CounterVec // labels: status

	// Location fix feed metrics.
	FixesConsumed   prometheus.Counter
	FixDecodeErrors prometheus.Counter
	FeedRunning     prometheus.Gauge
	FeedBatchSize   prometheus.Histogram

	// Places backend metrics.
	PlacesRequests    *prometheus.CounterVec // labels: outcome={success,error,status}
	PlacesCache       *prometheus.CounterVec // labels: result={hit,miss}
	PlacesAPIDuration prometheus.Histogram

	// Result relay metrics.
	ResultsPublished prometheus.Counter
	PublishErrors    prometheus.Counter
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		FetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_requests_total",
			Help:      "Fetch calls by outcome: a new search chain started or an in-flight one joined.",
		}, []string{"outcome"}),
		SearchOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_outcomes_total",
			Help:      "Completed search chains by result.",
		}, []string{"result"}),
		SearchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Duration from fetch to chain completion, including permission and location waits.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		LocationUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "location_updates_total",
			Help:      "Tracked location changes by kind. Repeated fixes at the same coordinates are not counted.",
		}, []string{"kind"}),
		AuthorizationChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "authorization_changes_total",
			Help:      "Location authorization status changes by new status.",
		}, []string{"status"}),
		FixesConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fixes_consumed_total",
			Help:      "Total location fix messages read from the fix topic.",
		}),
		FixDecodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fix_decode_errors_total",
			Help:      "Total fix messages skipped because they could not be decoded.",
		}),
		FeedRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "feed_running",
			Help:      "1 when the location fix feed is active, 0 when shut down.",
		}),
		FeedBatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "feed_batch_size",
			Help:      "Number of fix messages per batch extracted from Kafka.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		PlacesRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "places_requests_total",
			Help:      "Places API nearby search requests by outcome.",
		}, []string{"outcome"}),
		PlacesCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "places_cache_total",
			Help:      "Places result cache lookups by result.",
		}, []string{"result"}),
		PlacesAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "places_api_duration_seconds",
			Help:      "Places API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		ResultsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "results_published_total",
			Help:      "Total search results written to the results topic.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Total search results that could not be written to the results topic.",
		}),
	}

	prometheus.MustRegister(
		m.FetchRequests,
		m.SearchOutcomes,
		m.SearchDuration,
		m.LocationUpdates,
		m.AuthorizationChanges,
		m.FixesConsumed,
		m.FixDecodeErrors,
		m.FeedRunning,
		m.FeedBatchSize,
		m.PlacesRequests,
		m.PlacesCache,
		m.PlacesAPIDuration,
		m.ResultsPublished,
		m.PublishErrors,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		FetchRequests:        prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "fetch_requests_total"}, []string{"outcome"}),
		SearchOutcomes:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "search_outcomes_total"}, []string{"result"}),
		SearchDuration:       prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "search_duration_seconds"}),
		LocationUpdates:      prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "location_updates_total"}, []string{"kind"}),
		AuthorizationChanges: prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "authorization_changes_total"}, []string{"status"}),
		FixesConsumed:        prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "fixes_consumed_total"}),
		FixDecodeErrors:      prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "fix_decode_errors_total"}),
		FeedRunning:          prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "feed_running"}),
		FeedBatchSize:        prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "feed_batch_size"}),
		PlacesRequests:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "places_requests_total"}, []string{"outcome"}),
		PlacesCache:          prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "places_cache_total"}, []string{"result"}),
		PlacesAPIDuration:    prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "places_api_duration_seconds"}),
		ResultsPublished:     prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "results_published_total"}),
		PublishErrors:        prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "publish_errors_total"}),
	}
}
