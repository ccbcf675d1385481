package metrics

import "github.com/prometheus/client_golang/prometheus"

// Counters for the diagnostics the dashboards and alerts care about:
// records the engine had to skip, scope selections that matched nothing,
// and cache behavior. Registered on the default registry, served by the
// /metrics endpoint.
var (
    MalformedEvents = prometheus.NewCounter(prometheus.CounterOpts{
        Namespace: "testpulse",
        Subsystem: "engine",
        Name:      "malformed_events_total",
        Help:      "Source records skipped during normalization",
    })
    DateFallbacks = prometheus.NewCounter(prometheus.CounterOpts{
        Namespace: "testpulse",
        Subsystem: "engine",
        Name:      "date_fallbacks_total",
        Help:      "Execution rows resolved on created_at because execution_date was missing",
    })
    UnknownReleaseIDs = prometheus.NewCounter(prometheus.CounterOpts{
        Namespace: "testpulse",
        Subsystem: "engine",
        Name:      "unknown_release_ids_total",
        Help:      "Selected release ids that matched no known release",
    })
    TrendCacheHits = prometheus.NewCounter(prometheus.CounterOpts{
        Namespace: "testpulse",
        Subsystem: "engine",
        Name:      "trend_cache_hits_total",
        Help:      "Trend requests served from cache",
    })
    TrendCacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
        Namespace: "testpulse",
        Subsystem: "engine",
        Name:      "trend_cache_misses_total",
        Help:      "Trend requests computed from source data",
    })
    SyncRecords = prometheus.NewCounterVec(prometheus.CounterOpts{
        Namespace: "testpulse",
        Subsystem: "sync",
        Name:      "records_total",
        Help:      "Records upserted into the mirror per collection",
    }, []string{"collection"})
    JobRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
        Namespace: "testpulse",
        Subsystem: "jobs",
        Name:      "runs_total",
        Help:      "Scheduled job executions by outcome",
    }, []string{"job", "outcome"})
    HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
        Namespace: "testpulse",
        Subsystem: "http",
        Name:      "requests_total",
        Help:      "Processed HTTP requests",
    }, []string{"method", "route", "status"})
)

func init() {
    prometheus.MustRegister(
        MalformedEvents,
        DateFallbacks,
        UnknownReleaseIDs,
        TrendCacheHits,
        TrendCacheMisses,
        SyncRecords,
        JobRuns,
        HTTPRequests,
    )
}
