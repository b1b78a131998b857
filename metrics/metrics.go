package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SessionsStarted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "landcollect_sessions_started_total",
		Help: "Total capture sessions started",
	})
	SessionsSaved = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "landcollect_sessions_saved_total",
		Help: "Total capture sessions saved as boundaries",
	})
	WsActionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "landcollect_ws_actions_total",
		Help: "WebSocket capture actions by type",
	}, []string{"action"})
	OverlapChecksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "landcollect_overlap_checks_total",
		Help: "Total overlap checks served by the built-in engine",
	})
	OverlapCheckFailTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "landcollect_overlap_check_fail_total",
		Help: "Total overlap checks that returned an error",
	})
	OverlapCheckDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "landcollect_overlap_check_duration_ms",
		Help:    "Overlap check duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000, 5000},
	})
	NearbyQueriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "landcollect_nearby_queries_total",
		Help: "Total nearby parcel queries",
	})
	GeocodeRequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "landcollect_geocode_requests_total",
		Help: "Total geocode lookups sent upstream",
	})
	GeocodeCacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "landcollect_geocode_cache_hits_total",
		Help: "Total geocode cache hits",
	})
	TileRequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "landcollect_tile_requests_total",
		Help: "Total tile proxy requests",
	})
	TileFetchFailTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "landcollect_tile_fetch_fail_total",
		Help: "Total tile proxy upstream failures",
	})
	BoundariesImportedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "landcollect_boundaries_imported_total",
		Help: "Boundaries imported by source format",
	}, []string{"format"})
	BoundariesExportedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "landcollect_boundaries_exported_total",
		Help: "Boundaries exported by target format",
	}, []string{"format"})
)

func init() {
	prometheus.MustRegister(SessionsStarted)
	prometheus.MustRegister(SessionsSaved)
	prometheus.MustRegister(WsActionsTotal)
	prometheus.MustRegister(OverlapChecksTotal)
	prometheus.MustRegister(OverlapCheckFailTotal)
	prometheus.MustRegister(OverlapCheckDurationMs)
	prometheus.MustRegister(NearbyQueriesTotal)
	prometheus.MustRegister(GeocodeRequestsTotal)
	prometheus.MustRegister(GeocodeCacheHitsTotal)
	prometheus.MustRegister(TileRequestsTotal)
	prometheus.MustRegister(TileFetchFailTotal)
	prometheus.MustRegister(BoundariesImportedTotal)
	prometheus.MustRegister(BoundariesExportedTotal)
}

// Handler 返回/metrics抓取端点
func Handler() http.Handler { return promhttp.Handler() }
