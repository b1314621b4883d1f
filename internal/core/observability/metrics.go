// Package observability holds the process-wide Prometheus collectors for
// the tile server: HTTP traffic, cache outcomes, upstream fetches,
// rendering and stylesheet reloads.
package observability

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "route", "status"},
	)

	upstreamLatencySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_latency_seconds",
			Help:    "Latency of upstream tile fetches in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"upstream", "outcome"},
	)

	buildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vtile_build_info",
			Help: "Build information for the binary.",
		},
		[]string{"version"},
	)

	cacheResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_results_total",
			Help: "Rendered tile cache lookups by tier and outcome.",
		},
		[]string{"tier", "outcome"},
	)

	cacheOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_op_total",
			Help: "Cache backend operations by op and result.",
		},
		[]string{"op", "result"},
	)

	redisOpDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_operation_duration_seconds",
			Help:    "Latency of Redis operations in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"op"},
	)

	renderDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tile_render_duration_seconds",
			Help:    "Time spent rasterizing one tile.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		},
		[]string{"size"},
	)

	renderFeatures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tile_features_total",
			Help: "Features seen by the renderer by result.",
		},
		[]string{"result"},
	)

	renderLabels = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tile_labels_total",
			Help: "Labels placed or dropped by collision and fit checks.",
		},
		[]string{"result"},
	)

	renderInflight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tile_renders_inflight",
			Help: "Renders currently held by the worker pool.",
		},
	)

	stylesheetLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stylesheet_loads_total",
			Help: "Stylesheet load attempts by result.",
		},
		[]string{"result"},
	)

	stylesheetSelectors = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stylesheet_selectors",
			Help: "Number of selectors in the active stylesheet.",
		},
	)

	invalidatedTiles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tile_invalidations_total",
			Help: "Cached tiles removed by invalidation events.",
		},
		[]string{"source"},
	)
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		httpRequestsTotal, httpRequestDurationSeconds, upstreamLatencySeconds,
		buildInfo, cacheResults, cacheOps, redisOpDurationSeconds, renderDurationSeconds, renderFeatures,
		renderLabels, renderInflight, stylesheetLoads, stylesheetSelectors,
		invalidatedTiles,
	}
}

// Init registers the collectors on an additional registry, e.g. the one
// behind the metrics provider. Already registered collectors are skipped.
func Init(reg prometheus.Registerer) error {
	if reg == nil {
		return nil
	}
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveUpstreamLatency(upstream, outcome string, durationSeconds float64) {
	upstreamLatencySeconds.WithLabelValues(upstream, outcome).Observe(durationSeconds)
}

func IncCacheHit(tier string) {
	cacheResults.WithLabelValues(tier, "hit").Inc()
}

func IncCacheMiss(tier string) {
	cacheResults.WithLabelValues(tier, "miss").Inc()
}

func IncCacheError(tier string) {
	cacheResults.WithLabelValues(tier, "error").Inc()
}

func ObserveCacheOp(op string, err error, durationSeconds float64) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	cacheOps.WithLabelValues(op, result).Inc()
	redisOpDurationSeconds.WithLabelValues(op).Observe(durationSeconds)
}

// RenderSample is what one finished render reports.
type RenderSample struct {
	Size          int
	Duration      time.Duration
	Painted       int
	Skipped       int
	Labels        int
	LabelsDropped int
}

func ObserveRender(s RenderSample) {
	renderDurationSeconds.WithLabelValues(strconv.Itoa(s.Size)).Observe(s.Duration.Seconds())
	renderFeatures.WithLabelValues("painted").Add(float64(s.Painted))
	renderFeatures.WithLabelValues("skipped").Add(float64(s.Skipped))
	renderLabels.WithLabelValues("placed").Add(float64(s.Labels))
	renderLabels.WithLabelValues("dropped").Add(float64(s.LabelsDropped))
}

// TrackRender marks a render slot as busy until the returned func is called.
func TrackRender() func() {
	renderInflight.Inc()
	return renderInflight.Dec
}

func ObserveStylesheetLoad(err error, selectors int) {
	if err != nil {
		stylesheetLoads.WithLabelValues("error").Inc()
		return
	}
	stylesheetLoads.WithLabelValues("ok").Inc()
	stylesheetSelectors.Set(float64(selectors))
}

func AddInvalidatedTiles(source string, n int) {
	if n <= 0 {
		return
	}
	invalidatedTiles.WithLabelValues(source).Add(float64(n))
}

func ExposeBuildInfo(version string) {
	if version == "" {
		version = "dev"
	}
	buildInfo.WithLabelValues(version).Set(1)
}
