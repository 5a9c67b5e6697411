package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wavemap",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "wavemap",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "wavemap",
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
	}, []string{"method", "path"})

	// Camera and overlay metrics
	CameraMoves = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "wavemap",
		Subsystem: "camera",
		Name:      "moves_total",
		Help:      "Total immediate camera moves",
	})

	CameraAnimations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wavemap",
		Subsystem: "camera",
		Name:      "animations_total",
		Help:      "Camera animations by outcome (started, finished, cancelled)",
	}, []string{"result"})

	CameraTravelMeters = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "wavemap",
		Subsystem: "camera",
		Name:      "travel_meters",
		Help:      "Great-circle distance between consecutive settled camera centres",
		Buckets:   prometheus.ExponentialBuckets(10, 10, 7),
	})

	OverlayPolygons = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "wavemap",
		Subsystem: "overlay",
		Name:      "polygons",
		Help:      "Wave polygons currently in the overlay set",
	})

	WaveBatchesApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wavemap",
		Subsystem: "overlay",
		Name:      "wave_batches_total",
		Help:      "Wave polygon batches received from the feed, by outcome",
	}, []string{"result"})

	StyleLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wavemap",
		Subsystem: "style",
		Name:      "loads_total",
		Help:      "Style loads by outcome",
	}, []string{"result"})

	MapEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wavemap",
		Subsystem: "events",
		Name:      "received_total",
		Help:      "Engine events received, by type",
	}, []string{"type"})

	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wavemap",
		Subsystem: "events",
		Name:      "published_total",
		Help:      "Map events published to NATS, by type",
	}, []string{"type"})

	// Owning loop
	LoopTasks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "wavemap",
		Subsystem: "loop",
		Name:      "tasks_total",
		Help:      "Tasks executed on the owning loop",
	})

	LoopPanics = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "wavemap",
		Subsystem: "loop",
		Name:      "panics_total",
		Help:      "Tasks on the owning loop that panicked",
	})

	LoopAbandoned = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "wavemap",
		Subsystem: "loop",
		Name:      "abandoned_total",
		Help:      "Do calls whose context ended before the task started",
	})

	LoopQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "wavemap",
		Subsystem: "loop",
		Name:      "queue_depth",
		Help:      "Tasks waiting for the owning loop",
	})

	DiagnosticsExceptions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wavemap",
		Subsystem: "diagnostics",
		Name:      "exceptions_total",
		Help:      "Exceptions recorded through the diagnostics bridge",
	}, []string{"tag"})

	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "wavemap",
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Current number of active WebSocket connections",
	})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wavemap",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	}, []string{"operation"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wavemap",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses",
	}, []string{"operation"})

	// Database pool metrics
	DBPoolConnsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "wavemap",
		Subsystem: "db",
		Name:      "pool_conns_open",
		Help:      "Total connections open in the database pool",
	})

	DBPoolConnsAcquired = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "wavemap",
		Subsystem: "db",
		Name:      "pool_conns_acquired",
		Help:      "Connections currently acquired from the database pool",
	})

	DBPoolConnsIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "wavemap",
		Subsystem: "db",
		Name:      "pool_conns_idle",
		Help:      "Idle connections in the database pool",
	})
)

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)
		httpResponseSize.WithLabelValues(method, path).Observe(float64(len(c.Response().Body())))

		return err
	}
}

// Handler returns a Fiber handler serving Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	return func(c *fiber.Ctx) error {
		handler(c.Context())
		return nil
	}
}

// PoolStat is the subset of pgxpool.Stat the pool gauges read.
type PoolStat interface {
	AcquiredConns() int32
	IdleConns() int32
	TotalConns() int32
}

// UpdateDBPoolMetrics copies pool stats into the db gauges.
func UpdateDBPoolMetrics(s PoolStat) {
	DBPoolConnsAcquired.Set(float64(s.AcquiredConns()))
	DBPoolConnsIdle.Set(float64(s.IdleConns()))
	DBPoolConnsOpen.Set(float64(s.TotalConns()))
}
