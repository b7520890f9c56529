package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "framefactor",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "framefactor",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	framesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "framefactor",
			Subsystem: "net",
			Name:      "frames_total",
			Help:      "Frames moved across peer connections.",
		},
		[]string{"node", "direction"},
	)
	activePeers = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "framefactor",
			Subsystem: "net",
			Name:      "active_peers",
			Help:      "Currently active peer connections.",
		},
		[]string{"node"},
	)
	lifecycleTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "framefactor",
			Subsystem: "net",
			Name:      "lifecycle_total",
			Help:      "Peer lifecycle transitions by event and error kind.",
		},
		[]string{"node", "event", "kind"},
	)
	droppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "framefactor",
			Subsystem: "replication",
			Name:      "dropped_envelopes_total",
			Help:      "Inbound envelopes dropped without tearing down the connection.",
		},
		[]string{"node", "reason"},
	)
	spawnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "framefactor",
			Subsystem: "replication",
			Name:      "spawns_total",
			Help:      "Spawn envelopes applied, by origin.",
		},
		[]string{"node", "origin"},
	)
	tickDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "framefactor",
			Subsystem: "replication",
			Name:      "tick_duration_seconds",
			Help:      "Wall time of one Receive/Simulate/Send tick.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .02, .05, .1},
		},
		[]string{"node"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			httpDuration,
			framesTotal,
			activePeers,
			lifecycleTotal,
			droppedTotal,
			spawnsTotal,
			tickDuration,
		)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

// RecordFrames counts frames in direction "in" or "out".
func RecordFrames(node, direction string, n int) {
	if n <= 0 {
		return
	}
	RegisterMetrics()
	framesTotal.WithLabelValues(node, direction).Add(float64(n))
}

func SetActivePeers(node string, n int) {
	RegisterMetrics()
	activePeers.WithLabelValues(node).Set(float64(n))
}

func RecordLifecycle(node, event, kind string) {
	RegisterMetrics()
	lifecycleTotal.WithLabelValues(node, event, kind).Inc()
}

func RecordDropped(node, reason string) {
	RegisterMetrics()
	droppedTotal.WithLabelValues(node, reason).Inc()
}

func RecordSpawn(node, origin string) {
	RegisterMetrics()
	spawnsTotal.WithLabelValues(node, origin).Inc()
}

func ObserveTick(node string, d time.Duration) {
	RegisterMetrics()
	tickDuration.WithLabelValues(node).Observe(d.Seconds())
}
