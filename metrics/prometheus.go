package metrics

import (
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// all metrics and middleware for the protocol and REST surface
var (
	// to prevent metrics from being initialized multiple times
	isMetricsInitVar uint32 = 0

	// active REST API connections
	activeRESTConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_rest_connections",
			Help: "Number of active REST API connections",
		},
	)

	// response times for REST APIs
	responseTimeRESTAPI = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "restapi_response_time_milliseconds",
			Help:    "REST API response time distributions",
			Buckets: []float64{1, 10, 50, 100, 200, 300, 400, 500},
		},
		[]string{"method", "endpoint"},
	)

	// Number of requests processed by REST API
	RESTRequestMetricsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rest_requests_processed_total",
		Help: "The total number of processed REST requests",
	}, []string{"method", "endpoint"})

	// Number of protocol sessions started, by kind (connect/request)
	protocolSessionsStarted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "protocol_sessions_started_total",
		Help: "The total number of started pairing protocol sessions",
	}, []string{"kind"})

	// Number of protocol sessions closed, by kind and outcome
	protocolSessionsClosed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "protocol_sessions_closed_total",
		Help: "The total number of closed pairing protocol sessions",
	}, []string{"kind", "status"})

	// Number of transfer chunks sent
	transferChunksSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "transfer_chunks_sent_total",
		Help: "The total number of vault transfer chunks sent",
	})

	// Size of completed vault transfers
	transferSizeBytes = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "transfer_size_bytes",
		Help:    "Completed vault transfer ciphertext sizes",
		Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
	})
)

func setIsMetricsInit() {
	atomic.StoreUint32(&isMetricsInitVar, 1)
}

func isMetricsInit() bool {
	return atomic.LoadUint32(&isMetricsInitVar) == 1
}

func InitMetrics() {
	if !isMetricsInit() {
		setIsMetricsInit()

		// Metrics have to be registered to be exposed
		prometheus.MustRegister(activeRESTConnections)
		prometheus.MustRegister(responseTimeRESTAPI)
		prometheus.MustRegister(RESTRequestMetricsTotal)
		prometheus.MustRegister(protocolSessionsStarted)
		prometheus.MustRegister(protocolSessionsClosed)
		prometheus.MustRegister(transferChunksSent)
		prometheus.MustRegister(transferSizeBytes)
	}
}

// SessionStarted records the start of a protocol session.
func SessionStarted(kind string) {
	protocolSessionsStarted.WithLabelValues(kind).Inc()
}

// SessionClosed records a finished protocol session and its outcome.
func SessionClosed(kind string, status string) {
	protocolSessionsClosed.WithLabelValues(kind, status).Inc()
}

// ChunkSent records one transfer chunk.
func ChunkSent(sizeBytes int) {
	transferChunksSent.Inc()
}

// ObserveTransfer records a completed transfer's ciphertext size.
func ObserveTransfer(sizeBytes int) {
	transferSizeBytes.Observe(float64(sizeBytes))
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Increment the counter for the given endpoint:
		RESTRequestMetricsTotal.WithLabelValues(c.Request.Method, c.FullPath()).Inc()

		// Start timing responseTime histogram
		start := time.Now()

		// Set activeConnections gauge
		activeRESTConnections.Inc()
		defer activeRESTConnections.Dec()

		c.Next()

		// Set responseTime histogram
		latency := time.Since(start)
		responseTimeRESTAPI.WithLabelValues(c.Request.Method, c.Request.URL.Path).Observe(float64(latency.Milliseconds()))
	}
}
