package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	messagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tletracker_messages_total",
			Help: "Inbound bus messages handled, by topic.",
		},
		[]string{"topic"},
	)

	tleIngestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tletracker_tle_ingest_total",
			Help: "TLE ingest attempts, by result (ok, invalid).",
		},
		[]string{"result"},
	)

	publishTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tletracker_publish_total",
			Help: "Outbound publishes, by topic and result (ok, error).",
		},
		[]string{"topic", "result"},
	)

	positionDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tletracker_position_duration_seconds",
			Help:    "Time to compute a subpoint for a position request.",
			Buckets: []float64{.00001, .00005, .0001, .0005, .001, .005, .01},
		},
	)

	tleAgeSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tletracker_tle_age_seconds",
			Help: "Seconds since the current TLE was ingested; -1 when none.",
		},
	)

	mqttConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tletracker_mqtt_connected",
			Help: "1 while connected to the MQTT broker.",
		},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tletracker_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tletracker_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)
)

func init() {
	prometheus.MustRegister(
		messagesTotal,
		tleIngestTotal,
		publishTotal,
		positionDurationSeconds,
		tleAgeSeconds,
		mqttConnected,
		httpRequestsTotal,
		httpDurationSeconds,
	)
	tleAgeSeconds.Set(-1)
}

// RecordMessage counts one inbound message.
func RecordMessage(topic string) {
	messagesTotal.WithLabelValues(topic).Inc()
}

// RecordIngest counts a TLE ingest attempt.
func RecordIngest(ok bool) {
	result := "ok"
	if !ok {
		result = "invalid"
	}
	tleIngestTotal.WithLabelValues(result).Inc()
}

// RecordPublish counts a completed publish.
func RecordPublish(topic string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	publishTotal.WithLabelValues(topic, result).Inc()
}

// ObservePosition records how long a subpoint computation took.
func ObservePosition(d time.Duration) {
	positionDurationSeconds.Observe(d.Seconds())
}

// SetTLEAge sets the age gauge; pass -1 when no TLE is loaded.
func SetTLEAge(seconds float64) {
	tleAgeSeconds.Set(seconds)
}

// SetMQTTConnected flips the broker connection gauge.
func SetMQTTConnected(connected bool) {
	if connected {
		mqttConnected.Set(1)
		return
	}
	mqttConnected.Set(0)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// knownRoutes are the paths served by the ops API.
var knownRoutes = map[string]bool{
	"/healthz":       true,
	"/readyz":        true,
	"/metrics":       true,
	"/api/v1/status": true,
}

// normalizeRoute bounds the path label: scanners probing random URLs all
// land in "other".
func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	if p := strings.TrimSuffix(path, "/"); p != path && knownRoutes[p] {
		return p
	}
	return "other"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		path := normalizeRoute(r.URL.Path)
		httpRequestsTotal.WithLabelValues(path, r.Method, strconv.Itoa(rw.statusCode)).Inc()
		httpDurationSeconds.WithLabelValues(path, r.Method).Observe(time.Since(start).Seconds())
	})
}
