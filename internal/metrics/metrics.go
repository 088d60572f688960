package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tphummel/devices/internal/models"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "devices_http_requests_total",
			Help: "Total number of HTTP requests by method, route, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "devices_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds by method and route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "devices_http_requests_in_flight",
		Help: "Current number of HTTP requests being processed.",
	})
)

// scrapeTimeout bounds the store query run on each scrape.
const scrapeTimeout = 5 * time.Second

// DeviceCounter is the subset of the store needed to collect device metrics.
type DeviceCounter interface {
	CountByStates(ctx context.Context) (map[models.State]int, error)
}

// deviceCollector queries the store on each scrape to report device counts
// broken down by state.
type deviceCollector struct {
	store       DeviceCounter
	devicesDesc *prometheus.Desc
}

func newDeviceCollector(store DeviceCounter) *deviceCollector {
	return &deviceCollector{
		store: store,
		devicesDesc: prometheus.NewDesc(
			"devices_total",
			"Number of devices managed, partitioned by state.",
			[]string{"state"},
			nil,
		),
	}
}

func (c *deviceCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.devicesDesc
}

func (c *deviceCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), scrapeTimeout)
	defer cancel()

	counts, err := c.store.CountByStates(ctx)
	if err != nil {
		ch <- prometheus.NewInvalidMetric(c.devicesDesc, err)
		return
	}
	for state, n := range counts {
		ch <- prometheus.MustNewConstMetric(
			c.devicesDesc,
			prometheus.GaugeValue,
			float64(n),
			string(state),
		)
	}
}

// Register registers all metrics with reg. Call once at startup after the
// store is opened.
func Register(reg prometheus.Registerer, store DeviceCounter) {
	reg.MustRegister(
		// Standard Go runtime and process metrics
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),

		// HTTP service metrics
		httpRequestsTotal,
		httpRequestDuration,
		httpRequestsInFlight,

		// Application metrics
		newDeviceCollector(store),
	)
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint,
// serving the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// responseWriter wraps http.ResponseWriter to capture the response status code.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware wraps an http.Handler to record HTTP metrics.
// pattern should be the route pattern string (e.g. "/api/v1/devices/{id}")
// so the path label has bounded cardinality.
func Middleware(pattern string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpRequestsInFlight.Inc()

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		defer func() {
			httpRequestsInFlight.Dec()
			status := strconv.Itoa(rw.status)
			httpRequestsTotal.WithLabelValues(r.Method, pattern, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, pattern).Observe(time.Since(start).Seconds())
		}()

		next.ServeHTTP(rw, r)
	})
}
