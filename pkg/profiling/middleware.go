package profiling

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the request metrics recorded by Middleware.
type Metrics struct {
	Duration *prometheus.HistogramVec
	InFlight prometheus.Gauge
}

// NewMetrics creates the request metrics and registers them on reg when it is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "gocv",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Time spent serving requests, by handler and status code.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"handler", "status"}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "gocv",
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Requests currently being served.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Duration, m.InFlight)
	}
	return m
}

// Middleware times handlers into Prometheus and, with profiling enabled, reports runtime
// deltas in response headers.
type Middleware struct {
	enableProfiling bool
	metrics         *Metrics
}

// NewMiddleware creates a new profiling middleware. metrics may be nil.
func NewMiddleware(enableProfiling bool, metrics *Metrics) *Middleware {
	return &Middleware{
		enableProfiling: enableProfiling,
		metrics:         metrics,
	}
}

// Handler returns a chi-style middleware labelling observations with name.
func (m *Middleware) Handler(name string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return m.ProfiledHandler(name, next)
	}
}

// ProfiledHandler wraps an HTTP handler with timing and optional profiling headers
func (m *Middleware) ProfiledHandler(name string, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()
		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		var startMemStats runtime.MemStats
		startGoroutines := 0
		if m.enableProfiling {
			runtime.ReadMemStats(&startMemStats)
			startGoroutines = runtime.NumGoroutine()
			wrapped.before = func(h http.Header) {
				var endMemStats runtime.MemStats
				runtime.ReadMemStats(&endMemStats)
				h.Set("X-Handler-Name", name)
				h.Set("X-Duration-Ms", strconv.FormatFloat(float64(time.Since(startTime).Nanoseconds())/1e6, 'f', 3, 64))
				h.Set("X-Memory-Delta-Bytes", strconv.FormatInt(int64(endMemStats.Alloc)-int64(startMemStats.Alloc), 10))
				h.Set("X-Goroutine-Delta", strconv.Itoa(runtime.NumGoroutine()-startGoroutines))
			}
		}

		if m.metrics != nil {
			m.metrics.InFlight.Inc()
			defer m.metrics.InFlight.Dec()
		}

		handler.ServeHTTP(wrapped, r)

		if m.metrics != nil {
			m.metrics.Duration.
				WithLabelValues(name, strconv.Itoa(wrapped.statusCode)).
				Observe(time.Since(startTime).Seconds())
		}
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code. before runs once,
// right before the header is sent, so that late headers still reach the client.
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
	before      func(http.Header)
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.wroteHeader = true
	rw.statusCode = code
	if rw.before != nil {
		rw.before(rw.Header())
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
