package metrics

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type ctxKey string

const (
	routeLabelKey   ctxKey = "metrics_route"
	requestIDCtxKey ctxKey = "metrics_request_id"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "caldavgw_requests_total",
		Help: "Total number of CalDAV requests processed.",
	}, []string{"method", "route"})

	requestErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "caldavgw_request_errors_total",
		Help: "Total number of CalDAV requests answered with a server error.",
	}, []string{"method", "route", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "caldavgw_request_duration_seconds",
		Help:    "Histogram of CalDAV request latencies.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	connectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "caldavgw_connections_active",
		Help: "Number of open CalDAV connections.",
	})

	connectionsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "caldavgw_connections_rejected_total",
		Help: "Total number of CalDAV connections refused by the accept rate limit.",
	})

	sessionLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "caldavgw_session_lookups_total",
		Help: "Backend session lookups by result (hit, miss, failure).",
	}, []string{"result"})

	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "caldavgw_http_requests_total",
		Help: "Total number of ops HTTP requests processed.",
	}, []string{"method", "route"})

	httpErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "caldavgw_http_errors_total",
		Help: "Total number of ops HTTP requests resulting in server errors.",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "caldavgw_http_request_duration_seconds",
		Help:    "Histogram of latencies for ops HTTP requests.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	dbLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "caldavgw_db_latency_seconds",
		Help:    "Histogram of database operation latencies.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "route"})
)

// Middleware records ops HTTP request metrics and enriches the context with labels for downstream instrumentation.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route := routePattern(r)
			reqID := middleware.GetReqID(r.Context())

			ctx := WithRoute(r.Context(), route)
			if reqID != "" {
				ctx = context.WithValue(ctx, requestIDCtxKey, reqID)
			}

			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r.WithContext(ctx))

			// chi fills in the pattern while routing
			route = routePattern(r)
			status := ww.Status()
			statusCode := strconv.Itoa(status)

			httpRequestsTotal.WithLabelValues(r.Method, route).Inc()
			httpRequestDuration.WithLabelValues(r.Method, route, statusCode).Observe(time.Since(start).Seconds())
			if status >= http.StatusInternalServerError {
				httpErrorsTotal.WithLabelValues(r.Method, route, statusCode).Inc()
			}
		})
	}
}

// Handler exposes the Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// WithRoute labels ctx with the route serving the current request, so
// database latency can be attributed to it.
func WithRoute(ctx context.Context, route string) context.Context {
	return context.WithValue(ctx, routeLabelKey, route)
}

// ObserveCalDAVRequest records one answered CalDAV request.
func ObserveCalDAVRequest(method, route string, status int, d time.Duration) {
	statusCode := strconv.Itoa(status)
	requestsTotal.WithLabelValues(method, route).Inc()
	requestDuration.WithLabelValues(method, route, statusCode).Observe(d.Seconds())
	if status >= http.StatusInternalServerError {
		requestErrorsTotal.WithLabelValues(method, route, statusCode).Inc()
	}
}

func ConnectionOpened() {
	connectionsActive.Inc()
}

func ConnectionClosed() {
	connectionsActive.Dec()
}

func ConnectionRejected() {
	connectionsRejected.Inc()
}

// ObserveSessionLookup counts a session provider lookup; result is hit, miss or failure.
func ObserveSessionLookup(result string) {
	sessionLookups.WithLabelValues(result).Inc()
}

// ObserveDBLatency records database latency for a given operation, associating it with request labels when available.
func ObserveDBLatency(ctx context.Context, operation string, start time.Time) {
	route := routeFromContext(ctx)
	dbLatency.WithLabelValues(operation, route).Observe(time.Since(start).Seconds())
}

// RequestIDFromContext extracts the request ID stored by the metrics middleware.
func RequestIDFromContext(ctx context.Context) string {
	if reqID, ok := ctx.Value(requestIDCtxKey).(string); ok {
		return reqID
	}
	return ""
}

func routeFromContext(ctx context.Context) string {
	if route, ok := ctx.Value(routeLabelKey).(string); ok && route != "" {
		return route
	}
	return "unknown"
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := strings.TrimSpace(rctx.RoutePattern()); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}
