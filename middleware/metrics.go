package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	paymentSessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_sessions_total",
			Help: "Payment sessions requested, by outcome",
		},
		[]string{"outcome"},
	)

	paymentVerificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_verifications_total",
			Help: "Payment callback verifications, by outcome",
		},
		[]string{"outcome"},
	)

	invoiceRenderDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "invoice_render_duration_seconds",
			Help:    "Time spent rendering invoice PDFs",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	invoiceCacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invoice_cache_lookups_total",
			Help: "Invoice cache lookups, by result",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(paymentSessionsTotal)
	prometheus.MustRegister(paymentVerificationsTotal)
	prometheus.MustRegister(invoiceRenderDuration)
	prometheus.MustRegister(invoiceCacheLookups)
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		duration := time.Since(start).Seconds()

		httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

func RecordPaymentSession(outcome string) {
	paymentSessionsTotal.WithLabelValues(outcome).Inc()
}

func RecordPaymentVerification(outcome string) {
	paymentVerificationsTotal.WithLabelValues(outcome).Inc()
}

func ObserveInvoiceRender(d time.Duration) {
	invoiceRenderDuration.Observe(d.Seconds())
}

func RecordInvoiceCacheLookup(result string) {
	invoiceCacheLookups.WithLabelValues(result).Inc()
}
