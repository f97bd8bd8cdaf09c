package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ActiveSubscriptions = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "opsdeck_live_subscriptions",
			Help: "Number of open live subscriptions",
		},
		[]string{"target"},
	)

	SnapshotsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opsdeck_snapshots_delivered_total",
			Help: "Total number of snapshots pushed to live subscribers",
		},
		[]string{"target"},
	)

	SubscriptionErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opsdeck_subscription_errors_total",
			Help: "Total number of live subscriptions that ended with an error",
		},
		[]string{"target"},
	)

	PermissionFaults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opsdeck_permission_faults_total",
			Help: "Total number of permission faults reported, by delivery outcome",
		},
		[]string{"outcome"},
	)

	BatchCommits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opsdeck_batch_commits_total",
			Help: "Total number of write batches committed, by result",
		},
		[]string{"result"},
	)

	QuoteRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opsdeck_quote_requests_total",
			Help: "Total number of quote generation requests, by result",
		},
		[]string{"provider", "result"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opsdeck_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "opsdeck_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// NewServer creates an HTTP server serving /metrics (Prometheus) and /healthz.
func NewServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return &http.Server{
		Addr:    addr,
		Handler: mux,
	}
}
