package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Actions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "campus", Name: "actions_total", Help: "Service action outcomes by domain and code",
	}, []string{"domain", "code"})
	ActionErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "campus", Name: "action_errors_total", Help: "Unexpected errors downgraded to SERVER_ERROR",
	}, []string{"domain"})
	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "campus", Name: "http_requests_total", Help: "HTTP requests by route and status",
	}, []string{"route", "status"})
	DBPing = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "campus", Name: "db_ping_seconds", Help: "DB ping latency",
		Buckets: prometheus.DefBuckets,
	})
)

func init() {
	prometheus.MustRegister(Actions, ActionErrors, HTTPRequests, DBPing)
}

func Handler() http.Handler { return promhttp.Handler() }

func ObserveDBPing(d time.Duration) { DBPing.Observe(d.Seconds()) }

// ObserveAction counts one finished service call.
func ObserveAction(domain, code string) { Actions.WithLabelValues(domain, code).Inc() }
