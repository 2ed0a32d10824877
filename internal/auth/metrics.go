package auth

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for authentication outcomes.
var (
	authRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authgw_auth_requests_total",
			Help: "Total number of authentication requests by operation and result",
		},
		[]string{"operation", "result"},
	)

	authRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "authgw_auth_request_duration_seconds",
			Help:    "Duration of authentication operations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"operation"},
	)
)

// Metric label values.
const (
	opRegister   = "register"
	opLogin      = "login"
	opIntrospect = "introspect"

	resultSuccess  = "success"
	resultRejected = "rejected"
	resultError    = "error"
)
