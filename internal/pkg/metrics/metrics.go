package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vaultgate_operations_total",
		Help: "The total number of vault operations processed",
	}, []string{"op", "status"})

	LatencyBucket = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vaultgate_latency_bucket",
		Help:    "Request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint", "method"})

	Rejects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vaultgate_rejects_total",
		Help: "Total rejected requests by error code",
	}, []string{"reason"})

	TotalValue = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vaultgate_total_value",
		Help: "Current pooled value in base units",
	})

	RebalanceActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vaultgate_rebalance_actions_total",
		Help: "Withdraw/deposit actions issued by the rebalance planner",
	}, []string{"kind"})
)
