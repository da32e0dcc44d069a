package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	resultSuccess = "success"
	resultFailed  = "failed"
)

var (
	reconcileTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "planzy",
		Subsystem: "store",
		Name:      "reconcile_total",
		Help:      "Reconciled store actions by operation and result.",
	}, []string{"op", "result"})

	reconcileRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "planzy",
		Subsystem: "store",
		Name:      "reconcile_retries_total",
		Help:      "Retries of transient gateway failures.",
	}, []string{"op"})

	reconcileDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "planzy",
		Subsystem: "store",
		Name:      "reconcile_duration_seconds",
		Help:      "Time spent persisting a store action, retries included.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op"})

	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "planzy",
		Subsystem: "store",
		Name:      "queue_depth",
		Help:      "Actions waiting for reconciliation across all sessions.",
	})

	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "planzy",
		Subsystem: "store",
		Name:      "sessions",
		Help:      "Session stores currently held by the registry.",
	})
)
