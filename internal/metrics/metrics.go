// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "groupledger"

var (
	// RPCRequests counts handled RPCs by procedure and Connect code ("ok" on success).
	RPCRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rpc_requests_total",
		Help:      "Handled RPCs by procedure and result code.",
	}, []string{"procedure", "code"})

	RPCDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "rpc_duration_seconds",
		Help:      "RPC handling latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"procedure"})

	BillsRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bills_recorded_total",
		Help:      "Bills committed to a group.",
	})

	SettlementsRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "settlements_recorded_total",
		Help:      "Settlements committed to a group.",
	})

	StoreConflictRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "store_conflict_retries_total",
		Help:      "Read-modify-write attempts retried after a version conflict.",
	})

	BalanceCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "balance_cache_lookups_total",
		Help:      "Balance cache lookups by result (hit, miss, error).",
	}, []string{"result"})

	AuditViolations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audit_violations_total",
		Help:      "Groups found by the audit job with inconsistent balances.",
	})

	AuditRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audit_runs_total",
		Help:      "Audit job runs by outcome.",
	}, []string{"outcome"})
)
