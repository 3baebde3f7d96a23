package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PermissionChecks counts effective-permission evaluations and their outcome (allow|deny|error).
	PermissionChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inkhouse_permission_checks_total",
			Help: "Total number of effective permission checks",
		},
		[]string{"permission", "result"},
	)

	// AutoAssignments counts domain-based group assignment outcomes (created|existing|skipped|error).
	AutoAssignments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inkhouse_auto_assignments_total",
			Help: "Total number of domain-based auto-assignment attempts",
		},
		[]string{"result"},
	)

	// TenantResolutions records tenant context resolution by source (header|claim|none).
	TenantResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inkhouse_tenant_resolutions_total",
			Help: "Total number of tenant context resolutions",
		},
		[]string{"source"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "inkhouse_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
