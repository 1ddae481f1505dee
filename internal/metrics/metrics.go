// Package metrics holds the Prometheus collectors of the insights engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RecomputeTotal counts prediction recomputes by result (ok, error).
	RecomputeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "insights_recompute_total",
		Help: "Prediction recomputes by result",
	}, []string{"result"})

	RecomputeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "insights_recompute_duration_seconds",
		Help:    "Duration of a single product recompute",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
	})

	// CacheLookups counts insight view lookups by view and outcome (hit, miss, stale).
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "insights_cache_lookups_total",
		Help: "Insight cache lookups by view and outcome",
	}, []string{"view", "outcome"})

	NotificationsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "insights_notifications_created_total",
		Help: "Notifications created by type",
	}, []string{"type"})

	NotificationsSuppressed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "insights_notifications_suppressed_total",
		Help: "Notifications suppressed by the 24h dedup window, by type",
	}, []string{"type"})

	// BroadcastDropped counts events that never reached a client (queue full, write error).
	BroadcastDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "insights_broadcast_dropped_total",
		Help: "Realtime events dropped by reason",
	}, []string{"reason"})

	WSClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "insights_ws_clients",
		Help: "Connected websocket clients",
	})

	// SchedulerRuns counts refresh ticks by outcome (ran, skipped_busy, skipped_locked, failed).
	SchedulerRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "insights_scheduler_runs_total",
		Help: "Scheduled refresh ticks by outcome",
	}, []string{"outcome"})
)
