package autopilot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var sessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "autopilot_sessions_active",
	Help: "The number of currently active autopilot sessions",
})

var sessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
	Name: "autopilot_sessions_started_total",
	Help: "The total number of autopilot sessions started",
})

var sessionsStopped = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "autopilot_sessions_stopped_total",
	Help: "The total number of autopilot sessions stopped",
}, []string{"reason"})

var actionsEnqueued = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "autopilot_actions_enqueued_total",
	Help: "The total number of actions enqueued",
}, []string{"type"})

var actionsExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "autopilot_actions_executed_total",
	Help: "The total number of action executions attempted",
}, []string{"type", "outcome"})

var actionsTerminal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "autopilot_actions_terminal_total",
	Help: "The total number of actions abandoned after exhausting retries",
}, []string{"type"})

var ticksSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "autopilot_ticks_skipped_total",
	Help: "The total number of scheduler ticks that dispatched nothing",
}, []string{"cause"})

var dispatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "autopilot_dispatch_duration_seconds",
	Help:    "Time spent executing a single action against the platform",
	Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
})
