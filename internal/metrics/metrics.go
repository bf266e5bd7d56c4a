// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FetchAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pagewatch",
		Name:      "fetch_attempts_total",
		Help:      "HTTP attempts made by the fetcher, retries included.",
	})
	FetchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pagewatch",
		Name:      "fetch_failures_total",
		Help:      "Failed fetch attempts by class (status, network, timeout).",
	}, []string{"class"})

	SandboxRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pagewatch",
		Name:      "sandbox_runs_total",
		Help:      "Handler executions by outcome.",
	}, []string{"result"})

	Checks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pagewatch",
		Name:      "checks_total",
		Help:      "Task checks by outcome.",
	}, []string{"result"})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "pagewatch",
		Name:      "queue_depth",
		Help:      "Jobs waiting in the task queue.",
	})

	AlarmsScheduled = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "pagewatch",
		Name:      "alarms_scheduled",
		Help:      "Periodic alarms currently registered.",
	})
	AlarmsFired = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pagewatch",
		Name:      "alarms_fired_total",
		Help:      "Alarm fires delivered to the queue.",
	})

	ChangedTasks = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "pagewatch",
		Name:      "changed_tasks",
		Help:      "Tasks with unread changes (the badge count).",
	})
)

// Outcome labels shared by the counter vectors.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultSkipped = "skipped"

	ClassStatus  = "status"
	ClassNetwork = "network"
	ClassTimeout = "timeout"
)
