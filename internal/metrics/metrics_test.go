package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(Checks.WithLabelValues(ResultSuccess))
	Checks.WithLabelValues(ResultSuccess).Inc()
	if got := testutil.ToFloat64(Checks.WithLabelValues(ResultSuccess)); got != before+1 {
		t.Fatalf("checks_total{result=success} = %v, want %v", got, before+1)
	}

	QueueDepth.Set(3)
	if got := testutil.ToFloat64(QueueDepth); got != 3 {
		t.Fatalf("queue_depth = %v, want 3", got)
	}
	QueueDepth.Set(0)
}

func TestCollectorsRegistered(t *testing.T) {
	FetchAttempts.Add(0)
	FetchFailures.WithLabelValues(ClassTimeout).Add(0)
	SandboxRuns.WithLabelValues(ResultFailure).Add(0)
	Checks.WithLabelValues(ResultSkipped).Add(0)

	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	seen := map[string]bool{}
	for _, f := range families {
		if strings.HasPrefix(f.GetName(), "pagewatch_") {
			seen[f.GetName()] = true
		}
	}
	for _, name := range []string{
		"pagewatch_fetch_attempts_total",
		"pagewatch_fetch_failures_total",
		"pagewatch_sandbox_runs_total",
		"pagewatch_checks_total",
		"pagewatch_queue_depth",
		"pagewatch_alarms_scheduled",
		"pagewatch_alarms_fired_total",
		"pagewatch_changed_tasks",
	} {
		if !seen[name] {
			t.Errorf("%s not registered", name)
		}
	}
}
