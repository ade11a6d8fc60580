package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewPedanticRegistry()
	m := NewMetrics(reg)

	m.JobStarted("EgressCheck")
	m.JobFinished("EgressCheck", "success", 20*time.Millisecond)
	m.QueueJoined(1)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(families) == 0 {
		t.Error("expected at least one metric family")
	}
}

func TestMetrics_Counters(t *testing.T) {
	t.Parallel()

	m := NewMetrics(prometheus.NewRegistry())

	m.JobFinished("EgressCheck", "failure", time.Second)
	m.JobFinished("EgressCheck", "failure", time.Second)
	m.MessageDropped()
	m.QueueJoined(2)
	m.QueueLeft(1)

	if got := testutil.ToFloat64(m.JobsTotal.WithLabelValues("EgressCheck", "failure")); got != 2 {
		t.Errorf("jobs_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.DroppedMessages); got != 1 {
		t.Errorf("dropped = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.JoinedQueues); got != 1 {
		t.Errorf("joined_queues = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.JobRunning.WithLabelValues("EgressCheck")); got != 0 {
		t.Errorf("job_running = %v, want 0", got)
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.JobStarted("x")
	m.JobFinished("x", "success", time.Second)
	m.MessageDropped()
	m.AckFailed()
	m.QueueJoined(1)
	m.QueueLeft(0)
	m.LookupDone("hit")
	m.ShutdownWaited(1)
	m.ReconcileDone(time.Millisecond)
}
