package domain

import "testing"

func TestStatusLabel_AcquireRelease(t *testing.T) {
	t.Parallel()
	l := NewStatusLabel()
	if l.String() != IdleLabel {
		t.Fatalf("initial label = %q", l.String())
	}

	release := l.Acquire("running EgressCheck")
	if l.String() != "running EgressCheck" {
		t.Errorf("label = %q", l.String())
	}
	release()
	release()
	if l.String() != IdleLabel {
		t.Errorf("label after release = %q, want %q", l.String(), IdleLabel)
	}
}

func TestWorkerState(t *testing.T) {
	t.Parallel()
	s := NewWorkerState()
	if s.RunningJob() || s.ExitRequested() || s.ExitWaitTicks() != 0 {
		t.Fatal("new state should be idle")
	}
	s.RequestExit()
	s.SetRunningJob(true)
	if !s.ExitRequested() || !s.RunningJob() {
		t.Error("flags not set")
	}
	if n := s.IncrementExitWait(); n != 1 {
		t.Errorf("IncrementExitWait() = %d, want 1", n)
	}
}

func TestAddressRecord_PairOf(t *testing.T) {
	t.Parallel()
	dual := &AddressRecord{ID: "9", IPv4: "10.0.0.9", IPv6: "fd00::9"}
	if p, ok := dual.PairOf("10.0.0.9"); !ok || p != "fd00::9" {
		t.Errorf("PairOf(v4) = %q, %v", p, ok)
	}
	if p, ok := dual.PairOf("fd00::9"); !ok || p != "10.0.0.9" {
		t.Errorf("PairOf(v6) = %q, %v", p, ok)
	}
	if _, ok := dual.PairOf("10.0.0.1"); ok {
		t.Error("unrelated ip should not pair")
	}

	single := &AddressRecord{ID: "7", IPv4: "10.0.0.5"}
	if single.Paired() {
		t.Error("single-stack record should not be paired")
	}
	if _, ok := single.PairOf("10.0.0.5"); ok {
		t.Error("single-stack record has no pair")
	}
}

func TestQueueName(t *testing.T) {
	t.Parallel()
	if got := QueueName("7"); got != "outgoing-7" {
		t.Errorf("QueueName = %q", got)
	}
}
