package domain

import (
	"sync"
	"sync/atomic"
)

// WorkerState is shared between the tick loop and the broker delivery goroutines.
type WorkerState struct {
	runningJob    atomic.Bool
	exitRequested atomic.Bool
	exitWaitTicks atomic.Int32
}

// NewWorkerState creates an idle worker state
func NewWorkerState() *WorkerState {
	return &WorkerState{}
}

// RunningJob reports whether a job is currently executing.
func (s *WorkerState) RunningJob() bool {
	return s.runningJob.Load()
}

func (s *WorkerState) SetRunningJob(v bool) {
	s.runningJob.Store(v)
}

// ExitRequested reports whether a termination signal has been received.
func (s *WorkerState) ExitRequested() bool {
	return s.exitRequested.Load()
}

// ExitWaitTicks returns how many shutdown-wait intervals have elapsed.
func (s *WorkerState) ExitWaitTicks() int {
	return int(s.exitWaitTicks.Load())
}

// IncrementExitWait records one more shutdown-wait interval and returns the new count.
func (s *WorkerState) IncrementExitWait() int {
	return int(s.exitWaitTicks.Add(1))
}

// RequestExit is safe to call from a signal goroutine: it performs a single atomic store.
func (s *WorkerState) RequestExit() {
	s.exitRequested.Store(true)
}

// IdleLabel is the status label shown while no job runs.
const IdleLabel = "idle"

// StatusLabel is the process-visible description of what the worker is doing.
type StatusLabel struct {
	mu    sync.RWMutex
	value string
	prev  []string
}

// NewStatusLabel creates a label in the idle state
func NewStatusLabel() *StatusLabel {
	return &StatusLabel{value: IdleLabel}
}

// Acquire sets the label and returns the function restoring the previous one.
func (l *StatusLabel) Acquire(value string) (release func()) {
	l.mu.Lock()
	l.prev = append(l.prev, l.value)
	l.value = value
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			n := len(l.prev)
			if n == 0 {
				l.value = IdleLabel
				return
			}
			l.value = l.prev[n-1]
			l.prev = l.prev[:n-1]
		})
	}
}

func (l *StatusLabel) String() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.value
}
