package application

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"egress-worker/internal/domain"
	"egress-worker/internal/infrastructure/metrics"
	"egress-worker/pkg/log"

	"go.uber.org/zap"
)

// ShutdownCoordinator decides when the process exits after a termination signal.
//
// An idle worker exits on the first tick after the signal. A busy worker waits
// in fixed intervals for the job to finish; the consumer exits as soon as the
// job is acknowledged. After maxWaits intervals the process exits regardless,
// leaving the in-flight delivery unacknowledged for the broker to redeliver.
type ShutdownCoordinator struct {
	state        *domain.WorkerState
	terminate    Terminator
	waitInterval time.Duration
	maxWaits     int
	metrics      *metrics.Metrics

	// tick loop only
	announced bool
}

// NewShutdownCoordinator creates a new shutdown coordinator
func NewShutdownCoordinator(state *domain.WorkerState, terminate Terminator, settings *domain.WorkerSettings, m *metrics.Metrics) *ShutdownCoordinator {
	return &ShutdownCoordinator{
		state:        state,
		terminate:    terminate,
		waitInterval: settings.ShutdownWaitInterval,
		maxWaits:     settings.ShutdownMaxWaits,
		metrics:      m,
	}
}

// RequestExit records a termination request. It does nothing else.
func (c *ShutdownCoordinator) RequestExit() {
	c.state.RequestExit()
}

// WatchSignals turns SIGINT and SIGTERM into exit requests until ctx is done.
func (c *ShutdownCoordinator) WatchSignals(ctx context.Context) {
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigs)
		for {
			select {
			case <-ctx.Done():
				return
			case <-sigs:
				c.RequestExit()
			}
		}
	}()
}

// Evaluate runs once per tick. It may block for one wait interval.
func (c *ShutdownCoordinator) Evaluate(ctx context.Context) {
	if !c.state.ExitRequested() {
		return
	}

	if !c.state.RunningJob() {
		log.L().Info("Exit requested, no job running", zap.String("event", "shutdown_idle"))
		c.terminate(0)
		return
	}

	if !c.announced {
		c.announced = true
		log.L().Info("Exit requested, waiting for running job", zap.String("event", "shutdown_waiting"),
			zap.Duration("interval", c.waitInterval), zap.Int("max_waits", c.maxWaits))
	}

	select {
	case <-ctx.Done():
		return
	case <-time.After(c.waitInterval):
	}

	waited := c.state.IncrementExitWait()
	c.metrics.ShutdownWaited(waited)

	if waited >= c.maxWaits && c.state.RunningJob() {
		log.L().Warn("Job still running after shutdown wait, forcing exit", zap.String("event", "shutdown_forced"),
			zap.Int("waits", waited))
		c.terminate(0)
	}
}
