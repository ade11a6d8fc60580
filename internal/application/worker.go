package application

import (
	"context"
	"time"

	"egress-worker/internal/domain"
	"egress-worker/pkg/log"

	"go.uber.org/zap"
)

// Reconciler brings queue membership in line with the local address set
type Reconciler interface {
	Reconcile(ctx context.Context, localIPs []string)
}

// WorkerLoop drives membership reconciliation and shutdown evaluation on a fixed tick.
type WorkerLoop struct {
	lister       domain.AddressLister
	reconciler   Reconciler
	coordinator  *ShutdownCoordinator
	state        *domain.WorkerState
	tickInterval time.Duration
}

// NewWorkerLoop creates a new worker loop
func NewWorkerLoop(lister domain.AddressLister, reconciler Reconciler, coordinator *ShutdownCoordinator, state *domain.WorkerState, settings *domain.WorkerSettings) *WorkerLoop {
	return &WorkerLoop{
		lister:       lister,
		reconciler:   reconciler,
		coordinator:  coordinator,
		state:        state,
		tickInterval: settings.TickInterval,
	}
}

// Run ticks until ctx is cancelled.
func (w *WorkerLoop) Run(ctx context.Context) error {
	log.L().Info("Worker loop started", zap.String("event", "worker_started"), zap.Duration("tick", w.tickInterval))

	ticker := time.NewTicker(w.tickInterval)
	defer ticker.Stop()

	for {
		w.Tick(ctx)

		select {
		case <-ctx.Done():
			log.L().Info("Worker loop stopped", zap.String("event", "worker_stopped"))
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Tick performs one iteration. Once an exit is requested, membership is frozen
// and only the shutdown state is evaluated.
func (w *WorkerLoop) Tick(ctx context.Context) {
	if w.state.ExitRequested() {
		w.coordinator.Evaluate(ctx)
		return
	}

	ips, err := w.lister.LocalAddresses(ctx)
	if err != nil {
		log.L().Error("Failed to list local addresses", zap.String("event", "address_list_failed"), zap.Error(err))
		return
	}
	w.reconciler.Reconcile(ctx, ips)
}
