// Package tracking forwards job failures to error-tracking sinks.
package tracking

import (
	"context"
	"fmt"

	"egress-worker/internal/domain"
	"egress-worker/internal/infrastructure/database"
	"egress-worker/pkg/log"

	"go.uber.org/zap"
)

// LogReporter writes each report as a structured error log line
type LogReporter struct{}

func (LogReporter) Report(ctx context.Context, err error, rc domain.ReportContext) {
	log.FromContext(ctx).Error("Job error reported", zap.String("event", "job_error_reported"),
		zap.String("job_id", rc.JobID), zap.String("class", rc.ClassName), zap.Error(err))
}

// JobErrorStore persists job failure documents
type JobErrorStore interface {
	SaveJobError(ctx context.Context, doc *database.JobErrorDocument) error
}

// StoreReporter persists each report through a JobErrorStore
type StoreReporter struct {
	store    JobErrorStore
	workerID string
}

// NewStoreReporter creates a reporter writing to store
func NewStoreReporter(store JobErrorStore, workerID string) *StoreReporter {
	return &StoreReporter{store: store, workerID: workerID}
}

func (r *StoreReporter) Report(ctx context.Context, err error, rc domain.ReportContext) {
	doc := &database.JobErrorDocument{
		JobID:     rc.JobID,
		ClassName: rc.ClassName,
		ErrorType: fmt.Sprintf("%T", err),
		Message:   err.Error(),
		WorkerID:  r.workerID,
	}
	if saveErr := r.store.SaveJobError(ctx, doc); saveErr != nil {
		log.FromContext(ctx).Error("Failed to store job error", zap.String("event", "job_error_store_failed"),
			zap.String("job_id", rc.JobID), zap.Error(saveErr))
	}
}

// MultiReporter fans a report out to every sink in order
type MultiReporter []domain.ErrorReporter

func (m MultiReporter) Report(ctx context.Context, err error, rc domain.ReportContext) {
	for _, r := range m {
		r.Report(ctx, err, rc)
	}
}
