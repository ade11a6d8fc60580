package application

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"egress-worker/internal/domain"
	"egress-worker/internal/infrastructure/metrics"
	"egress-worker/pkg/log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// UnknownClassLabel replaces unregistered class names in metric labels so
// that arbitrary class names from the wire cannot grow the series set.
const UnknownClassLabel = "unknown"

// Dispatcher executes a decoded job envelope
type Dispatcher interface {
	Dispatch(ctx context.Context, env *domain.JobEnvelope)
}

// JobPanicError wraps a value recovered from a panicking job
type JobPanicError struct {
	Value any
	Stack []byte
}

func (e *JobPanicError) Error() string {
	return fmt.Sprintf("job panicked: %v", e.Value)
}

// JobDispatcher resolves envelopes against the job registry and runs them.
// Failures are reported and swallowed so the delivery is always acknowledged.
type JobDispatcher struct {
	registry *domain.JobRegistry
	reporter domain.ErrorReporter
	label    *domain.StatusLabel
	metrics  *metrics.Metrics
	tracer   trace.Tracer
}

// NewJobDispatcher creates a new job dispatcher
func NewJobDispatcher(registry *domain.JobRegistry, reporter domain.ErrorReporter, label *domain.StatusLabel, m *metrics.Metrics) *JobDispatcher {
	return &JobDispatcher{
		registry: registry,
		reporter: reporter,
		label:    label,
		metrics:  m,
		tracer:   otel.Tracer("egress-worker/dispatcher"),
	}
}

// Dispatch runs the job described by env. It never returns an error and never panics.
func (d *JobDispatcher) Dispatch(ctx context.Context, env *domain.JobEnvelope) {
	ctx = log.WithJobID(ctx, env.ID)
	ctx, span := d.tracer.Start(ctx, "job.dispatch", trace.WithAttributes(
		attribute.String("job.id", env.ID),
		attribute.String("job.class", env.ClassName),
	))
	release := d.label.Acquire("running " + env.ClassName)
	logger := log.FromContext(ctx)
	start := time.Now()
	outcome := "success"

	metricClass := env.ClassName
	if !d.registry.Has(env.ClassName) {
		metricClass = UnknownClassLabel
	}

	defer func() {
		elapsed := time.Since(start)
		d.metrics.JobFinished(metricClass, outcome, elapsed)
		release()
		span.End()
		logger.Info("Job finished", zap.String("event", "job_finished"),
			zap.String("class", env.ClassName), zap.String("outcome", outcome), zap.Duration("duration", elapsed))
	}()

	d.metrics.JobStarted(metricClass)
	logger.Info("Job started", zap.String("event", "job_started"), zap.String("class", env.ClassName))

	err := d.execute(ctx, env)
	if err == nil {
		return
	}

	outcome = "failure"
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	d.reporter.Report(ctx, err, domain.ReportContext{JobID: env.ID, ClassName: env.ClassName})

	fields := []zap.Field{
		zap.String("event", "job_failed"),
		zap.String("class", env.ClassName),
		zap.String("error_type", fmt.Sprintf("%T", err)),
		zap.Error(err),
	}
	if pe, ok := err.(*JobPanicError); ok {
		fields = append(fields, zap.ByteString("stacktrace", pe.Stack))
	} else {
		fields = append(fields, zap.Stack("stacktrace"))
	}
	logger.Error("Job failed", fields...)
}

func (d *JobDispatcher) execute(ctx context.Context, env *domain.JobEnvelope) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &JobPanicError{Value: r, Stack: debug.Stack()}
		}
	}()

	job, err := d.registry.Build(env.ClassName, env.ID, env.Params)
	if err != nil {
		return err
	}
	return job.Execute(ctx)
}
