package domain

import "context"

// ReportContext identifies the job an error belongs to
type ReportContext struct {
	JobID     string
	ClassName string
}

// ErrorReporter forwards job failures to an error-tracking sink
type ErrorReporter interface {
	Report(ctx context.Context, err error, rc ReportContext)
}
