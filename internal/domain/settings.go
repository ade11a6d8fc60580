package domain

import "time"

// WorkerSettings holds the timing parameters of the worker loop
type WorkerSettings struct {
	TickInterval         time.Duration
	ShutdownWaitInterval time.Duration
	ShutdownMaxWaits     int
	MessageTTL           time.Duration
}

// NewDefaultWorkerSettings returns the production defaults: a one second tick,
// and up to 60 shutdown waits of 60 seconds each.
func NewDefaultWorkerSettings() *WorkerSettings {
	return &WorkerSettings{
		TickInterval:         time.Second,
		ShutdownWaitInterval: 60 * time.Second,
		ShutdownMaxWaits:     60,
		MessageTTL:           60 * time.Second,
	}
}
