package log

import (
	"context"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logger     *zap.Logger
	mu         sync.RWMutex
	once       sync.Once
	instanceID string
)

type ctxKey struct{}

// InitLogger builds the process logger. Subsequent calls are no-ops.
func InitLogger(service string) {
	once.Do(func() {
		cfg := zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.MessageKey = "msg"
		cfg.EncoderConfig.LevelKey = "level"
		cfg.EncoderConfig.CallerKey = "caller"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.OutputPaths = []string{"stdout"}
		cfg.ErrorOutputPaths = []string{"stderr"}

		l, err := cfg.Build()
		if err != nil {
			panic(err)
		}
		SetLogger(l.With(zap.String("service", service), zap.String("instance_id", InstanceID())))
	})
}

// SetLogger replaces the process logger. Tests install zap.NewNop() here.
func SetLogger(l *zap.Logger) {
	mu.Lock()
	logger = l
	mu.Unlock()
}

// InstanceID returns the hostname used to tag log lines and consumer tags.
func InstanceID() string {
	mu.RLock()
	id := instanceID
	mu.RUnlock()
	if id != "" {
		return id
	}
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	mu.Lock()
	instanceID = hostname
	mu.Unlock()
	return hostname
}

func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if logger == nil {
		panic("logger not initialized")
	}
	return logger
}

// WithJobID returns a context whose logger carries the job correlation id.
func WithJobID(ctx context.Context, jobID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, L().With(zap.String("job_id", jobID)))
}

// FromContext returns the job-scoped logger stored in ctx, or the process logger.
func FromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok {
		return l
	}
	return L()
}
