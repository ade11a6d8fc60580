package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// Job is a single unit of work constructed from an envelope
type Job interface {
	Execute(ctx context.Context) error
}

// JobFactory builds a job instance from the envelope id and params
type JobFactory func(id string, params json.RawMessage) (Job, error)

// JobRegistry maps class names to job factories. It is populated at process
// start and read from the delivery goroutine.
type JobRegistry struct {
	mu        sync.RWMutex
	factories map[string]JobFactory
}

// NewJobRegistry creates an empty registry
func NewJobRegistry() *JobRegistry {
	return &JobRegistry{factories: make(map[string]JobFactory)}
}

// Register adds a factory under className, replacing any previous one.
func (r *JobRegistry) Register(className string, factory JobFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[className] = factory
}

// Has reports whether a factory is registered under className.
func (r *JobRegistry) Has(className string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[className]
	return ok
}

// Build resolves className and constructs the job.
func (r *JobRegistry) Build(className, id string, params json.RawMessage) (Job, error) {
	r.mu.RLock()
	factory, ok := r.factories[className]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJobClass, className)
	}
	job, err := factory(id, params)
	if err != nil {
		return nil, fmt.Errorf("failed to build job %s: %w", className, err)
	}
	return job, nil
}

// Classes returns the registered class names in sorted order
func (r *JobRegistry) Classes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// JobFunc adapts a plain function to the Job interface
type JobFunc func(ctx context.Context) error

func (f JobFunc) Execute(ctx context.Context) error {
	return f(ctx)
}
