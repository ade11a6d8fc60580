package application

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"egress-worker/internal/domain"
	"egress-worker/internal/infrastructure/metrics"
	"egress-worker/pkg/log"

	"go.uber.org/zap"
)

// Terminator ends the process with the given status code. Production code
// passes a function that flushes logs, closes the broker and calls os.Exit.
type Terminator func(code int)

// JobConsumer owns the queue subscriptions and handles deliveries.
type JobConsumer struct {
	broker     domain.QueueBroker
	dispatcher Dispatcher
	state      *domain.WorkerState
	terminate  Terminator
	metrics    *metrics.Metrics

	mu            sync.Mutex
	subscriptions map[string]domain.Subscription

	// held for the whole of Receive; at most one job runs per process
	jobMu sync.Mutex
}

// NewJobConsumer creates a new job consumer
func NewJobConsumer(broker domain.QueueBroker, dispatcher Dispatcher, state *domain.WorkerState, terminate Terminator, m *metrics.Metrics) *JobConsumer {
	return &JobConsumer{
		broker:        broker,
		dispatcher:    dispatcher,
		state:         state,
		terminate:     terminate,
		metrics:       m,
		subscriptions: make(map[string]domain.Subscription),
	}
}

// Join subscribes to the named queue. Joining an already joined queue is a no-op.
func (c *JobConsumer) Join(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.subscriptions[name]; ok {
		log.L().Info("Queue already joined", zap.String("event", "queue_join_skipped"), zap.String("queue", name))
		return nil
	}

	sub, err := c.broker.Subscribe(name, c.Receive)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", name, err)
	}
	c.subscriptions[name] = sub
	c.metrics.QueueJoined(len(c.subscriptions))

	log.L().Info("Joined queue", zap.String("event", "queue_joined"), zap.String("queue", name))
	return nil
}

// Leave cancels the subscription to the named queue. Leaving a queue that was
// never joined is a no-op. The bookkeeping entry is removed even if the cancel fails.
func (c *JobConsumer) Leave(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sub, ok := c.subscriptions[name]
	if !ok {
		log.L().Info("Queue not joined", zap.String("event", "queue_leave_skipped"), zap.String("queue", name))
		return nil
	}

	delete(c.subscriptions, name)
	c.metrics.QueueLeft(len(c.subscriptions))

	if err := sub.Cancel(); err != nil {
		return fmt.Errorf("failed to cancel subscription to %s: %w", name, err)
	}

	log.L().Info("Left queue", zap.String("event", "queue_left"), zap.String("queue", name))
	return nil
}

// Joined returns the names of the subscribed queues in sorted order
func (c *JobConsumer) Joined() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make([]string, 0, len(c.subscriptions))
	for name := range c.subscriptions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Receive handles one delivery: decode, dispatch, acknowledge exactly once.
// If an exit was requested while the job ran, the process terminates here.
func (c *JobConsumer) Receive(d domain.Delivery) {
	c.jobMu.Lock()
	defer c.jobMu.Unlock()

	c.state.SetRunningJob(true)

	env, err := domain.DecodeEnvelope(d.Body)
	if err != nil {
		c.metrics.MessageDropped()
		log.L().Debug("Dropping message", zap.String("event", "message_dropped"),
			zap.String("queue", d.Queue), zap.Uint64("delivery_tag", d.Tag))
	} else {
		c.dispatcher.Dispatch(context.Background(), env)
	}

	if err := d.Ack(); err != nil {
		c.metrics.AckFailed()
		log.L().Error("Failed to acknowledge message", zap.String("event", "ack_failed"),
			zap.String("queue", d.Queue), zap.Uint64("delivery_tag", d.Tag), zap.Error(err))
	}

	c.state.SetRunningJob(false)

	if c.state.ExitRequested() {
		log.L().Info("Job done, exiting", zap.String("event", "exit_after_job"))
		c.terminate(0)
	}
}
