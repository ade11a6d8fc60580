package queue

import (
	"fmt"
	"sync"
	"time"

	"egress-worker/internal/domain"
	"egress-worker/pkg/log"

	"github.com/google/uuid"
	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

// Prefetch is the channel-wide limit of unacknowledged deliveries. It applies
// across every queue the worker consumes, so at most one job runs at a time.
const Prefetch = 1

// RabbitMQBroker implements domain.QueueBroker on a single AMQP channel
type RabbitMQBroker struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	messageTTL time.Duration
	workerID   string
	closeOnce  sync.Once
}

// NewRabbitMQBroker connects to RabbitMQ and configures the shared channel.
// onClose is called once if the broker closes the channel, which stops
// consumption on every joined queue. It is not called after Close.
func NewRabbitMQBroker(url string, messageTTL time.Duration, onClose func(error)) (*RabbitMQBroker, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	// global=true: the limit is shared by all consumers on the channel
	if err := ch.Qos(Prefetch, 0, true); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to set prefetch: %w", err)
	}

	r := &RabbitMQBroker{
		conn:       conn,
		channel:    ch,
		messageTTL: messageTTL,
		workerID:   fmt.Sprintf("%s-%s", log.InstanceID(), uuid.NewString()[:8]),
	}
	go watchClose(ch.NotifyClose(make(chan *amqp.Error, 1)), onClose)

	log.L().Info("Connected to RabbitMQ", zap.String("event", "rabbitmq_connected"),
		zap.String("worker_id", r.workerID), zap.Int("prefetch", Prefetch))
	return r, nil
}

// Subscribe declares the queue and starts consuming it with manual acknowledgment.
// Deliveries are handed to handler on a dedicated goroutine.
func (r *RabbitMQBroker) Subscribe(queue string, handler domain.DeliveryHandler) (domain.Subscription, error) {
	_, err := r.channel.QueueDeclare(
		queue, // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		QueueArgs(r.messageTTL),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}

	tag := ConsumerTag(r.workerID, queue)
	msgs, err := r.channel.Consume(
		queue, // queue
		tag,   // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming %s: %w", queue, err)
	}

	go func() {
		for msg := range msgs {
			handler(toDelivery(queue, msg))
		}
		log.L().Debug("Delivery stream closed", zap.String("event", "consumer_closed"), zap.String("queue", queue))
	}()

	return &subscription{channel: r.channel, tag: tag}, nil
}

// Close closes the RabbitMQ connection
func (r *RabbitMQBroker) Close() error {
	var err error
	r.closeOnce.Do(func() {
		if r.channel != nil {
			if cerr := r.channel.Close(); cerr != nil {
				err = fmt.Errorf("failed to close channel: %w", cerr)
				return
			}
		}
		if r.conn != nil {
			if cerr := r.conn.Close(); cerr != nil {
				err = fmt.Errorf("failed to close connection: %w", cerr)
			}
		}
	})
	return err
}

// watchClose waits for the channel to close. A graceful Close closes the
// notification channel without sending, so onClose only sees broker-side closures.
func watchClose(closed <-chan *amqp.Error, onClose func(error)) {
	amqpErr, ok := <-closed
	if !ok || amqpErr == nil {
		return
	}
	log.L().Error("RabbitMQ channel closed", zap.String("event", "rabbitmq_channel_closed"),
		zap.Int("code", amqpErr.Code), zap.String("reason", amqpErr.Reason))
	if onClose != nil {
		onClose(amqpErr)
	}
}

type subscription struct {
	channel *amqp.Channel
	tag     string
}

func (s *subscription) Cancel() error {
	return s.channel.Cancel(s.tag, false)
}

// QueueArgs returns the declaration arguments for an outgoing queue
func QueueArgs(messageTTL time.Duration) amqp.Table {
	return amqp.Table{"x-message-ttl": int64(messageTTL / time.Millisecond)}
}

// ConsumerTag identifies this worker's consumer on queue
func ConsumerTag(workerID, queue string) string {
	return workerID + "." + queue
}

func toDelivery(queue string, msg amqp.Delivery) domain.Delivery {
	return domain.Delivery{
		Queue: queue,
		Tag:   msg.DeliveryTag,
		Body:  msg.Body,
		Ack: func() error {
			return msg.Ack(false)
		},
	}
}
