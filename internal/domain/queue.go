package domain

// QueuePrefix is prepended to an egress identifier to form its queue name
const QueuePrefix = "outgoing-"

// QueueName returns the queue that carries jobs for the egress identifier
func QueueName(id string) string {
	return QueuePrefix + id
}

// Delivery is one message handed to the worker by the broker
type Delivery struct {
	Queue string
	Tag   uint64
	Body  []byte
	Ack   func() error
}

// DeliveryHandler receives messages on the broker's delivery goroutine
type DeliveryHandler func(Delivery)

// Subscription is an active consumer on one queue
type Subscription interface {
	Cancel() error
}

// QueueBroker subscribes handlers to named queues.
// Implementations must cap unacknowledged deliveries at one per process.
type QueueBroker interface {
	Subscribe(queue string, handler DeliveryHandler) (Subscription, error)
	Close() error
}
