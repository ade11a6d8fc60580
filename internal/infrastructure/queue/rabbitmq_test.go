package queue

import (
	"errors"
	"os"
	"testing"
	"time"

	"egress-worker/pkg/log"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	log.SetLogger(zap.NewNop())
	os.Exit(m.Run())
}

type fakeAcknowledger struct {
	acked    []uint64
	multiple []bool
	nacks    int
}

func (f *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	f.acked = append(f.acked, tag)
	f.multiple = append(f.multiple, multiple)
	return nil
}

func (f *fakeAcknowledger) Nack(uint64, bool, bool) error {
	f.nacks++
	return nil
}

func (f *fakeAcknowledger) Reject(uint64, bool) error {
	f.nacks++
	return nil
}

func TestToDelivery_AcksSingleTag(t *testing.T) {
	ack := &fakeAcknowledger{}
	msg := amqp.Delivery{Acknowledger: ack, DeliveryTag: 42, Body: []byte(`{"class_name":"X"}`)}

	d := toDelivery("outgoing-7", msg)
	if d.Queue != "outgoing-7" || d.Tag != 42 || string(d.Body) != `{"class_name":"X"}` {
		t.Fatalf("delivery = %+v", d)
	}
	if err := d.Ack(); err != nil {
		t.Fatal(err)
	}
	if len(ack.acked) != 1 || ack.acked[0] != 42 || ack.multiple[0] {
		t.Errorf("acked = %v multiple = %v, want [42] [false]", ack.acked, ack.multiple)
	}
	if ack.nacks != 0 {
		t.Errorf("nacks = %d, want 0", ack.nacks)
	}
}

func TestQueueArgs(t *testing.T) {
	args := QueueArgs(60 * time.Second)
	if got := args["x-message-ttl"]; got != int64(60000) {
		t.Errorf("x-message-ttl = %v (%T), want 60000", got, got)
	}
	if err := args.Validate(); err != nil {
		t.Errorf("args do not validate: %v", err)
	}
}

func TestConsumerTag(t *testing.T) {
	if got := ConsumerTag("host-1a2b3c4d", "outgoing-7"); got != "host-1a2b3c4d.outgoing-7" {
		t.Errorf("ConsumerTag = %q", got)
	}
}

func TestWatchClose_BrokerClosure(t *testing.T) {
	closed := make(chan *amqp.Error, 1)
	got := make(chan error, 1)

	go watchClose(closed, func(err error) { got <- err })
	closed <- &amqp.Error{Code: amqp.PreconditionFailed, Reason: "PRECONDITION_FAILED - inequivalent arg 'x-message-ttl'"}

	select {
	case err := <-got:
		var amqpErr *amqp.Error
		if !errors.As(err, &amqpErr) || amqpErr.Code != amqp.PreconditionFailed {
			t.Errorf("onClose got %v, want precondition failed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("onClose not called")
	}
}

func TestWatchClose_GracefulClose(t *testing.T) {
	closed := make(chan *amqp.Error, 1)
	called := false

	close(closed)
	watchClose(closed, func(error) { called = true })

	if called {
		t.Error("onClose called after graceful close")
	}
}
