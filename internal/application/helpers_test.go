package application

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"egress-worker/internal/domain"
	"egress-worker/pkg/log"

	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	log.SetLogger(zap.NewNop())
	os.Exit(m.Run())
}

type fakeSubscription struct {
	mu      sync.Mutex
	cancels int
}

func (s *fakeSubscription) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancels++
	return nil
}

type fakeBroker struct {
	mu            sync.Mutex
	subscribes    map[string]int
	handlers      map[string]domain.DeliveryHandler
	subs          map[string]*fakeSubscription
	failSubscribe map[string]bool
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{
		subscribes:    make(map[string]int),
		handlers:      make(map[string]domain.DeliveryHandler),
		subs:          make(map[string]*fakeSubscription),
		failSubscribe: make(map[string]bool),
	}
}

func (b *fakeBroker) Subscribe(queue string, handler domain.DeliveryHandler) (domain.Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failSubscribe[queue] {
		return nil, errors.New("channel closed")
	}
	b.subscribes[queue]++
	b.handlers[queue] = handler
	sub := &fakeSubscription{}
	b.subs[queue] = sub
	return sub, nil
}

func (b *fakeBroker) Close() error { return nil }

func (b *fakeBroker) subscribeCount(queue string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.subscribes[queue]
}

func (b *fakeBroker) cancelCount(queue string) int {
	b.mu.Lock()
	sub := b.subs[queue]
	b.mu.Unlock()
	if sub == nil {
		return 0
	}
	sub.mu.Lock()
	defer sub.mu.Unlock()
	return sub.cancels
}

func (b *fakeBroker) totalSubscribes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.subscribes {
		n += c
	}
	return n
}

// ackCounter builds deliveries and counts their acknowledgments.
type ackCounter struct {
	mu   sync.Mutex
	acks map[uint64]int

	// called inside Ack before counting
	onAck func()
}

func newAckCounter() *ackCounter {
	return &ackCounter{acks: make(map[uint64]int)}
}

func (a *ackCounter) delivery(tag uint64, body string) domain.Delivery {
	return domain.Delivery{
		Queue: "outgoing-7",
		Tag:   tag,
		Body:  []byte(body),
		Ack: func() error {
			if a.onAck != nil {
				a.onAck()
			}
			a.mu.Lock()
			defer a.mu.Unlock()
			a.acks[tag]++
			return nil
		},
	}
}

func (a *ackCounter) count(tag uint64) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.acks[tag]
}

type fakeResolver struct {
	mu      sync.Mutex
	records map[string]*domain.AddressRecord
	errs    map[string]error
	lookups map[string]int
}

func newFakeResolver(records ...*domain.AddressRecord) *fakeResolver {
	r := &fakeResolver{
		records: make(map[string]*domain.AddressRecord),
		errs:    make(map[string]error),
		lookups: make(map[string]int),
	}
	for _, rec := range records {
		r.set(rec)
	}
	return r
}

func (r *fakeResolver) set(rec *domain.AddressRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec.IPv4 != "" {
		r.records[rec.IPv4] = rec
	}
	if rec.IPv6 != "" {
		r.records[rec.IPv6] = rec
	}
}

func (r *fakeResolver) Lookup(_ context.Context, ip string) (*domain.AddressRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookups[ip]++
	if err := r.errs[ip]; err != nil {
		return nil, err
	}
	return r.records[ip], nil
}

func (r *fakeResolver) lookupCount(ip string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lookups[ip]
}

type fakeReporter struct {
	mu      sync.Mutex
	reports []domain.ReportContext
	errs    []error
}

func (r *fakeReporter) Report(_ context.Context, err error, rc domain.ReportContext) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, rc)
	r.errs = append(r.errs, err)
}

func (r *fakeReporter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reports)
}

type exitRecorder struct {
	mu    sync.Mutex
	codes []int
}

func (e *exitRecorder) terminate(code int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.codes = append(e.codes, code)
}

func (e *exitRecorder) calls() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]int(nil), e.codes...)
}

type recordingDispatcher struct {
	mu   sync.Mutex
	envs []*domain.JobEnvelope
}

func (d *recordingDispatcher) Dispatch(_ context.Context, env *domain.JobEnvelope) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.envs = append(d.envs, env)
}

func (d *recordingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.envs)
}

type staticLister struct {
	mu  sync.Mutex
	ips []string
	err error
}

func (l *staticLister) LocalAddresses(context.Context) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.ips...), l.err
}
