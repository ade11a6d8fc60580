package application

import (
	"context"
	"sort"
	"time"

	"egress-worker/internal/domain"
	"egress-worker/internal/infrastructure/metrics"
	"egress-worker/pkg/log"

	"go.uber.org/zap"
)

// QueueMembership joins and leaves named queues
type QueueMembership interface {
	Join(name string) error
	Leave(name string) error
}

// addressCache remembers what the registry said about each local IP.
type addressCache struct {
	resolved   map[string]string   // ip -> egress id
	unassigned map[string]struct{} // ips with no egress id
	pairs      map[string]string   // ip -> opposite-family ip, dual-stack ids only
}

func newAddressCache() *addressCache {
	return &addressCache{
		resolved:   make(map[string]string),
		unassigned: make(map[string]struct{}),
		pairs:      make(map[string]string),
	}
}

func (c *addressCache) store(ip string, rec *domain.AddressRecord) {
	c.resolved[ip] = rec.ID
	if pair, ok := rec.PairOf(ip); ok {
		c.pairs[ip] = pair
	}
}

// purge drops every entry that resolved to id.
func (c *addressCache) purge(id string) {
	for ip, rid := range c.resolved {
		if rid == id {
			delete(c.resolved, ip)
			delete(c.pairs, ip)
		}
	}
}

// MembershipManager keeps the set of joined outgoing queues in line with the
// egress addresses bound to this host. It is driven by the tick loop only.
type MembershipManager struct {
	resolver domain.AddressResolver
	queues   QueueMembership
	metrics  *metrics.Metrics

	cache  *addressCache
	joined map[string]struct{}
	// ids already logged as waiting for their pair address
	unpaired map[string]struct{}
}

// NewMembershipManager creates a new membership manager
func NewMembershipManager(resolver domain.AddressResolver, queues QueueMembership, m *metrics.Metrics) *MembershipManager {
	return &MembershipManager{
		resolver: resolver,
		queues:   queues,
		metrics:  m,
		cache:    newAddressCache(),
		joined:   make(map[string]struct{}),
		unpaired: make(map[string]struct{}),
	}
}

// Reconcile joins the queues of every claimable egress id bound to localIPs
// and leaves the queues of ids no longer bound. Leaves happen before joins.
func (m *MembershipManager) Reconcile(ctx context.Context, localIPs []string) {
	start := time.Now()
	defer func() { m.metrics.ReconcileDone(time.Since(start)) }()

	local := make(map[string]struct{}, len(localIPs))
	for _, ip := range localIPs {
		local[ip] = struct{}{}
	}

	needed := m.neededIDs(ctx, local)

	var toLeave, toJoin []string
	for id := range m.joined {
		if _, ok := needed[id]; !ok {
			toLeave = append(toLeave, id)
		}
	}
	for id := range needed {
		if _, ok := m.joined[id]; !ok {
			toJoin = append(toJoin, id)
		}
	}
	sort.Strings(toLeave)
	sort.Strings(toJoin)

	for _, id := range toLeave {
		if err := m.queues.Leave(domain.QueueName(id)); err != nil {
			log.L().Error("Failed to leave queue", zap.String("event", "queue_leave_failed"),
				zap.String("egress_id", id), zap.Error(err))
		}
		delete(m.joined, id)
		// the mapping behind id may have changed; force a fresh lookup next time
		m.cache.purge(id)
	}

	for _, id := range toJoin {
		if err := m.queues.Join(domain.QueueName(id)); err != nil {
			log.L().Error("Failed to join queue", zap.String("event", "queue_join_failed"),
				zap.String("egress_id", id), zap.Error(err))
			continue
		}
		m.joined[id] = struct{}{}
	}
}

// Joined returns the egress ids whose queues are joined, sorted
func (m *MembershipManager) Joined() []string {
	ids := make([]string, 0, len(m.joined))
	for id := range m.joined {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (m *MembershipManager) neededIDs(ctx context.Context, local map[string]struct{}) map[string]struct{} {
	candidates := make(map[string]struct{})
	blocked := make(map[string]struct{})

	for ip := range local {
		id, ok := m.resolve(ctx, ip)
		if !ok {
			continue
		}
		candidates[id] = struct{}{}

		if pair, paired := m.cache.pairs[ip]; paired {
			if _, present := local[pair]; !present {
				blocked[id] = struct{}{}
				if _, logged := m.unpaired[id]; !logged {
					m.unpaired[id] = struct{}{}
					log.L().Info("Pair address not bound, not claiming egress id", zap.String("event", "pair_missing"),
						zap.String("egress_id", id), zap.String("ip", ip), zap.String("pair_ip", pair))
				}
			}
		}
	}

	needed := make(map[string]struct{}, len(candidates))
	for id := range candidates {
		if _, ok := blocked[id]; ok {
			continue
		}
		delete(m.unpaired, id)
		needed[id] = struct{}{}
	}
	return needed
}

func (m *MembershipManager) resolve(ctx context.Context, ip string) (string, bool) {
	if id, ok := m.cache.resolved[ip]; ok {
		return id, true
	}
	if _, ok := m.cache.unassigned[ip]; ok {
		return "", false
	}

	rec, err := m.resolver.Lookup(ctx, ip)
	if err != nil {
		m.metrics.LookupDone("error")
		log.L().Warn("Address lookup failed", zap.String("event", "address_lookup_failed"),
			zap.String("ip", ip), zap.Error(err))
		return "", false
	}
	if rec == nil {
		m.metrics.LookupDone("miss")
		m.cache.unassigned[ip] = struct{}{}
		log.L().Debug("Address has no egress id", zap.String("event", "address_unassigned"), zap.String("ip", ip))
		return "", false
	}

	m.metrics.LookupDone("hit")
	m.cache.store(ip, rec)
	log.L().Info("Resolved egress address", zap.String("event", "address_resolved"),
		zap.String("ip", ip), zap.String("egress_id", rec.ID), zap.Bool("paired", rec.Paired()))
	return rec.ID, true
}
