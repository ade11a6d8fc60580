package database

import (
	"context"
	"net"

	"egress-worker/internal/domain"
)

// StaticRegistry resolves addresses from a fixed list, used when MongoDB is disabled
type StaticRegistry struct {
	byIP map[string]*domain.AddressRecord
}

// NewStaticRegistry indexes records by both of their addresses
func NewStaticRegistry(records []*domain.AddressRecord) *StaticRegistry {
	r := &StaticRegistry{byIP: make(map[string]*domain.AddressRecord, 2*len(records))}
	for _, rec := range records {
		rec := &domain.AddressRecord{ID: rec.ID, IPv4: canonicalIP(rec.IPv4), IPv6: canonicalIP(rec.IPv6)}
		if rec.IPv4 != "" {
			r.byIP[rec.IPv4] = rec
		}
		if rec.IPv6 != "" {
			r.byIP[rec.IPv6] = rec
		}
	}
	return r
}

// Lookup implements domain.AddressResolver
func (r *StaticRegistry) Lookup(_ context.Context, ip string) (*domain.AddressRecord, error) {
	rec, ok := r.byIP[canonicalIP(ip)]
	if !ok {
		return nil, nil
	}
	return rec, nil
}

// canonicalIP makes "2001:DB8:0::9" and "2001:db8::9" compare equal, matching
// the form the interface lister reports.
func canonicalIP(ip string) string {
	if parsed := net.ParseIP(ip); parsed != nil {
		return parsed.String()
	}
	return ip
}
