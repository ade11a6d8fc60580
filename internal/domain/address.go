package domain

import "context"

// AddressRecord is the registry entry for one egress identifier.
// IPv4 and IPv6 are both set when the identifier is registered dual-stack.
type AddressRecord struct {
	ID   string
	IPv4 string
	IPv6 string
}

// Paired reports whether the record requires both address families.
func (r *AddressRecord) Paired() bool {
	return r.IPv4 != "" && r.IPv6 != ""
}

// PairOf returns the opposite-family address for ip, if the record is paired.
func (r *AddressRecord) PairOf(ip string) (string, bool) {
	if !r.Paired() {
		return "", false
	}
	switch ip {
	case r.IPv4:
		return r.IPv6, true
	case r.IPv6:
		return r.IPv4, true
	}
	return "", false
}

// AddressResolver looks up the egress identifier bound to an IP.
// A nil record with a nil error means the IP has no identifier.
type AddressResolver interface {
	Lookup(ctx context.Context, ip string) (*AddressRecord, error)
}

// AddressLister reports the IP addresses currently bound to host interfaces.
type AddressLister interface {
	LocalAddresses(ctx context.Context) ([]string, error)
}
