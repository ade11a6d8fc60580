// Package netaddr reports the IP addresses bound to the host's interfaces.
package netaddr

import (
	"context"
	"fmt"
	"net"
	"sort"
)

// InterfaceLister implements domain.AddressLister over the host's network interfaces.
type InterfaceLister struct {
	includeLoopback bool
	addrs           func() ([]net.Addr, error)
}

// NewInterfaceLister creates a lister. Loopback addresses are skipped unless includeLoopback is set.
func NewInterfaceLister(includeLoopback bool) *InterfaceLister {
	return &InterfaceLister{
		includeLoopback: includeLoopback,
		addrs:           net.InterfaceAddrs,
	}
}

// LocalAddresses returns the unicast addresses currently bound, deduplicated and sorted.
// Link-local and unspecified addresses never carry egress traffic and are skipped.
func (l *InterfaceLister) LocalAddresses(_ context.Context) ([]string, error) {
	addrs, err := l.addrs()
	if err != nil {
		return nil, fmt.Errorf("failed to list interface addresses: %w", err)
	}
	return filterAddrs(addrs, l.includeLoopback), nil
}

func filterAddrs(addrs []net.Addr, includeLoopback bool) []string {
	seen := make(map[string]struct{}, len(addrs))
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		var ip net.IP
		switch v := a.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		default:
			continue
		}
		if ip == nil || ip.IsUnspecified() || ip.IsLinkLocalUnicast() || ip.IsMulticast() {
			continue
		}
		if ip.IsLoopback() && !includeLoopback {
			continue
		}
		s := ip.String()
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
