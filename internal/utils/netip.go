package utils

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// ClientAddr returns the peer address of r without its port. Proxy headers
// are ignored: the status server is meant to be scraped directly.
func ClientAddr(r *http.Request) (netip.Addr, bool) {
	host := r.RemoteAddr
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}

// PrefixMatcher matches addresses against a list of IPs and CIDRs.
type PrefixMatcher struct {
	prefixes []netip.Prefix
}

// NewPrefixMatcher parses list, skipping entries that are neither an IP nor a CIDR.
// The invalid entries are returned so the caller can report them.
func NewPrefixMatcher(list []string) (*PrefixMatcher, []string) {
	m := &PrefixMatcher{}
	var invalid []string
	for _, raw := range list {
		s := strings.TrimSpace(raw)
		if s == "" {
			continue
		}
		if p, err := netip.ParsePrefix(s); err == nil {
			m.prefixes = append(m.prefixes, p.Masked())
			continue
		}
		if a, err := netip.ParseAddr(s); err == nil {
			a = a.Unmap()
			m.prefixes = append(m.prefixes, netip.PrefixFrom(a, a.BitLen()))
			continue
		}
		invalid = append(invalid, s)
	}
	return m, invalid
}

func (m *PrefixMatcher) IsEmpty() bool { return len(m.prefixes) == 0 }

func (m *PrefixMatcher) Allow(addr netip.Addr) bool {
	for _, p := range m.prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
