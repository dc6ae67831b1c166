// Package allowlist restricts API access to configured client IPs.
package allowlist

import (
	"fmt"
	"net/netip"
	"strings"
)

// Allowlist holds the permitted client address ranges. The zero value
// and an empty rule set allow everything.
type Allowlist struct {
	restricted bool
	prefixes   []netip.Prefix
}

// New builds an allowlist from IP addresses and CIDR ranges. An empty
// slice allows all clients.
func New(rules []string) (Allowlist, error) {
	var prefixes []netip.Prefix
	for _, rule := range rules {
		trimmed := strings.TrimSpace(rule)
		if trimmed == "" {
			continue
		}
		if strings.Contains(trimmed, "/") {
			prefix, err := netip.ParsePrefix(trimmed)
			if err != nil {
				return Allowlist{}, fmt.Errorf("invalid allowlist range %q: %w", trimmed, err)
			}
			prefixes = append(prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(trimmed)
		if err != nil {
			return Allowlist{}, fmt.Errorf("invalid allowlist address %q: %w", trimmed, err)
		}
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	if len(prefixes) == 0 {
		return Allowlist{}, nil
	}
	return Allowlist{restricted: true, prefixes: prefixes}, nil
}

// Allows reports whether the address may access the API. Mapped IPv4
// addresses are compared in their four-byte form.
func (a Allowlist) Allows(addr netip.Addr) bool {
	if !a.restricted {
		return true
	}
	if !addr.IsValid() {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range a.prefixes {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// AllowsString parses and checks a textual address. Unparseable
// addresses are rejected when the allowlist is restricted.
func (a Allowlist) AllowsString(s string) bool {
	if !a.restricted {
		return true
	}
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return false
	}
	return a.Allows(addr)
}

// Restricted reports whether any rules are configured.
func (a Allowlist) Restricted() bool {
	return a.restricted
}
