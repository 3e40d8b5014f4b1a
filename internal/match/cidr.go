package match

import (
	"fmt"
	"net/netip"
	"strings"

	"go4.org/netipx"
)

// RangeSet is an immutable set of CIDR blocks supporting containment checks
type RangeSet struct {
	prefixes []netip.Prefix
	set      *netipx.IPSet
}

// ParsePrefix parses a CIDR block. A bare address is accepted as a
// single-host block. Host bits are masked off.
func ParsePrefix(s string) (netip.Prefix, error) {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, "/") {
		addr, err := netip.ParseAddr(s)
		if err != nil {
			return netip.Prefix{}, fmt.Errorf("invalid CIDR %q: %w", s, err)
		}
		addr = addr.Unmap()
		return netip.PrefixFrom(addr, addr.BitLen()), nil
	}

	p, err := netip.ParsePrefix(s)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("invalid CIDR %q: %w", s, err)
	}
	return p.Masked(), nil
}

// NewRangeSet builds a set from CIDR strings, keeping their order for
// Prefixes. Invalid blocks are left out and reported in errs.
func NewRangeSet(cidrs []string) (rs *RangeSet, errs []error) {
	var b netipx.IPSetBuilder
	rs = &RangeSet{prefixes: make([]netip.Prefix, 0, len(cidrs))}

	for _, c := range cidrs {
		p, err := ParsePrefix(c)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		rs.prefixes = append(rs.prefixes, p)
		b.AddPrefix(p)
	}

	set, err := b.IPSet()
	if err != nil {
		errs = append(errs, fmt.Errorf("building range set: %w", err))
		set = &netipx.IPSet{}
	}
	rs.set = set
	return rs, errs
}

// Contains reports whether ip parses as an address inside the set.
// An unparseable address is simply not contained.
func (r *RangeSet) Contains(ip string) bool {
	if r == nil || r.set == nil || len(r.prefixes) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return false
	}
	return r.set.Contains(addr.Unmap())
}

// Len returns the number of valid blocks the set was built from
func (r *RangeSet) Len() int {
	if r == nil {
		return 0
	}
	return len(r.prefixes)
}

// Prefixes returns a copy of the blocks in load order
func (r *RangeSet) Prefixes() []netip.Prefix {
	if r == nil {
		return nil
	}
	out := make([]netip.Prefix, len(r.prefixes))
	copy(out, r.prefixes)
	return out
}

// CIDRContainment reports whether ip falls within any of the given blocks.
// Invalid blocks are ignored.
func CIDRContainment(ip string, cidrs []string) bool {
	rs, _ := NewRangeSet(cidrs)
	return rs.Contains(ip)
}
