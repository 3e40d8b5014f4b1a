package match

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCIDRContainment(t *testing.T) {
	tests := []struct {
		name string
		ip   string
		cidr string
		want bool
	}{
		{"inside /24", "192.0.2.10", "192.0.2.0/24", true},
		{"network address", "192.0.2.0", "192.0.2.0/24", true},
		{"broadcast address", "192.0.2.255", "192.0.2.0/24", true},
		{"just outside", "192.0.3.0", "192.0.2.0/24", false},
		{"host block", "198.51.100.7", "198.51.100.7/32", true},
		{"bare address block", "198.51.100.7", "198.51.100.7", true},
		{"unmasked block", "10.1.2.3", "10.9.9.9/8", true},
		{"ipv6", "2001:db8::1", "2001:db8::/32", true},
		{"ipv6 outside", "2001:db9::1", "2001:db8::/32", false},
		{"mapped ipv4", "::ffff:192.0.2.10", "192.0.2.0/24", true},
		{"family mismatch", "192.0.2.10", "2001:db8::/32", false},
		{"garbage ip", "not-an-ip", "192.0.2.0/24", false},
		{"empty ip", "", "0.0.0.0/0", false},
		{"ip with port", "192.0.2.10:443", "192.0.2.0/24", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CIDRContainment(tt.ip, []string{tt.cidr}))
		})
	}
}

func TestCIDRContainment_ExhaustiveSmallBlock(t *testing.T) {
	block := netip.MustParsePrefix("203.0.113.64/27")
	rs, errs := NewRangeSet([]string{block.String()})
	require.Empty(t, errs)

	for i := 0; i < 256; i++ {
		addr := netip.AddrFrom4([4]byte{203, 0, 113, byte(i)})
		want := i >= 64 && i < 96
		assert.Equal(t, want, rs.Contains(addr.String()), addr.String())
	}
}

func TestNewRangeSet_InvalidBlocksReported(t *testing.T) {
	rs, errs := NewRangeSet([]string{"10.0.0.0/8", "10.0.0.0/33", "bogus", " 172.16.0.0/12 "})

	assert.Len(t, errs, 2)
	assert.Equal(t, 2, rs.Len())
	assert.Equal(t, []netip.Prefix{
		netip.MustParsePrefix("10.0.0.0/8"),
		netip.MustParsePrefix("172.16.0.0/12"),
	}, rs.Prefixes())
	assert.True(t, rs.Contains("172.20.1.1"))
}

func TestRangeSet_Empty(t *testing.T) {
	rs, errs := NewRangeSet(nil)
	assert.Empty(t, errs)
	assert.False(t, rs.Contains("10.0.0.1"))

	var nilSet *RangeSet
	assert.False(t, nilSet.Contains("10.0.0.1"))
	assert.Equal(t, 0, nilSet.Len())
}
