package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestZoneMatch(t *testing.T) {
	zones := []string{"example.com", "example.org"}

	tests := []struct {
		value string
		want  string
		ok    bool
	}{
		{"example.com", "example.com", true},
		{"www.example.com", "example.com", true},
		{"a.b.example.org", "example.org", true},
		{"notexample.com", "", false},
		{"example.com.evil.net", "", false},
		{"com", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			got, ok := ZoneMatch(tt.value, zones)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestZoneMatch_FirstZoneWins(t *testing.T) {
	got, ok := ZoneMatch("api.dev.example.com", []string{"example.com", "dev.example.com"})
	assert.True(t, ok)
	assert.Equal(t, "example.com", got)

	got, ok = ZoneMatch("api.dev.example.com", []string{"dev.example.com", "example.com"})
	assert.True(t, ok)
	assert.Equal(t, "dev.example.com", got)
}

func TestZoneMatch_EmptyZoneIgnored(t *testing.T) {
	_, ok := ZoneMatch("anything.example", []string{""})
	assert.False(t, ok)
}

func TestMatchZones_Distinct(t *testing.T) {
	zones := []string{"example.com", "example.org"}
	got := MatchZones([]string{"a.example.org", "www.example.com", "example.org", "other.net"}, zones)
	assert.Equal(t, []string{"example.org", "example.com"}, got)

	assert.Equal(t, []string{}, MatchZones(nil, zones))
}

func TestAppendZones(t *testing.T) {
	got := AppendZones([]string{"example.com"}, "example.org", "example.com", "example.org")
	assert.Equal(t, []string{"example.com", "example.org"}, got)
}
