package match

import "strings"

// ZoneMatch returns the first zone in zones that value equals or is a
// subdomain of. The order of zones decides ties, so "a.b.example.com"
// against ["example.com", "b.example.com"] yields "example.com".
func ZoneMatch(value string, zones []string) (string, bool) {
	for _, zone := range zones {
		if zone == "" {
			continue
		}
		if value == zone || strings.HasSuffix(value, "."+zone) {
			return zone, true
		}
	}
	return "", false
}

// MatchZones resolves every value against zones and returns the distinct
// matched zones in first-seen order. The result is never nil.
func MatchZones(values []string, zones []string) []string {
	matched := []string{}
	for _, v := range values {
		if zone, ok := ZoneMatch(v, zones); ok {
			matched = AppendZones(matched, zone)
		}
	}
	return matched
}

// AppendZones adds each zone to dst unless it is already present
func AppendZones(dst []string, zones ...string) []string {
	for _, z := range zones {
		if !contains(dst, z) {
			dst = append(dst, z)
		}
	}
	return dst
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
