package enrich

import (
	"context"
	"fmt"

	"github.com/hakim/censysmatch/internal/match"
	"github.com/hakim/censysmatch/internal/models"
	"github.com/hakim/censysmatch/internal/reference"
)

// DNSInventory answers reverse lookups against previously observed DNS
// records: which FQDNs have resolved to this address.
type DNSInventory interface {
	LookupFQDNs(ctx context.Context, ip string) ([]string, error)
}

// Resolver derives zone, cloud provider and domain tags for records that
// passed the match gate
type Resolver struct {
	ref *reference.Data
	dns DNSInventory
}

// NewResolver creates a resolver over the run's reference data
func NewResolver(ref *reference.Data, dns DNSInventory) *Resolver {
	return &Resolver{ref: ref, dns: dns}
}

// Enrich builds the match result for entry.
//
// The result is always returned. A failing reverse lookup leaves Domains
// empty and adds no zones; the lookup error is returned alongside the result
// so the caller can report it.
func (r *Resolver) Enrich(ctx context.Context, entry *models.CandidateEntry) (*models.MatchResult, error) {
	res := models.NewMatchResult(entry)

	// Zones are accumulated per record, never shared across records.
	res.Zones = match.MatchZones(entry.CertificateNames(), r.ref.Zones())
	res.AWS = r.ref.AWS().Contains(entry.IP)
	res.Azure = r.ref.Azure().Contains(entry.IP)

	if r.dns == nil {
		return res, nil
	}

	fqdns, err := r.dns.LookupFQDNs(ctx, entry.IP)
	if err != nil {
		return res, fmt.Errorf("reverse lookup for %s: %w", entry.IP, err)
	}
	if len(fqdns) == 0 {
		return res, nil
	}

	res.Domains = fqdns
	for _, fqdn := range fqdns {
		if zone, ok := match.ZoneMatch(fqdn, r.ref.Zones()); ok {
			res.Zones = match.AppendZones(res.Zones, zone)
		}
	}

	return res, nil
}
