package match

import (
	"strings"

	"github.com/hakim/censysmatch/internal/models"
)

// OrganizationMatch reports whether any configured organization name is a
// substring of the port 443 certificate subject organization. Records
// without that field never match.
func OrganizationMatch(entry *models.CandidateEntry, orgs []string) bool {
	values, ok := entry.Organizations()
	if !ok {
		return false
	}

	for _, org := range orgs {
		if org == "" {
			continue
		}
		for _, v := range values {
			if strings.Contains(v, org) {
				return true
			}
		}
	}
	return false
}
