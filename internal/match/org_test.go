package match

import (
	"testing"

	"github.com/hakim/censysmatch/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, line string) *models.CandidateEntry {
	t.Helper()
	entry, err := models.ParseCandidate([]byte(line))
	require.NoError(t, err)
	return entry
}

func TestOrganizationMatch(t *testing.T) {
	withOrg := parse(t, `{"ip":"192.0.2.10","p443":{"https":{"tls":{"certificate":{"parsed":{"subject":{"organization":["Acme Corp"]}}}}}}}`)
	noCert := parse(t, `{"ip":"192.0.2.10"}`)
	noOrg := parse(t, `{"ip":"192.0.2.10","p443":{"https":{"tls":{"certificate":{"parsed":{"subject":{"common_name":["acme.com"]}}}}}}}`)

	assert.True(t, OrganizationMatch(withOrg, []string{"Acme"}))
	assert.True(t, OrganizationMatch(withOrg, []string{"Other", "Corp"}))
	assert.False(t, OrganizationMatch(withOrg, []string{"acme"}))
	assert.False(t, OrganizationMatch(withOrg, []string{""}))
	assert.False(t, OrganizationMatch(withOrg, nil))

	assert.False(t, OrganizationMatch(noCert, []string{"Acme"}))
	assert.False(t, OrganizationMatch(noOrg, []string{"Acme"}))
}
