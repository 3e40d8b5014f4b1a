package reference

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	zones, orgs, aws, azure, known []string
	failOn                         string
}

func (f *fakeSource) result(name string, v []string) ([]string, error) {
	if f.failOn == name {
		return nil, errors.New("connection reset")
	}
	return v, nil
}

func (f *fakeSource) DistinctZones(context.Context) ([]string, error) { return f.result("zones", f.zones) }
func (f *fakeSource) Organizations(context.Context) ([]string, error) { return f.result("orgs", f.orgs) }
func (f *fakeSource) AWSPrefixes(context.Context) ([]string, error)   { return f.result("aws", f.aws) }
func (f *fakeSource) AzurePrefixes(context.Context) ([]string, error) { return f.result("azure", f.azure) }
func (f *fakeSource) KnownRanges(context.Context) ([]string, error)   { return f.result("known", f.known) }

func TestLoad(t *testing.T) {
	log, hook := logtest.NewNullLogger()

	src := &fakeSource{
		zones: []string{"example.com", "example.org", "example.com"},
		orgs:  []string{"Acme", "", "Acme"},
		aws:   []string{"3.0.0.0/9", "not-a-cidr"},
		azure: []string{"20.0.0.0/11"},
		known: []string{"192.0.2.0/24"},
	}

	data, err := Load(context.Background(), src, log)
	require.NoError(t, err)

	assert.Equal(t, []string{"example.com", "example.org"}, data.Zones())
	assert.Equal(t, []string{"Acme"}, data.Organizations())
	assert.Equal(t, 1, data.AWS().Len())
	assert.True(t, data.AWS().Contains("3.5.1.1"))
	assert.True(t, data.Azure().Contains("20.1.2.3"))
	assert.True(t, data.Known().Contains("192.0.2.77"))

	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			warned = true
		}
	}
	assert.True(t, warned, "invalid aws block should be logged")
}

func TestLoad_EmptySourceIsNotAnError(t *testing.T) {
	log, _ := logtest.NewNullLogger()

	data, err := Load(context.Background(), &fakeSource{}, log)
	require.NoError(t, err)

	assert.Empty(t, data.Zones())
	assert.Empty(t, data.Organizations())
	assert.False(t, data.Known().Contains("192.0.2.1"))
	assert.False(t, data.AWS().Contains("3.5.1.1"))
}

func TestLoad_StoreErrorAborts(t *testing.T) {
	log, _ := logtest.NewNullLogger()

	_, err := Load(context.Background(), &fakeSource{failOn: "known"}, log)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "known ranges")
}
