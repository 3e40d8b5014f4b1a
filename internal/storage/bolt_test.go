package storage

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/hakim/censysmatch/internal/config"
	"github.com/hakim/censysmatch/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "nested", "censysmatch.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func result(ip string, createdAt time.Time) *models.MatchResult {
	return &models.MatchResult{
		IP:        ip,
		Zones:     []string{"example.com"},
		CreatedAt: createdAt,
		Fields: map[string]json.RawMessage{
			"ip":  json.RawMessage(`"` + ip + `"`),
			"p80": json.RawMessage(`{"http":{"status":200}}`),
		},
	}
}

func TestReferenceReads_EmptyStore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	zones, err := s.DistinctZones(ctx)
	require.NoError(t, err)
	assert.Empty(t, zones)

	orgs, err := s.Organizations(ctx)
	require.NoError(t, err)
	assert.Empty(t, orgs)

	aws, err := s.AWSPrefixes(ctx)
	require.NoError(t, err)
	assert.Empty(t, aws)

	known, err := s.KnownRanges(ctx)
	require.NoError(t, err)
	assert.Empty(t, known)

	fqdns, err := s.LookupFQDNs(ctx, "192.0.2.1")
	require.NoError(t, err)
	assert.Empty(t, fqdns)
}

func TestReferenceReads_Seeded(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutZones(
		ZoneDoc{Zone: "example.org", Source: "whois"},
		ZoneDoc{Zone: "example.com", Status: "confirmed"},
		ZoneDoc{Zone: "example.com", Source: "ucsd"},
		ZoneDoc{Zone: "old.example", Status: models.ZoneStatusExpired},
		ZoneDoc{Zone: "wrong.example", Status: models.RangeStatusFalsePositive},
	))
	require.NoError(t, s.PutOrganizations("Acme", "Acme Holdings"))
	require.NoError(t, s.PutAWSPrefixes("3.5.140.0/22", "52.94.76.0/22"))
	require.NoError(t, s.PutAzurePrefixes("13.64.0.0/11"))
	require.NoError(t, s.PutKnownRanges(
		RangeDoc{Zone: "198.51.100.0/24", Status: "confirmed"},
		RangeDoc{Zone: "203.0.113.0/24", Status: models.RangeStatusFalsePositive},
	))
	require.NoError(t, s.PutDNSRecords(
		DNSDoc{FQDN: "www.example.com", Value: "192.0.2.10", Type: "a"},
		DNSDoc{FQDN: "api.example.org", Value: "192.0.2.10", Type: "a"},
		DNSDoc{FQDN: "other.example.com", Value: "192.0.2.100", Type: "a"},
	))

	zones, err := s.DistinctZones(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"example.com", "example.org"}, zones)

	orgs, err := s.Organizations(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Acme", "Acme Holdings"}, orgs)

	aws, err := s.AWSPrefixes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"3.5.140.0/22", "52.94.76.0/22"}, aws)

	azure, err := s.AzurePrefixes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"13.64.0.0/11"}, azure)

	known, err := s.KnownRanges(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"198.51.100.0/24"}, known)

	fqdns, err := s.LookupFQDNs(ctx, "192.0.2.10")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"www.example.com", "api.example.org"}, fqdns)
}

func TestUpsertResult_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := time.Date(2026, 10, 18, 8, 0, 0, 0, time.UTC)
	second := first.Add(time.Hour)

	require.NoError(t, s.UpsertResult(ctx, result("192.0.2.10", first)))
	require.NoError(t, s.UpsertResult(ctx, result("192.0.2.10", second)))

	n, err := s.CountResults(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	results, err := s.ListResults(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, second.Equal(results[0].CreatedAt))
	assert.JSONEq(t, `{"http":{"status":200}}`, string(results[0].Fields["p80"]))
}

func TestClearResults(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, s.UpsertResult(ctx, result("192.0.2.1", now)))
	require.NoError(t, s.UpsertResult(ctx, result("192.0.2.2", now)))

	require.NoError(t, s.ClearResults(ctx))

	n, err := s.CountResults(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	// The bucket must still accept writes
	require.NoError(t, s.UpsertResult(ctx, result("192.0.2.3", now)))
	n, err = s.CountResults(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestJobs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.GetJob(ctx, "censys")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.SetJobStatus(ctx, "censys", models.JobComplete, time.Now()), ErrNotFound)

	require.NoError(t, s.PutJob(&models.JobRecord{Name: "censys", Status: models.JobDownloaded}))

	at := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.SetJobStatus(ctx, "censys", models.JobComplete, at))

	job, err := s.GetJob(ctx, "censys")
	require.NoError(t, err)
	assert.Equal(t, models.JobComplete, job.Status)
	assert.True(t, at.Equal(job.Updated))
}

func TestRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	older := models.NewRun("censys")
	older.StartedAt = time.Now().Add(-24 * time.Hour)
	newer := models.NewRun("censys")
	other := models.NewRun("other")

	for _, r := range []*models.RunMeta{older, newer, other} {
		require.NoError(t, s.SaveRun(ctx, r))
	}

	// Saving again updates in place
	newer.Stats.Persisted = 12
	newer.Finish(models.RunComplete, time.Now())
	require.NoError(t, s.SaveRun(ctx, newer))

	runs, err := s.ListRuns(ctx, "censys")
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, newer.ID, runs[0].ID)
	assert.Equal(t, older.ID, runs[1].ID)

	got, err := s.GetRun(ctx, newer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunComplete, got.Status)
	assert.Equal(t, int64(12), got.Stats.Persisted)
	assert.NotNil(t, got.CompletedAt)

	latest, err := LatestRun(ctx, s, "censys")
	require.NoError(t, err)
	assert.Equal(t, newer.ID, latest.ID)

	_, err = s.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = LatestRun(ctx, s, "nothing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	b, err := Open(ctx, config.StoreConfig{
		Backend:  config.BackendBolt,
		BoltPath: filepath.Join(t.TempDir(), "store.db"),
		Timeout:  "5s",
	})
	require.NoError(t, err)
	assert.IsType(t, &Store{}, b)
	require.NoError(t, b.Close())

	_, err = Open(ctx, config.StoreConfig{Backend: "redis"})
	assert.Error(t, err)
}

func TestOpen_HeldByAnotherInstance(t *testing.T) {
	ctx := context.Background()
	cfg := config.DefaultConfig().Store
	cfg.BoltPath = filepath.Join(t.TempDir(), "store.db")

	first, err := Open(ctx, cfg)
	require.NoError(t, err)
	defer first.Close()

	second, err := Open(ctx, cfg)
	assert.Nil(t, second)
	assert.ErrorIs(t, err, ErrStoreBusy)
}
