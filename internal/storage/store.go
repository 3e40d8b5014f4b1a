// Package storage persists reference data, job state, match results and the
// run log. Two backends share one contract: an embedded bbolt file for local
// runs and tests, and MongoDB for production.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hakim/censysmatch/internal/config"
	"github.com/hakim/censysmatch/internal/models"
)

var (
	// ErrNotFound is returned when a requested record does not exist
	ErrNotFound = errors.New("not found")

	// ErrStoreBusy is returned when another process holds the embedded store
	ErrStoreBusy = errors.New("store is locked by another process")
)

// Collection (and bucket) names
const (
	CollZones   = "zones"
	CollConfig  = "config"
	CollAWS     = "aws_ips"
	CollAzure   = "azure_ips"
	CollIPZones = "ip_zones"
	CollDNS     = "all_dns"
	CollJobs    = "jobs"
	CollResults = "results"
	CollRuns    = "runs"
)

// ZoneDoc is a zone owned by the organization
type ZoneDoc struct {
	Zone   string `json:"zone" bson:"zone"`
	Status string `json:"status,omitempty" bson:"status,omitempty"`
	Source string `json:"source,omitempty" bson:"source,omitempty"`
}

// RangeDoc is a CIDR block recorded for the organization
type RangeDoc struct {
	Zone   string `json:"zone" bson:"zone"`
	Status string `json:"status,omitempty" bson:"status,omitempty"`
}

// DNSDoc is one DNS inventory entry: fqdn resolved to value
type DNSDoc struct {
	FQDN  string `json:"fqdn" bson:"fqdn"`
	Value string `json:"value" bson:"value"`
	Type  string `json:"type,omitempty" bson:"type,omitempty"`
}

// prefixDoc is the published cloud range document, of which only the first is read
type prefixDoc struct {
	Prefixes []prefixEntry `json:"prefixes" bson:"prefixes"`
}

type prefixEntry struct {
	IPPrefix string `json:"ip_prefix" bson:"ip_prefix"`
}

func (d prefixDoc) cidrs() []string {
	out := make([]string, 0, len(d.Prefixes))
	for _, p := range d.Prefixes {
		if p.IPPrefix != "" {
			out = append(out, p.IPPrefix)
		}
	}
	return out
}

// configDoc is the organization configuration document
type configDoc struct {
	SSLOrgs []string `json:"SSL_Orgs" bson:"SSL_Orgs"`
}

// zoneUsable reports whether a zone or range status allows matching
func zoneUsable(status string) bool {
	return status != models.RangeStatusFalsePositive && status != models.ZoneStatusExpired
}

// Backend is the full storage contract used by the commands
type Backend interface {
	// Reference data
	DistinctZones(ctx context.Context) ([]string, error)
	Organizations(ctx context.Context) ([]string, error)
	AWSPrefixes(ctx context.Context) ([]string, error)
	AzurePrefixes(ctx context.Context) ([]string, error)
	KnownRanges(ctx context.Context) ([]string, error)
	LookupFQDNs(ctx context.Context, ip string) ([]string, error)

	// Job state
	GetJob(ctx context.Context, name string) (*models.JobRecord, error)
	SetJobStatus(ctx context.Context, name string, status models.JobStatus, at time.Time) error

	// Results
	ClearResults(ctx context.Context) error
	UpsertResult(ctx context.Context, res *models.MatchResult) error
	ListResults(ctx context.Context) ([]*models.MatchResult, error)
	CountResults(ctx context.Context) (int64, error)

	// Run log
	SaveRun(ctx context.Context, meta *models.RunMeta) error
	GetRun(ctx context.Context, id string) (*models.RunMeta, error)
	ListRuns(ctx context.Context, jobName string) ([]*models.RunMeta, error)

	Close() error
}

var (
	_ Backend = (*Store)(nil)
	_ Backend = (*MongoStore)(nil)
)

// Open connects to the backend selected in cfg
func Open(ctx context.Context, cfg config.StoreConfig) (Backend, error) {
	switch cfg.Backend {
	case config.BackendBolt:
		s, err := NewStore(cfg.BoltPath)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.BackendMongo:
		m, err := NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.TimeoutDuration())
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// LatestRun returns the most recent run of a job
func LatestRun(ctx context.Context, b Backend, jobName string) (*models.RunMeta, error) {
	runs, err := b.ListRuns(ctx, jobName)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("runs for job %q: %w", jobName, ErrNotFound)
	}
	return runs[0], nil
}
