// Package reference loads the organization's known assets used to classify
// scan records: DNS zones, certificate organization names, cloud provider
// ranges and previously confirmed ranges.
package reference

import (
	"context"
	"fmt"

	"github.com/hakim/censysmatch/internal/match"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"
)

// Source is the read side of the backing store needed to build Data.
// Each method is a single bulk read. Returning no data is not an error.
type Source interface {
	DistinctZones(ctx context.Context) ([]string, error)
	Organizations(ctx context.Context) ([]string, error)
	AWSPrefixes(ctx context.Context) ([]string, error)
	AzurePrefixes(ctx context.Context) ([]string, error)
	KnownRanges(ctx context.Context) ([]string, error)
}

// Data is the reference data for one run. It is built once and never
// modified afterwards, so it can be shared by every component of the run.
type Data struct {
	zones []string
	orgs  []string
	aws   *match.RangeSet
	azure *match.RangeSet
	known *match.RangeSet
}

// Raw holds reference data as read from the store
type Raw struct {
	Zones         []string
	Organizations []string
	AWS           []string
	Azure         []string
	Known         []string
}

// New builds Data from raw values. Zones and organizations are
// deduplicated keeping first-seen order. Invalid CIDR blocks are dropped and
// returned as warnings.
func New(raw Raw) (*Data, []error) {
	var warnings []error

	d := &Data{
		zones: dedupe(raw.Zones),
		orgs:  dedupe(raw.Organizations),
	}

	var errs []error
	d.aws, errs = match.NewRangeSet(raw.AWS)
	warnings = append(warnings, prefixErrs("aws", errs)...)
	d.azure, errs = match.NewRangeSet(raw.Azure)
	warnings = append(warnings, prefixErrs("azure", errs)...)
	d.known, errs = match.NewRangeSet(raw.Known)
	warnings = append(warnings, prefixErrs("known", errs)...)

	return d, warnings
}

// Load fetches every reference collection from src and builds Data.
// The five reads run concurrently; any store error aborts the load.
func Load(ctx context.Context, src Source, log logrus.FieldLogger) (*Data, error) {
	var raw Raw

	p := pool.New().WithContext(ctx).WithCancelOnError()
	p.Go(func(ctx context.Context) (err error) {
		raw.Zones, err = src.DistinctZones(ctx)
		return wrap("zones", err)
	})
	p.Go(func(ctx context.Context) (err error) {
		raw.Organizations, err = src.Organizations(ctx)
		return wrap("organizations", err)
	})
	p.Go(func(ctx context.Context) (err error) {
		raw.AWS, err = src.AWSPrefixes(ctx)
		return wrap("aws prefixes", err)
	})
	p.Go(func(ctx context.Context) (err error) {
		raw.Azure, err = src.AzurePrefixes(ctx)
		return wrap("azure prefixes", err)
	})
	p.Go(func(ctx context.Context) (err error) {
		raw.Known, err = src.KnownRanges(ctx)
		return wrap("known ranges", err)
	})
	if err := p.Wait(); err != nil {
		return nil, err
	}

	data, warnings := New(raw)
	for _, w := range warnings {
		log.WithError(w).Warn("Skipping invalid reference range")
	}

	log.WithFields(logrus.Fields{
		"zones":         len(data.zones),
		"organizations": len(data.orgs),
		"aws_ranges":    data.aws.Len(),
		"azure_ranges":  data.azure.Len(),
		"known_ranges":  data.known.Len(),
	}).Info("Reference data loaded")

	return data, nil
}

// Zones returns the organization's DNS zones in load order.
// Callers must not modify the returned slice.
func (d *Data) Zones() []string { return d.zones }

// Organizations returns the certificate organization substrings.
// Callers must not modify the returned slice.
func (d *Data) Organizations() []string { return d.orgs }

// AWS returns the AWS published ranges
func (d *Data) AWS() *match.RangeSet { return d.aws }

// Azure returns the Azure published ranges
func (d *Data) Azure() *match.RangeSet { return d.azure }

// Known returns the confirmed ranges of the organization
func (d *Data) Known() *match.RangeSet { return d.known }

func wrap(what string, err error) error {
	if err != nil {
		return fmt.Errorf("loading %s: %w", what, err)
	}
	return nil
}

func prefixErrs(set string, errs []error) []error {
	out := make([]error, 0, len(errs))
	for _, err := range errs {
		out = append(out, fmt.Errorf("%s: %w", set, err))
	}
	return out
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
