package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/hakim/censysmatch/internal/models"
	"go.etcd.io/bbolt"
)

// Keys of the single-document buckets
var (
	keyConfig   = []byte("config")
	keyPrefixes = []byte("prefixes")
)

// dnsKey orders inventory entries by ip so a lookup is a prefix seek
func dnsKey(ip, fqdn string) []byte {
	return []byte(ip + "\x00" + fqdn)
}

// DistinctZones returns each usable zone once, in key order
func (s *Store) DistinctZones(_ context.Context) ([]string, error) {
	var zones []string
	seen := make(map[string]struct{})

	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(CollZones)).ForEach(func(_, v []byte) error {
			var doc ZoneDoc
			if err := json.Unmarshal(v, &doc); err != nil {
				return fmt.Errorf("decoding zone: %w", err)
			}
			if doc.Zone == "" || !zoneUsable(doc.Status) {
				return nil
			}
			if _, ok := seen[doc.Zone]; ok {
				return nil
			}
			seen[doc.Zone] = struct{}{}
			zones = append(zones, doc.Zone)
			return nil
		})
	})

	return zones, err
}

// Organizations returns the SSL organization names of the config document
func (s *Store) Organizations(_ context.Context) ([]string, error) {
	var doc configDoc
	found, err := s.getJSON(CollConfig, keyConfig, &doc)
	if err != nil || !found {
		return nil, err
	}
	return doc.SSLOrgs, nil
}

// AWSPrefixes returns the published AWS CIDR blocks
func (s *Store) AWSPrefixes(_ context.Context) ([]string, error) {
	return s.prefixes(CollAWS)
}

// AzurePrefixes returns the published Azure CIDR blocks
func (s *Store) AzurePrefixes(_ context.Context) ([]string, error) {
	return s.prefixes(CollAzure)
}

func (s *Store) prefixes(bucket string) ([]string, error) {
	var doc prefixDoc
	found, err := s.getJSON(bucket, keyPrefixes, &doc)
	if err != nil || !found {
		return nil, err
	}
	return doc.cidrs(), nil
}

// KnownRanges returns the organization's CIDR blocks that are not false positives
func (s *Store) KnownRanges(_ context.Context) ([]string, error) {
	var ranges []string

	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(CollIPZones)).ForEach(func(_, v []byte) error {
			var doc RangeDoc
			if err := json.Unmarshal(v, &doc); err != nil {
				return fmt.Errorf("decoding ip zone: %w", err)
			}
			if doc.Zone != "" && doc.Status != models.RangeStatusFalsePositive {
				ranges = append(ranges, doc.Zone)
			}
			return nil
		})
	})

	return ranges, err
}

// LookupFQDNs returns the names that resolve to ip in the DNS inventory
func (s *Store) LookupFQDNs(_ context.Context, ip string) ([]string, error) {
	var fqdns []string
	prefix := []byte(ip + "\x00")

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(CollDNS)).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var doc DNSDoc
			if err := json.Unmarshal(v, &doc); err != nil {
				return fmt.Errorf("decoding dns record: %w", err)
			}
			fqdns = append(fqdns, doc.FQDN)
		}
		return nil
	})

	return fqdns, err
}

// PutZones stores zone documents keyed by zone name
func (s *Store) PutZones(docs ...ZoneDoc) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(CollZones))
		for _, doc := range docs {
			if err := putJSON(b, []byte(doc.Zone), doc); err != nil {
				return err
			}
		}
		return nil
	})
}

// PutOrganizations replaces the SSL organization list
func (s *Store) PutOrganizations(orgs ...string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return putJSON(tx.Bucket([]byte(CollConfig)), keyConfig, configDoc{SSLOrgs: orgs})
	})
}

// PutAWSPrefixes replaces the AWS range document
func (s *Store) PutAWSPrefixes(cidrs ...string) error {
	return s.putPrefixes(CollAWS, cidrs)
}

// PutAzurePrefixes replaces the Azure range document
func (s *Store) PutAzurePrefixes(cidrs ...string) error {
	return s.putPrefixes(CollAzure, cidrs)
}

func (s *Store) putPrefixes(bucket string, cidrs []string) error {
	var doc prefixDoc
	for _, cidr := range cidrs {
		doc.Prefixes = append(doc.Prefixes, prefixEntry{IPPrefix: cidr})
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return putJSON(tx.Bucket([]byte(bucket)), keyPrefixes, doc)
	})
}

// PutKnownRanges stores organization CIDR documents keyed by block
func (s *Store) PutKnownRanges(docs ...RangeDoc) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(CollIPZones))
		for _, doc := range docs {
			if err := putJSON(b, []byte(doc.Zone), doc); err != nil {
				return err
			}
		}
		return nil
	})
}

// PutDNSRecords adds entries to the DNS inventory
func (s *Store) PutDNSRecords(docs ...DNSDoc) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(CollDNS))
		for _, doc := range docs {
			if err := putJSON(b, dnsKey(doc.Value, doc.FQDN), doc); err != nil {
				return err
			}
		}
		return nil
	})
}

// getJSON decodes the value at key into v and reports whether it existed
func (s *Store) getJSON(bucket string, key []byte, v any) (bool, error) {
	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(bucket)).Get(key)
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, v)
	})
	return found, err
}

func putJSON(b *bbolt.Bucket, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Put(key, data)
}
