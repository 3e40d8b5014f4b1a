package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Keys written by the classifier on top of the original record fields
const (
	FieldIP        = "ip"
	FieldZones     = "zones"
	FieldAWS       = "aws"
	FieldAzure     = "azure"
	FieldDomains   = "domains"
	FieldCreatedAt = "createdAt"
)

// MatchResult is a candidate entry that passed the match gate, together with
// its enrichment. It serialises as the original record with the enrichment
// keys added (or overwritten).
type MatchResult struct {
	IP        string
	Zones     []string
	AWS       bool
	Azure     bool
	Domains   []string
	CreatedAt time.Time

	// Fields is the passthrough of the original record
	Fields map[string]json.RawMessage
}

// NewMatchResult starts a result for entry with empty enrichment
func NewMatchResult(entry *CandidateEntry) *MatchResult {
	return &MatchResult{
		IP:     entry.IP,
		Zones:  []string{},
		Fields: entry.Fields,
	}
}

// MarshalJSON implements json.Marshaler
func (m *MatchResult) MarshalJSON() ([]byte, error) {
	doc := make(map[string]any, len(m.Fields)+6)
	for k, v := range m.Fields {
		doc[k] = v
	}

	zones := m.Zones
	if zones == nil {
		zones = []string{}
	}

	doc[FieldIP] = m.IP
	doc[FieldZones] = zones
	doc[FieldAWS] = m.AWS
	doc[FieldAzure] = m.Azure
	doc[FieldCreatedAt] = m.CreatedAt.UTC()
	if len(m.Domains) > 0 {
		doc[FieldDomains] = m.Domains
	} else {
		delete(doc, FieldDomains)
	}

	return json.Marshal(doc)
}

// UnmarshalJSON implements json.Unmarshaler
func (m *MatchResult) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	var known struct {
		IP        string    `json:"ip"`
		Zones     []string  `json:"zones"`
		AWS       bool      `json:"aws"`
		Azure     bool      `json:"azure"`
		Domains   []string  `json:"domains"`
		CreatedAt time.Time `json:"createdAt"`
	}
	if err := json.Unmarshal(data, &known); err != nil {
		return fmt.Errorf("decoding match result: %w", err)
	}

	for _, k := range []string{FieldIP, FieldZones, FieldAWS, FieldAzure, FieldDomains, FieldCreatedAt} {
		delete(fields, k)
	}

	m.IP = known.IP
	m.Zones = known.Zones
	if m.Zones == nil {
		m.Zones = []string{}
	}
	m.AWS = known.AWS
	m.Azure = known.Azure
	m.Domains = known.Domains
	m.CreatedAt = known.CreatedAt
	m.Fields = fields
	return nil
}
