package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrMalformedRecord is returned when a dataset line is not a JSON object
	ErrMalformedRecord = errors.New("malformed record")

	// ErrMissingIP is returned when a record has no usable "ip" field
	ErrMissingIP = errors.New("record has no ip")
)

// StringList decodes either a JSON string or an array of strings.
// Scan datasets are inconsistent about which one they emit for certificate
// subject fields.
type StringList []string

// UnmarshalJSON implements json.Unmarshaler
func (s *StringList) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = nil
		return nil
	}

	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*s = StringList{single}
		return nil
	}

	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*s = many
	return nil
}

// CertSubject is the parsed subject of a TLS certificate
type CertSubject struct {
	Organization StringList `json:"organization"`
	CommonName   StringList `json:"common_name"`
}

// SubjectAltName holds the SAN extension of a certificate
type SubjectAltName struct {
	DNSNames StringList `json:"dns_names"`
}

// CertExtensions holds the certificate extensions we care about
type CertExtensions struct {
	SubjectAltName *SubjectAltName `json:"subject_alt_name"`
}

// ParsedCertificate is the decoded form of a served certificate
type ParsedCertificate struct {
	Subject    *CertSubject    `json:"subject"`
	Extensions *CertExtensions `json:"extensions"`
}

// Certificate wraps the parsed certificate
type Certificate struct {
	Parsed *ParsedCertificate `json:"parsed"`
}

// TLSHandshake holds the TLS data captured on a port
type TLSHandshake struct {
	Certificate *Certificate `json:"certificate"`
}

// HTTPSBanner holds the HTTPS scan result
type HTTPSBanner struct {
	TLS *TLSHandshake `json:"tls"`
}

// Port443 holds everything captured on port 443
type Port443 struct {
	HTTPS *HTTPSBanner `json:"https"`
}

// CandidateEntry is one parsed record from the scan dataset.
//
// Only the fields used for classification are decoded into typed form.
// Every top-level field of the original record is kept verbatim in Fields so
// it can be passed through to the result sink unchanged.
type CandidateEntry struct {
	IP     string
	P443   *Port443
	Fields map[string]json.RawMessage
}

// ParseCandidate decodes a single dataset line.
//
// A line that is not a JSON object yields ErrMalformedRecord, a record
// without a non-empty string "ip" yields ErrMissingIP. A p443 structure that
// does not have the expected shape is treated as absent rather than as an
// error.
func ParseCandidate(line []byte) (*CandidateEntry, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(line, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: not a JSON object", ErrMalformedRecord)
	}

	rawIP, ok := fields["ip"]
	if !ok {
		return nil, ErrMissingIP
	}
	var ip string
	if err := json.Unmarshal(rawIP, &ip); err != nil || ip == "" {
		return nil, ErrMissingIP
	}

	entry := &CandidateEntry{
		IP:     ip,
		Fields: fields,
	}

	if rawP443, ok := fields["p443"]; ok {
		var p443 Port443
		if err := json.Unmarshal(rawP443, &p443); err == nil {
			entry.P443 = &p443
		}
	}

	return entry, nil
}

// certificate walks p443.https.tls.certificate.parsed, returning nil at the
// first missing level.
func (e *CandidateEntry) certificate() *ParsedCertificate {
	if e == nil || e.P443 == nil || e.P443.HTTPS == nil || e.P443.HTTPS.TLS == nil {
		return nil
	}
	cert := e.P443.HTTPS.TLS.Certificate
	if cert == nil {
		return nil
	}
	return cert.Parsed
}

// HasCertificate reports whether the record carries a parsed port 443 certificate
func (e *CandidateEntry) HasCertificate() bool {
	return e.certificate() != nil
}

// Organizations returns the certificate subject organization values.
// ok is false when the field is absent at any level.
func (e *CandidateEntry) Organizations() (values []string, ok bool) {
	cert := e.certificate()
	if cert == nil || cert.Subject == nil || cert.Subject.Organization == nil {
		return nil, false
	}
	return cert.Subject.Organization, true
}

// CommonNames returns the certificate subject common name values
func (e *CandidateEntry) CommonNames() (values []string, ok bool) {
	cert := e.certificate()
	if cert == nil || cert.Subject == nil || cert.Subject.CommonName == nil {
		return nil, false
	}
	return cert.Subject.CommonName, true
}

// SANDNSNames returns the DNS names of the subject alternative name extension
func (e *CandidateEntry) SANDNSNames() (values []string, ok bool) {
	cert := e.certificate()
	if cert == nil || cert.Extensions == nil || cert.Extensions.SubjectAltName == nil {
		return nil, false
	}
	names := cert.Extensions.SubjectAltName.DNSNames
	if names == nil {
		return nil, false
	}
	return names, true
}

// CertificateNames returns common names followed by SAN DNS names.
// Absent fields contribute nothing.
func (e *CandidateEntry) CertificateNames() []string {
	var names []string
	if cn, ok := e.CommonNames(); ok {
		names = append(names, cn...)
	}
	if san, ok := e.SANDNSNames(); ok {
		names = append(names, san...)
	}
	return names
}
