package pki

import (
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"fmt"
	"math/big"
	"net"
	"strings"
	"time"
)

// Validation errors surfaced before any key material is generated.
var (
	ErrSANRequired    = errors.New("server certificates require at least one SAN")
	ErrUnknownProfile = errors.New("unknown issuance profile")
	ErrCommonName     = errors.New("common name is required")
)

// SANType tags a subject alternative name entry.
type SANType string

const (
	SANDNS SANType = "DNS"
	SANIP  SANType = "IP"
)

// SAN is a single subject alternative name entry.
type SAN struct {
	Type  SANType
	Value string
}

// ParseSAN classifies a raw SAN value: anything that parses as an IP
// address becomes an IP SAN, everything else a DNS SAN.
func ParseSAN(value string) SAN {
	if ip := net.ParseIP(value); ip != nil {
		return SAN{Type: SANIP, Value: value}
	}
	return SAN{Type: SANDNS, Value: value}
}

// Identity is the subject of a certificate: distinguished-name fields
// plus an ordered SAN list.
type Identity struct {
	CommonName   string
	Organization string
	OrgUnit      string
	Country      string
	SANs         []SAN
}

// Subject builds the distinguished name for the identity.
func (id Identity) Subject() pkix.Name {
	name := pkix.Name{CommonName: id.CommonName}
	if id.Organization != "" {
		name.Organization = []string{id.Organization}
	}
	if id.OrgUnit != "" {
		name.OrganizationalUnit = []string{id.OrgUnit}
	}
	if id.Country != "" {
		name.Country = []string{id.Country}
	}
	return name
}

// splitSANs partitions the SAN list by type, preserving the supplied
// order within each type. The marshaled SAN extension is therefore
// deterministic for a given input.
func (id Identity) splitSANs() (dnsNames []string, ipAddresses []net.IP, err error) {
	for _, san := range id.SANs {
		switch san.Type {
		case SANDNS:
			dnsNames = append(dnsNames, san.Value)
		case SANIP:
			ip := net.ParseIP(san.Value)
			if ip == nil {
				return nil, nil, fmt.Errorf("invalid IP SAN %q", san.Value)
			}
			ipAddresses = append(ipAddresses, ip)
		default:
			return nil, nil, fmt.Errorf("unknown SAN type %q", san.Type)
		}
	}
	return dnsNames, ipAddresses, nil
}

// Profile is the usage class of an issued certificate.
type Profile string

const (
	ProfileServer Profile = "server"
	ProfileClient Profile = "client"
	ProfileBoth   Profile = "both"
)

// ParseProfile resolves a profile name. There is no defaulting: an
// unrecognized name is a hard error.
func ParseProfile(s string) (Profile, error) {
	switch Profile(strings.ToLower(s)) {
	case ProfileServer:
		return ProfileServer, nil
	case ProfileClient:
		return ProfileClient, nil
	case ProfileBoth:
		return ProfileBoth, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownProfile, s)
	}
}

// ExtKeyUsage maps the profile to its extended key usage set.
func (p Profile) ExtKeyUsage() ([]x509.ExtKeyUsage, error) {
	switch p {
	case ProfileServer:
		return []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth}, nil
	case ProfileClient:
		return []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth}, nil
	case ProfileBoth:
		return []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProfile, p)
	}
}

func (p Profile) requiresServerUsage() bool {
	return p == ProfileServer || p == ProfileBoth
}

// ValidateRequest checks an identity/profile combination. Modern TLS
// clients reject SAN-less server certificates even when the CN
// matches, so server profiles without SANs are refused outright.
func ValidateRequest(id Identity, profile Profile) error {
	if id.CommonName == "" {
		return ErrCommonName
	}
	if _, err := profile.ExtKeyUsage(); err != nil {
		return err
	}
	if profile.requiresServerUsage() && len(id.SANs) == 0 {
		return fmt.Errorf("%w (profile %q, cn %q)", ErrSANRequired, profile, id.CommonName)
	}
	return nil
}

// LeafTemplate synthesizes the certificate template for a leaf
// issuance: CA:FALSE, fixed key usage, extended key usage from the
// profile, SANs in supplied order. The template carries the extensions
// the signer applies; whatever a CSR self-asserts is never trusted.
func LeafTemplate(id Identity, profile Profile, validity time.Duration) (*x509.Certificate, error) {
	if err := ValidateRequest(id, profile); err != nil {
		return nil, err
	}

	eku, err := profile.ExtKeyUsage()
	if err != nil {
		return nil, err
	}

	dnsNames, ipAddresses, err := id.splitSANs()
	if err != nil {
		return nil, err
	}

	serial, err := newSerialNumber()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	return &x509.Certificate{
		SerialNumber:          serial,
		Subject:               id.Subject(),
		DNSNames:              dnsNames,
		IPAddresses:           ipAddresses,
		NotBefore:             now.Add(-1 * time.Hour),
		NotAfter:              now.Add(validity),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           eku,
		BasicConstraintsValid: true,
		IsCA:                  false,
	}, nil
}

// newSerialNumber draws a random 128-bit serial, the standard practice
// for a CA that keeps no issuance database.
func newSerialNumber() (*big.Int, error) {
	limit := new(big.Int).Lsh(big.NewInt(1), 128)
	serial, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to generate serial number: %w", err)
	}
	return serial, nil
}
