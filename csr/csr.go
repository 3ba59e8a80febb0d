// Package csr builds PKCS#10 certification requests for device mTLS
// registration. The DER layout is a wire contract with the verifying server:
// subject attributes are emitted in a fixed order, the country as
// PrintableString and everything else as UTF8String, and the public key is
// the raw PKCS#1 bit pattern under the rsaEncryption algorithm identifier.
// The stdlib x509.CreateCertificateRequest does not guarantee this layout,
// so the structure is assembled by hand on top of the der package.
package csr

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"math/big"

	"go-docverify/der"
)

const (
	oidRSAEncryption           = "1.2.840.113549.1.1.1"
	oidSHA256WithRSAEncryption = "1.2.840.113549.1.1.11"

	oidCountry            = "2.5.4.6"
	oidState              = "2.5.4.8"
	oidLocality           = "2.5.4.7"
	oidOrganization       = "2.5.4.10"
	oidOrganizationalUnit = "2.5.4.11"
	oidCommonName         = "2.5.4.3"
)

// Subject holds the distinguished-name fields of the request. Empty fields
// are skipped; the emitted order is always C, ST, L, O, OU, CN.
type Subject struct {
	Country            string
	State              string
	Locality           string
	Organization       string
	OrganizationalUnit string
	CommonName         string
}

func (s Subject) empty() bool {
	return s.Country == "" && s.State == "" && s.Locality == "" &&
		s.Organization == "" && s.OrganizationalUnit == "" && s.CommonName == ""
}

// CryptoError wraps a signing or key failure. These always indicate a broken
// trust chain and must be surfaced to the caller.
type CryptoError struct {
	Op  string
	Err error
}

func (e *CryptoError) Error() string {
	return fmt.Sprintf("csr: %s: %v", e.Op, e.Err)
}

func (e *CryptoError) Unwrap() error { return e.Err }

// Generate builds and signs a certification request, returning its DER bytes.
func Generate(subject Subject, key *rsa.PrivateKey) ([]byte, error) {
	if key == nil {
		return nil, fmt.Errorf("csr: private key is required")
	}
	if subject.empty() {
		return nil, fmt.Errorf("csr: subject must contain at least one field")
	}

	info := certificationRequestInfo(subject, &key.PublicKey)

	digest := sha256.Sum256(info)
	signature, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest[:])
	if err != nil {
		return nil, &CryptoError{Op: "sign certification request info", Err: err}
	}

	return der.EncodeSequence(
		info,
		signatureAlgorithm(),
		der.EncodeBitString(signature),
	), nil
}

// GeneratePEM builds the request and renders it as PEM with the standard
// CERTIFICATE REQUEST header, base64 wrapped at 64 columns.
func GeneratePEM(subject Subject, key *rsa.PrivateKey) (string, error) {
	derBytes, err := Generate(subject, key)
	if err != nil {
		return "", err
	}
	block := &pem.Block{Type: "CERTIFICATE REQUEST", Bytes: derBytes}
	return string(pem.EncodeToMemory(block)), nil
}

// certificationRequestInfo assembles SEQUENCE(version, subject, SPKI,
// attributes[0] empty).
func certificationRequestInfo(subject Subject, pub *rsa.PublicKey) []byte {
	return der.EncodeSequence(
		der.EncodeInteger(big.NewInt(0)),
		subjectName(subject),
		subjectPublicKeyInfo(pub),
		der.EncodeTag(0x80, true, nil),
	)
}

// subjectName emits the RDN sequence. Each present field becomes
// SET(SEQUENCE(OID, string)), iterated in the fixed C/ST/L/O/OU/CN order.
func subjectName(s Subject) []byte {
	type attribute struct {
		oid       string
		value     string
		printable bool
	}
	attributes := []attribute{
		{oidCountry, s.Country, true},
		{oidState, s.State, false},
		{oidLocality, s.Locality, false},
		{oidOrganization, s.Organization, false},
		{oidOrganizationalUnit, s.OrganizationalUnit, false},
		{oidCommonName, s.CommonName, false},
	}

	var rdns [][]byte
	for _, a := range attributes {
		if a.value == "" {
			continue
		}
		var encoded []byte
		if a.printable {
			encoded = der.EncodePrintableString(a.value)
		} else {
			encoded = der.EncodeUTF8String(a.value)
		}
		rdns = append(rdns, der.EncodeSet(der.EncodeSequence(
			der.EncodeObjectIdentifier(a.oid),
			encoded,
		)))
	}
	return der.EncodeSequence(rdns...)
}

// subjectPublicKeyInfo wraps the raw PKCS#1 public key (not a nested
// SubjectPublicKeyInfo) in a BIT STRING under the rsaEncryption OID.
func subjectPublicKeyInfo(pub *rsa.PublicKey) []byte {
	pkcs1 := x509.MarshalPKCS1PublicKey(pub)
	return der.EncodeSequence(
		der.EncodeSequence(
			der.EncodeObjectIdentifier(oidRSAEncryption),
			der.EncodeNull(),
		),
		der.EncodeBitString(pkcs1),
	)
}

func signatureAlgorithm() []byte {
	return der.EncodeSequence(
		der.EncodeObjectIdentifier(oidSHA256WithRSAEncryption),
		der.EncodeNull(),
	)
}
