// Package aamva parses decoded PDF417 payloads from US and Canadian driver's
// licenses. Two sub-grammars exist: the AAMVA element-code format used by US
// jurisdictions and the delimiter-based track format used by Canadian
// provinces. Every field is independently optional; a malformed field never
// prevents extraction of the others, since partial data is the expected
// steady state while a live scan completes.
package aamva

import (
	"strings"
	"time"

	"golang.org/x/text/encoding/charmap"
)

// Data holds the extracted license fields. An empty string means the field
// was absent from the payload; no placeholder values are ever produced.
type Data struct {
	LicenseNumber string
	FirstName     string
	MiddleName    string
	LastName      string

	Street  string
	City    string
	State   string
	Country string
	Zip     string

	DateOfBirth    string // MM/DD/YYYY
	IssueDate      string // MM/DD/YYYY
	ExpirationDate string // MM/DD/YYYY

	LicenseClass string
	Sex          string
	EyeColor     string
	HairColor    string
	Height       string // inches
	Weight       string // pounds

	Restrictions          string
	DocumentDiscriminator string
	RevisionDate          string

	RealID bool
	Hazmat bool
}

// Parse dispatches on the payload's format signature: payloads carrying both
// the %BC sentinel and a $ delimiter use the Canadian track grammar,
// everything else the US AAMVA element grammar.
func Parse(payload string) Data {
	if strings.Contains(payload, "%BC") && strings.Contains(payload, "$") {
		return parseCanadian(payload)
	}
	return parseUS(payload)
}

// DecodePayload converts raw scanner bytes to text. PDF417 payloads are
// Latin-1 on many cards, which is not valid UTF-8 for accented names.
func DecodePayload(raw []byte) (string, error) {
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

// normalizeDate reformats an 8-digit MMDDYYYY value as MM/DD/YYYY. Anything
// else, including calendar-invalid input, passes through verbatim rather
// than failing the surrounding parse.
func normalizeDate(s string) string {
	if len(s) != 8 {
		return s
	}
	t, err := time.Parse("01022006", s)
	if err != nil {
		return s
	}
	return t.Format("01/02/2006")
}
