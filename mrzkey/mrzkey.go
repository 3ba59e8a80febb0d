// Package mrzkey derives the Basic Access Control key input from machine
// readable zone fields: document number, date of birth and date of expiry.
// Two serializations exist. The concatenated 21-character form (9+6+6) is the
// fixed-width input consumed by the chip authentication routine and is not
// self-delimiting. The pipe-delimited form round-trips through
// ParseFormatted and is used for internal transport.
package mrzkey

import (
	"fmt"
	"strings"
	"time"
)

// FormatError indicates input that does not match the expected key or date
// syntax. It is always returned synchronously, never partially applied.
type FormatError struct {
	Input  string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("mrzkey: %s: %q", e.Reason, e.Input)
}

// Key is the validated BAC input triple.
type Key struct {
	DocumentNumber string // 9 characters, '<' padded
	DateOfBirth    string // YYMMDD
	DateOfExpiry   string // YYMMDD
}

// mrzDateLayout parses YYMMDD strictly; time.Parse rejects out-of-range
// months and days.
const mrzDateLayout = "060102"

// dateInputLayouts are tried in order by ConvertDateToMRZFormat.
var dateInputLayouts = []string{
	"060102",
	"20060102",
	"2006-01-02",
	"01/02/2006",
	"02.01.2006",
}

// Generate returns the concatenated 21-character key: cleaned document
// number, date of birth and date of expiry back to back.
func Generate(documentNumber, dateOfBirth, dateOfExpiry string) (string, error) {
	key, err := build(documentNumber, dateOfBirth, dateOfExpiry)
	if err != nil {
		return "", err
	}
	return key.DocumentNumber + key.DateOfBirth + key.DateOfExpiry, nil
}

// GenerateFormatted returns the pipe-delimited "number|dob|doe" form.
func GenerateFormatted(documentNumber, dateOfBirth, dateOfExpiry string) (string, error) {
	key, err := build(documentNumber, dateOfBirth, dateOfExpiry)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s|%s|%s", key.DocumentNumber, key.DateOfBirth, key.DateOfExpiry), nil
}

// ParseFormatted parses the pipe-delimited form back into its parts.
func ParseFormatted(s string) (Key, error) {
	parts := strings.Split(s, "|")
	if len(parts) != 3 {
		return Key{}, &FormatError{Input: s, Reason: "expected 3 pipe-delimited parts"}
	}
	return build(parts[0], parts[1], parts[2])
}

// Validate reports whether s is plausible key material: long enough to hold
// a document number and two dates, with both trailing dates parseable.
func Validate(s string) bool {
	if len(s) < 15 {
		return false
	}
	dob := s[len(s)-12 : len(s)-6]
	doe := s[len(s)-6:]
	if _, err := time.Parse(mrzDateLayout, dob); err != nil {
		return false
	}
	if _, err := time.Parse(mrzDateLayout, doe); err != nil {
		return false
	}
	return true
}

// ConvertDateToMRZFormat re-renders a date string in one of the accepted
// input layouts as YYMMDD.
func ConvertDateToMRZFormat(s string) (string, error) {
	trimmed := strings.TrimSpace(s)
	for _, layout := range dateInputLayouts {
		if len(trimmed) != len(layout) {
			continue
		}
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t.Format(mrzDateLayout), nil
		}
	}
	return "", &FormatError{Input: s, Reason: "date matches no accepted format"}
}

func build(documentNumber, dateOfBirth, dateOfExpiry string) (Key, error) {
	dob, err := cleanDate(dateOfBirth)
	if err != nil {
		return Key{}, err
	}
	doe, err := cleanDate(dateOfExpiry)
	if err != nil {
		return Key{}, err
	}
	return Key{
		DocumentNumber: cleanDocumentNumber(documentNumber),
		DateOfBirth:    dob,
		DateOfExpiry:   doe,
	}, nil
}

// cleanDocumentNumber keeps [A-Z0-9] only, then right-pads with '<' to 9
// characters or truncates to 9.
func cleanDocumentNumber(s string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(s) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if len(cleaned) > 9 {
		return cleaned[:9]
	}
	return cleaned + strings.Repeat("<", 9-len(cleaned))
}

// cleanDate strips non-digits and requires a calendar-valid YYMMDD.
func cleanDate(s string) (string, error) {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if len(cleaned) != 6 {
		return "", &FormatError{Input: s, Reason: "date must be exactly 6 digits"}
	}
	if _, err := time.Parse(mrzDateLayout, cleaned); err != nil {
		return "", &FormatError{Input: s, Reason: "date is not a valid YYMMDD calendar date"}
	}
	return cleaned, nil
}
