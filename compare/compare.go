// Package compare cross-validates barcode-extracted license data against
// independently OCR-extracted text fields. The verdict threshold is a
// business rule, not a cryptographic guarantee, and is configurable.
package compare

import (
	"fmt"
	"strings"

	"go-docverify/aamva"
)

// DefaultThreshold is the minimum match ratio for a positive verdict.
const DefaultThreshold = 0.70

// OCR field keys understood by Compare. A "full_text" entry may carry the
// raw recognized text blob used as a containment fallback.
const (
	FieldFirstName      = "first_name"
	FieldLastName       = "last_name"
	FieldLicenseNumber  = "license_number"
	FieldDateOfBirth    = "date_of_birth"
	FieldExpirationDate = "expiration_date"
	FieldStreet         = "street"
	FieldCity           = "city"
	FieldState          = "state"
	FieldZip            = "zip"
	FieldFullText       = "full_text"
)

// Result is the outcome of one comparison. Derived value, recomputed per
// call, never persisted.
type Result struct {
	IsMatch         bool     `json:"is_match"`
	MatchPercentage float64  `json:"match_percentage"`
	MatchedFields   []string `json:"matched_fields"`
	UnmatchedFields []string `json:"unmatched_fields"`
	Details         string   `json:"details"`
}

// Comparer holds the verdict threshold.
type Comparer struct {
	Threshold float64
}

// New returns a Comparer with the default threshold.
func New() *Comparer {
	return &Comparer{Threshold: DefaultThreshold}
}

// Compare checks the nine comparable field pairs. A field counts as
// comparable when the barcode side is present and the OCR side has either
// the structured field or a full-text blob to fall back on. Zip codes
// compare on their first five characters only.
func (c *Comparer) Compare(ocrFields map[string]string, barcode aamva.Data) Result {
	pairs := []struct {
		label   string
		ocrKey  string
		barcode string
		zip     bool
	}{
		{"first name", FieldFirstName, barcode.FirstName, false},
		{"last name", FieldLastName, barcode.LastName, false},
		{"license number", FieldLicenseNumber, barcode.LicenseNumber, false},
		{"date of birth", FieldDateOfBirth, barcode.DateOfBirth, false},
		{"expiration date", FieldExpirationDate, barcode.ExpirationDate, false},
		{"street", FieldStreet, barcode.Street, false},
		{"city", FieldCity, barcode.City, false},
		{"state", FieldState, barcode.State, false},
		{"zip", FieldZip, barcode.Zip, true},
	}

	fullText := normalize(ocrFields[FieldFullText])

	var result Result
	comparable := 0
	for _, p := range pairs {
		barcodeValue := normalize(p.barcode)
		if p.zip {
			barcodeValue = zipPrefix(barcodeValue)
		}
		if barcodeValue == "" {
			continue
		}

		ocrValue, ok := ocrFields[p.ocrKey]
		switch {
		case ok && normalize(ocrValue) != "":
			comparable++
			normalized := normalize(ocrValue)
			if p.zip {
				normalized = zipPrefix(normalized)
			}
			if normalized == barcodeValue {
				result.MatchedFields = append(result.MatchedFields, p.label)
			} else {
				result.UnmatchedFields = append(result.UnmatchedFields, p.label)
			}
		case fullText != "":
			// weaker signal: the barcode value appearing anywhere in the
			// recognized text blob
			comparable++
			if strings.Contains(fullText, barcodeValue) {
				result.MatchedFields = append(result.MatchedFields, p.label)
			} else {
				result.UnmatchedFields = append(result.UnmatchedFields, p.label)
			}
		}
	}

	if comparable > 0 {
		result.MatchPercentage = float64(len(result.MatchedFields)) / float64(comparable)
	}
	result.IsMatch = comparable > 0 && result.MatchPercentage >= c.Threshold
	result.Details = fmt.Sprintf(
		"matched %d of %d comparable fields (%.0f%%); matched: %s; unmatched: %s",
		len(result.MatchedFields), comparable, result.MatchPercentage*100,
		joinOrNone(result.MatchedFields), joinOrNone(result.UnmatchedFields),
	)
	return result
}

// normalize strips all whitespace and lowercases, so OCR spacing quirks do
// not defeat equality.
func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), ""))
}

func zipPrefix(s string) string {
	if len(s) > 5 {
		return s[:5]
	}
	return s
}

func joinOrNone(fields []string) string {
	if len(fields) == 0 {
		return "none"
	}
	return strings.Join(fields, ", ")
}
