// Package mrz parses the machine readable zone of TD3 travel documents from
// OCR-recognized text lines, per ICAO Doc 9303. Parsing is attempted against
// successive camera frames, so an unparseable input is the steady state:
// Parse returns nil rather than an error and the caller keeps scanning.
//
// A strict pass runs first. When it fails, a recovery pass retries with the
// common OCR substitutions (O/0, I/1, B/8, K/<) applied per field class.
package mrz

import (
	"fmt"
	"strings"
	"time"
)

const lineLength = 44

// Data holds the parsed TD3 fields. Constructed once per successful parse
// and immutable thereafter.
type Data struct {
	DocumentType   string
	IssuingCountry string
	Surname        string
	GivenNames     string
	DocumentNumber string
	Nationality    string
	DateOfBirth    string // YYMMDD
	Sex            string // M, F or X
	DateOfExpiry   string // YYMMDD
	PersonalNumber string

	DocumentNumberCheck byte
	DateOfBirthCheck    byte
	DateOfExpiryCheck   byte
	PersonalNumberCheck byte
	CompositeCheck      byte

	// PersonalNumberValid and CompositeValid record the outcome of the two
	// checks that tolerate OCR noise without rejecting the parse. The three
	// per-field checks (document number, dates) are hard requirements.
	PersonalNumberValid bool
	CompositeValid      bool

	Line1 string
	Line2 string
}

// Parse scans the given OCR lines for an adjacent TD3 line pair. It returns
// nil when no pair satisfies the grammar even after OCR recovery.
func Parse(lines []string) *Data {
	normalized := make([]string, len(lines))
	for i, line := range lines {
		normalized[i] = strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(line), " ", ""))
	}

	for i := 0; i+1 < len(normalized); i++ {
		line1, line2 := normalized[i], normalized[i+1]
		if d := parsePair(line1, line2); d != nil {
			return d
		}
		if d := parsePair(recoverLine1(line1), recoverLine2(line2)); d != nil {
			return d
		}
	}
	return nil
}

// CheckDigit computes the ICAO 9303 check digit: weighted sum mod 10 with
// weights cycling 7,3,1. Digits count as themselves, letters as their
// alphabet position plus 10, filler '<' as 0.
func CheckDigit(s string) int {
	weights := [3]int{7, 3, 1}
	sum := 0
	for i := 0; i < len(s); i++ {
		sum += charValue(s[i]) * weights[i%3]
	}
	return sum % 10
}

// ParseDate interprets a YYMMDD field with the fixed century pivot: two-digit
// years up to 30 map to 20xx, later ones to 19xx.
func ParseDate(yymmdd string) (time.Time, error) {
	if len(yymmdd) != 6 {
		return time.Time{}, fmt.Errorf("mrz: date %q is not 6 digits", yymmdd)
	}
	t, err := time.Parse("060102", yymmdd)
	if err != nil {
		return time.Time{}, fmt.Errorf("mrz: invalid date %q: %w", yymmdd, err)
	}
	year := t.Year() % 100
	if year <= 30 {
		return time.Date(2000+year, t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	return time.Date(1900+year, t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

func parsePair(line1, line2 string) *Data {
	// Trailing fillers of line 1 are routinely dropped by OCR.
	if len(line1) >= 5 && len(line1) < lineLength {
		line1 += strings.Repeat("<", lineLength-len(line1))
	}
	if len(line1) != lineLength || len(line2) != lineLength {
		return nil
	}
	if !validCharset(line1) || !validCharset(line2) {
		return nil
	}
	if line1[0] != 'P' {
		return nil
	}
	if !alphaOnly(line1[2:5]) || !alphaOnly(line2[10:13]) {
		return nil
	}

	docTypeField := line1[0:2]
	issuingCountry := line1[2:5]
	surname, givenNames := splitNames(line1[5:])

	documentNumber := line2[0:9]
	docCheck := line2[9]
	nationality := line2[10:13]
	dateOfBirth := line2[13:19]
	dobCheck := line2[19]
	sex := line2[20]
	dateOfExpiry := line2[21:27]
	doeCheck := line2[27]
	personalNumber := line2[28:42]
	personalCheck := line2[42]
	compositeCheck := line2[43]

	if !digitsOnly(dateOfBirth) || !digitsOnly(dateOfExpiry) {
		return nil
	}
	if !checkDigitMatches(documentNumber, docCheck) {
		return nil
	}
	if !checkDigitMatches(dateOfBirth, dobCheck) {
		return nil
	}
	if !checkDigitMatches(dateOfExpiry, doeCheck) {
		return nil
	}
	if _, err := ParseDate(dateOfBirth); err != nil {
		return nil
	}
	if _, err := ParseDate(dateOfExpiry); err != nil {
		return nil
	}
	if sex != 'M' && sex != 'F' && sex != 'X' && sex != '<' {
		return nil
	}

	// Empty personal numbers may carry '<' in place of the check digit.
	personalValid := checkDigitMatches(personalNumber, personalCheck) ||
		(strings.Trim(personalNumber, "<") == "" && personalCheck == '<')
	composite := line2[0:10] + line2[13:20] + line2[21:43]
	compositeValid := checkDigitMatches(composite, compositeCheck)

	sexStr := string(sex)
	if sex == '<' {
		sexStr = "X"
	}

	return &Data{
		DocumentType:        strings.Trim(docTypeField, "<"),
		IssuingCountry:      strings.Trim(issuingCountry, "<"),
		Surname:             surname,
		GivenNames:          givenNames,
		DocumentNumber:      strings.Trim(documentNumber, "<"),
		Nationality:         strings.Trim(nationality, "<"),
		DateOfBirth:         dateOfBirth,
		Sex:                 sexStr,
		DateOfExpiry:        dateOfExpiry,
		PersonalNumber:      strings.Trim(personalNumber, "<"),
		DocumentNumberCheck: docCheck,
		DateOfBirthCheck:    dobCheck,
		DateOfExpiryCheck:   doeCheck,
		PersonalNumberCheck: personalCheck,
		CompositeCheck:      compositeCheck,
		PersonalNumberValid: personalValid,
		CompositeValid:      compositeValid,
		Line1:               line1,
		Line2:               line2,
	}
}

// splitNames separates the 39-character name field into surname and given
// names. The surname ends at the first "<<"; given names are '<'-separated.
func splitNames(field string) (surname, givenNames string) {
	parts := strings.SplitN(field, "<<", 2)
	surname = strings.ReplaceAll(strings.Trim(parts[0], "<"), "<", " ")
	if len(parts) == 2 {
		givenNames = strings.Join(strings.FieldsFunc(parts[1], func(r rune) bool {
			return r == '<'
		}), " ")
	}
	return surname, givenNames
}

func checkDigitMatches(field string, check byte) bool {
	if check < '0' || check > '9' {
		return false
	}
	return CheckDigit(field) == int(check-'0')
}

func charValue(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'A' && c <= 'Z':
		return int(c-'A') + 10
	default:
		return 0
	}
}

func validCharset(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') && c != '<' {
			return false
		}
	}
	return true
}

func alphaOnly(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < 'A' || c > 'Z') && c != '<' {
			return false
		}
	}
	return true
}

func digitsOnly(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// letterForDigit and digitForLetter map the substitutions OCR engines most
// often confuse on the OCR-B typeface.
var letterForDigit = map[byte]byte{'0': 'O', '1': 'I', '8': 'B', '5': 'S'}
var digitForLetter = map[byte]byte{'O': '0', 'I': '1', 'B': '8', 'S': '5'}

// recoverLine1 repairs the alphabetic regions of line 1: the issuing-state
// code must be letters, and stray K characters in the name padding are
// misread fillers.
func recoverLine1(line string) string {
	if len(line) < 5 {
		return line
	}
	b := []byte(line)
	for i := 2; i < 5 && i < len(b); i++ {
		if r, ok := letterForDigit[b[i]]; ok {
			b[i] = r
		}
	}
	// In the name field a K adjacent to a filler is almost always a
	// misread '<'; a real K sits between letters.
	for i := 5; i < len(b); i++ {
		if b[i] != 'K' {
			continue
		}
		prevFiller := i > 5 && b[i-1] == '<'
		nextFiller := i+1 >= len(b) || b[i+1] == '<'
		if prevFiller || nextFiller {
			b[i] = '<'
		}
	}
	return string(b)
}

// recoverLine2 repairs line 2 by field class: date and check-digit positions
// must be digits, the nationality must be letters, and the personal-number
// padding cannot contain K.
func recoverLine2(line string) string {
	if len(line) != lineLength {
		return line
	}
	b := []byte(line)

	digitPositions := []int{9, 19, 27, 43}
	for _, i := range digitPositions {
		if r, ok := digitForLetter[b[i]]; ok {
			b[i] = r
		}
	}
	// The personal-number check digit may legitimately be a filler.
	if b[42] != '<' {
		if r, ok := digitForLetter[b[42]]; ok {
			b[42] = r
		}
	}
	for i := 13; i < 19; i++ {
		if r, ok := digitForLetter[b[i]]; ok {
			b[i] = r
		}
	}
	for i := 21; i < 27; i++ {
		if r, ok := digitForLetter[b[i]]; ok {
			b[i] = r
		}
	}
	for i := 10; i < 13; i++ {
		if r, ok := letterForDigit[b[i]]; ok {
			b[i] = r
		}
	}
	for i := 28; i < 42; i++ {
		if b[i] == 'K' && (b[i-1] == '<' || i+1 == 42 || b[i+1] == '<') {
			b[i] = '<'
		}
	}
	return string(b)
}
