package aamva

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// The Canadian grammar is delimiter-based magnetic-track data replicated
// into the barcode. Positions are not governed by a published AAMVA
// specification; the token-shape heuristics below are best-effort and
// calibrated against real-world payloads.

var (
	canadaLicensePattern = regexp.MustCompile(`;[^=]*?(\d{6,})`)
	canadaDatesPattern   = regexp.MustCompile(`=(\d{6})(\d{6})`)
	canadaPostalPattern  = regexp.MustCompile(`^[A-Z]\d[A-Z]\d[A-Z]\d$`)
	threeLetterPattern   = regexp.MustCompile(`^[A-Z]{3}$`)
)

func parseCanadian(payload string) Data {
	d := Data{Country: "CAN"}

	parseCanadianName(payload, &d)

	if street := between(payload, "^", "$"); street != "" {
		d.Street = strings.TrimSpace(street)
	}

	parseCanadianCityLine(payload, &d)

	if m := canadaLicensePattern.FindStringSubmatch(payload); m != nil {
		d.LicenseNumber = m[1]
	}

	if m := canadaDatesPattern.FindStringSubmatch(payload); m != nil {
		d.DateOfBirth = normalizeTrackDate(m[1], false)
		d.ExpirationDate = normalizeTrackDate(m[2], true)
	}

	parseCanadianPhysical(payload, &d)

	return d
}

// parseCanadianName extracts the surname between the %BC sentinel and the
// first $, and the given names between that $ and the address ^.
func parseCanadianName(payload string, d *Data) {
	surname := between(payload, "%BC", "$")
	surname = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(surname), ","))
	if surname != "" {
		d.LastName = surname
	}

	afterName := payload
	if idx := strings.Index(payload, "$"); idx >= 0 {
		afterName = payload[idx+1:]
	}
	given := strings.TrimSpace(between(afterName, "", "^"))
	if given == "" {
		return
	}
	names := strings.Fields(given)
	d.FirstName = names[0]
	if len(names) > 1 {
		d.MiddleName = strings.Join(names[1:], " ")
	}
}

// parseCanadianCityLine splits the segment between the address $ and the
// track terminator ? into city, province and postal code. The last token
// shaped like a postal code wins; a 2-letter token just before it is the
// province; everything earlier is the city.
func parseCanadianCityLine(payload string, d *Data) {
	idx := strings.Index(payload, "^")
	if idx < 0 {
		return
	}
	section := payload[idx:]
	start := strings.Index(section, "$")
	if start < 0 {
		return
	}
	segment := between(section[start+1:], "", "?")
	tokens := strings.Fields(strings.TrimSpace(segment))
	if len(tokens) == 0 {
		return
	}

	last := len(tokens)
	if canadaPostalPattern.MatchString(tokens[last-1]) {
		d.Zip = tokens[last-1]
		last--
	} else if last >= 2 && canadaPostalPattern.MatchString(tokens[last-2]+tokens[last-1]) {
		// postal code split into its two halves
		d.Zip = tokens[last-2] + tokens[last-1]
		last -= 2
	}
	if last >= 1 && len(tokens[last-1]) == 2 && isAlpha(tokens[last-1]) {
		d.State = tokens[last-1]
		last--
	}
	if last >= 1 {
		d.City = strings.Join(tokens[:last], " ")
	}
}

// parseCanadianPhysical sniffs the discretionary section after the first ?
// for physical attributes by token shape: a lone M/F is the sex, a 4-digit
// token starting with 1 is height in tenths of a centimeter, a 2-3 digit
// token between 30 and 200 is weight in kilograms, and the first two
// distinct 3-letter alphabetic tokens are eye then hair color. Metric
// values convert to the imperial units used on US cards.
func parseCanadianPhysical(payload string, d *Data) {
	idx := strings.Index(payload, "?")
	if idx < 0 || idx+1 >= len(payload) {
		return
	}
	tokens := strings.FieldsFunc(payload[idx+1:], func(r rune) bool {
		return r == ' ' || r == ';' || r == '=' || r == '?' || r == '%'
	})

	for _, token := range tokens {
		switch {
		case (token == "M" || token == "F") && d.Sex == "":
			d.Sex = token
		case d.Height == "" && len(token) == 4 && token[0] == '1' && isDigits(token):
			tenths, _ := strconv.Atoi(token)
			cm := float64(tenths) / 10
			d.Height = fmt.Sprintf("%d", int(math.Round(cm/2.54)))
		case d.Weight == "" && len(token) >= 2 && len(token) <= 3 && isDigits(token):
			kg, _ := strconv.Atoi(token)
			if kg >= 30 && kg <= 200 {
				d.Weight = fmt.Sprintf("%d", int(math.Round(float64(kg)*2.20462)))
			}
		case threeLetterPattern.MatchString(token):
			if d.EyeColor == "" {
				d.EyeColor = token
			} else if d.HairColor == "" && token != d.EyeColor {
				d.HairColor = token
			}
		}
	}
}

// normalizeTrackDate renders an MMDDYY track date as MM/DD/YYYY. Birth
// years pivot at 30; expiry dates on live cards are always 20xx.
func normalizeTrackDate(mmddyy string, expiry bool) string {
	mm, dd, yy := mmddyy[0:2], mmddyy[2:4], mmddyy[4:6]
	year, err := strconv.Atoi(yy)
	if err != nil {
		return mmddyy
	}
	century := "19"
	if expiry || year <= 30 {
		century = "20"
	}
	return fmt.Sprintf("%s/%s/%s%s", mm, dd, century, yy)
}

// between returns the substring after the first occurrence of a and before
// the next occurrence of b. An empty a anchors at the start. Returns ""
// when either delimiter is missing.
func between(s, a, b string) string {
	start := 0
	if a != "" {
		idx := strings.Index(s, a)
		if idx < 0 {
			return ""
		}
		start = idx + len(a)
	}
	rest := s[start:]
	end := strings.Index(rest, b)
	if end < 0 {
		return ""
	}
	return rest[:end]
}

func isAlpha(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return false
		}
	}
	return true
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
