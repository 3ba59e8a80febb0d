package aamva

import (
	"regexp"
	"strings"
)

// AAMVA element codes, scanned over the whole payload. Values run to the
// end of the line.
var usElementPattern = regexp.MustCompile(`(D[A-Z]{2})([^\n\r]*)`)

// Some state cards carry the license number in the subfile header right
// after the "DL" designator instead of as a body element. A leading L in the
// captured value is part of the number (the DLDAQL case), not a code.
var usHeaderLicensePattern = regexp.MustCompile(`DLDAQ([^\n\r]*)`)

func parseUS(payload string) Data {
	payload = strings.TrimPrefix(payload, "@\n")

	elements := map[string]string{}
	for _, m := range usElementPattern.FindAllStringSubmatch(payload, -1) {
		code, value := m[1], strings.TrimSpace(m[2])
		if _, seen := elements[code]; !seen {
			elements[code] = value
		}
	}

	d := Data{
		FirstName:             elements["DAC"],
		MiddleName:            elements["DAD"],
		LastName:              elements["DCS"],
		Street:                elements["DAG"],
		City:                  elements["DAI"],
		State:                 elements["DAJ"],
		Country:               elements["DCG"],
		Zip:                   elements["DAK"],
		DateOfBirth:           normalizeDate(elements["DBB"]),
		IssueDate:             normalizeDate(elements["DBD"]),
		ExpirationDate:        normalizeDate(elements["DBA"]),
		LicenseClass:          elements["DCA"],
		Sex:                   normalizeSex(elements["DBC"]),
		EyeColor:              elements["DAY"],
		HairColor:             elements["DAZ"],
		Height:                elements["DAU"],
		Weight:                elements["DAW"],
		Restrictions:          elements["DCB"],
		DocumentDiscriminator: elements["DCF"],
		RevisionDate:          elements["DDB"],
	}

	d.LicenseNumber = elements["DAQ"]
	if m := usHeaderLicensePattern.FindStringSubmatch(payload); m != nil {
		if header := strings.TrimSpace(m[1]); header != "" {
			d.LicenseNumber = header
		}
	}

	// DDA "F" marks a fully REAL ID compliant card.
	d.RealID = elements["DDA"] == "F"
	// DDC is the hazmat endorsement expiry; any real value implies the
	// endorsement is held.
	if v := elements["DDC"]; v != "" && v != "NONE" {
		d.Hazmat = true
	}

	return d
}

// normalizeSex maps the ANSI D20 codes to M/F/X; unknown values pass
// through so the caller can still display them.
func normalizeSex(s string) string {
	switch s {
	case "1", "M":
		return "M"
	case "2", "F":
		return "F"
	case "9", "X":
		return "X"
	default:
		return s
	}
}
