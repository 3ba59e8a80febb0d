package mrz

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	sampleLine1 = "P<USADOE<<JOHN<<<<<<<<<<<<<<<<<<<<<<<<<<<<<"
	sampleLine2 = "L898902C36USA6908061M9406236<<<<<<<<<<<<<<04"
)

func TestCheckDigit(t *testing.T) {
	t.Run("published document number example", func(t *testing.T) {
		require.Equal(t, 6, CheckDigit("L898902C3"))
	})

	t.Run("dates", func(t *testing.T) {
		require.Equal(t, 1, CheckDigit("690806"))
		require.Equal(t, 6, CheckDigit("940623"))
	})

	t.Run("fillers count as zero", func(t *testing.T) {
		require.Equal(t, 0, CheckDigit("<<<<<<<<<<<<<<"))
	})

	t.Run("letter values", func(t *testing.T) {
		// A=10 weighted 7 -> 70 -> 0
		require.Equal(t, 0, CheckDigit("A"))
		// Z=35 weighted 7 -> 245 -> 5
		require.Equal(t, 5, CheckDigit("Z"))
	})
}

func TestParseKnownGoodTD3(t *testing.T) {
	d := Parse([]string{sampleLine1, sampleLine2})
	require.NotNil(t, d)

	require.Equal(t, "P", d.DocumentType)
	require.Equal(t, "USA", d.IssuingCountry)
	require.Equal(t, "DOE", d.Surname)
	require.Equal(t, "JOHN", d.GivenNames)
	require.Equal(t, "L898902C3", d.DocumentNumber)
	require.Equal(t, "USA", d.Nationality)
	require.Equal(t, "690806", d.DateOfBirth)
	require.Equal(t, "M", d.Sex)
	require.Equal(t, "940623", d.DateOfExpiry)
	require.Empty(t, d.PersonalNumber)
	require.True(t, d.PersonalNumberValid)
}

func TestParseMultipleGivenNames(t *testing.T) {
	line1 := "P<UTOERIKSSON<<ANNA<MARIA<<<<<<<<<<<<<<<<<<<"
	line2 := "L898902C36UTO7408122F1204159ZE184226B<<<<<10"

	d := Parse([]string{line1, line2})
	require.NotNil(t, d)
	require.Equal(t, "ERIKSSON", d.Surname)
	require.Equal(t, "ANNA MARIA", d.GivenNames)
	require.Equal(t, "UTO", d.Nationality)
	require.Equal(t, "740812", d.DateOfBirth)
	require.Equal(t, "F", d.Sex)
	require.Equal(t, "ZE184226B", d.PersonalNumber)
	require.True(t, d.PersonalNumberValid)
}

func TestParseScansLinePairs(t *testing.T) {
	lines := []string{
		"REPUBLIC OF UTOPIA",
		"PASSPORT",
		sampleLine1,
		sampleLine2,
	}
	d := Parse(lines)
	require.NotNil(t, d)
	require.Equal(t, "DOE", d.Surname)
}

func TestParseReturnsNil(t *testing.T) {
	t.Run("no lines", func(t *testing.T) {
		require.Nil(t, Parse(nil))
		require.Nil(t, Parse([]string{sampleLine1}))
	})

	t.Run("garbage", func(t *testing.T) {
		require.Nil(t, Parse([]string{"hello", "world"}))
	})

	t.Run("document number check digit mismatch", func(t *testing.T) {
		bad := "L898902C30USA6908061M9406236<<<<<<<<<<<<<<04"
		require.Nil(t, Parse([]string{sampleLine1, bad}))
	})

	t.Run("date of birth check digit mismatch", func(t *testing.T) {
		bad := "L898902C36USA6908069M9406236<<<<<<<<<<<<<<04"
		require.Nil(t, Parse([]string{sampleLine1, bad}))
	})

	t.Run("calendar-invalid date", func(t *testing.T) {
		// month 13, with a matching check digit so only date validation fires
		line2 := []byte(sampleLine2)
		copy(line2[13:19], "691306")
		line2[19] = byte('0' + CheckDigit("691306"))
		require.Nil(t, Parse([]string{sampleLine1, string(line2)}))
	})

	t.Run("wrong line2 length", func(t *testing.T) {
		require.Nil(t, Parse([]string{sampleLine1, sampleLine2 + "<<<"}))
	})
}

func TestParseOCRRecovery(t *testing.T) {
	t.Run("O for zero in date of birth", func(t *testing.T) {
		corrupted := "L898902C36USA69O8O61M9406236<<<<<<<<<<<<<<04"
		d := Parse([]string{sampleLine1, corrupted})
		require.NotNil(t, d)
		require.Equal(t, "690806", d.DateOfBirth)
	})

	t.Run("digit for letter in nationality", func(t *testing.T) {
		corrupted := "L898902C36U5A6908061M9406236<<<<<<<<<<<<<<04"
		d := Parse([]string{sampleLine1, corrupted})
		require.NotNil(t, d)
		require.Equal(t, "USA", d.Nationality)
	})

	t.Run("B for eight in expiry check digit region", func(t *testing.T) {
		corrupted := "L898902C36USA6908061M940623B<<<<<<<<<<<<<<04"
		// '6' expected; B maps to 8, still a mismatch, so no parse
		require.Nil(t, Parse([]string{sampleLine1, corrupted}))
	})

	t.Run("K misread for filler in name padding", func(t *testing.T) {
		// line 1 carries no check digits, so K noise there is only fixable
		// when the pair as a whole needs the recovery pass
		line1 := "P<USADOE<<JOHN<K<<<<<<<<<<<<<<<<<<<<<<<<<<<<"
		line2 := "L898902C36USA69O8O61M9406236<<<<<<<<<<<<<<04"
		d := Parse([]string{line1, line2})
		require.NotNil(t, d)
		require.Equal(t, "JOHN", d.GivenNames)
		require.Equal(t, "690806", d.DateOfBirth)
	})

	t.Run("real letter K between letters survives recovery", func(t *testing.T) {
		line1 := "P<USAKOWALSKI<<JAN<<<<<<<<<<<<<<<<<<<<<<<<<<"
		line2 := "L898902C36USA69O8O61M9406236<<<<<<<<<<<<<<04"
		d := Parse([]string{line1, line2})
		require.NotNil(t, d)
		require.Equal(t, "KOWALSKI", d.Surname)
	})
}

func TestParseDate(t *testing.T) {
	t.Run("pivot below 30 is 20xx", func(t *testing.T) {
		d, err := ParseDate("300101")
		require.NoError(t, err)
		require.Equal(t, 2030, d.Year())
	})

	t.Run("pivot above 30 is 19xx", func(t *testing.T) {
		d, err := ParseDate("310101")
		require.NoError(t, err)
		require.Equal(t, 1931, d.Year())

		d, err = ParseDate("690806")
		require.NoError(t, err)
		require.Equal(t, 1969, d.Year())
	})

	t.Run("rejects invalid calendar dates", func(t *testing.T) {
		_, err := ParseDate("691306")
		require.Error(t, err)
		_, err = ParseDate("69")
		require.Error(t, err)
	})
}
