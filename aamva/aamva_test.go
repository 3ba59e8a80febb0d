package aamva

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const usPayload = "@\n" +
	"ANSI 636014040002DL00410278\n" +
	"DAQD1234567\n" +
	"DCSSAMPLE\n" +
	"DACALEXANDER\n" +
	"DADQUINCY\n" +
	"DBB08241970\n" +
	"DBA08242030\n" +
	"DBD09152022\n" +
	"DAG1234 ANY STREET\n" +
	"DAISACRAMENTO\n" +
	"DAJCA\n" +
	"DAK958180000\n" +
	"DCGUSA\n" +
	"DCAC\n" +
	"DBC1\n" +
	"DAYBRN\n" +
	"DAZBLK\n" +
	"DAU068 in\n" +
	"DAW180\n" +
	"DCBNONE\n" +
	"DCF83D9BN217QO983B1\n" +
	"DDAF\n" +
	"DDB02142014\n"

func TestParseUS(t *testing.T) {
	d := Parse(usPayload)

	require.Equal(t, "D1234567", d.LicenseNumber)
	require.Equal(t, "SAMPLE", d.LastName)
	require.Equal(t, "ALEXANDER", d.FirstName)
	require.Equal(t, "QUINCY", d.MiddleName)
	require.Equal(t, "08/24/1970", d.DateOfBirth)
	require.Equal(t, "08/24/2030", d.ExpirationDate)
	require.Equal(t, "09/15/2022", d.IssueDate)
	require.Equal(t, "1234 ANY STREET", d.Street)
	require.Equal(t, "SACRAMENTO", d.City)
	require.Equal(t, "CA", d.State)
	require.Equal(t, "958180000", d.Zip)
	require.Equal(t, "USA", d.Country)
	require.Equal(t, "C", d.LicenseClass)
	require.Equal(t, "M", d.Sex)
	require.Equal(t, "BRN", d.EyeColor)
	require.Equal(t, "BLK", d.HairColor)
	require.Equal(t, "068 in", d.Height)
	require.Equal(t, "180", d.Weight)
	require.Equal(t, "NONE", d.Restrictions)
	require.Equal(t, "83D9BN217QO983B1", d.DocumentDiscriminator)
	require.Equal(t, "02142014", d.RevisionDate)
	require.True(t, d.RealID)
	require.False(t, d.Hazmat)
}

func TestParseUSLicenseNumberOnly(t *testing.T) {
	d := Parse("DAQD1234567")
	require.Equal(t, "D1234567", d.LicenseNumber)
	require.Empty(t, d.LastName)
	require.Empty(t, d.DateOfBirth)
}

func TestParseUSHeaderLicenseNumber(t *testing.T) {
	t.Run("DLDAQ header", func(t *testing.T) {
		d := Parse("@\nANSI 636000090002DLDAQ1234567\nDCSDOE\n")
		require.Equal(t, "1234567", d.LicenseNumber)
		require.Equal(t, "DOE", d.LastName)
	})

	t.Run("DLDAQL header keeps the leading L", func(t *testing.T) {
		d := Parse("@\nANSI 636000090002DLDAQL9876543\nDCSDOE\n")
		require.Equal(t, "L9876543", d.LicenseNumber)
	})
}

func TestParseUSMalformedDatePassesThrough(t *testing.T) {
	d := Parse("DAQX1\nDBB13451970\n")
	require.Equal(t, "13451970", d.DateOfBirth)
}

func TestParseUSSexCodes(t *testing.T) {
	require.Equal(t, "M", Parse("DBC1\n").Sex)
	require.Equal(t, "F", Parse("DBC2\n").Sex)
	require.Equal(t, "F", Parse("DBCF\n").Sex)
	require.Equal(t, "X", Parse("DBC9\n").Sex)
	require.Empty(t, Parse("DAQX1\n").Sex)
}

func TestParseUSHazmat(t *testing.T) {
	require.True(t, Parse("DDC08242026\n").Hazmat)
	require.False(t, Parse("DDCNONE\n").Hazmat)
	require.False(t, Parse("DAQX1\n").Hazmat)
}

const canadianPayload = "%BC SMITH,$JANE MARIE^123 MAIN ST$VANCOUVER BC V5K0A1?" +
	";6360286012345678=060869061525=?M 1750 70 BRN BLU"

func TestParseCanadian(t *testing.T) {
	d := Parse(canadianPayload)

	require.Equal(t, "SMITH", d.LastName)
	require.Equal(t, "JANE", d.FirstName)
	require.Equal(t, "MARIE", d.MiddleName)
	require.Equal(t, "123 MAIN ST", d.Street)
	require.Equal(t, "VANCOUVER", d.City)
	require.Equal(t, "BC", d.State)
	require.Equal(t, "V5K0A1", d.Zip)
	require.Equal(t, "CAN", d.Country)
	require.Equal(t, "6360286012345678", d.LicenseNumber)
	require.Equal(t, "06/08/1969", d.DateOfBirth)
	require.Equal(t, "06/15/2025", d.ExpirationDate)
	require.Equal(t, "M", d.Sex)
	require.Equal(t, "69", d.Height)  // 175.0 cm
	require.Equal(t, "154", d.Weight) // 70 kg
	require.Equal(t, "BRN", d.EyeColor)
	require.Equal(t, "BLU", d.HairColor)
}

func TestParseCanadianMinimal(t *testing.T) {
	d := Parse("%BC SMITH,$JANE MARIE^123 MAIN ST$VANCOUVER BC V5K0A1?")

	require.NotEmpty(t, d.FirstName)
	require.NotEmpty(t, d.LastName)
	require.NotEmpty(t, d.Street)
	require.Equal(t, "VANCOUVER", d.City)
	require.Equal(t, "BC", d.State)
	require.Equal(t, "V5K0A1", d.Zip)
	require.Empty(t, d.LicenseNumber)
	require.Empty(t, d.DateOfBirth)
}

func TestParseCanadianSplitPostalCode(t *testing.T) {
	d := Parse("%BC LEE,$SAM^45 OAK AVE$VICTORIA BC V8W 1P6?")
	require.Equal(t, "V8W1P6", d.Zip)
	require.Equal(t, "BC", d.State)
	require.Equal(t, "VICTORIA", d.City)
}

func TestParseCanadianNoPhysicalSection(t *testing.T) {
	d := Parse("%BC DOE,$JOHN^1 ELM ST$SURREY BC V3T2W1?")
	require.Empty(t, d.Sex)
	require.Empty(t, d.Height)
	require.Empty(t, d.Weight)
}

func TestDispatch(t *testing.T) {
	t.Run("canadian signature requires both markers", func(t *testing.T) {
		// %BC without $ is not the Canadian track format
		d := Parse("DAQ%BC123\n")
		require.Equal(t, "%BC123", d.LicenseNumber)
	})
}

func TestDecodePayload(t *testing.T) {
	// 0xC9 is É in Latin-1 and invalid as a UTF-8 start byte
	raw := []byte{'D', 'C', 'S', 0xC9, 'T', 'U', 'D', 'E'}
	decoded, err := DecodePayload(raw)
	require.NoError(t, err)
	require.Equal(t, "DCSÉTUDE", decoded)

	d := Parse(decoded)
	require.Equal(t, "ÉTUDE", d.LastName)
}
