package logammulia

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const locationDocument = `
<html><body>
<select id="location" name="location">
	<option value="">Pilih lokasi Butik Emas Logam Mulia</option>
	<option value="ABDG">BELM - Bandung, Bandung</option>
	<option value="AJK2">BELM - Gedung Antam Jakarta, Jakarta</option>
	<option value="ASB1">BELM - Surabaya 1, Surabaya</option>
	<option value="APKU">BELM - Pekanbaru (Pengambilan Di Butik), Pekanbaru</option>
	<option value="ABPN">BELM - Balikpapan (Pengiriman Ekspedisi), Balikpapan</option>
</select>
</body></html>
`

func TestParseDirectory(t *testing.T) {
	dir, err := ParseDirectory(strings.NewReader(locationDocument))
	require.NoError(t, err)

	// the sentinel option is not a branch
	require.Len(t, dir.Branches(), 5)

	bandung, ok := dir.ByCode("ABDG")
	require.True(t, ok)
	require.Equal(t, Branch{
		Code:        "ABDG",
		Name:        "Bandung",
		City:        "Bandung",
		Type:        BRANCH_REGULAR,
		CanShip:     true,
		FullAddress: "BELM - Bandung, Bandung",
	}, bandung)

	jakarta, ok := dir.ByCode("AJK2")
	require.True(t, ok)
	require.Equal(t, "Gedung Antam Jakarta", jakarta.Name)
	require.Equal(t, "Jakarta", jakarta.City)

	_, ok = dir.ByCode("NOPE")
	require.False(t, ok)
}

func TestParseDirectoryBranchTypes(t *testing.T) {
	dir, err := ParseDirectory(strings.NewReader(locationDocument))
	require.NoError(t, err)

	pickup, ok := dir.ByCode("APKU")
	require.True(t, ok)
	require.Equal(t, BRANCH_PICKUP_ONLY, pickup.Type)
	require.False(t, pickup.CanShip)
	// the capability suffix is stripped from the display name
	require.Equal(t, "Pekanbaru", pickup.Name)

	shipping, ok := dir.ByCode("ABPN")
	require.True(t, ok)
	require.Equal(t, BRANCH_SHIPPING_ONLY, shipping.Type)
	require.True(t, shipping.CanShip)
	require.Equal(t, "Balikpapan", shipping.Name)
}

func TestParseDirectoryLowercasePickupPhrase(t *testing.T) {
	// some options carry the pickup phrase with a lowercase first word
	dir, err := ParseDirectory(strings.NewReader(`
<html><body>
<select id="location" name="location">
	<option value="">Pilih lokasi Butik Emas Logam Mulia</option>
	<option value="AMDN">BELM - Medan (pengambilan Di Butik), Medan</option>
</select>
</body></html>`))
	require.NoError(t, err)

	medan, ok := dir.ByCode("AMDN")
	require.True(t, ok)
	require.Equal(t, BRANCH_PICKUP_ONLY, medan.Type)
	require.False(t, medan.CanShip)
	require.Equal(t, "Medan", medan.Name)
}

func TestParseDirectoryGroupings(t *testing.T) {
	dir, err := ParseDirectory(strings.NewReader(locationDocument))
	require.NoError(t, err)

	byCity := dir.ByCity()
	require.Len(t, byCity["Bandung"], 1)
	require.Len(t, byCity["Jakarta"], 1)

	require.Len(t, dir.ShippingBranches(), 4)
	require.Len(t, dir.PickupOnlyBranches(), 1)
}

func TestParseDirectoryMissingSelect(t *testing.T) {
	_, err := ParseDirectory(strings.NewReader(`<html><body><p>maintenance</p></body></html>`))
	require.Error(t, err)
}
