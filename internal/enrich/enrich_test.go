package enrich

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adsb1090/internal/adsb"
)

func addr(t *testing.T, hex string) adsb.IcaoAddress {
	t.Helper()
	a, ok := adsb.IcaoFromHex(hex)
	require.True(t, ok)
	return a
}

func TestClassifyAircraft(t *testing.T) {
	tests := []struct {
		name string
		p    Profile
		want Category
	}{
		{"fast jet", Profile{AvgSpeedKt: 300, AvgAltitudeFt: 35000, HasSpeed: true, HasAltitude: true}, CatJet},
		{"low prop", Profile{AvgSpeedKt: 120, AvgAltitudeFt: 5000, HasSpeed: true, HasAltitude: true}, CatProp},
		{"high turboprop", Profile{AvgSpeedKt: 120, AvgAltitudeFt: 20000, HasSpeed: true, HasAltitude: true}, CatTurboprop},
		{"fast turboprop", Profile{AvgSpeedKt: 200, AvgAltitudeFt: 15000, HasSpeed: true, HasAltitude: true}, CatTurboprop},
		{"helicopter", Profile{AvgSpeedKt: 60, AvgAltitudeFt: 1500, HasSpeed: true, HasAltitude: true}, CatHelicopter},
		{"noisy vertical rate helicopter", Profile{AvgSpeedKt: 60, VerticalRateVariance: 400000, HasSpeed: true}, CatHelicopter},
		{"military overrides profile", Profile{AvgSpeedKt: 300, HasSpeed: true, Military: true}, CatMilitary},
		{"cargo from callsign", Profile{AvgSpeedKt: 300, HasSpeed: true, Callsign: "FDX123"}, CatCargo},
		{"altitude-only jet", Profile{AvgAltitudeFt: 35000, HasAltitude: true}, CatJet},
		{"altitude-only prop", Profile{AvgAltitudeFt: 3000, HasAltitude: true}, CatProp},
		{"no data", Profile{}, CatUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyAircraft(tt.p))
		})
	}
}

func TestAirlineFromCallsign(t *testing.T) {
	tests := []struct {
		callsign string
		want     string
		ok       bool
	}{
		{"AAL123", "American Airlines", true},
		{"DAL456", "Delta Air Lines", true},
		{"ezy85mh", "easyJet", true},
		{"XYZ999", "", false},
		{"AA", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.callsign, func(t *testing.T) {
			got, ok := AirlineFromCallsign(tt.callsign)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCountryFromIcao(t *testing.T) {
	tests := []struct {
		hex  string
		want string
		ok   bool
	}{
		{"A00001", "United States", true},
		{"4840D6", "Netherlands", true},
		{"406B90", "United Kingdom", true},
		{"3C6586", "Germany", true},
		{"7C0001", "Australia", true},
		{"FFFFFF", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.hex, func(t *testing.T) {
			got, ok := CountryFromIcao(addr(t, tt.hex))
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsMilitaryAddressBlock(t *testing.T) {
	assert.True(t, IsMilitary(addr(t, "ADF7C8"), ""))
	assert.True(t, IsMilitary(addr(t, "AFFFFF"), ""))
	assert.False(t, IsMilitary(addr(t, "ADF7C7"), ""), "last civil address")
	assert.False(t, IsMilitary(addr(t, "A00001"), ""), "first civil address")
}

func TestIsMilitaryCallsign(t *testing.T) {
	civil := addr(t, "A00001")
	assert.True(t, IsMilitary(civil, "RCH123"))
	assert.True(t, IsMilitary(civil, "DUKE01"))
	assert.True(t, IsMilitary(civil, " reach99 "))
	assert.False(t, IsMilitary(civil, "UAL123"))
	assert.False(t, IsMilitary(civil, ""))
}

func TestNNumberFromIcao(t *testing.T) {
	tests := []struct {
		hex  string
		want string
		ok   bool
	}{
		{"A00001", "N1", true},
		{"A00002", "N10", true},
		{"ADF7C7", "", true}, // last civil address decodes to something
		{"ADF7C8", "", false},
		{"4840D6", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.hex, func(t *testing.T) {
			got, ok := NNumberFromIcao(addr(t, tt.hex))
			assert.Equal(t, tt.ok, ok)
			if tt.want != "" {
				assert.Equal(t, tt.want, got)
			}
			if ok {
				assert.NotEmpty(t, got)
				assert.Equal(t, byte('N'), got[0])
			}
		})
	}
}

func TestNNumberAlphabetExcludesIO(t *testing.T) {
	assert.NotContains(t, nNumberChars, "I")
	assert.NotContains(t, nNumberChars, "O")
	assert.Len(t, nNumberChars, 24)
}

func TestNearestAirportHits(t *testing.T) {
	apt, dist, ok := NearestAirport(35.4, -82.5)
	require.True(t, ok)
	assert.Equal(t, "KAVL", apt.Icao)
	assert.Less(t, dist, 5.0)
}

func TestNearestAirportAcrossBucketBoundary(t *testing.T) {
	// Just north of a 10-degree bucket edge; KSEA sits south of it.
	apt, dist, ok := NearestAirport(50.1, -122.4)
	require.True(t, ok)
	assert.NotEmpty(t, apt.Icao)
	assert.Less(t, dist, 200.0)
}

func TestNearestAirportRemoteOcean(t *testing.T) {
	_, dist, ok := NearestAirport(-48.0, -120.0)
	require.True(t, ok, "full scan still returns the closest airport")
	assert.Greater(t, dist, 500.0)
}
