package adsb

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeIdentificationKLM(t *testing.T) {
	frame := parseUncached(t, "8D4840D6202CC371C32CE0576098")
	msg, err := DecodeIdentification(frame)
	require.NoError(t, err)
	assert.Equal(t, "KLM1023", msg.Callsign, "trailing space is trimmed")
	assert.Equal(t, "4840D6", msg.Addr.String())
}

func TestDecodeIdentificationEZY(t *testing.T) {
	frame := parseUncached(t, "8D406B902015A678D4D220AA4BDA")
	msg, err := DecodeIdentification(frame)
	require.NoError(t, err)
	assert.Equal(t, "EZY85MH", msg.Callsign)
}

func TestDecodePositionEven(t *testing.T) {
	frame := parseUncached(t, "8D40621D58C382D690C8AC2863A7")
	msg, err := DecodeAirbornePosition(frame)
	require.NoError(t, err)

	assert.False(t, msg.OddFormat)
	assert.Equal(t, uint32(93000), msg.CprLat)
	assert.Equal(t, uint32(51372), msg.CprLon)
	require.NotNil(t, msg.AltitudeFt)
	assert.Equal(t, 38000, *msg.AltitudeFt)
	assert.False(t, msg.GnssAltitude)
}

func TestDecodePositionOdd(t *testing.T) {
	frame := parseUncached(t, "8D40621D58C386435CC412692AD6")
	msg, err := DecodeAirbornePosition(frame)
	require.NoError(t, err)

	assert.True(t, msg.OddFormat)
	assert.Equal(t, uint32(74158), msg.CprLat)
	assert.Equal(t, uint32(50194), msg.CprLon)
	require.NotNil(t, msg.AltitudeFt)
	assert.Equal(t, 38000, *msg.AltitudeFt)
}

func TestDecodePositionGnss(t *testing.T) {
	// Hand-built DF17 TC=21 frame: GNSS airborne position with the same
	// CPR coordinates as the barometric test vector.
	data := make([]byte, 14)
	data[0] = 0x8D
	data[1], data[2], data[3] = 0x40, 0x62, 0x1D
	me := data[4:11]
	me[0] = 21 << 3
	// altitude code 0xC38, even format, lat 93000, lon 51372
	var bits uint64
	bits = uint64(21) << 51
	bits |= uint64(0xC38) << 36
	bits |= uint64(93000) << 17
	bits |= uint64(51372)
	for i := 0; i < 7; i++ {
		me[i] = byte(bits >> (48 - i*8))
	}
	crc := ChecksumPayload(data)
	data[11], data[12], data[13] = byte(crc>>16), byte(crc>>8), byte(crc)

	frame, err := ParseFrame(hexEncode(data), testTime(1), ParseOptions{}, nil)
	require.NoError(t, err)

	msg, err := DecodeAirbornePosition(frame)
	require.NoError(t, err)
	assert.True(t, msg.GnssAltitude)
	assert.False(t, msg.OddFormat)
	assert.Equal(t, uint32(93000), msg.CprLat)
	assert.Equal(t, uint32(51372), msg.CprLon)
	require.NotNil(t, msg.AltitudeFt)
	assert.Equal(t, 38000, *msg.AltitudeFt)
}

func TestDecodeVelocityGroundSpeed(t *testing.T) {
	frame := parseUncached(t, "8D485020994409940838175B284F")
	msg, err := DecodeAirborneVelocity(frame)
	require.NoError(t, err)

	assert.Equal(t, uint8(1), msg.Subtype)
	require.NotNil(t, msg.GroundSpeedKt)
	assert.InDelta(t, 159.0, *msg.GroundSpeedKt, 1.0)
	require.NotNil(t, msg.HeadingDeg)
	assert.InDelta(t, 182.88, *msg.HeadingDeg, 0.1)
	require.NotNil(t, msg.VerticalRateFpm)
	assert.Equal(t, -832, *msg.VerticalRateFpm)
	assert.Equal(t, VrSourceBaro, msg.VrSource)
}

func TestDecodeRoutesByTypeCode(t *testing.T) {
	tests := []struct {
		name string
		hex  string
		want interface{}
	}{
		{"identification", "8D4840D6202CC371C32CE0576098", &Identification{}},
		{"position", "8D40621D58C382D690C8AC2863A7", &AirbornePosition{}},
		{"velocity", "8D485020994409940838175B284F", &AirborneVelocity{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := parseUncached(t, tt.hex)
			msg, err := Decode(frame)
			require.NoError(t, err)
			assert.IsType(t, tt.want, msg)
			assert.Equal(t, frame.Addr, msg.Icao())
		})
	}
}

func TestDecodeSurveillanceAltitude(t *testing.T) {
	// 38000 ft in 25-ft mode: N=1560, reassembled into the 13-bit field
	// around the M and Q bits.
	addr, _ := IcaoFromHex("4840D6")
	// N=1560; field reassembled around the M and Q bit positions.
	field := uint16(0x30<<7 | 1<<5 | 0x10 | 0x08)
	hex := buildShortFrame(4, addr, field)

	cache := NewIcaoCache(time.Minute)
	cache.Register(addr, testTime(0))
	frame, err := ParseFrame(hex, testTime(1), ParseOptions{RequireKnownIcao: true}, cache)
	require.NoError(t, err)

	msg, err := DecodeSurveillanceAltitude(frame)
	require.NoError(t, err)
	require.NotNil(t, msg.AltitudeFt)
	assert.Equal(t, 38000, *msg.AltitudeFt)
}

func TestDecodeSurveillanceIdentity7700(t *testing.T) {
	addr, _ := IcaoFromHex("4840D6")
	// Identity field for 7700: A=7, B=7, C=0, D=0.
	// Bit order C1 A1 C2 A2 C4 A4 X B1 D1 B2 D2 B4 D4.
	field := uint16(0b0101010101010)
	hex := buildShortFrame(5, addr, field)

	cache := NewIcaoCache(time.Minute)
	cache.Register(addr, testTime(0))
	frame, err := ParseFrame(hex, testTime(1), ParseOptions{RequireKnownIcao: true}, cache)
	require.NoError(t, err)

	msg, err := DecodeSurveillanceIdentity(frame)
	require.NoError(t, err)
	assert.Equal(t, "7700", msg.Squawk)
}

func TestDecodeSquawkDigits(t *testing.T) {
	tests := []struct {
		name string
		code uint32
		want string
	}{
		{"7500", 0b0101010100010, "7500"},
		{"7600", 0b0101010001010, "7600"},
		{"7700", 0b0101010101010, "7700"},
		{"0000", 0, "0000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecodeSquawk(tt.code))
		})
	}
}

func TestDecodeAC12TwentyFiveFootMode(t *testing.T) {
	tests := []struct {
		name string
		n    uint32
		want int
	}{
		{"N=0 floor", 0, -1000},
		{"N=40 zero", 40, 0},
		{"N=41 first step", 41, 25},
		{"N=1560 cruise", 1560, 38000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Insert the Q bit at position 4.
			code := (tt.n>>4)<<5 | 0x10 | tt.n&0x0F
			alt, err := decodeAC12(code)
			require.NoError(t, err)
			assert.Equal(t, tt.want, alt)
		})
	}
}

func TestDecodeAC13MetricMode(t *testing.T) {
	// M=1: remaining bits carry metres. 1000 m = 3281 ft.
	code := uint32(1000&0x3F) | (1000>>6)<<7 | 0x0040
	alt, err := decodeAC13(code)
	require.NoError(t, err)
	assert.Equal(t, 3281, alt)
}

func TestGillhamKnownCodes(t *testing.T) {
	tests := []struct {
		name  string
		field uint32
		want  int
	}{
		// C4 only: lowest valid code.
		{"minimum -1200", 0x0100, -1200},
		// B2+B4+C2: 500-ft band 2, offset 3.
		{"zero feet", 0x040A, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alt, err := decodeGillham(tt.field)
			require.NoError(t, err)
			assert.Equal(t, tt.want, alt)
		})
	}
}

func TestGillhamInvalidCodes(t *testing.T) {
	tests := []struct {
		name  string
		field uint32
	}{
		{"all zero", 0},
		{"D1 set", 0x0010},
		{"C digit zero", 0x0800},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeGillham(tt.field)
			assert.ErrorIs(t, err, ErrGillhamInvalid)
		})
	}
}

func TestGillhamTotalOverDomain(t *testing.T) {
	// The decoder must be total over all 8192 codes: every input either
	// decodes to an in-range altitude or returns ErrGillhamInvalid.
	valid := 0
	for code := uint32(0); code < 0x2000; code++ {
		alt, err := decodeGillham(code)
		if err != nil {
			assert.ErrorIs(t, err, ErrGillhamInvalid)
			continue
		}
		valid++
		assert.GreaterOrEqual(t, alt, -1200, "code %04X", code)
		assert.LessOrEqual(t, alt, 126700, "code %04X", code)
	}
	assert.Greater(t, valid, 1000, "most Gillham codes should be decodable")
}

func TestGillhamDecodeOnHundredFootLattice(t *testing.T) {
	// Valid codes map onto the 100-ft lattice.
	for code := uint32(0); code < 0x2000; code++ {
		if alt, err := decodeGillham(code); err == nil {
			assert.Zero(t, (alt+1200)%100, "altitude %d not on 100-ft lattice", alt)
		}
	}
}

func TestDecodeCallsignCharsetShape(t *testing.T) {
	require.Len(t, callsignCharset, 64)
	assert.Equal(t, byte('#'), callsignCharset[0])
	assert.Equal(t, byte('A'), callsignCharset[1])
	assert.Equal(t, byte(' '), callsignCharset[32])
	assert.Equal(t, byte('0'), callsignCharset[48])
	assert.Equal(t, byte('9'), callsignCharset[57])
}
