package adsb

import (
	"math"
	"strings"
)

// ADS-B 6-bit callsign character set. Index 0 and the unassigned slots map
// to '#', which is trimmed with trailing spaces.
const callsignCharset = "#ABCDEFGHIJKLMNOPQRSTUVWXYZ##### ###############0123456789######"

// meBits packs the 56-bit ME field into the low bits of a uint64 so field
// extraction is plain shifting.
func meBits(me []byte) uint64 {
	var bits uint64
	for _, b := range me {
		bits = bits<<8 | uint64(b)
	}
	return bits
}

// Decode dispatches a validated frame to the field decoder for its
// (DF, TC) pair. Returns nil for frames that carry no decodable fields
// (e.g. DF11 all-call, which only contributes its address).
func Decode(frame *ModeFrame) (Message, error) {
	switch frame.DF {
	case 17, 18:
		tc, ok := frame.TypeCode()
		if !ok {
			return nil, ErrUnknownDF
		}
		switch {
		case tc >= 1 && tc <= 4:
			return DecodeIdentification(frame)
		case (tc >= 9 && tc <= 18) || (tc >= 20 && tc <= 22):
			return DecodeAirbornePosition(frame)
		case tc == 19:
			return DecodeAirborneVelocity(frame)
		case tc == 28:
			return DecodeAircraftStatus(frame)
		}
		return nil, nil
	case 0, 4, 16, 20:
		return DecodeSurveillanceAltitude(frame)
	case 5, 21:
		return DecodeSurveillanceIdentity(frame)
	case 11:
		return nil, nil
	}
	return nil, ErrUnknownDF
}

// DecodeIdentification extracts the callsign from a TC 1-4 frame: eight
// 6-bit characters packed into the 48 bits after the type/category byte.
func DecodeIdentification(frame *ModeFrame) (*Identification, error) {
	me := frame.ME()
	if me == nil {
		return nil, ErrBadLength
	}

	category := me[0] & 0x07
	bits := meBits(me)

	var sb strings.Builder
	sb.Grow(8)
	for i := 0; i < 8; i++ {
		idx := (bits >> (42 - i*6)) & 0x3F
		sb.WriteByte(callsignCharset[idx])
	}
	callsign := strings.TrimRight(sb.String(), " #")

	return &Identification{
		Addr:        frame.Addr,
		Callsign:    callsign,
		Category:    category,
		CaptureTime: frame.CaptureTime,
	}, nil
}

// DecodeAirbornePosition extracts altitude, CPR format flag and the two
// 17-bit encoded coordinates from a TC 9-18 or 20-22 frame.
func DecodeAirbornePosition(frame *ModeFrame) (*AirbornePosition, error) {
	me := frame.ME()
	if me == nil {
		return nil, ErrBadLength
	}

	tc := (me[0] >> 3) & 0x1F
	bits := meBits(me)

	msg := &AirbornePosition{
		Addr:               frame.Addr,
		SurveillanceStatus: uint8((bits >> 49) & 0x03),
		NicSupplement:      uint8((bits >> 48) & 0x01),
		GnssAltitude:       tc >= 20,
		OddFormat:          (bits>>34)&1 == 1,
		CprLat:             uint32((bits >> 17) & 0x1FFFF),
		CprLon:             uint32(bits & 0x1FFFF),
		CaptureTime:        frame.CaptureTime,
	}

	altCode := uint32((bits >> 36) & 0x0FFF)
	if alt, err := decodeAC12(altCode); err == nil {
		msg.AltitudeFt = &alt
	}

	return msg, nil
}

// DecodeAirborneVelocity decodes a TC 19 frame. Subtypes 1-2 report
// east-west / north-south ground speed components; subtypes 3-4 report
// heading and airspeed. The vertical rate is common to all subtypes.
func DecodeAirborneVelocity(frame *ModeFrame) (*AirborneVelocity, error) {
	me := frame.ME()
	if me == nil {
		return nil, ErrBadLength
	}

	bits := meBits(me)
	subtype := uint8((bits >> 48) & 0x07)
	if subtype < 1 || subtype > 4 {
		return nil, nil
	}

	msg := &AirborneVelocity{
		Addr:        frame.Addr,
		Subtype:     subtype,
		CaptureTime: frame.CaptureTime,
	}

	// Supersonic subtypes use 4-kt resolution.
	scale := 1
	if subtype == 2 || subtype == 4 {
		scale = 4
	}

	switch subtype {
	case 1, 2:
		ewRaw := int((bits >> 32) & 0x3FF)
		nsRaw := int((bits >> 21) & 0x3FF)
		if ewRaw > 0 && nsRaw > 0 {
			vx := float64((ewRaw - 1) * scale)
			if (bits>>42)&1 == 1 {
				vx = -vx
			}
			vy := float64((nsRaw - 1) * scale)
			if (bits>>31)&1 == 1 {
				vy = -vy
			}
			speed := math.Sqrt(vx*vx + vy*vy)
			heading := math.Mod(math.Atan2(vx, vy)*180/math.Pi+360, 360)
			msg.GroundSpeedKt = &speed
			msg.HeadingDeg = &heading
		}
	case 3, 4:
		if (bits>>42)&1 == 1 {
			heading := float64((bits>>32)&0x3FF) * 360.0 / 1024.0
			msg.HeadingDeg = &heading
		}
		asRaw := int((bits >> 21) & 0x3FF)
		if asRaw > 0 {
			airspeed := float64((asRaw - 1) * scale)
			msg.AirspeedKt = &airspeed
			msg.TrueAirspeed = (bits>>31)&1 == 1
		}
	}

	if (bits>>20)&1 == 0 {
		msg.VrSource = VrSourceBaro
	} else {
		msg.VrSource = VrSourceGNSS
	}
	vrRaw := int((bits >> 10) & 0x1FF)
	if vrRaw > 0 {
		rate := (vrRaw - 1) * 64
		if (bits>>19)&1 == 1 {
			rate = -rate
		}
		msg.VerticalRateFpm = &rate
	}

	return msg, nil
}

// DecodeAircraftStatus decodes a TC 28 subtype 1 emergency status report.
func DecodeAircraftStatus(frame *ModeFrame) (*AircraftStatus, error) {
	me := frame.ME()
	if me == nil {
		return nil, ErrBadLength
	}
	if me[0]&0x07 != 1 {
		return nil, nil
	}
	return &AircraftStatus{
		Addr:          frame.Addr,
		EmergencyCode: (me[1] >> 5) & 0x07,
		CaptureTime:   frame.CaptureTime,
	}, nil
}

// DecodeSurveillanceAltitude decodes the 13-bit AC field of a DF0/4/16/20
// reply.
func DecodeSurveillanceAltitude(frame *ModeFrame) (*SurveillanceAltitude, error) {
	if len(frame.Raw) < 4 {
		return nil, ErrBadLength
	}
	msg := &SurveillanceAltitude{Addr: frame.Addr, CaptureTime: frame.CaptureTime}
	code := uint32(frame.Raw[2]&0x1F)<<8 | uint32(frame.Raw[3])
	if alt, err := decodeAC13(code); err == nil {
		msg.AltitudeFt = &alt
	}
	return msg, nil
}

// DecodeSurveillanceIdentity decodes the 13-bit ID field of a DF5/21 reply
// into a 4-digit octal squawk.
func DecodeSurveillanceIdentity(frame *ModeFrame) (*SurveillanceIdentity, error) {
	if len(frame.Raw) < 4 {
		return nil, ErrBadLength
	}
	code := uint32(frame.Raw[2]&0x1F)<<8 | uint32(frame.Raw[3])
	return &SurveillanceIdentity{
		Addr:        frame.Addr,
		Squawk:      DecodeSquawk(code),
		CaptureTime: frame.CaptureTime,
	}, nil
}

// ---------------------------------------------------------------------------
// Altitude fields
// ---------------------------------------------------------------------------

// decodeAC12 decodes the 12-bit altitude code of a DF17/18 airborne
// position. Q=1 selects 25-ft resolution; Q=0 falls back to 100-ft Gillham
// after reinserting the (always zero here) M bit.
func decodeAC12(code uint32) (int, error) {
	if code == 0 {
		return 0, ErrGillhamInvalid
	}
	if code&0x10 != 0 {
		n := int((code>>5)<<4 | code&0x0F)
		return n*25 - 1000, nil
	}
	return decodeGillham(code&0x0FC0<<1 | code&0x003F)
}

// decodeAC13 decodes the 13-bit AC field of DF0/4/16/20. The M bit selects
// metric altitude, the Q bit 25-ft resolution; otherwise 100-ft Gillham.
func decodeAC13(code uint32) (int, error) {
	if code == 0 {
		return 0, ErrGillhamInvalid
	}
	if code&0x0040 != 0 {
		// Metric: remaining 12 bits carry altitude in metres.
		m := code&0x1F80>>1 | code&0x003F
		return int(math.Round(float64(m) * 3.28084)), nil
	}
	if code&0x0010 != 0 {
		n := int(code&0x1F80>>2 | code&0x0020>>1 | code&0x000F)
		return n*25 - 1000, nil
	}
	return decodeGillham(code)
}

// decodeGillham decodes a 13-bit 100-ft Gillham code. The field is mapped
// to Mode A bit positions, then gray-decoded in two stages: a 500-ft band
// count from the D/A/B bits and a folded 100-ft offset from the C bits.
// Total over the 8192-code domain; invalid combinations return
// ErrGillhamInvalid.
func decodeGillham(code uint32) (int, error) {
	modeA := gillhamToModeA(code)
	n, err := modeAToModeC(modeA)
	if err != nil {
		return 0, err
	}
	return n * 100, nil
}

// gillhamToModeA rearranges the 13-bit surveillance field
// (C1 A1 C2 A2 C4 A4 M B1 D1 B2 D2 B4 D4) into Mode A octal-digit bit
// positions.
func gillhamToModeA(field uint32) uint32 {
	var modeA uint32
	if field&0x1000 != 0 {
		modeA |= 0x0010 // C1
	}
	if field&0x0800 != 0 {
		modeA |= 0x1000 // A1
	}
	if field&0x0400 != 0 {
		modeA |= 0x0020 // C2
	}
	if field&0x0200 != 0 {
		modeA |= 0x2000 // A2
	}
	if field&0x0100 != 0 {
		modeA |= 0x0040 // C4
	}
	if field&0x0080 != 0 {
		modeA |= 0x4000 // A4
	}
	if field&0x0020 != 0 {
		modeA |= 0x0100 // B1
	}
	if field&0x0010 != 0 {
		modeA |= 0x0001 // D1
	}
	if field&0x0008 != 0 {
		modeA |= 0x0200 // B2
	}
	if field&0x0004 != 0 {
		modeA |= 0x0002 // D2
	}
	if field&0x0002 != 0 {
		modeA |= 0x0400 // B4
	}
	if field&0x0001 != 0 {
		modeA |= 0x0004 // D4
	}
	return modeA
}

// modeAToModeC converts a Mode A Gillham code to a 100-ft increment count.
// D1 set and C gray values outside 1-5 are invalid.
func modeAToModeC(modeA uint32) (int, error) {
	var fiveHundreds, oneHundreds uint32

	if modeA&0xFFFF8889 != 0 || modeA&0x00F0 == 0 {
		return 0, ErrGillhamInvalid
	}

	if modeA&0x0010 != 0 {
		oneHundreds ^= 0x007 // C1
	}
	if modeA&0x0020 != 0 {
		oneHundreds ^= 0x003 // C2
	}
	if modeA&0x0040 != 0 {
		oneHundreds ^= 0x001 // C4
	}

	// Remap 7 to 5 in the C gray sequence.
	if oneHundreds&5 == 5 {
		oneHundreds ^= 2
	}
	if oneHundreds > 5 {
		return 0, ErrGillhamInvalid
	}

	if modeA&0x0002 != 0 {
		fiveHundreds ^= 0x0FF // D2
	}
	if modeA&0x0004 != 0 {
		fiveHundreds ^= 0x07F // D4
	}
	if modeA&0x1000 != 0 {
		fiveHundreds ^= 0x03F // A1
	}
	if modeA&0x2000 != 0 {
		fiveHundreds ^= 0x01F // A2
	}
	if modeA&0x4000 != 0 {
		fiveHundreds ^= 0x00F // A4
	}
	if modeA&0x0100 != 0 {
		fiveHundreds ^= 0x007 // B1
	}
	if modeA&0x0200 != 0 {
		fiveHundreds ^= 0x003 // B2
	}
	if modeA&0x0400 != 0 {
		fiveHundreds ^= 0x001 // B4
	}

	// The 100-ft subscale runs backwards in odd 500-ft bands.
	if fiveHundreds&1 != 0 {
		oneHundreds = 6 - oneHundreds
	}

	return int(fiveHundreds*5+oneHundreds) - 13, nil
}

// DecodeSquawk converts the 13-bit identity field into its 4-digit octal
// transponder code (ICAO Annex 10 Gillham bit ordering).
func DecodeSquawk(code uint32) string {
	modeA := gillhamToModeA(code)
	digits := []byte{
		byte('0' + (modeA>>12)&0x07),
		byte('0' + (modeA>>8)&0x07),
		byte('0' + (modeA>>4)&0x07),
		byte('0' + modeA&0x07),
	}
	return string(digits)
}
