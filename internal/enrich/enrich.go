// Package enrich classifies tracked aircraft from observed data only:
// flight-profile category, operator from callsign prefix, country and
// military status from ICAO allocation blocks, US registration decode,
// and nearest-airport lookup over an embedded table.
package enrich

import "strings"

// Category is an inferred aircraft class.
type Category string

const (
	CatJet        Category = "jet"
	CatProp       Category = "prop"
	CatTurboprop  Category = "turboprop"
	CatHelicopter Category = "helicopter"
	CatMilitary   Category = "military"
	CatCargo      Category = "cargo"
	CatUnknown    Category = "unknown"
)

// Airline ICAO callsign prefixes.
var airlinePrefixes = map[string]string{
	"AAL": "American Airlines",
	"DAL": "Delta Air Lines",
	"UAL": "United Airlines",
	"SWA": "Southwest Airlines",
	"JBU": "JetBlue Airways",
	"NKS": "Spirit Airlines",
	"FFT": "Frontier Airlines",
	"ASA": "Alaska Airlines",
	"HAL": "Hawaiian Airlines",
	"SKW": "SkyWest Airlines",
	"RPA": "Republic Airways",
	"ENY": "Envoy Air",
	"ASH": "Mesa Airlines",
	"PDT": "Piedmont Airlines",
	"JIA": "PSA Airlines",
	"UPS": "UPS",
	"FDX": "FedEx",
	"GTI": "Atlas Air",
	"ABX": "ABX Air",
	"ACA": "Air Canada",
	"WJA": "WestJet",
	"BAW": "British Airways",
	"DLH": "Lufthansa",
	"AFR": "Air France",
	"EZY": "easyJet",
	"RYR": "Ryanair",
}

var cargoPrefixes = map[string]bool{
	"UPS": true, "FDX": true, "GTI": true, "ABX": true,
	"CLX": true, "GEC": true, "CKS": true, "BOX": true,
}

// Profile is the observed flight data a classification is based on.
type Profile struct {
	AvgAltitudeFt        float64
	AvgSpeedKt           float64
	VerticalRateVariance float64
	HasAltitude          bool
	HasSpeed             bool
	Military             bool
	Callsign             string
}

// ClassifyAircraft infers an aircraft category from its observed profile
// using threshold rules: fast+high reads as jet, slow+low as prop or
// helicopter, with cargo and military resolved first from callsign and
// address data.
func ClassifyAircraft(p Profile) Category {
	if p.Military {
		return CatMilitary
	}

	if len(p.Callsign) >= 3 && cargoPrefixes[strings.ToUpper(p.Callsign[:3])] {
		return CatCargo
	}

	if p.HasSpeed {
		speed := p.AvgSpeedKt
		switch {
		case speed > 250:
			return CatJet
		case speed < 80:
			// Slow and low with a noisy vertical rate reads as rotary wing.
			if p.HasAltitude && p.AvgAltitudeFt < 3000 {
				return CatHelicopter
			}
			if p.VerticalRateVariance > 250000 {
				return CatHelicopter
			}
		case speed <= 180:
			if p.HasAltitude && p.AvgAltitudeFt > 15000 {
				return CatTurboprop
			}
			return CatProp
		default:
			return CatTurboprop
		}
	}

	if p.HasAltitude {
		if p.AvgAltitudeFt > 30000 {
			return CatJet
		}
		if p.AvgAltitudeFt < 5000 {
			return CatProp
		}
	}

	return CatUnknown
}

// AirlineFromCallsign resolves the operator name from the 3-letter ICAO
// callsign prefix.
func AirlineFromCallsign(callsign string) (string, bool) {
	if len(callsign) < 3 {
		return "", false
	}
	name, ok := airlinePrefixes[strings.ToUpper(callsign[:3])]
	return name, ok
}
