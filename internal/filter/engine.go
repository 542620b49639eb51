// Package filter runs anomaly detectors over tracker state and emits
// deduplicated AnomalyEvents: stateless predicates plus a small re-emit
// cache keyed by (kind, subject).
package filter

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"adsb1090/internal/adsb"
	"adsb1090/internal/enrich"
	"adsb1090/internal/geo"
	"adsb1090/internal/track"
)

// Kind labels an anomaly event.
type Kind string

const (
	KindMilitary        Kind = "military"
	KindEmergencySquawk Kind = "emergency_squawk"
	KindRapidDescent    Kind = "rapid_descent"
	KindLowAltitude     Kind = "low_altitude"
	KindCircling        Kind = "circling"
	KindHolding         Kind = "holding"
	KindProximity       Kind = "proximity"
	KindUnusualAltitude Kind = "unusual_altitude"
	KindGeofenceEnter   Kind = "geofence_enter"
)

// AnomalyEvent is one detected anomaly.
type AnomalyEvent struct {
	Kind       Kind
	Addr       adsb.IcaoAddress
	OccurredAt time.Time
	Details    string
	Lat        float64
	Lon        float64
	AltitudeFt *int
}

// Geofence is a circular alert zone.
type Geofence struct {
	ID        string  `yaml:"id"`
	CenterLat float64 `yaml:"center_lat"`
	CenterLon float64 `yaml:"center_lon"`
	RadiusNM  float64 `yaml:"radius_nm"`
}

// Config holds detector thresholds and dedupe windows.
type Config struct {
	RapidDescentFpm      int
	RapidDescentReports  int
	LowAltitudeFt        int
	LowAltMinSpeedKt     float64
	CirclingWindow       time.Duration
	CirclingMinChangeDeg float64
	HoldingWindow        time.Duration
	HoldingAltRangeFt    int
	ProximityNM          float64
	ProximityFt          int
	ProximityInterval    time.Duration
	UnusualSpeedKt       float64
	UnusualAltitudeFt    int
	UnusualAirportNM     float64
	DedupeWindows        map[Kind]time.Duration
	DefaultDedupeWindow  time.Duration
	Geofences            []Geofence
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		RapidDescentFpm:      -5000,
		RapidDescentReports:  2,
		LowAltitudeFt:        500,
		LowAltMinSpeedKt:     40,
		CirclingWindow:       5 * time.Minute,
		CirclingMinChangeDeg: 360,
		HoldingWindow:        2 * time.Minute,
		HoldingAltRangeFt:    500,
		ProximityNM:          5,
		ProximityFt:          1000,
		ProximityInterval:    10 * time.Second,
		UnusualSpeedKt:       200,
		UnusualAltitudeFt:    3000,
		UnusualAirportNM:     15,
		DedupeWindows: map[Kind]time.Duration{
			KindEmergencySquawk: 10 * time.Second,
		},
		DefaultDedupeWindow: 60 * time.Second,
	}
}

// Validate rejects nonsensical configuration at construction time.
func (c Config) Validate() error {
	for _, g := range c.Geofences {
		if g.RadiusNM <= 0 {
			return fmt.Errorf("geofence %q: radius must be positive", g.ID)
		}
		if g.CenterLat < -90 || g.CenterLat > 90 || g.CenterLon < -180 || g.CenterLon > 180 {
			return fmt.Errorf("geofence %q: center out of range", g.ID)
		}
	}
	if c.DefaultDedupeWindow < 0 {
		return fmt.Errorf("dedupe window must not be negative")
	}
	return nil
}

var emergencySquawks = map[string]string{
	"7500": "hijack",
	"7600": "radio failure",
	"7700": "emergency",
}

// Engine evaluates detectors. All mutation happens inside evaluation
// calls, which the ingest lane serializes.
type Engine struct {
	cfg    Config
	logger *logrus.Logger

	emitted       map[string]time.Time
	insideFence   map[string]bool
	descentStreak map[adsb.IcaoAddress]int
	lastPairwise  time.Time
}

// NewEngine validates the configuration and builds an engine.
func NewEngine(cfg Config, logger *logrus.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("filter config: %w", err)
	}
	return &Engine{
		cfg:           cfg,
		logger:        logger,
		emitted:       make(map[string]time.Time),
		insideFence:   make(map[string]bool),
		descentStreak: make(map[adsb.IcaoAddress]int),
	}, nil
}

// shouldEmit consults the dedupe cache for a (kind, subject) pair and
// records the emission when allowed.
func (e *Engine) shouldEmit(kind Kind, subject string, now time.Time) bool {
	window, ok := e.cfg.DedupeWindows[kind]
	if !ok {
		window = e.cfg.DefaultDedupeWindow
	}
	key := string(kind) + ":" + subject
	if last, seen := e.emitted[key]; seen && now.Sub(last) <= window {
		return false
	}
	e.emitted[key] = now
	return true
}

// Check runs the per-aircraft detectors against one aircraft, typically
// after the tracker applied a message for it.
func (e *Engine) Check(ac *track.Aircraft, now time.Time) []AnomalyEvent {
	var events []AnomalyEvent
	e.checkMilitary(ac, now, &events)
	e.checkEmergency(ac, now, &events)
	e.checkRapidDescent(ac, now, &events)
	e.checkLowAltitude(ac, now, &events)
	e.checkCircling(ac, now, &events)
	e.checkHolding(ac, now, &events)
	e.checkUnusualAltitude(ac, now, &events)
	e.checkGeofences(ac, now, &events)
	return events
}

// CheckPairwise runs the proximity detector over a full track snapshot.
// Rate-limited internally to one sweep per ProximityInterval.
func (e *Engine) CheckPairwise(snapshot []track.Aircraft, now time.Time) []AnomalyEvent {
	if now.Sub(e.lastPairwise) < e.cfg.ProximityInterval {
		return nil
	}
	e.lastPairwise = now

	var positioned []*track.Aircraft
	for i := range snapshot {
		if snapshot[i].HasPosition {
			positioned = append(positioned, &snapshot[i])
		}
	}

	var events []AnomalyEvent
	for i := 0; i < len(positioned); i++ {
		for j := i + 1; j < len(positioned); j++ {
			a, b := positioned[i], positioned[j]

			dist := geo.HaversineNM(a.Lat, a.Lon, b.Lat, b.Lon)
			if dist > e.cfg.ProximityNM {
				continue
			}
			if a.AltitudeFt == nil || b.AltitudeFt == nil {
				continue
			}
			sep := *a.AltitudeFt - *b.AltitudeFt
			if sep < 0 {
				sep = -sep
			}
			if sep >= e.cfg.ProximityFt {
				continue
			}

			pair := []string{a.Addr.String(), b.Addr.String()}
			sort.Strings(pair)
			if !e.shouldEmit(KindProximity, pair[0]+":"+pair[1], now) {
				continue
			}

			events = append(events, AnomalyEvent{
				Kind:       KindProximity,
				Addr:       a.Addr,
				OccurredAt: now,
				Details: fmt.Sprintf("%s and %s within %.1f nm, %d ft vertical",
					label(a), label(b), dist, sep),
				Lat:        a.Lat,
				Lon:        a.Lon,
				AltitudeFt: a.AltitudeFt,
			})
		}
	}
	return events
}

// Forget drops per-aircraft detector state after the tracker pruned an
// address.
func (e *Engine) Forget(addr adsb.IcaoAddress) {
	hex := addr.String()
	delete(e.descentStreak, addr)
	for key := range e.insideFence {
		if len(key) >= 6 && key[:6] == hex {
			delete(e.insideFence, key)
		}
	}
	for key := range e.emitted {
		if containsSubject(key, hex) {
			delete(e.emitted, key)
		}
	}
}

func containsSubject(key, hex string) bool {
	for i := 0; i+len(hex) <= len(key); i++ {
		if key[i:i+len(hex)] == hex {
			return true
		}
	}
	return false
}

func label(ac *track.Aircraft) string {
	if ac.Callsign != "" {
		return ac.Callsign
	}
	return ac.Addr.String()
}

func (e *Engine) checkMilitary(ac *track.Aircraft, now time.Time, events *[]AnomalyEvent) {
	if !ac.Military {
		return
	}
	if !e.shouldEmit(KindMilitary, ac.Addr.String(), now) {
		return
	}
	*events = append(*events, AnomalyEvent{
		Kind:       KindMilitary,
		Addr:       ac.Addr,
		OccurredAt: now,
		Details:    "military aircraft " + label(ac),
		Lat:        ac.Lat,
		Lon:        ac.Lon,
		AltitudeFt: ac.AltitudeFt,
	})
}

func (e *Engine) checkEmergency(ac *track.Aircraft, now time.Time, events *[]AnomalyEvent) {
	desc, ok := emergencySquawks[ac.Squawk]
	if !ok {
		return
	}
	if !e.shouldEmit(KindEmergencySquawk, ac.Addr.String(), now) {
		return
	}
	*events = append(*events, AnomalyEvent{
		Kind:       KindEmergencySquawk,
		Addr:       ac.Addr,
		OccurredAt: now,
		Details:    fmt.Sprintf("squawk %s (%s) from %s", ac.Squawk, desc, label(ac)),
		Lat:        ac.Lat,
		Lon:        ac.Lon,
		AltitudeFt: ac.AltitudeFt,
	})
}

func (e *Engine) checkRapidDescent(ac *track.Aircraft, now time.Time, events *[]AnomalyEvent) {
	if ac.VRateFpm == nil {
		return
	}
	if *ac.VRateFpm > e.cfg.RapidDescentFpm {
		e.descentStreak[ac.Addr] = 0
		return
	}
	e.descentStreak[ac.Addr]++
	if e.descentStreak[ac.Addr] < e.cfg.RapidDescentReports {
		return
	}
	if !e.shouldEmit(KindRapidDescent, ac.Addr.String(), now) {
		return
	}
	*events = append(*events, AnomalyEvent{
		Kind:       KindRapidDescent,
		Addr:       ac.Addr,
		OccurredAt: now,
		Details:    fmt.Sprintf("descending %d ft/min: %s", *ac.VRateFpm, label(ac)),
		Lat:        ac.Lat,
		Lon:        ac.Lon,
		AltitudeFt: ac.AltitudeFt,
	})
}

func (e *Engine) checkLowAltitude(ac *track.Aircraft, now time.Time, events *[]AnomalyEvent) {
	if ac.AltitudeFt == nil || ac.SpeedKt == nil {
		return
	}
	// The speed floor excludes ground vehicles and taxiing traffic.
	if *ac.AltitudeFt <= 0 || *ac.AltitudeFt >= e.cfg.LowAltitudeFt || *ac.SpeedKt <= e.cfg.LowAltMinSpeedKt {
		return
	}
	if !e.shouldEmit(KindLowAltitude, ac.Addr.String(), now) {
		return
	}
	*events = append(*events, AnomalyEvent{
		Kind:       KindLowAltitude,
		Addr:       ac.Addr,
		OccurredAt: now,
		Details:    fmt.Sprintf("%s at %d ft doing %.0f kt", label(ac), *ac.AltitudeFt, *ac.SpeedKt),
		Lat:        ac.Lat,
		Lon:        ac.Lon,
		AltitudeFt: ac.AltitudeFt,
	})
}

// headingDelta returns the signed shortest turn from h1 to h2.
func headingDelta(h1, h2 float64) float64 {
	d := math.Mod(h2-h1+540, 360) - 180
	return d
}

func (e *Engine) checkCircling(ac *track.Aircraft, now time.Time, events *[]AnomalyEvent) {
	cutoff := now.Add(-e.cfg.CirclingWindow)

	var headings []float64
	for _, s := range ac.History {
		if s.Time.Before(cutoff) || s.HeadingDeg == nil {
			continue
		}
		headings = append(headings, *s.HeadingDeg)
	}
	if len(headings) < 4 {
		return
	}

	total := 0.0
	for i := 1; i < len(headings); i++ {
		total += headingDelta(headings[i-1], headings[i])
	}
	if math.Abs(total) < e.cfg.CirclingMinChangeDeg {
		return
	}

	if !e.shouldEmit(KindCircling, ac.Addr.String(), now) {
		return
	}
	*events = append(*events, AnomalyEvent{
		Kind:       KindCircling,
		Addr:       ac.Addr,
		OccurredAt: now,
		Details:    fmt.Sprintf("%s turned %.0f deg cumulative", label(ac), total),
		Lat:        ac.Lat,
		Lon:        ac.Lon,
		AltitudeFt: ac.AltitudeFt,
	})
}

func (e *Engine) checkHolding(ac *track.Aircraft, now time.Time, events *[]AnomalyEvent) {
	cutoff := now.Add(-e.cfg.HoldingWindow)

	var (
		alts     []int
		headings []float64
		earliest time.Time
	)
	for _, s := range ac.History {
		if s.Time.Before(cutoff) {
			continue
		}
		if earliest.IsZero() || s.Time.Before(earliest) {
			earliest = s.Time
		}
		if s.AltitudeFt != nil {
			alts = append(alts, *s.AltitudeFt)
		}
		if s.HeadingDeg != nil {
			headings = append(headings, *s.HeadingDeg)
		}
	}
	if len(alts) < 4 || len(headings) < 8 {
		return
	}
	// The window must actually span the holding interval.
	if now.Sub(earliest) < e.cfg.HoldingWindow-10*time.Second {
		return
	}

	minAlt, maxAlt := alts[0], alts[0]
	for _, a := range alts {
		if a < minAlt {
			minAlt = a
		}
		if a > maxAlt {
			maxAlt = a
		}
	}
	if maxAlt-minAlt > e.cfg.HoldingAltRangeFt {
		return
	}

	// Racetrack legs show as two heading modes ~180 degrees apart.
	var bins [36]int
	for _, h := range headings {
		bins[int(math.Mod(h+360, 360)/10)%36]++
	}
	first, second := -1, -1
	for i, c := range bins {
		if first < 0 || c > bins[first] {
			second = first
			first = i
		} else if second < 0 || c > bins[second] {
			second = i
		}
	}
	minShare := len(headings) / 5
	if minShare < 1 {
		minShare = 1
	}
	if bins[first] < minShare || bins[second] < minShare {
		return
	}
	sep := first - second
	if sep < 0 {
		sep = -sep
	}
	if sep > 18 {
		sep = 36 - sep
	}
	if sep < 15 || sep > 21 {
		return
	}

	if !e.shouldEmit(KindHolding, ac.Addr.String(), now) {
		return
	}
	avgAlt := 0
	for _, a := range alts {
		avgAlt += a
	}
	avgAlt /= len(alts)
	*events = append(*events, AnomalyEvent{
		Kind:       KindHolding,
		Addr:       ac.Addr,
		OccurredAt: now,
		Details:    fmt.Sprintf("%s holding at %d ft on reciprocal headings", label(ac), avgAlt),
		Lat:        ac.Lat,
		Lon:        ac.Lon,
		AltitudeFt: ac.AltitudeFt,
	})
}

func (e *Engine) checkUnusualAltitude(ac *track.Aircraft, now time.Time, events *[]AnomalyEvent) {
	if !ac.HasPosition || ac.AltitudeFt == nil || ac.SpeedKt == nil {
		return
	}
	if *ac.SpeedKt <= e.cfg.UnusualSpeedKt || *ac.AltitudeFt >= e.cfg.UnusualAltitudeFt || *ac.AltitudeFt <= 0 {
		return
	}
	if _, dist, ok := enrich.NearestAirport(ac.Lat, ac.Lon); ok && dist <= e.cfg.UnusualAirportNM {
		return
	}
	if !e.shouldEmit(KindUnusualAltitude, ac.Addr.String(), now) {
		return
	}
	*events = append(*events, AnomalyEvent{
		Kind:       KindUnusualAltitude,
		Addr:       ac.Addr,
		OccurredAt: now,
		Details:    fmt.Sprintf("%s fast and low: %.0f kt at %d ft away from airports", label(ac), *ac.SpeedKt, *ac.AltitudeFt),
		Lat:        ac.Lat,
		Lon:        ac.Lon,
		AltitudeFt: ac.AltitudeFt,
	})
}

func (e *Engine) checkGeofences(ac *track.Aircraft, now time.Time, events *[]AnomalyEvent) {
	if !ac.HasPosition {
		return
	}
	for _, fence := range e.cfg.Geofences {
		key := ac.Addr.String() + ":" + fence.ID
		inside := geo.HaversineNM(ac.Lat, ac.Lon, fence.CenterLat, fence.CenterLon) <= fence.RadiusNM
		wasInside := e.insideFence[key]
		e.insideFence[key] = inside
		if !inside || wasInside {
			continue
		}
		if !e.shouldEmit(KindGeofenceEnter, key, now) {
			continue
		}
		*events = append(*events, AnomalyEvent{
			Kind:       KindGeofenceEnter,
			Addr:       ac.Addr,
			OccurredAt: now,
			Details:    fmt.Sprintf("%s entered zone %s", label(ac), fence.ID),
			Lat:        ac.Lat,
			Lon:        ac.Lon,
			AltitudeFt: ac.AltitudeFt,
		})
	}
}
