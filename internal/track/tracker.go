// Package track maintains the live aircraft picture: a per-aircraft state
// machine fed by decoded messages, with CPR frame pairing, bounded
// history, staleness pruning and TrackEvent emission.
package track

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"adsb1090/internal/adsb"
	"adsb1090/internal/cpr"
	"adsb1090/internal/enrich"
)

// EventKind labels a TrackEvent.
type EventKind string

const (
	EventNewAircraft    EventKind = "new_aircraft"
	EventAircraftUpdate EventKind = "aircraft_update"
	EventPositionUpdate EventKind = "position_update"
	EventSightingUpdate EventKind = "sighting_update"
)

// TrackEvent is emitted by the tracker for downstream consumers to
// persist. Field presence depends on the kind.
type TrackEvent struct {
	Kind         EventKind
	Addr         adsb.IcaoAddress
	Time         time.Time
	Callsign     string
	Squawk       string
	Country      string
	Registration string
	Military     bool
	Lat          float64
	Lon          float64
	HasPosition  bool
	AltitudeFt   *int
	SpeedKt      *float64
	HeadingDeg   *float64
	VRateFpm     *int
}

// HistorySample is one entry of an aircraft's rolling history.
type HistorySample struct {
	Time        time.Time
	HeadingDeg  *float64
	AltitudeFt  *int
	Lat         float64
	Lon         float64
	HasPosition bool
}

// cprSlot buffers one CPR frame awaiting its complement.
type cprSlot struct {
	lat, lon uint32
	altFt    *int
	time     time.Time
	valid    bool
}

// aircraftState is the tracker-private mutable record for one aircraft.
type aircraftState struct {
	addr         adsb.IcaoAddress
	callsign     string
	squawk       string
	country      string
	registration string
	military     bool
	emergency    uint8

	lat, lon    float64
	hasPosition bool
	altitudeFt  *int
	speedKt     *float64
	headingDeg  *float64
	vRateFpm    *int

	evenFrame cprSlot
	oddFrame  cprSlot

	history []HistorySample

	firstSeen        time.Time
	lastSeen         time.Time
	lastPositionTime time.Time
	messageCount     uint64
}

// Aircraft is a read-only copy of a tracked aircraft's state.
type Aircraft struct {
	Addr             adsb.IcaoAddress
	Callsign         string
	Squawk           string
	Country          string
	Registration     string
	Military         bool
	EmergencyCode    uint8
	Lat              float64
	Lon              float64
	HasPosition      bool
	AltitudeFt       *int
	SpeedKt          *float64
	HeadingDeg       *float64
	VRateFpm         *int
	History          []HistorySample
	FirstSeen        time.Time
	LastSeen         time.Time
	LastPositionTime time.Time
	MessageCount     uint64
}

// Config holds the tracker's tunables.
type Config struct {
	StaleTimeout       time.Duration
	PhantomTimeout     time.Duration
	PairWindow         time.Duration
	LocalMaxDistanceNM float64
	LastPosMaxAge      time.Duration
	HistoryWindow      time.Duration
	HistoryCap         int
	RefLat             float64
	RefLon             float64
	HasRef             bool
}

// DefaultConfig returns the tracker defaults.
func DefaultConfig() Config {
	return Config{
		StaleTimeout:       300 * time.Second,
		PhantomTimeout:     time.Hour,
		PairWindow:         10 * time.Second,
		LocalMaxDistanceNM: 180,
		LastPosMaxAge:      10 * time.Minute,
		HistoryWindow:      5 * time.Minute,
		HistoryCap:         300,
	}
}

// Stats are the tracker's decode counters, exposed for observability.
type Stats struct {
	Messages        uint64
	PositionDecodes uint64
	CprZoneMismatch uint64
	CprStale        uint64
	CprOutOfRange   uint64
	CprInvalid      uint64
}

// Tracker owns the aircraft map. The ingest lane is the single writer;
// snapshot readers take the read lock and see state between messages,
// never mid-message.
type Tracker struct {
	mu     sync.RWMutex
	cfg    Config
	logger *logrus.Logger
	states map[adsb.IcaoAddress]*aircraftState
	stats  Stats
}

// New creates a tracker.
func New(cfg Config, logger *logrus.Logger) *Tracker {
	return &Tracker{
		cfg:    cfg,
		logger: logger,
		states: make(map[adsb.IcaoAddress]*aircraftState),
	}
}

// Ingest applies one decoded message at its capture time and returns the
// events it produced.
func (t *Tracker) Ingest(msg adsb.Message, captureTime time.Time) []TrackEvent {
	if msg == nil {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.stats.Messages++

	var events []TrackEvent
	addr := msg.Icao()

	ac, ok := t.states[addr]
	if !ok {
		ac = t.newAircraft(addr, captureTime)
		t.states[addr] = ac
		events = append(events, TrackEvent{
			Kind:         EventNewAircraft,
			Addr:         addr,
			Time:         captureTime,
			Country:      ac.country,
			Registration: ac.registration,
			Military:     ac.military,
		})
	}

	if captureTime.After(ac.lastSeen) {
		ac.lastSeen = captureTime
	}
	ac.messageCount++

	switch m := msg.(type) {
	case *adsb.Identification:
		events = append(events, t.ingestIdentification(ac, m, captureTime)...)
	case *adsb.AirbornePosition:
		events = append(events, t.ingestPosition(ac, m, captureTime)...)
	case *adsb.AirborneVelocity:
		events = append(events, t.ingestVelocity(ac, m, captureTime)...)
	case *adsb.SurveillanceAltitude:
		if m.AltitudeFt != nil {
			ac.altitudeFt = m.AltitudeFt
			events = append(events, t.updateEvent(ac, captureTime))
		}
	case *adsb.SurveillanceIdentity:
		if m.Squawk != ac.squawk {
			ac.squawk = m.Squawk
			events = append(events, t.sightingEvent(ac, captureTime))
		}
	case *adsb.AircraftStatus:
		ac.emergency = m.EmergencyCode
		events = append(events, t.updateEvent(ac, captureTime))
	}

	return events
}

func (t *Tracker) newAircraft(addr adsb.IcaoAddress, ts time.Time) *aircraftState {
	ac := &aircraftState{
		addr:      addr,
		firstSeen: ts,
		lastSeen:  ts,
		military:  enrich.IsMilitary(addr, ""),
	}
	if country, ok := enrich.CountryFromIcao(addr); ok {
		ac.country = country
	}
	if reg, ok := enrich.NNumberFromIcao(addr); ok {
		ac.registration = reg
	}
	return ac
}

func (t *Tracker) ingestIdentification(ac *aircraftState, m *adsb.Identification, ts time.Time) []TrackEvent {
	if m.Callsign == "" {
		return nil
	}
	changed := ac.callsign != m.Callsign
	ac.callsign = m.Callsign
	// The military flag is sticky: once set it is never cleared, but a
	// callsign can newly reveal a military operator.
	if !ac.military && enrich.IsMilitary(ac.addr, ac.callsign) {
		ac.military = true
	}
	if changed {
		return []TrackEvent{t.sightingEvent(ac, ts)}
	}
	return nil
}

func (t *Tracker) ingestPosition(ac *aircraftState, m *adsb.AirbornePosition, ts time.Time) []TrackEvent {
	var events []TrackEvent

	// Altitude is applied regardless of position decode outcome.
	if m.AltitudeFt != nil {
		ac.altitudeFt = m.AltitudeFt
	}

	slot := cprSlot{lat: m.CprLat, lon: m.CprLon, altFt: m.AltitudeFt, time: ts, valid: true}
	if m.OddFormat {
		ac.oddFrame = slot
	} else {
		ac.evenFrame = slot
	}

	if pos, ok := t.resolvePosition(ac, ts); ok {
		ac.lat = pos.Lat
		ac.lon = pos.Lon
		ac.hasPosition = true
		ac.lastPositionTime = ts
		t.stats.PositionDecodes++
		t.appendHistory(ac, ts)
		events = append(events, t.positionEvent(ac, ts))
	}

	return events
}

// resolvePosition attempts global decode from a fresh even/odd pair, then
// falls back to local decode against the aircraft's last position or the
// receiver reference.
func (t *Tracker) resolvePosition(ac *aircraftState, ts time.Time) (cpr.Position, bool) {
	if ac.evenFrame.valid && ac.oddFrame.valid {
		even := cpr.Frame{Lat: ac.evenFrame.lat, Lon: ac.evenFrame.lon, Time: ac.evenFrame.time}
		odd := cpr.Frame{Lat: ac.oddFrame.lat, Lon: ac.oddFrame.lon, Odd: true, Time: ac.oddFrame.time}

		pos, err := cpr.GlobalDecode(even, odd, t.cfg.PairWindow)
		switch err {
		case nil:
			return pos, true
		case cpr.ErrZoneMismatch:
			// Frames straddle a latitude zone; wait for a fresh pair.
			t.stats.CprZoneMismatch++
			ac.evenFrame = cprSlot{}
			ac.oddFrame = cprSlot{}
			return cpr.Position{}, false
		case cpr.ErrStale:
			t.stats.CprStale++
		default:
			t.stats.CprInvalid++
		}
	}

	refLat, refLon, ok := t.localReference(ac, ts)
	if !ok {
		return cpr.Position{}, false
	}

	frame := ac.evenFrame
	odd := false
	if ac.oddFrame.valid && (!ac.evenFrame.valid || ac.oddFrame.time.After(ac.evenFrame.time)) {
		frame = ac.oddFrame
		odd = true
	}
	if !frame.valid {
		return cpr.Position{}, false
	}

	pos, err := cpr.LocalDecode(
		cpr.Frame{Lat: frame.lat, Lon: frame.lon, Odd: odd, Time: frame.time},
		refLat, refLon, t.cfg.LocalMaxDistanceNM)
	if err != nil {
		if err == cpr.ErrOutOfRange {
			t.stats.CprOutOfRange++
		} else {
			t.stats.CprInvalid++
		}
		return cpr.Position{}, false
	}
	return pos, true
}

// localReference picks the reference for single-frame decode. Ages are
// measured on capture time so replayed captures decode identically.
func (t *Tracker) localReference(ac *aircraftState, ts time.Time) (float64, float64, bool) {
	if ac.hasPosition && ts.Sub(ac.lastPositionTime) <= t.cfg.LastPosMaxAge {
		return ac.lat, ac.lon, true
	}
	if t.cfg.HasRef {
		return t.cfg.RefLat, t.cfg.RefLon, true
	}
	return 0, 0, false
}

func (t *Tracker) ingestVelocity(ac *aircraftState, m *adsb.AirborneVelocity, ts time.Time) []TrackEvent {
	switch {
	case m.GroundSpeedKt != nil:
		ac.speedKt = m.GroundSpeedKt
	case m.AirspeedKt != nil:
		ac.speedKt = m.AirspeedKt
	}
	if m.HeadingDeg != nil {
		ac.headingDeg = m.HeadingDeg
	}
	if m.VerticalRateFpm != nil {
		ac.vRateFpm = m.VerticalRateFpm
	}
	t.appendHistory(ac, ts)
	return []TrackEvent{t.updateEvent(ac, ts)}
}

// appendHistory pushes a sample and evicts entries outside the rolling
// window. Heading wraparound is preserved raw; consumers unwrap per step.
func (t *Tracker) appendHistory(ac *aircraftState, ts time.Time) {
	ac.history = append(ac.history, HistorySample{
		Time:        ts,
		HeadingDeg:  ac.headingDeg,
		AltitudeFt:  ac.altitudeFt,
		Lat:         ac.lat,
		Lon:         ac.lon,
		HasPosition: ac.hasPosition,
	})

	cutoff := ts.Add(-t.cfg.HistoryWindow)
	start := 0
	for start < len(ac.history) && ac.history[start].Time.Before(cutoff) {
		start++
	}
	if over := len(ac.history) - start - t.cfg.HistoryCap; over > 0 {
		start += over
	}
	if start > 0 {
		ac.history = append(ac.history[:0], ac.history[start:]...)
	}
}

func (t *Tracker) positionEvent(ac *aircraftState, ts time.Time) TrackEvent {
	return TrackEvent{
		Kind:        EventPositionUpdate,
		Addr:        ac.addr,
		Time:        ts,
		Lat:         ac.lat,
		Lon:         ac.lon,
		HasPosition: true,
		AltitudeFt:  ac.altitudeFt,
		SpeedKt:     ac.speedKt,
		HeadingDeg:  ac.headingDeg,
		VRateFpm:    ac.vRateFpm,
	}
}

func (t *Tracker) updateEvent(ac *aircraftState, ts time.Time) TrackEvent {
	return TrackEvent{
		Kind:       EventAircraftUpdate,
		Addr:       ac.addr,
		Time:       ts,
		AltitudeFt: ac.altitudeFt,
		SpeedKt:    ac.speedKt,
		HeadingDeg: ac.headingDeg,
		VRateFpm:   ac.vRateFpm,
		Military:   ac.military,
	}
}

func (t *Tracker) sightingEvent(ac *aircraftState, ts time.Time) TrackEvent {
	return TrackEvent{
		Kind:       EventSightingUpdate,
		Addr:       ac.addr,
		Time:       ts,
		Callsign:   ac.callsign,
		Squawk:     ac.squawk,
		AltitudeFt: ac.altitudeFt,
		Military:   ac.military,
	}
}

// Snapshot returns a consistent read-only copy of every tracked aircraft.
func (t *Tracker) Snapshot() []Aircraft {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Aircraft, 0, len(t.states))
	for _, ac := range t.states {
		out = append(out, t.copyState(ac))
	}
	return out
}

// Get returns a copy of a single aircraft's state.
func (t *Tracker) Get(addr adsb.IcaoAddress) (Aircraft, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ac, ok := t.states[addr]
	if !ok {
		return Aircraft{}, false
	}
	return t.copyState(ac), true
}

func (t *Tracker) copyState(ac *aircraftState) Aircraft {
	history := make([]HistorySample, len(ac.history))
	copy(history, ac.history)
	return Aircraft{
		Addr:             ac.addr,
		Callsign:         ac.callsign,
		Squawk:           ac.squawk,
		Country:          ac.country,
		Registration:     ac.registration,
		Military:         ac.military,
		EmergencyCode:    ac.emergency,
		Lat:              ac.lat,
		Lon:              ac.lon,
		HasPosition:      ac.hasPosition,
		AltitudeFt:       ac.altitudeFt,
		SpeedKt:          ac.speedKt,
		HeadingDeg:       ac.headingDeg,
		VRateFpm:         ac.vRateFpm,
		History:          history,
		FirstSeen:        ac.firstSeen,
		LastSeen:         ac.lastSeen,
		LastPositionTime: ac.lastPositionTime,
		MessageCount:     ac.messageCount,
	}
}

// PruneStale removes aircraft whose last message predates the stale
// timeout and returns the removed addresses so downstream subsystems can
// deregister.
func (t *Tracker) PruneStale(now time.Time) []adsb.IcaoAddress {
	t.mu.Lock()
	defer t.mu.Unlock()

	var removed []adsb.IcaoAddress
	cutoff := now.Add(-t.cfg.StaleTimeout)
	for addr, ac := range t.states {
		if ac.lastSeen.Before(cutoff) {
			delete(t.states, addr)
			removed = append(removed, addr)
		}
	}
	return removed
}

// PrunePhantoms removes aircraft that never produced a position within
// the phantom timeout. These are almost always CRC residuals that slipped
// through address recovery.
func (t *Tracker) PrunePhantoms(now time.Time) []adsb.IcaoAddress {
	t.mu.Lock()
	defer t.mu.Unlock()

	var removed []adsb.IcaoAddress
	cutoff := now.Add(-t.cfg.PhantomTimeout)
	for addr, ac := range t.states {
		if !ac.hasPosition && ac.firstSeen.Before(cutoff) {
			delete(t.states, addr)
			removed = append(removed, addr)
		}
	}
	return removed
}

// Stats returns a copy of the decode counters.
func (t *Tracker) Stats() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.stats
}

// Len returns the number of tracked aircraft.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.states)
}
