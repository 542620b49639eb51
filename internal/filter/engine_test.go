package filter

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adsb1090/internal/adsb"
	"adsb1090/internal/track"
)

func at(sec int) time.Time {
	return time.Unix(int64(sec), 0)
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	engine, err := NewEngine(DefaultConfig(), logrus.New())
	require.NoError(t, err)
	return engine
}

func makeAircraft(t *testing.T, hex string) track.Aircraft {
	t.Helper()
	a, ok := adsb.IcaoFromHex(hex)
	require.True(t, ok)
	return track.Aircraft{Addr: a, LastSeen: at(1)}
}

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func hasKind(events []AnomalyEvent, kind Kind) bool {
	for _, e := range events {
		if e.Kind == kind {
			return true
		}
	}
	return false
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(c *Config) {}, true},
		{"zero radius fence", func(c *Config) {
			c.Geofences = []Geofence{{ID: "bad", RadiusNM: 0}}
		}, false},
		{"fence center out of range", func(c *Config) {
			c.Geofences = []Geofence{{ID: "bad", CenterLat: 95, RadiusNM: 5}}
		}, false},
		{"negative dedupe", func(c *Config) {
			c.DefaultDedupeWindow = -time.Second
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			_, err := NewEngine(cfg, logrus.New())
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestMilitaryDetection(t *testing.T) {
	engine := newTestEngine(t)
	ac := makeAircraft(t, "ADF7C8")
	ac.Military = true

	events := engine.Check(&ac, at(1))
	assert.True(t, hasKind(events, KindMilitary))
}

func TestMilitaryDedupeAndReemit(t *testing.T) {
	engine := newTestEngine(t)
	ac := makeAircraft(t, "ADF7C8")
	ac.Military = true

	assert.True(t, hasKind(engine.Check(&ac, at(1)), KindMilitary))
	assert.False(t, hasKind(engine.Check(&ac, at(30)), KindMilitary), "within dedupe window")
	assert.True(t, hasKind(engine.Check(&ac, at(62)), KindMilitary), "re-emitted after 60s")
}

func TestEmergencySquawks(t *testing.T) {
	tests := []struct {
		squawk string
		want   bool
	}{
		{"7500", true},
		{"7600", true},
		{"7700", true},
		{"1200", false},
		{"0000", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run("squawk "+tt.squawk, func(t *testing.T) {
			engine := newTestEngine(t)
			ac := makeAircraft(t, "4840D6")
			ac.Squawk = tt.squawk
			events := engine.Check(&ac, at(1))
			assert.Equal(t, tt.want, hasKind(events, KindEmergencySquawk))
		})
	}
}

func TestEmergencyShortReemitWindow(t *testing.T) {
	engine := newTestEngine(t)
	ac := makeAircraft(t, "4840D6")
	ac.Squawk = "7700"

	assert.True(t, hasKind(engine.Check(&ac, at(1)), KindEmergencySquawk))
	assert.False(t, hasKind(engine.Check(&ac, at(5)), KindEmergencySquawk))
	assert.True(t, hasKind(engine.Check(&ac, at(12)), KindEmergencySquawk),
		"emergency re-emits after 10s, not 60s")
}

func TestRapidDescentNeedsSustainedReports(t *testing.T) {
	engine := newTestEngine(t)
	ac := makeAircraft(t, "4840D6")
	ac.VRateFpm = intPtr(-6000)
	ac.AltitudeFt = intPtr(10000)

	events := engine.Check(&ac, at(1))
	assert.False(t, hasKind(events, KindRapidDescent), "a single report is not sustained")

	events = engine.Check(&ac, at(2))
	assert.True(t, hasKind(events, KindRapidDescent), "second consecutive report triggers")
}

func TestRapidDescentStreakResets(t *testing.T) {
	engine := newTestEngine(t)
	ac := makeAircraft(t, "4840D6")

	ac.VRateFpm = intPtr(-6000)
	engine.Check(&ac, at(1))
	ac.VRateFpm = intPtr(-1000)
	engine.Check(&ac, at(2))
	ac.VRateFpm = intPtr(-6000)
	events := engine.Check(&ac, at(3))
	assert.False(t, hasKind(events, KindRapidDescent), "streak reset by the normal report")
}

func TestLowAltitudeRequiresSpeed(t *testing.T) {
	tests := []struct {
		name  string
		alt   *int
		speed *float64
		want  bool
	}{
		{"low and fast", intPtr(300), floatPtr(120), true},
		{"low but slow", intPtr(300), floatPtr(20), false},
		{"on the ground", intPtr(0), floatPtr(120), false},
		{"high", intPtr(5000), floatPtr(120), false},
		{"no speed", intPtr(300), nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newTestEngine(t)
			ac := makeAircraft(t, "4840D6")
			ac.AltitudeFt = tt.alt
			ac.SpeedKt = tt.speed
			events := engine.Check(&ac, at(1))
			assert.Equal(t, tt.want, hasKind(events, KindLowAltitude))
		})
	}
}

func circlingHistory(start int, stepDeg float64, n int) []track.HistorySample {
	var history []track.HistorySample
	for i := 0; i < n; i++ {
		h := float64(int(float64(i)*stepDeg) % 360)
		history = append(history, track.HistorySample{
			Time:       at(start + i*7),
			HeadingDeg: &h,
		})
	}
	return history
}

func TestCirclingDetection(t *testing.T) {
	engine := newTestEngine(t)
	ac := makeAircraft(t, "4840D6")
	// 40 samples turning 10 degrees each: 390 degrees cumulative.
	ac.History = circlingHistory(1, 10, 40)
	ac.LastSeen = at(280)

	events := engine.Check(&ac, at(280))
	assert.True(t, hasKind(events, KindCircling))
}

func TestCirclingHandlesWraparound(t *testing.T) {
	engine := newTestEngine(t)
	ac := makeAircraft(t, "4840D6")

	// Headings crossing 360 repeatedly: 350 -> 10 is a +20 turn, not -340.
	var history []track.HistorySample
	heading := 350.0
	for i := 0; i < 40; i++ {
		h := heading
		history = append(history, track.HistorySample{Time: at(1 + i*7), HeadingDeg: &h})
		heading += 10
		if heading >= 360 {
			heading -= 360
		}
	}
	ac.History = history

	events := engine.Check(&ac, at(280))
	assert.True(t, hasKind(events, KindCircling))
}

func TestStraightFlightNotCircling(t *testing.T) {
	engine := newTestEngine(t)
	ac := makeAircraft(t, "4840D6")
	h := 90.0
	for i := 0; i < 40; i++ {
		ac.History = append(ac.History, track.HistorySample{Time: at(1 + i*7), HeadingDeg: &h})
	}

	events := engine.Check(&ac, at(280))
	assert.False(t, hasKind(events, KindCircling))
}

func TestHoldingPattern(t *testing.T) {
	engine := newTestEngine(t)
	ac := makeAircraft(t, "4840D6")

	// Racetrack: 36-second legs on reciprocal headings 90/270 at a
	// stable altitude.
	alt := 8000
	for i := 0; i < 24; i++ {
		h := 90.0
		if (i/6)%2 == 1 {
			h = 270.0
		}
		hv := h
		av := alt + (i%2)*100
		ac.History = append(ac.History, track.HistorySample{
			Time:       at(i * 6),
			HeadingDeg: &hv,
			AltitudeFt: &av,
		})
	}

	events := engine.Check(&ac, at(140))
	assert.True(t, hasKind(events, KindHolding))
}

func TestHoldingRejectsClimbingTraffic(t *testing.T) {
	engine := newTestEngine(t)
	ac := makeAircraft(t, "4840D6")

	for i := 0; i < 24; i++ {
		h := 90.0
		if (i/6)%2 == 1 {
			h = 270.0
		}
		hv := h
		av := 8000 + i*100 // climbing through 2300 ft of altitude
		ac.History = append(ac.History, track.HistorySample{
			Time:       at(i * 6),
			HeadingDeg: &hv,
			AltitudeFt: &av,
		})
	}

	events := engine.Check(&ac, at(140))
	assert.False(t, hasKind(events, KindHolding))
}

func TestProximityPair(t *testing.T) {
	engine := newTestEngine(t)

	a := makeAircraft(t, "010203")
	a.Lat, a.Lon, a.HasPosition = 35.0, -82.0, true
	a.AltitudeFt = intPtr(10000)

	b := makeAircraft(t, "040506")
	b.Lat, b.Lon, b.HasPosition = 35.01, -82.01, true
	b.AltitudeFt = intPtr(10200)

	events := engine.CheckPairwise([]track.Aircraft{a, b}, at(100))
	assert.True(t, hasKind(events, KindProximity))
}

func TestProximityVerticalSeparationClears(t *testing.T) {
	engine := newTestEngine(t)

	a := makeAircraft(t, "010203")
	a.Lat, a.Lon, a.HasPosition = 35.0, -82.0, true
	a.AltitudeFt = intPtr(10000)

	b := makeAircraft(t, "040506")
	b.Lat, b.Lon, b.HasPosition = 35.01, -82.01, true
	b.AltitudeFt = intPtr(12000)

	events := engine.CheckPairwise([]track.Aircraft{a, b}, at(100))
	assert.False(t, hasKind(events, KindProximity), "2000 ft vertical separation is safe")
}

func TestProximityRateLimited(t *testing.T) {
	engine := newTestEngine(t)

	a := makeAircraft(t, "010203")
	a.Lat, a.Lon, a.HasPosition = 35.0, -82.0, true
	a.AltitudeFt = intPtr(10000)
	b := makeAircraft(t, "040506")
	b.Lat, b.Lon, b.HasPosition = 35.01, -82.01, true
	b.AltitudeFt = intPtr(10000)
	snap := []track.Aircraft{a, b}

	assert.NotEmpty(t, engine.CheckPairwise(snap, at(100)))
	assert.Empty(t, engine.CheckPairwise(snap, at(105)), "sweeps run at most every 10s")
}

func TestUnusualAltitudeAwayFromAirports(t *testing.T) {
	engine := newTestEngine(t)
	ac := makeAircraft(t, "4840D6")
	// Mid North Atlantic: no airport within 15 nm.
	ac.Lat, ac.Lon, ac.HasPosition = 45.0, -40.0, true
	ac.SpeedKt = floatPtr(350)
	ac.AltitudeFt = intPtr(1500)

	events := engine.Check(&ac, at(1))
	assert.True(t, hasKind(events, KindUnusualAltitude))
}

func TestUnusualAltitudeNearAirportSuppressed(t *testing.T) {
	engine := newTestEngine(t)
	ac := makeAircraft(t, "4840D6")
	// Short final into Charlotte.
	ac.Lat, ac.Lon, ac.HasPosition = 35.22, -80.95, true
	ac.SpeedKt = floatPtr(250)
	ac.AltitudeFt = intPtr(1500)

	events := engine.Check(&ac, at(1))
	assert.False(t, hasKind(events, KindUnusualAltitude))
}

func TestUnusualAltitudeSlowTrafficIgnored(t *testing.T) {
	engine := newTestEngine(t)
	ac := makeAircraft(t, "4840D6")
	ac.Lat, ac.Lon, ac.HasPosition = 45.0, -40.0, true
	ac.SpeedKt = floatPtr(120)
	ac.AltitudeFt = intPtr(1500)

	events := engine.Check(&ac, at(1))
	assert.False(t, hasKind(events, KindUnusualAltitude))
}

func TestGeofenceEnterTransition(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Geofences = []Geofence{{ID: "test-zone", CenterLat: 35.0, CenterLon: -82.0, RadiusNM: 10}}
	engine, err := NewEngine(cfg, logrus.New())
	require.NoError(t, err)

	ac := makeAircraft(t, "4840D6")
	ac.HasPosition = true

	// Outside first.
	ac.Lat, ac.Lon = 36.0, -82.0
	events := engine.Check(&ac, at(1))
	assert.False(t, hasKind(events, KindGeofenceEnter))

	// Entering.
	ac.Lat, ac.Lon = 35.01, -82.01
	events = engine.Check(&ac, at(2))
	assert.True(t, hasKind(events, KindGeofenceEnter))

	// Still inside: no repeat.
	events = engine.Check(&ac, at(90))
	assert.False(t, hasKind(events, KindGeofenceEnter))

	// Leave and re-enter after the dedupe window: fires again.
	ac.Lat, ac.Lon = 36.0, -82.0
	engine.Check(&ac, at(100))
	ac.Lat, ac.Lon = 35.01, -82.01
	events = engine.Check(&ac, at(170))
	assert.True(t, hasKind(events, KindGeofenceEnter))
}

func TestForgetClearsState(t *testing.T) {
	engine := newTestEngine(t)
	ac := makeAircraft(t, "ADF7C8")
	ac.Military = true

	assert.True(t, hasKind(engine.Check(&ac, at(1)), KindMilitary))
	engine.Forget(ac.Addr)
	assert.True(t, hasKind(engine.Check(&ac, at(2)), KindMilitary),
		"forgotten aircraft alerts again immediately")
}
