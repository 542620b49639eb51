package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversineSamePoint(t *testing.T) {
	assert.InDelta(t, 0.0, HaversineNM(35.0, -82.0, 35.0, -82.0), 0.01)
}

func TestHaversineKnownDistance(t *testing.T) {
	// Asheville to Charlotte is roughly 79 nm.
	d := HaversineNM(35.4362, -82.5418, 35.2140, -80.9431)
	assert.InDelta(t, 79, d, 15)
}

func TestHaversineOneDegreeLatitude(t *testing.T) {
	// One degree of latitude is 60 nm by definition of the nautical mile.
	d := HaversineNM(10.0, 0.0, 11.0, 0.0)
	assert.InDelta(t, 60, d, 0.2)
}

func TestHaversineAntimeridian(t *testing.T) {
	// Crossing the date line should be the short way around.
	d := HaversineNM(0.0, 179.9, 0.0, -179.9)
	assert.Less(t, d, 15.0)
}
