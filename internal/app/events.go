package app

import (
	"fmt"
	"strings"
	"time"

	"adsb1090/internal/filter"
	"adsb1090/internal/track"
)

// Event log line formats. CSV with a leading record tag, one event per
// line; empty fields mean "not present". A durable encoding is the
// persistence collaborator's concern — this is the receiver-side feed.

func formatTrackEvent(e *track.TrackEvent) string {
	fields := []string{
		"TRK",
		string(e.Kind),
		e.Addr.String(),
		e.Time.UTC().Format(time.RFC3339Nano),
		e.Callsign,
		e.Squawk,
	}
	if e.HasPosition {
		fields = append(fields, fmt.Sprintf("%.6f", e.Lat), fmt.Sprintf("%.6f", e.Lon))
	} else {
		fields = append(fields, "", "")
	}
	fields = append(fields, optInt(e.AltitudeFt), optFloat(e.SpeedKt), optFloat(e.HeadingDeg), optInt(e.VRateFpm))
	if e.Military {
		fields = append(fields, "M")
	} else {
		fields = append(fields, "")
	}
	return strings.Join(fields, ",")
}

func formatAnomalyEvent(e *filter.AnomalyEvent) string {
	fields := []string{
		"ANOM",
		string(e.Kind),
		e.Addr.String(),
		e.OccurredAt.UTC().Format(time.RFC3339Nano),
		strings.ReplaceAll(e.Details, ",", ";"),
	}
	return strings.Join(fields, ",")
}

func optInt(v *int) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%d", *v)
}

func optFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%.1f", *v)
}
