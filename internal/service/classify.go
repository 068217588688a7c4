package service

import (
	"fmt"
	"time"

	"github.com/rajurautt/happybus/internal/model"
)

// Timestamp layouts accepted in lastUpdate and trackingStatus cells. A cell
// matching none of these is treated as absent.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02 15:04:05",
}

func parseTimestamp(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// classify decides the tracking state for a bus and its location record at
// the given instant. The decision is re-derived on every query; nothing is
// persisted.
//
// A (0,0) coordinate pair is the store's sentinel for "never reported" and
// always classifies as offline, even though it is a real point on the globe.
func classify(bus model.Bus, loc *model.Location, now time.Time, cfg Config) model.TrackingState {
	if loc == nil || bus.Status != "active" {
		return model.StateInactive
	}
	if loc.Latitude == 0 && loc.Longitude == 0 {
		return model.StateOffline
	}

	if loc.TrackingStatus == "ACTIVE" {
		return model.StateLive
	}
	if t, ok := parseTimestamp(loc.TrackingStatus); ok {
		if now.Sub(t) <= cfg.TrackingStatusFresh {
			return model.StateLive
		}
	}
	if t, ok := parseTimestamp(loc.LastUpdate); ok {
		if now.Sub(t) <= cfg.LastUpdateFresh {
			return model.StateLive
		}
	}
	return model.StateOffline
}

// signalQuality maps the age of the last update onto a 0-4 tier. Cosmetic
// only; it never feeds the live/offline decision.
func signalQuality(lastUpdate string, now time.Time) int {
	t, ok := parseTimestamp(lastUpdate)
	if !ok {
		return 0
	}
	age := now.Sub(t)
	switch {
	case age < time.Minute:
		return 4
	case age < 3*time.Minute:
		return 3
	case age < 5*time.Minute:
		return 2
	case age < 10*time.Minute:
		return 1
	default:
		return 0
	}
}

// formatLastSeen humanizes the age of the last update.
func formatLastSeen(lastUpdate string, now time.Time) string {
	t, ok := parseTimestamp(lastUpdate)
	if !ok {
		return "Never"
	}

	minutes := int(now.Sub(t).Minutes())
	if minutes < 1 {
		return "Just now"
	}
	if minutes < 60 {
		return fmt.Sprintf("%d min ago", minutes)
	}

	hours := minutes / 60
	if hours < 24 {
		return fmt.Sprintf("%d %s ago", hours, plural("hour", hours))
	}

	days := hours / 24
	return fmt.Sprintf("%d %s ago", days, plural("day", days))
}

func plural(unit string, n int) string {
	if n > 1 {
		return unit + "s"
	}
	return unit
}
