package service

import (
	"testing"
	"time"

	"github.com/rajurautt/happybus/internal/model"
)

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func stamp(age time.Duration) string {
	return testNow.Add(-age).Format("2006-01-02 15:04:05")
}

func activeBus() model.Bus {
	return model.Bus{BusID: "B1", Route: "RouteA", Driver: "Driver1", Status: "active"}
}

func TestClassify(t *testing.T) {
	cfg := DefaultConfig()

	cases := []struct {
		name string
		bus  model.Bus
		loc  *model.Location
		want model.TrackingState
	}{
		{
			"No location record",
			activeBus(),
			nil,
			model.StateInactive,
		},
		{
			"Inactive bus ignores fresh location",
			model.Bus{BusID: "B1", Route: "R", Driver: "D", Status: "inactive"},
			&model.Location{BusID: "B1", Latitude: 12.9, Longitude: 77.5, TrackingStatus: "ACTIVE"},
			model.StateInactive,
		},
		{
			"Sentinel zero coordinates",
			activeBus(),
			&model.Location{BusID: "B1", Latitude: 0, Longitude: 0, TrackingStatus: "ACTIVE"},
			model.StateOffline,
		},
		{
			"Literal ACTIVE wins over stale lastUpdate",
			activeBus(),
			&model.Location{BusID: "B1", Latitude: 12.9, Longitude: 77.5, TrackingStatus: "ACTIVE", LastUpdate: stamp(3 * time.Hour)},
			model.StateLive,
		},
		{
			"Tracking timestamp 14 minutes old",
			activeBus(),
			&model.Location{BusID: "B1", Latitude: 12.9, Longitude: 77.5, TrackingStatus: stamp(14 * time.Minute)},
			model.StateLive,
		},
		{
			"Tracking timestamp 16 minutes old falls through",
			activeBus(),
			&model.Location{BusID: "B1", Latitude: 12.9, Longitude: 77.5, TrackingStatus: stamp(16 * time.Minute)},
			model.StateOffline,
		},
		{
			"Last update 9 minutes old",
			activeBus(),
			&model.Location{BusID: "B1", Latitude: 12.9, Longitude: 77.5, TrackingStatus: "INACTIVE", LastUpdate: stamp(9 * time.Minute)},
			model.StateLive,
		},
		{
			"Last update 11 minutes old",
			activeBus(),
			&model.Location{BusID: "B1", Latitude: 12.9, Longitude: 77.5, TrackingStatus: "INACTIVE", LastUpdate: stamp(11 * time.Minute)},
			model.StateOffline,
		},
		{
			"Garbage tracking status with fresh lastUpdate",
			activeBus(),
			&model.Location{BusID: "B1", Latitude: 12.9, Longitude: 77.5, TrackingStatus: "yesterday-ish", LastUpdate: stamp(2 * time.Minute)},
			model.StateLive,
		},
		{
			"No usable timestamps",
			activeBus(),
			&model.Location{BusID: "B1", Latitude: 12.9, Longitude: 77.5, TrackingStatus: "INACTIVE"},
			model.StateOffline,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := classify(c.bus, c.loc, testNow, cfg); got != c.want {
				t.Errorf("classify() = %q, want %q", got, c.want)
			}
		})
	}
}

func TestParseTimestampLayouts(t *testing.T) {
	cases := []struct {
		name string
		in   string
		ok   bool
	}{
		{"Space separated", "2025-03-10 11:45:00", true},
		{"T separated", "2025-03-10T11:45:00", true},
		{"RFC3339 with zone", "2025-03-10T11:45:00Z", true},
		{"Slash separated", "2025/03/10 11:45:00", true},
		{"Empty", "", false},
		{"Literal word", "ACTIVE", false},
		{"Date only", "2025-03-10", false},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, ok := parseTimestamp(c.in); ok != c.ok {
				t.Errorf("parseTimestamp(%q) ok = %v, want %v", c.in, ok, c.ok)
			}
		})
	}
}

func TestSignalQuality(t *testing.T) {
	cases := []struct {
		name string
		age  time.Duration
		want int
	}{
		{"Under a minute", 30 * time.Second, 4},
		{"Two minutes", 2 * time.Minute, 3},
		{"Four minutes", 4 * time.Minute, 2},
		{"Eight minutes", 8 * time.Minute, 1},
		{"Fifteen minutes", 15 * time.Minute, 0},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := signalQuality(stamp(c.age), testNow); got != c.want {
				t.Errorf("signalQuality(age=%v) = %d, want %d", c.age, got, c.want)
			}
		})
	}

	if got := signalQuality("", testNow); got != 0 {
		t.Errorf("signalQuality(empty) = %d, want 0", got)
	}
}

func TestFormatLastSeen(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"Empty", "", "Never"},
		{"Just now", stamp(20 * time.Second), "Just now"},
		{"Minutes", stamp(5 * time.Minute), "5 min ago"},
		{"Single hour", stamp(90 * time.Minute), "1 hour ago"},
		{"Plural hours", stamp(3 * time.Hour), "3 hours ago"},
		{"Single day", stamp(25 * time.Hour), "1 day ago"},
		{"Plural days", stamp(49 * time.Hour), "2 days ago"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := formatLastSeen(c.in, testNow); got != c.want {
				t.Errorf("formatLastSeen(%q) = %q, want %q", c.in, got, c.want)
			}
		})
	}
}
