package service

import (
	"math"
	"strconv"
	"strings"

	"github.com/rajurautt/happybus/internal/model"
)

// cell returns the trimmed value at index i, or "" when the row is short.
func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func cellOr(row []string, i int, fallback string) string {
	if v := cell(row, i); v != "" {
		return v
	}
	return fallback
}

// floatCell parses a route endpoint coordinate. Zero means the endpoint
// was never filled in, so it maps to nil like any other unparseable value.
func floatCell(row []string, i int) *float64 {
	v := cell(row, i)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f == 0 {
		return nil
	}
	return &f
}

// normalizeBuses converts raw Buses rows into validated records. The header
// row is skipped and malformed rows are dropped silently; this is a data
// quality filter, not an error condition.
func normalizeBuses(rows [][]string) []model.Bus {
	buses := make([]model.Bus, 0, len(rows))
	for i := 1; i < len(rows); i++ {
		row := rows[i]
		if len(row) < 6 {
			continue
		}
		bus := model.Bus{
			BusID:     cell(row, 0),
			Route:     cellOr(row, 1, "Not assigned"),
			Driver:    cellOr(row, 2, "Not assigned"),
			Phone:     cellOr(row, 3, "Not provided"),
			Capacity:  cellOr(row, 4, "Not specified"),
			Status:    cellOr(row, 5, "inactive"),
			StartTime: cellOr(row, 6, "Not set"),
			EndTime:   cellOr(row, 7, "Not set"),
			RouteKey:  cell(row, 8),
			StartLat:  floatCell(row, 9),
			StartLng:  floatCell(row, 10),
			EndLat:    floatCell(row, 11),
			EndLng:    floatCell(row, 12),
		}
		if !validBus(bus) {
			continue
		}
		buses = append(buses, bus)
	}
	return buses
}

func validBus(b model.Bus) bool {
	return b.BusID != "" && b.Route != "" && b.Driver != ""
}

// normalizeLocations converts raw LiveLocations rows. Coordinates that fail
// to parse fall back to the (0,0) sentinel rather than dropping the row;
// only a missing bus id or out-of-range coordinates reject it. A bad speed
// cell degrades to "0".
func normalizeLocations(rows [][]string) []model.Location {
	locations := make([]model.Location, 0, len(rows))
	for i := 1; i < len(rows); i++ {
		row := rows[i]
		if cell(row, 0) == "" {
			continue
		}
		loc := model.Location{
			BusID:          cell(row, 0),
			Latitude:       coordCell(row, 1),
			Longitude:      coordCell(row, 2),
			Speed:          speedCell(row, 3),
			LastUpdate:     cell(row, 4),
			TrackingStatus: cellOr(row, 5, "INACTIVE"),
		}
		if !validLocation(loc) {
			continue
		}
		locations = append(locations, loc)
	}
	return locations
}

func coordCell(row []string, i int) float64 {
	f, err := strconv.ParseFloat(cell(row, i), 64)
	if err != nil {
		return 0
	}
	return f
}

func speedCell(row []string, i int) string {
	v := cellOr(row, i, "0")
	if _, err := strconv.ParseFloat(v, 64); err != nil {
		return "0"
	}
	return v
}

func validLocation(loc model.Location) bool {
	// NaN fails both comparisons and is rejected here too.
	return loc.BusID != "" &&
		math.Abs(loc.Latitude) <= 90 &&
		math.Abs(loc.Longitude) <= 180
}
