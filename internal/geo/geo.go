package geo

import (
	"fmt"
	"math"
)

// earthRadiusKm is the mean Earth radius used for great-circle distances.
const earthRadiusKm = 6371.0

// DistanceKm returns the haversine great-circle distance in kilometers
// between two points given in decimal degrees.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}

// ETAText renders an arrival estimate for covering distanceKm at speedKmh.
// A zero or negative speed yields "Unknown".
func ETAText(distanceKm, speedKmh float64) string {
	if speedKmh <= 0 {
		return "Unknown"
	}
	minutes := int(math.Round(distanceKm / speedKmh * 60))
	if minutes < 60 {
		return fmt.Sprintf("%d minutes", minutes)
	}
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}

// Progress describes how far along a start->end path a current position is,
// measured by great-circle distance ratio.
type Progress struct {
	Pct         int
	TotalKm     float64
	CoveredKm   float64
	RemainingKm float64
	Completed   bool
}

// RouteProgress computes path progress for a current position between route
// endpoints. The percentage is clamped to 100; the bus is considered arrived
// once the remaining distance falls within arrivalKm. Callers with missing
// coordinates must not call this; see the nil checks at the session boundary.
func RouteProgress(startLat, startLng, endLat, endLng, curLat, curLng, arrivalKm float64) Progress {
	total := DistanceKm(startLat, startLng, endLat, endLng)
	covered := DistanceKm(startLat, startLng, curLat, curLng)
	remaining := DistanceKm(curLat, curLng, endLat, endLng)

	pct := 0
	if total > 0 {
		pct = int(math.Round(covered / total * 100))
		if pct > 100 {
			pct = 100
		}
	}

	return Progress{
		Pct:         pct,
		TotalKm:     total,
		CoveredKm:   covered,
		RemainingKm: remaining,
		Completed:   remaining <= arrivalKm,
	}
}
