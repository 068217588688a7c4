package model

import "time"

// Column order in the Buses and LiveLocations sheets is the contract with
// the spreadsheet store. Row index 0 is the header and is never parsed.
//
//	Buses:         busId, route, driver, phone, capacity, status,
//	               startTime, endTime, routeKey, startLat, startLng,
//	               endLat, endLng
//	LiveLocations: busId, latitude, longitude, speed, lastUpdate,
//	               trackingStatus
//	Students:      name, studentId, roll, department, phone, password, status
//	Drivers:       busId, name, phone, pin

type Bus struct {
	BusID     string `json:"bus_id"`
	Route     string `json:"route"`
	Driver    string `json:"driver"`
	Phone     string `json:"phone"`
	Capacity  string `json:"capacity"`
	Status    string `json:"status"` // "active" or "inactive"
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	RouteKey  string `json:"route_key"`

	// Route endpoints are optional; nil means route progress is
	// unavailable for this bus.
	StartLat *float64 `json:"start_lat,omitempty"`
	StartLng *float64 `json:"start_lng,omitempty"`
	EndLat   *float64 `json:"end_lat,omitempty"`
	EndLng   *float64 `json:"end_lng,omitempty"`
}

// HasRoute reports whether all four route endpoint coordinates are configured.
func (b Bus) HasRoute() bool {
	return b.StartLat != nil && b.StartLng != nil && b.EndLat != nil && b.EndLng != nil
}

type Location struct {
	BusID     string  `json:"bus_id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Speed     string  `json:"speed"`
	// LastUpdate and TrackingStatus are kept as raw strings; the
	// classifier decides how to interpret them at query time.
	LastUpdate     string `json:"last_update"`
	TrackingStatus string `json:"tracking_status"`
}

type Student struct {
	Name       string `json:"name"`
	StudentID  string `json:"student_id"`
	Roll       string `json:"roll"`
	Department string `json:"department"`
	Phone      string `json:"phone"`
	Status     string `json:"status"` // approved / pending / rejected
}

type Driver struct {
	BusID string `json:"bus_id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
	PIN   string `json:"-"`
}

// Snapshot is the fleet view from one successful poll. It is replaced
// wholesale on every refresh and never mutated in place.
type Snapshot struct {
	Buses     []Bus
	Locations []Location
	FetchedAt time.Time
}

// LocationFor returns the live location row for a bus, if one exists.
func (s *Snapshot) LocationFor(busID string) (Location, bool) {
	for _, loc := range s.Locations {
		if loc.BusID == busID {
			return loc, true
		}
	}
	return Location{}, false
}

// BusFor returns the bus record with the given id, if one exists.
func (s *Snapshot) BusFor(busID string) (Bus, bool) {
	for _, b := range s.Buses {
		if b.BusID == busID {
			return b, true
		}
	}
	return Bus{}, false
}

// TrackingState is the live/offline/inactive classification of a bus. It is
// derived at query time and never stored.
type TrackingState string

const (
	StateLive     TrackingState = "live"
	StateOffline  TrackingState = "offline"
	StateInactive TrackingState = "inactive"
)

// BusCard is the view-model rendered as one dashboard card.
type BusCard struct {
	Bus           Bus           `json:"bus"`
	State         TrackingState `json:"state"`
	SignalQuality int           `json:"signal_quality"` // 0..4, cosmetic
	LastSeen      string        `json:"last_seen"`
	Speed         string        `json:"speed,omitempty"`
	LocationName  string        `json:"location_name,omitempty"`
	HasRoute      bool          `json:"has_route"`
}

// DistanceReport answers a rider's "find this bus" query.
type DistanceReport struct {
	BusID      string  `json:"bus_id"`
	DistanceKm float64 `json:"distance_km"`
	ETA        string  `json:"eta"`
	SpeedKmh   float64 `json:"speed_kmh"`
	RiderPlace string  `json:"rider_place"`
	BusPlace   string  `json:"bus_place"`
}

// ProgressReport answers a route-progress query for a bus with configured
// route endpoints.
type ProgressReport struct {
	BusID        string  `json:"bus_id"`
	Route        string  `json:"route"`
	ProgressPct  int     `json:"progress_pct"`
	TotalKm      float64 `json:"total_km"`
	CoveredKm    float64 `json:"covered_km"`
	RemainingKm  float64 `json:"remaining_km"`
	Completed    bool    `json:"completed"`
	ETAToEnd     string  `json:"eta_to_end"`
	StartPlace   string  `json:"start_place"`
	CurrentPlace string  `json:"current_place"`
	EndPlace     string  `json:"end_place"`
}

// RegistrationForm is the payload forwarded to the registration endpoint.
type RegistrationForm struct {
	Name       string `json:"name"`
	StudentID  string `json:"studentId"`
	Roll       string `json:"roll"`
	Department string `json:"department"`
	Phone      string `json:"phone"`
	Email      string `json:"email,omitempty"`
	Password   string `json:"password"`
}
