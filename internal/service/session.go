package service

import (
	"context"

	"github.com/rajurautt/happybus/internal/geo"
	"github.com/rajurautt/happybus/internal/model"
)

// trackingSession is the per-rider transient state: last known device
// position and the bus currently under inspection. Cleared on logout.
type trackingSession struct {
	riderLat float64
	riderLng float64
	hasFix   bool
	focused  string
}

func (s *Service) session(roll string) *trackingSession {
	s.sessMu.Lock()
	defer s.sessMu.Unlock()
	sess, ok := s.sessions[roll]
	if !ok {
		sess = &trackingSession{}
		s.sessions[roll] = sess
	}
	return sess
}

// ActiveSessions reports how many riders currently hold a session. The poll
// loop idles when this is zero.
func (s *Service) ActiveSessions() int {
	s.sessMu.Lock()
	defer s.sessMu.Unlock()
	return len(s.sessions)
}

// OpenSession registers a rider session after login.
func (s *Service) OpenSession(roll string) {
	s.session(roll)
}

// SetRiderLocation replaces the rider's last known position. The first fix
// is sufficient; later calls simply overwrite it.
func (s *Service) SetRiderLocation(roll string, lat, lng float64) {
	sess := s.session(roll)
	s.sessMu.Lock()
	sess.riderLat, sess.riderLng, sess.hasFix = lat, lng, true
	s.sessMu.Unlock()
}

// FocusBus marks a bus for distance/route inspection. It fails when the bus
// has no location record in the current snapshot.
func (s *Service) FocusBus(roll, busID string) error {
	snap, err := s.Snapshot()
	if err != nil {
		return err
	}
	if _, ok := snap.BusFor(busID); !ok {
		return ErrBusUnavailable
	}
	if _, ok := snap.LocationFor(busID); !ok {
		return ErrBusUnavailable
	}
	sess := s.session(roll)
	s.sessMu.Lock()
	sess.focused = busID
	s.sessMu.Unlock()
	return nil
}

// ClearFocus dismisses the inspected bus.
func (s *Service) ClearFocus(roll string) {
	sess := s.session(roll)
	s.sessMu.Lock()
	sess.focused = ""
	s.sessMu.Unlock()
}

// Logout drops the rider session entirely, including the stored fix.
func (s *Service) Logout(roll string) {
	s.sessMu.Lock()
	delete(s.sessions, roll)
	s.sessMu.Unlock()
}

// DistanceETA computes the rider-to-bus distance and arrival estimate. The
// rider must have reported a position first; place names degrade to
// coordinate text on geocoder failure rather than surfacing an error.
func (s *Service) DistanceETA(ctx context.Context, roll, busID string) (model.DistanceReport, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return model.DistanceReport{}, err
	}
	loc, ok := snap.LocationFor(busID)
	if !ok {
		return model.DistanceReport{}, ErrBusUnavailable
	}

	sess := s.session(roll)
	s.sessMu.Lock()
	hasFix := sess.hasFix
	riderLat, riderLng := sess.riderLat, sess.riderLng
	sess.focused = busID
	s.sessMu.Unlock()
	if !hasFix {
		return model.DistanceReport{}, ErrLocationNeeded
	}

	dist := geo.DistanceKm(riderLat, riderLng, loc.Latitude, loc.Longitude)
	speed := parseSpeed(loc.Speed)

	return model.DistanceReport{
		BusID:      busID,
		DistanceKm: dist,
		ETA:        geo.ETAText(dist, speed),
		SpeedKmh:   speed,
		RiderPlace: s.geocoder.Reverse(ctx, riderLat, riderLng),
		BusPlace:   s.geocoder.Reverse(ctx, loc.Latitude, loc.Longitude),
	}, nil
}

// RouteProgress reports how far along its configured route a bus is.
func (s *Service) RouteProgress(ctx context.Context, busID string) (model.ProgressReport, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return model.ProgressReport{}, err
	}
	bus, ok := snap.BusFor(busID)
	if !ok {
		return model.ProgressReport{}, ErrBusUnavailable
	}
	loc, ok := snap.LocationFor(busID)
	if !ok {
		return model.ProgressReport{}, ErrBusUnavailable
	}
	if !bus.HasRoute() {
		return model.ProgressReport{}, ErrRouteNotConfigured
	}

	p := geo.RouteProgress(
		*bus.StartLat, *bus.StartLng,
		*bus.EndLat, *bus.EndLng,
		loc.Latitude, loc.Longitude,
		s.cfg.ArrivalToleranceKm,
	)
	speed := parseSpeed(loc.Speed)

	return model.ProgressReport{
		BusID:        busID,
		Route:        bus.Route,
		ProgressPct:  p.Pct,
		TotalKm:      p.TotalKm,
		CoveredKm:    p.CoveredKm,
		RemainingKm:  p.RemainingKm,
		Completed:    p.Completed,
		ETAToEnd:     geo.ETAText(p.RemainingKm, speed),
		StartPlace:   s.geocoder.Reverse(ctx, *bus.StartLat, *bus.StartLng),
		CurrentPlace: s.geocoder.Reverse(ctx, loc.Latitude, loc.Longitude),
		EndPlace:     s.geocoder.Reverse(ctx, *bus.EndLat, *bus.EndLng),
	}, nil
}
