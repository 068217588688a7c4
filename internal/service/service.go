package service

import (
	"context"
	"errors"
	"log"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rajurautt/happybus/internal/metrics"
	"github.com/rajurautt/happybus/internal/model"
	"github.com/rajurautt/happybus/internal/sheets"
)

var (
	// ErrNoSnapshot means no poll has ever succeeded; the caller should
	// show a retry affordance. After the first success, failed polls keep
	// the previous snapshot and this error is never returned again.
	ErrNoSnapshot = errors.New("no fleet data available yet")

	// ErrRefreshInFlight means a concurrent refresh trigger was dropped.
	ErrRefreshInFlight = errors.New("refresh already in progress")

	ErrLocationNeeded     = errors.New("rider location needed")
	ErrBusUnavailable     = errors.New("bus location not available")
	ErrRouteNotConfigured = errors.New("route coordinates not configured")
)

// Config carries the tunable constants of the tracking engine. The freshness
// windows and arrival tolerance are empirical; they are parameters rather
// than literals so deployments can adjust them.
type Config struct {
	PollInterval        time.Duration
	TrackingStatusFresh time.Duration
	LastUpdateFresh     time.Duration
	ArrivalToleranceKm  float64

	// Geolocation parameters handed to the browser client.
	GeolocationTimeout time.Duration
	GeolocationMaxAge  time.Duration
}

func DefaultConfig() Config {
	return Config{
		PollInterval:        60 * time.Second,
		TrackingStatusFresh: 15 * time.Minute,
		LastUpdateFresh:     10 * time.Minute,
		ArrivalToleranceKm:  0.5,
		GeolocationTimeout:  10 * time.Second,
		GeolocationMaxAge:   5 * time.Minute,
	}
}

// Service owns the fleet snapshot and the rider sessions. The snapshot has a
// single writer (the refresh cycle) and is replaced atomically, so readers
// always observe a fully-formed poll result.
type Service struct {
	store    Store
	geocoder Geocoder
	pub      LocationPublisher
	mcol     *metrics.Collector
	cfg      Config

	mu       sync.RWMutex
	snapshot *model.Snapshot

	inFlight atomic.Bool

	sessMu   sync.Mutex
	sessions map[string]*trackingSession

	now func() time.Time
}

func NewService(store Store, geocoder Geocoder, pub LocationPublisher, mcol *metrics.Collector, cfg Config) *Service {
	return &Service{
		store:    store,
		geocoder: geocoder,
		pub:      pub,
		mcol:     mcol,
		cfg:      cfg,
		sessions: make(map[string]*trackingSession),
		now:      time.Now,
	}
}

func (s *Service) Config() Config { return s.cfg }

// Refresh runs one fetch-validate-merge cycle. A cycle already in flight
// makes concurrent triggers return ErrRefreshInFlight without fetching; they
// are dropped, never queued. On a fetch failure the previous snapshot is
// retained so a transient blip doesn't clear the dashboard.
func (s *Service) Refresh(ctx context.Context) error {
	if !s.inFlight.CompareAndSwap(false, true) {
		if s.mcol != nil {
			s.mcol.PollsSkipped.Inc()
		}
		return ErrRefreshInFlight
	}
	defer s.inFlight.Store(false)

	start := s.now()
	if s.mcol != nil {
		s.mcol.PollsTotal.Inc()
	}

	busRows, err := s.store.FetchRows(ctx, sheets.SheetBuses)
	if err != nil {
		return s.refreshFailed(err)
	}
	locRows, err := s.store.FetchRows(ctx, sheets.SheetLocations)
	if err != nil {
		return s.refreshFailed(err)
	}

	snap := &model.Snapshot{
		Buses:     normalizeBuses(busRows),
		Locations: normalizeLocations(locRows),
		FetchedAt: s.now(),
	}

	live := 0
	for _, bus := range snap.Buses {
		var locPtr *model.Location
		if loc, ok := snap.LocationFor(bus.BusID); ok {
			locPtr = &loc
		}
		if classify(bus, locPtr, snap.FetchedAt, s.cfg) == model.StateLive {
			live++
		}
	}

	s.mu.Lock()
	s.snapshot = snap
	s.mu.Unlock()

	if s.mcol != nil {
		s.mcol.PollDuration.Observe(s.now().Sub(start).Seconds())
		s.mcol.BusesTracked.Set(float64(len(snap.Buses)))
		s.mcol.BusesLive.Set(float64(live))
	}
	log.Printf("snapshot merged: %d buses, %d locations, %d live", len(snap.Buses), len(snap.Locations), live)
	return nil
}

func (s *Service) refreshFailed(err error) error {
	if s.mcol != nil {
		s.mcol.PollFailures.Inc()
	}
	s.mu.RLock()
	hasPrev := s.snapshot != nil
	s.mu.RUnlock()
	if hasPrev {
		log.Printf("poll failed, keeping previous snapshot: %v", err)
		return err
	}
	log.Printf("first poll failed: %v", err)
	return errors.Join(ErrNoSnapshot, err)
}

// StartPoller drives periodic refreshes. Ticks are no-ops while no rider
// session is active; a failed cycle is retried by the next tick, with no
// extra backoff.
func (s *Service) StartPoller(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.cfg.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if s.ActiveSessions() == 0 {
					continue
				}
				if err := s.Refresh(ctx); err != nil && !errors.Is(err, ErrRefreshInFlight) {
					log.Printf("scheduled refresh error: %v", err)
				}
			}
		}
	}()
}

// Snapshot returns the current fleet view, or ErrNoSnapshot before the first
// successful poll.
func (s *Service) Snapshot() (*model.Snapshot, error) {
	s.mu.RLock()
	snap := s.snapshot
	s.mu.RUnlock()
	if snap == nil {
		return nil, ErrNoSnapshot
	}
	return snap, nil
}

// BusCards assembles the dashboard view-models from the current snapshot.
// With no snapshot yet, it attempts one synchronous refresh first.
func (s *Service) BusCards(ctx context.Context) ([]model.BusCard, error) {
	snap, err := s.Snapshot()
	if err != nil {
		if rerr := s.Refresh(ctx); rerr != nil && !errors.Is(rerr, ErrRefreshInFlight) {
			return nil, rerr
		}
		if snap, err = s.Snapshot(); err != nil {
			return nil, err
		}
	}

	now := s.now()
	cards := make([]model.BusCard, 0, len(snap.Buses))
	for _, bus := range snap.Buses {
		var locPtr *model.Location
		loc, hasLoc := snap.LocationFor(bus.BusID)
		if hasLoc {
			locPtr = &loc
		}

		card := model.BusCard{
			Bus:          bus,
			State:        classify(bus, locPtr, now, s.cfg),
			LastSeen:     "Never",
			LocationName: "Location not available",
			HasRoute:     bus.HasRoute(),
		}
		if hasLoc {
			card.SignalQuality = signalQuality(loc.LastUpdate, now)
			card.LastSeen = formatLastSeen(loc.LastUpdate, now)
		}
		if card.State == model.StateLive {
			card.Speed = loc.Speed
			if loc.Latitude != 0 || loc.Longitude != 0 {
				card.LocationName = s.geocoder.Reverse(ctx, loc.Latitude, loc.Longitude)
			}
		}
		cards = append(cards, card)
	}
	return cards, nil
}

// parseSpeed reads the speed cell as km/h; normalization guarantees it is
// numeric or "0".
func parseSpeed(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
