package service

import (
	"context"

	"github.com/rajurautt/happybus/internal/model"
	"github.com/rajurautt/happybus/internal/publisher"
)

// Store is the spreadsheet-backed data store.
type Store interface {
	FetchRows(ctx context.Context, sheet string) ([][]string, error)
	PublishLocation(ctx context.Context, busID string, lat, lng, speed float64) error
	SubmitRegistration(ctx context.Context, form model.RegistrationForm) error
}

// Geocoder turns coordinates into a display string. Implementations must be
// best-effort and fall back to coordinate text instead of failing.
type Geocoder interface {
	Reverse(ctx context.Context, lat, lng float64) string
}

// LocationPublisher fans accepted driver fixes out to subscribers. May be
// nil when fan-out is disabled.
type LocationPublisher interface {
	PublishLocation(msg publisher.LocationMessage) error
}
