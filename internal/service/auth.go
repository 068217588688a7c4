package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/rajurautt/happybus/internal/model"
	"github.com/rajurautt/happybus/internal/publisher"
	"github.com/rajurautt/happybus/internal/sheets"
)

var (
	ErrInvalidCredentials = errors.New("invalid roll number or password")
	ErrAccountPending     = errors.New("account pending approval")
	ErrAccountRejected    = errors.New("account rejected")
	ErrInvalidCoordinates = errors.New("coordinates out of range")
)

// Login matches a roll/password pair against the Students sheet. Only
// approved accounts may log in; pending and rejected accounts get their own
// errors so the boundary can show an actionable message.
func (s *Service) Login(ctx context.Context, roll, password string) (model.Student, error) {
	rows, err := s.store.FetchRows(ctx, sheets.SheetStudents)
	if err != nil {
		return model.Student{}, err
	}

	for i := 1; i < len(rows); i++ {
		row := rows[i]
		if cell(row, 2) != roll || cell(row, 5) != password {
			continue
		}
		student := model.Student{
			Name:       cell(row, 0),
			StudentID:  cell(row, 1),
			Roll:       cell(row, 2),
			Department: cell(row, 3),
			Phone:      cell(row, 4),
			Status:     cellOr(row, 6, "pending"),
		}
		switch student.Status {
		case "approved":
			s.OpenSession(student.Roll)
			return student, nil
		case "rejected":
			return model.Student{}, ErrAccountRejected
		default:
			return model.Student{}, ErrAccountPending
		}
	}
	return model.Student{}, ErrInvalidCredentials
}

// DriverLogin matches a busId/PIN pair against the Drivers sheet.
func (s *Service) DriverLogin(ctx context.Context, busID, pin string) (model.Driver, error) {
	rows, err := s.store.FetchRows(ctx, sheets.SheetDrivers)
	if err != nil {
		return model.Driver{}, err
	}
	for i := 1; i < len(rows); i++ {
		row := rows[i]
		if cell(row, 0) == busID && cell(row, 3) == pin {
			return model.Driver{
				BusID: cell(row, 0),
				Name:  cell(row, 1),
				Phone: cell(row, 2),
			}, nil
		}
	}
	return model.Driver{}, ErrInvalidCredentials
}

var (
	phonePattern = regexp.MustCompile(`^[0-9]{10,15}$`)
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// Register validates a registration form and forwards it to the remote
// script endpoint. It returns a receipt id the student can quote while the
// account awaits approval.
func (s *Service) Register(ctx context.Context, form model.RegistrationForm) (string, error) {
	if form.Name == "" || form.StudentID == "" || form.Roll == "" ||
		form.Department == "" || form.Phone == "" || form.Password == "" {
		return "", errors.New("please fill all required fields")
	}
	if len(form.Password) < 6 {
		return "", errors.New("password must be at least 6 characters")
	}
	if !phonePattern.MatchString(form.Phone) {
		return "", errors.New("please enter a valid phone number")
	}
	if form.Email != "" && !emailPattern.MatchString(form.Email) {
		return "", errors.New("please enter a valid email address")
	}

	if err := s.store.SubmitRegistration(ctx, form); err != nil {
		return "", fmt.Errorf("registration failed: %w", err)
	}
	return uuid.NewString(), nil
}

// PublishDriverLocation writes a driver fix into the store (update-or-append
// per the LiveLocations contract) and fans it out when a publisher is
// configured. Last write wins; there is no multi-writer arbitration.
func (s *Service) PublishDriverLocation(ctx context.Context, busID string, lat, lng, speed float64) error {
	if busID == "" {
		return errors.New("bus id required")
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return ErrInvalidCoordinates
	}

	if err := s.store.PublishLocation(ctx, busID, lat, lng, speed); err != nil {
		return err
	}
	if s.mcol != nil {
		s.mcol.LocationsPublished.Inc()
	}
	if s.pub != nil {
		msg := publisher.LocationMessage{
			BusID:     busID,
			Latitude:  lat,
			Longitude: lng,
			SpeedKmh:  speed,
			Timestamp: time.Now().UTC(),
		}
		if err := s.pub.PublishLocation(msg); err != nil {
			// Fan-out is best effort; the store write already succeeded.
			log.Printf("location fan-out error: %v", err)
		}
	}
	return nil
}
