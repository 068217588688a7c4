package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rajurautt/happybus/internal/model"
)

func studentRows() [][]string {
	return [][]string{
		{"name", "studentId", "roll", "department", "phone", "password", "status"},
		{"Asha", "S-100", "21CS042", "CSE", "9876543210", "secret1", "approved"},
		{"Vik", "S-101", "21EC007", "ECE", "9876543211", "secret2", "pending"},
		{"Mira", "S-102", "21ME013", "MECH", "9876543212", "secret3", "rejected"},
		{"Ravi", "S-103", "21CS099", "CSE", "9876543213", "secret4", ""},
	}
}

func TestLogin(t *testing.T) {
	cases := []struct {
		name     string
		roll     string
		password string
		wantErr  error
	}{
		{"Approved student", "21CS042", "secret1", nil},
		{"Wrong password", "21CS042", "nope", ErrInvalidCredentials},
		{"Unknown roll", "99XX000", "secret1", ErrInvalidCredentials},
		{"Pending account", "21EC007", "secret2", ErrAccountPending},
		{"Rejected account", "21ME013", "secret3", ErrAccountRejected},
		{"Missing status defaults to pending", "21CS099", "secret4", ErrAccountPending},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			store := &studentStore{fakeStore: &fakeStore{}, students: studentRows()}
			svc := NewService(store, fakeGeocoder{}, nil, nil, DefaultConfig())

			student, err := svc.Login(context.Background(), c.roll, c.password)
			if !errors.Is(err, c.wantErr) {
				t.Fatalf("Login() error = %v, want %v", err, c.wantErr)
			}
			if c.wantErr == nil {
				if student.Roll != c.roll {
					t.Errorf("student roll = %q, want %q", student.Roll, c.roll)
				}
				if svc.ActiveSessions() != 1 {
					t.Error("successful login should open a session")
				}
			}
		})
	}
}

// studentStore layers Students and Drivers sheets over the base fake.
type studentStore struct {
	*fakeStore
	students [][]string
	drivers  [][]string
}

func (s *studentStore) FetchRows(ctx context.Context, sheet string) ([][]string, error) {
	switch sheet {
	case "Students":
		return s.students, nil
	case "Drivers":
		return s.drivers, nil
	}
	return s.fakeStore.FetchRows(ctx, sheet)
}

func TestDriverLogin(t *testing.T) {
	store := &studentStore{
		fakeStore: &fakeStore{},
		drivers: [][]string{
			{"busId", "name", "phone", "pin"},
			{"B1", "Driver1", "999", "4321"},
		},
	}
	svc := NewService(store, fakeGeocoder{}, nil, nil, DefaultConfig())

	driver, err := svc.DriverLogin(context.Background(), "B1", "4321")
	if err != nil {
		t.Fatalf("DriverLogin() error: %v", err)
	}
	if driver.Name != "Driver1" {
		t.Errorf("driver name = %q", driver.Name)
	}

	if _, err := svc.DriverLogin(context.Background(), "B1", "0000"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong pin = %v, want ErrInvalidCredentials", err)
	}
}

func TestRegister(t *testing.T) {
	valid := model.RegistrationForm{
		Name:       "Asha",
		StudentID:  "S-100",
		Roll:       "21CS042",
		Department: "CSE",
		Phone:      "9876543210",
		Password:   "secret12",
	}

	cases := []struct {
		name    string
		mutate  func(*model.RegistrationForm)
		wantErr bool
	}{
		{"Valid form", func(f *model.RegistrationForm) {}, false},
		{"Valid form with email", func(f *model.RegistrationForm) { f.Email = "asha@example.edu" }, false},
		{"Missing name", func(f *model.RegistrationForm) { f.Name = "" }, true},
		{"Short password", func(f *model.RegistrationForm) { f.Password = "abc" }, true},
		{"Bad phone", func(f *model.RegistrationForm) { f.Phone = "12-34" }, true},
		{"Bad email", func(f *model.RegistrationForm) { f.Email = "not-an-email" }, true},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			store := &fakeStore{}
			svc := newTestService(store)

			form := valid
			c.mutate(&form)
			receipt, err := svc.Register(context.Background(), form)
			if (err != nil) != c.wantErr {
				t.Fatalf("Register() error = %v, wantErr %v", err, c.wantErr)
			}
			if !c.wantErr {
				if receipt == "" {
					t.Error("successful registration should return a receipt id")
				}
				if len(store.forms) != 1 {
					t.Errorf("store received %d forms, want 1", len(store.forms))
				}
			}
			if c.wantErr && len(store.forms) != 0 {
				t.Error("invalid form must not reach the store")
			}
		})
	}
}
