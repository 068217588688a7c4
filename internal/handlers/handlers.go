package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rajurautt/happybus/internal/auth"
	"github.com/rajurautt/happybus/internal/model"
	"github.com/rajurautt/happybus/internal/service"
)

type loginReq struct {
	Roll     string `json:"roll"`
	Password string `json:"password"`
}

// LoginHandler authenticates a student against the store and returns a JWT
// session token.
func LoginHandler(svc *service.Service, a *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var r loginReq
		if err := c.BindJSON(&r); err != nil || r.Roll == "" || r.Password == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "roll and password required"})
			return
		}

		student, err := svc.Login(c.Request.Context(), r.Roll, r.Password)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrAccountPending):
				c.JSON(http.StatusForbidden, gin.H{"error": "your account is pending approval"})
			case errors.Is(err, service.ErrAccountRejected):
				c.JSON(http.StatusForbidden, gin.H{"error": "your account has been rejected, contact admin"})
			case errors.Is(err, service.ErrInvalidCredentials):
				c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid roll number or password"})
			default:
				c.JSON(http.StatusBadGateway, gin.H{"error": "login failed, please try again"})
			}
			return
		}

		tok, err := a.GenerateToken(student.Roll, auth.RoleStudent, 24*time.Hour)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not generate token"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": tok, "student": student})
	}
}

type driverLoginReq struct {
	BusID string `json:"bus_id"`
	PIN   string `json:"pin"`
}

// DriverLoginHandler authenticates a driver by bus id and PIN.
func DriverLoginHandler(svc *service.Service, a *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var r driverLoginReq
		if err := c.BindJSON(&r); err != nil || r.BusID == "" || r.PIN == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bus_id and pin required"})
			return
		}
		driver, err := svc.DriverLogin(c.Request.Context(), r.BusID, r.PIN)
		if err != nil {
			if errors.Is(err, service.ErrInvalidCredentials) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid bus id or pin"})
				return
			}
			c.JSON(http.StatusBadGateway, gin.H{"error": "login failed, please try again"})
			return
		}
		tok, err := a.GenerateToken(driver.BusID, auth.RoleDriver, 12*time.Hour)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not generate token"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": tok, "driver": driver})
	}
}

// RegisterHandler validates and forwards a registration form.
func RegisterHandler(svc *service.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var form model.RegistrationForm
		if err := c.BindJSON(&form); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
			return
		}
		receipt, err := svc.Register(c.Request.Context(), form)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"receipt": receipt,
			"message": "registration successful, please wait for admin approval",
		})
	}
}

// BusesHandler returns the dashboard bus cards.
func BusesHandler(svc *service.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		cards, err := svc.BusCards(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "error loading bus data, please try again"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"buses": cards, "count": len(cards)})
	}
}

type riderLocationReq struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// RiderLocationHandler stores the rider's geolocation fix on the session.
func RiderLocationHandler(svc *service.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var r riderLocationReq
		if err := c.BindJSON(&r); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
			return
		}
		if r.Latitude < -90 || r.Latitude > 90 || r.Longitude < -180 || r.Longitude > 180 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "coordinates out of range"})
			return
		}
		svc.SetRiderLocation(c.GetString("subject"), r.Latitude, r.Longitude)
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// FocusHandler marks a bus for inspection.
func FocusHandler(svc *service.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.FocusBus(c.GetString("subject"), c.Param("busId")); err != nil {
			writeTrackingError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// ClearFocusHandler dismisses the inspected bus.
func ClearFocusHandler(svc *service.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		svc.ClearFocus(c.GetString("subject"))
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// DistanceHandler answers a rider's find-this-bus query.
func DistanceHandler(svc *service.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		report, err := svc.DistanceETA(c.Request.Context(), c.GetString("subject"), c.Param("busId"))
		if err != nil {
			writeTrackingError(c, err)
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

// ProgressHandler answers a route-progress query.
func ProgressHandler(svc *service.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		report, err := svc.RouteProgress(c.Request.Context(), c.Param("busId"))
		if err != nil {
			writeTrackingError(c, err)
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

// RefreshHandler triggers an immediate poll cycle. A cycle already in flight
// is reported, not queued.
func RefreshHandler(svc *service.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := svc.Refresh(c.Request.Context())
		switch {
		case err == nil:
			c.JSON(http.StatusOK, gin.H{"ok": true})
		case errors.Is(err, service.ErrRefreshInFlight):
			c.JSON(http.StatusConflict, gin.H{"error": "refresh already in progress"})
		default:
			c.JSON(http.StatusBadGateway, gin.H{"error": "refresh failed, will retry on next cycle"})
		}
	}
}

// LogoutHandler drops the rider session.
func LogoutHandler(svc *service.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		svc.Logout(c.GetString("subject"))
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

type driverLocationReq struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	SpeedKmh  float64 `json:"speed_kmh"`
}

// DriverLocationHandler accepts a location fix from a logged-in driver. The
// bus id comes from the token subject, not the payload.
func DriverLocationHandler(svc *service.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var r driverLocationReq
		if err := c.BindJSON(&r); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
			return
		}
		err := svc.PublishDriverLocation(c.Request.Context(), c.GetString("subject"), r.Latitude, r.Longitude, r.SpeedKmh)
		if err != nil {
			if errors.Is(err, service.ErrInvalidCoordinates) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "coordinates out of range"})
				return
			}
			c.JSON(http.StatusBadGateway, gin.H{"error": "could not record location"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// ClientConfigHandler hands the browser its polling and geolocation
// parameters.
func ClientConfigHandler(svc *service.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		cfg := svc.Config()
		c.JSON(http.StatusOK, gin.H{
			"poll_interval_seconds":      int(cfg.PollInterval.Seconds()),
			"geolocation_timeout_ms":     int(cfg.GeolocationTimeout.Milliseconds()),
			"geolocation_max_fix_age_ms": int(cfg.GeolocationMaxAge.Milliseconds()),
		})
	}
}

func writeTrackingError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNoSnapshot):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no bus data yet, please try again"})
	case errors.Is(err, service.ErrBusUnavailable):
		c.JSON(http.StatusNotFound, gin.H{"error": "bus location not available"})
	case errors.Is(err, service.ErrLocationNeeded):
		c.JSON(http.StatusPreconditionFailed, gin.H{"error": "your location is needed first"})
	case errors.Is(err, service.ErrRouteNotConfigured):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "route coordinates not configured for this bus"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
