package server

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/rajurautt/happybus/internal/auth"
	"github.com/rajurautt/happybus/internal/geocode"
	"github.com/rajurautt/happybus/internal/handlers"
	"github.com/rajurautt/happybus/internal/metrics"
	"github.com/rajurautt/happybus/internal/publisher"
	"github.com/rajurautt/happybus/internal/service"
	"github.com/rajurautt/happybus/internal/sheets"
)

func Run() error {
	_ = godotenv.Load()

	port := mustGetenv("PORT", "8080")
	jwtSecret := mustGetenv("JWT_SECRET", "happybus")
	redisAddr := mustGetenv("REDIS_ADDR", "redis:6379")

	sheetsBase := mustGetenv("SHEETS_BASE_URL", "https://sheets.googleapis.com/v4/spreadsheets")
	sheetID := mustGetenv("SHEET_ID", "")
	apiKey := mustGetenv("SHEETS_API_KEY", "")
	appsScriptURL := mustGetenv("APPS_SCRIPT_URL", "")
	geocodeURL := mustGetenv("GEOCODE_URL", "https://maps.googleapis.com/maps/api/geocode/json")
	geocodeKey := mustGetenv("GEOCODE_API_KEY", apiKey)
	natsURL := os.Getenv("NATS_URL")

	cfg := loadTrackingConfig()

	// Initialize Redis (geocode cache)
	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer rdb.Close()

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return err
	}

	// To Setup dependencies
	mcol := metrics.NewCollector()
	store := sheets.NewClient(sheetsBase, sheetID, apiKey, appsScriptURL, 30*time.Second)
	geocoder := geocode.New(geocodeURL, geocodeKey, &redisCache{rdb: rdb}, 24*time.Hour, mcol)
	authSvc := auth.NewJWT([]byte(jwtSecret))

	var pub service.LocationPublisher
	if natsURL != "" {
		p, err := publisher.New(natsURL)
		if err != nil {
			return err
		}
		defer p.Close()
		pub = p
		log.Printf("location fan-out enabled on %s", natsURL)
	}

	svc := service.NewService(store, geocoder, pub, mcol, cfg)

	// To Setup Gin Router
	router := gin.New()
	router.Use(gin.Recovery(), auth.RequestLogger())

	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Authorization", "Content-Type"},
	}))

	router.POST("/login", handlers.LoginHandler(svc, authSvc))
	router.POST("/register", handlers.RegisterHandler(svc))
	router.POST("/driver/login", handlers.DriverLoginHandler(svc, authSvc))
	router.GET("/api/client-config", handlers.ClientConfigHandler(svc))
	router.GET("/metrics", gin.WrapH(mcol.Handler()))

	// Protected API routes
	api := router.Group("/api")
	api.Use(auth.JWTMiddleware(authSvc))
	{
		student := api.Group("")
		student.Use(auth.RequireRole(auth.RoleStudent))
		{
			student.GET("/buses", handlers.BusesHandler(svc))
			student.POST("/session/location", handlers.RiderLocationHandler(svc))
			student.POST("/session/focus/:busId", handlers.FocusHandler(svc))
			student.DELETE("/session/focus", handlers.ClearFocusHandler(svc))
			student.GET("/buses/:busId/distance", handlers.DistanceHandler(svc))
			student.GET("/buses/:busId/progress", handlers.ProgressHandler(svc))
			student.POST("/refresh", handlers.RefreshHandler(svc))
			student.POST("/logout", handlers.LogoutHandler(svc))
		}

		driver := api.Group("/driver")
		driver.Use(auth.RequireRole(auth.RoleDriver))
		{
			driver.POST("/location", handlers.DriverLocationHandler(svc))
		}
	}

	// Start poller in background
	pollCtx, pollCancel := context.WithCancel(context.Background())
	defer pollCancel()
	svc.StartPoller(pollCtx)

	// Start server
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		log.Printf("Server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit
	log.Println("Shutting down server...")
	pollCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return err
	}

	log.Println("Server exited")
	return nil
}

// loadTrackingConfig starts from the engine defaults and applies env
// overrides for the tunable thresholds.
func loadTrackingConfig() service.Config {
	cfg := service.DefaultConfig()
	if v := os.Getenv("POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.PollInterval = d
		}
	}
	if v := os.Getenv("TRACKING_STATUS_FRESH"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.TrackingStatusFresh = d
		}
	}
	if v := os.Getenv("LAST_UPDATE_FRESH"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.LastUpdateFresh = d
		}
	}
	if v := os.Getenv("ARRIVAL_TOLERANCE_KM"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.ArrivalToleranceKm = f
		}
	}
	return cfg
}

func mustGetenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// redisCache adapts the redis client to the geocode cache interface.
type redisCache struct {
	rdb *redis.Client
}

func (r *redisCache) Get(ctx context.Context, key string) (string, error) {
	return r.rdb.Get(ctx, key).Result()
}

func (r *redisCache) Set(ctx context.Context, key, value string, expiration time.Duration) error {
	return r.rdb.Set(ctx, key, value, expiration).Err()
}
