package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"courier/internal/app"
	"courier/internal/config"
	"courier/internal/handler"
	"courier/internal/presence"
	"courier/internal/realtime"
	internalRedis "courier/internal/redis"
	"courier/internal/repository/postgres"
	"courier/internal/service"
)

func main() {
	// Load .env if present; real deployments use the environment directly.
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded configuration from .env")
	}

	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	var err error
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			log.Printf("failed to initialize New Relic: %v", err)
		} else {
			log.Printf("New Relic enabled: app=%s (with DB instrumentation)", cfg.NewRelic.AppName)
		}
	}

	// Initialize database with New Relic instrumentation.
	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Connected to PostgreSQL")

	// Initialize Redis with New Relic instrumentation.
	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Connected to Redis")

	// Wire dependencies.
	server, hub, scheduler := wireServer(db, redisClient, nrApp, cfg)

	// Start server in goroutine.
	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown: stop accepting requests, then tear down sockets and
	// timers before the connection-backed defers run.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("server forced to shutdown: %v", err)
	}
	hub.Shutdown()
	scheduler.Shutdown()

	log.Println("Server exited")
}

// wireServer wires all dependencies and returns the HTTP server along with
// the components main tears down explicitly.
func wireServer(db *sql.DB, redisClient *redis.Client, nrApp *newrelic.Application, cfg *config.Config) (*http.Server, *realtime.Hub, *service.Scheduler) {
	// Redis stores.
	locationStore := internalRedis.NewLocationStore(redisClient)
	lockStore := internalRedis.NewLockStore(redisClient)

	// Repositories.
	customerRepo := postgres.NewCustomerRepository(db)
	riderRepo := postgres.NewRiderRepository(db)
	bookingRepo := postgres.NewBookingRepository(db)

	// Realtime and presence.
	hub := realtime.NewHub()
	presenceIndex := presence.NewIndex()
	scheduler := service.NewScheduler()

	// Push delivery.
	var push service.PushSender
	if cfg.Push.Enabled && cfg.Push.Key != "" {
		push = service.NewFCMSender(cfg.Push.Endpoint, cfg.Push.Key)
	} else {
		push = service.NoopPushSender{}
	}

	// Services.
	feeService := service.NewFeeService()
	dispatchService := service.NewDispatchService(bookingRepo, riderRepo, customerRepo, presenceIndex, hub, push, feeService, scheduler, lockStore, cfg.Dispatch)
	bookingService := service.NewBookingService(bookingRepo, dispatchService, hub)
	riderService := service.NewRiderService(riderRepo, presenceIndex, locationStore)
	gateway := service.NewRealtimeGateway(riderRepo, bookingRepo, riderService, dispatchService, hub, presenceIndex, locationStore)

	// Handlers.
	bookingHandler := handler.NewBookingHandler(bookingService)
	riderHandler := handler.NewRiderHandler(riderService, dispatchService, riderRepo)
	realtimeHandler := realtime.NewHandler(hub, gateway)

	// Router.
	router := app.NewRouter(app.RouterDeps{
		BookingHandler:  bookingHandler,
		RiderHandler:    riderHandler,
		RealtimeHandler: realtimeHandler,
		RedisClient:     redisClient,
		NewRelicApp:     nrApp,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return server, hub, scheduler
}
