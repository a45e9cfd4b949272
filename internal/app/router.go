package app

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"courier/internal/handler"
	"courier/internal/middleware"
	"courier/internal/realtime"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	BookingHandler  *handler.BookingHandler
	RiderHandler    *handler.RiderHandler
	RealtimeHandler *realtime.Handler
	RedisClient     *redis.Client
	NewRelicApp     *newrelic.Application
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORSMiddleware())

	// Add New Relic middleware if enabled.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	router.Use(middleware.IdempotencyMiddleware(deps.RedisClient))

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Socket endpoints.
	ws := router.Group("/ws")
	{
		ws.GET("/rider", deps.RealtimeHandler.HandleRider)
		ws.GET("/customer", deps.RealtimeHandler.HandleCustomer)
		ws.GET("/trip", deps.RealtimeHandler.HandleTrip)
	}

	// API v1 routes.
	v1 := router.Group("/v1")
	{
		// Booking routes.
		bookings := v1.Group("/bookings")
		{
			bookings.POST("", deps.BookingHandler.CreateBooking)
			bookings.GET("/:id", deps.BookingHandler.GetBooking)
			bookings.POST("/:id/cancel", deps.BookingHandler.CancelBooking)
			bookings.POST("/:id/tip", deps.BookingHandler.AddTip)
			bookings.POST("/:id/review", deps.BookingHandler.AddReview)
		}

		// Anonymous share-link tracking.
		v1.GET("/track/:token", deps.BookingHandler.TrackBooking)

		// Audit view over the redis geo mirror.
		v1.GET("/nearby-riders", deps.RiderHandler.Nearby)

		// Rider routes.
		riders := v1.Group("/riders")
		{
			riders.POST("/register", deps.RiderHandler.Register)
			riders.GET("", deps.RiderHandler.GetAll)
			riders.GET("/:id", deps.RiderHandler.GetRider)
			riders.POST("/:id/location", deps.RiderHandler.UpdateLocation)
			riders.POST("/:id/preferred-area", deps.RiderHandler.SetPreferredArea)
			riders.GET("/:id/bookings/available", deps.RiderHandler.Available)
			riders.POST("/:id/accept", deps.RiderHandler.Accept)
			riders.POST("/:id/decline", deps.RiderHandler.Decline)
			riders.POST("/:id/start", deps.RiderHandler.Start)
			riders.POST("/:id/complete", deps.RiderHandler.Complete)
		}
	}

	return router
}
