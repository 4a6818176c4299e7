package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/chachabrian/haulbook-backend/internal/middleware"
	"github.com/chachabrian/haulbook-backend/internal/models"
	"github.com/chachabrian/haulbook-backend/internal/services"
	"github.com/chachabrian/haulbook-backend/pkg/logger"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps is everything the router needs. Hub may be nil, in which case the
// websocket endpoint is not mounted.
type Deps struct {
	Auth          *services.AuthService
	Bookings      *services.BookingService
	Assigner      *services.AssignmentCoordinator
	Location      *services.LocationSink
	Drivers       *services.DriverService
	Notifications *services.NotificationService
	Notifier      services.Notifier
	Hub           *services.Hub
	Health        Pinger

	JWTSecret   string
	CORSOrigins []string
	Log         logger.ILogger
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(d.Log))

	config := cors.DefaultConfig()
	config.AllowOrigins = d.CORSOrigins
	if len(config.AllowOrigins) == 0 || (len(config.AllowOrigins) == 1 && config.AllowOrigins[0] == "*") {
		config.AllowOrigins = nil
		config.AllowAllOrigins = true
	}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	r.Use(cors.New(config))

	r.GET("/healthz", Health(d.Health))

	auth := middleware.AuthMiddleware(d.JWTSecret)
	admin := middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin)
	driver := middleware.RequireRoles(models.RoleDriver)

	api := r.Group("/api")
	{
		// Public routes
		public := api.Group("/auth")
		{
			public.POST("/register", Register(d.Auth))
			public.POST("/login", Login(d.Auth))
		}
		api.POST("/support", SubmitSupportRequest(d.Notifier))
		api.GET("/pricing/estimate", EstimateFare())

		// WebSocket connection
		if d.Hub != nil {
			api.GET("/ws", auth, WebSocketHandler(d.Hub))
		}

		// Protected routes
		protected := api.Group("/")
		protected.Use(auth)
		{
			protected.GET("/users/profile", GetProfile(d.Auth))

			bookings := protected.Group("/bookings")
			{
				bookings.POST("", CreateBooking(d.Bookings))
				bookings.GET("", ListBookings(d.Bookings))
				bookings.GET("/:id", GetBooking(d.Bookings))
				bookings.GET("/:id/trip", GetBookingTrip(d.Bookings))
				bookings.GET("/:id/location", GetBookingLocation(d.Location))
				bookings.PUT("/:id/cancel", CancelBooking(d.Bookings))

				bookings.PUT("/:id/accept", driver, AcceptBooking(d.Bookings))
				bookings.PUT("/:id/reject", driver, RejectBooking(d.Bookings))
				bookings.PUT("/:id/arrived", driver, DriverArrived(d.Bookings))
				bookings.PUT("/:id/start", driver, StartTrip(d.Bookings))
				bookings.PUT("/:id/complete", driver, CompleteTrip(d.Bookings))
				bookings.PUT("/:id/update-location", driver, UpdateBookingLocation(d.Location))

				bookings.POST("/admin/assign-driver", admin, AssignDriver(d.Assigner))
				bookings.PUT("/admin/status", admin, AdminSetBookingStatus(d.Bookings))
			}

			drivers := protected.Group("/drivers", driver)
			{
				drivers.POST("/profile", CreateDriverProfile(d.Drivers))
				drivers.GET("/profile", GetDriverProfile(d.Drivers))
				drivers.PUT("/online", SetDriverOnline(d.Drivers))
				drivers.POST("/vehicles", AddVehicle(d.Drivers))
				drivers.GET("/vehicles", ListVehicles(d.Drivers))
			}

			adminGroup := protected.Group("/admin", admin)
			{
				adminGroup.GET("/drivers", ListDrivers(d.Drivers))
				adminGroup.PUT("/drivers/:id/verify", VerifyDriver(d.Drivers))
				adminGroup.PUT("/vehicles/:id", UpdateVehicle(d.Drivers))
			}

			notifications := protected.Group("/notifications")
			{
				notifications.GET("", ListNotifications(d.Notifications))
				notifications.PUT("/read-all", MarkAllNotificationsRead(d.Notifications))
				notifications.PUT("/:id/read", MarkNotificationRead(d.Notifications))
				notifications.POST("/register-token", RegisterFCMToken(d.Notifications))
			}
		}
	}

	return r
}

// Health reports liveness and whether the store answers a ping.
func Health(store Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := gin.H{"status": "ok", "time": time.Now().UTC()}
		if store != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := store.Ping(ctx); err != nil {
				_ = c.Error(err)
				status["status"] = "degraded"
				c.JSON(http.StatusServiceUnavailable, status)
				return
			}
		}
		c.JSON(http.StatusOK, status)
	}
}
