package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/chachabrian/haulbook-backend/internal/config"
	"github.com/chachabrian/haulbook-backend/internal/database"
	"github.com/chachabrian/haulbook-backend/internal/handlers"
	"github.com/chachabrian/haulbook-backend/internal/services"
	"github.com/chachabrian/haulbook-backend/internal/store"
	"github.com/chachabrian/haulbook-backend/internal/store/memstore"
	"github.com/chachabrian/haulbook-backend/pkg/logger"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.ServiceName, cfg.LogLevel)
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Error("server stopped with error", logger.Error(err))
		os.Exit(1)
	}
}

func run(cfg config.Config, log logger.ILogger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(cfg, log)
	if err != nil {
		return err
	}

	hub := services.NewHub(log.Named("ws"))
	go hub.Run(ctx)

	dispatcher := services.NewDispatcher(st, st, log.Named("notify"), services.DispatcherConfig{
		EmailTimeout:        cfg.EmailTimeout,
		FallbackAdminEmails: fallbackAdmins(cfg),
	}).WithRealtime(hub)
	location := services.NewLocationSink(st, log.Named("location")).WithRealtime(hub)

	if cfg.SMTPConfigured() {
		dispatcher.WithMailer(services.NewSMTPMailer(services.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.EmailFrom,
		}))
	} else {
		log.Warning("SMTP not configured, admin emails disabled")
	}

	// Firebase is optional; push is skipped when it is not configured.
	if cfg.FirebaseServiceAccountPath != "" {
		pusher, err := services.NewFCMPusher(ctx, cfg.FirebaseServiceAccountPath)
		if err != nil {
			log.Warning("firebase initialization failed, push disabled", logger.Error(err))
		} else {
			dispatcher.WithPusher(pusher)
		}
	}

	var publisher *services.AMQPPublisher
	if cfg.RabbitMQURL != "" {
		publisher, err = services.NewAMQPPublisher(cfg.RabbitMQURL, log.Named("amqp"))
		if err != nil {
			log.Warning("rabbitmq unavailable, booking events disabled", logger.Error(err))
		} else {
			dispatcher.WithPublisher(publisher)
		}
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = services.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Warning("redis unavailable, live location cache disabled", logger.Error(err))
		} else {
			location.WithCache(services.NewRedisLocationCache(rdb))
		}
	}

	auth := services.NewAuthService(st, cfg.JWTSecret, cfg.JWTTTL, log.Named("auth"))
	if err := auth.SeedSuperAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		return fmt.Errorf("seed super admin: %w", err)
	}

	gin.SetMode(gin.ReleaseMode)
	router := handlers.NewRouter(handlers.Deps{
		Auth:          auth,
		Bookings:      services.NewBookingService(st, dispatcher, log.Named("bookings")),
		Assigner:      services.NewAssignmentCoordinator(st, dispatcher, log.Named("assignment")),
		Location:      location,
		Drivers:       services.NewDriverService(st, log.Named("drivers")),
		Notifications: services.NewNotificationService(st, st),
		Notifier:      dispatcher,
		Hub:           hub,
		Health:        st,
		JWTSecret:     cfg.JWTSecret,
		CORSOrigins:   cfg.CORSOrigins,
		Log:           log.Named("http"),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.AppPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", logger.String("addr", srv.Addr), logger.String("storage", cfg.Storage))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", logger.Error(err))
	}
	if err := dispatcher.Drain(shutdownCtx); err != nil {
		log.Warning("notification drain incomplete", logger.Error(err))
	}
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			log.Warning("rabbitmq close", logger.Error(err))
		}
	}
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			log.Warning("redis close", logger.Error(err))
		}
	}
	return nil
}

func openStore(cfg config.Config, log logger.ILogger) (store.Store, error) {
	if cfg.Storage == "memory" {
		log.Warning("using in-memory storage, data is lost on restart")
		return memstore.New(), nil
	}

	db, err := database.InitDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return store.NewGormStore(db), nil
}

func fallbackAdmins(cfg config.Config) []string {
	if cfg.AdminEmail == "" {
		return nil
	}
	return []string{cfg.AdminEmail}
}
