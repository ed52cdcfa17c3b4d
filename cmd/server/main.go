package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/newrelic"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"fixitnow/internal/app"
	"fixitnow/internal/config"
	"fixitnow/internal/handler"
	"fixitnow/internal/logger"
	"fixitnow/internal/middleware"
	"fixitnow/internal/redis"
	"fixitnow/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Env, cfg.LogLevel)
	slog.SetDefault(log)
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg, log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("server exited")
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	nrApp := newRelicApp(cfg.NewRelic, log)
	if nrApp != nil {
		defer nrApp.Shutdown(5 * time.Second)
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	st, err := app.OpenStores(connectCtx, cfg, nrApp, log)
	if err != nil {
		return err
	}
	defer st.Close()

	var redisClient *goredis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = app.NewRedisClient(connectCtx, cfg.Redis, nrApp)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		st.Health["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
		log.Info("connected to redis", "addr", cfg.Redis.Addr)
	}

	server, sweeper := wireServer(cfg, st, redisClient, nrApp, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting server", "port", cfg.Server.Port, "storage", cfg.Database.Driver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return sweeper.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func newRelicApp(cfg config.NewRelicConfig, log *slog.Logger) *newrelic.Application {
	if !cfg.Enabled || cfg.LicenseKey == "" {
		return nil
	}

	nrApp, err := newrelic.NewApplication(
		newrelic.ConfigAppName(cfg.AppName),
		newrelic.ConfigLicense(cfg.LicenseKey),
		newrelic.ConfigDistributedTracerEnabled(true),
		newrelic.ConfigAppLogForwardingEnabled(true),
	)
	if err != nil {
		log.Warn("failed to initialize New Relic", "error", err)
		return nil
	}
	log.Info("New Relic enabled", "app", cfg.AppName)
	return nrApp
}

// wireServer wires all dependencies and returns the HTTP server and the expiry sweeper.
func wireServer(cfg *config.Config, st *app.Stores, redisClient *goredis.Client, nrApp *newrelic.Application, log *slog.Logger) (*http.Server, *service.ExpiryService) {
	// Redis stores are optional; nil interfaces switch their features off.
	var (
		locations redis.LocationStoreInterface
		locker    redis.LockStoreInterface
		cache     redis.CacheStoreInterface
		emitter   service.Emitter = service.LogEmitter{Logger: log}
	)
	if redisClient != nil {
		locations = redis.NewLocationStore(redisClient)
		locker = redis.NewLockStore(redisClient, cfg.Booking.LockTTL)
		cache = redis.NewCacheStore(redisClient)
		emitter = redis.NewPublisher(redisClient)
	}

	// Initialize services.
	directory := service.NewDirectory(st.Users, cache, log)
	selector := service.NewGeoCandidateSelector(locations, directory, cfg.Booking.SearchRadiusKm, cfg.Booking.MaxCandidates)
	notifier := service.NewNotificationService(st.Notifications, emitter, log, cfg.Booking.NotifyTimeout)
	bookingService := service.NewBookingService(st.Bookings, directory, selector, notifier, locker, locations, log, service.Settings{
		BroadcastTTL:     cfg.Booking.BroadcastTTL,
		BasePrice:        cfg.Booking.BasePrice,
		MaxWriteAttempts: cfg.Booking.MaxWriteAttempts,
		AverageSpeedKmh:  cfg.Booking.AverageSpeedKmh,
	})
	sweeper := service.NewExpiryService(st.Bookings, bookingService, log, cfg.Booking.SweepInterval, cfg.Booking.SweepTimeout)

	// Create router.
	router := app.NewRouter(app.RouterDeps{
		BookingHandler:      handler.NewBookingHandler(bookingService),
		UserHandler:         handler.NewUserHandler(st.Users, directory, locations),
		NotificationHandler: handler.NewNotificationHandler(st.Notifications),
		Authenticator:       middleware.NewAuthenticator(cfg.Auth.JWTSecret, log),
		RedisClient:         redisClient,
		NewRelicApp:         nrApp,
		Logger:              log,
		AllowedOrigins:      cfg.Server.AllowedOrigins,
		HealthChecks:        st.Health,
	})

	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, sweeper
}
