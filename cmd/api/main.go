package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rentacar/internal/api"
	"rentacar/internal/config"
	"rentacar/internal/database"
	"rentacar/internal/domain"
	"rentacar/internal/events"
	"rentacar/internal/logging"
	"rentacar/internal/metrics"
	"rentacar/internal/models"
	"rentacar/internal/notify"
	"rentacar/internal/repository"
	"rentacar/internal/service"
	"rentacar/internal/storage"
	"rentacar/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

const sweepInterval = 15 * time.Minute

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	sessions, redisClient := initSessions(ctx, cfg, logger)
	if redisClient != nil {
		defer func() { _ = repository.Close(redisClient) }()
	}

	images, err := storage.New(ctx, cfg.Storage, logging.Component(logger, "storage"))
	if err != nil {
		logger.Error().Err(err).Str("driver", cfg.Storage.Driver).Msg("init image storage")
		return err
	}
	var uploads http.Handler
	if local, ok := images.(*storage.LocalStore); ok {
		uploads = http.FileServer(http.Dir(local.Root()))
	}

	bus := events.NewEventBus()
	cars := service.NewCarService(db, images, cfg.Booking.FeaturedLimit, logging.Component(logger, "cars"))
	users := service.NewUserService(db, logging.Component(logger, "users"))
	admin := service.NewAdminService(db, logging.Component(logger, "admin"))
	registry := service.NewRegistry(service.Dependencies{
		Store:    db,
		Sessions: sessions,
		Events:   bus,
		Options: service.Options{
			Session: service.SessionOptions{
				LoginAttempts: cfg.Session.LoginAttempts,
				LoginWindow:   cfg.Session.LoginWindow,
			},
			DefaultDriverFee: cfg.Booking.DefaultDriverFeePerDay,
		},
	}, logging.Component(logger, "clients"))

	if err := users.EnsureAdmin(ctx, cfg.Admin); err != nil {
		logger.Error().Err(err).Msg("bootstrap administrator")
		return err
	}
	if err := seedCars(ctx, cfg.Database.SeedFile, cars, logger); err != nil {
		return err
	}

	if cfg.Telegram.Enabled() {
		if err := startNotifications(ctx, cfg.Telegram, bus, logger); err != nil {
			logger.Warn().Err(err).Msg("telegram init failed, continuing without notifications")
		}
	}

	go registry.StartSweeper(ctx, sweepInterval)
	go database.NewBackupService(db, cfg.Backup, logging.Component(logger, "backup")).Start(ctx)

	startMetrics(ctx, cfg, logger)

	httpServer := api.NewHTTPServer(cfg.API, api.Services{
		Registry: registry,
		Cars:     cars,
		Admin:    admin,
		Users:    users,
		Store:    db,
		Uploads:  uploads,
	}, logger)

	var grpcServer *api.GRPCServer
	if cfg.API.GRPC.Enabled {
		grpcServer, err = api.NewGRPCServer(cfg.API.GRPC, db, registry.Open().Bookings, logger)
		if err != nil {
			logger.Error().Err(err).Msg("create grpc server")
			return err
		}
	}

	return startServers(ctx, grpcServer, httpServer, cfg, logger)
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logging.Component(baseLogger, "api-main"), closer, nil
}

// initSessions prefers redis and falls back to process memory when it is
// unset or unreachable.
func initSessions(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (domain.SessionRepository, *redis.Client) {
	memory := repository.NewMemorySessionRepository(cfg.Session.TTL)
	if cfg.Redis.Address == "" {
		logger.Info().Msg("redis not configured, sessions kept in memory")
		return memory, nil
	}

	client := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, client); err != nil {
		logger.Warn().Err(err).Str("addr", cfg.Redis.Address).Msg("redis unreachable, sessions kept in memory until it recovers")
	} else {
		logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	}
	primary := repository.NewRedisSessionRepository(client, cfg.Session.TTL)
	return repository.NewFailoverSessionRepository(primary, memory, logging.Component(logger, "sessions")), client
}

func seedCars(ctx context.Context, path string, cars *service.CarService, logger *zerolog.Logger) error {
	if env := os.Getenv("CARS_PATH"); env != "" {
		path = env
	}
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Warn().Str("seed_file", path).Msg("seed file missing, catalog not seeded")
			return nil
		}
		logger.Error().Err(err).Str("seed_file", path).Msg("read seed file")
		return err
	}

	var seed struct {
		Cars []*models.Car `yaml:"cars"`
	}
	if err := yaml.Unmarshal(data, &seed); err != nil {
		logger.Error().Err(err).Str("seed_file", path).Msg("parse seed file")
		return err
	}

	n, err := cars.Seed(ctx, seed.Cars)
	if err != nil {
		logger.Error().Err(err).Msg("seed catalog")
		return err
	}
	if n > 0 {
		logger.Info().Int("cars", n).Msg("catalog seeded")
	}
	return nil
}

func startNotifications(ctx context.Context, cfg config.TelegramConfig, bus *events.EventBus, logger *zerolog.Logger) error {
	bot, err := notify.NewBotSender(cfg)
	if err != nil {
		return err
	}
	notifier := notify.NewTelegramNotifier(bot, cfg.AdminChatIDs, logging.Component(logger, "telegram"))
	w := worker.NewNotifyWorker(notifier, worker.RetryPolicy{}, logging.Component(logger, "notify-worker"))
	w.Subscribe(bus)
	go w.Start(ctx)
	logger.Info().Str("bot", bot.Self.UserName).Int("chats", len(cfg.AdminChatIDs)).Msg("booking notifications enabled")
	return nil
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
}

func startServers(
	ctx context.Context,
	grpcServer *api.GRPCServer,
	httpServer *api.HTTPServer,
	cfg *config.Config,
	logger *zerolog.Logger,
) error {
	if grpcServer != nil {
		go grpcServer.Watch(ctx)
		go func() {
			if err := grpcServer.Serve(); err != nil {
				logger.Error().Err(err).Msg("grpc server stopped")
			}
		}()
		logger.Info().Str("grpc_addr", grpcServer.Addr()).Msg("grpc server started")
	}

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	logger.Info().Int("http_port", cfg.API.HTTP.Port).Msg("API server started")

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case runErr = <-errCh:
		logger.Error().Err(runErr).Msg("http server stopped")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.API.HTTP.ShutdownTimeout)
	defer cancel()

	if grpcServer != nil {
		grpcServer.Shutdown(shutdownCtx)
	}
	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("API server stopped")
	return runErr
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
