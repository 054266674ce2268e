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
	"path/filepath"
	"syscall"
	"time"

	"homeservices/internal/api"
	"homeservices/internal/config"
	"homeservices/internal/database"
	"homeservices/internal/domain"
	"homeservices/internal/events"
	"homeservices/internal/google"
	"homeservices/internal/logging"
	"homeservices/internal/metrics"
	"homeservices/internal/models"
	"homeservices/internal/notify"
	"homeservices/internal/repository"
	"homeservices/internal/service"
	"homeservices/internal/validator"
	"homeservices/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

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

	if err := prepareDirectories(cfg, &logger); err != nil {
		return err
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := initRedis(ctx, cfg, &logger)
	if redisClient != nil {
		defer func() { _ = repository.Close(redisClient) }()
	}

	eventBus := events.NewEventBus()
	eventBus.OnError(func(event *events.Event, err error) {
		logger.Warn().Err(err).Str("event_type", event.Type).Msg("event handler failed")
	})
	notifier := initNotifier(cfg, db, &logger)
	subscriber := notify.NewSubscriber(notifier, &logger)
	subscriber.Register(eventBus)
	go subscriber.Start(ctx)
	if cfg.Telegram.ReminderTime != "" {
		reminder, err := notify.NewReminder(db, notifier, cfg.Telegram.ReminderTime, &logger)
		if err != nil {
			return err
		}
		go reminder.Start(ctx)
	}

	var syncWorker *worker.SheetsWorker
	if sheets := initGoogleSheets(ctx, cfg, &logger); sheets != nil {
		syncWorker = worker.NewSheetsWorker(db, sheets, redisClient, worker.PolicyFromConfig(cfg.Worker), cfg.Worker.PollInterval, &logger)
		go syncWorker.Start(ctx)
	}

	rules := validator.Rules{
		MaxAdvanceDays:        cfg.Booking.MaxAdvanceDays,
		OpenHour:              cfg.Booking.OpenHour,
		CloseHour:             cfg.Booking.CloseHour,
		MinAddressLength:      cfg.Booking.MinAddressLength,
		MaxInstructionsLength: cfg.Booking.MaxInstructionsLength,
	}

	var sync domain.SyncWorker
	if syncWorker != nil {
		sync = syncWorker
	}
	svc := api.Services{
		Bookings:  service.NewBookingService(db, eventBus, sync, validator.New(rules), cfg.Booking.TransitionRetries, &logger),
		Catalog:   service.NewCatalogService(db, &logger),
		Users:     service.NewUserService(db, cfg.BlockedUsers, &logger),
		Reviews:   service.NewReviewService(db, eventBus, &logger),
		Analytics: service.NewAnalyticsService(db, &logger),
		HealthChecks: map[string]func(context.Context) error{
			"database": db.PingContext,
		},
	}
	if syncWorker != nil {
		svc.Sync = syncWorker
	}
	if redisClient != nil {
		svc.HealthChecks["redis"] = func(ctx context.Context) error { return repository.Ping(ctx, redisClient) }
	}

	if err := seedCatalog(ctx, cfg, svc.Catalog, &logger); err != nil {
		return err
	}

	if cfg.Backup.Enabled {
		go database.NewBackupService(db, cfg.Backup, &logger).Start(ctx)
	}

	startMetrics(ctx, cfg, &logger)

	store := initIdempotencyStore(ctx, redisClient, &logger)
	httpServer := api.NewHTTPServer(cfg.API, svc, store, &logger)

	var grpcServer *api.GRPCServer
	if cfg.API.GRPC.Enabled {
		grpcServer, err = api.NewGRPCServer(cfg.API, svc.Bookings, api.NewAuthenticator(cfg.API, svc.Users.IsBlocked), &logger)
		if err != nil {
			logger.Error().Err(err).Msg("create grpc server")
			return err
		}
	}

	return startServers(ctx, grpcServer, httpServer, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

func prepareDirectories(cfg *config.Config, logger *zerolog.Logger) error {
	dirs := []string{filepath.Dir(cfg.Database.Path), cfg.Exports.Path}
	if cfg.Backup.Enabled {
		dirs = append(dirs, cfg.Backup.StoragePath)
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Error().Err(err).Str("dir", dir).Msg("Ошибка создания директории")
			return err
		}
	}
	return nil
}

// seedCatalog loads the category catalog file. A missing file is not an error.
func seedCatalog(ctx context.Context, cfg *config.Config, catalog *service.CatalogService, logger *zerolog.Logger) error {
	path := os.Getenv("CATALOG_PATH")
	if path == "" {
		path = cfg.Database.SeedPath
	}
	if path == "" {
		path = "configs/catalog.yaml"
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		logger.Warn().Str("catalog_path", path).Msg("catalog file not found, skipping seed")
		return nil
	}
	if err != nil {
		logger.Error().Err(err).Str("catalog_path", path).Msg("read catalog")
		return err
	}

	var catalogFile struct {
		Categories []*models.Category `yaml:"categories"`
	}
	if err := yaml.Unmarshal(data, &catalogFile); err != nil {
		logger.Error().Err(err).Str("catalog_path", path).Msg("parse catalog")
		return err
	}

	if err := catalog.SeedCategories(ctx, catalogFile.Categories); err != nil {
		return err
	}
	logger.Info().Int("categories", len(catalogFile.Categories)).Msg("catalog seeded")
	return nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	client := repository.NewRedisClient(cfg.Redis)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := repository.Ping(pingCtx, client); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = client.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return client
}

// initIdempotencyStore prefers redis and falls back to process memory.
func initIdempotencyStore(ctx context.Context, client *redis.Client, logger *zerolog.Logger) domain.IdempotencyStore {
	memory := repository.NewMemoryIdempotencyStore()
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := memory.Sweep(); n > 0 {
					logger.Debug().Int("expired", n).Msg("idempotency keys swept")
				}
			}
		}
	}()

	if client == nil {
		return memory
	}
	return repository.NewFailoverIdempotencyStore(repository.NewRedisIdempotencyStore(client), memory, logger)
}

func initNotifier(cfg *config.Config, db *database.DB, logger *zerolog.Logger) domain.Notifier {
	if cfg.Telegram.BotToken == "" {
		logger.Info().Msg("telegram token not set, notifications go to the log")
		return notify.NewLogNotifier(logger)
	}

	bot, err := notify.NewTelegramBot(cfg.Telegram)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram init failed, notifications go to the log")
		return notify.NewLogNotifier(logger)
	}

	logger.Info().Str("bot", bot.Self.UserName).Msg("telegram notifier ready")
	return notify.NewTelegramNotifier(bot, db, logger)
}

func initGoogleSheets(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *google.SheetsService {
	if cfg.Google.CredentialsFile == "" || cfg.Google.BookingsSpreadsheetID == "" {
		logger.Info().Msg("google sheets not configured, back-office sync disabled")
		return nil
	}

	sheets, err := google.NewSheetsService(ctx, cfg.Google, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without sheets")
		return nil
	}
	if err := sheets.TestConnection(ctx); err != nil {
		logger.Warn().Err(err).Msg("google sheets connection test failed, continuing without sheets")
		return nil
	}
	if err := sheets.WarmUpCache(ctx); err != nil {
		logger.Warn().Err(err).Msg("google sheets cache warm-up failed")
	}
	go sheets.StartCacheRefresh(ctx, 10*time.Minute)

	logger.Info().Msg("google sheets connected")
	return sheets
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
}

func startServers(ctx context.Context, grpcServer *api.GRPCServer, httpServer *api.HTTPServer, logger *zerolog.Logger) error {
	errCh := make(chan error, 2)

	if grpcServer != nil {
		go func() {
			if err := grpcServer.Serve(); err != nil {
				errCh <- fmt.Errorf("grpc server: %w", err)
			}
		}()
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	logger.Info().Msg("API server started")

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case runErr = <-errCh:
		logger.Error().Err(runErr).Msg("server stopped unexpectedly")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if grpcServer != nil {
		grpcServer.SetServing(false)
		grpcServer.Shutdown(shutdownCtx)
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown")
	}

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
