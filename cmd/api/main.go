package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"garagebook/internal/api"
	"garagebook/internal/auth"
	"garagebook/internal/config"
	"garagebook/internal/database"
	"garagebook/internal/domain"
	"garagebook/internal/events"
	"garagebook/internal/logging"
	"garagebook/internal/metrics"
	"garagebook/internal/models"
	"garagebook/internal/notify"
	"garagebook/internal/repository"
	"garagebook/internal/service"
	"garagebook/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// store is a booking repository that can also release its resources.
type store struct {
	domain.BookingRepository
	close func() error
}

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

	var wg sync.WaitGroup

	bookingStore, err := initStore(ctx, cfg, &wg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = bookingStore.close() }()

	redisClient := initRedis(cfg, logger)
	if redisClient != nil {
		defer repository.Close(redisClient)
	}

	var primaryLimiter domain.AttemptLimiter
	if redisClient != nil {
		primaryLimiter = repository.NewRedisAttemptLimiter(redisClient)
	}
	limiter := repository.NewFailoverAttemptLimiter(primaryLimiter, repository.NewMemoryAttemptLimiter(), logging.Component(logger, "limiter"))

	bus := events.NewEventBus()
	events.SubscribeAudit(bus, logging.Component(logger, "audit"))

	var dispatcher *notify.Dispatcher
	notificationWorker := worker.NewNotificationWorker(
		worker.HandlerFunc(func(ctx context.Context, task models.NotificationTask) error {
			return dispatcher.Handle(ctx, task)
		}),
		redisClient,
		worker.RetryPolicy{
			MaxRetries:   cfg.Notifications.Worker.MaxRetries,
			InitialDelay: time.Duration(cfg.Notifications.Worker.InitialDelaySeconds) * time.Second,
			MaxDelay:     time.Duration(cfg.Notifications.Worker.MaxDelaySeconds) * time.Second,
		},
		logging.Component(logger, "notification-worker"),
	)
	dispatcher = notify.NewDispatcher(notificationWorker, initChannels(ctx, cfg, logger), logging.Component(logger, "dispatcher"))
	dispatcher.Subscribe(bus)

	wg.Add(1)
	go func() {
		defer wg.Done()
		notificationWorker.Start(ctx)
	}()

	tokens := auth.NewTokenService(cfg.Auth.JWTSecret, time.Duration(cfg.Auth.TokenTTLHours)*time.Hour)
	bookingService := service.NewBookingService(bookingStore, bus, logging.Component(logger, "booking-service"))
	authService := service.NewAuthService(cfg.Auth, tokens, limiter, logging.Component(logger, "auth-service"))

	var digest *notify.DigestScheduler
	if cfg.Notifications.DigestSchedule != "" {
		digest, err = notify.NewDigestScheduler(cfg.Notifications.DigestSchedule, bookingService, notificationWorker, logging.Component(logger, "digest"))
		if err != nil {
			return err
		}
		digest.Start()
	}

	httpServer := api.NewHTTPServer(cfg.API, api.Deps{
		Bookings: bookingService,
		Auth:     authService,
		Tokens:   tokens,
		Store:    bookingStore,
	}, logging.Component(logger, "http"))

	var grpcServer *api.GRPCServer
	if cfg.API.GRPC.Enabled {
		grpcServer, err = api.NewGRPCServer(cfg.API.GRPC, bookingStore, logger)
		if err != nil {
			logger.Error().Err(err).Msg("create grpc server")
			return err
		}
		go grpcServer.Watch(ctx, 15*time.Second)
	}

	startMetrics(ctx, cfg, logger)

	err = startServers(ctx, grpcServer, httpServer, digest, cfg, logger)
	stop()
	wg.Wait()
	return err
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

func initStore(ctx context.Context, cfg *config.Config, wg *sync.WaitGroup, logger *zerolog.Logger) (*store, error) {
	switch cfg.Database.Driver {
	case "sqlite":
		db, err := database.NewDB(cfg.Database.Path, logging.Component(logger, "sqlite"))
		if err != nil {
			logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
			return nil, err
		}
		if cfg.Database.Backup.Enabled {
			backup := database.NewBackupService(db, cfg.Database.Backup, logging.Component(logger, "backup"))
			wg.Add(1)
			go func() {
				defer wg.Done()
				backup.Start(ctx)
			}()
		}
		return &store{BookingRepository: db, close: db.Close}, nil

	case "memory":
		logger.Warn().Msg("using in-memory booking store, data is lost on restart")
		return &store{BookingRepository: repository.NewMemoryBookingRepository(), close: func() error { return nil }}, nil

	default:
		repo, err := repository.NewMongoBookingRepository(ctx, cfg.Database.Mongo, logging.Component(logger, "mongo"))
		if err != nil {
			logger.Error().Err(err).Msg("connect mongo")
			return nil, err
		}
		return &store{BookingRepository: repo, close: func() error {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return repo.Close(closeCtx)
		}}, nil
	}
}

func initRedis(cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)

	pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := repository.Ping(pingCtx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = redisClient.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

func initChannels(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) notify.Channels {
	channels := notify.Channels{AdminAddress: cfg.Notifications.AdminAddress}

	if cfg.Mail.Username != "" {
		channels.Mailer = notify.NewSMTPMailer(cfg.Mail)
		logger.Info().Str("host", cfg.Mail.Host).Msg("email notifications enabled")
	}

	if tg := cfg.Notifications.Telegram; tg.BotToken != "" && tg.ChatID != 0 {
		bot, err := notify.NewTelegramBot(tg.BotToken)
		if err != nil {
			logger.Warn().Err(err).Msg("telegram init failed, continuing without telegram")
		} else {
			channels.Telegram = notify.NewTelegramNotifier(bot, tg.ChatID)
			logger.Info().Msg("telegram notifications enabled")
		}
	}

	if g := cfg.Notifications.Google; g.CredentialsFile != "" && g.BookingsSpreadsheetID != "" {
		appender, err := notify.NewSheetsAppender(ctx, g.CredentialsFile, g.BookingsSpreadsheetID)
		if err == nil {
			err = appender.TestConnection(ctx)
		}
		if err != nil {
			logger.Warn().Err(err).Msg("google sheets init failed, continuing without sheets")
		} else {
			channels.Sheets = appender
			logger.Info().Msg("google sheets connected")
		}
	}

	return channels
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
	digest *notify.DigestScheduler,
	cfg *config.Config,
	logger *zerolog.Logger,
) error {
	if grpcServer != nil {
		go func() {
			if err := grpcServer.Serve(); err != nil {
				logger.Error().Err(err).Msg("grpc server stopped")
			}
		}()
	}

	httpErr := make(chan error, 1)
	go func() {
		httpErr <- httpServer.Start()
	}()

	logger.Info().Int("http_port", cfg.API.HTTP.Port).Bool("grpc", grpcServer != nil).Msg("API server started")

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case runErr = <-httpErr:
		if runErr != nil {
			logger.Error().Err(runErr).Msg("http server stopped")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if grpcServer != nil {
		grpcServer.Shutdown(shutdownCtx)
	}
	_ = httpServer.Shutdown(shutdownCtx)
	if digest != nil {
		digest.Stop(shutdownCtx)
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
