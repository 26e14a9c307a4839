package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/harentsoaR/dentaheal-api/internal/config"
	"github.com/harentsoaR/dentaheal-api/internal/handlers"
	"github.com/harentsoaR/dentaheal-api/internal/observability"
	"github.com/harentsoaR/dentaheal-api/internal/ratelimit"
	"github.com/harentsoaR/dentaheal-api/internal/repository"
	"github.com/harentsoaR/dentaheal-api/internal/services"
	"github.com/harentsoaR/dentaheal-api/internal/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting api",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.Bool("mongo_configured", cfg.Mongo.URI != ""),
		zap.Bool("redis_configured", cfg.Redis.Addr != ""),
		zap.Bool("mail_configured", cfg.Mail.Host != ""),
		zap.Bool("jwt_secret_set", cfg.Auth.JWTSecret != ""))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mongoStore, err := repository.NewMongo(ctx, cfg.Mongo, logger)
	if err != nil {
		logger.Fatal("failed to connect to mongodb", zap.Error(err))
	}
	defer mongoStore.Close(context.Background())

	var (
		accounts     repository.AccountRepository
		appointments repository.AppointmentRepository
	)
	checks := map[string]handlers.HealthCheck{}
	if mongoStore != nil {
		accounts = repository.NewAccountRepository(mongoStore.DB)
		appointments = repository.NewAppointmentRepository(mongoStore.DB)
		checks["mongo"] = mongoStore.Ping
	} else {
		accounts = repository.NewMemoryAccounts()
		appointments = repository.NewMemoryAppointments()
	}

	redisClient := ratelimit.NewRedisClient(ctx, cfg.Redis, logger)
	if redisClient != nil {
		defer redisClient.Close()
		checks["redis"] = func(ctx context.Context) error { return ratelimit.Ping(ctx, redisClient) }
	}
	limiter := ratelimit.NewRedisLimiter(redisClient, cfg.Auth.VerifyMaxAttempts, cfg.Auth.VerifyAttemptWindow(), logger)

	var mailer services.Mailer
	if cfg.Mail.Host != "" {
		smtp, err := services.NewSMTPMailer(cfg.Mail)
		if err != nil {
			logger.Fatal("failed to configure smtp", zap.Error(err))
		}
		mailer = smtp
	} else {
		logger.Warn("MAIL_HOST not provided; emails will only be logged")
		mailer = services.NewLogMailer(logger)
	}
	notifier := services.NewNotificationService(mailer, logger)

	tokens := utils.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL())
	identity := services.NewIdentityService(cfg.Auth, services.IdentityDependencies{
		Accounts: accounts,
		Notifier: notifier,
		Tokens:   tokens,
		Limiter:  limiter,
		Logger:   logger,
	})
	ledger := services.NewLedgerService(cfg.Ledger, services.LedgerDependencies{
		Appointments: appointments,
		Accounts:     accounts,
		Notifier:     notifier,
		Logger:       logger,
	})

	if cfg.Sweeper.Enabled {
		sweeper := services.NewSweeper(identity, logger)
		if err := sweeper.Start(cfg.Sweeper.Interval()); err != nil {
			logger.Fatal("failed to start sweeper", zap.Error(err))
		}
		defer sweeper.Stop()
	}

	if !cfg.App.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	h := handlers.NewHandler(handlers.Dependencies{
		Identity:  identity,
		Ledger:    ledger,
		Logger:    logger,
		UploadDir: cfg.Ledger.UploadDir,
		Checks:    checks,
	})
	router := handlers.NewRouter(h, tokens, handlers.RouterConfig{
		AllowOrigins:   cfg.App.CORSAllowOrigins,
		RequestTimeout: cfg.App.RequestTimeout(),
	})

	srv := &http.Server{
		Addr:              cfg.App.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
