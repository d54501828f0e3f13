// Package main is the entrypoint for the Userhub API server.
package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/userhub/userhub/internal/auth"
	"github.com/userhub/userhub/internal/cache"
	"github.com/userhub/userhub/internal/config"
	"github.com/userhub/userhub/internal/handler"
	"github.com/userhub/userhub/internal/logger"
	"github.com/userhub/userhub/internal/mailer"
	"github.com/userhub/userhub/internal/mailqueue"
	"github.com/userhub/userhub/internal/metrics"
	"github.com/userhub/userhub/internal/repository"
	"github.com/userhub/userhub/internal/server"
	"github.com/userhub/userhub/internal/service"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx := context.Background()

	if err := config.LoadDotEnv(); err != nil {
		slog.Error("failed to load .env", "error", err)
		return 1
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	log, flush, err := logger.New(os.Stdout, logger.Options{
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
		SentryDSN:   cfg.SentryDSN,
		Environment: cfg.AppEnv,
		Release:     cfg.AppName + "@" + cfg.AppVersion,
	})
	defer flush()
	slog.SetDefault(log)
	if err != nil {
		log.Warn("sentry disabled", "error", err)
	}

	// Initialize database
	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		return 1
	}
	log.Info("connected to database")

	// Initialize cache
	cacheClient, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		repo.Close()
		log.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		return 1
	}
	log.Info("connected to Redis")

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewPrometheus(registry)

	// Services
	store := service.NewStore(repo)
	userService := service.NewUserService(store, auth.NewHasher(auth.DefaultParams), service.Pagination{
		DefaultPerPage: cfg.PaginationDefault,
		MaxPerPage:     cfg.PaginationMax,
	}, recorder)
	emailService := service.NewEmailService(store, recorder)

	queue := mailqueue.New(cacheClient.Client(), log, recorder)
	welcomeService := service.NewWelcomeService(store, queue, cfg.WelcomeMinDelay, cfg.WelcomeMaxDelay, recorder)

	// Handlers
	handlers := routerHandlers{
		root:    handler.New(cfg.AppName, cfg.AppVersion),
		health:  handler.NewHealthHandler(repo, cacheClient),
		metrics: handler.NewMetricsHandler(registry),
		users:   handler.NewUserHandler(userService, welcomeService, log, cfg.AppDebug),
		emails:  handler.NewEmailHandler(emailService, log, cfg.AppDebug),
	}
	r := setupRouter(handlers, cacheClient, recorder, cfg, log)

	srv := server.New(
		r,
		cfg.AppPort,
		cfg.ReadTimeout,
		cfg.WriteTimeout,
		cfg.ShutdownTimeout,
		log,
	)

	// Registered first so they are closed last.
	srv.OnShutdown("postgres", func(context.Context) error {
		repo.Close()
		return nil
	})
	srv.OnShutdown("redis", func(context.Context) error {
		return cacheClient.Close()
	})

	if cfg.WelcomeWorker {
		sender, err := mailer.NewSender(cfg.ResendAPIKey, cfg.IsDevelopment(), log)
		if err != nil {
			log.Warn("welcome mails will fail until a transport is configured", "error", err)
			sender = &mailer.ResendSender{}
		}
		worker := mailqueue.NewWorker(queue,
			mailer.NewWelcomeHandler(userService, sender, cfg.MailFrom, log),
			mailqueue.WorkerConfig{
				MaxAttempts: cfg.WelcomeMaxAttempts,
				JobTimeout:  cfg.WelcomeJobTimeout,
			},
		)
		srv.Go("welcome-worker", worker.Run)
		srv.OnShutdown("welcome-worker", worker.Shutdown)
	}

	log.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"debug", cfg.AppDebug,
	)

	if err := srv.Run(); err != nil {
		log.Error("server error", "error", err)
		return 1
	}
	return 0
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
