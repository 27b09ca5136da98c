package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Past-Tang/x/internal/accountpool"
	"github.com/Past-Tang/x/internal/api"
	"github.com/Past-Tang/x/internal/auth"
	"github.com/Past-Tang/x/internal/config"
	"github.com/Past-Tang/x/internal/database"
	"github.com/Past-Tang/x/internal/execlog"
	"github.com/Past-Tang/x/internal/logging"
	"github.com/Past-Tang/x/internal/metrics"
	"github.com/Past-Tang/x/internal/monitor"
	"github.com/Past-Tang/x/internal/poster"
	"github.com/Past-Tang/x/internal/ratelimit"
	"github.com/Past-Tang/x/internal/scheduler"
	"github.com/Past-Tang/x/internal/secrets"
	"github.com/Past-Tang/x/internal/selector"
	"github.com/Past-Tang/x/internal/server"
	"github.com/Past-Tang/x/internal/settings"
	"github.com/Past-Tang/x/internal/social"
	"github.com/Past-Tang/x/internal/templates"
	"log/slog"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to init logger", "error", err)
		os.Exit(1)
	}

	logger.Info("starting xauto")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbConfig := database.DefaultConfig()
	dbConfig.URL = cfg.Database.URL

	logger.Info("connecting to database")
	db, err := database.Connect(ctx, dbConfig)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("database connected")

	if err := database.RunMigrations(db, "./migrations", logger); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Repositories
	accountRepo := database.NewPostgresAccountRepository(db)
	targetRepo := database.NewPostgresTargetRepository(db)
	templateRepo := database.NewPostgresReplyTemplateRepository(db)
	postJobRepo := database.NewPostgresPostJobRepository(db)
	postContentRepo := database.NewPostgresPostContentRepository(db)
	repliedRepo := database.NewPostgresRepliedTweetRepository(db)
	logRepo := database.NewPostgresExecutionLogRepository(db)
	settingRepo := database.NewPostgresSettingRepository(db, logger)

	// Seed missing settings so a fresh install works out of the box.
	if created, err := settingRepo.InitDefaults(ctx, settings.Defaults()); err != nil {
		logger.Warn("failed to seed default settings", "error", err)
	} else if len(created) > 0 {
		logger.Info("seeded default settings", "keys", created)
	}

	box, err := secrets.NewBox(cfg.Secrets.TokenEncryptionKey)
	if err != nil {
		logger.Error("invalid token encryption key", "error", err)
		os.Exit(1)
	}

	collector, err := metrics.NewCollector()
	if err != nil {
		logger.Error("failed to init metrics", "error", err)
		os.Exit(1)
	}

	limiter := ratelimit.New(settingRepo, logger)
	limiter.OnRejected = func(kind ratelimit.ActionKind) {
		collector.RecordRateLimited(string(kind))
	}

	// Pipeline components
	sel := selector.New()
	pool := accountpool.New(accountRepo, sel, settingRepo, logger)
	rotation := templates.NewRotation(templateRepo, settingRepo)
	twitterClient := social.NewClient(settingRepo, logger)
	recorder := execlog.NewRecorder(logRepo, collector, logger)

	monitorService := monitor.NewService(targetRepo, repliedRepo, pool, rotation, twitterClient, limiter, recorder, box, settingRepo, logger)
	posterService := poster.NewService(postJobRepo, postContentRepo, pool, twitterClient, limiter, recorder, box, logger)

	monitorSched := scheduler.NewMonitorScheduler(targetRepo, monitorService, logger)
	postSched := scheduler.NewPostScheduler(postJobRepo, posterService, logger)

	if cfg.Pipeline.SchedulersEnabled {
		// Start blocks until Stop or cancellation, so each loop gets
		// its own goroutine.
		go monitorSched.Start(ctx)
		go postSched.Start(ctx)
		logger.Info("schedulers started")
	} else {
		logger.Info("schedulers disabled, pipelines run on manual triggers only")
	}

	authConfig := auth.LoadConfigFromEnv()
	logger.Info("auth configured", "jwt_secret_set", authConfig.JWTSecret != "change-this-secret")

	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		code := http.StatusOK
		if err := database.HealthCheck(r.Context(), db); err != nil {
			logger.Error("health check failed", "error", err)
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":             status,
			"schedulers_enabled": cfg.Pipeline.SchedulersEnabled,
			"rate_limit_usage": map[string]int{
				"monitor": limiter.Usage(ratelimit.ActionMonitor),
				"reply":   limiter.Usage(ratelimit.ActionReply),
				"post":    limiter.Usage(ratelimit.ActionPost),
			},
		})
	})

	mux.Handle("/metrics", collector.Handler())

	api.SetupRoutes(mux, api.Repositories{
		Accounts:     accountRepo,
		Targets:      targetRepo,
		Templates:    templateRepo,
		PostJobs:     postJobRepo,
		PostContents: postContentRepo,
		Logs:         logRepo,
		Settings:     settingRepo,
	}, pool, box, monitorSched, postSched, authConfig, logger)

	handler := server.SPAMiddleware(collector.InstrumentHandler(mux), "./static", "./static/index.html")
	srv := server.New(cfg.Server, logger, handler)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", "error", err)
		}
	}

	cancel()
	if cfg.Pipeline.SchedulersEnabled {
		monitorSched.Stop()
		postSched.Stop()
	}

	if err := srv.Shutdown(context.Background()); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	logger.Info("stopped")
}
