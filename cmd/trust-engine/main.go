package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/governstack/govern-trust/internal/alert"
	"github.com/governstack/govern-trust/internal/api"
	"github.com/governstack/govern-trust/internal/cache"
	"github.com/governstack/govern-trust/internal/config"
	"github.com/governstack/govern-trust/internal/engine"
	"github.com/governstack/govern-trust/internal/history"
	"github.com/governstack/govern-trust/internal/metrics"
	"github.com/governstack/govern-trust/internal/notify"
	"github.com/governstack/govern-trust/internal/patterns"
	"github.com/governstack/govern-trust/internal/playbook"
	"github.com/governstack/govern-trust/internal/repo"
	"github.com/governstack/govern-trust/internal/services"
	"github.com/governstack/govern-trust/internal/utils"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	logger.Info("starting trust-engine", slog.String("address", cfg.Server.Address))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	var cacheProvider cache.Provider = cache.NoopProvider{}
	var cooldowns alert.CooldownStore = alert.NewMemoryCooldownStore()
	if cfg.Cache.Enabled && cfg.Cache.Addr != "" {
		provider, err := cache.NewRedisProvider(cache.RedisConfig{
			Addr:         cfg.Cache.Addr,
			Username:     cfg.Cache.Username,
			Password:     cfg.Cache.Password,
			DB:           cfg.Cache.DB,
			DialTimeout:  cfg.Cache.DialTimeout,
			ReadTimeout:  cfg.Cache.ReadTimeout,
			WriteTimeout: cfg.Cache.WriteTimeout,
			TLS:          cfg.Cache.TLS,
		})
		if err != nil {
			logger.Warn("redis unavailable, cooldowns stay in memory", slog.Any("error", err))
		} else {
			defer provider.Close()
			cacheProvider = provider
			cooldowns = alert.NewCacheCooldownStore(provider)
			logger.Info("redis cooldown store enabled", slog.String("addr", cfg.Cache.Addr))
		}
	}

	var store history.Store
	switch cfg.History.Backend {
	case "postgres":
		pgStore, err := history.NewPostgresStore(cfg.History.PostgresDSN)
		if err != nil {
			logger.Error("failed to open postgres history", slog.Any("error", err))
			os.Exit(1)
		}
		store = pgStore
	default:
		store = history.NewMemoryStore()
	}
	defer store.Close()

	var mailer notify.Mailer
	if cfg.Alerting.SMTP.Host != "" {
		mailer = notify.NewSMTPMailer(
			cfg.Alerting.SMTP.Host,
			cfg.Alerting.SMTP.Port,
			cfg.Alerting.SMTP.Username,
			cfg.Alerting.SMTP.Password,
			cfg.Alerting.SMTP.From,
			cfg.Alerting.SMTP.Timeout,
		)
	}
	var smsSender notify.SMSSender
	if cfg.Alerting.SMSGateway.BaseURL != "" {
		smsSender = notify.NewHTTPSMSGateway(
			cfg.Alerting.SMSGateway.BaseURL,
			cfg.Alerting.SMSGateway.APIKey,
			cfg.Alerting.SMSGateway.Sender,
			cfg.Alerting.SMSGateway.Timeout,
		)
	}

	dispatcher := alert.NewDispatcher(utils.ComponentLogger(logger, "dispatcher"), cooldowns, cfg.Alerting.CooldownWindow,
		mailer, smsSender, alert.Recipients{
			Email: cfg.Alerting.Recipients.Email,
			SMS:   cfg.Alerting.Recipients.SMS,
		})

	registry, err := playbook.NewRegistry(cfg.Playbooks.Path, logger)
	if err != nil {
		logger.Error("failed to load playbook pack", slog.Any("error", err))
		os.Exit(1)
	}

	collector := repo.NewCollectorClient(
		cfg.Collector.BaseURL,
		cfg.Collector.SnapshotPath,
		cfg.Collector.Timeout,
	)

	monitor := engine.NewMonitor(utils.ComponentLogger(logger, "monitor"), collector, store, registry, dispatcher, cfg)
	miner := patterns.NewMiner(utils.ComponentLogger(logger, "patterns"), store)
	trustService := services.NewTrustService(logger, monitor, store, miner, cacheProvider)

	server, err := api.NewServer(cfg.Server, utils.ComponentLogger(logger, "api"), trustService)
	if err != nil {
		logger.Error("failed to create HTTP server", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	go func() {
		if err := monitor.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("monitor loop exited", slog.Any("error", err))
			stop()
		}
	}()

	go func() {
		if serveErr := server.Start(); serveErr != nil {
			logger.Error("HTTP server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	server.Shutdown(shutdownCtx)

	if metricsServer != nil {
		metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancelMetrics()
	}

	// Give remaining goroutines time to finish logging
	time.Sleep(100 * time.Millisecond)
	logger.Info("trust-engine stopped")
}
