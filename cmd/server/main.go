package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ricirt/ping-queue/internal/api"
	"github.com/ricirt/ping-queue/internal/config"
	"github.com/ricirt/ping-queue/internal/db"
	"github.com/ricirt/ping-queue/internal/metrics"
	"github.com/ricirt/ping-queue/internal/pinger"
	"github.com/ricirt/ping-queue/internal/ratelimiter"
	"github.com/ricirt/ping-queue/internal/repository"
	"github.com/ricirt/ping-queue/internal/service"
	"github.com/ricirt/ping-queue/internal/site"
	"github.com/ricirt/ping-queue/internal/worker"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (optional)")
	flag.Parse()

	// ---- configuration ----
	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLog, _ := zap.NewProduction()
		bootLog.Fatal("failed to load config", zap.Error(err))
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	// ---- database ----
	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(cfg.Database.URL); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	logger.Info("database migrations applied")

	// ---- core dependencies ----
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	repo := repository.NewPgPingRepository(pool)
	limiter := ratelimiter.New(cfg.Pings.RateLimit)
	transport := pinger.NewXMLRPCPinger(pinger.Config{
		Timeout:   cfg.Pings.Timeout,
		UserAgent: cfg.Pings.UserAgent,
	}, limiter)
	resolver := site.NewResolver()
	svc := service.NewPingService(repo, logger)

	drainer, err := worker.Init(repo, transport, config.NewPolicyLoader(*configPath, resolver), logger.Named("pingqueue"), m.WorkerHooks())
	if err != nil {
		logger.Fatal("failed to initialize ping queue", zap.Error(err))
	}

	if n, err := svc.BootstrapTargets(ctx, cfg.Pings.InitialTargets); err != nil {
		logger.Error("failed to create initial ping targets", zap.Error(err))
	} else if n > 0 {
		logger.Info("initial ping targets created", zap.Int("count", n))
	}

	// ---- scheduler ----
	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	var wg sync.WaitGroup
	if cfg.Pings.ProcessInterval > 0 {
		sw := worker.NewSchedulerWorker(drainer, cfg.Pings.ProcessInterval, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			sw.Run(workerCtx)
		}()
	} else {
		logger.Info("ping scheduler disabled; passes run only on request")
	}

	// ---- HTTP server ----
	router := api.NewRouter(svc, drainer, resolver, pool, reg, logger)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// ---- graceful shutdown ----
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutdown signal received")

	// 1. Stop accepting new HTTP requests.
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	// 2. Stop the scheduler; a pass in progress runs to completion first.
	cancelWorkers()
	wg.Wait()

	logger.Info("server stopped cleanly")
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
