package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"github.com/vytor/vocabdrill/internal/api"
	"github.com/vytor/vocabdrill/internal/config"
	"github.com/vytor/vocabdrill/internal/db"
	"github.com/vytor/vocabdrill/internal/jobs"
	"github.com/vytor/vocabdrill/internal/logger"
	"github.com/vytor/vocabdrill/internal/repository/sqlite"
	"github.com/vytor/vocabdrill/internal/services"
	"github.com/vytor/vocabdrill/internal/worker"
)

func main() {
	envFiles := pflag.StringArray("env-file", nil, "load variables from this .env file (repeatable)")
	addr := pflag.String("addr", "", "listen address, overrides ADDR")
	dbPath := pflag.String("db", "", "SQLite database path, overrides DB_PATH")
	pflag.Parse()

	cfg, err := config.Load(*envFiles...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration:\n%v\n", err)
		os.Exit(2)
	}

	log := logger.New(
		logger.WithLevel(logger.ParseLevel(cfg.LogLevel)),
		logger.WithColors(cfg.LogColors),
	)
	logger.SetDefault(log)

	log.Info("===========================================")
	log.Info("vocabdrill server starting")
	log.Info("===========================================")
	log.Debug("addr=%s", cfg.Addr)
	log.Debug("db_path=%s", cfg.DBPath)
	log.Debug("log_level=%s", cfg.LogLevel)
	log.Debug("exam_default_count=%d", cfg.ExamDefaultCount)
	log.Debug("restore_worker_count=%d", cfg.RestoreWorkerCount)
	log.Debug("restore_queue_size=%d", cfg.RestoreQueueSize)
	log.Debug("shutdown_timeout=%s", cfg.ShutdownTimeout)

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Error("failed to open database: %v", err)
		os.Exit(1)
	}
	defer func() {
		log.Debug("closing database connection")
		database.Close()
	}()

	deckRepo := sqlite.NewDeckRepository(database.DB)
	statsRepo := sqlite.NewStatsRepository(database.DB)
	logRepo := sqlite.NewSessionLogRepository(database.DB)

	restorePool := worker.NewPool(cfg.RestoreWorkerCount, cfg.RestoreQueueSize)
	queue := jobs.NewWorkerQueue(restorePool, nil)

	sessionService := services.NewSessionService(deckRepo, statsRepo, logRepo)
	backupService := services.NewBackupService(deckRepo, queue, sessionService)
	queue.SetRestorer(backupService)

	srv := &api.Server{
		DB:               database,
		Decks:            services.NewDeckService(deckRepo, logRepo, sessionService),
		Sessions:         sessionService,
		Stats:            services.NewStatsService(statsRepo),
		Backup:           backupService,
		ExamDefaultCount: cfg.ExamDefaultCount,
		RequestTimeout:   30 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	ctx = logger.NewContext(ctx, log)
	restorePool.Start(ctx)
	go sessionService.Run(ctx)

	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      srv.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 45 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("HTTP server listening on %s", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error: %v", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop

	log.Info("received signal %v, initiating graceful shutdown", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	log.Debug("shutting down HTTP server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error: %v", err)
	}

	// Live sessions are closed before the database so their results are logged.
	log.Debug("ending %d live sessions", sessionService.LiveCount())
	sessionService.EndAll(logger.NewContext(shutdownCtx, log))

	log.Debug("stopping restore pool")
	restorePool.Stop()
	cancel()

	log.Info("===========================================")
	log.Info("vocabdrill server stopped")
	log.Info("===========================================")
}
