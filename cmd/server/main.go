package main

import (
	"context"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ai-assistant-hub/backend/internal/models"
	"ai-assistant-hub/backend/pkg/config"
	"ai-assistant-hub/backend/pkg/di"
	"ai-assistant-hub/backend/pkg/logger"
	"ai-assistant-hub/backend/pkg/observability"
	"ai-assistant-hub/backend/pkg/router"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		stdlog.Println("No .env file found")
	}

	cfg := config.New()

	logConfig := logger.DefaultConfig()
	logConfig.Level = cfg.Logging.Level
	logConfig.JSON = cfg.Logging.Format != "text"

	log := logger.New(logConfig)
	logger.SetGlobal(log)

	log.Info("starting assistant hub", "env", cfg.Server.Env)

	shutdownTracing := observability.SetupTracing("assistant-hub")
	defer shutdownTracing()
	observability.SetupPrometheusMetrics()

	db, err := config.NewDB()
	if err != nil {
		log.LogError(err, "failed to initialize database")
		os.Exit(1)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Assistant{},
		&models.Document{},
		&models.AccessGrant{},
		&models.Session{},
		&models.Message{},
	); err != nil {
		log.LogError(err, "failed to migrate database")
		os.Exit(1)
	}

	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_messages_session_created ON messages(session_id, created_at)").Error; err != nil {
		log.LogError(err, "failed to create message index", "index", "idx_messages_session_created")
	}

	container, err := di.New(db, cfg, log)
	if err != nil {
		log.LogError(err, "failed to initialize dependency container")
		os.Exit(1)
	}
	defer container.Close()

	r := router.New(container)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r.Engine,
	}

	go func() {
		log.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.LogError(err, "server failed to start")
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.LogError(err, "server forced to shutdown")
	}

	log.Info("server exited gracefully")
}
