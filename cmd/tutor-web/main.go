package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"ragtutor/internal/bootstrap"
	"ragtutor/internal/config"
	"ragtutor/internal/logging"
	"ragtutor/internal/server"
)

func main() {
	_ = godotenv.Load()

	cfgPath := flag.String("config", "", "Path to YAML config file (optional)")
	address := flag.String("address", "", "Listen address (overrides server.address)")
	docsDir := flag.String("docs", "", "Documents directory (overrides documents.dir)")
	flag.Parse()

	var cfg *config.AppConfig
	var err error
	if *cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(*cfgPath)
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *address != "" {
		cfg.Server.Address = *address
	}
	if *docsDir != "" {
		cfg.Documents.Dir = *docsDir
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("failed to set up logging: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := bootstrap.NewService(cfg, logger)
	if err != nil {
		logger.Fatalf("setup failed: %v", err)
	}
	logger.WithField("dir", cfg.Documents.Dir).Info("loading model and documents")
	if err := svc.Ingest(ctx, cfg.Documents.Dir); err != nil {
		logger.Fatalf("ingest failed: %v", err)
	}

	srv, err := server.New(svc, server.Config{
		MaxSessions: cfg.Server.MaxSessions,
		MaxTurns:    cfg.History.MaxTurns,
		Overview:    svc.Overview().Line(),
		Logger:      logger,
	})
	if err != nil {
		logger.Fatalf("server setup failed: %v", err)
	}

	httpServer := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
	}
	go func() {
		logger.WithField("address", cfg.Server.Address).Info("server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	stop()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("shutdown failed")
	}
}
