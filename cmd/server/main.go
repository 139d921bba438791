package main

import (
	"context"
	"errors"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vncsmyrnk/livepoll/internal/adapters/handler/http"
	"github.com/vncsmyrnk/livepoll/internal/adapters/handler/ws"
	"github.com/vncsmyrnk/livepoll/internal/adapters/notify"
	"github.com/vncsmyrnk/livepoll/internal/adapters/repository"
	"github.com/vncsmyrnk/livepoll/internal/config"
	"github.com/vncsmyrnk/livepoll/internal/core/services"
	"github.com/vncsmyrnk/livepoll/internal/logger"
	"github.com/vncsmyrnk/livepoll/internal/metrics"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		logrus.Fatalf("invalid configuration: %v", err)
	}

	log := logger.New(cfg.LogLevel)
	if !cfg.EnvFileLoaded {
		log.Debug("No .env file found")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, err := repository.Open(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("failed to open archive store")
	}
	defer stores.Close()

	publisher, err := notify.New(cfg)
	if err != nil {
		log.WithError(err).Fatal("failed to set up results publisher")
	}
	if publisher != nil {
		defer publisher.Close()
	}

	archive := services.NewArchiveWriter(stores.Polls, stores.Messages, publisher, cfg.ArchiveTimeout, log.WithField("component", "archive"))
	hub := ws.NewHub(log.WithField("component", "hub"))
	session := services.NewSessionCoordinator(hub, archive, services.SystemClock(), cfg.DefaultPollDuration, log.WithField("component", "session"))
	history := services.NewHistoryService(stores.Polls, stores.Messages)

	opts := ws.DefaultOptions()
	opts.SendBuffer = cfg.SendBuffer
	opts.AllowedOrigins = cfg.AllowedOrigins
	wsHandler := ws.NewHandler(hub, session, opts, log.WithField("component", "ws"))

	routerOpts := http.RouterOptions{AllowedOrigins: cfg.AllowedOrigins}
	if cfg.MetricsEnabled {
		routerOpts.Metrics = metrics.Handler()
	}
	handler := http.NewHandler(http.NewHistoryHandler(history), http.NewHealthHandler(hub), wsHandler, routerOpts)
	server := &stdhttp.Server{Addr: cfg.Addr(), Handler: handler}

	go func() {
		log.WithFields(logrus.Fields{
			"addr":      cfg.Addr(),
			"database":  cfg.DatabaseType,
			"publisher": cfg.ResultsPublisher,
		}).Info("livepoll server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	log.Info("Gracefully shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := session.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("archive writes did not finish before shutdown")
	}
	hub.CloseAll("server shutting down")

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("http server shutdown failed")
	}
}
