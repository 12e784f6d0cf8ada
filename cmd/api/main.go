package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"voice-forms-go/internal/app"
	"voice-forms-go/internal/config"
	"voice-forms-go/internal/httpapi"
	"voice-forms-go/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New().WithError(err).Fatal("invalid configuration")
	}
	log := logger.NewWithOptions(logger.Options{Environment: cfg.Environment, Level: cfg.LogLevel})
	log.WithField("service", "voice-forms-go").Info("starting service")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to build service")
	}
	a.Dispatcher.Start()

	srv := httpapi.NewApp(a.Service, log)
	addr := ":" + cfg.Port
	go func() {
		log.WithField("addr", addr).Info("listening")
		if err := srv.Listen(addr); err != nil {
			log.WithError(err).Error("server terminated")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	if err := srv.ShutdownWithTimeout(15 * time.Second); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	drain, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	if err := a.Close(drain); err != nil {
		log.WithError(err).Warn("enrichment queue not drained")
	}
}
