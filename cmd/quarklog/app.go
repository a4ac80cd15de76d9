package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"quarklog/internal/config"
	"quarklog/internal/logging"
	qotel "quarklog/internal/otel"
	"quarklog/internal/repository"
	"quarklog/internal/service"
	"quarklog/internal/storage"
)

// app holds everything a command needs; close releases it in reverse order.
type app struct {
	cfg    *config.AppConfig
	logger *zap.Logger
	store  repository.RecordStore
	svc    service.EntryService

	registry *prometheus.Registry
	shutdown qotel.ShutdownFunc
}

func newApp(ctx context.Context, cfg *config.AppConfig, interactive bool) (*app, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if interactive {
		logger, err = logging.NewInteractive(cfg.Log)
	} else {
		logger, err = logging.New(cfg.Log)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	tp, shutdown, err := qotel.Init(ctx, cfg.Telemetry, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	store, err := storage.Open(cfg.Store, storage.Deps{
		Logger:         logger,
		Registerer:     reg,
		TracerProvider: tp,
	})
	if err != nil {
		logger.Error("store_open_failed", zap.String("component", "store"), zap.Error(err))
		_ = shutdown(ctx)
		_ = logger.Sync()
		return nil, err
	}

	svc := service.NewEntryService(store, service.Options{
		FailurePolicy: cfg.FailurePolicy,
		ListOrder:     cfg.ListOrder,
	})

	a := &app{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		svc:      svc,
		registry: reg,
		shutdown: shutdown,
	}

	if err := svc.Initialize(ctx); err != nil {
		logger.Error("store_initialize_failed", zap.String("component", "store"), zap.Error(err))
		_ = a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) close() error {
	var errs []error
	if err := a.store.Close(); err != nil {
		errs = append(errs, err)
	}
	if a.cfg.Telemetry.MetricsFile != "" {
		if err := prometheus.WriteToTextfile(a.cfg.Telemetry.MetricsFile, a.registry); err != nil {
			errs = append(errs, fmt.Errorf("write metrics: %w", err))
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown tracing: %w", err))
	}
	_ = a.logger.Sync()
	return errors.Join(errs...)
}
