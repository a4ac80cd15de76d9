// Package storage assembles the configured record store: backend plus middleware.
package storage

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"quarklog/internal/config"
	"quarklog/internal/database"
	"quarklog/internal/repository"
	"quarklog/internal/repository/jsonl"
	"quarklog/internal/repository/middleware"
	"quarklog/internal/repository/sqlite"
)

// Deps are the collaborators injected into the store. Nil fields disable the
// corresponding middleware.
type Deps struct {
	Logger         *zap.Logger
	Registerer     prometheus.Registerer
	TracerProvider trace.TracerProvider
	Clock          repository.Clock
}

// Open builds the backend selected by cfg.Backend and wraps it with tracing, metrics
// and logging, outermost first. The store is not initialized.
func Open(cfg config.StoreConfig, deps Deps) (repository.RecordStore, error) {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Clock == nil {
		deps.Clock = repository.SystemClock
	}

	backend, err := openBackend(cfg, deps)
	if err != nil {
		return nil, err
	}

	mws := []middleware.Middleware{middleware.Logging(deps.Logger)}
	if deps.Registerer != nil {
		pm, err := middleware.NewPrometheusMiddleware(deps.Registerer)
		if err != nil {
			_ = backend.Close()
			return nil, repository.NewStorageError(repository.OpOpen, cfg.Backend, cfg.Path, fmt.Errorf("register metrics: %w", err))
		}
		mws = append([]middleware.Middleware{pm.Middleware()}, mws...)
	}
	tp := deps.TracerProvider
	if tp == nil {
		tp = noop.NewTracerProvider()
	}
	mws = append([]middleware.Middleware{middleware.Tracing(tp)}, mws...)

	deps.Logger.Info("store_opened",
		zap.String("component", "store"),
		zap.String("backend", cfg.Backend),
		zap.String("path", cfg.Path),
		zap.Bool("read_only", cfg.ReadOnly),
	)
	return middleware.Chain(backend, mws...), nil
}

func openBackend(cfg config.StoreConfig, deps Deps) (repository.RecordStore, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		db, err := database.NewSQLite(cfg)
		if err != nil {
			return nil, repository.NewStorageError(repository.OpOpen, sqlite.Backend, cfg.Path, err)
		}
		return sqlite.NewRecordSQLite(db,
			sqlite.WithPath(cfg.Path),
			sqlite.WithReadOnly(cfg.ReadOnly),
			sqlite.WithClock(deps.Clock),
			sqlite.WithLogger(deps.Logger),
		), nil
	case config.BackendJSONL:
		return jsonl.NewRecordJSONL(cfg.Path,
			jsonl.WithReadOnly(cfg.ReadOnly),
			jsonl.WithClock(deps.Clock),
		), nil
	default:
		return nil, repository.NewStorageError(repository.OpOpen, cfg.Backend, cfg.Path, fmt.Errorf("unknown backend %q", cfg.Backend))
	}
}
