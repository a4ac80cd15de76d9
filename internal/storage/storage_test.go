package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"quarklog/internal/config"
	"quarklog/internal/model"
	"quarklog/internal/repository"
)

// Both backends must satisfy the same store contract.
func TestOpen_BackendContract(t *testing.T) {
	for _, backend := range []string{config.BackendSQLite, config.BackendJSONL} {
		t.Run(backend, func(t *testing.T) {
			ctx := context.Background()
			path := filepath.Join(t.TempDir(), "store", config.DefaultPath(backend))
			now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

			store, err := Open(config.StoreConfig{Backend: backend, Path: path, BusyTimeoutMS: 1000, MaxOpenConns: 1}, Deps{
				Clock: func() time.Time { return now },
			})
			require.NoError(t, err)
			defer store.Close()

			require.NoError(t, store.Initialize(ctx))
			require.NoError(t, store.Initialize(ctx))

			items, err := store.ListAll(ctx)
			require.NoError(t, err)
			assert.Empty(t, items)

			idA, err := store.Insert(ctx, "a")
			require.NoError(t, err)
			idB, err := store.Insert(ctx, "b")
			require.NoError(t, err)
			assert.NotEqual(t, idA, idB)

			items, err = store.ListAll(ctx)
			require.NoError(t, err)
			require.Len(t, items, 2)
			byText := map[string]model.Record{}
			for _, it := range items {
				byText[it.Text] = it
				assert.True(t, now.Equal(it.CreatedAt))
			}
			assert.Equal(t, idA, byText["a"].ID)
			assert.Equal(t, idB, byText["b"].ID)
		})
	}
}

func TestOpen_TextRoundTrip(t *testing.T) {
	texts := []string{"line1\nline2\x00\xff", "  ", "ünïcode"}
	for _, backend := range []string{config.BackendSQLite, config.BackendJSONL} {
		t.Run(backend, func(t *testing.T) {
			ctx := context.Background()
			path := filepath.Join(t.TempDir(), config.DefaultPath(backend))

			store, err := Open(config.StoreConfig{Backend: backend, Path: path, MaxOpenConns: 1}, Deps{})
			require.NoError(t, err)
			defer store.Close()
			require.NoError(t, store.Initialize(ctx))

			for _, s := range texts {
				_, err := store.Insert(ctx, s)
				require.NoError(t, err)
			}

			items, err := store.ListAll(ctx)
			require.NoError(t, err)
			require.Len(t, items, len(texts))
			for i, s := range texts {
				assert.Equal(t, []byte(s), []byte(items[i].Text))
			}
		})
	}
}

func TestOpen_ReadOnlyContract(t *testing.T) {
	for _, backend := range []string{config.BackendSQLite, config.BackendJSONL} {
		t.Run(backend, func(t *testing.T) {
			ctx := context.Background()
			cfg := config.StoreConfig{Backend: backend, Path: filepath.Join(t.TempDir(), config.DefaultPath(backend)), MaxOpenConns: 1}

			rw, err := Open(cfg, Deps{})
			require.NoError(t, err)
			require.NoError(t, rw.Initialize(ctx))
			_, err = rw.Insert(ctx, "kept")
			require.NoError(t, err)
			require.NoError(t, rw.Close())

			cfg.ReadOnly = true
			ro, err := Open(cfg, Deps{})
			require.NoError(t, err)
			defer ro.Close()
			require.NoError(t, ro.Initialize(ctx))

			_, err = ro.Insert(ctx, "rejected")
			assert.True(t, repository.IsStorageError(err))

			items, err := ro.ListAll(ctx)
			require.NoError(t, err)
			require.Len(t, items, 1)
			assert.Equal(t, "kept", items[0].Text)
		})
	}
}

func TestOpen_WiresMiddleware(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zapcore.InfoLevel)
	reg := prometheus.NewRegistry()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	defer tp.Shutdown(ctx)

	store, err := Open(config.StoreConfig{
		Backend: config.BackendJSONL,
		Path:    filepath.Join(t.TempDir(), "app.jsonl"),
	}, Deps{Logger: zap.New(core), Registerer: reg, TracerProvider: tp})
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Initialize(ctx))
	_, err = store.Insert(ctx, "hello")
	require.NoError(t, err)

	assert.Equal(t, 1, logs.FilterMessage("store_opened").Len())
	assert.Equal(t, 2, logs.FilterMessage("store_op").Len())
	assert.Len(t, sr.Ended(), 2)

	count, err := testutil.GatherAndCount(reg, "quarklog_store_operations_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// logging sits inside the span, so log lines carry its trace id
	for _, e := range logs.FilterMessage("store_op").All() {
		assert.NotEmpty(t, e.ContextMap()["trace_id"])
	}
}

func TestOpen_Errors(t *testing.T) {
	t.Run("unknown backend", func(t *testing.T) {
		_, err := Open(config.StoreConfig{Backend: "postgres", Path: "x"}, Deps{})
		assert.Equal(t, repository.OpOpen, repository.OpOf(err))
	})

	t.Run("sqlite read-only on missing file", func(t *testing.T) {
		_, err := Open(config.StoreConfig{
			Backend:  config.BackendSQLite,
			Path:     filepath.Join(t.TempDir(), "missing.db"),
			ReadOnly: true,
		}, Deps{})
		assert.True(t, repository.IsStorageError(err))
	})

	t.Run("metrics already registered", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		cfg := config.StoreConfig{Backend: config.BackendJSONL, Path: filepath.Join(t.TempDir(), "a.jsonl")}

		first, err := Open(cfg, Deps{Registerer: reg})
		require.NoError(t, err)
		defer first.Close()

		_, err = Open(cfg, Deps{Registerer: reg})
		assert.Equal(t, repository.OpOpen, repository.OpOf(err))
	})
}
