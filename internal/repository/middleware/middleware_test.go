package middleware

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"quarklog/internal/model"
	"quarklog/internal/repository"
	"quarklog/internal/repository/mocks"
)

var errDisk = repository.NewStorageError(repository.OpInsert, "sqlite", "app.db", errors.New("disk full"))

func TestChain_Order(t *testing.T) {
	var calls []string
	tag := func(name string) Middleware {
		return func(next repository.RecordStore) repository.RecordStore {
			calls = append(calls, name)
			return next
		}
	}

	base := new(mocks.MockRecordStore)
	got := Chain(base, tag("outer"), nil, Noop(), tag("inner"))

	assert.Same(t, base, got)
	// inner wraps first so that outer ends up outermost
	assert.Equal(t, []string{"inner", "outer"}, calls)
}

func TestOpID(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, OpIDFromContext(ctx))

	ctx2, id := ensureOpID(ctx)
	assert.NotEmpty(t, id)
	assert.Equal(t, id, OpIDFromContext(ctx2))

	_, same := ensureOpID(ctx2)
	assert.Equal(t, id, same)

	assert.Equal(t, "given", OpIDFromContext(WithOpID(ctx, "given")))
}

func TestLogging(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zapcore.InfoLevel)

	base := new(mocks.MockRecordStore)
	store := Logging(zap.New(core))(base)

	base.On("Insert", mock.Anything, "secret text").Return(model.RecordID(4), nil).Once()
	base.On("Insert", mock.Anything, "x").Return(model.RecordID(0), errDisk).Once()
	base.On("ListAll", mock.Anything).Return([]model.Record{{ID: 1}, {ID: 2}}, nil).Once()

	id, err := store.Insert(ctx, "secret text")
	require.NoError(t, err)
	assert.Equal(t, model.RecordID(4), id)

	_, err = store.Insert(ctx, "x")
	assert.ErrorIs(t, err, errDisk)

	items, err := store.ListAll(WithOpID(ctx, "fixed-op"))
	require.NoError(t, err)
	assert.Len(t, items, 2)

	entries := logs.All()
	require.Len(t, entries, 3)

	ok := entries[0].ContextMap()
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "store", ok["component"])
	assert.Equal(t, "insert", ok["op"])
	assert.Equal(t, "success", ok["status"])
	assert.Equal(t, int64(4), ok["id"])
	assert.Equal(t, int64(len("secret text")), ok["text_len"])
	assert.NotEmpty(t, ok[OpIDField])
	for _, v := range ok {
		assert.NotEqual(t, "secret text", v)
	}

	failed := entries[1].ContextMap()
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, "error", failed["status"])
	assert.NotContains(t, failed, "id")
	assert.Contains(t, failed["error"], "disk full")

	list := entries[2].ContextMap()
	assert.Equal(t, "fixed-op", list[OpIDField])
	assert.Equal(t, int64(2), list["count"])

	base.AssertExpectations(t)
}

func TestLogging_PassesOpIDDown(t *testing.T) {
	base := new(mocks.MockRecordStore)
	store := Logging(zap.NewNop())(base)

	base.On("Initialize", mock.MatchedBy(func(ctx context.Context) bool {
		return OpIDFromContext(ctx) != ""
	})).Return(nil).Once()

	assert.NoError(t, store.Initialize(context.Background()))
	base.AssertExpectations(t)
}

func TestPrometheusMiddleware(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewPrometheusMiddleware(reg)
	require.NoError(t, err)

	base := new(mocks.MockRecordStore)
	store := m.Middleware()(base)
	ctx := context.Background()

	base.On("Initialize", mock.Anything).Return(nil)
	base.On("Insert", mock.Anything, "a").Return(model.RecordID(1), nil)
	base.On("Insert", mock.Anything, "b").Return(model.RecordID(0), errDisk)
	base.On("ListAll", mock.Anything).Return([]model.Record{}, nil)
	base.On("Close").Return(nil)

	require.NoError(t, store.Initialize(ctx))
	_, _ = store.Insert(ctx, "a")
	_, _ = store.Insert(ctx, "a")
	_, _ = store.Insert(ctx, "b")
	_, _ = store.ListAll(ctx)
	require.NoError(t, store.Close())

	assert.Equal(t, 1.0, testutil.ToFloat64(m.opCount.WithLabelValues("initialize", "success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.opCount.WithLabelValues("insert", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.opCount.WithLabelValues("insert", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.opCount.WithLabelValues("list", "success")))
	assert.Equal(t, 3, testutil.CollectAndCount(m.opDuration))
}

func TestNewPrometheusMiddleware_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewPrometheusMiddleware(reg)
	require.NoError(t, err)

	_, err = NewPrometheusMiddleware(reg)
	assert.Error(t, err)
}

func TestTracing(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	base := new(mocks.MockRecordStore)
	store := Tracing(tp)(base)
	ctx := context.Background()

	base.On("Insert", mock.Anything, "a").Return(model.RecordID(9), nil)
	base.On("Insert", mock.Anything, "b").Return(model.RecordID(0), errDisk)
	base.On("ListAll", mock.Anything).Return([]model.Record{{ID: 9}}, nil)

	_, _ = store.Insert(ctx, "a")
	_, _ = store.Insert(ctx, "b")
	_, _ = store.ListAll(ctx)

	spans := sr.Ended()
	require.Len(t, spans, 3)

	assert.Equal(t, "store.insert", spans[0].Name())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
	assert.Contains(t, spans[0].Attributes(), attribute.Int64("record.id", 9))

	assert.Equal(t, codes.Error, spans[1].Status().Code)
	require.Len(t, spans[1].Events(), 1)
	assert.Equal(t, "exception", spans[1].Events()[0].Name)

	assert.Equal(t, "store.list", spans[2].Name())
	assert.Contains(t, spans[2].Attributes(), attribute.Int("record.count", 1))
}
