package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"quarklog/internal/model"
	"quarklog/internal/repository"
)

// Logging logs every store operation as one structured line.
// Fields: op_id, op, status, duration_ms, plus id / count / text_len depending on the
// operation. Record text is never logged.
func Logging(logger *zap.Logger) Middleware {
	log := logger.With(zap.String("component", "store"))
	return func(next repository.RecordStore) repository.RecordStore {
		return &loggingStore{next: next, log: log}
	}
}

type loggingStore struct {
	next repository.RecordStore
	log  *zap.Logger
}

func (s *loggingStore) write(ctx context.Context, op repository.Op, opID string, start time.Time, err error, fields ...zap.Field) {
	fields = append(fields,
		zap.String(OpIDField, opID),
		zap.String("op", string(op)),
		zap.Float64("duration_ms", float64(time.Since(start).Microseconds())/1000),
	)
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		fields = append(fields, zap.String("trace_id", sc.TraceID().String()))
	}
	if err != nil {
		s.log.Error("store_op", append(fields, zap.String("status", "error"), zap.Error(err))...)
		return
	}
	s.log.Info("store_op", append(fields, zap.String("status", "success"))...)
}

func (s *loggingStore) Initialize(ctx context.Context) error {
	start := time.Now()
	ctx, opID := ensureOpID(ctx)
	err := s.next.Initialize(ctx)
	s.write(ctx, repository.OpInitialize, opID, start, err)
	return err
}

func (s *loggingStore) Insert(ctx context.Context, text string) (model.RecordID, error) {
	start := time.Now()
	ctx, opID := ensureOpID(ctx)
	id, err := s.next.Insert(ctx, text)
	fields := []zap.Field{zap.Int("text_len", len(text))}
	if err == nil {
		fields = append(fields, zap.Int64("id", int64(id)))
	}
	s.write(ctx, repository.OpInsert, opID, start, err, fields...)
	return id, err
}

func (s *loggingStore) ListAll(ctx context.Context) ([]model.Record, error) {
	start := time.Now()
	ctx, opID := ensureOpID(ctx)
	items, err := s.next.ListAll(ctx)
	s.write(ctx, repository.OpList, opID, start, err, zap.Int("count", len(items)))
	return items, err
}

func (s *loggingStore) Close() error {
	start := time.Now()
	ctx, opID := ensureOpID(context.Background())
	err := s.next.Close()
	s.write(ctx, repository.OpClose, opID, start, err)
	return err
}
