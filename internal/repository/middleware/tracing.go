package middleware

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"quarklog/internal/model"
	"quarklog/internal/repository"
)

const tracerName = "quarklog/internal/repository"

// Tracing starts one span per store operation, named store.<op>.
func Tracing(tp trace.TracerProvider) Middleware {
	tracer := tp.Tracer(tracerName)
	return func(next repository.RecordStore) repository.RecordStore {
		return &tracingStore{next: next, tracer: tracer}
	}
}

type tracingStore struct {
	next   repository.RecordStore
	tracer trace.Tracer
}

func (s *tracingStore) start(ctx context.Context, op repository.Op) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "store."+string(op),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("store.op", string(op))),
	)
}

func end(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (s *tracingStore) Initialize(ctx context.Context) error {
	ctx, span := s.start(ctx, repository.OpInitialize)
	err := s.next.Initialize(ctx)
	end(span, err)
	return err
}

func (s *tracingStore) Insert(ctx context.Context, text string) (model.RecordID, error) {
	ctx, span := s.start(ctx, repository.OpInsert)
	span.SetAttributes(attribute.Int("record.text_len", len(text)))
	id, err := s.next.Insert(ctx, text)
	if err == nil {
		span.SetAttributes(attribute.Int64("record.id", int64(id)))
	}
	end(span, err)
	return id, err
}

func (s *tracingStore) ListAll(ctx context.Context) ([]model.Record, error) {
	ctx, span := s.start(ctx, repository.OpList)
	items, err := s.next.ListAll(ctx)
	span.SetAttributes(attribute.Int("record.count", len(items)))
	end(span, err)
	return items, err
}

func (s *tracingStore) Close() error {
	return s.next.Close()
}
