package middleware

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"quarklog/internal/model"
	"quarklog/internal/repository"
)

// PrometheusMiddleware holds the store metrics.
type PrometheusMiddleware struct {
	opCount    *prometheus.CounterVec
	opDuration *prometheus.HistogramVec
}

// NewPrometheusMiddleware creates the store metrics and registers them on reg.
func NewPrometheusMiddleware(reg prometheus.Registerer) (*PrometheusMiddleware, error) {
	m := &PrometheusMiddleware{
		opCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quarklog_store_operations_total",
				Help: "Total number of record store operations.",
			},
			[]string{"op", "status"},
		),
		opDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quarklog_store_operation_duration_seconds",
				Help:    "Duration of record store operations.",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
			},
			[]string{"op"},
		),
	}

	for _, c := range []prometheus.Collector{m.opCount, m.opDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// Middleware returns the store decorator recording into m.
func (m *PrometheusMiddleware) Middleware() Middleware {
	return func(next repository.RecordStore) repository.RecordStore {
		return &metricsStore{next: next, m: m}
	}
}

func (m *PrometheusMiddleware) observe(op repository.Op, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.opCount.WithLabelValues(string(op), status).Inc()
	m.opDuration.WithLabelValues(string(op)).Observe(time.Since(start).Seconds())
}

type metricsStore struct {
	next repository.RecordStore
	m    *PrometheusMiddleware
}

func (s *metricsStore) Initialize(ctx context.Context) error {
	start := time.Now()
	err := s.next.Initialize(ctx)
	s.m.observe(repository.OpInitialize, start, err)
	return err
}

func (s *metricsStore) Insert(ctx context.Context, text string) (model.RecordID, error) {
	start := time.Now()
	id, err := s.next.Insert(ctx, text)
	s.m.observe(repository.OpInsert, start, err)
	return id, err
}

func (s *metricsStore) ListAll(ctx context.Context) ([]model.Record, error) {
	start := time.Now()
	items, err := s.next.ListAll(ctx)
	s.m.observe(repository.OpList, start, err)
	return items, err
}

func (s *metricsStore) Close() error {
	return s.next.Close()
}
