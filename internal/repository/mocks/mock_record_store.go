package mocks

import (
	"context"

	"quarklog/internal/model"
	"github.com/stretchr/testify/mock"
)

type MockRecordStore struct {
	mock.Mock
}

func (m *MockRecordStore) Initialize(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockRecordStore) Insert(ctx context.Context, text string) (model.RecordID, error) {
	args := m.Called(ctx, text)
	return args.Get(0).(model.RecordID), args.Error(1)
}

func (m *MockRecordStore) ListAll(ctx context.Context) ([]model.Record, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Record), args.Error(1)
}

func (m *MockRecordStore) Close() error {
	args := m.Called()
	return args.Error(0)
}
