package mocks

import (
	"context"

	"quarklog/internal/model"
	"github.com/stretchr/testify/mock"
)

type MockEntryService struct {
	mock.Mock
}

func (m *MockEntryService) Initialize(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockEntryService) Save(ctx context.Context, text string) (model.RecordID, error) {
	args := m.Called(ctx, text)
	return args.Get(0).(model.RecordID), args.Error(1)
}

func (m *MockEntryService) Entries(ctx context.Context) ([]model.Record, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Record), args.Error(1)
}
