package mocks

import (
	"context"

	"snapapi/internal/model"
	"github.com/stretchr/testify/mock"
)

type MockImageService struct {
	mock.Mock
}

func (m *MockImageService) List(ctx context.Context) ([]model.Summary, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Summary), args.Error(1)
}

func (m *MockImageService) Get(ctx context.Context, id string) (*model.CaptureRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CaptureRecord), args.Error(1)
}

func (m *MockImageService) Data(ctx context.Context, id string) (*model.Summary, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Summary), args.Error(1)
}

func (m *MockImageService) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
