// Copyright The Classloop Authors.
// SPDX-License-Identifier: MIT

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/classloop/community-video-service/internal/domain/models"
)

// MockLiveClassRepository implements LiveClassRepository for testing
type MockLiveClassRepository struct {
	mock.Mock
}

func (m *MockLiveClassRepository) GetLiveClassContext(ctx context.Context, classID string) (*models.LiveClassContext, error) {
	args := m.Called(ctx, classID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LiveClassContext), args.Error(1)
}

func (m *MockLiveClassRepository) UpdateLiveClassRoom(ctx context.Context, classID string, fields models.RoomFields) error {
	args := m.Called(ctx, classID, fields)
	return args.Error(0)
}

func (m *MockLiveClassRepository) ClearLiveClassRoom(ctx context.Context, classID string) error {
	args := m.Called(ctx, classID)
	return args.Error(0)
}

func (m *MockLiveClassRepository) FindExpiredRooms(ctx context.Context) ([]models.ExpiredRoom, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ExpiredRoom), args.Error(1)
}
