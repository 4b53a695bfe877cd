// Copyright The Classloop Authors.
// SPDX-License-Identifier: MIT

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/classloop/community-video-service/internal/domain"
)

// MockRoomProvider implements RoomProvider for testing
type MockRoomProvider struct {
	mock.Mock
}

func (m *MockRoomProvider) CreateRoom(ctx context.Context, req domain.CreateRoomRequest) (*domain.Room, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Room), args.Error(1)
}

func (m *MockRoomProvider) GetRoom(ctx context.Context, name string) (*domain.Room, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Room), args.Error(1)
}

func (m *MockRoomProvider) CreateToken(ctx context.Context, req domain.CreateTokenRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockRoomProvider) DeleteRoom(ctx context.Context, name string) error {
	args := m.Called(ctx, name)
	return args.Error(0)
}
