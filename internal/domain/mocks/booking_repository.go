// Copyright The Classloop Authors.
// SPDX-License-Identifier: MIT

package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/classloop/community-video-service/internal/domain/models"
)

// MockBookingRepository implements BookingRepository for testing
type MockBookingRepository struct {
	mock.Mock
}

func (m *MockBookingRepository) CreateBooking(ctx context.Context, booking *models.Booking) (bool, error) {
	args := m.Called(ctx, booking)
	return args.Bool(0), args.Error(1)
}

func (m *MockBookingRepository) GetBookingContext(ctx context.Context, bookingID string) (*models.BookingContext, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BookingContext), args.Error(1)
}

func (m *MockBookingRepository) UpdateBookingRoom(ctx context.Context, bookingID string, fields models.RoomFields) error {
	args := m.Called(ctx, bookingID, fields)
	return args.Error(0)
}

func (m *MockBookingRepository) ClaimBookingRoom(ctx context.Context, bookingID, roomName string, expiresAt time.Time) (bool, error) {
	args := m.Called(ctx, bookingID, roomName, expiresAt)
	return args.Bool(0), args.Error(1)
}

func (m *MockBookingRepository) ClearBookingRoom(ctx context.Context, bookingID string) error {
	args := m.Called(ctx, bookingID)
	return args.Error(0)
}

func (m *MockBookingRepository) RecordSessionJoin(ctx context.Context, bookingID string, party models.SessionParty, joinedAt time.Time) error {
	args := m.Called(ctx, bookingID, party, joinedAt)
	return args.Error(0)
}

func (m *MockBookingRepository) RecordSessionEnd(ctx context.Context, bookingID string, endedAt time.Time) error {
	args := m.Called(ctx, bookingID, endedAt)
	return args.Error(0)
}

func (m *MockBookingRepository) FindExpiredRooms(ctx context.Context) ([]models.ExpiredRoom, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ExpiredRoom), args.Error(1)
}
