// Copyright The Classloop Authors.
// SPDX-License-Identifier: MIT

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/classloop/community-video-service/internal/domain"
)

// MockNotificationService implements NotificationService for testing
type MockNotificationService struct {
	mock.Mock
}

func (m *MockNotificationService) SendBookingConfirmation(ctx context.Context, notice domain.BookingNotice) error {
	args := m.Called(ctx, notice)
	return args.Error(0)
}

func (m *MockNotificationService) SendTeacherBookingNotice(ctx context.Context, notice domain.BookingNotice) error {
	args := m.Called(ctx, notice)
	return args.Error(0)
}

func (m *MockNotificationService) SendMembershipWelcome(ctx context.Context, welcome domain.MembershipWelcome) error {
	args := m.Called(ctx, welcome)
	return args.Error(0)
}

func (m *MockNotificationService) SendGrandOpening(ctx context.Context, welcome domain.MembershipWelcome) error {
	args := m.Called(ctx, welcome)
	return args.Error(0)
}

// MockMessageBuilder implements MessageBuilder for testing
type MockMessageBuilder struct {
	mock.Mock
}

func (m *MockMessageBuilder) PublishBookingCreated(ctx context.Context, payload any) error {
	args := m.Called(ctx, payload)
	return args.Error(0)
}

func (m *MockMessageBuilder) PublishRoomCreated(ctx context.Context, payload any) error {
	args := m.Called(ctx, payload)
	return args.Error(0)
}

func (m *MockMessageBuilder) PublishMembershipUpdated(ctx context.Context, payload any) error {
	args := m.Called(ctx, payload)
	return args.Error(0)
}

// MockPaymentProcessor implements PaymentProcessor for testing
type MockPaymentProcessor struct {
	mock.Mock
}

func (m *MockPaymentProcessor) UpdateSubscriptionFee(ctx context.Context, subscriptionID string, feePercent float64) error {
	args := m.Called(ctx, subscriptionID, feePercent)
	return args.Error(0)
}

// MockEventCache implements EventCache for testing
type MockEventCache struct {
	mock.Mock
}

func (m *MockEventCache) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	args := m.Called(ctx, eventID)
	return args.Bool(0), args.Error(1)
}

func (m *MockEventCache) MarkProcessed(ctx context.Context, eventID string) error {
	args := m.Called(ctx, eventID)
	return args.Error(0)
}
