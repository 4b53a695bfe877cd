// Copyright The Classloop Authors.
// SPDX-License-Identifier: MIT

package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/classloop/community-video-service/internal/domain/models"
)

// MockMembershipRepository implements MembershipRepository for testing
type MockMembershipRepository struct {
	mock.Mock
}

func (m *MockMembershipRepository) ActivateMembership(ctx context.Context, communityID, memberID, subscriptionID string) (bool, error) {
	args := m.Called(ctx, communityID, memberID, subscriptionID)
	return args.Bool(0), args.Error(1)
}

func (m *MockMembershipRepository) DeactivateMembership(ctx context.Context, communityID, memberID string) (bool, error) {
	args := m.Called(ctx, communityID, memberID)
	return args.Bool(0), args.Error(1)
}

func (m *MockMembershipRepository) UpdateSubscriptionStatus(ctx context.Context, subscriptionID, status string, periodEnd *time.Time) error {
	args := m.Called(ctx, subscriptionID, status, periodEnd)
	return args.Error(0)
}

func (m *MockMembershipRepository) GetMembershipBySubscription(ctx context.Context, subscriptionID string) (*models.Membership, error) {
	args := m.Called(ctx, subscriptionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Membership), args.Error(1)
}

func (m *MockMembershipRepository) GetCommunityBilling(ctx context.Context, communityID string) (*models.CommunityBilling, error) {
	args := m.Called(ctx, communityID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CommunityBilling), args.Error(1)
}

func (m *MockMembershipRepository) UpdatePlatformFee(ctx context.Context, communityID string, feePercent float64) error {
	args := m.Called(ctx, communityID, feePercent)
	return args.Error(0)
}

func (m *MockMembershipRepository) AdjustActiveMemberCount(ctx context.Context, communityID string, delta int) error {
	args := m.Called(ctx, communityID, delta)
	return args.Error(0)
}

func (m *MockMembershipRepository) ActivateCommunity(ctx context.Context, communityID string) error {
	args := m.Called(ctx, communityID)
	return args.Error(0)
}
