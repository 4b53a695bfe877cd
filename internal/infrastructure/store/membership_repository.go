// Copyright The Classloop Authors.
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/classloop/community-video-service/internal/domain"
	"github.com/classloop/community-video-service/internal/domain/models"
)

// MembershipStore implements domain.MembershipRepository on PostgreSQL.
type MembershipStore struct {
	pool *pgxpool.Pool
}

// Ensure that MembershipStore implements domain.MembershipRepository
var _ domain.MembershipRepository = (*MembershipStore)(nil)

// NewMembershipStore creates a new membership repository.
func NewMembershipStore(pool *pgxpool.Pool) *MembershipStore {
	return &MembershipStore{pool: pool}
}

func (s *MembershipStore) ActivateMembership(ctx context.Context, communityID, memberID, subscriptionID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	// The WHERE clause makes activation report true only on the
	// inactive-to-active edge, so the member counter increments exactly
	// once per activation even under webhook redelivery. Activations that
	// arrive without a subscription reference (payment_intent.succeeded
	// for a subscription invoice) must not blank out a stored one.
	tag, err := s.pool.Exec(ctx, `
INSERT INTO memberships (community_id, member_id, status, subscription_id, subscription_status)
VALUES ($1, $2, 'active', NULLIF($3, ''), 'active')
ON CONFLICT (community_id, member_id) DO UPDATE SET
  status = 'active',
  subscription_id = COALESCE(NULLIF(EXCLUDED.subscription_id, ''), memberships.subscription_id),
  subscription_status = 'active',
  updated_at = NOW()
WHERE memberships.status <> 'active'
`, communityID, memberID, subscriptionID)
	if err != nil {
		return false, domain.NewInternalError("failed to activate membership", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *MembershipStore) DeactivateMembership(ctx context.Context, communityID, memberID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tag, err := s.pool.Exec(ctx, `
UPDATE memberships SET status = 'inactive', updated_at = NOW()
WHERE community_id = $1 AND member_id = $2 AND status = 'active'
`, communityID, memberID)
	if err != nil {
		return false, domain.NewInternalError("failed to deactivate membership", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *MembershipStore) UpdateSubscriptionStatus(ctx context.Context, subscriptionID, status string, periodEnd *time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := s.pool.Exec(ctx, `
UPDATE memberships SET
  subscription_status = $2,
  current_period_end  = COALESCE($3, current_period_end),
  updated_at          = NOW()
WHERE subscription_id = $1
`, subscriptionID, status, periodEnd)
	if err != nil {
		return domain.NewInternalError("failed to update subscription status", err)
	}
	return nil
}

func (s *MembershipStore) GetMembershipBySubscription(ctx context.Context, subscriptionID string) (*models.Membership, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var m models.Membership
	err := s.pool.QueryRow(ctx, `
SELECT community_id, member_id, status, subscription_id, subscription_status,
       current_period_end, created_at, updated_at
FROM memberships
WHERE subscription_id = $1
`, subscriptionID).Scan(
		&m.CommunityID, &m.MemberID, &m.Status, &m.SubscriptionID, &m.SubscriptionStatus,
		&m.CurrentPeriodEnd, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("membership not found for subscription", err)
		}
		return nil, domain.NewInternalError("failed to get membership", err)
	}
	return &m, nil
}

func (s *MembershipStore) GetCommunityBilling(ctx context.Context, communityID string) (*models.CommunityBilling, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var c models.CommunityBilling
	err := s.pool.QueryRow(ctx, `
SELECT id, slug, name, creator_id, status, opens_at,
       active_member_count, platform_fee_percent, created_at
FROM communities
WHERE id = $1
`, communityID).Scan(
		&c.ID, &c.Slug, &c.Name, &c.CreatorID, &c.Status, &c.OpensAt,
		&c.ActiveMemberCount, &c.PlatformFeePercent, &c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("community not found", err)
		}
		return nil, domain.NewInternalError("failed to get community billing", err)
	}
	return &c, nil
}

func (s *MembershipStore) UpdatePlatformFee(ctx context.Context, communityID string, feePercent float64) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := s.pool.Exec(ctx, `
UPDATE communities SET platform_fee_percent = $2, updated_at = NOW()
WHERE id = $1
`, communityID, feePercent)
	if err != nil {
		return domain.NewInternalError("failed to update platform fee", err)
	}
	return nil
}

func (s *MembershipStore) AdjustActiveMemberCount(ctx context.Context, communityID string, delta int) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := s.pool.Exec(ctx, `
UPDATE communities SET
  active_member_count = GREATEST(active_member_count + $2, 0),
  updated_at = NOW()
WHERE id = $1
`, communityID, delta)
	if err != nil {
		return domain.NewInternalError("failed to adjust active member count", err)
	}
	return nil
}

func (s *MembershipStore) ActivateCommunity(ctx context.Context, communityID string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := s.pool.Exec(ctx, `
UPDATE communities SET status = 'active', updated_at = NOW()
WHERE id = $1 AND status = 'pre_registration'
`, communityID)
	if err != nil {
		return domain.NewInternalError("failed to activate community", err)
	}
	return nil
}
