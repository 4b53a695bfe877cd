// Copyright The Classloop Authors.
// SPDX-License-Identifier: MIT

package domain

import (
	"context"
	"time"

	"github.com/classloop/community-video-service/internal/domain/models"
)

// BookingRepository defines storage operations for lesson bookings.
// Implementations must use parameter binding for every query.
type BookingRepository interface {
	// CreateBooking inserts a booking row created from payment metadata.
	// Insertion is idempotent on the payment intent reference; the created
	// flag reports whether a new row was actually inserted, so a redelivered
	// payment can skip the side effects tied to first creation.
	CreateBooking(ctx context.Context, booking *models.Booking) (created bool, err error)

	// GetBookingContext returns the booking joined with its lesson and
	// community fields, or a NotFound error.
	GetBookingContext(ctx context.Context, bookingID string) (*models.BookingContext, error)

	// UpdateBookingRoom applies a partial update of the booking's room
	// columns. Nil fields are untouched; the repository fills updated_at.
	UpdateBookingRoom(ctx context.Context, bookingID string, fields models.RoomFields) error

	// ClaimBookingRoom sets the room name and its expiration only when no
	// room name is currently stored, reporting whether the claim won. This
	// closes the window between the idempotency pre-check and the room-field
	// write. Recording the expiration with the claim lets the expired-room
	// sweep retire claims that were never completed or released.
	ClaimBookingRoom(ctx context.Context, bookingID, roomName string, expiresAt time.Time) (bool, error)

	// ClearBookingRoom nulls out all room and token columns.
	ClearBookingRoom(ctx context.Context, bookingID string) error

	// RecordSessionJoin sets the party's joined-at timestamp and, in the
	// same statement, sets session_started_at if it is not already set.
	RecordSessionJoin(ctx context.Context, bookingID string, party models.SessionParty, joinedAt time.Time) error

	// RecordSessionEnd sets session_ended_at.
	RecordSessionEnd(ctx context.Context, bookingID string, endedAt time.Time) error

	// FindExpiredRooms returns bookings whose room expiration is in the
	// past and whose room name is still populated.
	FindExpiredRooms(ctx context.Context) ([]models.ExpiredRoom, error)
}

// LiveClassRepository defines storage operations for scheduled live classes.
type LiveClassRepository interface {
	GetLiveClassContext(ctx context.Context, classID string) (*models.LiveClassContext, error)
	UpdateLiveClassRoom(ctx context.Context, classID string, fields models.RoomFields) error
	ClearLiveClassRoom(ctx context.Context, classID string) error
	FindExpiredRooms(ctx context.Context) ([]models.ExpiredRoom, error)
}

// MembershipRepository defines storage operations for community memberships
// and the community billing fields the webhook reactor mutates.
type MembershipRepository interface {
	// ActivateMembership marks the membership active and records the
	// subscription reference. It reports whether the membership was newly
	// activated so the caller can increment the community's active-member
	// counter exactly once per activation.
	ActivateMembership(ctx context.Context, communityID, memberID, subscriptionID string) (newlyActivated bool, err error)

	// DeactivateMembership marks the membership inactive, reporting whether
	// it was previously active.
	DeactivateMembership(ctx context.Context, communityID, memberID string) (wasActive bool, err error)

	// UpdateSubscriptionStatus persists the derived subscription status and
	// current period end for the membership owning the subscription.
	UpdateSubscriptionStatus(ctx context.Context, subscriptionID, status string, periodEnd *time.Time) error

	// GetMembershipBySubscription resolves a membership from its
	// subscription reference.
	GetMembershipBySubscription(ctx context.Context, subscriptionID string) (*models.Membership, error)

	// GetCommunityBilling returns the community's billing view.
	GetCommunityBilling(ctx context.Context, communityID string) (*models.CommunityBilling, error)

	// UpdatePlatformFee persists a recomputed platform fee percentage.
	UpdatePlatformFee(ctx context.Context, communityID string, feePercent float64) error

	// AdjustActiveMemberCount increments or decrements the community's
	// active-member counter.
	AdjustActiveMemberCount(ctx context.Context, communityID string, delta int) error

	// ActivateCommunity transitions a pre-registration community to active.
	ActivateCommunity(ctx context.Context, communityID string) error
}
