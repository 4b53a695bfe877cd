// Copyright The Classloop Authors.
// SPDX-License-Identifier: MIT

package models

import (
	"time"
)

// Membership status values.
const (
	MembershipStatusActive   = "active"
	MembershipStatusInactive = "inactive"
)

// Subscription status values. Most mirror the payment processor's vocabulary;
// SubscriptionStatusCanceling is derived locally for subscriptions that are
// active but flagged to cancel at period end, so the UI can distinguish
// "will lapse" from "active".
const (
	SubscriptionStatusActive    = "active"
	SubscriptionStatusCanceling = "canceling"
	SubscriptionStatusPastDue   = "past_due"
	SubscriptionStatusCanceled  = "canceled"
	SubscriptionStatusUnpaid    = "unpaid"
)

// Community status values.
const (
	CommunityStatusPreRegistration = "pre_registration"
	CommunityStatusActive          = "active"
)

// Membership is a member's paid subscription state within a community.
type Membership struct {
	CommunityID string `json:"community_id"`
	MemberID    string `json:"member_id"`

	Status             string     `json:"status"`
	SubscriptionID     string     `json:"subscription_id"`
	SubscriptionStatus string     `json:"subscription_status"`
	CurrentPeriodEnd   *time.Time `json:"current_period_end,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CommunityBilling is the billing-relevant view of a community used by the
// webhook reactor to compute fee tiers and activation transitions.
type CommunityBilling struct {
	ID        string `json:"id"`
	Slug      string `json:"slug"`
	Name      string `json:"name"`
	CreatorID string `json:"creator_id"`
	Status    string `json:"status"`

	// OpensAt is the community's announced opening date; only meaningful
	// while Status is pre_registration.
	OpensAt *time.Time `json:"opens_at,omitempty"`

	ActiveMemberCount  int     `json:"active_member_count"`
	PlatformFeePercent float64 `json:"platform_fee_percent"`

	CreatedAt time.Time `json:"created_at"`
}
