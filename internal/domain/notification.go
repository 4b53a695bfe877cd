// Copyright The Classloop Authors.
// SPDX-License-Identifier: MIT

package domain

import (
	"context"
	"time"
)

// NotificationService defines the interface for sending transactional emails.
// Every call is best-effort from the caller's point of view: failures are
// logged, never allowed to roll back the state transition that triggered them.
type NotificationService interface {
	SendBookingConfirmation(ctx context.Context, notice BookingNotice) error
	SendTeacherBookingNotice(ctx context.Context, notice BookingNotice) error
	SendMembershipWelcome(ctx context.Context, welcome MembershipWelcome) error
	SendGrandOpening(ctx context.Context, welcome MembershipWelcome) error
}

// BookingNotice contains the data needed to notify either party of a new
// paid lesson booking.
type BookingNotice struct {
	RecipientEmail string
	LessonTitle    string
	CommunityName  string
	TeacherEmail   string
	StudentEmail   string
	// ScheduledAt is nil for "join anytime" bookings.
	ScheduledAt     *time.Time
	DurationMinutes int
	PricePaidCents  int64
	Currency        string
	RoomURL         string
}

// MembershipWelcome contains the data needed to welcome a newly active member.
// The grand-opening variant is selected when the payment also flipped the
// community out of pre-registration.
type MembershipWelcome struct {
	RecipientEmail string
	CommunityName  string
	CommunitySlug  string
}
