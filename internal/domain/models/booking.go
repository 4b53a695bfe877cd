// Copyright The Classloop Authors.
// SPDX-License-Identifier: MIT

package models

import (
	"time"
)

// Payment status values for a booking, mirroring the payment processor's
// terminal states.
const (
	PaymentStatusPending   = "pending"
	PaymentStatusSucceeded = "succeeded"
	PaymentStatusFailed    = "failed"
	PaymentStatusRefunded  = "refunded"
)

// Lesson location modes. A room is only provisioned for modes that include video.
const (
	LocationModeVideo    = "video"
	LocationModeInPerson = "in_person"
	LocationModeHybrid   = "hybrid"
)

// SessionParty identifies which side of a 1:1 booking is joining a session.
type SessionParty string

const (
	PartyTeacher SessionParty = "teacher"
	PartyStudent SessionParty = "student"
)

// Booking is a purchased 1:1 lesson session between a teacher and a student.
//
// The video-room fields are all nil until a room is created and are populated
// together in a single write. The cleanup sweep nulls them out again after the
// room expires; the row itself is retained for history.
type Booking struct {
	ID          string `json:"id"`
	LessonID    string `json:"lesson_id"`
	CommunityID string `json:"community_id"`
	StudentID   string `json:"student_id"`
	TeacherID   string `json:"teacher_id"`

	PaymentIntentID    string `json:"payment_intent_id"`
	PaymentStatus      string `json:"payment_status"`
	PricePaidCents     int64  `json:"price_paid_cents"`
	Currency           string `json:"currency"`
	MembershipDiscount bool   `json:"membership_discount"`

	// ScheduledAt is nil for "join anytime" bookings.
	ScheduledAt     *time.Time `json:"scheduled_at,omitempty"`
	DurationMinutes int        `json:"duration_minutes"`

	RoomName         *string    `json:"room_name,omitempty"`
	RoomURL          *string    `json:"room_url,omitempty"`
	RoomCreatedAt    *time.Time `json:"room_created_at,omitempty"`
	RoomExpiresAt    *time.Time `json:"room_expires_at,omitempty"`
	TeacherToken     *string    `json:"teacher_token,omitempty"`
	StudentToken     *string    `json:"student_token,omitempty"`
	TeacherJoinedAt  *time.Time `json:"teacher_joined_at,omitempty"`
	StudentJoinedAt  *time.Time `json:"student_joined_at,omitempty"`
	SessionStartedAt *time.Time `json:"session_started_at,omitempty"`
	SessionEndedAt   *time.Time `json:"session_ended_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasRoom reports whether the booking currently has an active room attached.
func (b *Booking) HasRoom() bool {
	return b.RoomName != nil && *b.RoomName != ""
}

// BookingContext is the joined view of a booking with the lesson and community
// fields that the orchestrator and webhook reactor need.
type BookingContext struct {
	Booking

	LessonTitle        string `json:"lesson_title"`
	LocationMode       string `json:"location_mode"`
	CommunitySlug      string `json:"community_slug"`
	CommunityCreatorID string `json:"community_creator_id"`
	TeacherEmail       string `json:"teacher_email"`
	StudentEmail       string `json:"student_email"`
}

// VideoApplicable reports whether the booking's lesson is held over video.
func (c *BookingContext) VideoApplicable() bool {
	return c.LocationMode == LocationModeVideo || c.LocationMode == LocationModeHybrid
}

// RoomFields is a partial update of a booking's or live class's video-room
// columns. Nil fields are left untouched; the repository fills updated_at.
type RoomFields struct {
	RoomName      *string
	RoomURL       *string
	RoomCreatedAt *time.Time
	RoomExpiresAt *time.Time
	TeacherToken  *string
	StudentToken  *string
}

// ExpiredRoom identifies a row whose room expiration has passed and whose
// room fields have not yet been cleaned up.
type ExpiredRoom struct {
	ID       string
	RoomName string
}
