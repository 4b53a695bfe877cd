// Copyright The Classloop Authors.
// SPDX-License-Identifier: MIT

package models

import (
	"encoding/json"
	"sort"
	"strconv"
	"time"
)

// Payment event types handled by the webhook reactor.
const (
	EventPaymentIntentSucceeded  = "payment_intent.succeeded"
	EventInvoicePaymentSucceeded = "invoice.payment_succeeded"
	EventInvoicePaymentFailed    = "invoice.payment_failed"
	EventSubscriptionUpdated     = "customer.subscription.updated"
	EventSubscriptionDeleted     = "customer.subscription.deleted"
)

// Purchase type metadata value that marks a payment intent as a lesson booking.
const PurchaseTypeLessonBooking = "lesson_booking"

// PaymentEvent is the envelope of an inbound payment webhook event.
type PaymentEvent struct {
	ID      string           `json:"id"`
	Type    string           `json:"type"`
	Created int64            `json:"created"`
	Account string           `json:"account,omitempty"`
	Data    PaymentEventData `json:"data"`
}

// PaymentEventData carries the event's object payload, decoded lazily by the
// handler for the specific event type.
type PaymentEventData struct {
	Object json.RawMessage `json:"object"`
}

// PaymentIntent is the subset of the processor's payment intent object that
// the reactor consumes.
type PaymentIntent struct {
	ID       string            `json:"id"`
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Invoice  string            `json:"invoice,omitempty"`
	Metadata map[string]string `json:"metadata"`
}

// Invoice is the subset of the processor's invoice object that the reactor
// consumes. Subscription metadata rides along under subscription_details.
type Invoice struct {
	ID                  string              `json:"id"`
	Subscription        string              `json:"subscription"`
	CustomerEmail       string              `json:"customer_email,omitempty"`
	SubscriptionDetails SubscriptionDetails `json:"subscription_details"`
}

// SubscriptionDetails carries the subscription metadata attached to an invoice.
type SubscriptionDetails struct {
	Metadata map[string]string `json:"metadata"`
}

// Subscription is the subset of the processor's subscription object that the
// reactor consumes.
type Subscription struct {
	ID                string            `json:"id"`
	Status            string            `json:"status"`
	CancelAtPeriodEnd bool              `json:"cancel_at_period_end"`
	CurrentPeriodEnd  int64             `json:"current_period_end"`
	Metadata          map[string]string `json:"metadata"`
	ApplicationFeePct float64           `json:"application_fee_percent,omitempty"`
}

// EffectiveStatus derives the subscription status persisted locally. An
// active subscription flagged to cancel at period end becomes "canceling",
// a value not present in the processor's own vocabulary.
func (s *Subscription) EffectiveStatus() string {
	if s.Status == SubscriptionStatusActive && s.CancelAtPeriodEnd {
		return SubscriptionStatusCanceling
	}
	return s.Status
}

// PeriodEnd converts the subscription's current period end to a time value,
// or nil when the processor did not supply one.
func (s *Subscription) PeriodEnd() *time.Time {
	if s.CurrentPeriodEnd == 0 {
		return nil
	}
	t := time.Unix(s.CurrentPeriodEnd, 0).UTC()
	return &t
}

// BookingMetadata is the validated form of the flat string map the checkout
// flow attaches to a lesson-booking payment intent.
type BookingMetadata struct {
	LessonID        string
	LessonTitle     string
	CommunityID     string
	TeacherID       string
	TeacherEmail    string
	StudentID       string
	StudentEmail    string
	DurationMinutes int
	LocationMode    string
	// ScheduledAt is nil for "join anytime" bookings.
	ScheduledAt        *time.Time
	MembershipDiscount bool
}

// bookingMetadataRequired enumerates every metadata field a lesson-booking
// payment must carry. Validation reports all missing names at once so a
// single checkout fix covers them.
var bookingMetadataRequired = []string{
	"lesson_id",
	"lesson_title",
	"community_id",
	"teacher_id",
	"teacher_email",
	"student_id",
	"student_email",
	"duration_minutes",
}

// ParseBookingMetadata validates and converts payment-intent metadata into a
// typed BookingMetadata. It returns a MissingMetadataError listing every
// absent required field. Optional fields (scheduled_at, location_mode,
// membership_discount) fall back to sensible defaults.
func ParseBookingMetadata(metadata map[string]string) (*BookingMetadata, []string) {
	var missing []string
	for _, field := range bookingMetadataRequired {
		if metadata[field] == "" {
			missing = append(missing, field)
		}
	}

	duration := 0
	if raw := metadata["duration_minutes"]; raw != "" {
		d, err := strconv.Atoi(raw)
		if err != nil || d <= 0 {
			missing = append(missing, "duration_minutes")
		} else {
			duration = d
		}
	}

	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, missing
	}

	parsed := &BookingMetadata{
		LessonID:           metadata["lesson_id"],
		LessonTitle:        metadata["lesson_title"],
		CommunityID:        metadata["community_id"],
		TeacherID:          metadata["teacher_id"],
		TeacherEmail:       metadata["teacher_email"],
		StudentID:          metadata["student_id"],
		StudentEmail:       metadata["student_email"],
		DurationMinutes:    duration,
		LocationMode:       metadata["location_mode"],
		MembershipDiscount: metadata["membership_discount"] == "true",
	}
	if parsed.LocationMode == "" {
		parsed.LocationMode = LocationModeVideo
	}
	if raw := metadata["scheduled_at"]; raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			utc := t.UTC()
			parsed.ScheduledAt = &utc
		}
	}

	return parsed, nil
}

// SubscriptionMetadata resolves the member and community a subscription event
// belongs to. Both fields are required for any membership transition.
type SubscriptionMetadata struct {
	MemberID    string
	CommunityID string
}

// ParseSubscriptionMetadata extracts the member and community identities from
// subscription metadata, reporting the missing field names when incomplete.
func ParseSubscriptionMetadata(metadata map[string]string) (*SubscriptionMetadata, []string) {
	var missing []string
	if metadata["member_id"] == "" {
		missing = append(missing, "member_id")
	}
	if metadata["community_id"] == "" {
		missing = append(missing, "community_id")
	}
	if len(missing) > 0 {
		return nil, missing
	}
	return &SubscriptionMetadata{
		MemberID:    metadata["member_id"],
		CommunityID: metadata["community_id"],
	}, nil
}
