// Copyright The Classloop Authors.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/classloop/community-video-service/internal/domain"
	"github.com/classloop/community-video-service/internal/domain/models"
	"github.com/classloop/community-video-service/internal/logging"
)

// Platform fee tiers by active member count, applied after the promotional
// period from community creation ends.
const (
	promoPeriod     = 30 * 24 * time.Hour
	promoFeePercent = 0.0

	smallCommunityMembers = 50
	smallCommunityFee     = 8.0
	midCommunityMembers   = 100
	midCommunityFee       = 6.0
	largeCommunityFee     = 4.0
)

// asyncTaskTimeout bounds fire-and-forget side effects spawned by a webhook.
const asyncTaskTimeout = time.Minute

// PaymentWebhookService is the webhook-driven state machine reacting to
// payment lifecycle events: booking creation, membership transitions,
// subscription status mirroring, and platform fee tiering.
type PaymentWebhookService struct {
	BookingRepository    domain.BookingRepository
	MembershipRepository domain.MembershipRepository
	RoomService          *RoomService
	NotificationService  domain.NotificationService
	MessageBuilder       domain.MessageBuilder
	PaymentProcessor     domain.PaymentProcessor
	EventCache           domain.EventCache
	Verifiers            []domain.WebhookVerifier

	// now is overridable for tests.
	now func() time.Time
	// dispatch runs a non-critical side effect; the default detaches it onto
	// a goroutine, tests run it inline.
	dispatch func(ctx context.Context, task string, fn func(context.Context) error)
}

// NewPaymentWebhookService creates a new PaymentWebhookService.
func NewPaymentWebhookService(
	bookingRepository domain.BookingRepository,
	membershipRepository domain.MembershipRepository,
	roomService *RoomService,
	notificationService domain.NotificationService,
	messageBuilder domain.MessageBuilder,
	paymentProcessor domain.PaymentProcessor,
	eventCache domain.EventCache,
	verifiers []domain.WebhookVerifier,
) *PaymentWebhookService {
	s := &PaymentWebhookService{
		BookingRepository:    bookingRepository,
		MembershipRepository: membershipRepository,
		RoomService:          roomService,
		NotificationService:  notificationService,
		MessageBuilder:       messageBuilder,
		PaymentProcessor:     paymentProcessor,
		EventCache:           eventCache,
		Verifiers:            verifiers,
		now:                  time.Now,
	}
	s.dispatch = s.dispatchAsync
	return s
}

// ServiceReady checks if the service is ready to process requests.
func (s *PaymentWebhookService) ServiceReady() bool {
	return s.BookingRepository != nil &&
		s.MembershipRepository != nil &&
		s.RoomService != nil &&
		s.NotificationService != nil &&
		s.MessageBuilder != nil &&
		s.PaymentProcessor != nil &&
		s.EventCache != nil &&
		len(s.Verifiers) > 0
}

// VerifySignature authenticates a raw webhook payload. Events arrive signed
// by either the platform account or a connected account, and the correct
// secret is not known from the payload alone, so every configured verifier is
// tried in order and the first success wins.
func (s *PaymentWebhookService) VerifySignature(ctx context.Context, payload []byte, signatureHeader string) error {
	var lastErr error
	for _, verifier := range s.Verifiers {
		if err := verifier.Verify(payload, signatureHeader); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	slog.WarnContext(ctx, "webhook signature verification failed against all secrets", logging.ErrKey, lastErr)
	return domain.ErrInvalidSignature
}

// HandleEvent classifies a verified payment event and applies its state
// transition. Unknown event types are acknowledged without action. A non-nil
// return means the caller should respond non-2xx so the processor redelivers;
// every transition is idempotent, so redelivery is safe.
func (s *PaymentWebhookService) HandleEvent(ctx context.Context, event *models.PaymentEvent) error {
	if !s.ServiceReady() {
		slog.ErrorContext(ctx, "service not initialized", logging.PriorityCritical())
		return domain.NewUnavailableError("service not initialized")
	}

	ctx = logging.AppendCtx(ctx, slog.String("event_id", event.ID))
	ctx = logging.AppendCtx(ctx, slog.String("event_type", event.Type))

	if processed, err := s.EventCache.IsProcessed(ctx, event.ID); err == nil && processed {
		slog.InfoContext(ctx, "skipping already processed event")
		return nil
	}

	var err error
	switch event.Type {
	case models.EventPaymentIntentSucceeded:
		err = s.handlePaymentIntentSucceeded(ctx, event)
	case models.EventInvoicePaymentSucceeded:
		err = s.handleInvoicePaymentSucceeded(ctx, event)
	case models.EventInvoicePaymentFailed:
		err = s.handleInvoicePaymentFailed(ctx, event)
	case models.EventSubscriptionUpdated, models.EventSubscriptionDeleted:
		err = s.handleSubscriptionChange(ctx, event)
	default:
		slog.DebugContext(ctx, "ignoring unhandled event type")
		return nil
	}
	if err != nil {
		return err
	}

	// Best-effort: a cache outage only costs a redundant (idempotent) pass
	// on redelivery.
	_ = s.EventCache.MarkProcessed(ctx, event.ID)
	return nil
}

// handlePaymentIntentSucceeded creates a booking from lesson-booking payment
// metadata, or activates a membership for subscription-tied payments.
func (s *PaymentWebhookService) handlePaymentIntentSucceeded(ctx context.Context, event *models.PaymentEvent) error {
	var intent models.PaymentIntent
	if err := json.Unmarshal(event.Data.Object, &intent); err != nil {
		return domain.NewValidationError("invalid payment intent payload", err)
	}

	if intent.Metadata["purchase_type"] == models.PurchaseTypeLessonBooking {
		return s.createBookingFromPayment(ctx, &intent)
	}

	if subMeta, missing := models.ParseSubscriptionMetadata(intent.Metadata); missing == nil {
		return s.activateMembership(ctx, subMeta, "", "", false)
	}

	slog.DebugContext(ctx, "payment intent carries no handled purchase metadata", "payment_intent_id", intent.ID)
	return nil
}

// createBookingFromPayment validates the booking metadata, persists the
// booking, and fires the non-critical side effects: room creation,
// confirmation emails, and the booking-created event.
func (s *PaymentWebhookService) createBookingFromPayment(ctx context.Context, intent *models.PaymentIntent) error {
	meta, missing := models.ParseBookingMetadata(intent.Metadata)
	if missing != nil {
		slog.WarnContext(ctx, "rejecting booking payment with incomplete metadata",
			"payment_intent_id", intent.ID, "missing_fields", missing)
		return domain.NewValidationError("incomplete booking metadata", &domain.MissingMetadataError{Fields: missing})
	}

	booking := &models.Booking{
		ID:                 uuid.New().String(),
		LessonID:           meta.LessonID,
		CommunityID:        meta.CommunityID,
		StudentID:          meta.StudentID,
		TeacherID:          meta.TeacherID,
		PaymentIntentID:    intent.ID,
		PaymentStatus:      models.PaymentStatusSucceeded,
		PricePaidCents:     intent.Amount,
		Currency:           intent.Currency,
		MembershipDiscount: meta.MembershipDiscount,
		ScheduledAt:        meta.ScheduledAt,
		DurationMinutes:    meta.DurationMinutes,
	}

	// Idempotent on the payment intent reference: a redelivered event finds
	// the existing row and inserts nothing. The first delivery already fired
	// the side effects against the real booking ID, so a redelivery must not
	// repeat them with this freshly generated one.
	created, err := s.BookingRepository.CreateBooking(ctx, booking)
	if err != nil {
		return err
	}
	if !created {
		slog.InfoContext(ctx, "booking already exists for payment, skipping side effects",
			"payment_intent_id", intent.ID)
		return nil
	}

	slog.InfoContext(ctx, "created booking from payment",
		"booking_id", booking.ID, "payment_intent_id", intent.ID, "lesson_id", meta.LessonID)

	if pubErr := s.MessageBuilder.PublishBookingCreated(ctx, booking); pubErr != nil {
		slog.WarnContext(ctx, "error publishing booking created event", logging.ErrKey, pubErr)
	}

	// Room creation and notifications are non-critical: a failure is logged
	// and the webhook still succeeds, because the room can be created
	// on-demand when a party first opens the booking.
	bookingID := booking.ID
	notice := domain.BookingNotice{
		LessonTitle:     meta.LessonTitle,
		TeacherEmail:    meta.TeacherEmail,
		StudentEmail:    meta.StudentEmail,
		ScheduledAt:     meta.ScheduledAt,
		DurationMinutes: meta.DurationMinutes,
		PricePaidCents:  intent.Amount,
		Currency:        intent.Currency,
	}
	s.dispatch(ctx, "booking room and notifications", func(ctx context.Context) error {
		roomURL := ""
		if meta.LocationMode == models.LocationModeVideo || meta.LocationMode == models.LocationModeHybrid {
			room, err := s.RoomService.CreateRoomForBooking(ctx, bookingID)
			if err != nil {
				slog.ErrorContext(ctx, "error creating room for new booking",
					logging.ErrKey, err, "booking_id", bookingID)
			} else {
				roomURL = room.RoomURL
			}
		}
		notice.RoomURL = roomURL

		studentNotice := notice
		studentNotice.RecipientEmail = meta.StudentEmail
		if err := s.NotificationService.SendBookingConfirmation(ctx, studentNotice); err != nil {
			slog.ErrorContext(ctx, "error sending booking confirmation", logging.ErrKey, err, "booking_id", bookingID)
		}

		teacherNotice := notice
		teacherNotice.RecipientEmail = meta.TeacherEmail
		if err := s.NotificationService.SendTeacherBookingNotice(ctx, teacherNotice); err != nil {
			slog.ErrorContext(ctx, "error sending teacher booking notice", logging.ErrKey, err, "booking_id", bookingID)
		}
		return nil
	})

	return nil
}

// handleInvoicePaymentSucceeded activates the paying membership and, because
// a paid invoice is the qualifying event for billing recomputation, re-tiers
// the community's platform fee.
func (s *PaymentWebhookService) handleInvoicePaymentSucceeded(ctx context.Context, event *models.PaymentEvent) error {
	var invoice models.Invoice
	if err := json.Unmarshal(event.Data.Object, &invoice); err != nil {
		return domain.NewValidationError("invalid invoice payload", err)
	}

	if invoice.Subscription == "" {
		slog.DebugContext(ctx, "ignoring invoice with no subscription", "invoice_id", invoice.ID)
		return nil
	}

	subMeta, missing := models.ParseSubscriptionMetadata(invoice.SubscriptionDetails.Metadata)
	if missing != nil {
		slog.WarnContext(ctx, "rejecting invoice with incomplete subscription metadata",
			"invoice_id", invoice.ID, "missing_fields", missing)
		return domain.NewValidationError("incomplete subscription metadata", &domain.MissingMetadataError{Fields: missing})
	}

	return s.activateMembership(ctx, subMeta, invoice.Subscription, invoice.CustomerEmail, true)
}

// activateMembership transitions the membership to active, incrementing the
// community's member counter exactly once per activation. When recomputeFee
// is set it also re-tiers the platform fee and handles the pre-registration
// grand opening.
func (s *PaymentWebhookService) activateMembership(ctx context.Context, subMeta *models.SubscriptionMetadata, subscriptionID, memberEmail string, recomputeFee bool) error {
	ctx = logging.AppendCtx(ctx, slog.String("community_id", subMeta.CommunityID))
	ctx = logging.AppendCtx(ctx, slog.String("member_id", subMeta.MemberID))

	newlyActivated, err := s.MembershipRepository.ActivateMembership(ctx, subMeta.CommunityID, subMeta.MemberID, subscriptionID)
	if err != nil {
		return err
	}
	if newlyActivated {
		if err := s.MembershipRepository.AdjustActiveMemberCount(ctx, subMeta.CommunityID, 1); err != nil {
			return err
		}
		slog.InfoContext(ctx, "activated membership")
	}

	if !recomputeFee {
		return nil
	}

	billing, err := s.MembershipRepository.GetCommunityBilling(ctx, subMeta.CommunityID)
	if err != nil {
		return err
	}

	if err := s.applyFeeTier(ctx, billing, subscriptionID); err != nil {
		return err
	}

	grandOpening, err := s.maybeOpenCommunity(ctx, billing)
	if err != nil {
		return err
	}

	if pubErr := s.MessageBuilder.PublishMembershipUpdated(ctx, map[string]any{
		"community_id": subMeta.CommunityID,
		"member_id":    subMeta.MemberID,
		"status":       models.MembershipStatusActive,
	}); pubErr != nil {
		slog.WarnContext(ctx, "error publishing membership updated event", logging.ErrKey, pubErr)
	}

	if newlyActivated && memberEmail != "" {
		welcome := domain.MembershipWelcome{
			RecipientEmail: memberEmail,
			CommunityName:  billing.Name,
			CommunitySlug:  billing.Slug,
		}
		s.dispatch(ctx, "membership welcome email", func(ctx context.Context) error {
			if grandOpening {
				return s.NotificationService.SendGrandOpening(ctx, welcome)
			}
			return s.NotificationService.SendMembershipWelcome(ctx, welcome)
		})
	}

	return nil
}

// applyFeeTier recomputes the community's platform fee from its age and
// member count, persisting and pushing it to the processor only on change.
func (s *PaymentWebhookService) applyFeeTier(ctx context.Context, billing *models.CommunityBilling, subscriptionID string) error {
	fee := platformFeeFor(billing, s.now())
	if fee == billing.PlatformFeePercent {
		return nil
	}

	slog.InfoContext(ctx, "platform fee tier changed",
		"previous_fee_percent", billing.PlatformFeePercent,
		"fee_percent", fee,
		"active_member_count", billing.ActiveMemberCount,
	)

	if err := s.MembershipRepository.UpdatePlatformFee(ctx, billing.ID, fee); err != nil {
		return err
	}
	billing.PlatformFeePercent = fee

	if subscriptionID == "" {
		return nil
	}
	// Pushing the fee to the processor is best-effort: the next qualifying
	// payment recomputes and retries it.
	if err := s.PaymentProcessor.UpdateSubscriptionFee(ctx, subscriptionID, fee); err != nil {
		slog.ErrorContext(ctx, "error pushing platform fee to payment processor",
			logging.ErrKey, err, "subscription_id", subscriptionID)
	}
	return nil
}

// maybeOpenCommunity transitions a pre-registration community to active once
// its opening date has passed, reporting whether the transition happened so
// the caller can pick the grand-opening template.
func (s *PaymentWebhookService) maybeOpenCommunity(ctx context.Context, billing *models.CommunityBilling) (bool, error) {
	if billing.Status != models.CommunityStatusPreRegistration {
		return false, nil
	}
	if billing.OpensAt != nil && billing.OpensAt.After(s.now()) {
		return false, nil
	}

	if err := s.MembershipRepository.ActivateCommunity(ctx, billing.ID); err != nil {
		return false, err
	}
	billing.Status = models.CommunityStatusActive

	slog.InfoContext(ctx, "community opened", "community_slug", billing.Slug)
	return true, nil
}

// handleSubscriptionChange mirrors the processor's subscription status onto
// the membership, deriving the local canceling value, and deactivates the
// membership when the subscription has terminally lapsed.
func (s *PaymentWebhookService) handleSubscriptionChange(ctx context.Context, event *models.PaymentEvent) error {
	var sub models.Subscription
	if err := json.Unmarshal(event.Data.Object, &sub); err != nil {
		return domain.NewValidationError("invalid subscription payload", err)
	}

	ctx = logging.AppendCtx(ctx, slog.String("subscription_id", sub.ID))

	status := sub.EffectiveStatus()
	if err := s.MembershipRepository.UpdateSubscriptionStatus(ctx, sub.ID, status, sub.PeriodEnd()); err != nil {
		return err
	}

	slog.InfoContext(ctx, "updated subscription status", "subscription_status", status)

	if sub.Status != models.SubscriptionStatusCanceled && sub.Status != models.SubscriptionStatusUnpaid {
		return nil
	}

	membership, err := s.MembershipRepository.GetMembershipBySubscription(ctx, sub.ID)
	if err != nil {
		if domain.GetErrorType(err) == domain.ErrorTypeNotFound {
			slog.WarnContext(ctx, "no membership for lapsed subscription")
			return nil
		}
		return err
	}

	wasActive, err := s.MembershipRepository.DeactivateMembership(ctx, membership.CommunityID, membership.MemberID)
	if err != nil {
		return err
	}
	if wasActive {
		if err := s.MembershipRepository.AdjustActiveMemberCount(ctx, membership.CommunityID, -1); err != nil {
			return err
		}
		slog.InfoContext(ctx, "deactivated membership",
			"community_id", membership.CommunityID, "member_id", membership.MemberID)
	}

	if pubErr := s.MessageBuilder.PublishMembershipUpdated(ctx, map[string]any{
		"community_id": membership.CommunityID,
		"member_id":    membership.MemberID,
		"status":       models.MembershipStatusInactive,
	}); pubErr != nil {
		slog.WarnContext(ctx, "error publishing membership updated event", logging.ErrKey, pubErr)
	}

	return nil
}

// handleInvoicePaymentFailed marks the subscription past due. The membership
// stays active: deactivation only happens on terminal subscription states, so
// a single failed charge gets an implicit grace period.
func (s *PaymentWebhookService) handleInvoicePaymentFailed(ctx context.Context, event *models.PaymentEvent) error {
	var invoice models.Invoice
	if err := json.Unmarshal(event.Data.Object, &invoice); err != nil {
		return domain.NewValidationError("invalid invoice payload", err)
	}

	if invoice.Subscription == "" {
		slog.DebugContext(ctx, "ignoring failed invoice with no subscription", "invoice_id", invoice.ID)
		return nil
	}

	if err := s.MembershipRepository.UpdateSubscriptionStatus(ctx, invoice.Subscription, models.SubscriptionStatusPastDue, nil); err != nil {
		return err
	}

	slog.InfoContext(ctx, "marked subscription past due", "subscription_id", invoice.Subscription)
	return nil
}

// dispatchAsync detaches a non-critical side effect from the webhook
// request's lifetime.
func (s *PaymentWebhookService) dispatchAsync(ctx context.Context, task string, fn func(context.Context) error) {
	ctx = context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(ctx, asyncTaskTimeout)
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				slog.ErrorContext(ctx, "panic in async webhook task", logging.PriorityCritical(),
					"task", task, "panic", fmt.Sprintf("%v", r))
			}
		}()
		if err := fn(ctx); err != nil {
			slog.ErrorContext(ctx, "async webhook task failed", logging.ErrKey, err, "task", task)
		}
	}()
}

// platformFeeFor computes the platform fee percentage for a community:
// promotional while the community is younger than the promo period, then
// tiered down as the active member count grows.
func platformFeeFor(billing *models.CommunityBilling, now time.Time) float64 {
	if now.Sub(billing.CreatedAt) < promoPeriod {
		return promoFeePercent
	}
	switch {
	case billing.ActiveMemberCount <= smallCommunityMembers:
		return smallCommunityFee
	case billing.ActiveMemberCount <= midCommunityMembers:
		return midCommunityFee
	default:
		return largeCommunityFee
	}
}
