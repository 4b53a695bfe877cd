// Copyright The Classloop Authors.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/classloop/community-video-service/internal/domain"
	"github.com/classloop/community-video-service/internal/domain/mocks"
	"github.com/classloop/community-video-service/internal/domain/models"
	"github.com/classloop/community-video-service/internal/infrastructure/stripe/webhook"
)

type webhookServiceFixture struct {
	svc            *PaymentWebhookService
	bookingRepo    *mocks.MockBookingRepository
	membershipRepo *mocks.MockMembershipRepository
	liveClassRepo  *mocks.MockLiveClassRepository
	provider       *mocks.MockRoomProvider
	notifications  *mocks.MockNotificationService
	messageBuilder *mocks.MockMessageBuilder
	processor      *mocks.MockPaymentProcessor
	eventCache     *mocks.MockEventCache
}

func newWebhookServiceFixture() *webhookServiceFixture {
	f := &webhookServiceFixture{
		bookingRepo:    &mocks.MockBookingRepository{},
		membershipRepo: &mocks.MockMembershipRepository{},
		liveClassRepo:  &mocks.MockLiveClassRepository{},
		provider:       &mocks.MockRoomProvider{},
		notifications:  &mocks.MockNotificationService{},
		messageBuilder: &mocks.MockMessageBuilder{},
		processor:      &mocks.MockPaymentProcessor{},
		eventCache:     &mocks.MockEventCache{},
	}

	roomSvc := NewRoomService(f.bookingRepo, f.liveClassRepo, f.provider, f.messageBuilder, ServiceConfig{})

	f.svc = NewPaymentWebhookService(
		f.bookingRepo,
		f.membershipRepo,
		roomSvc,
		f.notifications,
		f.messageBuilder,
		f.processor,
		f.eventCache,
		[]domain.WebhookVerifier{webhook.NewSignatureValidator("whsec_platform")},
	)
	// Run side effects inline so tests can assert on them.
	f.svc.dispatch = func(ctx context.Context, task string, fn func(context.Context) error) {
		_ = fn(ctx)
	}
	return f
}

func (f *webhookServiceFixture) expectNoDedup() {
	f.eventCache.On("IsProcessed", mock.Anything, mock.Anything).Return(false, nil)
	f.eventCache.On("MarkProcessed", mock.Anything, mock.Anything).Return(nil).Maybe()
}

func paymentEvent(t *testing.T, eventType string, object any) *models.PaymentEvent {
	t.Helper()
	raw, err := json.Marshal(object)
	require.NoError(t, err)
	return &models.PaymentEvent{
		ID:      "evt_" + eventType,
		Type:    eventType,
		Created: time.Now().Unix(),
		Data:    models.PaymentEventData{Object: raw},
	}
}

func bookingIntentMetadata() map[string]string {
	return map[string]string{
		"purchase_type":    models.PurchaseTypeLessonBooking,
		"lesson_id":        "lesson-1",
		"lesson_title":     "Conversational Spanish",
		"community_id":     "community-1",
		"teacher_id":       "teacher-1",
		"teacher_email":    "teacher@example.com",
		"student_id":       "student-1",
		"student_email":    "student@example.com",
		"duration_minutes": "60",
		"location_mode":    models.LocationModeVideo,
	}
}

func TestPaymentWebhookService_VerifySignature(t *testing.T) {
	ctx := context.Background()
	payload := []byte(`{"id":"evt_1","type":"payment_intent.succeeded"}`)
	now := time.Now()

	newService := func(secrets ...string) *PaymentWebhookService {
		f := newWebhookServiceFixture()
		verifiers := make([]domain.WebhookVerifier, 0, len(secrets))
		for _, secret := range secrets {
			verifiers = append(verifiers, webhook.NewSignatureValidator(secret))
		}
		f.svc.Verifiers = verifiers
		return f.svc
	}

	t.Run("platform secret verifies", func(t *testing.T) {
		svc := newService("whsec_platform", "whsec_connect")
		header := webhook.Sign("whsec_platform", payload, now)
		assert.NoError(t, svc.VerifySignature(ctx, payload, header))
	})

	t.Run("falls back to the connected-account secret", func(t *testing.T) {
		svc := newService("whsec_platform", "whsec_connect")
		header := webhook.Sign("whsec_connect", payload, now)
		assert.NoError(t, svc.VerifySignature(ctx, payload, header))
	})

	t.Run("rejects when no secret matches", func(t *testing.T) {
		svc := newService("whsec_platform", "whsec_connect")
		header := webhook.Sign("whsec_other", payload, now)
		assert.ErrorIs(t, svc.VerifySignature(ctx, payload, header), domain.ErrInvalidSignature)
	})

	t.Run("rejects a tampered payload", func(t *testing.T) {
		svc := newService("whsec_platform")
		header := webhook.Sign("whsec_platform", payload, now)
		tampered := []byte(`{"id":"evt_2","type":"payment_intent.succeeded"}`)
		assert.ErrorIs(t, svc.VerifySignature(ctx, tampered, header), domain.ErrInvalidSignature)
	})
}

func TestPaymentWebhookService_HandleEvent_Dedup(t *testing.T) {
	ctx := context.Background()

	f := newWebhookServiceFixture()
	f.eventCache.On("IsProcessed", mock.Anything, "evt_payment_intent.succeeded").Return(true, nil)

	event := paymentEvent(t, models.EventPaymentIntentSucceeded, models.PaymentIntent{
		ID: "pi_123", Metadata: bookingIntentMetadata(),
	})

	require.NoError(t, f.svc.HandleEvent(ctx, event))
	f.bookingRepo.AssertNotCalled(t, "CreateBooking", mock.Anything, mock.Anything)
}

func TestPaymentWebhookService_HandleEvent_UnknownType(t *testing.T) {
	ctx := context.Background()

	f := newWebhookServiceFixture()
	f.expectNoDedup()

	event := paymentEvent(t, "charge.refunded", map[string]any{"id": "ch_1"})
	require.NoError(t, f.svc.HandleEvent(ctx, event))
}

func TestPaymentWebhookService_BookingPayment(t *testing.T) {
	ctx := context.Background()

	t.Run("creates booking, room, and notifications", func(t *testing.T) {
		f := newWebhookServiceFixture()
		f.expectNoDedup()

		var created *models.Booking
		f.bookingRepo.On("CreateBooking", mock.Anything, mock.AnythingOfType("*models.Booking")).
			Run(func(args mock.Arguments) {
				created = args.Get(1).(*models.Booking)
			}).Return(true, nil)
		f.messageBuilder.On("PublishBookingCreated", mock.Anything, mock.Anything).Return(nil)

		// Room creation re-reads the persisted booking.
		f.bookingRepo.On("GetBookingContext", mock.Anything, mock.AnythingOfType("string")).
			Return(&models.BookingContext{
				Booking: models.Booking{
					ID:              "booking-1",
					TeacherID:       "teacher-1",
					StudentID:       "student-1",
					PaymentStatus:   models.PaymentStatusSucceeded,
					DurationMinutes: 60,
				},
				LessonTitle:   "Conversational Spanish",
				LocationMode:  models.LocationModeVideo,
				CommunitySlug: "spanish-circle",
				TeacherEmail:  "teacher@example.com",
				StudentEmail:  "student@example.com",
			}, nil)
		f.bookingRepo.On("ClaimBookingRoom", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(true, nil)
		f.provider.On("CreateRoom", mock.Anything, mock.Anything).
			Return(&domain.Room{Name: "room-1", URL: "https://rooms.example.com/room-1"}, nil)
		f.provider.On("CreateToken", mock.Anything, mock.Anything).Return("token", nil)
		f.bookingRepo.On("UpdateBookingRoom", mock.Anything, mock.Anything, mock.Anything).Return(nil)
		f.messageBuilder.On("PublishRoomCreated", mock.Anything, mock.Anything).Return(nil)

		f.notifications.On("SendBookingConfirmation", mock.Anything, mock.MatchedBy(func(n domain.BookingNotice) bool {
			return n.RecipientEmail == "student@example.com" && n.RoomURL == "https://rooms.example.com/room-1"
		})).Return(nil)
		f.notifications.On("SendTeacherBookingNotice", mock.Anything, mock.MatchedBy(func(n domain.BookingNotice) bool {
			return n.RecipientEmail == "teacher@example.com"
		})).Return(nil)

		event := paymentEvent(t, models.EventPaymentIntentSucceeded, models.PaymentIntent{
			ID:       "pi_123",
			Amount:   4500,
			Currency: "usd",
			Metadata: bookingIntentMetadata(),
		})

		require.NoError(t, f.svc.HandleEvent(ctx, event))

		require.NotNil(t, created)
		assert.Equal(t, "pi_123", created.PaymentIntentID)
		assert.Equal(t, models.PaymentStatusSucceeded, created.PaymentStatus)
		assert.Equal(t, int64(4500), created.PricePaidCents)
		assert.Equal(t, 60, created.DurationMinutes)

		f.notifications.AssertExpectations(t)
	})

	t.Run("redelivered payment skips room and notifications", func(t *testing.T) {
		f := newWebhookServiceFixture()
		f.expectNoDedup()

		// The insert is idempotent on the payment intent, so a redelivery
		// reports nothing created. Side effects already ran against the
		// original booking's ID and must not run again here.
		f.bookingRepo.On("CreateBooking", mock.Anything, mock.AnythingOfType("*models.Booking")).
			Return(false, nil)

		event := paymentEvent(t, models.EventPaymentIntentSucceeded, models.PaymentIntent{
			ID: "pi_123", Metadata: bookingIntentMetadata(),
		})

		require.NoError(t, f.svc.HandleEvent(ctx, event))

		f.messageBuilder.AssertNotCalled(t, "PublishBookingCreated", mock.Anything, mock.Anything)
		f.bookingRepo.AssertNotCalled(t, "GetBookingContext", mock.Anything, mock.Anything)
		f.notifications.AssertNotCalled(t, "SendBookingConfirmation", mock.Anything, mock.Anything)
		f.notifications.AssertNotCalled(t, "SendTeacherBookingNotice", mock.Anything, mock.Anything)
	})

	t.Run("rejects incomplete metadata listing every missing field", func(t *testing.T) {
		f := newWebhookServiceFixture()
		f.expectNoDedup()

		metadata := bookingIntentMetadata()
		delete(metadata, "lesson_id")
		delete(metadata, "student_email")

		event := paymentEvent(t, models.EventPaymentIntentSucceeded, models.PaymentIntent{
			ID: "pi_123", Metadata: metadata,
		})

		err := f.svc.HandleEvent(ctx, event)
		require.Error(t, err)
		assert.Equal(t, domain.ErrorTypeValidation, domain.GetErrorType(err))

		var missingErr *domain.MissingMetadataError
		require.ErrorAs(t, err, &missingErr)
		assert.ElementsMatch(t, []string{"lesson_id", "student_email"}, missingErr.Fields)

		f.bookingRepo.AssertNotCalled(t, "CreateBooking", mock.Anything, mock.Anything)
	})

	t.Run("room creation failure does not fail the webhook", func(t *testing.T) {
		f := newWebhookServiceFixture()
		f.expectNoDedup()

		f.bookingRepo.On("CreateBooking", mock.Anything, mock.Anything).Return(true, nil)
		f.messageBuilder.On("PublishBookingCreated", mock.Anything, mock.Anything).Return(nil)
		f.bookingRepo.On("GetBookingContext", mock.Anything, mock.Anything).
			Return(nil, domain.NewInternalError("store unreachable"))
		f.notifications.On("SendBookingConfirmation", mock.Anything, mock.Anything).Return(nil)
		f.notifications.On("SendTeacherBookingNotice", mock.Anything, mock.Anything).Return(nil)

		event := paymentEvent(t, models.EventPaymentIntentSucceeded, models.PaymentIntent{
			ID: "pi_123", Metadata: bookingIntentMetadata(),
		})

		require.NoError(t, f.svc.HandleEvent(ctx, event))
	})

	t.Run("booking persistence failure fails the webhook", func(t *testing.T) {
		f := newWebhookServiceFixture()
		f.expectNoDedup()

		f.bookingRepo.On("CreateBooking", mock.Anything, mock.Anything).
			Return(false, domain.NewInternalError("store unreachable"))

		event := paymentEvent(t, models.EventPaymentIntentSucceeded, models.PaymentIntent{
			ID: "pi_123", Metadata: bookingIntentMetadata(),
		})

		err := f.svc.HandleEvent(ctx, event)
		assert.Equal(t, domain.ErrorTypeInternal, domain.GetErrorType(err))
	})
}

func TestPaymentWebhookService_SubscriptionTiedPayment(t *testing.T) {
	ctx := context.Background()

	// A payment_intent.succeeded for a subscription invoice carries no
	// subscription reference of its own; activation must pass the empty id
	// through so the store keeps any previously recorded one.
	t.Run("activates membership without a subscription reference", func(t *testing.T) {
		f := newWebhookServiceFixture()
		f.expectNoDedup()

		f.membershipRepo.On("ActivateMembership", mock.Anything, "community-1", "member-1", "").Return(true, nil)
		f.membershipRepo.On("AdjustActiveMemberCount", mock.Anything, "community-1", 1).Return(nil)

		event := paymentEvent(t, models.EventPaymentIntentSucceeded, models.PaymentIntent{
			ID: "pi_123",
			Metadata: map[string]string{
				"community_id": "community-1",
				"member_id":    "member-1",
			},
		})

		require.NoError(t, f.svc.HandleEvent(ctx, event))

		f.membershipRepo.AssertExpectations(t)
		f.membershipRepo.AssertNotCalled(t, "GetCommunityBilling", mock.Anything, mock.Anything)
	})
}

func TestPaymentWebhookService_InvoicePaymentSucceeded(t *testing.T) {
	ctx := context.Background()

	invoiceObject := func() models.Invoice {
		return models.Invoice{
			ID:            "in_123",
			Subscription:  "sub_123",
			CustomerEmail: "member@example.com",
			SubscriptionDetails: models.SubscriptionDetails{
				Metadata: map[string]string{
					"member_id":    "member-1",
					"community_id": "community-1",
				},
			},
		}
	}

	activeBilling := func() *models.CommunityBilling {
		return &models.CommunityBilling{
			ID:                 "community-1",
			Slug:               "spanish-circle",
			Name:               "Spanish Circle",
			Status:             models.CommunityStatusActive,
			ActiveMemberCount:  10,
			PlatformFeePercent: 8,
			CreatedAt:          time.Now().Add(-60 * 24 * time.Hour),
		}
	}

	t.Run("activates membership and increments counter once", func(t *testing.T) {
		f := newWebhookServiceFixture()
		f.expectNoDedup()

		f.membershipRepo.On("ActivateMembership", mock.Anything, "community-1", "member-1", "sub_123").Return(true, nil)
		f.membershipRepo.On("AdjustActiveMemberCount", mock.Anything, "community-1", 1).Return(nil)
		f.membershipRepo.On("GetCommunityBilling", mock.Anything, "community-1").Return(activeBilling(), nil)
		f.messageBuilder.On("PublishMembershipUpdated", mock.Anything, mock.Anything).Return(nil)
		f.notifications.On("SendMembershipWelcome", mock.Anything, mock.MatchedBy(func(w domain.MembershipWelcome) bool {
			return w.RecipientEmail == "member@example.com" && w.CommunitySlug == "spanish-circle"
		})).Return(nil)

		event := paymentEvent(t, models.EventInvoicePaymentSucceeded, invoiceObject())
		require.NoError(t, f.svc.HandleEvent(ctx, event))

		f.membershipRepo.AssertExpectations(t)
		f.notifications.AssertExpectations(t)
	})

	t.Run("already active membership does not touch the counter", func(t *testing.T) {
		f := newWebhookServiceFixture()
		f.expectNoDedup()

		f.membershipRepo.On("ActivateMembership", mock.Anything, "community-1", "member-1", "sub_123").Return(false, nil)
		f.membershipRepo.On("GetCommunityBilling", mock.Anything, "community-1").Return(activeBilling(), nil)
		f.messageBuilder.On("PublishMembershipUpdated", mock.Anything, mock.Anything).Return(nil)

		event := paymentEvent(t, models.EventInvoicePaymentSucceeded, invoiceObject())
		require.NoError(t, f.svc.HandleEvent(ctx, event))

		f.membershipRepo.AssertNotCalled(t, "AdjustActiveMemberCount", mock.Anything, mock.Anything, mock.Anything)
		f.notifications.AssertNotCalled(t, "SendMembershipWelcome", mock.Anything, mock.Anything)
	})

	t.Run("pushes a changed fee tier to the processor", func(t *testing.T) {
		f := newWebhookServiceFixture()
		f.expectNoDedup()

		billing := activeBilling()
		billing.ActiveMemberCount = 75
		billing.PlatformFeePercent = 8

		f.membershipRepo.On("ActivateMembership", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(false, nil)
		f.membershipRepo.On("GetCommunityBilling", mock.Anything, "community-1").Return(billing, nil)
		f.membershipRepo.On("UpdatePlatformFee", mock.Anything, "community-1", 6.0).Return(nil)
		f.processor.On("UpdateSubscriptionFee", mock.Anything, "sub_123", 6.0).Return(nil)
		f.messageBuilder.On("PublishMembershipUpdated", mock.Anything, mock.Anything).Return(nil)

		event := paymentEvent(t, models.EventInvoicePaymentSucceeded, invoiceObject())
		require.NoError(t, f.svc.HandleEvent(ctx, event))

		f.membershipRepo.AssertExpectations(t)
		f.processor.AssertExpectations(t)
	})

	t.Run("unchanged fee tier is not pushed", func(t *testing.T) {
		f := newWebhookServiceFixture()
		f.expectNoDedup()

		f.membershipRepo.On("ActivateMembership", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(false, nil)
		f.membershipRepo.On("GetCommunityBilling", mock.Anything, "community-1").Return(activeBilling(), nil)
		f.messageBuilder.On("PublishMembershipUpdated", mock.Anything, mock.Anything).Return(nil)

		event := paymentEvent(t, models.EventInvoicePaymentSucceeded, invoiceObject())
		require.NoError(t, f.svc.HandleEvent(ctx, event))

		f.membershipRepo.AssertNotCalled(t, "UpdatePlatformFee", mock.Anything, mock.Anything, mock.Anything)
		f.processor.AssertNotCalled(t, "UpdateSubscriptionFee", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("opens a pre-registration community and sends the grand opening", func(t *testing.T) {
		f := newWebhookServiceFixture()
		f.expectNoDedup()

		opensAt := time.Now().Add(-time.Hour)
		billing := activeBilling()
		billing.Status = models.CommunityStatusPreRegistration
		billing.OpensAt = &opensAt

		f.membershipRepo.On("ActivateMembership", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(true, nil)
		f.membershipRepo.On("AdjustActiveMemberCount", mock.Anything, "community-1", 1).Return(nil)
		f.membershipRepo.On("GetCommunityBilling", mock.Anything, "community-1").Return(billing, nil)
		f.membershipRepo.On("ActivateCommunity", mock.Anything, "community-1").Return(nil)
		f.messageBuilder.On("PublishMembershipUpdated", mock.Anything, mock.Anything).Return(nil)
		f.notifications.On("SendGrandOpening", mock.Anything, mock.Anything).Return(nil)

		event := paymentEvent(t, models.EventInvoicePaymentSucceeded, invoiceObject())
		require.NoError(t, f.svc.HandleEvent(ctx, event))

		f.membershipRepo.AssertCalled(t, "ActivateCommunity", mock.Anything, "community-1")
		f.notifications.AssertCalled(t, "SendGrandOpening", mock.Anything, mock.Anything)
		f.notifications.AssertNotCalled(t, "SendMembershipWelcome", mock.Anything, mock.Anything)
	})

	t.Run("pre-registration community stays closed before its opening date", func(t *testing.T) {
		f := newWebhookServiceFixture()
		f.expectNoDedup()

		opensAt := time.Now().Add(72 * time.Hour)
		billing := activeBilling()
		billing.Status = models.CommunityStatusPreRegistration
		billing.OpensAt = &opensAt

		f.membershipRepo.On("ActivateMembership", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(true, nil)
		f.membershipRepo.On("AdjustActiveMemberCount", mock.Anything, "community-1", 1).Return(nil)
		f.membershipRepo.On("GetCommunityBilling", mock.Anything, "community-1").Return(billing, nil)
		f.messageBuilder.On("PublishMembershipUpdated", mock.Anything, mock.Anything).Return(nil)
		f.notifications.On("SendMembershipWelcome", mock.Anything, mock.Anything).Return(nil)

		event := paymentEvent(t, models.EventInvoicePaymentSucceeded, invoiceObject())
		require.NoError(t, f.svc.HandleEvent(ctx, event))

		f.membershipRepo.AssertNotCalled(t, "ActivateCommunity", mock.Anything, mock.Anything)
	})

	t.Run("rejects invoice with incomplete subscription metadata", func(t *testing.T) {
		f := newWebhookServiceFixture()
		f.expectNoDedup()

		invoice := invoiceObject()
		invoice.SubscriptionDetails.Metadata = map[string]string{"member_id": "member-1"}

		event := paymentEvent(t, models.EventInvoicePaymentSucceeded, invoice)
		err := f.svc.HandleEvent(ctx, event)

		var missingErr *domain.MissingMetadataError
		require.ErrorAs(t, err, &missingErr)
		assert.Equal(t, []string{"community_id"}, missingErr.Fields)
	})
}

func TestPaymentWebhookService_SubscriptionChange(t *testing.T) {
	ctx := context.Background()

	t.Run("active with cancel at period end becomes canceling", func(t *testing.T) {
		f := newWebhookServiceFixture()
		f.expectNoDedup()

		periodEnd := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
		f.membershipRepo.On("UpdateSubscriptionStatus", mock.Anything, "sub_123", models.SubscriptionStatusCanceling,
			mock.MatchedBy(func(t *time.Time) bool { return t != nil && t.Equal(periodEnd) })).Return(nil)

		event := paymentEvent(t, models.EventSubscriptionUpdated, models.Subscription{
			ID:                "sub_123",
			Status:            models.SubscriptionStatusActive,
			CancelAtPeriodEnd: true,
			CurrentPeriodEnd:  periodEnd.Unix(),
		})

		require.NoError(t, f.svc.HandleEvent(ctx, event))
		f.membershipRepo.AssertExpectations(t)
		f.membershipRepo.AssertNotCalled(t, "DeactivateMembership", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("canceled subscription deactivates membership and decrements counter", func(t *testing.T) {
		f := newWebhookServiceFixture()
		f.expectNoDedup()

		f.membershipRepo.On("UpdateSubscriptionStatus", mock.Anything, "sub_123", models.SubscriptionStatusCanceled, mock.Anything).Return(nil)
		f.membershipRepo.On("GetMembershipBySubscription", mock.Anything, "sub_123").Return(&models.Membership{
			CommunityID: "community-1",
			MemberID:    "member-1",
			Status:      models.MembershipStatusActive,
		}, nil)
		f.membershipRepo.On("DeactivateMembership", mock.Anything, "community-1", "member-1").Return(true, nil)
		f.membershipRepo.On("AdjustActiveMemberCount", mock.Anything, "community-1", -1).Return(nil)
		f.messageBuilder.On("PublishMembershipUpdated", mock.Anything, mock.Anything).Return(nil)

		event := paymentEvent(t, models.EventSubscriptionDeleted, models.Subscription{
			ID:     "sub_123",
			Status: models.SubscriptionStatusCanceled,
		})

		require.NoError(t, f.svc.HandleEvent(ctx, event))
		f.membershipRepo.AssertExpectations(t)
	})

	t.Run("already inactive membership does not decrement the counter", func(t *testing.T) {
		f := newWebhookServiceFixture()
		f.expectNoDedup()

		f.membershipRepo.On("UpdateSubscriptionStatus", mock.Anything, "sub_123", models.SubscriptionStatusUnpaid, mock.Anything).Return(nil)
		f.membershipRepo.On("GetMembershipBySubscription", mock.Anything, "sub_123").Return(&models.Membership{
			CommunityID: "community-1",
			MemberID:    "member-1",
			Status:      models.MembershipStatusInactive,
		}, nil)
		f.membershipRepo.On("DeactivateMembership", mock.Anything, "community-1", "member-1").Return(false, nil)
		f.messageBuilder.On("PublishMembershipUpdated", mock.Anything, mock.Anything).Return(nil)

		event := paymentEvent(t, models.EventSubscriptionUpdated, models.Subscription{
			ID:     "sub_123",
			Status: models.SubscriptionStatusUnpaid,
		})

		require.NoError(t, f.svc.HandleEvent(ctx, event))
		f.membershipRepo.AssertNotCalled(t, "AdjustActiveMemberCount", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown membership for a lapsed subscription is acknowledged", func(t *testing.T) {
		f := newWebhookServiceFixture()
		f.expectNoDedup()

		f.membershipRepo.On("UpdateSubscriptionStatus", mock.Anything, "sub_123", models.SubscriptionStatusCanceled, mock.Anything).Return(nil)
		f.membershipRepo.On("GetMembershipBySubscription", mock.Anything, "sub_123").
			Return(nil, domain.NewNotFoundError("membership not found"))

		event := paymentEvent(t, models.EventSubscriptionDeleted, models.Subscription{
			ID:     "sub_123",
			Status: models.SubscriptionStatusCanceled,
		})

		require.NoError(t, f.svc.HandleEvent(ctx, event))
	})
}

func TestPaymentWebhookService_InvoicePaymentFailed(t *testing.T) {
	ctx := context.Background()

	f := newWebhookServiceFixture()
	f.expectNoDedup()

	f.membershipRepo.On("UpdateSubscriptionStatus", mock.Anything, "sub_123", models.SubscriptionStatusPastDue, (*time.Time)(nil)).Return(nil)

	event := paymentEvent(t, models.EventInvoicePaymentFailed, models.Invoice{
		ID:           "in_123",
		Subscription: "sub_123",
	})

	require.NoError(t, f.svc.HandleEvent(ctx, event))

	// A single failed charge gets a grace period, not a deactivation.
	f.membershipRepo.AssertNotCalled(t, "DeactivateMembership", mock.Anything, mock.Anything, mock.Anything)
	f.membershipRepo.AssertNotCalled(t, "AdjustActiveMemberCount", mock.Anything, mock.Anything, mock.Anything)
}

func TestPlatformFeeFor(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		createdAt   time.Time
		memberCount int
		expectedFee float64
	}{
		{
			name:        "promotional rate inside the first thirty days",
			createdAt:   now.Add(-10 * 24 * time.Hour),
			memberCount: 200,
			expectedFee: 0,
		},
		{
			name:        "promotion ends exactly at thirty days",
			createdAt:   now.Add(-30 * 24 * time.Hour),
			memberCount: 10,
			expectedFee: 8,
		},
		{
			name:        "small community tier",
			createdAt:   now.Add(-90 * 24 * time.Hour),
			memberCount: 50,
			expectedFee: 8,
		},
		{
			name:        "mid community tier",
			createdAt:   now.Add(-90 * 24 * time.Hour),
			memberCount: 51,
			expectedFee: 6,
		},
		{
			name:        "mid tier upper bound",
			createdAt:   now.Add(-90 * 24 * time.Hour),
			memberCount: 100,
			expectedFee: 6,
		},
		{
			name:        "large community tier",
			createdAt:   now.Add(-90 * 24 * time.Hour),
			memberCount: 101,
			expectedFee: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			billing := &models.CommunityBilling{
				CreatedAt:         tt.createdAt,
				ActiveMemberCount: tt.memberCount,
			}
			assert.Equal(t, tt.expectedFee, platformFeeFor(billing, now))
		})
	}
}
