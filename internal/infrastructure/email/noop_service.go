// Copyright The Classloop Authors.
// SPDX-License-Identifier: MIT

package email

import (
	"context"
	"log/slog"

	"github.com/classloop/community-video-service/internal/domain"
)

// NoopService satisfies NotificationService when SMTP is not configured.
// Every send is logged and dropped.
type NoopService struct{}

// Ensure that NoopService implements domain.NotificationService
var _ domain.NotificationService = (*NoopService)(nil)

// NewNoopService creates a new no-op notification service
func NewNoopService() *NoopService {
	return &NoopService{}
}

func (s *NoopService) SendBookingConfirmation(ctx context.Context, notice domain.BookingNotice) error {
	slog.InfoContext(ctx, "email not configured, skipping booking confirmation",
		"recipient_email", notice.RecipientEmail)
	return nil
}

func (s *NoopService) SendTeacherBookingNotice(ctx context.Context, notice domain.BookingNotice) error {
	slog.InfoContext(ctx, "email not configured, skipping teacher booking notice",
		"recipient_email", notice.RecipientEmail)
	return nil
}

func (s *NoopService) SendMembershipWelcome(ctx context.Context, welcome domain.MembershipWelcome) error {
	slog.InfoContext(ctx, "email not configured, skipping membership welcome",
		"recipient_email", welcome.RecipientEmail)
	return nil
}

func (s *NoopService) SendGrandOpening(ctx context.Context, welcome domain.MembershipWelcome) error {
	slog.InfoContext(ctx, "email not configured, skipping grand opening email",
		"recipient_email", welcome.RecipientEmail)
	return nil
}
