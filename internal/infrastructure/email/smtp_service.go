// Copyright The Classloop Authors.
// SPDX-License-Identifier: MIT

// Package email implements the notification dispatcher over SMTP.
package email

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/classloop/community-video-service/internal/domain"
	"github.com/classloop/community-video-service/internal/logging"
)

// SMTPService implements the NotificationService interface using SMTP
type SMTPService struct {
	config    SMTPConfig
	templates *TemplateManager
}

// SMTPConfig holds the SMTP server configuration
type SMTPConfig struct {
	Host     string
	Port     int
	From     string
	Username string // Optional for authenticated SMTP
	Password string // Optional for authenticated SMTP
}

// Ensure that SMTPService implements domain.NotificationService
var _ domain.NotificationService = (*SMTPService)(nil)

// NewSMTPService creates a new SMTP notification service
func NewSMTPService(config SMTPConfig) (*SMTPService, error) {
	templates, err := NewTemplateManager()
	if err != nil {
		return nil, err
	}
	return &SMTPService{config: config, templates: templates}, nil
}

func (s *SMTPService) send(ctx context.Context, recipient, subject string, rendered *RenderedEmail) error {
	message := buildEmailMessage(recipient, subject, rendered.HTML, rendered.Text, s.config)
	if err := sendEmailMessage(recipient, message, s.config); err != nil {
		slog.ErrorContext(ctx, "failed to send notification email", logging.ErrKey, err)
		return err
	}
	slog.InfoContext(ctx, "notification email sent", "subject", subject)
	return nil
}

// SendBookingConfirmation sends the booking receipt to the student.
func (s *SMTPService) SendBookingConfirmation(ctx context.Context, notice domain.BookingNotice) error {
	ctx = logging.AppendCtx(ctx, slog.String("recipient_email", notice.RecipientEmail))

	rendered, err := s.templates.RenderBookingConfirmation(notice)
	if err != nil {
		slog.ErrorContext(ctx, "failed to render booking confirmation", logging.ErrKey, err)
		return err
	}

	subject := fmt.Sprintf("Booking confirmed: %s", notice.LessonTitle)
	return s.send(ctx, notice.RecipientEmail, subject, rendered)
}

// SendTeacherBookingNotice tells the teacher about a new paid booking.
func (s *SMTPService) SendTeacherBookingNotice(ctx context.Context, notice domain.BookingNotice) error {
	ctx = logging.AppendCtx(ctx, slog.String("recipient_email", notice.RecipientEmail))

	rendered, err := s.templates.RenderTeacherBookingNotice(notice)
	if err != nil {
		slog.ErrorContext(ctx, "failed to render teacher booking notice", logging.ErrKey, err)
		return err
	}

	subject := fmt.Sprintf("New booking: %s", notice.LessonTitle)
	return s.send(ctx, notice.RecipientEmail, subject, rendered)
}

// SendMembershipWelcome welcomes a newly active community member.
func (s *SMTPService) SendMembershipWelcome(ctx context.Context, welcome domain.MembershipWelcome) error {
	ctx = logging.AppendCtx(ctx, slog.String("recipient_email", welcome.RecipientEmail))

	rendered, err := s.templates.RenderMembershipWelcome(welcome)
	if err != nil {
		slog.ErrorContext(ctx, "failed to render membership welcome", logging.ErrKey, err)
		return err
	}

	subject := fmt.Sprintf("Welcome to %s", welcome.CommunityName)
	return s.send(ctx, welcome.RecipientEmail, subject, rendered)
}

// SendGrandOpening welcomes a member whose payment opened a pre-registration
// community.
func (s *SMTPService) SendGrandOpening(ctx context.Context, welcome domain.MembershipWelcome) error {
	ctx = logging.AppendCtx(ctx, slog.String("recipient_email", welcome.RecipientEmail))

	rendered, err := s.templates.RenderGrandOpening(welcome)
	if err != nil {
		slog.ErrorContext(ctx, "failed to render grand opening email", logging.ErrKey, err)
		return err
	}

	subject := fmt.Sprintf("%s is now open!", welcome.CommunityName)
	return s.send(ctx, welcome.RecipientEmail, subject, rendered)
}
