// Copyright The Classloop Authors.
// SPDX-License-Identifier: MIT

// Package messaging publishes domain lifecycle events to NATS for downstream
// consumers (search indexer, activity feed).
package messaging

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/classloop/community-video-service/internal/domain"
	"github.com/classloop/community-video-service/internal/logging"
)

// Subjects for the published lifecycle events.
const (
	SubjectBookingCreated    = "classloop.booking.created"
	SubjectRoomCreated       = "classloop.room.created"
	SubjectMembershipUpdated = "classloop.membership.updated"
)

// INatsConn is the slice of the NATS connection the MessageBuilder needs.
type INatsConn interface {
	IsConnected() bool
	Publish(subj string, data []byte) error
}

// MessageBuilder builds lifecycle event messages and sends them to NATS.
type MessageBuilder struct {
	NatsConn INatsConn
}

// Ensure that MessageBuilder implements domain.MessageBuilder
var _ domain.MessageBuilder = (*MessageBuilder)(nil)

// NewMessageBuilder creates a new MessageBuilder.
func NewMessageBuilder(natsConn INatsConn) *MessageBuilder {
	return &MessageBuilder{NatsConn: natsConn}
}

func (m *MessageBuilder) sendMessage(ctx context.Context, subject string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.ErrorContext(ctx, "error marshalling message payload", logging.ErrKey, err, "subject", subject)
		return err
	}

	if err := m.NatsConn.Publish(subject, data); err != nil {
		slog.ErrorContext(ctx, "error sending message to NATS", logging.ErrKey, err, "subject", subject)
		return err
	}

	slog.DebugContext(ctx, "sent message to NATS", "subject", subject)
	return nil
}

// PublishBookingCreated publishes a booking-created event.
func (m *MessageBuilder) PublishBookingCreated(ctx context.Context, payload any) error {
	return m.sendMessage(ctx, SubjectBookingCreated, payload)
}

// PublishRoomCreated publishes a room-created event.
func (m *MessageBuilder) PublishRoomCreated(ctx context.Context, payload any) error {
	return m.sendMessage(ctx, SubjectRoomCreated, payload)
}

// PublishMembershipUpdated publishes a membership-updated event.
func (m *MessageBuilder) PublishMembershipUpdated(ctx context.Context, payload any) error {
	return m.sendMessage(ctx, SubjectMembershipUpdated, payload)
}

// NoopMessageBuilder satisfies MessageBuilder when NATS is not configured.
type NoopMessageBuilder struct{}

// Ensure that NoopMessageBuilder implements domain.MessageBuilder
var _ domain.MessageBuilder = (*NoopMessageBuilder)(nil)

func (m *NoopMessageBuilder) PublishBookingCreated(ctx context.Context, payload any) error {
	return nil
}

func (m *NoopMessageBuilder) PublishRoomCreated(ctx context.Context, payload any) error {
	return nil
}

func (m *NoopMessageBuilder) PublishMembershipUpdated(ctx context.Context, payload any) error {
	return nil
}
