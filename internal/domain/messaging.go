// Copyright The Classloop Authors.
// SPDX-License-Identifier: MIT

package domain

import (
	"context"
)

// MessageBuilder publishes domain lifecycle events for downstream consumers
// (indexers, activity feeds). Publishing is best-effort: a failed publish is
// logged and never fails the operation that produced the event.
type MessageBuilder interface {
	PublishBookingCreated(ctx context.Context, payload any) error
	PublishRoomCreated(ctx context.Context, payload any) error
	PublishMembershipUpdated(ctx context.Context, payload any) error
}

// PaymentProcessor is the narrow slice of the payment processor API that the
// webhook reactor writes back to: pushing a recomputed platform fee onto a
// subscription.
type PaymentProcessor interface {
	UpdateSubscriptionFee(ctx context.Context, subscriptionID string, feePercent float64) error
}

// WebhookVerifier authenticates an inbound webhook payload against a signing
// secret. Verifiers are tried in order; the first success wins.
type WebhookVerifier interface {
	Verify(payload []byte, signatureHeader string) error
}

// EventCache tracks webhook event IDs that have been fully processed, so
// processor redeliveries of an already-handled event can be short-circuited.
// It is an optimization only: a cache outage must never fail a webhook.
type EventCache interface {
	IsProcessed(ctx context.Context, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, eventID string) error
}
