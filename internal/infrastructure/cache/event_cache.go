// Copyright The Classloop Authors.
// SPDX-License-Identifier: MIT

// Package cache provides a Redis-backed cache for webhook event deduplication.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/classloop/community-video-service/internal/domain"
	"github.com/classloop/community-video-service/internal/logging"
)

const (
	eventKeyPrefix = "payment_event:"
	eventTTL       = 72 * time.Hour
)

// EventCache records processed webhook event IDs so redelivered events can
// be acknowledged without reprocessing.
type EventCache struct {
	client *redis.Client
}

// Ensure that EventCache implements domain.EventCache
var _ domain.EventCache = (*EventCache)(nil)

// NewEventCache connects to Redis and returns an EventCache.
func NewEventCache(ctx context.Context, addr, password string, db int) (*EventCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &EventCache{client: client}, nil
}

// IsProcessed reports whether the event ID has already been handled.
func (c *EventCache) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	n, err := c.client.Exists(ctx, eventKeyPrefix+eventID).Result()
	if err != nil {
		slog.WarnContext(ctx, "error checking event cache", logging.ErrKey, err, "event_id", eventID)
		return false, err
	}
	return n > 0, nil
}

// MarkProcessed records the event ID with a TTL covering the processor's
// redelivery window.
func (c *EventCache) MarkProcessed(ctx context.Context, eventID string) error {
	if err := c.client.Set(ctx, eventKeyPrefix+eventID, "1", eventTTL).Err(); err != nil {
		slog.WarnContext(ctx, "error marking event processed", logging.ErrKey, err, "event_id", eventID)
		return err
	}
	return nil
}

// Close releases the underlying Redis connection.
func (c *EventCache) Close() error {
	return c.client.Close()
}

// NoopEventCache satisfies EventCache when Redis is not configured. Every
// event looks unprocessed, which is safe because the handlers are idempotent.
type NoopEventCache struct{}

// Ensure that NoopEventCache implements domain.EventCache
var _ domain.EventCache = (*NoopEventCache)(nil)

func (c *NoopEventCache) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	return false, nil
}

func (c *NoopEventCache) MarkProcessed(ctx context.Context, eventID string) error { return nil }
