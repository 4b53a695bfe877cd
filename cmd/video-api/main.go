// Copyright The Classloop Authors.
// SPDX-License-Identifier: MIT

// Package main is the community video service API: it reacts to payment
// webhook events and manages the lifecycle of ephemeral video rooms for
// lesson bookings and live classes.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"

	"github.com/classloop/community-video-service/internal/domain"
	"github.com/classloop/community-video-service/internal/handlers"
	"github.com/classloop/community-video-service/internal/infrastructure/cache"
	"github.com/classloop/community-video-service/internal/infrastructure/daily"
	"github.com/classloop/community-video-service/internal/infrastructure/email"
	"github.com/classloop/community-video-service/internal/infrastructure/messaging"
	"github.com/classloop/community-video-service/internal/infrastructure/store"
	"github.com/classloop/community-video-service/internal/infrastructure/stripe"
	"github.com/classloop/community-video-service/internal/infrastructure/stripe/webhook"
	"github.com/classloop/community-video-service/internal/logging"
	"github.com/classloop/community-video-service/internal/service"
)

func main() {
	// Load a local .env when present; ignored in deployed environments.
	_ = godotenv.Load()

	env := parseEnv()
	flags := parseFlags(env.Port)

	logging.InitStructuredLog()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	gracefulCloseWG := sync.WaitGroup{}

	// Relational store is the single source of truth; it is the one hard
	// dependency.
	if env.DatabaseURL == "" {
		slog.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	pool, err := store.NewPool(ctx, env.DatabaseURL)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error connecting to database")
		os.Exit(1)
	}
	defer pool.Close()

	if env.RunMigrations {
		if err := store.Migrate(ctx, pool, env.MigrationsDir); err != nil {
			slog.With(logging.ErrKey, err).Error("error running migrations")
			os.Exit(1)
		}
	}

	bookingRepository := store.NewBookingStore(pool)
	liveClassRepository := store.NewLiveClassStore(pool)
	membershipRepository := store.NewMembershipStore(pool)

	// The room provider key missing is a warning, not a hard failure: the
	// rest of the system runs with video features disabled.
	if env.DailyAPIKey == "" {
		slog.Warn("DAILY_API_KEY not set, video room creation will fail until configured")
	}
	roomProvider := daily.NewClient(daily.Config{
		APIKey:  env.DailyAPIKey,
		BaseURL: env.DailyAPIURL,
	})

	messageBuilder := setupMessageBuilder(env)
	notificationService := setupNotificationService(env)
	eventCache := setupEventCache(ctx, env)

	var paymentProcessor domain.PaymentProcessor
	if env.StripeSecretKey != "" {
		paymentProcessor = stripe.NewClient(stripe.Config{APIKey: env.StripeSecretKey})
	} else {
		slog.Warn("STRIPE_SECRET_KEY not set, platform fee updates will not reach the processor")
		paymentProcessor = &stripe.NoopProcessor{}
	}

	verifiers := setupWebhookVerifiers(env)

	roomService := service.NewRoomService(
		bookingRepository,
		liveClassRepository,
		roomProvider,
		messageBuilder,
		service.ServiceConfig{},
	)
	webhookService := service.NewPaymentWebhookService(
		bookingRepository,
		membershipRepository,
		roomService,
		notificationService,
		messageBuilder,
		paymentProcessor,
		eventCache,
		verifiers,
	)

	router := newRouter(
		flags.Debug,
		handlers.NewWebhookHandler(webhookService),
		handlers.NewRoomHandler(roomService),
		handlers.NewHealthHandler(roomService, webhookService),
	)
	httpServer := setupHTTPServer(flags, router, &gracefulCloseWG)

	startCleanupScheduler(ctx, roomService, env.CleanupInterval, &gracefulCloseWG)

	// This next line blocks until SIGINT or SIGTERM is received.
	<-done

	gracefulShutdown(httpServer, &gracefulCloseWG, cancel)
}

// setupMessageBuilder connects to NATS when configured, falling back to a
// no-op publisher otherwise.
func setupMessageBuilder(env environment) domain.MessageBuilder {
	if env.NatsURL == "" {
		slog.Warn("NATS_URL not set, lifecycle events will not be published")
		return &messaging.NoopMessageBuilder{}
	}

	natsConn, err := nats.Connect(env.NatsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		slog.With(logging.ErrKey, err).Warn("error connecting to NATS, lifecycle events will not be published")
		return &messaging.NoopMessageBuilder{}
	}

	return messaging.NewMessageBuilder(natsConn)
}

// setupNotificationService builds the SMTP notification service when
// configured, falling back to a no-op service otherwise.
func setupNotificationService(env environment) domain.NotificationService {
	if env.SMTP.Host == "" {
		slog.Warn("SMTP_HOST not set, notification emails will not be sent")
		return email.NewNoopService()
	}

	svc, err := email.NewSMTPService(email.SMTPConfig{
		Host:     env.SMTP.Host,
		Port:     env.SMTP.Port,
		From:     env.SMTP.From,
		Username: env.SMTP.Username,
		Password: env.SMTP.Password,
	})
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error setting up email service, notification emails will not be sent")
		return email.NewNoopService()
	}
	return svc
}

// setupEventCache connects to Redis for webhook event deduplication when
// configured. Without it every delivery is processed; the handlers are
// idempotent, so that is correct, just more work.
func setupEventCache(ctx context.Context, env environment) domain.EventCache {
	if env.RedisAddr == "" {
		slog.Warn("REDIS_ADDR not set, webhook event deduplication disabled")
		return &cache.NoopEventCache{}
	}

	eventCache, err := cache.NewEventCache(ctx, env.RedisAddr, env.RedisPassword, env.RedisDB)
	if err != nil {
		slog.With(logging.ErrKey, err).Warn("error connecting to redis, webhook event deduplication disabled")
		return &cache.NoopEventCache{}
	}
	return eventCache
}

// setupWebhookVerifiers builds the ordered verifier list: platform secret
// first, then the connected-account secret.
func setupWebhookVerifiers(env environment) []domain.WebhookVerifier {
	var verifiers []domain.WebhookVerifier
	if env.StripeWebhookSecret != "" {
		verifiers = append(verifiers, webhook.NewSignatureValidator(env.StripeWebhookSecret))
	}
	if env.StripeConnectWebhookSecret != "" {
		verifiers = append(verifiers, webhook.NewSignatureValidator(env.StripeConnectWebhookSecret))
	}
	if len(verifiers) == 0 {
		slog.Warn("no webhook signing secrets configured, all webhook deliveries will be rejected")
	}
	return verifiers
}

// startCleanupScheduler runs the expired-room sweep on an interval until the
// context is cancelled.
func startCleanupScheduler(ctx context.Context, roomService *service.RoomService, interval time.Duration, gracefulCloseWG *sync.WaitGroup) {
	gracefulCloseWG.Add(1)
	go func() {
		defer gracefulCloseWG.Done()

		slog.With("interval", interval.String()).Info("cleanup scheduler started")
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				slog.Info("cleanup scheduler stopped")
				return
			case <-ticker.C:
				if err := roomService.CleanupExpiredRooms(ctx); err != nil {
					slog.With(logging.ErrKey, err).Error("error sweeping expired rooms")
				}
			}
		}
	}()
}
