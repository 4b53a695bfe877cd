// Copyright The Classloop Authors.
// SPDX-License-Identifier: MIT

package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/classloop/community-video-service/internal/domain/models"
	"github.com/classloop/community-video-service/internal/logging"
	"github.com/classloop/community-video-service/internal/service"
)

// signatureHeader is the header carrying the payment processor's signature.
const signatureHeader = "Stripe-Signature"

// maxWebhookBody caps the accepted webhook payload size.
const maxWebhookBody = 1 << 20

// WebhookHandler handles inbound payment webhook deliveries.
type WebhookHandler struct {
	webhookService *service.PaymentWebhookService
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(webhookService *service.PaymentWebhookService) *WebhookHandler {
	return &WebhookHandler{webhookService: webhookService}
}

// HandlePaymentWebhook verifies and processes one payment event delivery.
// The raw body must be read before any JSON decoding because the signature
// covers the exact bytes on the wire.
func (h *WebhookHandler) HandlePaymentWebhook(c *gin.Context) {
	ctx := c.Request.Context()

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		slog.WarnContext(ctx, "error reading webhook body", logging.ErrKey, err)
		c.JSON(http.StatusBadRequest, errorResponse{Error: "unable to read request body"})
		return
	}

	if err := h.webhookService.VerifySignature(ctx, body, c.GetHeader(signatureHeader)); err != nil {
		respondError(c, err)
		return
	}

	var event models.PaymentEvent
	if err := json.Unmarshal(body, &event); err != nil {
		slog.WarnContext(ctx, "error decoding webhook event", logging.ErrKey, err)
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid event payload"})
		return
	}

	if err := h.webhookService.HandleEvent(ctx, &event); err != nil {
		slog.ErrorContext(ctx, "error handling payment event",
			logging.ErrKey, err, "event_id", event.ID, "event_type", event.Type)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
