// Copyright The Classloop Authors.
// SPDX-License-Identifier: MIT

// Package middleware contains the gin middleware shared by all routes.
package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/classloop/community-video-service/internal/logging"
)

// RequestIDHeader carries the request ID back to the caller.
const RequestIDHeader = "X-Request-Id"

// RequestID assigns each request a UUID, echoes it in the response header,
// and attaches it to the request context so every log line carries it.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		ctx := logging.AppendCtx(c.Request.Context(), slog.String("request_id", requestID))
		c.Request = c.Request.WithContext(ctx)
		c.Header(RequestIDHeader, requestID)

		c.Next()
	}
}

// RequestLogger logs HTTP requests and responses. Health check endpoints
// (/livez and /readyz) are excluded from logging to reduce noise.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now().UTC()

		isHealthCheck := c.Request.URL.Path == "/livez" || c.Request.URL.Path == "/readyz"

		// Add request attributes to the context so that they can be used in
		// all request handler logs.
		ctx := c.Request.Context()
		ctx = logging.AppendCtx(ctx, slog.String("method", c.Request.Method))
		ctx = logging.AppendCtx(ctx, slog.String("path", c.Request.URL.Path))
		ctx = logging.AppendCtx(ctx, slog.String("remote_addr", c.ClientIP()))
		c.Request = c.Request.WithContext(ctx)

		if !isHealthCheck {
			slog.InfoContext(ctx, "HTTP request")
		}

		c.Next()

		if !isHealthCheck {
			slog.InfoContext(ctx, "HTTP response",
				"status", c.Writer.Status(),
				"duration", time.Since(start).String(),
			)
		}
	}
}
