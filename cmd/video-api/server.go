// Copyright The Classloop Authors.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/classloop/community-video-service/internal/handlers"
	"github.com/classloop/community-video-service/internal/logging"
	"github.com/classloop/community-video-service/internal/middleware"
)

const (
	serverReadTimeout     = 30 * time.Second
	serverWriteTimeout    = 30 * time.Second
	serverShutdownTimeout = 25 * time.Second
)

// newRouter builds the gin engine with all middleware and routes.
func newRouter(
	debug bool,
	webhookHandler *handlers.WebhookHandler,
	roomHandler *handlers.RoomHandler,
	healthHandler *handlers.HealthHandler,
) *gin.Engine {
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger())

	router.GET("/livez", healthHandler.Livez)
	router.GET("/readyz", healthHandler.Readyz)

	router.POST("/webhooks/stripe", webhookHandler.HandlePaymentWebhook)

	bookings := router.Group("/bookings/:id")
	{
		bookings.POST("/room", roomHandler.CreateBookingRoom)
		bookings.GET("/room", roomHandler.GetBookingRoom)
		bookings.GET("/room/preview", roomHandler.PreviewBookingRoom)
		bookings.POST("/room/tokens", roomHandler.RegenerateBookingTokens)
		bookings.POST("/session/join", roomHandler.JoinSession)
		bookings.POST("/session/end", roomHandler.EndSession)
	}

	liveClasses := router.Group("/live-classes/:id")
	{
		liveClasses.POST("/room", roomHandler.CreateLiveClassRoom)
		liveClasses.POST("/room/token", roomHandler.CreateLiveClassToken)
	}

	return router
}

// setupHTTPServer starts the HTTP server and registers its graceful shutdown
// on the wait group.
func setupHTTPServer(flags flags, router *gin.Engine, gracefulCloseWG *sync.WaitGroup) *http.Server {
	addr := ":" + flags.Port
	if flags.Bind != "" && flags.Bind != "*" {
		addr = flags.Bind + addr
	}

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
	}

	gracefulCloseWG.Add(1)
	go func() {
		defer gracefulCloseWG.Done()
		slog.With("addr", addr).Info("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.With(logging.ErrKey, err).Error("http server error")
		}
	}()

	return httpServer
}

// gracefulShutdown drains the HTTP server and waits for background work.
func gracefulShutdown(httpServer *http.Server, gracefulCloseWG *sync.WaitGroup, cancel context.CancelFunc) {
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.With(logging.ErrKey, err).Error("error shutting down http server")
	}

	cancel()
	gracefulCloseWG.Wait()
	slog.Info("shutdown complete")
}
