// Copyright The Classloop Authors.
// SPDX-License-Identifier: MIT

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/classloop/community-video-service/internal/domain"
	"github.com/classloop/community-video-service/internal/domain/models"
	"github.com/classloop/community-video-service/internal/service"
)

// RoomHandler handles the room lifecycle routes for bookings and live classes.
type RoomHandler struct {
	roomService *service.RoomService
}

// NewRoomHandler creates a new RoomHandler.
func NewRoomHandler(roomService *service.RoomService) *RoomHandler {
	return &RoomHandler{roomService: roomService}
}

// CreateBookingRoom provisions (or returns the existing) room for a booking.
func (h *RoomHandler) CreateBookingRoom(c *gin.Context) {
	room, err := h.roomService.CreateRoomForBooking(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

// GetBookingRoom returns the booking's active room, or 404 when the booking
// has no room or it has already expired.
func (h *RoomHandler) GetBookingRoom(c *gin.Context) {
	room, err := h.roomService.GetRoomForBooking(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

// RegenerateBookingTokens re-mints both capability tokens for a booking's
// existing room.
func (h *RoomHandler) RegenerateBookingTokens(c *gin.Context) {
	room, err := h.roomService.GenerateTokensForBooking(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

type joinSessionRequest struct {
	Party string `json:"party" binding:"required"`
}

// JoinSession records a party joining the booking's session.
func (h *RoomHandler) JoinSession(c *gin.Context) {
	var req joinSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "party is required"})
		return
	}

	err := h.roomService.StartSession(c.Request.Context(), c.Param("id"), models.SessionParty(req.Party))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"joined": true})
}

// EndSession records the end of the booking's session.
func (h *RoomHandler) EndSession(c *gin.Context) {
	if err := h.roomService.EndSession(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ended": true})
}

// PreviewBookingRoom returns the room name and expiration the booking would
// get, without creating anything. Debug aid for verifying naming and
// expiration computation.
func (h *RoomHandler) PreviewBookingRoom(c *gin.Context) {
	preview, err := h.roomService.PreviewRoomForBooking(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, preview)
}

// CreateLiveClassRoom provisions (or returns the existing) room for a live
// class.
func (h *RoomHandler) CreateLiveClassRoom(c *gin.Context) {
	room, err := h.roomService.CreateRoomForLiveClass(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

type liveClassTokenRequest struct {
	RequesterID string `json:"requester_id" binding:"required"`
}

// CreateLiveClassToken mints a capability token for one requester joining a
// live class. The class host receives a privileged token.
func (h *RoomHandler) CreateLiveClassToken(c *gin.Context) {
	var req liveClassTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "requester_id is required"})
		return
	}

	token, err := h.roomService.GenerateTokenForLiveClass(c.Request.Context(), c.Param("id"), req.RequesterID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

// HealthHandler exposes liveness and readiness probes.
type HealthHandler struct {
	services []service.Service
}

// NewHealthHandler creates a new HealthHandler over the given services.
func NewHealthHandler(services ...service.Service) *HealthHandler {
	return &HealthHandler{services: services}
}

// Livez reports process liveness.
func (h *HealthHandler) Livez(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

// Readyz reports whether every service has its dependencies wired.
func (h *HealthHandler) Readyz(c *gin.Context) {
	for _, svc := range h.services {
		if !svc.ServiceReady() {
			respondError(c, domain.NewUnavailableError("service not ready"))
			return
		}
	}
	c.String(http.StatusOK, "OK")
}
