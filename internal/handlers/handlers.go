// Copyright The Classloop Authors.
// SPDX-License-Identifier: MIT

// Package handlers exposes the HTTP surface: the payment webhook endpoint and
// the room lifecycle routes for bookings and live classes.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/classloop/community-video-service/internal/domain"
)

// errorResponse is the JSON error body shared by all routes.
type errorResponse struct {
	Error string `json:"error"`
}

// respondError translates a domain error into its HTTP status.
func respondError(c *gin.Context, err error) {
	c.JSON(statusForError(err), errorResponse{Error: err.Error()})
}

func statusForError(err error) int {
	switch domain.GetErrorType(err) {
	case domain.ErrorTypeValidation:
		return http.StatusBadRequest
	case domain.ErrorTypeNotFound:
		return http.StatusNotFound
	case domain.ErrorTypeConflict:
		return http.StatusConflict
	case domain.ErrorTypeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
