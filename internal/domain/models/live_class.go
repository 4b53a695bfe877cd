// Copyright The Classloop Authors.
// SPDX-License-Identifier: MIT

package models

import (
	"time"
)

// Live class status values.
const (
	LiveClassStatusScheduled = "scheduled"
	LiveClassStatusLive      = "live"
	LiveClassStatusEnded     = "ended"
	LiveClassStatusCancelled = "cancelled"
)

// LiveClass is a scheduled group video session hosted by a teacher for a
// community. Unlike a booking it always has a fixed start time, and capability
// tokens are minted per requester at join time rather than persisted per party.
type LiveClass struct {
	ID          string `json:"id"`
	CommunityID string `json:"community_id"`
	HostID      string `json:"host_id"`
	Title       string `json:"title"`

	ScheduledAt     time.Time `json:"scheduled_at"`
	DurationMinutes int       `json:"duration_minutes"`
	Status          string    `json:"status"`

	RoomName      *string    `json:"room_name,omitempty"`
	RoomURL       *string    `json:"room_url,omitempty"`
	RoomCreatedAt *time.Time `json:"room_created_at,omitempty"`
	RoomExpiresAt *time.Time `json:"room_expires_at,omitempty"`

	SessionStartedAt *time.Time `json:"session_started_at,omitempty"`
	SessionEndedAt   *time.Time `json:"session_ended_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasRoom reports whether the live class currently has an active room attached.
func (c *LiveClass) HasRoom() bool {
	return c.RoomName != nil && *c.RoomName != ""
}

// LiveClassContext is the joined view of a live class with the community
// fields the orchestrator needs.
type LiveClassContext struct {
	LiveClass

	CommunitySlug string `json:"community_slug"`
	HostEmail     string `json:"host_email"`
}
