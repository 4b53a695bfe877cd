// Copyright The Classloop Authors.
// SPDX-License-Identifier: MIT

// Package service contains the room lifecycle orchestrator and the payment
// webhook reactor that drives it.
package service

import (
	"time"
)

type Service interface {
	ServiceReady() bool
}

// ServiceConfig is the configuration for the Services.
type ServiceConfig struct {
	// RoomNameMaxLength caps generated room names at the provider's limit.
	RoomNameMaxLength int
	// RoomExpirationBuffer is added past a session's scheduled end so parties
	// running long are not ejected mid-sentence.
	RoomExpirationBuffer time.Duration
	// FallbackRoomTTL is the room lifetime used when no valid expiration can
	// be computed from scheduling data.
	FallbackRoomTTL time.Duration
	// LiveClassCapacity is the participant cap for live class rooms; bookings
	// are always capped at the two parties.
	LiveClassCapacity int
	// RecordingEnabled enables provider-side recording on created rooms.
	RecordingEnabled bool
}

// Defaults for ServiceConfig fields left zero.
const (
	defaultRoomNameMaxLength    = 40
	defaultRoomExpirationBuffer = 30 * time.Minute
	defaultFallbackRoomTTL      = 2 * time.Hour
	defaultLiveClassCapacity    = 100

	bookingRoomCapacity = 2
)

func (c ServiceConfig) roomNameMaxLength() int {
	if c.RoomNameMaxLength > 0 {
		return c.RoomNameMaxLength
	}
	return defaultRoomNameMaxLength
}

func (c ServiceConfig) roomExpirationBuffer() time.Duration {
	if c.RoomExpirationBuffer > 0 {
		return c.RoomExpirationBuffer
	}
	return defaultRoomExpirationBuffer
}

func (c ServiceConfig) fallbackRoomTTL() time.Duration {
	if c.FallbackRoomTTL > 0 {
		return c.FallbackRoomTTL
	}
	return defaultFallbackRoomTTL
}

func (c ServiceConfig) liveClassCapacity() int {
	if c.LiveClassCapacity > 0 {
		return c.LiveClassCapacity
	}
	return defaultLiveClassCapacity
}
