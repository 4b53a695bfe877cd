// Copyright The Classloop Authors.
// SPDX-License-Identifier: MIT

package domain

import (
	"context"
)

// CreateRoomRequest describes the room to create on the external provider.
type CreateRoomRequest struct {
	// Name is the requested room name. Callers must not assume the
	// provider echoes it verbatim; the provider may normalize it.
	Name string

	// ExpiresAt is the room expiration as a Unix epoch in seconds.
	ExpiresAt int64

	// MaxParticipants bounds the room capacity (2 for a 1:1 booking,
	// larger for a live class).
	MaxParticipants int

	RecordingEnabled bool
}

// Room is the provider's view of a created room.
type Room struct {
	Name string
	URL  string
}

// CreateTokenRequest describes a capability token to mint for a room.
type CreateTokenRequest struct {
	RoomName string

	// Identity is the display identity the token is bound to.
	Identity string

	// IsOwner grants room-owner capabilities (eject, recording control).
	IsOwner bool

	// ExpiresAt is the token expiration as a Unix epoch in seconds.
	ExpiresAt int64

	ScreenShareAllowed bool
}

// RoomProvider is the external ephemeral-room provider consumed by the room
// lifecycle orchestrator. Implementations retry transient failures and
// surface non-transient ones as ProviderError.
type RoomProvider interface {
	CreateRoom(ctx context.Context, req CreateRoomRequest) (*Room, error)

	// GetRoom fetches an existing room, or a NotFound error. Used to recover
	// the room URL when a deterministic-name creation races an earlier one.
	GetRoom(ctx context.Context, name string) (*Room, error)

	CreateToken(ctx context.Context, req CreateTokenRequest) (string, error)

	// DeleteRoom is idempotent: deleting a nonexistent room is not an error.
	DeleteRoom(ctx context.Context, name string) error
}
