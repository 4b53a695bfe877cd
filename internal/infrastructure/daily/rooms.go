// Copyright The Classloop Authors.
// SPDX-License-Identifier: MIT

package daily

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/classloop/community-video-service/internal/domain"
)

// createRoomRequest is the provider's room creation payload.
type createRoomRequest struct {
	Name       string         `json:"name,omitempty"`
	Privacy    string         `json:"privacy"`
	Properties roomProperties `json:"properties"`
}

type roomProperties struct {
	Exp               int64 `json:"exp,omitempty"`
	MaxParticipants   int   `json:"max_participants,omitempty"`
	EnableRecording   bool  `json:"enable_recording,omitempty"`
	EnableScreenshare bool  `json:"enable_screenshare"`
	EjectAtRoomExp    bool  `json:"eject_at_room_exp"`
}

// createRoomResponse is the provider's room creation response.
type createRoomResponse struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// createTokenRequest is the provider's meeting token payload.
type createTokenRequest struct {
	Properties tokenProperties `json:"properties"`
}

type tokenProperties struct {
	RoomName          string `json:"room_name"`
	UserName          string `json:"user_name,omitempty"`
	IsOwner           bool   `json:"is_owner"`
	Exp               int64  `json:"exp,omitempty"`
	EnableScreenshare bool   `json:"enable_screenshare"`
}

type createTokenResponse struct {
	Token string `json:"token"`
}

// CreateRoom creates a new room on the provider.
// This is a pure API call with no business logic.
func (c *Client) CreateRoom(ctx context.Context, req domain.CreateRoomRequest) (*domain.Room, error) {
	payload := createRoomRequest{
		Name:    req.Name,
		Privacy: "private",
		Properties: roomProperties{
			Exp:               req.ExpiresAt,
			MaxParticipants:   req.MaxParticipants,
			EnableRecording:   req.RecordingEnabled,
			EnableScreenshare: true,
			EjectAtRoomExp:    true,
		},
	}

	status, body, err := c.doRequest(ctx, http.MethodPost, "/rooms", payload)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return nil, providerError(status, body)
	}

	var roomResp createRoomResponse
	if err := json.Unmarshal(body, &roomResp); err != nil {
		return nil, fmt.Errorf("failed to decode room response: %w", err)
	}

	return &domain.Room{Name: roomResp.Name, URL: roomResp.URL}, nil
}

// GetRoom fetches an existing room by name.
// This is a pure API call with no business logic.
func (c *Client) GetRoom(ctx context.Context, name string) (*domain.Room, error) {
	status, body, err := c.doRequest(ctx, http.MethodGet, "/rooms/"+url.PathEscape(name), nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, domain.NewNotFoundError("room not found", providerError(status, body))
	}
	if status != http.StatusOK {
		return nil, providerError(status, body)
	}

	var roomResp createRoomResponse
	if err := json.Unmarshal(body, &roomResp); err != nil {
		return nil, fmt.Errorf("failed to decode room response: %w", err)
	}

	return &domain.Room{Name: roomResp.Name, URL: roomResp.URL}, nil
}

// CreateToken mints a meeting token for a room.
// This is a pure API call with no business logic.
func (c *Client) CreateToken(ctx context.Context, req domain.CreateTokenRequest) (string, error) {
	payload := createTokenRequest{
		Properties: tokenProperties{
			RoomName:          req.RoomName,
			UserName:          req.Identity,
			IsOwner:           req.IsOwner,
			Exp:               req.ExpiresAt,
			EnableScreenshare: req.ScreenShareAllowed,
		},
	}

	status, body, err := c.doRequest(ctx, http.MethodPost, "/meeting-tokens", payload)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return "", providerError(status, body)
	}

	var tokenResp createTokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}

	return tokenResp.Token, nil
}

// DeleteRoom deletes a room from the provider. Deleting a room that no longer
// exists is treated as success so cleanup sweeps stay idempotent.
func (c *Client) DeleteRoom(ctx context.Context, name string) error {
	status, body, err := c.doRequest(ctx, http.MethodDelete, "/rooms/"+url.PathEscape(name), nil)
	if err != nil {
		return err
	}
	if status == http.StatusNotFound {
		return nil
	}
	if status != http.StatusOK && status != http.StatusNoContent {
		return providerError(status, body)
	}

	return nil
}
