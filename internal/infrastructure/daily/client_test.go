// Copyright The Classloop Authors.
// SPDX-License-Identifier: MIT

package daily

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/classloop/community-video-service/internal/domain"
)

func newTestClient(serverURL string) *Client {
	return NewClient(Config{
		APIKey:         "test-api-key",
		BaseURL:        serverURL,
		Timeout:        time.Second,
		MaxRetries:     2,
		InitialBackoff: time.Millisecond,
	})
}

func TestNewClient(t *testing.T) {
	tests := []struct {
		name            string
		config          Config
		expectedBaseURL string
		expectedTimeout time.Duration
		expectedRetries int
	}{
		{
			name: "with all config provided",
			config: Config{
				APIKey:         "key",
				BaseURL:        "https://custom.example.com/v1",
				Timeout:        30 * time.Second,
				MaxRetries:     5,
				InitialBackoff: 2 * time.Second,
			},
			expectedBaseURL: "https://custom.example.com/v1",
			expectedTimeout: 30 * time.Second,
			expectedRetries: 5,
		},
		{
			name:            "with minimal config - uses defaults",
			config:          Config{APIKey: "key"},
			expectedBaseURL: BaseURL,
			expectedTimeout: DefaultClientTimeout,
			expectedRetries: DefaultMaxRetries,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewClient(tt.config)
			if client == nil {
				t.Fatal("NewClient returned nil")
			}
			if client.config.BaseURL != tt.expectedBaseURL {
				t.Errorf("BaseURL = %q, want %q", client.config.BaseURL, tt.expectedBaseURL)
			}
			if client.config.Timeout != tt.expectedTimeout {
				t.Errorf("Timeout = %v, want %v", client.config.Timeout, tt.expectedTimeout)
			}
			if client.config.MaxRetries != tt.expectedRetries {
				t.Errorf("MaxRetries = %d, want %d", client.config.MaxRetries, tt.expectedRetries)
			}
		})
	}
}

func TestClient_CreateRoom(t *testing.T) {
	t.Run("sends bearer auth and decodes the response", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || r.URL.Path != "/rooms" {
				t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			}
			if got := r.Header.Get("Authorization"); got != "Bearer test-api-key" {
				t.Errorf("Authorization = %q, want bearer token", got)
			}
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"name":"spanish-circle-abc","url":"https://rooms.example.com/spanish-circle-abc"}`))
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		room, err := client.CreateRoom(context.Background(), domain.CreateRoomRequest{
			Name:            "spanish-circle-abc",
			ExpiresAt:       time.Now().Add(time.Hour).Unix(),
			MaxParticipants: 2,
		})
		if err != nil {
			t.Fatalf("CreateRoom failed: %v", err)
		}
		if room.Name != "spanish-circle-abc" {
			t.Errorf("Name = %q", room.Name)
		}
		if room.URL != "https://rooms.example.com/spanish-circle-abc" {
			t.Errorf("URL = %q", room.URL)
		}
	})

	t.Run("retries 5xx and succeeds", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"name":"room","url":"https://rooms.example.com/room"}`))
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		room, err := client.CreateRoom(context.Background(), domain.CreateRoomRequest{Name: "room"})
		if err != nil {
			t.Fatalf("CreateRoom failed: %v", err)
		}
		if room.Name != "room" {
			t.Errorf("Name = %q", room.Name)
		}
		if got := calls.Load(); got != 3 {
			t.Errorf("server called %d times, want 3", got)
		}
	})

	t.Run("does not retry 4xx and surfaces the provider payload", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid-request-error","info":"a room named room already exists"}`))
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		_, err := client.CreateRoom(context.Background(), domain.CreateRoomRequest{Name: "room"})

		var providerErr *domain.ProviderError
		if !errors.As(err, &providerErr) {
			t.Fatalf("expected ProviderError, got %v", err)
		}
		if providerErr.StatusCode != http.StatusBadRequest {
			t.Errorf("StatusCode = %d", providerErr.StatusCode)
		}
		if !strings.Contains(providerErr.Payload, "already exists") {
			t.Errorf("Payload = %q", providerErr.Payload)
		}
		if got := calls.Load(); got != 1 {
			t.Errorf("server called %d times, want 1", got)
		}
	})

	t.Run("retries rate limit responses", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"name":"room","url":"https://rooms.example.com/room"}`))
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		if _, err := client.CreateRoom(context.Background(), domain.CreateRoomRequest{Name: "room"}); err != nil {
			t.Fatalf("CreateRoom failed: %v", err)
		}
		if got := calls.Load(); got != 2 {
			t.Errorf("server called %d times, want 2", got)
		}
	})

	t.Run("exhausted retries return the provider error", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":"server-error"}`))
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		_, err := client.CreateRoom(context.Background(), domain.CreateRoomRequest{Name: "room"})

		var providerErr *domain.ProviderError
		if !errors.As(err, &providerErr) {
			t.Fatalf("expected ProviderError, got %v", err)
		}
		if got := calls.Load(); got != 3 {
			t.Errorf("server called %d times, want 3 (1 + 2 retries)", got)
		}
	})
}

func TestClient_CreateToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/meeting-tokens" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"token":"minted-token"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	token, err := client.CreateToken(context.Background(), domain.CreateTokenRequest{
		RoomName: "room",
		Identity: "teacher-1",
		IsOwner:  true,
	})
	if err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}
	if token != "minted-token" {
		t.Errorf("token = %q", token)
	}
}

func TestClient_GetRoom(t *testing.T) {
	t.Run("not found maps to a NotFound error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"not-found"}`))
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		_, err := client.GetRoom(context.Background(), "missing")
		if domain.GetErrorType(err) != domain.ErrorTypeNotFound {
			t.Errorf("expected NotFound error, got %v", err)
		}
	})

	t.Run("returns the room", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/rooms/live-class-class-1" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"name":"live-class-class-1","url":"https://rooms.example.com/live-class-class-1"}`))
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		room, err := client.GetRoom(context.Background(), "live-class-class-1")
		if err != nil {
			t.Fatalf("GetRoom failed: %v", err)
		}
		if room.URL != "https://rooms.example.com/live-class-class-1" {
			t.Errorf("URL = %q", room.URL)
		}
	})
}

func TestClient_DeleteRoom(t *testing.T) {
	t.Run("deleting a missing room is success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		if err := client.DeleteRoom(context.Background(), "already-gone"); err != nil {
			t.Errorf("DeleteRoom returned %v, want nil", err)
		}
	})

	t.Run("deletes an existing room", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodDelete || r.URL.Path != "/rooms/room-1" {
				t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		if err := client.DeleteRoom(context.Background(), "room-1"); err != nil {
			t.Errorf("DeleteRoom failed: %v", err)
		}
	})
}

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		err        error
		expected   bool
	}{
		{name: "network error", err: errors.New("connection refused"), expected: true},
		{name: "context canceled", err: context.Canceled, expected: false},
		{name: "deadline exceeded", err: context.DeadlineExceeded, expected: false},
		{name: "500", statusCode: 500, expected: true},
		{name: "503", statusCode: 503, expected: true},
		{name: "429", statusCode: 429, expected: true},
		{name: "400", statusCode: 400, expected: false},
		{name: "404", statusCode: 404, expected: false},
		{name: "200", statusCode: 200, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := shouldRetry(tt.statusCode, tt.err); got != tt.expected {
				t.Errorf("shouldRetry(%d, %v) = %v, want %v", tt.statusCode, tt.err, got, tt.expected)
			}
		})
	}
}
