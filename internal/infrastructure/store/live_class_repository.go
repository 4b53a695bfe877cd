// Copyright The Classloop Authors.
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/classloop/community-video-service/internal/domain"
	"github.com/classloop/community-video-service/internal/domain/models"
)

// LiveClassStore implements domain.LiveClassRepository on PostgreSQL.
type LiveClassStore struct {
	pool *pgxpool.Pool
}

// Ensure that LiveClassStore implements domain.LiveClassRepository
var _ domain.LiveClassRepository = (*LiveClassStore)(nil)

// NewLiveClassStore creates a new live class repository.
func NewLiveClassStore(pool *pgxpool.Pool) *LiveClassStore {
	return &LiveClassStore{pool: pool}
}

func (s *LiveClassStore) GetLiveClassContext(ctx context.Context, classID string) (*models.LiveClassContext, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var c models.LiveClassContext
	err := s.pool.QueryRow(ctx, `
SELECT
  lc.id, lc.community_id, lc.host_id, lc.title,
  lc.scheduled_at, lc.duration_minutes, lc.status,
  lc.room_name, lc.room_url, lc.room_created_at, lc.room_expires_at,
  lc.session_started_at, lc.session_ended_at,
  lc.created_at, lc.updated_at,
  c.slug, u.email
FROM live_classes lc
JOIN communities c ON c.id = lc.community_id
JOIN users u ON u.id = lc.host_id
WHERE lc.id = $1
`, classID).Scan(
		&c.ID, &c.CommunityID, &c.HostID, &c.Title,
		&c.ScheduledAt, &c.DurationMinutes, &c.Status,
		&c.RoomName, &c.RoomURL, &c.RoomCreatedAt, &c.RoomExpiresAt,
		&c.SessionStartedAt, &c.SessionEndedAt,
		&c.CreatedAt, &c.UpdatedAt,
		&c.CommunitySlug, &c.HostEmail,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("live class not found", err)
		}
		return nil, domain.NewInternalError("failed to get live class", err)
	}
	return &c, nil
}

func (s *LiveClassStore) UpdateLiveClassRoom(ctx context.Context, classID string, fields models.RoomFields) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := s.pool.Exec(ctx, `
UPDATE live_classes SET
  room_name       = COALESCE($2, room_name),
  room_url        = COALESCE($3, room_url),
  room_created_at = COALESCE($4, room_created_at),
  room_expires_at = COALESCE($5, room_expires_at),
  updated_at      = NOW()
WHERE id = $1
`, classID, fields.RoomName, fields.RoomURL, fields.RoomCreatedAt, fields.RoomExpiresAt)
	if err != nil {
		return domain.NewInternalError("failed to update live class room fields", err)
	}
	return nil
}

func (s *LiveClassStore) ClearLiveClassRoom(ctx context.Context, classID string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := s.pool.Exec(ctx, `
UPDATE live_classes SET
  room_name = NULL, room_url = NULL, room_created_at = NULL, room_expires_at = NULL,
  updated_at = NOW()
WHERE id = $1
`, classID)
	if err != nil {
		return domain.NewInternalError("failed to clear live class room fields", err)
	}
	return nil
}

func (s *LiveClassStore) FindExpiredRooms(ctx context.Context) ([]models.ExpiredRoom, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx, `
SELECT id, room_name
FROM live_classes
WHERE room_name IS NOT NULL AND room_expires_at < NOW()
`)
	if err != nil {
		return nil, domain.NewInternalError("failed to query expired live class rooms", err)
	}
	defer rows.Close()

	var expired []models.ExpiredRoom
	for rows.Next() {
		var e models.ExpiredRoom
		if err := rows.Scan(&e.ID, &e.RoomName); err != nil {
			return nil, domain.NewInternalError("failed to scan expired live class room", err)
		}
		expired = append(expired, e)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewInternalError("failed to iterate expired live class rooms", err)
	}
	return expired, nil
}
