// Copyright The Classloop Authors.
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/classloop/community-video-service/internal/domain"
	"github.com/classloop/community-video-service/internal/domain/models"
)

// BookingStore implements domain.BookingRepository on PostgreSQL.
type BookingStore struct {
	pool *pgxpool.Pool
}

// Ensure that BookingStore implements domain.BookingRepository
var _ domain.BookingRepository = (*BookingStore)(nil)

// NewBookingStore creates a new booking repository.
func NewBookingStore(pool *pgxpool.Pool) *BookingStore {
	return &BookingStore{pool: pool}
}

func (s *BookingStore) CreateBooking(ctx context.Context, b *models.Booking) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	// DO NOTHING on the payment intent reference makes redelivered payments
	// no-ops; the affected-row count tells the caller which case this was.
	tag, err := s.pool.Exec(ctx, `
INSERT INTO bookings (
  id, lesson_id, community_id, student_id, teacher_id,
  payment_intent_id, payment_status, price_paid_cents, currency, membership_discount,
  scheduled_at, duration_minutes
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (payment_intent_id) DO NOTHING
`, b.ID, b.LessonID, b.CommunityID, b.StudentID, b.TeacherID,
		b.PaymentIntentID, b.PaymentStatus, b.PricePaidCents, b.Currency, b.MembershipDiscount,
		b.ScheduledAt, b.DurationMinutes)
	if err != nil {
		return false, domain.NewInternalError("failed to insert booking", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *BookingStore) GetBookingContext(ctx context.Context, bookingID string) (*models.BookingContext, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var c models.BookingContext
	err := s.pool.QueryRow(ctx, `
SELECT
  b.id, b.lesson_id, b.community_id, b.student_id, b.teacher_id,
  b.payment_intent_id, b.payment_status, b.price_paid_cents, b.currency, b.membership_discount,
  b.scheduled_at, b.duration_minutes,
  b.room_name, b.room_url, b.room_created_at, b.room_expires_at,
  b.teacher_token, b.student_token,
  b.teacher_joined_at, b.student_joined_at, b.session_started_at, b.session_ended_at,
  b.created_at, b.updated_at,
  l.title, l.location_mode,
  c.slug, c.creator_id,
  t.email, st.email
FROM bookings b
JOIN lessons l ON l.id = b.lesson_id
JOIN communities c ON c.id = b.community_id
JOIN users t ON t.id = b.teacher_id
JOIN users st ON st.id = b.student_id
WHERE b.id = $1
`, bookingID).Scan(
		&c.ID, &c.LessonID, &c.CommunityID, &c.StudentID, &c.TeacherID,
		&c.PaymentIntentID, &c.PaymentStatus, &c.PricePaidCents, &c.Currency, &c.MembershipDiscount,
		&c.ScheduledAt, &c.DurationMinutes,
		&c.RoomName, &c.RoomURL, &c.RoomCreatedAt, &c.RoomExpiresAt,
		&c.TeacherToken, &c.StudentToken,
		&c.TeacherJoinedAt, &c.StudentJoinedAt, &c.SessionStartedAt, &c.SessionEndedAt,
		&c.CreatedAt, &c.UpdatedAt,
		&c.LessonTitle, &c.LocationMode,
		&c.CommunitySlug, &c.CommunityCreatorID,
		&c.TeacherEmail, &c.StudentEmail,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("booking not found", err)
		}
		return nil, domain.NewInternalError("failed to get booking", err)
	}
	return &c, nil
}

func (s *BookingStore) UpdateBookingRoom(ctx context.Context, bookingID string, fields models.RoomFields) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	// COALESCE keeps columns whose field is nil untouched; only the fields
	// the caller passed are written.
	_, err := s.pool.Exec(ctx, `
UPDATE bookings SET
  room_name       = COALESCE($2, room_name),
  room_url        = COALESCE($3, room_url),
  room_created_at = COALESCE($4, room_created_at),
  room_expires_at = COALESCE($5, room_expires_at),
  teacher_token   = COALESCE($6, teacher_token),
  student_token   = COALESCE($7, student_token),
  updated_at      = NOW()
WHERE id = $1
`, bookingID, fields.RoomName, fields.RoomURL, fields.RoomCreatedAt, fields.RoomExpiresAt,
		fields.TeacherToken, fields.StudentToken)
	if err != nil {
		return domain.NewInternalError("failed to update booking room fields", err)
	}
	return nil
}

func (s *BookingStore) ClaimBookingRoom(ctx context.Context, bookingID, roomName string, expiresAt time.Time) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	// The expiration is written with the claim so a claim orphaned by a
	// crash mid-creation still surfaces in FindExpiredRooms eventually.
	tag, err := s.pool.Exec(ctx, `
UPDATE bookings SET room_name = $2, room_expires_at = $3, updated_at = NOW()
WHERE id = $1 AND room_name IS NULL
`, bookingID, roomName, expiresAt)
	if err != nil {
		return false, domain.NewInternalError("failed to claim booking room", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *BookingStore) ClearBookingRoom(ctx context.Context, bookingID string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := s.pool.Exec(ctx, `
UPDATE bookings SET
  room_name = NULL, room_url = NULL, room_created_at = NULL, room_expires_at = NULL,
  teacher_token = NULL, student_token = NULL, updated_at = NOW()
WHERE id = $1
`, bookingID)
	if err != nil {
		return domain.NewInternalError("failed to clear booking room fields", err)
	}
	return nil
}

func (s *BookingStore) RecordSessionJoin(ctx context.Context, bookingID string, party models.SessionParty, joinedAt time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	// Single statement: the party's joined-at is last-write-wins, while
	// session_started_at is set only on the first join across both parties.
	var query string
	switch party {
	case models.PartyTeacher:
		query = `
UPDATE bookings SET
  teacher_joined_at  = $2,
  session_started_at = COALESCE(session_started_at, $2),
  updated_at         = NOW()
WHERE id = $1
`
	case models.PartyStudent:
		query = `
UPDATE bookings SET
  student_joined_at  = $2,
  session_started_at = COALESCE(session_started_at, $2),
  updated_at         = NOW()
WHERE id = $1
`
	default:
		return domain.NewValidationError("unknown session party: " + string(party))
	}

	tag, err := s.pool.Exec(ctx, query, bookingID, joinedAt)
	if err != nil {
		return domain.NewInternalError("failed to record session join", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFoundError("booking not found")
	}
	return nil
}

func (s *BookingStore) RecordSessionEnd(ctx context.Context, bookingID string, endedAt time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tag, err := s.pool.Exec(ctx, `
UPDATE bookings SET session_ended_at = $2, updated_at = NOW()
WHERE id = $1
`, bookingID, endedAt)
	if err != nil {
		return domain.NewInternalError("failed to record session end", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFoundError("booking not found")
	}
	return nil
}

func (s *BookingStore) FindExpiredRooms(ctx context.Context) ([]models.ExpiredRoom, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx, `
SELECT id, room_name
FROM bookings
WHERE room_name IS NOT NULL AND room_expires_at < NOW()
`)
	if err != nil {
		return nil, domain.NewInternalError("failed to query expired booking rooms", err)
	}
	defer rows.Close()

	var expired []models.ExpiredRoom
	for rows.Next() {
		var e models.ExpiredRoom
		if err := rows.Scan(&e.ID, &e.RoomName); err != nil {
			return nil, domain.NewInternalError("failed to scan expired booking room", err)
		}
		expired = append(expired, e)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewInternalError("failed to iterate expired booking rooms", err)
	}
	return expired, nil
}
