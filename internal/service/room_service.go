// Copyright The Classloop Authors.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/classloop/community-video-service/internal/domain"
	"github.com/classloop/community-video-service/internal/domain/models"
	"github.com/classloop/community-video-service/internal/logging"
	"github.com/classloop/community-video-service/pkg/concurrent"
	"github.com/classloop/community-video-service/pkg/utils"
)

// liveClassRoomPrefix makes live class room names deterministic: a live class
// has exactly one room for its entire existence, so the name itself acts as
// the idempotency key against the provider.
const liveClassRoomPrefix = "live-class-"

// cleanupWorkers bounds the concurrency of the expired-room sweep.
const cleanupWorkers = 4

// RoomService orchestrates the video room lifecycle for bookings and live
// classes: creation, token issuance, session tracking, and expired-room
// cleanup. It holds no state across invocations; every decision re-reads
// persisted state first.
type RoomService struct {
	BookingRepository   domain.BookingRepository
	LiveClassRepository domain.LiveClassRepository
	RoomProvider        domain.RoomProvider
	MessageBuilder      domain.MessageBuilder
	Config              ServiceConfig

	// now is overridable for tests.
	now func() time.Time
}

// NewRoomService creates a new RoomService.
func NewRoomService(
	bookingRepository domain.BookingRepository,
	liveClassRepository domain.LiveClassRepository,
	roomProvider domain.RoomProvider,
	messageBuilder domain.MessageBuilder,
	config ServiceConfig,
) *RoomService {
	return &RoomService{
		BookingRepository:   bookingRepository,
		LiveClassRepository: liveClassRepository,
		RoomProvider:        roomProvider,
		MessageBuilder:      messageBuilder,
		Config:              config,
		now:                 time.Now,
	}
}

// ServiceReady checks if the service is ready for use.
func (s *RoomService) ServiceReady() bool {
	return s.BookingRepository != nil &&
		s.LiveClassRepository != nil &&
		s.RoomProvider != nil &&
		s.MessageBuilder != nil
}

// BookingRoom is the room and token pair attached to a booking.
type BookingRoom struct {
	RoomName      string    `json:"room_name"`
	RoomURL       string    `json:"room_url"`
	RoomExpiresAt time.Time `json:"room_expires_at"`
	TeacherToken  string    `json:"teacher_token"`
	StudentToken  string    `json:"student_token"`
}

// LiveClassRoom is the room attached to a live class. Tokens are minted per
// requester on demand rather than persisted, so none appear here.
type LiveClassRoom struct {
	RoomName      string    `json:"room_name"`
	RoomURL       string    `json:"room_url"`
	RoomExpiresAt time.Time `json:"room_expires_at"`
}

// RoomPreview is the computed room name and expiration for a booking without
// any side effects.
type RoomPreview struct {
	RoomName      string    `json:"room_name"`
	RoomExpiresAt time.Time `json:"room_expires_at"`
}

// CreateRoomForBooking provisions a video room and a token pair for a paid
// booking. The operation is idempotent: a booking that already has a room
// gets its existing room back, never a duplicate.
func (s *RoomService) CreateRoomForBooking(ctx context.Context, bookingID string) (*BookingRoom, error) {
	if !s.ServiceReady() {
		slog.ErrorContext(ctx, "service not initialized", logging.PriorityCritical())
		return nil, domain.NewUnavailableError("service not initialized")
	}

	ctx = logging.AppendCtx(ctx, slog.String("booking_id", bookingID))

	booking, err := s.BookingRepository.GetBookingContext(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	if booking.PaymentStatus != models.PaymentStatusSucceeded {
		slog.WarnContext(ctx, "rejecting room creation for unpaid booking", "payment_status", booking.PaymentStatus)
		return nil, domain.ErrPaymentNotComplete
	}
	if !booking.VideoApplicable() {
		slog.WarnContext(ctx, "rejecting room creation for non-video lesson", "location_mode", booking.LocationMode)
		return nil, domain.ErrVideoNotApplicable
	}

	// Idempotency check: concurrent or redelivered invocations for the same
	// booking must converge to one room. A claim that was never completed
	// (crash or failed release mid-creation) is released once its
	// expiration passes, so a wedged booking heals on the next attempt.
	if booking.HasRoom() {
		if !s.staleRoomClaim(booking) {
			return s.existingBookingRoom(ctx, booking)
		}
		slog.WarnContext(ctx, "releasing stale room claim", "room_name", utils.StringValue(booking.RoomName))
		if err := s.BookingRepository.ClearBookingRoom(ctx, bookingID); err != nil {
			return nil, err
		}
	}

	roomName := s.bookingRoomName(booking.CommunitySlug, booking.ID)
	expiresAt := s.roomExpiration(booking.ScheduledAt, booking.DurationMinutes)

	// Claim the room slot before talking to the provider. Losing the claim
	// means another invocation won the race; converge on its room.
	claimed, err := s.BookingRepository.ClaimBookingRoom(ctx, bookingID, roomName, expiresAt)
	if err != nil {
		return nil, err
	}
	if !claimed {
		slog.InfoContext(ctx, "lost room creation race, returning winner's room")
		booking, err = s.BookingRepository.GetBookingContext(ctx, bookingID)
		if err != nil {
			return nil, err
		}
		return s.existingBookingRoom(ctx, booking)
	}

	room, err := s.RoomProvider.CreateRoom(ctx, domain.CreateRoomRequest{
		Name:             roomName,
		ExpiresAt:        expiresAt.Unix(),
		MaxParticipants:  bookingRoomCapacity,
		RecordingEnabled: s.Config.RecordingEnabled,
	})
	if err != nil {
		s.releaseBookingClaim(ctx, bookingID)
		return nil, err
	}

	teacherToken, studentToken, err := s.mintBookingTokens(ctx, booking, room.Name, expiresAt)
	if err != nil {
		// No partial token set is ever persisted. Tear down the room so the
		// next attempt starts clean.
		if deleteErr := s.RoomProvider.DeleteRoom(ctx, room.Name); deleteErr != nil {
			slog.ErrorContext(ctx, "error deleting room after token failure", logging.ErrKey, deleteErr, "room_name", room.Name)
		}
		s.releaseBookingClaim(ctx, bookingID)
		return nil, err
	}

	now := s.now().UTC()
	err = s.BookingRepository.UpdateBookingRoom(ctx, bookingID, models.RoomFields{
		RoomName:      utils.StringPtr(room.Name),
		RoomURL:       utils.StringPtr(room.URL),
		RoomCreatedAt: utils.TimePtr(now),
		RoomExpiresAt: utils.TimePtr(expiresAt),
		TeacherToken:  utils.StringPtr(teacherToken),
		StudentToken:  utils.StringPtr(studentToken),
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "created booking room", "room_name", room.Name, "room_expires_at", expiresAt)

	result := &BookingRoom{
		RoomName:      room.Name,
		RoomURL:       room.URL,
		RoomExpiresAt: expiresAt,
		TeacherToken:  teacherToken,
		StudentToken:  studentToken,
	}

	if pubErr := s.MessageBuilder.PublishRoomCreated(ctx, map[string]any{
		"booking_id": bookingID,
		"room_name":  room.Name,
	}); pubErr != nil {
		slog.WarnContext(ctx, "error publishing room created event", logging.ErrKey, pubErr)
	}

	return result, nil
}

// GetRoomForBooking returns the booking's active room without creating one.
func (s *RoomService) GetRoomForBooking(ctx context.Context, bookingID string) (*BookingRoom, error) {
	if !s.ServiceReady() {
		slog.ErrorContext(ctx, "service not initialized", logging.PriorityCritical())
		return nil, domain.NewUnavailableError("service not initialized")
	}

	ctx = logging.AppendCtx(ctx, slog.String("booking_id", bookingID))

	booking, err := s.BookingRepository.GetBookingContext(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !booking.HasRoom() {
		return nil, domain.ErrRoomUnavailable
	}
	if booking.RoomExpiresAt != nil && booking.RoomExpiresAt.Before(s.now()) {
		return nil, domain.ErrRoomUnavailable
	}

	return s.existingBookingRoom(ctx, booking)
}

// GenerateTokensForBooking re-mints both capability tokens for a booking's
// existing room, e.g. after the client-side tokens expired, without
// recreating the room.
func (s *RoomService) GenerateTokensForBooking(ctx context.Context, bookingID string) (*BookingRoom, error) {
	if !s.ServiceReady() {
		slog.ErrorContext(ctx, "service not initialized", logging.PriorityCritical())
		return nil, domain.NewUnavailableError("service not initialized")
	}

	ctx = logging.AppendCtx(ctx, slog.String("booking_id", bookingID))

	booking, err := s.BookingRepository.GetBookingContext(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !booking.HasRoom() {
		return nil, domain.ErrRoomUnavailable
	}

	roomName := utils.StringValue(booking.RoomName)

	expiresAt := s.now().UTC().Add(s.Config.fallbackRoomTTL())
	if booking.RoomExpiresAt != nil {
		expiresAt = *booking.RoomExpiresAt
	}

	teacherToken, studentToken, err := s.mintBookingTokens(ctx, booking, roomName, expiresAt)
	if err != nil {
		return nil, err
	}

	err = s.BookingRepository.UpdateBookingRoom(ctx, bookingID, models.RoomFields{
		TeacherToken: utils.StringPtr(teacherToken),
		StudentToken: utils.StringPtr(studentToken),
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "re-minted booking tokens", "room_name", roomName)

	return &BookingRoom{
		RoomName:      roomName,
		RoomURL:       utils.StringValue(booking.RoomURL),
		RoomExpiresAt: expiresAt,
		TeacherToken:  teacherToken,
		StudentToken:  studentToken,
	}, nil
}

// StartSession records the party's join. The first join across both parties
// also starts the session; the repository does both in one statement.
func (s *RoomService) StartSession(ctx context.Context, bookingID string, party models.SessionParty) error {
	if !s.ServiceReady() {
		slog.ErrorContext(ctx, "service not initialized", logging.PriorityCritical())
		return domain.NewUnavailableError("service not initialized")
	}
	if party != models.PartyTeacher && party != models.PartyStudent {
		return domain.NewValidationError("unknown session party")
	}
	return s.BookingRepository.RecordSessionJoin(ctx, bookingID, party, s.now().UTC())
}

// EndSession records the end of a booking's session.
func (s *RoomService) EndSession(ctx context.Context, bookingID string) error {
	if !s.ServiceReady() {
		slog.ErrorContext(ctx, "service not initialized", logging.PriorityCritical())
		return domain.NewUnavailableError("service not initialized")
	}
	return s.BookingRepository.RecordSessionEnd(ctx, bookingID, s.now().UTC())
}

// PreviewRoomForBooking computes the room name and expiration the booking
// would get, with no side effects. The random name suffix differs per call.
func (s *RoomService) PreviewRoomForBooking(ctx context.Context, bookingID string) (*RoomPreview, error) {
	if !s.ServiceReady() {
		slog.ErrorContext(ctx, "service not initialized", logging.PriorityCritical())
		return nil, domain.NewUnavailableError("service not initialized")
	}

	booking, err := s.BookingRepository.GetBookingContext(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	return &RoomPreview{
		RoomName:      s.bookingRoomName(booking.CommunitySlug, booking.ID),
		RoomExpiresAt: s.roomExpiration(booking.ScheduledAt, booking.DurationMinutes),
	}, nil
}

// CreateRoomForLiveClass provisions the room for a live class. The room name
// is deterministic, so a provider-side "already exists" is idempotent success.
func (s *RoomService) CreateRoomForLiveClass(ctx context.Context, classID string) (*LiveClassRoom, error) {
	if !s.ServiceReady() {
		slog.ErrorContext(ctx, "service not initialized", logging.PriorityCritical())
		return nil, domain.NewUnavailableError("service not initialized")
	}

	ctx = logging.AppendCtx(ctx, slog.String("live_class_id", classID))

	class, err := s.LiveClassRepository.GetLiveClassContext(ctx, classID)
	if err != nil {
		return nil, err
	}

	if class.Status == models.LiveClassStatusCancelled {
		return nil, domain.NewValidationError("live class is cancelled")
	}

	if class.HasRoom() {
		return &LiveClassRoom{
			RoomName:      utils.StringValue(class.RoomName),
			RoomURL:       utils.StringValue(class.RoomURL),
			RoomExpiresAt: utils.TimeValue(class.RoomExpiresAt),
		}, nil
	}

	roomName := liveClassRoomPrefix + class.ID
	scheduledAt := class.ScheduledAt
	expiresAt := s.roomExpiration(&scheduledAt, class.DurationMinutes)

	room, err := s.RoomProvider.CreateRoom(ctx, domain.CreateRoomRequest{
		Name:             roomName,
		ExpiresAt:        expiresAt.Unix(),
		MaxParticipants:  s.Config.liveClassCapacity(),
		RecordingEnabled: s.Config.RecordingEnabled,
	})
	if err != nil {
		if !isRoomExistsError(err) {
			return nil, err
		}
		// Another invocation created the room first; recover its URL.
		slog.InfoContext(ctx, "live class room already exists, reusing it", "room_name", roomName)
		room, err = s.RoomProvider.GetRoom(ctx, roomName)
		if err != nil {
			return nil, err
		}
	}

	now := s.now().UTC()
	err = s.LiveClassRepository.UpdateLiveClassRoom(ctx, classID, models.RoomFields{
		RoomName:      utils.StringPtr(room.Name),
		RoomURL:       utils.StringPtr(room.URL),
		RoomCreatedAt: utils.TimePtr(now),
		RoomExpiresAt: utils.TimePtr(expiresAt),
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "created live class room", "room_name", room.Name, "room_expires_at", expiresAt)

	if pubErr := s.MessageBuilder.PublishRoomCreated(ctx, map[string]any{
		"live_class_id": classID,
		"room_name":     room.Name,
	}); pubErr != nil {
		slog.WarnContext(ctx, "error publishing room created event", logging.ErrKey, pubErr)
	}

	return &LiveClassRoom{
		RoomName:      room.Name,
		RoomURL:       room.URL,
		RoomExpiresAt: expiresAt,
	}, nil
}

// GenerateTokenForLiveClass mints a capability token for one requester
// joining a live class. The host gets a privileged token.
func (s *RoomService) GenerateTokenForLiveClass(ctx context.Context, classID, requesterID string) (string, error) {
	if !s.ServiceReady() {
		slog.ErrorContext(ctx, "service not initialized", logging.PriorityCritical())
		return "", domain.NewUnavailableError("service not initialized")
	}

	ctx = logging.AppendCtx(ctx, slog.String("live_class_id", classID))

	class, err := s.LiveClassRepository.GetLiveClassContext(ctx, classID)
	if err != nil {
		return "", err
	}
	if !class.HasRoom() {
		return "", domain.ErrRoomUnavailable
	}

	expiresAt := s.now().UTC().Add(s.Config.fallbackRoomTTL())
	if class.RoomExpiresAt != nil {
		expiresAt = *class.RoomExpiresAt
	}

	isHost := requesterID == class.HostID
	return s.RoomProvider.CreateToken(ctx, domain.CreateTokenRequest{
		RoomName:           utils.StringValue(class.RoomName),
		Identity:           requesterID,
		IsOwner:            isHost,
		ExpiresAt:          expiresAt.Unix(),
		ScreenShareAllowed: isHost,
	})
}

// CleanupExpiredRooms sweeps bookings and live classes whose room expiration
// has passed: best-effort delete of the provider room, then nulling the local
// room fields. Safe to run concurrently with itself; already-cleaned rows are
// excluded by the non-null room name filter.
func (s *RoomService) CleanupExpiredRooms(ctx context.Context) error {
	if !s.ServiceReady() {
		slog.ErrorContext(ctx, "service not initialized", logging.PriorityCritical())
		return domain.NewUnavailableError("service not initialized")
	}

	expiredBookings, err := s.BookingRepository.FindExpiredRooms(ctx)
	if err != nil {
		return err
	}
	expiredClasses, err := s.LiveClassRepository.FindExpiredRooms(ctx)
	if err != nil {
		return err
	}

	if len(expiredBookings) == 0 && len(expiredClasses) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "sweeping expired rooms",
		"expired_bookings", len(expiredBookings),
		"expired_live_classes", len(expiredClasses),
	)

	var functions []func() error
	for _, expired := range expiredBookings {
		functions = append(functions, func() error {
			return s.cleanupRoom(ctx, expired, s.BookingRepository.ClearBookingRoom)
		})
	}
	for _, expired := range expiredClasses {
		functions = append(functions, func() error {
			return s.cleanupRoom(ctx, expired, s.LiveClassRepository.ClearLiveClassRoom)
		})
	}

	pool := concurrent.NewWorkerPool(cleanupWorkers)
	if errs := pool.RunAll(ctx, functions...); len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// cleanupRoom retires one expired room. A failed provider delete is logged
// and does not block nulling the local fields; the orphaned room expires on
// the provider's side regardless.
func (s *RoomService) cleanupRoom(ctx context.Context, expired models.ExpiredRoom, clear func(context.Context, string) error) error {
	if err := s.RoomProvider.DeleteRoom(ctx, expired.RoomName); err != nil {
		slog.WarnContext(ctx, "error deleting expired room from provider",
			logging.ErrKey, err, "room_name", expired.RoomName)
	}
	if err := clear(ctx, expired.ID); err != nil {
		slog.ErrorContext(ctx, "error clearing expired room fields",
			logging.ErrKey, err, "room_name", expired.RoomName, "id", expired.ID)
		return err
	}
	slog.DebugContext(ctx, "cleaned up expired room", "room_name", expired.RoomName, "id", expired.ID)
	return nil
}

// mintBookingTokens requests the privileged teacher token and the
// non-privileged student token concurrently. Both succeed or the whole
// operation fails.
func (s *RoomService) mintBookingTokens(ctx context.Context, booking *models.BookingContext, roomName string, expiresAt time.Time) (string, string, error) {
	var teacherToken, studentToken string

	pool := concurrent.NewWorkerPool(2)
	err := pool.Run(ctx,
		func() error {
			token, err := s.RoomProvider.CreateToken(ctx, domain.CreateTokenRequest{
				RoomName:           roomName,
				Identity:           booking.TeacherID,
				IsOwner:            true,
				ExpiresAt:          expiresAt.Unix(),
				ScreenShareAllowed: true,
			})
			if err != nil {
				return err
			}
			teacherToken = token
			return nil
		},
		func() error {
			token, err := s.RoomProvider.CreateToken(ctx, domain.CreateTokenRequest{
				RoomName:           roomName,
				Identity:           booking.StudentID,
				IsOwner:            false,
				ExpiresAt:          expiresAt.Unix(),
				ScreenShareAllowed: true,
			})
			if err != nil {
				return err
			}
			studentToken = token
			return nil
		},
	)
	if err != nil {
		return "", "", err
	}

	return teacherToken, studentToken, nil
}

// existingBookingRoom returns the room already attached to the booking. A
// claimed-but-unfinished room (name set, URL missing) means a concurrent
// creation is still in flight.
func (s *RoomService) existingBookingRoom(ctx context.Context, booking *models.BookingContext) (*BookingRoom, error) {
	if utils.StringValue(booking.RoomURL) == "" {
		slog.WarnContext(ctx, "booking room creation still in flight", "room_name", utils.StringValue(booking.RoomName))
		return nil, domain.NewConflictError("room creation already in progress")
	}

	slog.DebugContext(ctx, "booking already has a room", "room_name", utils.StringValue(booking.RoomName))

	return &BookingRoom{
		RoomName:      utils.StringValue(booking.RoomName),
		RoomURL:       utils.StringValue(booking.RoomURL),
		RoomExpiresAt: utils.TimeValue(booking.RoomExpiresAt),
		TeacherToken:  utils.StringValue(booking.TeacherToken),
		StudentToken:  utils.StringValue(booking.StudentToken),
	}, nil
}

// staleRoomClaim reports whether the booking holds a room-name claim that was
// never completed (no URL stored) and whose recorded expiration has passed.
func (s *RoomService) staleRoomClaim(booking *models.BookingContext) bool {
	return utils.StringValue(booking.RoomURL) == "" &&
		booking.RoomExpiresAt != nil &&
		booking.RoomExpiresAt.Before(s.now())
}

// releaseBookingClaim undoes a room-name claim after a failed creation so a
// later attempt starts from a clean slate.
func (s *RoomService) releaseBookingClaim(ctx context.Context, bookingID string) {
	if err := s.BookingRepository.ClearBookingRoom(ctx, bookingID); err != nil {
		slog.ErrorContext(ctx, "error releasing room claim after failed creation", logging.ErrKey, err)
	}
}

// bookingRoomName derives a provider-safe room name: sanitized community slug
// prefix, a short booking id fragment, and a random suffix. The suffix guards
// against provider-side collision when two invocations race past the
// idempotency check.
func (s *RoomService) bookingRoomName(communitySlug, bookingID string) string {
	fragment := bookingID
	if len(fragment) > 8 {
		fragment = fragment[:8]
	}
	suffix := randomSuffix()

	// Budget the slug so the fixed parts always fit.
	maxLen := s.Config.roomNameMaxLength()
	slug := sanitizeRoomNamePart(communitySlug)
	if budget := maxLen - len(fragment) - len(suffix) - 2; len(slug) > budget {
		slug = strings.Trim(slug[:max(budget, 0)], "-")
	}
	if slug == "" {
		slug = "lesson"
	}

	name := slug + "-" + sanitizeRoomNamePart(fragment) + "-" + suffix
	if len(name) > maxLen {
		name = name[:maxLen]
	}
	return strings.Trim(name, "-")
}

// roomExpiration computes when a room should expire: scheduled start (or now
// for "join anytime" bookings) plus the session duration plus a buffer. A
// result not strictly in the future, e.g. from a stale scheduled time, falls
// back to a fixed TTL from now.
func (s *RoomService) roomExpiration(scheduledAt *time.Time, durationMinutes int) time.Time {
	now := s.now().UTC()

	base := now
	if scheduledAt != nil {
		base = scheduledAt.UTC()
	}

	expiresAt := base.Add(time.Duration(durationMinutes)*time.Minute + s.Config.roomExpirationBuffer())
	if !expiresAt.After(now) {
		expiresAt = now.Add(s.Config.fallbackRoomTTL())
	}
	return expiresAt
}

// sanitizeRoomNamePart lower-cases the input and strips everything outside
// the provider's allowed charset, collapsing runs of dashes.
func sanitizeRoomNamePart(s string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(s) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

// randomSuffix returns a short random hex string.
func randomSuffix() string {
	buf := make([]byte, 3)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand only fails when the OS entropy source is broken;
		// fall back to a time-derived suffix rather than aborting.
		return hex.EncodeToString([]byte{byte(time.Now().UnixNano()), byte(time.Now().UnixNano() >> 8), byte(time.Now().UnixNano() >> 16)})
	}
	return hex.EncodeToString(buf)
}

// isRoomExistsError reports whether a provider error indicates the room name
// is already taken.
func isRoomExistsError(err error) bool {
	var providerErr *domain.ProviderError
	if !errors.As(err, &providerErr) {
		return false
	}
	return providerErr.StatusCode == 400 && strings.Contains(providerErr.Payload, "already exists")
}
