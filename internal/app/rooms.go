package app

import (
	"context"
	"errors"
	"time"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/dkeye/Huddle/internal/metrics"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

// RoomService validates input, hashes passwords and applies the expiry rule
// on top of a core.RoomStore. It holds no mutable state of its own.
type RoomService struct {
	store      core.RoomStore
	now        func() time.Time
	bcryptCost int
	metrics    *metrics.Metrics
}

type RoomOption func(*RoomService)

func WithClock(now func() time.Time) RoomOption {
	return func(s *RoomService) { s.now = now }
}

func WithBcryptCost(cost int) RoomOption {
	return func(s *RoomService) { s.bcryptCost = cost }
}

func WithRoomMetrics(m *metrics.Metrics) RoomOption {
	return func(s *RoomService) { s.metrics = m }
}

func NewRoomService(store core.RoomStore, opts ...RoomOption) *RoomService {
	s := &RoomService{store: store, now: time.Now, bcryptCost: bcrypt.DefaultCost}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RoomService) Now() time.Time { return s.now() }

// Create rejects malformed ids before touching the store.
func (s *RoomService) Create(ctx context.Context, rawID string, p domain.RoomParams) (*domain.Room, error) {
	id, err := domain.ParseRoomID(rawID)
	if err != nil {
		return nil, err
	}
	room, err := domain.NewRoom(id, p, s.now())
	if err != nil {
		return nil, err
	}
	if p.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(p.Password), s.bcryptCost)
		if err != nil {
			return nil, err
		}
		room.PasswordHash = hash
	}
	if err := s.store.Insert(ctx, room); err != nil {
		if !errors.Is(err, domain.ErrDuplicateRoom) {
			log.Error().Err(err).Str("module", "app.rooms").Str("room", rawID).Msg("insert failed")
		}
		return nil, err
	}
	s.metrics.RoomCreated()
	log.Info().Str("module", "app.rooms").Str("room", rawID).Int64("lifetime", room.LifetimeSeconds).
		Bool("protected", room.RequiresPassword()).Msg("room created")
	return room, nil
}

// Get treats a logically expired record exactly like a missing one.
func (s *RoomService) Get(ctx context.Context, rawID string) (*domain.Room, error) {
	id, err := domain.ParseRoomID(rawID)
	if err != nil {
		return nil, err
	}
	room, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if room.Expired(s.now()) {
		return nil, domain.ErrRoomNotFound
	}
	return room, nil
}

// Delete reports an expired but unswept room as missing, same as Get.
func (s *RoomService) Delete(ctx context.Context, rawID string) error {
	room, err := s.Get(ctx, rawID)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, room.ID); err != nil {
		return err
	}
	log.Info().Str("module", "app.rooms").Str("room", rawID).Msg("room deleted")
	return nil
}

// CheckPassword compares in constant time. Public rooms accept anything.
func (s *RoomService) CheckPassword(room *domain.Room, password string) error {
	if !room.RequiresPassword() {
		return nil
	}
	if err := bcrypt.CompareHashAndPassword(room.PasswordHash, []byte(password)); err != nil {
		return domain.ErrWrongPassword
	}
	return nil
}
