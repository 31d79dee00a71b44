package core

import (
	"context"
	"time"

	"github.com/dkeye/Huddle/internal/domain"
)

// RoomStore is the authoritative room table.
//
// Insert is a unique insert: it fails with domain.ErrDuplicateRoom while a
// live record with the same id exists. A record that is already expired as of
// room.CreatedAt is replaced. Get returns domain.ErrRoomNotFound for absent
// rooms and never a partially written record. DeleteExpired removes exactly
// the rooms for which Room.Expired(now) holds.
type RoomStore interface {
	Insert(ctx context.Context, room *domain.Room) error
	Get(ctx context.Context, id domain.RoomID) (*domain.Room, error)
	Delete(ctx context.Context, id domain.RoomID) error
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
	Close(ctx context.Context) error
}
