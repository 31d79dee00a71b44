package storage

import (
	"context"
	"sync"
	"time"

	"github.com/dkeye/Huddle/internal/domain"
	"github.com/rs/zerolog/log"
)

// MemoryStore is a threadsafe in-process room table.
// Records are cloned on the way in and out so callers never share state with it.
type MemoryStore struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]*domain.Room
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rooms: make(map[domain.RoomID]*domain.Room)}
}

func (s *MemoryStore) Insert(_ context.Context, room *domain.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.rooms[room.ID]; ok {
		if !old.Expired(room.CreatedAt) {
			return domain.ErrDuplicateRoom
		}
		log.Debug().Str("module", "storage.memory").Str("room", string(room.ID)).Msg("replacing expired room")
	}
	s.rooms[room.ID] = room.Clone()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id domain.RoomID) (*domain.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[id]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	return r.Clone(), nil
}

func (s *MemoryStore) Delete(_ context.Context, id domain.RoomID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[id]; !ok {
		return domain.ErrRoomNotFound
	}
	delete(s.rooms, id)
	return nil
}

func (s *MemoryStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, r := range s.rooms {
		if r.Expired(now) {
			delete(s.rooms, id)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) Close(context.Context) error { return nil }

// Len is used by tests and metrics.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}
