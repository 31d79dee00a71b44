package app

import (
	"sync"
	"time"

	"github.com/dkeye/Huddle/internal/adapters/storage"
	"golang.org/x/crypto/bcrypt"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestRooms(clock *fakeClock) (*RoomService, *storage.MemoryStore) {
	store := storage.NewMemoryStore()
	return NewRoomService(store, WithClock(clock.Now), WithBcryptCost(bcrypt.MinCost)), store
}
