package storage

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
)

type storeFactory func(t *testing.T) core.RoomStore

func backends() map[string]storeFactory {
	return map[string]storeFactory{
		"memory": func(t *testing.T) core.RoomStore { return NewMemoryStore() },
		"sqlite": newTestSQLiteStore,
	}
}

func newTestSQLiteStore(t *testing.T) core.RoomStore {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	store, err := NewSQLiteStore(context.Background(), "sqlite://file:"+name+"?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close(context.Background())
	})
	return store
}

func mustRoom(t *testing.T, id string, lifetime int64, createdAt time.Time) *domain.Room {
	t.Helper()
	layout := "Grid"
	upvote := true
	rate := 3
	dur := 15
	r, err := domain.NewRoom(domain.RoomID(id), domain.RoomParams{
		LifetimeSeconds:    lifetime,
		Layout:             &layout,
		UpvoteEnabled:      &upvote,
		RateLimit:          &rate,
		MaxMessageDuration: &dur,
	}, createdAt)
	if err != nil {
		t.Fatalf("NewRoom: %v", err)
	}
	return r
}

func TestStoreInsertGet(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()
			now := time.Now()
			room := mustRoom(t, "42", 60, now)
			room.PasswordHash = []byte("hash")

			if err := s.Insert(ctx, room); err != nil {
				t.Fatalf("Insert: %v", err)
			}
			got, err := s.Get(ctx, "42")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if got.ID != room.ID || !got.CreatedAt.Equal(room.CreatedAt) || got.LifetimeSeconds != 60 ||
				got.Layout != "Grid" || !got.UpvoteEnabled || got.RateLimit != 3 || got.MaxMessageDuration != 15 ||
				string(got.PasswordHash) != "hash" {
				t.Fatalf("round trip mismatch: %+v vs %+v", got, room)
			}

			if _, err := s.Get(ctx, "43"); !errors.Is(err, domain.ErrRoomNotFound) {
				t.Fatalf("Get missing: %v", err)
			}
		})
	}
}

func TestStoreConcurrentInsertSingleWinner(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()
			const attempts = 50

			var (
				wg        sync.WaitGroup
				mu        sync.Mutex
				winners   []int
				dupes     int
				otherErrs []error
			)
			now := time.Now()
			rooms := make([]*domain.Room, attempts)
			for i := range rooms {
				rooms[i] = mustRoom(t, "777", int64(i+1), now)
			}
			for i := 0; i < attempts; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					err := s.Insert(ctx, rooms[i])
					mu.Lock()
					defer mu.Unlock()
					switch {
					case err == nil:
						winners = append(winners, i)
					case errors.Is(err, domain.ErrDuplicateRoom):
						dupes++
					default:
						otherErrs = append(otherErrs, err)
					}
				}(i)
			}
			wg.Wait()

			if len(otherErrs) > 0 {
				t.Fatalf("unexpected errors: %v", otherErrs)
			}
			if len(winners) != 1 || dupes != attempts-1 {
				t.Fatalf("winners=%d dupes=%d", len(winners), dupes)
			}
			got, err := s.Get(ctx, "777")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if got.LifetimeSeconds != int64(winners[0]+1) {
				t.Fatalf("stored record %d does not match winner %d", got.LifetimeSeconds, winners[0]+1)
			}
		})
	}
}

func TestStoreDeleteExpired(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()
			t0 := time.UnixMilli(1_700_000_000_000)

			for _, r := range []*domain.Room{
				mustRoom(t, "1", 1, t0),
				mustRoom(t, "2", 10, t0),
				mustRoom(t, "3", domain.NeverExpires, t0),
			} {
				if err := s.Insert(ctx, r); err != nil {
					t.Fatalf("Insert %s: %v", r.ID, err)
				}
			}

			n, err := s.DeleteExpired(ctx, t0.Add(999*time.Millisecond))
			if err != nil || n != 0 {
				t.Fatalf("early sweep removed %d (%v)", n, err)
			}
			n, err = s.DeleteExpired(ctx, t0.Add(time.Second))
			if err != nil || n != 1 {
				t.Fatalf("sweep at boundary removed %d (%v)", n, err)
			}
			if _, err := s.Get(ctx, "1"); !errors.Is(err, domain.ErrRoomNotFound) {
				t.Fatalf("expired room still present: %v", err)
			}
			for i := 0; i < 5; i++ {
				if _, err := s.DeleteExpired(ctx, t0.Add(time.Duration(i+1)*time.Hour)); err != nil {
					t.Fatalf("sweep: %v", err)
				}
			}
			if _, err := s.Get(ctx, "3"); err != nil {
				t.Fatalf("never-expiring room swept: %v", err)
			}
			if _, err := s.Get(ctx, "2"); !errors.Is(err, domain.ErrRoomNotFound) {
				t.Fatalf("room 2 should be gone: %v", err)
			}
		})
	}
}

func TestStoreInsertReplacesExpired(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()
			t0 := time.UnixMilli(1_700_000_000_000)

			if err := s.Insert(ctx, mustRoom(t, "5", 1, t0)); err != nil {
				t.Fatalf("Insert: %v", err)
			}
			if err := s.Insert(ctx, mustRoom(t, "5", 30, t0.Add(500*time.Millisecond))); !errors.Is(err, domain.ErrDuplicateRoom) {
				t.Fatalf("live room overwritten: %v", err)
			}
			if err := s.Insert(ctx, mustRoom(t, "5", 30, t0.Add(2*time.Second))); err != nil {
				t.Fatalf("expired room blocked re-creation: %v", err)
			}
			got, err := s.Get(ctx, "5")
			if err != nil || got.LifetimeSeconds != 30 {
				t.Fatalf("Get after replace: %+v, %v", got, err)
			}
		})
	}
}

func TestStoreDelete(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()
			if err := s.Insert(ctx, mustRoom(t, "9", 0, time.Now())); err != nil {
				t.Fatalf("Insert: %v", err)
			}
			if err := s.Delete(ctx, "9"); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if err := s.Delete(ctx, "9"); !errors.Is(err, domain.ErrRoomNotFound) {
				t.Fatalf("second Delete: %v", err)
			}
		})
	}
}

func TestBuildDSN(t *testing.T) {
	cases := []struct{ in, want string }{
		{in: "huddle.db", want: "file:huddle.db?_pragma=busy_timeout=5000"},
		{in: "sqlite://file:x?mode=memory", want: "file:x?mode=memory&_pragma=busy_timeout=5000"},
		{in: "file:/var/lib/huddle/rooms.db", want: "file:/var/lib/huddle/rooms.db?_pragma=busy_timeout=5000"},
	}
	for _, tc := range cases {
		if got := buildDSN(tc.in); got != tc.want {
			t.Fatalf("buildDSN(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
