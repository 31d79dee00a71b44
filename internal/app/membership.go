package app

import (
	"sort"
	"sync"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/rs/zerolog/log"
)

// Membership maps signaling rooms to the sessions joined to them.
// A session is in at most one room; both indexes change under the same lock.
type Membership struct {
	mu     sync.RWMutex
	rooms  map[domain.RoomID]map[core.SessionID]struct{}
	roomOf map[core.SessionID]domain.RoomID
}

type RoomInfo struct {
	Room    domain.RoomID `json:"roomId"`
	Members int           `json:"members"`
}

func NewMembership() *Membership {
	return &Membership{
		rooms:  make(map[domain.RoomID]map[core.SessionID]struct{}),
		roomOf: make(map[core.SessionID]domain.RoomID),
	}
}

// Join adds sid to room. Joining the current room again is a no-op;
// joining another room first leaves the old one, which is returned as prev.
func (m *Membership) Join(room domain.RoomID, sid core.SessionID) (prev domain.RoomID, added bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.roomOf[sid]; ok {
		if cur == room {
			return "", false
		}
		m.removeLocked(cur, sid)
		prev = cur
	}
	set, ok := m.rooms[room]
	if !ok {
		set = make(map[core.SessionID]struct{})
		m.rooms[room] = set
		log.Debug().Str("module", "app.membership").Str("room", string(room)).Msg("room opened")
	}
	set[sid] = struct{}{}
	m.roomOf[sid] = room
	return prev, true
}

func (m *Membership) Leave(room domain.RoomID, sid core.SessionID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.roomOf[sid]; !ok || cur != room {
		return false
	}
	m.removeLocked(room, sid)
	return true
}

// LeaveAll removes sid from every room and returns the rooms it left.
func (m *Membership) LeaveAll(sid core.SessionID) []domain.RoomID {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.roomOf[sid]
	if !ok {
		return nil
	}
	m.removeLocked(cur, sid)
	return []domain.RoomID{cur}
}

func (m *Membership) removeLocked(room domain.RoomID, sid core.SessionID) {
	delete(m.roomOf, sid)
	set, ok := m.rooms[room]
	if !ok {
		return
	}
	delete(set, sid)
	if len(set) == 0 {
		delete(m.rooms, room)
		log.Debug().Str("module", "app.membership").Str("room", string(room)).Msg("room emptied")
	}
}

// Members returns a snapshot; callers send to it without holding the lock.
func (m *Membership) Members(room domain.RoomID) []core.SessionID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	set := m.rooms[room]
	out := make([]core.SessionID, 0, len(set))
	for sid := range set {
		out = append(out, sid)
	}
	return out
}

func (m *Membership) IsMember(room domain.RoomID, sid core.SessionID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cur, ok := m.roomOf[sid]
	return ok && cur == room
}

func (m *Membership) RoomOf(sid core.SessionID) (domain.RoomID, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.roomOf[sid]
	return room, ok
}

// List returns the non-empty rooms ordered by id.
func (m *Membership) List() []RoomInfo {
	m.mu.RLock()
	out := make([]RoomInfo, 0, len(m.rooms))
	for id, set := range m.rooms {
		out = append(out, RoomInfo{Room: id, Members: len(set)})
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Room < out[j].Room })
	return out
}
