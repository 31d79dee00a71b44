// Package domain contains entities and the rules that need no transport or storage.
package domain

import (
	"math"
	"regexp"
	"time"
)

const (
	// NeverExpires is the lifetime sentinel for rooms that are never swept.
	NeverExpires int64 = 0

	// MaxLifetimeSeconds is the longest lifetime a time.Duration can hold.
	// Longer lifetimes are kept as given but never expire.
	MaxLifetimeSeconds = int64(math.MaxInt64 / int64(time.Second))

	DefaultLayout             = "Default"
	DefaultMaxMessageDuration = 60
)

var roomIDPattern = regexp.MustCompile(`^[0-9]+$`)

type RoomID string

// ParseRoomID accepts only non-empty strings of decimal digits.
func ParseRoomID(raw string) (RoomID, error) {
	if !roomIDPattern.MatchString(raw) {
		return "", ErrInvalidRoomID
	}
	return RoomID(raw), nil
}

// RoomParams is what a caller supplies on creation. Nil pointers mean "absent".
type RoomParams struct {
	Password           string
	LifetimeSeconds    int64
	Layout             *string
	UpvoteEnabled      *bool
	RateLimit          *int
	MaxMessageDuration *int
}

// Room is immutable once stored.
type Room struct {
	ID                 RoomID
	PasswordHash       []byte
	CreatedAt          time.Time
	LifetimeSeconds    int64
	Layout             string
	UpvoteEnabled      bool
	RateLimit          int
	MaxMessageDuration int
}

// NewRoom validates params and fills defaults. The password hash is set by the caller.
func NewRoom(id RoomID, p RoomParams, createdAt time.Time) (*Room, error) {
	if p.LifetimeSeconds < 0 {
		return nil, ErrInvalidParams
	}
	r := &Room{
		ID:                 id,
		CreatedAt:          time.UnixMilli(createdAt.UnixMilli()),
		LifetimeSeconds:    p.LifetimeSeconds,
		Layout:             DefaultLayout,
		MaxMessageDuration: DefaultMaxMessageDuration,
	}
	if p.Layout != nil && *p.Layout != "" {
		r.Layout = *p.Layout
	}
	if p.UpvoteEnabled != nil {
		r.UpvoteEnabled = *p.UpvoteEnabled
	}
	if p.RateLimit != nil {
		if *p.RateLimit < 0 {
			return nil, ErrInvalidParams
		}
		r.RateLimit = *p.RateLimit
	}
	if p.MaxMessageDuration != nil {
		if *p.MaxMessageDuration < 0 {
			return nil, ErrInvalidParams
		}
		r.MaxMessageDuration = *p.MaxMessageDuration
	}
	return r, nil
}

func (r *Room) RequiresPassword() bool { return len(r.PasswordHash) > 0 }

// ExpiresAt reports the instant the room dies; ok is false for NeverExpires
// and for lifetimes past MaxLifetimeSeconds.
func (r *Room) ExpiresAt() (t time.Time, ok bool) {
	if r.LifetimeSeconds == NeverExpires || r.LifetimeSeconds > MaxLifetimeSeconds {
		return time.Time{}, false
	}
	return r.CreatedAt.Add(time.Duration(r.LifetimeSeconds) * time.Second), true
}

// Expired is the single expiry rule: now >= createdAt + lifetime.
// Stores and the sweeper must agree with it.
func (r *Room) Expired(now time.Time) bool {
	at, ok := r.ExpiresAt()
	if !ok {
		return false
	}
	return !now.Before(at)
}

// Clone returns a copy that shares nothing mutable with r.
func (r *Room) Clone() *Room {
	c := *r
	if r.PasswordHash != nil {
		c.PasswordHash = append([]byte(nil), r.PasswordHash...)
	}
	return &c
}
