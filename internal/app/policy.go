package app

import (
	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
)

type BackpressureAction int

const (
	DropFrame BackpressureAction = iota
	KickMember
)

func (a BackpressureAction) String() string {
	if a == KickMember {
		return "kick"
	}
	return "drop"
}

// Policy decides what happens to a receiver whose send buffer is full.
type Policy interface {
	OnBackPressure(room domain.RoomID, member core.Session) BackpressureAction
}

// SimplePolicy drops the frame for the slow receiver, or disconnects it when KickSlow is set.
type SimplePolicy struct {
	KickSlow bool
}

func (p SimplePolicy) OnBackPressure(room domain.RoomID, member core.Session) BackpressureAction {
	if p.KickSlow {
		return KickMember
	}
	return DropFrame
}
