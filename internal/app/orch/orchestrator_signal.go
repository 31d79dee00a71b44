package orch

import (
	"errors"

	"github.com/dkeye/Huddle/internal/app"
	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/rs/zerolog/log"
)

type PublishResult struct {
	Delivered int
	Dropped   []core.SessionID
}

// Forward relays a handshake frame to every other member of the room it names.
// The sender must itself be joined to that room; the payload is passed through untouched.
func (o *Orchestrator) Forward(sid core.SessionID, sig domain.Signal) (PublishResult, error) {
	if !sig.Type.IsHandshake() {
		o.Metrics.Dropped("malformed")
		return PublishResult{}, domain.ErrMalformedMessage
	}
	room, err := domain.ParseRoomID(sig.RoomID)
	if err != nil {
		o.Metrics.Dropped("malformed")
		return PublishResult{}, domain.ErrMalformedMessage
	}
	if !o.Members.IsMember(room, sid) {
		o.Metrics.Dropped("not_member")
		return PublishResult{}, domain.ErrNotMember
	}

	frame, err := encode(domain.Signal{
		Type:    sig.Type,
		RoomID:  string(room),
		Sender:  string(sid),
		Payload: sig.Payload,
	})
	if err != nil {
		return PublishResult{}, err
	}
	res := o.fanOut(room, sid, frame)
	o.Metrics.Forwarded(string(sig.Type), res.Delivered)
	return res, nil
}

// fanOut snapshots the room and sends outside any lock. A peer that left
// between the snapshot and the send is skipped.
func (o *Orchestrator) fanOut(room domain.RoomID, skip core.SessionID, frame core.Frame) PublishResult {
	var res PublishResult
	for _, peer := range o.Members.Members(room) {
		if peer == skip {
			continue
		}
		sess, ok := o.Registry.GetSession(peer)
		if !ok {
			continue
		}
		err := sess.Signal().TrySend(frame)
		switch {
		case err == nil:
			res.Delivered++
		case errors.Is(err, core.ErrBackpressure):
			res.Dropped = append(res.Dropped, peer)
			o.onBackpressure(room, sess)
		default:
			o.Metrics.Dropped("closed")
		}
	}
	return res
}

func (o *Orchestrator) onBackpressure(room domain.RoomID, sess core.Session) {
	action := app.DropFrame
	if o.Policy != nil {
		action = o.Policy.OnBackPressure(room, sess)
	}
	o.Metrics.Dropped("backpressure")
	log.Warn().Str("module", "orch").Str("sid", string(sess.ID())).Str("room", string(room)).
		Stringer("action", action).Msg("slow receiver")
	if action == app.KickMember {
		o.KickBySID(sess.ID())
	}
}
