package orch

import (
	"encoding/json"
	"errors"

	"github.com/dkeye/Huddle/internal/app"
	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/rs/zerolog/log"
)

var ErrUnknownSession = errors.New("unknown session")

// Join puts sid into the signaling room named by rawRoom. Joining is not
// checked against stored rooms or tokens. A session that was in another
// room leaves it first.
func (o *Orchestrator) Join(sid core.SessionID, rawRoom string) error {
	room, err := domain.ParseRoomID(rawRoom)
	if err != nil {
		return domain.ErrMalformedMessage
	}
	sess, ok := o.Registry.GetSession(sid)
	if !ok || sess.State() == core.StateClosed {
		return ErrUnknownSession
	}

	prev, added := o.Members.Join(room, sid)
	if prev != "" {
		o.notifyLeft(prev, sid)
		log.Info().Str("module", "orch").Str("sid", string(sid)).Str("from_room", string(prev)).Msg("left room")
	}
	sess.SetState(core.StateJoined)

	peers := make([]string, 0)
	for _, m := range o.Members.Members(room) {
		if m != sid {
			peers = append(peers, string(m))
		}
	}
	payload, _ := json.Marshal(peers)
	if err := o.SendTo(sid, domain.Signal{
		Type:      domain.KindJoined,
		RoomID:    string(room),
		SessionID: string(sid),
		Payload:   payload,
	}); err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("sid", string(sid)).Msg("joined ack not sent")
	}

	if added {
		o.broadcast(room, sid, domain.Signal{
			Type:   domain.KindPeerJoined,
			RoomID: string(room),
			Sender: string(sid),
		})
		log.Info().Str("module", "orch").Str("sid", string(sid)).Str("room", string(room)).Int("peers", len(peers)).Msg("joined room")
	}
	return nil
}

func (o *Orchestrator) Rooms() []app.RoomInfo {
	return o.Members.List()
}
