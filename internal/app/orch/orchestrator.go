package orch

import (
	"context"
	"encoding/json"

	"github.com/dkeye/Huddle/internal/app"
	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/dkeye/Huddle/internal/metrics"
	"github.com/rs/zerolog/log"
)

// Orchestrator is the signaling relay: it ties live sessions to rooms
// and fans handshake frames out to room peers.
type Orchestrator struct {
	Registry *app.Registry
	Members  *app.Membership
	Policy   app.Policy
	Metrics  *metrics.Metrics
}

func New(policy app.Policy, m *metrics.Metrics) *Orchestrator {
	return &Orchestrator{
		Registry: app.NewRegistry(),
		Members:  app.NewMembership(),
		Policy:   policy,
		Metrics:  m,
	}
}

// Connect registers a freshly accepted connection. cancel stops its pumps.
func (o *Orchestrator) Connect(sess core.Session, cancel context.CancelFunc) {
	sess.SetState(core.StateConnected)
	o.Registry.BindSignal(sess, cancel)
	o.Metrics.SessionOpened()
	log.Info().Str("module", "orch").Str("sid", string(sess.ID())).Msg("session connected")
}

// OnDisconnect removes the session from every room and tells the remaining peers.
// Only the first call for a session does anything.
func (o *Orchestrator) OnDisconnect(sid core.SessionID) {
	sess, ok := o.Registry.GetSession(sid)
	if !ok || !o.Registry.Unbind(sid) {
		return
	}
	sess.SetState(core.StateClosed)
	o.Metrics.SessionClosed()

	for _, room := range o.Members.LeaveAll(sid) {
		o.notifyLeft(room, sid)
	}
	log.Info().Str("module", "orch").Str("sid", string(sid)).Msg("session disconnected")
}

// KickBySID closes the session transport; the adapter's read loop then runs OnDisconnect.
func (o *Orchestrator) KickBySID(sid core.SessionID) {
	sess, ok := o.Registry.GetSession(sid)
	if !ok {
		return
	}
	o.Registry.Cancel(sid)
	sess.Signal().Close()
	log.Warn().Str("module", "orch").Str("sid", string(sid)).Msg("kicked")
}

func (o *Orchestrator) notifyLeft(room domain.RoomID, sid core.SessionID) {
	o.broadcast(room, sid, domain.Signal{
		Type:   domain.KindPeerLeft,
		RoomID: string(room),
		Sender: string(sid),
	})
}

// broadcast sends sig to every member of room except skip and returns how many accepted it.
func (o *Orchestrator) broadcast(room domain.RoomID, skip core.SessionID, sig domain.Signal) int {
	frame, err := encode(sig)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Msg("encode signal")
		return 0
	}
	return o.fanOut(room, skip, frame).Delivered
}

// SendTo writes sig to a single session, ignoring a full buffer.
func (o *Orchestrator) SendTo(sid core.SessionID, sig domain.Signal) error {
	sess, ok := o.Registry.GetSession(sid)
	if !ok {
		return domain.ErrNotMember
	}
	frame, err := encode(sig)
	if err != nil {
		return err
	}
	return sess.Signal().TrySend(frame)
}

func encode(sig domain.Signal) (core.Frame, error) {
	b, err := json.Marshal(sig)
	if err != nil {
		return nil, err
	}
	return core.Frame(b), nil
}
