package core

import "sync/atomic"

type signalSession struct {
	id    SessionID
	conn  SignalConnection
	state atomic.Int32
}

func NewSession(id SessionID, conn SignalConnection) Session {
	return &signalSession{id: id, conn: conn}
}

func (s *signalSession) ID() SessionID            { return s.id }
func (s *signalSession) Signal() SignalConnection { return s.conn }
func (s *signalSession) State() SessionState      { return SessionState(s.state.Load()) }
func (s *signalSession) SetState(st SessionState) { s.state.Store(int32(st)) }
