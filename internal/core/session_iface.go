package core

type SessionID string

// SessionState is the relay-side lifecycle of one connection.
type SessionState int32

const (
	StateConnected SessionState = iota
	StateJoined
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateJoined:
		return "joined"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session pairs a relay identity with its signaling transport.
type Session interface {
	ID() SessionID
	Signal() SignalConnection
	State() SessionState
	SetState(SessionState)
}
