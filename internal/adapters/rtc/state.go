package rtc

import "sync"

type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateReconnecting
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// DefaultMaxRetries bounds reconnect attempts after the data channel closes.
const DefaultMaxRetries = 3

// reconnector is the channel lifecycle. Failed and Closed are terminal.
type reconnector struct {
	mu         sync.Mutex
	state      State
	retries    int
	maxRetries int
}

func newReconnector(maxRetries int) *reconnector {
	if maxRetries < 0 {
		maxRetries = DefaultMaxRetries
	}
	return &reconnector{maxRetries: maxRetries}
}

func (r *reconnector) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *reconnector) terminal() bool {
	return r.state == StateFailed || r.state == StateClosed
}

// connecting reports false once the peer is terminal.
func (r *reconnector) connecting() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.terminal() {
		return false
	}
	if r.state != StateReconnecting {
		r.state = StateConnecting
	}
	return true
}

// opened resets the retry budget.
func (r *reconnector) opened() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.terminal() {
		return
	}
	r.state = StateOpen
	r.retries = 0
}

// channelClosed spends one retry. It returns the new state and whether to reconnect.
func (r *reconnector) channelClosed() (State, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.terminal() {
		return r.state, false
	}
	r.retries++
	if r.retries > r.maxRetries {
		r.state = StateFailed
		return r.state, false
	}
	r.state = StateReconnecting
	return r.state, true
}

func (r *reconnector) close() {
	r.mu.Lock()
	r.state = StateClosed
	r.mu.Unlock()
}
