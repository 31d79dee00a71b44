package core

import "errors"

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

// Frame is a raw text payload written to a signaling socket.
type Frame []byte

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
// TrySend must be safe to call concurrently with Close and after it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}
