package domain

import "encoding/json"

type SignalKind string

const (
	KindJoinRoom     SignalKind = "join-room"
	KindOffer        SignalKind = "webrtc-offer"
	KindAnswer       SignalKind = "webrtc-answer"
	KindICECandidate SignalKind = "ice-candidate"
	KindPing         SignalKind = "ping"

	KindPong       SignalKind = "pong"
	KindJoined     SignalKind = "joined"
	KindPeerJoined SignalKind = "peer-joined"
	KindPeerLeft   SignalKind = "peer-left"
)

// IsHandshake reports whether frames of this kind are relayed to room peers.
func (k SignalKind) IsHandshake() bool {
	return k == KindOffer || k == KindAnswer || k == KindICECandidate
}

// Signal is the relay envelope. Payload is carried verbatim and never inspected.
type Signal struct {
	Type      SignalKind      `json:"type"`
	RoomID    string          `json:"roomId,omitempty"`
	Sender    string          `json:"sender,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}
