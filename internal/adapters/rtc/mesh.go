package rtc

import (
	"encoding/json"
	"sort"
	"sync"

	"github.com/dkeye/Huddle/internal/domain"
	"github.com/rs/zerolog/log"
)

// Mesh keeps one Peer per remote session in a signaling room.
// The session that joins later initiates towards everyone already present.
type Mesh struct {
	room     string
	signaler Signaler
	opts     PeerOptions

	mu    sync.Mutex
	self  string
	peers map[string]*Peer
}

func NewMesh(room string, s Signaler, opts PeerOptions) *Mesh {
	return &Mesh{
		room:     room,
		signaler: s,
		opts:     opts,
		peers:    make(map[string]*Peer),
	}
}

func (m *Mesh) Self() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.self
}

// Handle applies one frame received from the relay.
func (m *Mesh) Handle(sig domain.Signal) error {
	switch sig.Type {
	case domain.KindJoined:
		return m.onJoined(sig)
	case domain.KindPeerJoined:
		m.peer(sig.Sender, false)
		return nil
	case domain.KindPeerLeft:
		m.remove(sig.Sender)
		return nil
	case domain.KindOffer, domain.KindAnswer, domain.KindICECandidate:
		return m.onHandshake(sig)
	}
	return nil
}

func (m *Mesh) onJoined(sig domain.Signal) error {
	var existing []string
	if len(sig.Payload) > 0 {
		if err := json.Unmarshal(sig.Payload, &existing); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.self = sig.SessionID
	m.mu.Unlock()
	log.Info().Str("module", "rtc.mesh").Str("self", sig.SessionID).Int("peers", len(existing)).Msg("joined")

	for _, remote := range existing {
		p := m.peer(remote, true)
		if err := p.Start(); err != nil {
			log.Error().Err(err).Str("module", "rtc.mesh").Str("remote", remote).Msg("start peer")
		}
	}
	return nil
}

func (m *Mesh) onHandshake(sig domain.Signal) error {
	var hs Handshake
	if err := json.Unmarshal(sig.Payload, &hs); err != nil {
		return err
	}
	if hs.To == "" || hs.To != m.Self() {
		return nil
	}
	p := m.peer(sig.Sender, false)
	switch {
	case sig.Type == domain.KindOffer && hs.SDP != nil:
		return p.HandleOffer(*hs.SDP)
	case sig.Type == domain.KindAnswer && hs.SDP != nil:
		return p.HandleAnswer(*hs.SDP)
	case sig.Type == domain.KindICECandidate && hs.Candidate != nil:
		return p.HandleCandidate(*hs.Candidate)
	}
	return nil
}

func (m *Mesh) peer(remote string, initiator bool) *Peer {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.peers[remote]; ok {
		return p
	}
	p := newPeer(m.room, remote, initiator, m.signaler, m.opts)
	m.peers[remote] = p
	return p
}

func (m *Mesh) remove(remote string) {
	m.mu.Lock()
	p, ok := m.peers[remote]
	delete(m.peers, remote)
	m.mu.Unlock()
	if ok {
		p.Close()
		log.Info().Str("module", "rtc.mesh").Str("remote", remote).Msg("peer left")
	}
}

// Broadcast writes data to every open channel and returns how many took it.
func (m *Mesh) Broadcast(data []byte) int {
	m.mu.Lock()
	peers := make([]*Peer, 0, len(m.peers))
	for _, p := range m.peers {
		peers = append(peers, p)
	}
	m.mu.Unlock()

	n := 0
	for _, p := range peers {
		if err := p.Send(data); err == nil {
			n++
		}
	}
	return n
}

type PeerStatus struct {
	Remote string
	State  State
}

func (m *Mesh) Peers() []PeerStatus {
	m.mu.Lock()
	out := make([]PeerStatus, 0, len(m.peers))
	for id, p := range m.peers {
		out = append(out, PeerStatus{Remote: id, State: p.State()})
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Remote < out[j].Remote })
	return out
}

func (m *Mesh) Close() {
	m.mu.Lock()
	peers := m.peers
	m.peers = make(map[string]*Peer)
	m.mu.Unlock()
	for _, p := range peers {
		p.Close()
	}
}
