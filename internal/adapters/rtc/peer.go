package rtc

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/dkeye/Huddle/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

const (
	ChannelLabel = "chat"
	channelID    = uint16(0)
)

var ErrChannelNotOpen = errors.New("data channel is not open")

// Signaler carries handshake frames to the relay.
type Signaler interface {
	Send(domain.Signal) error
}

// Handshake is the payload this client puts inside relayed frames.
// The relay fans it out to the whole room; To names the intended receiver.
type Handshake struct {
	To        string                     `json:"to"`
	SDP       *webrtc.SessionDescription `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit   `json:"candidate,omitempty"`
}

func DefaultWebRTCConfig() webrtc.Configuration {
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{
				URLs: []string{"stun:stun.l.google.com:19302"},
			},
		},
	}
}

type PeerOptions struct {
	Config     webrtc.Configuration
	MaxRetries int
	Backoff    time.Duration
	OnMessage  func(from string, data []byte)
	OnState    func(remote string, s State)
}

// Peer is one direct connection to a remote session, carried over a
// pre-negotiated data channel. The initiator sends offers; the other side answers.
type Peer struct {
	room      string
	remote    string
	initiator bool
	signaler  Signaler
	opts      PeerOptions
	fsm       *reconnector

	mu      sync.Mutex
	pc      *webrtc.PeerConnection
	dc      *webrtc.DataChannel
	pending []webrtc.ICECandidateInit
	timer   *time.Timer
}

func newPeer(room, remote string, initiator bool, s Signaler, opts PeerOptions) *Peer {
	return &Peer{
		room:      room,
		remote:    remote,
		initiator: initiator,
		signaler:  s,
		opts:      opts,
		fsm:       newReconnector(opts.MaxRetries),
	}
}

func (p *Peer) Remote() string { return p.remote }
func (p *Peer) State() State   { return p.fsm.State() }

// Start builds the peer connection and, on the initiating side, sends the offer.
func (p *Peer) Start() error {
	if !p.fsm.connecting() {
		return nil
	}
	p.notifyState()
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.resetLocked(); err != nil {
		return err
	}
	if p.initiator {
		return p.offerLocked()
	}
	return nil
}

// resetLocked replaces the peer connection and its negotiated channel.
func (p *Peer) resetLocked() error {
	p.teardownLocked()

	pc, err := webrtc.NewPeerConnection(p.opts.Config)
	if err != nil {
		return err
	}
	negotiated := true
	id := channelID
	dc, err := pc.CreateDataChannel(ChannelLabel, &webrtc.DataChannelInit{
		Negotiated: &negotiated,
		ID:         &id,
	})
	if err != nil {
		_ = pc.Close()
		return err
	}

	dc.OnOpen(func() {
		p.fsm.opened()
		p.notifyState()
		log.Info().Str("module", "rtc").Str("remote", p.remote).Msg("data channel open")
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		if p.opts.OnMessage != nil {
			p.opts.OnMessage(p.remote, msg.Data)
		}
	})
	dc.OnClose(func() { p.channelClosed(dc) })

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		ci := c.ToJSON()
		p.send(domain.KindICECandidate, Handshake{To: p.remote, Candidate: &ci})
	})
	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Debug().Str("module", "rtc").Str("remote", p.remote).Str("peer_connection_state", s.String()).Msg("peer state")
		if s == webrtc.PeerConnectionStateFailed {
			p.channelClosed(dc)
		}
	})

	p.pc, p.dc, p.pending = pc, dc, nil
	return nil
}

func (p *Peer) teardownLocked() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	if p.pc == nil {
		return
	}
	old := p.pc
	p.pc, p.dc = nil, nil
	go func() {
		if err := old.Close(); err != nil {
			log.Warn().Err(err).Str("module", "rtc").Str("remote", p.remote).Msg("close error")
		}
	}()
}

func (p *Peer) offerLocked() error {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return err
	}
	if err := p.pc.SetLocalDescription(offer); err != nil {
		return err
	}
	p.send(domain.KindOffer, Handshake{To: p.remote, SDP: p.pc.LocalDescription()})
	return nil
}

// HandleOffer always answers on a fresh connection, so a remote that
// reconnects simply offers again.
func (p *Peer) HandleOffer(sdp webrtc.SessionDescription) error {
	if !p.fsm.connecting() {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.resetLocked(); err != nil {
		return err
	}
	if err := p.pc.SetRemoteDescription(sdp); err != nil {
		return err
	}
	p.flushLocked()
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return err
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return err
	}
	p.send(domain.KindAnswer, Handshake{To: p.remote, SDP: p.pc.LocalDescription()})
	return nil
}

func (p *Peer) HandleAnswer(sdp webrtc.SessionDescription) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pc == nil {
		return nil
	}
	if err := p.pc.SetRemoteDescription(sdp); err != nil {
		return err
	}
	p.flushLocked()
	return nil
}

// HandleCandidate queues candidates that arrive before the remote description.
func (p *Peer) HandleCandidate(ci webrtc.ICECandidateInit) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pc == nil || p.pc.RemoteDescription() == nil {
		p.pending = append(p.pending, ci)
		return nil
	}
	return p.pc.AddICECandidate(ci)
}

func (p *Peer) flushLocked() {
	for _, ci := range p.pending {
		if err := p.pc.AddICECandidate(ci); err != nil {
			log.Warn().Err(err).Str("module", "rtc").Str("remote", p.remote).Msg("add ice candidate")
		}
	}
	p.pending = nil
}

// channelClosed ignores callbacks from a channel that was already replaced.
func (p *Peer) channelClosed(dc *webrtc.DataChannel) {
	p.mu.Lock()
	if dc != p.dc {
		p.mu.Unlock()
		return
	}
	st, retry := p.fsm.channelClosed()
	p.teardownLocked()
	if retry && p.initiator {
		p.timer = time.AfterFunc(p.opts.Backoff, p.restart)
	}
	p.mu.Unlock()

	p.notifyState()
	log.Warn().Str("module", "rtc").Str("remote", p.remote).Stringer("state", st).Msg("data channel closed")
}

func (p *Peer) restart() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fsm.State() != StateReconnecting {
		return
	}
	if err := p.resetLocked(); err != nil {
		log.Error().Err(err).Str("module", "rtc").Str("remote", p.remote).Msg("reconnect")
		return
	}
	if err := p.offerLocked(); err != nil {
		log.Error().Err(err).Str("module", "rtc").Str("remote", p.remote).Msg("reconnect offer")
	}
}

func (p *Peer) Send(data []byte) error {
	p.mu.Lock()
	dc := p.dc
	p.mu.Unlock()
	if dc == nil || p.fsm.State() != StateOpen {
		return ErrChannelNotOpen
	}
	return dc.SendText(string(data))
}

func (p *Peer) Close() {
	p.fsm.close()
	p.mu.Lock()
	p.teardownLocked()
	p.mu.Unlock()
	p.notifyState()
}

func (p *Peer) notifyState() {
	if p.opts.OnState != nil {
		p.opts.OnState(p.remote, p.fsm.State())
	}
}

func (p *Peer) send(kind domain.SignalKind, hs Handshake) {
	payload, err := json.Marshal(hs)
	if err != nil {
		log.Error().Err(err).Str("module", "rtc").Msg("encode handshake")
		return
	}
	if err := p.signaler.Send(domain.Signal{Type: kind, RoomID: p.room, Payload: payload}); err != nil {
		log.Warn().Err(err).Str("module", "rtc").Str("remote", p.remote).Str("type", string(kind)).Msg("signal not sent")
	}
}
