package rtc

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/dkeye/Huddle/internal/domain"
	"github.com/pion/webrtc/v4"
)

type recordingSignaler struct {
	mu   sync.Mutex
	sent []domain.Signal
}

func (r *recordingSignaler) Send(sig domain.Signal) error {
	r.mu.Lock()
	r.sent = append(r.sent, sig)
	r.mu.Unlock()
	return nil
}

func (r *recordingSignaler) first(t *testing.T, kind domain.SignalKind) (domain.Signal, Handshake) {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sent {
		if s.Type != kind {
			continue
		}
		var hs Handshake
		if err := json.Unmarshal(s.Payload, &hs); err != nil {
			t.Fatalf("payload: %v", err)
		}
		return s, hs
	}
	t.Fatalf("no %s sent", kind)
	return domain.Signal{}, Handshake{}
}

func (r *recordingSignaler) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

func newTestMesh(t *testing.T) (*Mesh, *recordingSignaler) {
	t.Helper()
	sig := &recordingSignaler{}
	m := NewMesh("42", sig, PeerOptions{Config: webrtc.Configuration{}, MaxRetries: DefaultMaxRetries})
	t.Cleanup(m.Close)
	return m, sig
}

func joined(self string, peers ...string) domain.Signal {
	if peers == nil {
		peers = []string{}
	}
	payload, _ := json.Marshal(peers)
	return domain.Signal{Type: domain.KindJoined, RoomID: "42", SessionID: self, Payload: payload}
}

func TestMeshOffersToExistingPeers(t *testing.T) {
	a, sigA := newTestMesh(t)
	if err := a.Handle(joined("A", "B")); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	offer, hs := sigA.first(t, domain.KindOffer)
	if offer.RoomID != "42" || hs.To != "B" || hs.SDP == nil || hs.SDP.Type != webrtc.SDPTypeOffer {
		t.Fatalf("offer = %+v %+v", offer, hs)
	}
	if st := a.Peers(); len(st) != 1 || st[0].Remote != "B" || st[0].State != StateConnecting {
		t.Fatalf("peers = %+v", st)
	}
}

func TestMeshAnswersOfferAddressedToSelf(t *testing.T) {
	a, sigA := newTestMesh(t)
	b, sigB := newTestMesh(t)
	if err := b.Handle(joined("B")); err != nil {
		t.Fatal(err)
	}
	if err := b.Handle(domain.Signal{Type: domain.KindPeerJoined, RoomID: "42", Sender: "A"}); err != nil {
		t.Fatal(err)
	}
	if err := a.Handle(joined("A", "B")); err != nil {
		t.Fatal(err)
	}

	offer, _ := sigA.first(t, domain.KindOffer)
	offer.Sender = "A"
	if err := b.Handle(offer); err != nil {
		t.Fatalf("B handle offer: %v", err)
	}
	answer, hs := sigB.first(t, domain.KindAnswer)
	if hs.To != "A" || hs.SDP == nil || hs.SDP.Type != webrtc.SDPTypeAnswer {
		t.Fatalf("answer = %+v", hs)
	}
	answer.Sender = "B"
	if err := a.Handle(answer); err != nil {
		t.Fatalf("A handle answer: %v", err)
	}
}

func TestMeshIgnoresHandshakeForOthers(t *testing.T) {
	c, sigC := newTestMesh(t)
	if err := c.Handle(joined("C")); err != nil {
		t.Fatal(err)
	}
	payload, _ := json.Marshal(Handshake{To: "B", SDP: &webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0"}})
	if err := c.Handle(domain.Signal{Type: domain.KindOffer, RoomID: "42", Sender: "A", Payload: payload}); err != nil {
		t.Fatal(err)
	}
	if len(c.Peers()) != 0 || sigC.count() != 0 {
		t.Fatalf("handshake for B was acted on: peers=%v sent=%d", c.Peers(), sigC.count())
	}
}

func TestMeshPeerLifecycle(t *testing.T) {
	m, sig := newTestMesh(t)
	_ = m.Handle(joined("A"))
	_ = m.Handle(domain.Signal{Type: domain.KindPeerJoined, RoomID: "42", Sender: "B"})

	st := m.Peers()
	if len(st) != 1 || st[0].State != StateIdle {
		t.Fatalf("peers = %+v", st)
	}
	if sig.count() != 0 {
		t.Fatal("non-initiator must wait for an offer")
	}
	if n := m.Broadcast([]byte("hi")); n != 0 {
		t.Fatalf("broadcast over closed channels = %d", n)
	}

	_ = m.Handle(domain.Signal{Type: domain.KindPeerLeft, RoomID: "42", Sender: "B"})
	if len(m.Peers()) != 0 {
		t.Fatal("peer-left should remove the peer")
	}
}
