package orch

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/dkeye/Huddle/internal/app"
	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
)

type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
	limit  int
	closed bool
}

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return core.ErrConnClosed
	}
	if c.limit > 0 && len(c.frames) >= c.limit {
		return core.ErrBackpressure
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *fakeConn) signals(t *testing.T) []domain.Signal {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Signal, 0, len(c.frames))
	for _, f := range c.frames {
		var s domain.Signal
		if err := json.Unmarshal(f, &s); err != nil {
			t.Fatalf("bad frame %q: %v", f, err)
		}
		out = append(out, s)
	}
	return out
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	c.frames = nil
	c.mu.Unlock()
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func connect(o *Orchestrator, sid core.SessionID) *fakeConn {
	conn := &fakeConn{}
	_, cancel := context.WithCancel(context.Background())
	o.Connect(core.NewSession(sid, conn), cancel)
	return conn
}

func countKind(sigs []domain.Signal, kind domain.SignalKind) int {
	n := 0
	for _, s := range sigs {
		if s.Type == kind {
			n++
		}
	}
	return n
}

func offer(room string) domain.Signal {
	return domain.Signal{Type: domain.KindOffer, RoomID: room, Payload: json.RawMessage(`{"sdp":"v=0"}`)}
}

func TestForwardReachesOnlyRoomPeers(t *testing.T) {
	o := New(app.SimplePolicy{}, nil)
	a, b, c := connect(o, "A"), connect(o, "B"), connect(o, "C")
	for sid, room := range map[core.SessionID]string{"A": "42", "B": "42", "C": "99"} {
		if err := o.Join(sid, room); err != nil {
			t.Fatalf("Join(%s): %v", sid, err)
		}
	}
	a.reset()
	b.reset()
	c.reset()

	res, err := o.Forward("A", offer("42"))
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if res.Delivered != 1 {
		t.Fatalf("delivered = %d, want 1", res.Delivered)
	}
	got := b.signals(t)
	if len(got) != 1 || got[0].Type != domain.KindOffer || got[0].Sender != "A" || got[0].RoomID != "42" {
		t.Fatalf("B received %+v", got)
	}
	if string(got[0].Payload) != `{"sdp":"v=0"}` {
		t.Fatalf("payload altered: %s", got[0].Payload)
	}
	if len(a.signals(t)) != 0 {
		t.Fatal("sender must not receive its own frame")
	}
	if len(c.signals(t)) != 0 {
		t.Fatal("other room must not receive the frame")
	}
}

func TestForwardAfterPeerDisconnect(t *testing.T) {
	o := New(app.SimplePolicy{}, nil)
	connect(o, "A")
	b := connect(o, "B")
	_ = o.Join("A", "42")
	_ = o.Join("B", "42")

	o.OnDisconnect("B")
	o.OnDisconnect("B")
	b.reset()

	res, err := o.Forward("A", offer("42"))
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if res.Delivered != 0 || len(b.signals(t)) != 0 {
		t.Fatalf("frame delivered to departed peer: %+v", res)
	}
	if len(o.Rooms()) != 1 {
		t.Fatalf("rooms = %+v", o.Rooms())
	}
}

func TestForwardRejections(t *testing.T) {
	o := New(app.SimplePolicy{}, nil)
	connect(o, "A")
	connect(o, "B")
	_ = o.Join("A", "42")
	_ = o.Join("B", "42")

	cases := []struct {
		name string
		sig  domain.Signal
		want error
	}{
		{"missing room", domain.Signal{Type: domain.KindAnswer}, domain.ErrMalformedMessage},
		{"bad room", domain.Signal{Type: domain.KindAnswer, RoomID: "abc"}, domain.ErrMalformedMessage},
		{"not handshake", domain.Signal{Type: domain.KindJoinRoom, RoomID: "42"}, domain.ErrMalformedMessage},
		{"foreign room", offer("7"), domain.ErrNotMember},
	}
	for _, tc := range cases {
		if _, err := o.Forward("A", tc.sig); !errors.Is(err, tc.want) {
			t.Fatalf("%s: err = %v, want %v", tc.name, err, tc.want)
		}
	}
	if _, err := o.Forward("nobody", offer("42")); !errors.Is(err, domain.ErrNotMember) {
		t.Fatalf("unknown sender: err = %v", err)
	}
}

func TestJoinNotifications(t *testing.T) {
	o := New(app.SimplePolicy{}, nil)
	a, b := connect(o, "A"), connect(o, "B")

	if err := o.Join("A", "42"); err != nil {
		t.Fatalf("Join: %v", err)
	}
	if err := o.Join("B", "42"); err != nil {
		t.Fatalf("Join: %v", err)
	}

	bs := b.signals(t)
	if len(bs) != 1 || bs[0].Type != domain.KindJoined || bs[0].SessionID != "B" {
		t.Fatalf("B got %+v", bs)
	}
	var peers []string
	if err := json.Unmarshal(bs[0].Payload, &peers); err != nil || len(peers) != 1 || peers[0] != "A" {
		t.Fatalf("peers = %v, %v", peers, err)
	}
	if countKind(a.signals(t), domain.KindPeerJoined) != 1 {
		t.Fatalf("A should see B join: %+v", a.signals(t))
	}

	a.reset()
	if err := o.Join("B", "42"); err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	if countKind(a.signals(t), domain.KindPeerJoined) != 0 {
		t.Fatal("rejoining the same room must not announce again")
	}

	if err := o.Join("B", "99"); err != nil {
		t.Fatalf("move: %v", err)
	}
	if countKind(a.signals(t), domain.KindPeerLeft) != 1 {
		t.Fatalf("A should see B leave: %+v", a.signals(t))
	}
	if o.Members.IsMember("42", "B") {
		t.Fatal("B still in 42")
	}

	if err := o.Join("A", "x1"); !errors.Is(err, domain.ErrMalformedMessage) {
		t.Fatalf("bad room id: err = %v", err)
	}
	if err := o.Join("ghost", "42"); !errors.Is(err, ErrUnknownSession) {
		t.Fatalf("unknown session: err = %v", err)
	}
}

func TestDisconnectNotifiesPeers(t *testing.T) {
	o := New(app.SimplePolicy{}, nil)
	a := connect(o, "A")
	connect(o, "B")
	_ = o.Join("A", "42")
	_ = o.Join("B", "42")
	a.reset()

	o.OnDisconnect("B")
	got := a.signals(t)
	if len(got) != 1 || got[0].Type != domain.KindPeerLeft || got[0].Sender != "B" {
		t.Fatalf("A got %+v", got)
	}
	if o.Registry.Len() != 1 {
		t.Fatalf("registry len = %d", o.Registry.Len())
	}
}

func TestBackpressurePolicy(t *testing.T) {
	for _, kick := range []bool{false, true} {
		o := New(app.SimplePolicy{KickSlow: kick}, nil)
		connect(o, "A")
		slow := connect(o, "B")
		_ = o.Join("A", "42")
		_ = o.Join("B", "42")
		slow.mu.Lock()
		slow.limit = len(slow.frames)
		slow.mu.Unlock()

		res, err := o.Forward("A", offer("42"))
		if err != nil {
			t.Fatalf("Forward: %v", err)
		}
		if len(res.Dropped) != 1 || res.Dropped[0] != "B" {
			t.Fatalf("kick=%v dropped = %v", kick, res.Dropped)
		}
		if slow.isClosed() != kick {
			t.Fatalf("kick=%v closed = %v", kick, slow.isClosed())
		}
	}
}

func TestConcurrentForwardAndDisconnect(t *testing.T) {
	o := New(app.SimplePolicy{}, nil)
	connect(o, "A")
	for _, sid := range []core.SessionID{"B", "C", "D"} {
		connect(o, sid)
		_ = o.Join(sid, "42")
	}
	_ = o.Join("A", "42")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			_, _ = o.Forward("A", offer("42"))
		}
	}()
	go func() {
		defer wg.Done()
		for _, sid := range []core.SessionID{"B", "C", "D"} {
			o.OnDisconnect(sid)
		}
	}()
	wg.Wait()

	if got := o.Members.Members("42"); len(got) != 1 || got[0] != "A" {
		t.Fatalf("members = %v", got)
	}
}
