package mesh

import (
	"encoding/json"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/pion/logging"
	"github.com/pion/transport/v3/vnet"
	"github.com/pion/webrtc/v4"

	"github.com/BioHazard786/warpmesh/internal/protocol"
)

// inbox runs deliveries for one mesh in order, like the relay connection
// does for a real peer.
type inbox chan func()

func (in inbox) run(stop <-chan struct{}) {
	for {
		select {
		case fn := <-in:
			fn()
		case <-stop:
			return
		}
	}
}

// loopSignaler hands handshake data straight to the other mesh.
type loopSignaler struct {
	self   protocol.PeerID
	remote **Mesh
	to     inbox
	errs   chan error
}

func (s *loopSignaler) SendSessionDescription(_ protocol.PeerID, sdp webrtc.SessionDescription) error {
	raw, err := json.Marshal(sdp)
	if err != nil {
		return err
	}
	s.to <- func() { s.report((*s.remote).HandleSessionDescription(s.self, raw)) }
	return nil
}

func (s *loopSignaler) SendICECandidate(_ protocol.PeerID, c webrtc.ICECandidateInit) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return err
	}
	s.to <- func() { s.report((*s.remote).HandleICECandidate(s.self, raw)) }
	return nil
}

func (s *loopSignaler) report(err error) {
	if err != nil {
		s.errs <- err
	}
}

type nopSignaler struct{}

func (nopSignaler) SendSessionDescription(protocol.PeerID, webrtc.SessionDescription) error {
	return nil
}
func (nopSignaler) SendICECandidate(protocol.PeerID, webrtc.ICECandidateInit) error { return nil }

func virtualNets(t *testing.T) (*vnet.Net, *vnet.Net) {
	t.Helper()
	router, err := vnet.NewRouter(&vnet.RouterConfig{
		CIDR:          "10.0.0.0/24",
		LoggerFactory: logging.NewDefaultLoggerFactory(),
	})
	if err != nil {
		t.Fatalf("new router: %v", err)
	}
	netA, err := vnet.NewNet(&vnet.NetConfig{StaticIPs: []string{"10.0.0.1"}})
	if err != nil {
		t.Fatalf("new net A: %v", err)
	}
	netB, err := vnet.NewNet(&vnet.NetConfig{StaticIPs: []string{"10.0.0.2"}})
	if err != nil {
		t.Fatalf("new net B: %v", err)
	}
	if err := router.AddNet(netA); err != nil {
		t.Fatalf("add net A: %v", err)
	}
	if err := router.AddNet(netB); err != nil {
		t.Fatalf("add net B: %v", err)
	}
	if err := router.Start(); err != nil {
		t.Fatalf("start router: %v", err)
	}
	t.Cleanup(func() { _ = router.Stop() })
	return netA, netB
}

func waitFor(t *testing.T, m *Mesh, kind EventKind, errs <-chan error) Event {
	t.Helper()
	timeout := time.After(15 * time.Second)
	for {
		select {
		case ev := <-m.Events():
			if ev.Kind == kind {
				return ev
			}
			if ev.Kind == PeerFailed {
				t.Fatalf("peer failed: %v", ev.Err)
			}
		case err := <-errs:
			t.Fatalf("signaling: %v", err)
		case <-timeout:
			t.Fatalf("timed out waiting for %s", kind)
			return Event{}
		}
	}
}

func TestMeshChat(t *testing.T) {
	netA, netB := virtualNets(t)
	stop := make(chan struct{})
	t.Cleanup(func() { close(stop) })

	var alice, bob *Mesh
	toAlice, toBob := make(inbox, 64), make(inbox, 64)
	errs := make(chan error, 8)
	go toAlice.run(stop)
	go toBob.run(stop)

	alice = New(&loopSignaler{self: "alice-id", remote: &bob, to: toBob, errs: errs},
		Options{Name: "alice", Version: "test", Net: netA})
	bob = New(&loopSignaler{self: "bob-id", remote: &alice, to: toAlice, errs: errs},
		Options{Name: "bob", Version: "test", Net: netB})
	t.Cleanup(alice.Close)
	t.Cleanup(bob.Close)

	// bob was in the room first: he waits for alice's offer
	if err := bob.AddPeer("alice-id", false); err != nil {
		t.Fatal(err)
	}
	if err := alice.AddPeer("bob-id", true); err != nil {
		t.Fatal(err)
	}

	if ev := waitFor(t, alice, PeerIdentified, errs); ev.Name != "bob" || ev.Peer != "bob-id" {
		t.Errorf("alice saw %+v", ev)
	}
	if ev := waitFor(t, bob, PeerIdentified, errs); ev.Name != "alice" || ev.Peer != "alice-id" {
		t.Errorf("bob saw %+v", ev)
	}

	n, err := alice.Send("hello bob")
	if err != nil || n != 1 {
		t.Fatalf("Send = %d, %v", n, err)
	}
	ev := waitFor(t, bob, ChatReceived, errs)
	if ev.Chat.Text != "hello bob" || ev.Chat.From != "alice" {
		t.Errorf("bob got %+v", ev.Chat)
	}
	if ev.Chat.SentAt.IsZero() {
		t.Error("chat has no timestamp")
	}

	peers := alice.Peers()
	if len(peers) != 1 || peers[0].Name != "bob" || !peers[0].Connected {
		t.Errorf("alice peers = %+v", peers)
	}

	alice.RemovePeer("bob-id")
	if ev := waitFor(t, alice, PeerLeft, errs); ev.Peer != "bob-id" || ev.Name != "bob" {
		t.Errorf("alice saw %+v", ev)
	}
	if _, err := alice.Send("anyone?"); !errors.Is(err, ErrNoOpenChannels) {
		t.Errorf("Send to nobody = %v", err)
	}
}

func TestUnknownPeer(t *testing.T) {
	m := New(nopSignaler{}, Options{})
	defer m.Close()

	err := m.HandleSessionDescription("ghost", json.RawMessage(`{"type":"offer","sdp":"v=0"}`))
	if !errors.Is(err, ErrUnknownPeer) {
		t.Errorf("description err = %v", err)
	}
	err = m.HandleICECandidate("ghost", json.RawMessage(`{"candidate":""}`))
	if !errors.Is(err, ErrUnknownPeer) {
		t.Errorf("candidate err = %v", err)
	}
	var merr *Error
	if !errors.As(err, &merr) || merr.Peer != "ghost" {
		t.Errorf("err = %#v", err)
	}
}

func TestCandidatesWaitForDescription(t *testing.T) {
	m := New(nopSignaler{}, Options{})
	defer m.Close()

	if err := m.AddPeer("p", false); err != nil {
		t.Fatal(err)
	}
	if err := m.HandleICECandidate("p", json.RawMessage(`{"candidate":"candidate:1 1 udp 1 10.0.0.9 4000 typ host","sdpMid":"0"}`)); err != nil {
		t.Fatal(err)
	}
	if p := m.peer("p"); len(p.pending) != 1 || p.remoteSet {
		t.Errorf("pending = %d, remoteSet = %v", len(p.pending), p.remoteSet)
	}
}

func TestRejectsBadDescriptions(t *testing.T) {
	m := New(nopSignaler{}, Options{})
	defer m.Close()
	_ = m.AddPeer("p", false)

	if err := m.HandleSessionDescription("p", json.RawMessage(`{"type":"pranswer","sdp":"v=0"}`)); !errors.Is(err, ErrUnexpectedSignal) {
		t.Errorf("pranswer err = %v", err)
	}
	if err := m.HandleSessionDescription("p", json.RawMessage(`"offer"`)); err == nil {
		t.Error("garbage accepted")
	}
}

// flakySignaler fails the first offer it is asked to send.
type flakySignaler struct {
	nopSignaler
	offers int
}

var errRelayDown = errors.New("relay down")

func (s *flakySignaler) SendSessionDescription(protocol.PeerID, webrtc.SessionDescription) error {
	s.offers++
	if s.offers == 1 {
		return errRelayDown
	}
	return nil
}

func TestAddPeerFailureCanRetry(t *testing.T) {
	sig := &flakySignaler{}
	m := New(sig, Options{})
	defer m.Close()

	if err := m.AddPeer("p", true); !errors.Is(err, errRelayDown) {
		t.Fatalf("first AddPeer err = %v", err)
	}
	if p := m.peer("p"); p != nil {
		t.Fatal("failed peer kept")
	}

	if err := m.AddPeer("p", true); err != nil {
		t.Fatalf("retry err = %v", err)
	}
	if sig.offers != 2 {
		t.Errorf("offers sent = %d, want 2", sig.offers)
	}
	if p := m.peer("p"); p == nil || p.dc == nil {
		t.Error("retried peer has no chat channel")
	}
}

func TestAddPeerAfterClose(t *testing.T) {
	m := New(nopSignaler{}, Options{})
	m.Close()
	m.Close()
	if err := m.AddPeer("p", true); !errors.Is(err, ErrClosed) {
		t.Errorf("err = %v", err)
	}
	select {
	case <-m.Done():
	default:
		t.Error("Done still open")
	}
}

func TestRelayPolicy(t *testing.T) {
	turn := []webrtc.ICEServer{{URLs: []string{"stun:s.example"}}, {URLs: []string{"turn:t.example:3478"}}}
	stun := []webrtc.ICEServer{{URLs: []string{"stun:s.example"}}}

	if m := New(nopSignaler{}, Options{ICEServers: turn, ForceRelay: true}); m.Policy() != webrtc.ICETransportPolicyRelay {
		t.Errorf("forced relay policy = %v", m.Policy())
	}
	if m := New(nopSignaler{}, Options{ICEServers: stun, ForceRelay: true}); m.Policy() != webrtc.ICETransportPolicyAll {
		t.Errorf("relay without TURN policy = %v", m.Policy())
	}
}

func TestRestrictive(t *testing.T) {
	tests := []struct {
		name  string
		iface string
		ip    string
		want  bool
	}{
		{name: "ethernet", iface: "eth0", ip: "192.168.1.10"},
		{name: "wireguard", iface: "wg0", ip: "10.8.0.2", want: true},
		{name: "openvpn", iface: "tun0", ip: "10.8.0.2", want: true},
		{name: "cgnat", iface: "en0", ip: "100.72.1.5", want: true},
		{name: "just outside cgnat", iface: "en0", ip: "100.128.0.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := restrictive(tt.iface, []net.IP{net.ParseIP(tt.ip)}); got != tt.want {
				t.Errorf("restrictive(%s, %s) = %v", tt.iface, tt.ip, got)
			}
		})
	}
}

func TestMessageCodec(t *testing.T) {
	sent := ChatMessage{From: "alice", Text: "hi", SentAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	data, err := Encode(TypeChat, sent)
	if err != nil {
		t.Fatal(err)
	}
	msg, err := Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	if msg.Type != TypeChat {
		t.Fatalf("type = %q", msg.Type)
	}
	var got ChatMessage
	if err := msg.DecodePayload(&got); err != nil {
		t.Fatal(err)
	}
	if got.From != sent.From || got.Text != sent.Text || !got.SentAt.Equal(sent.SentAt) {
		t.Errorf("got %+v", got)
	}

	if _, err := Decode([]byte{0xc1}); err == nil {
		t.Error("invalid msgpack accepted")
	}
}

func TestErrorString(t *testing.T) {
	err := wrapError("receive", "c0ffee1234abcdef", ErrUnexpectedMessage, "ping")
	if got := err.Error(); got != "receive c0f.def: unexpected data channel message (ping)" {
		t.Errorf("Error() = %q", got)
	}
	if got := newError("encode chat", "", ErrClosed).Error(); got != "encode chat: mesh closed" {
		t.Errorf("Error() = %q", got)
	}
}
