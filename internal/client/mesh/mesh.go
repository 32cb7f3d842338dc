// Package mesh keeps one WebRTC peer connection per room member and a chat
// data channel on each.
package mesh

import (
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pion/transport/v3"
	"github.com/pion/webrtc/v4"

	"github.com/BioHazard786/warpmesh/internal/logging"
	"github.com/BioHazard786/warpmesh/internal/protocol"
)

const (
	channelLabel = "chat"
	eventBuffer  = 128
)

var ErrConnectionFailed = errors.New("connection failed")

// Signaler carries handshake data to another peer through the relay.
type Signaler interface {
	SendSessionDescription(to protocol.PeerID, sdp webrtc.SessionDescription) error
	SendICECandidate(to protocol.PeerID, candidate webrtc.ICECandidateInit) error
}

type EventKind int

const (
	PeerConnecting EventKind = iota
	PeerConnected
	PeerIdentified
	PeerLeft
	PeerFailed
	ChatReceived
)

func (k EventKind) String() string {
	switch k {
	case PeerConnecting:
		return "connecting"
	case PeerConnected:
		return "connected"
	case PeerIdentified:
		return "identified"
	case PeerLeft:
		return "left"
	case PeerFailed:
		return "failed"
	case ChatReceived:
		return "chat"
	default:
		return "unknown"
	}
}

type Event struct {
	Kind EventKind
	Peer protocol.PeerID
	Name string
	Chat *ChatMessage
	Err  error
}

type Options struct {
	// Name and Version are announced to every peer.
	Name    string
	Version string

	ICEServers []webrtc.ICEServer
	ForceRelay bool

	// Net replaces the host network, for tests.
	Net transport.Net

	Log *logging.Logger
}

// PeerInfo is a snapshot of one peer.
type PeerInfo struct {
	ID        protocol.PeerID
	Name      string
	Connected bool
}

type peer struct {
	id        protocol.PeerID
	pc        *webrtc.PeerConnection
	dc        *webrtc.DataChannel
	name      string
	open      bool
	remoteSet bool
	pending   []webrtc.ICECandidateInit
}

type Mesh struct {
	api      *webrtc.API
	config   webrtc.Configuration
	signaler Signaler
	opts     Options
	log      *logging.Logger

	mu     sync.Mutex
	peers  map[protocol.PeerID]*peer
	closed bool

	events chan Event
	done   chan struct{}
}

func New(signaler Signaler, opts Options) *Mesh {
	if opts.Log == nil {
		opts.Log = logging.Nop()
	}

	se := webrtc.SettingEngine{LoggerFactory: loggerFactory{log: opts.Log}}
	if opts.Net != nil {
		se.SetNet(opts.Net)
	}

	policy := webrtc.ICETransportPolicyAll
	if hasTURN(opts.ICEServers) && (opts.ForceRelay || BehindRestrictiveNAT()) {
		policy = webrtc.ICETransportPolicyRelay
		opts.Log.Info().Msg("using TURN relay only")
	}

	return &Mesh{
		api: webrtc.NewAPI(webrtc.WithSettingEngine(se)),
		config: webrtc.Configuration{
			ICEServers:         opts.ICEServers,
			ICETransportPolicy: policy,
		},
		signaler: signaler,
		opts:     opts,
		log:      opts.Log,
		peers:    make(map[protocol.PeerID]*peer),
		events:   make(chan Event, eventBuffer),
		done:     make(chan struct{}),
	}
}

func hasTURN(servers []webrtc.ICEServer) bool {
	for _, s := range servers {
		for _, u := range s.URLs {
			if strings.HasPrefix(u, "turn:") || strings.HasPrefix(u, "turns:") {
				return true
			}
		}
	}
	return false
}

// Events reports what happens to the peers. Events are dropped when nobody
// reads them.
func (m *Mesh) Events() <-chan Event { return m.events }

// Done is closed by Close.
func (m *Mesh) Done() <-chan struct{} { return m.done }

// Policy is the ICE transport policy in use.
func (m *Mesh) Policy() webrtc.ICETransportPolicy { return m.config.ICETransportPolicy }

func (m *Mesh) emit(ev Event) {
	select {
	case m.events <- ev:
	default:
		m.log.Warn().Str("event", ev.Kind.String()).Str("peer", ev.Peer.String()).Msg("event dropped")
	}
}

// AddPeer opens a connection to id. The side told to create the offer also
// creates the chat channel.
func (m *Mesh) AddPeer(id protocol.PeerID, createOffer bool) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if _, ok := m.peers[id]; ok {
		m.mu.Unlock()
		return nil
	}
	pc, err := m.api.NewPeerConnection(m.config)
	if err != nil {
		m.mu.Unlock()
		return newError("create peer connection", id, err)
	}
	p := &peer{id: id, pc: pc}
	m.peers[id] = p
	m.mu.Unlock()

	m.watch(p)
	m.emit(Event{Kind: PeerConnecting, Peer: id})
	m.log.Debug().Str("peer", id.String()).Bool("offer", createOffer).Msg("peer added")

	if !createOffer {
		return nil
	}

	if err := m.offer(p); err != nil {
		m.discard(p)
		return err
	}
	return nil
}

func (m *Mesh) offer(p *peer) error {
	ordered := true
	dc, err := p.pc.CreateDataChannel(channelLabel, &webrtc.DataChannelInit{Ordered: &ordered})
	if err != nil {
		return newError("create data channel", p.id, err)
	}
	m.attach(p, dc)

	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return newError("create offer", p.id, err)
	}
	if err := p.pc.SetLocalDescription(offer); err != nil {
		return newError("set local description", p.id, err)
	}
	if err := m.signaler.SendSessionDescription(p.id, offer); err != nil {
		return newError("send offer", p.id, err)
	}
	return nil
}

// discard forgets a peer whose setup failed so a later add_peer starts over.
func (m *Mesh) discard(p *peer) {
	m.mu.Lock()
	if m.peers[p.id] == p {
		delete(m.peers, p.id)
	}
	m.mu.Unlock()
	if err := p.pc.Close(); err != nil {
		m.log.Debug().Err(err).Str("peer", p.id.String()).Msg("close peer connection")
	}
}

func (m *Mesh) watch(p *peer) {
	p.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		if err := m.signaler.SendICECandidate(p.id, c.ToJSON()); err != nil {
			m.log.Debug().Err(err).Str("peer", p.id.String()).Msg("candidate not sent")
		}
	})

	p.pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		m.log.Debug().Str("peer", p.id.String()).Str("state", state.String()).Msg("connection state")
		if state == webrtc.PeerConnectionStateFailed {
			m.emit(Event{Kind: PeerFailed, Peer: p.id, Err: newError("connect", p.id, ErrConnectionFailed)})
		}
	})

	p.pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		if dc.Label() != channelLabel {
			m.log.Warn().Str("peer", p.id.String()).Str("label", dc.Label()).Msg("ignored data channel")
			return
		}
		m.attach(p, dc)
	})
}

func (m *Mesh) attach(p *peer, dc *webrtc.DataChannel) {
	m.mu.Lock()
	p.dc = dc
	m.mu.Unlock()

	dc.OnOpen(func() {
		m.mu.Lock()
		p.open = true
		m.mu.Unlock()

		hello, err := Encode(TypeHello, Hello{Name: m.opts.Name, Version: m.opts.Version})
		if err == nil {
			err = dc.Send(hello)
		}
		if err != nil {
			m.log.Warn().Err(err).Str("peer", p.id.String()).Msg("hello not sent")
		}
		m.emit(Event{Kind: PeerConnected, Peer: p.id})
	})

	dc.OnClose(func() {
		m.mu.Lock()
		p.open = false
		m.mu.Unlock()
	})

	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		if err := m.receive(p, msg.Data); err != nil {
			m.log.Warn().Err(err).Str("peer", p.id.String()).Msg("bad data channel message")
		}
	})
}

func (m *Mesh) receive(p *peer, data []byte) error {
	msg, err := Decode(data)
	if err != nil {
		return newError("decode message", p.id, err)
	}
	switch msg.Type {
	case TypeHello:
		var h Hello
		if err := msg.DecodePayload(&h); err != nil {
			return newError("decode hello", p.id, err)
		}
		m.mu.Lock()
		p.name = h.Name
		m.mu.Unlock()
		m.emit(Event{Kind: PeerIdentified, Peer: p.id, Name: h.Name})

	case TypeChat:
		var c ChatMessage
		if err := msg.DecodePayload(&c); err != nil {
			return newError("decode chat", p.id, err)
		}
		m.emit(Event{Kind: ChatReceived, Peer: p.id, Name: c.From, Chat: &c})

	default:
		return wrapError("receive", p.id, ErrUnexpectedMessage, msg.Type)
	}
	return nil
}

func (m *Mesh) peer(id protocol.PeerID) *peer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.peers[id]
}

// HandleSessionDescription applies an offer or answer from another peer and
// answers offers.
func (m *Mesh) HandleSessionDescription(from protocol.PeerID, raw json.RawMessage) error {
	var sd webrtc.SessionDescription
	if err := json.Unmarshal(raw, &sd); err != nil {
		return wrapError("parse session description", from, err, string(raw))
	}
	p := m.peer(from)
	if p == nil {
		return newError("handle session description", from, ErrUnknownPeer)
	}
	if sd.Type != webrtc.SDPTypeOffer && sd.Type != webrtc.SDPTypeAnswer {
		return wrapError("handle session description", from, ErrUnexpectedSignal, sd.Type.String())
	}

	if err := p.pc.SetRemoteDescription(sd); err != nil {
		return newError("set remote description", from, err)
	}
	m.flushCandidates(p)

	if sd.Type != webrtc.SDPTypeOffer {
		return nil
	}
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return newError("create answer", from, err)
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return newError("set local description", from, err)
	}
	if err := m.signaler.SendSessionDescription(from, answer); err != nil {
		return newError("send answer", from, err)
	}
	return nil
}

// HandleICECandidate adds a remote candidate. Candidates that arrive before
// the remote description are held until it is set.
func (m *Mesh) HandleICECandidate(from protocol.PeerID, raw json.RawMessage) error {
	var c webrtc.ICECandidateInit
	if err := json.Unmarshal(raw, &c); err != nil {
		return wrapError("parse ICE candidate", from, err, string(raw))
	}

	m.mu.Lock()
	p := m.peers[from]
	if p == nil {
		m.mu.Unlock()
		return newError("handle ICE candidate", from, ErrUnknownPeer)
	}
	if !p.remoteSet {
		p.pending = append(p.pending, c)
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	if err := p.pc.AddICECandidate(c); err != nil {
		return newError("add ICE candidate", from, err)
	}
	return nil
}

func (m *Mesh) flushCandidates(p *peer) {
	m.mu.Lock()
	p.remoteSet = true
	pending := p.pending
	p.pending = nil
	m.mu.Unlock()

	for _, c := range pending {
		if err := p.pc.AddICECandidate(c); err != nil {
			m.log.Warn().Err(err).Str("peer", p.id.String()).Msg("queued candidate rejected")
		}
	}
}

// RemovePeer closes the connection to id, if any.
func (m *Mesh) RemovePeer(id protocol.PeerID) {
	m.mu.Lock()
	p, ok := m.peers[id]
	delete(m.peers, id)
	var name string
	if ok {
		name = p.name
	}
	m.mu.Unlock()
	if !ok {
		return
	}

	if err := p.pc.Close(); err != nil {
		m.log.Debug().Err(err).Str("peer", id.String()).Msg("close peer connection")
	}
	m.emit(Event{Kind: PeerLeft, Peer: id, Name: name})
}

// Send delivers a chat line to every connected peer and returns how many got
// it.
func (m *Mesh) Send(text string) (int, error) {
	data, err := Encode(TypeChat, ChatMessage{From: m.opts.Name, Text: text, SentAt: time.Now().UTC()})
	if err != nil {
		return 0, newError("encode chat", "", err)
	}

	m.mu.Lock()
	var channels []*webrtc.DataChannel
	for _, p := range m.peers {
		if p.open && p.dc != nil {
			channels = append(channels, p.dc)
		}
	}
	m.mu.Unlock()

	if len(channels) == 0 {
		return 0, ErrNoOpenChannels
	}
	sent := 0
	for _, dc := range channels {
		if err := dc.Send(data); err != nil {
			m.log.Warn().Err(err).Str("channel", dc.Label()).Msg("chat not sent")
			continue
		}
		sent++
	}
	return sent, nil
}

// Peers lists every known peer, ordered by id.
func (m *Mesh) Peers() []PeerInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PeerInfo, 0, len(m.peers))
	for _, p := range m.peers {
		out = append(out, PeerInfo{ID: p.id, Name: p.name, Connected: p.open})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Close tears down every connection.
func (m *Mesh) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	peers := m.peers
	m.peers = make(map[protocol.PeerID]*peer)
	m.mu.Unlock()

	for _, p := range peers {
		_ = p.pc.Close()
	}
	close(m.done)
}
