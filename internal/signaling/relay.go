package signaling

import (
	"encoding/json"
	"fmt"

	"github.com/BioHazard786/warpmesh/internal/logging"
	"github.com/BioHazard786/warpmesh/internal/metrics"
	"github.com/BioHazard786/warpmesh/internal/protocol"
	"github.com/BioHazard786/warpmesh/internal/registry"
)

// Transport delivers relay output to connected peers. Emit to a peer that is
// not connected drops the message.
type Transport interface {
	Emit(to protocol.PeerID, msg *protocol.Message)
	Broadcast(msg *protocol.Message)
}

// Policy controls how many rooms a peer may be in at once.
type Policy int

const (
	MultiRoom Policy = iota
	SingleRoom
)

// Relay implements the room protocol: who is told what when a peer joins or
// leaves, and forwarding of handshake payloads between two peers.
//
// A Relay is not safe for concurrent use. The Hub calls it from its event
// loop only.
type Relay struct {
	rooms     *registry.Registry
	transport Transport
	policy    Policy
	log       *logging.Logger
	metrics   *metrics.Metrics

	handlers map[protocol.Kind]handlerFunc
}

type handlerFunc func(r *Relay, from protocol.PeerID, msg *protocol.Message) error

type Option func(*Relay)

func WithPolicy(p Policy) Option { return func(r *Relay) { r.policy = p } }

func WithLogger(l *logging.Logger) Option { return func(r *Relay) { r.log = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(r *Relay) { r.metrics = m } }

func NewRelay(rooms *registry.Registry, transport Transport, opts ...Option) *Relay {
	r := &Relay{
		rooms:     rooms,
		transport: transport,
		log:       logging.Nop(),
		handlers: map[protocol.Kind]handlerFunc{
			protocol.KindJoinRoom:                (*Relay).handleJoin,
			protocol.KindLeaveRoom:               (*Relay).handleLeave,
			protocol.KindRelaySessionDescription: (*Relay).handleSessionDescription,
			protocol.KindRelayICECandidate:       (*Relay).handleICECandidate,
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Handle dispatches one inbound message from a peer.
func (r *Relay) Handle(from protocol.PeerID, msg *protocol.Message) error {
	h, ok := r.handlers[msg.Type]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKind, msg.Type)
	}
	r.metrics.Received(string(msg.Type))
	return h(r, from, msg)
}

func (r *Relay) handleJoin(from protocol.PeerID, msg *protocol.Message) error {
	var p protocol.JoinRoom
	if err := decode(msg, &p); err != nil {
		return err
	}
	return r.Join(from, p.Room)
}

func (r *Relay) handleLeave(from protocol.PeerID, msg *protocol.Message) error {
	var p protocol.LeaveRoom
	if err := msg.DecodePayload(&p); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if p.Room == "" {
		r.LeaveAll(from)
		return nil
	}
	return r.Leave(from, p.Room)
}

func (r *Relay) handleSessionDescription(from protocol.PeerID, msg *protocol.Message) error {
	var p protocol.SessionDescription
	if err := decode(msg, &p); err != nil {
		return err
	}
	r.RelaySessionDescription(from, p.Peer, p.SessionDescription)
	return nil
}

func (r *Relay) handleICECandidate(from protocol.PeerID, msg *protocol.Message) error {
	var p protocol.ICECandidate
	if err := decode(msg, &p); err != nil {
		return err
	}
	r.RelayICECandidate(from, p.Peer, p.ICECandidate)
	return nil
}

type validator interface{ Validate() error }

func decode(msg *protocol.Message, v validator) error {
	if err := msg.DecodePayload(v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := v.Validate(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformed, msg.Type, err)
	}
	return nil
}

// Connect gives every peer, the new one included, the current room list.
func (r *Relay) Connect(peer protocol.PeerID) {
	r.log.Debug().Str("peer", peer.String()).Msg("peer connected")
	r.shareRooms()
}

// Join adds peer to room. Existing members are told to expect an offer from
// the newcomer and the newcomer is told to send one to each of them, so every
// pair gets exactly one offer.
func (r *Relay) Join(peer protocol.PeerID, room protocol.RoomID) error {
	if r.rooms.Has(room, peer) {
		return fmt.Errorf("join %s: %w", room, ErrAlreadyJoined)
	}
	if r.policy == SingleRoom {
		if joined := r.rooms.RoomsOf(peer); len(joined) > 0 {
			return fmt.Errorf("join %s while in %s: %w", room, joined[0], ErrAlreadyInRoom)
		}
	}

	existing := r.rooms.Members(room)
	for _, p := range existing {
		r.emit(p, protocol.AddPeerMessage(peer, false))
	}
	for _, p := range existing {
		r.emit(peer, protocol.AddPeerMessage(p, true))
	}
	r.rooms.Add(room, peer)

	r.log.Info().Str("peer", peer.String()).Str("room", room.String()).
		Int("members", len(existing)+1).Msg("peer joined room")
	r.shareRooms()
	return nil
}

// Leave removes peer from room and tells both sides of every affected pair
// to drop their connection.
func (r *Relay) Leave(peer protocol.PeerID, room protocol.RoomID) error {
	if !r.rooms.Has(room, peer) {
		return fmt.Errorf("leave %s: %w", room, ErrNotJoined)
	}

	members := r.rooms.Members(room)
	others := make([]protocol.PeerID, 0, len(members))
	for _, p := range members {
		if p != peer {
			others = append(others, p)
		}
	}
	for _, p := range others {
		r.emit(p, protocol.RemovePeerMessage(peer))
	}
	for _, p := range others {
		r.emit(peer, protocol.RemovePeerMessage(p))
	}
	r.rooms.Remove(room, peer)

	r.log.Info().Str("peer", peer.String()).Str("room", room.String()).
		Int("members", len(others)).Msg("peer left room")
	r.shareRooms()
	return nil
}

// LeaveAll runs Leave for each room the peer is in when called.
func (r *Relay) LeaveAll(peer protocol.PeerID) {
	for _, room := range r.rooms.RoomsOf(peer) {
		// the snapshot only holds rooms the peer is in
		_ = r.Leave(peer, room)
	}
}

// Disconnect cleans up after a peer whose connection is gone.
func (r *Relay) Disconnect(peer protocol.PeerID) {
	r.log.Debug().Str("peer", peer.String()).Msg("peer disconnected")
	r.LeaveAll(peer)
}

// RelaySessionDescription forwards sdp from one peer to another. The pairing
// is trusted because peer ids only reach clients through add_peer.
func (r *Relay) RelaySessionDescription(from, to protocol.PeerID, sdp json.RawMessage) {
	r.emit(to, protocol.SessionDescriptionMessage(from, sdp))
}

// RelayICECandidate forwards a connectivity candidate between two peers.
func (r *Relay) RelayICECandidate(from, to protocol.PeerID, candidate json.RawMessage) {
	r.emit(to, protocol.ICECandidateMessage(from, candidate))
}

// Rooms returns the rooms that are currently listed.
func (r *Relay) Rooms() []protocol.RoomID { return r.rooms.Rooms() }

func (r *Relay) shareRooms() {
	r.metrics.SetRooms(r.rooms.Len())
	r.transport.Broadcast(protocol.ShareRoomsMessage(r.rooms.Rooms()))
}

func (r *Relay) emit(to protocol.PeerID, msg *protocol.Message) { r.transport.Emit(to, msg) }
