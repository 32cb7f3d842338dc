package signaling

import (
	"encoding/json"
	"fmt"

	"github.com/BioHazard786/warpmesh/internal/logging"
	"github.com/BioHazard786/warpmesh/internal/protocol"
)

// Peers is what the relay drives: the local end of every peer connection.
type Peers interface {
	AddPeer(id protocol.PeerID, createOffer bool) error
	RemovePeer(id protocol.PeerID)
	HandleSessionDescription(from protocol.PeerID, sdp json.RawMessage) error
	HandleICECandidate(from protocol.PeerID, candidate json.RawMessage) error
}

// Handler routes incoming relay messages to the peer set and publishes the
// room list.
type Handler struct {
	peers Peers
	rooms chan []protocol.RoomID
	log   *logging.Logger
}

func NewHandler(peers Peers, log *logging.Logger) *Handler {
	if log == nil {
		log = logging.Nop()
	}
	return &Handler{
		peers: peers,
		rooms: make(chan []protocol.RoomID, 1),
		log:   log,
	}
}

// Rooms carries the latest room list. Older lists that were never read are
// replaced.
func (h *Handler) Rooms() <-chan []protocol.RoomID { return h.rooms }

// Run handles messages until in is closed.
func (h *Handler) Run(in <-chan *protocol.Message) {
	defer close(h.rooms)
	for msg := range in {
		if err := h.Handle(msg); err != nil {
			h.log.Warn().Err(err).Str("type", string(msg.Type)).Msg("relay message not handled")
		}
	}
}

func (h *Handler) Handle(msg *protocol.Message) error {
	switch msg.Type {
	case protocol.KindShareRooms:
		var p protocol.Rooms
		if err := msg.DecodePayload(&p); err != nil {
			return err
		}
		h.publishRooms(p.Rooms)

	case protocol.KindAddPeer:
		var p protocol.AddPeer
		if err := msg.DecodePayload(&p); err != nil {
			return err
		}
		return h.peers.AddPeer(p.Peer, p.ShouldCreateOffer)

	case protocol.KindRemovePeer:
		var p protocol.RemovePeer
		if err := msg.DecodePayload(&p); err != nil {
			return err
		}
		h.peers.RemovePeer(p.Peer)

	case protocol.KindSessionDescription:
		var p protocol.SessionDescription
		if err := msg.DecodePayload(&p); err != nil {
			return err
		}
		return h.peers.HandleSessionDescription(p.Peer, p.SessionDescription)

	case protocol.KindICECandidate:
		var p protocol.ICECandidate
		if err := msg.DecodePayload(&p); err != nil {
			return err
		}
		return h.peers.HandleICECandidate(p.Peer, p.ICECandidate)

	default:
		return fmt.Errorf("unexpected message type %q", msg.Type)
	}
	return nil
}

func (h *Handler) publishRooms(rooms []protocol.RoomID) {
	if rooms == nil {
		rooms = []protocol.RoomID{}
	}
	for {
		select {
		case h.rooms <- rooms:
			return
		default:
		}
		select {
		case <-h.rooms:
		default:
		}
	}
}
