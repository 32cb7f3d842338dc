// Package protocol defines the messages exchanged between peers and the
// signaling relay over a websocket.
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Kind names a message type on the wire.
type Kind string

const (
	// server -> peer
	KindShareRooms         Kind = "share_rooms"
	KindAddPeer            Kind = "add_peer"
	KindRemovePeer         Kind = "remove_peer"
	KindSessionDescription Kind = "session_description"
	KindICECandidate       Kind = "ice_candidate"

	// peer -> server
	KindJoinRoom                Kind = "join_room"
	KindLeaveRoom               Kind = "leave_room"
	KindRelaySessionDescription Kind = "relay_session_description"
	KindRelayICECandidate       Kind = "relay_ice_candidate"
)

var (
	ErrMissingType    = errors.New("message has no type")
	ErrMissingRoom    = errors.New("payload has no room")
	ErrMissingPeer    = errors.New("payload has no peer")
	ErrMissingPayload = errors.New("payload has no handshake data")
)

// Message is the envelope for every frame in both directions.
type Message struct {
	Type    Kind            `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Parse decodes one websocket frame.
func Parse(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	if msg.Type == "" {
		return nil, ErrMissingType
	}
	return &msg, nil
}

// New creates a message of the given kind with payload encoded as JSON.
func New(kind Kind, payload any) (*Message, error) {
	if payload == nil {
		return &Message{Type: kind}, nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", kind, err)
	}
	return &Message{Type: kind, Payload: b}, nil
}

// HasPayload reports whether the message carries a non-null payload.
func (m *Message) HasPayload() bool {
	p := bytes.TrimSpace(m.Payload)
	return len(p) > 0 && !bytes.Equal(p, []byte("null"))
}

// DecodePayload decodes the payload into v. An absent payload leaves v untouched.
func (m *Message) DecodePayload(v any) error {
	if !m.HasPayload() {
		return nil
	}
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", m.Type, err)
	}
	return nil
}

// Rooms is the payload of share_rooms.
type Rooms struct {
	Rooms []RoomID `json:"rooms"`
}

// JoinRoom is the payload of join_room.
type JoinRoom struct {
	Room RoomID `json:"room"`
}

func (j JoinRoom) Validate() error {
	if j.Room == "" {
		return ErrMissingRoom
	}
	return nil
}

// LeaveRoom is the payload of leave_room. An empty Room means every room the
// sender belongs to.
type LeaveRoom struct {
	Room RoomID `json:"room,omitempty"`
}

// AddPeer tells a peer to set up a connection with Peer.
type AddPeer struct {
	Peer              PeerID `json:"peer"`
	ShouldCreateOffer bool   `json:"shouldCreateOffer"`
}

// RemovePeer tells a peer to tear down its connection with Peer.
type RemovePeer struct {
	Peer PeerID `json:"peer"`
}

// SessionDescription carries an opaque SDP. Peer is the target when sent to
// the relay and the sender when delivered.
type SessionDescription struct {
	Peer               PeerID          `json:"peer"`
	SessionDescription json.RawMessage `json:"sessionDescription"`
}

func (s SessionDescription) Validate() error {
	if s.Peer == "" {
		return ErrMissingPeer
	}
	if len(s.SessionDescription) == 0 {
		return ErrMissingPayload
	}
	return nil
}

// ICECandidate carries an opaque connectivity candidate, addressed the same
// way as SessionDescription.
type ICECandidate struct {
	Peer         PeerID          `json:"peer"`
	ICECandidate json.RawMessage `json:"iceCandidate"`
}

func (c ICECandidate) Validate() error {
	if c.Peer == "" {
		return ErrMissingPeer
	}
	if len(c.ICECandidate) == 0 {
		return ErrMissingPayload
	}
	return nil
}

// must is for payloads built by the relay itself, whose encoding cannot fail.
func must(kind Kind, payload any) *Message {
	m, err := New(kind, payload)
	if err != nil {
		panic(err)
	}
	return m
}

func ShareRoomsMessage(rooms []RoomID) *Message {
	if rooms == nil {
		rooms = []RoomID{}
	}
	return must(KindShareRooms, Rooms{Rooms: rooms})
}

func AddPeerMessage(peer PeerID, shouldCreateOffer bool) *Message {
	return must(KindAddPeer, AddPeer{Peer: peer, ShouldCreateOffer: shouldCreateOffer})
}

func RemovePeerMessage(peer PeerID) *Message {
	return must(KindRemovePeer, RemovePeer{Peer: peer})
}

func SessionDescriptionMessage(from PeerID, sdp json.RawMessage) *Message {
	return must(KindSessionDescription, SessionDescription{Peer: from, SessionDescription: sdp})
}

func ICECandidateMessage(from PeerID, candidate json.RawMessage) *Message {
	return must(KindICECandidate, ICECandidate{Peer: from, ICECandidate: candidate})
}
