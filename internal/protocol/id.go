package protocol

import (
	"github.com/google/uuid"
	"github.com/rs/xid"
)

// RoomID identifies a user-created room. Only version 4 UUIDs in their
// canonical form count as rooms; anything else may still group peers but is
// never reported in a room list.
type RoomID string

// NewRoomID returns a fresh random room identifier.
func NewRoomID() RoomID { return RoomID(uuid.NewString()) }

// Valid reports whether r is a canonical RFC 4122 version 4 UUID.
func (r RoomID) Valid() bool {
	if len(r) != 36 {
		return false
	}
	id, err := uuid.Parse(string(r))
	if err != nil {
		return false
	}
	return id.Version() == 4 && id.Variant() == uuid.RFC4122
}

func (r RoomID) String() string { return string(r) }

// PeerID is the identifier the relay assigns to one connection for its
// whole lifetime.
type PeerID string

// NewPeerID returns a new connection identifier. The xid format keeps peer
// ids disjoint from room ids.
func NewPeerID() PeerID { return PeerID(xid.New().String()) }

func (p PeerID) String() string { return string(p) }

// Short returns an abbreviated form for logs and terminal output.
func (p PeerID) Short() string {
	s := string(p)
	if len(s) <= 8 {
		return s
	}
	return s[:3] + "." + s[len(s)-3:]
}
