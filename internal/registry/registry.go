// Package registry keeps track of which peers are in which rooms.
//
// A Registry has a single owner. It does no locking and no I/O; the signaling
// hub mutates it from its event loop only.
package registry

import (
	"sort"

	"github.com/BioHazard786/warpmesh/internal/protocol"
)

type set[T comparable] map[T]struct{}

// Registry maps rooms to their members and keeps the reverse index so a
// disconnecting peer's rooms can be found without a scan.
type Registry struct {
	rooms map[protocol.RoomID]set[protocol.PeerID]
	peers map[protocol.PeerID]set[protocol.RoomID]
}

func New() *Registry {
	return &Registry{
		rooms: make(map[protocol.RoomID]set[protocol.PeerID]),
		peers: make(map[protocol.PeerID]set[protocol.RoomID]),
	}
}

// Rooms returns every non-empty room with a valid room id, sorted.
func (r *Registry) Rooms() []protocol.RoomID {
	rooms := make([]protocol.RoomID, 0, len(r.rooms))
	for id := range r.rooms {
		if id.Valid() {
			rooms = append(rooms, id)
		}
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i] < rooms[j] })
	return rooms
}

// Members returns the peers in room, sorted. A room that does not exist has
// no members.
func (r *Registry) Members(room protocol.RoomID) []protocol.PeerID {
	members := r.rooms[room]
	peers := make([]protocol.PeerID, 0, len(members))
	for id := range members {
		peers = append(peers, id)
	}
	sort.Slice(peers, func(i, j int) bool { return peers[i] < peers[j] })
	return peers
}

// RoomsOf returns every room peer belongs to, including rooms with ids that
// are never listed.
func (r *Registry) RoomsOf(peer protocol.PeerID) []protocol.RoomID {
	joined := r.peers[peer]
	rooms := make([]protocol.RoomID, 0, len(joined))
	for id := range joined {
		rooms = append(rooms, id)
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i] < rooms[j] })
	return rooms
}

func (r *Registry) Has(room protocol.RoomID, peer protocol.PeerID) bool {
	_, ok := r.rooms[room][peer]
	return ok
}

// Add puts peer into room, creating the room if needed. It reports whether
// the membership changed.
func (r *Registry) Add(room protocol.RoomID, peer protocol.PeerID) bool {
	if r.Has(room, peer) {
		return false
	}
	members, ok := r.rooms[room]
	if !ok {
		members = make(set[protocol.PeerID])
		r.rooms[room] = members
	}
	members[peer] = struct{}{}

	joined, ok := r.peers[peer]
	if !ok {
		joined = make(set[protocol.RoomID])
		r.peers[peer] = joined
	}
	joined[room] = struct{}{}
	return true
}

// Remove takes peer out of room. An emptied room ceases to exist. It reports
// whether the membership changed.
func (r *Registry) Remove(room protocol.RoomID, peer protocol.PeerID) bool {
	if !r.Has(room, peer) {
		return false
	}
	members := r.rooms[room]
	delete(members, peer)
	if len(members) == 0 {
		delete(r.rooms, room)
	}

	joined := r.peers[peer]
	delete(joined, room)
	if len(joined) == 0 {
		delete(r.peers, peer)
	}
	return true
}

// Len returns the number of non-empty rooms, listed or not.
func (r *Registry) Len() int { return len(r.rooms) }
