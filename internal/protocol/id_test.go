package protocol

import (
	"strings"
	"testing"
)

func TestRoomIDValid(t *testing.T) {
	tests := []struct {
		name string
		id   RoomID
		want bool
	}{
		{name: "v4", id: "3b241101-e2bb-4255-8caf-4136c566a962", want: true},
		{name: "v4 upper", id: "3B241101-E2BB-4255-8CAF-4136C566A962", want: true},
		{name: "v1", id: "6fa459ea-ee8a-11ca-8f9f-0800200c9a66", want: false},
		{name: "v3", id: "a3bb189e-8bf9-3888-9912-ace4e6543002", want: false},
		{name: "bad variant", id: "3b241101-e2bb-4255-0caf-4136c566a962", want: false},
		{name: "nil", id: "00000000-0000-0000-0000-000000000000", want: false},
		{name: "braces", id: "{3b241101-e2bb-4255-8caf-4136c566a962}", want: false},
		{name: "urn", id: "urn:uuid:3b241101-e2bb-4255-8caf-4136c566a962", want: false},
		{name: "no dashes", id: "3b241101e2bb42558caf4136c566a962", want: false},
		{name: "empty", id: "", want: false},
		{name: "words", id: "kitten-waffle-stardust-happy", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.id.Valid(); got != tt.want {
				t.Errorf("RoomID(%q).Valid() = %v, want %v", tt.id, got, tt.want)
			}
		})
	}
}

func TestNewRoomIDIsValid(t *testing.T) {
	for i := 0; i < 100; i++ {
		if id := NewRoomID(); !id.Valid() {
			t.Fatalf("generated room id %q is not valid", id)
		}
	}
}

func TestPeerIDNeverValidRoom(t *testing.T) {
	seen := make(map[PeerID]bool)
	for i := 0; i < 100; i++ {
		id := NewPeerID()
		if RoomID(id).Valid() {
			t.Fatalf("peer id %q passes the room check", id)
		}
		if seen[id] {
			t.Fatalf("peer id %q generated twice", id)
		}
		seen[id] = true
	}
}

func TestPeerIDShort(t *testing.T) {
	id := PeerID("cv3ld8hq2n7s73a1b2c0")
	if got := id.Short(); got != "cv3.2c0" {
		t.Errorf("Short() = %q", got)
	}
	if got := PeerID("abc").Short(); got != "abc" {
		t.Errorf("Short() of short id = %q", got)
	}
	if !strings.Contains(id.String(), "cv3") {
		t.Errorf("String() = %q", id.String())
	}
}
