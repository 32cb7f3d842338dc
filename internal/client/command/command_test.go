package command

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/BioHazard786/warpmesh/internal/client/config"
	"github.com/BioHazard786/warpmesh/internal/client/signaling"
	"github.com/BioHazard786/warpmesh/internal/client/ui"
	"github.com/BioHazard786/warpmesh/internal/protocol"
	"github.com/BioHazard786/warpmesh/internal/server"
	hub "github.com/BioHazard786/warpmesh/internal/signaling"
)

const room = protocol.RoomID("3b241101-e2bb-4255-8caf-4136c566a962")

func TestParseRoom(t *testing.T) {
	tests := []struct {
		in string
		ok bool
	}{
		{room.String(), true},
		{"not-a-room", false},
		{"", false},
		{"6ba7b810-9dad-11d1-80b4-00c04fd430c8", false}, // v1
	}
	for _, tt := range tests {
		got, err := parseRoom(tt.in)
		if (err == nil) != tt.ok {
			t.Errorf("parseRoom(%q) error = %v", tt.in, err)
		}
		if tt.ok && got.String() != tt.in {
			t.Errorf("parseRoom(%q) = %q", tt.in, got)
		}
	}
}

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := ui.Output
	ui.Output = &buf
	t.Cleanup(func() { ui.Output = prev })
	return &buf
}

func TestPrintRooms(t *testing.T) {
	buf := captureOutput(t)

	rooms := make(chan []protocol.RoomID, 1)
	rooms <- []protocol.RoomID{room}
	if err := printRooms(context.Background(), rooms, false); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), room.String()) {
		t.Errorf("output = %q", buf.String())
	}

	close(rooms)
	if err := printRooms(context.Background(), rooms, true); err != errDisconnected {
		t.Errorf("closed list error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := printRooms(ctx, make(chan []protocol.RoomID), true); err != nil {
		t.Errorf("cancelled watch error = %v", err)
	}
}

func TestObserverRejectsHandshakes(t *testing.T) {
	var o observer
	if err := o.AddPeer("cv37img5tppgl4002kb0", true); err == nil {
		t.Error("AddPeer accepted")
	}
	if err := o.HandleSessionDescription("cv37img5tppgl4002kb0", nil); err == nil {
		t.Error("HandleSessionDescription accepted")
	}
	if err := o.HandleICECandidate("cv37img5tppgl4002kb0", nil); err == nil {
		t.Error("HandleICECandidate accepted")
	}
}

func startRelay(t *testing.T) string {
	t.Helper()
	h := hub.NewHub(hub.Config{}, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	srv := httptest.NewServer(server.NewHandler(h, nil, server.Options{}))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func TestListRooms(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("HOME", t.TempDir())
	url := startRelay(t)

	prev := opts
	opts = config.Options{ServerURL: url}
	t.Cleanup(func() { opts = prev })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	member, err := signaling.Dial(ctx, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer member.Close()
	h := signaling.NewHandler(observer{}, nil)
	go h.Run(member.Incoming())
	if err := member.JoinRoom(room); err != nil {
		t.Fatal(err)
	}
	for listed := false; !listed; {
		select {
		case rooms := <-h.Rooms():
			listed = len(rooms) == 1
		case <-ctx.Done():
			t.Fatal("room never listed")
		}
	}

	buf := captureOutput(t)
	if err := listRooms(ctx, false); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), room.String()) {
		t.Errorf("output = %q", buf.String())
	}
}

func TestRunSessionRejectsBadConfig(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("HOME", t.TempDir())

	prev := opts
	opts = config.Options{ServerURL: "http://localhost:1/ws"}
	t.Cleanup(func() { opts = prev })

	if err := runSession(context.Background(), room); err == nil {
		t.Fatal("expected config error")
	}
}
