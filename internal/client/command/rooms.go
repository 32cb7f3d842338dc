package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/warpmesh/internal/client/signaling"
	"github.com/BioHazard786/warpmesh/internal/client/ui"
	"github.com/BioHazard786/warpmesh/internal/protocol"
)

var errDisconnected = errors.New("relay closed the connection")

var flagWatch bool

var roomsCmd = &cobra.Command{
	Use:     "rooms",
	Aliases: []string{"ls"},
	Short:   "List open rooms on the relay",
	Long: `List the rooms that currently have peers in them.

Examples:
  warpmesh rooms
  warpmesh rooms --watch
  warpmesh rooms --server wss://relay.example.com/ws`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return listRooms(cmd.Context(), flagWatch)
	},
}

func init() {
	roomsCmd.Flags().BoolVarP(&flagWatch, "watch", "w", false, "keep printing the list as it changes")
}

// observer is the peer set of a connection that never joins a room.
type observer struct{}

func (observer) AddPeer(id protocol.PeerID, _ bool) error {
	return fmt.Errorf("unexpected peer %s", id.Short())
}

func (observer) RemovePeer(protocol.PeerID) {}

func (observer) HandleSessionDescription(from protocol.PeerID, _ json.RawMessage) error {
	return fmt.Errorf("unexpected session description from %s", from.Short())
}

func (observer) HandleICECandidate(from protocol.PeerID, _ json.RawMessage) error {
	return fmt.Errorf("unexpected ice candidate from %s", from.Short())
}

func listRooms(ctx context.Context, watch bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	client, err := dial(ctx, cfg.ServerURL)
	if err != nil {
		return err
	}
	defer client.Close()

	handler := signaling.NewHandler(observer{}, logger)
	go handler.Run(client.Incoming())

	return printRooms(ctx, handler.Rooms(), watch)
}

// printRooms renders each list received on rooms. Without watch it stops after
// the first one.
func printRooms(ctx context.Context, rooms <-chan []protocol.RoomID, watch bool) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case list, ok := <-rooms:
			if !ok {
				return errDisconnected
			}
			ui.RenderRoomTable(list)
			if !watch {
				return nil
			}
			fmt.Fprintln(ui.Output)
		}
	}
}
