package command

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/warpmesh/internal/client/ui"
	"github.com/BioHazard786/warpmesh/internal/protocol"
)

var createCmd = &cobra.Command{
	Use:     "create",
	Aliases: []string{"new"},
	Short:   "Create a room and wait for peers",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		room := protocol.NewRoomID()
		fmt.Fprintln(ui.Output, ui.RoomInfo(room))
		fmt.Fprintln(ui.Output)
		return runSession(cmd.Context(), room)
	},
}

var joinCmd = &cobra.Command{
	Use:     "join <room>",
	Aliases: []string{"j"},
	Short:   "Join an existing room",
	Long: `Join a room and connect to every peer in it.

Examples:
  warpmesh join 3b241101-e2bb-4255-8caf-4136c566a962
  warpmesh join --name alice 3b241101-e2bb-4255-8caf-4136c566a962`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		room, err := parseRoom(args[0])
		if err != nil {
			return err
		}
		return runSession(cmd.Context(), room)
	},
}

func parseRoom(s string) (protocol.RoomID, error) {
	room := protocol.RoomID(s)
	if !room.Valid() {
		return "", fmt.Errorf("invalid room id %q: expected a version 4 UUID", s)
	}
	return room, nil
}
